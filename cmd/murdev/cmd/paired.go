package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mur-run/murdev/internal/cloud"
)

var pairedCmd = &cobra.Command{
	Use:   "paired",
	Short: "Check whether this device is paired",
	Long:  `Exit status is 0 when the backend knows this device, 1 otherwise.`,
	Args:  cobra.NoArgs,
	RunE:  runPaired,
}

func init() {
	rootCmd.AddCommand(pairedCmd)
}

func runPaired(cmd *cobra.Command, args []string) error {
	api, _, err := openDeviceAPI()
	if err != nil {
		return err
	}
	if !cloud.IsPaired(cmd.Context(), api) {
		fmt.Fprintln(cmd.OutOrStdout(), "not paired")
		return errSilent
	}
	fmt.Fprintln(cmd.OutOrStdout(), "paired")
	return nil
}
