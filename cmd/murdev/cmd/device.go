package cmd

import (
	"fmt"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Pair this device and read its backend record",
}

var deviceCodeCmd = &cobra.Command{
	Use:   "code",
	Short: "Request a pairing code",
	Long: `Request a pairing code to enter at the account website.

The state identifies this pairing attempt; pass the same value to
'murdev device activate' once the code has been entered.`,
	RunE: runDeviceCode,
}

var deviceActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Finish pairing and store the device credentials",
	RunE:  runDeviceActivate,
}

var deviceGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the device record",
	RunE:  runDeviceGet,
}

var deviceSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the device settings",
	RunE:  runDeviceSettings,
}

var deviceLocationCmd = &cobra.Command{
	Use:   "location",
	Short: "Show the device location",
	RunE:  runDeviceLocation,
}

var (
	codeState   string
	codePrompt  bool
	activateTok string
)

func init() {
	rootCmd.AddCommand(deviceCmd)
	deviceCmd.AddCommand(deviceCodeCmd, deviceActivateCmd, deviceGetCmd, deviceSettingsCmd, deviceLocationCmd)

	deviceCodeCmd.Flags().StringVar(&codeState, "state", "", "pairing state (default: a new UUID)")
	deviceCodeCmd.Flags().BoolVar(&codePrompt, "prompt", false, "ask for the pairing state")

	deviceActivateCmd.Flags().StringVar(&codeState, "state", "", "pairing state used for 'device code'")
	deviceActivateCmd.Flags().StringVar(&activateTok, "token", "", "activation token")
	_ = deviceActivateCmd.MarkFlagRequired("state")
	_ = deviceActivateCmd.MarkFlagRequired("token")
}

func runDeviceCode(cmd *cobra.Command, args []string) error {
	state := codeState
	if state == "" {
		state = uuid.NewString()
		if codePrompt {
			prompt := &survey.Input{
				Message: "Pairing state:",
				Default: state,
			}
			if err := survey.AskOne(prompt, &state); err != nil {
				return err
			}
		}
	}

	api, _, err := openDeviceAPI()
	if err != nil {
		return err
	}
	code, err := api.GetCode(cmd.Context(), state)
	if err != nil {
		return fmt.Errorf("failed to get pairing code: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pairing code: %s\n", codeStyle.Render(code.Code))
	fmt.Fprintf(out, "State:        %s\n", state)
	if code.Expiration > 0 {
		fmt.Fprintf(out, "Expires in:   %s\n", time.Duration(code.Expiration)*time.Second)
	}
	return nil
}

func runDeviceActivate(cmd *cobra.Command, args []string) error {
	api, store, err := openDeviceAPI()
	if err != nil {
		return err
	}

	login, err := api.Activate(cmd.Context(), codeState, activateTok)
	if err != nil {
		return fmt.Errorf("failed to activate device: %w", err)
	}
	if err := store.Save(*login); err != nil {
		return err
	}

	log.Info(cmd.Context(), "device activated", "uuid", login.UUID)
	fmt.Fprintf(cmd.OutOrStdout(), "%s Paired as %s\n", okStyle.Render("✓"), login.UUID)
	return nil
}

func runDeviceGet(cmd *cobra.Command, args []string) error {
	api, _, err := openDeviceAPI()
	if err != nil {
		return err
	}
	dev, err := api.Get(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), dev)
}

func runDeviceSettings(cmd *cobra.Command, args []string) error {
	api, _, err := openDeviceAPI()
	if err != nil {
		return err
	}
	settings, err := api.GetSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), settings)
}

func runDeviceLocation(cmd *cobra.Command, args []string) error {
	api, _, err := openDeviceAPI()
	if err != nil {
		return err
	}
	loc, err := api.GetLocation(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get location: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), loc)
}
