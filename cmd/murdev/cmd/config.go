package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mur-run/murdev/internal/config"
	"github.com/mur-run/murdev/internal/envfile"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change murdev settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config key, e.g. server.url",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configEnvCmd = &cobra.Command{
	Use:   "env <KEY> <VALUE>",
	Short: "Set a variable in ~/.murdev/.env",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigEnv,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configEnvCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// runConfigSet edits the file as written, so env overrides never leak into it.
func runConfigSet(cmd *cobra.Command, args []string) error {
	c, err := config.Read(cfgFile)
	if err != nil {
		return err
	}
	config.MigrateConfig(c)
	if err := c.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := c.Save(cfgFile); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", args[0], args[1])
	return nil
}

func runConfigEnv(cmd *cobra.Command, args []string) error {
	if err := envfile.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s written to .env\n", args[0])
	return nil
}
