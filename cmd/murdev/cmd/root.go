package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mur-run/murdev/internal/cloud"
	"github.com/mur-run/murdev/internal/config"
	"github.com/mur-run/murdev/internal/envfile"
	"github.com/mur-run/murdev/internal/identity"
	"github.com/mur-run/murdev/internal/logging"
	"github.com/mur-run/murdev/internal/version"
)

var (
	cfgFile   string
	verbose   bool
	serverURL string

	cfg *config.Config
	log logging.Logger = logging.Nop()
)

// errSilent ends a command with exit status 1 without printing anything more.
var errSilent = errors.New("")

var rootCmd = &cobra.Command{
	Use:   "murdev",
	Short: "Device client for the Mycroft backend",
	Long: `murdev talks to the device backend on behalf of this device.

It pairs the device with an account, reads the device's settings and
location, and sends audio for speech-to-text. Credentials are kept in
~/.murdev/identity.json and refreshed automatically.`,
	Version:           version.Core,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func init() {
	rootCmd.SetVersionTemplate("murdev version {{.Version}}\n")

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.murdev/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend URL (overrides config)")
}

// setup loads ~/.murdev/.env, the config file and the logger.
func setup(cmd *cobra.Command, args []string) error {
	if err := envfile.Load(); err != nil {
		return err
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serverURL != "" {
		c.Server.URL = strings.TrimRight(serverURL, "/")
	}

	level := c.Log.Level
	if verbose {
		level = "debug"
	}
	l, err := logging.New(cmd.ErrOrStderr(), level, c.Log.Format)
	if err != nil {
		return err
	}

	if config.NeedsMigration(c) {
		_, changes := config.MigrateConfig(c)
		for _, ch := range changes {
			l.Info(cmd.Context(), "config migrated in memory", "field", ch.Field, "change", ch.Description)
		}
	}

	cfg, log = c, l
	return nil
}

// openBackend opens the identity store and the backend it authenticates.
func openBackend() (*cloud.Backend, *identity.Store, error) {
	store, err := identity.NewStore(cfg.Identity.Path)
	if err != nil {
		return nil, nil, err
	}
	b := cloud.NewBackend(cfg.Server.URL, cfg.Server.Version, store, cloud.WithLogger(log))
	return b, store, nil
}

func openDeviceAPI() (*cloud.DeviceAPI, *identity.Store, error) {
	b, store, err := openBackend()
	if err != nil {
		return nil, nil, err
	}
	versions := version.Manager{
		Path:      cfg.Device.VersionFile,
		Enclosure: cfg.Device.EnclosureVersion,
	}
	return cloud.NewDeviceAPI(b, versions), store, nil
}
