package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mur-run/murdev/internal/version"
)

// Build info (set by ldflags during build)
var (
	Commit    = "dev"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show murdev version",
	RunE:  runVersion,
}

var versionShort bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "Show version only")
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if versionShort {
		fmt.Fprintln(out, version.Core)
		return nil
	}

	info := version.Manager{Path: cfg.Device.VersionFile, Enclosure: cfg.Device.EnclosureVersion}.Get()
	fmt.Fprintf(out, "murdev %s\n", info.CoreVersion)
	if info.EnclosureVersion != "" {
		fmt.Fprintf(out, "  enclosure: %s\n", info.EnclosureVersion)
	}
	fmt.Fprintf(out, "  commit:    %s\n", Commit)
	fmt.Fprintf(out, "  built:     %s\n", BuildDate)
	fmt.Fprintf(out, "  go:        %s\n", runtime.Version())
	fmt.Fprintf(out, "  os/arch:   %s/%s\n", runtime.GOOS, runtime.GOARCH)

	return nil
}
