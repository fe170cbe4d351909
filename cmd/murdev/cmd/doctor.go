package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mur-run/murdev/internal/cloud"
	"github.com/mur-run/murdev/internal/config"
	"github.com/mur-run/murdev/internal/identity"
	"github.com/mur-run/murdev/internal/sysinfo"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose murdev setup",
	Long: `Check murdev configuration and connectivity.

Checks:
  - ~/.murdev directory
  - Config file
  - Stored identity
  - Backend reachability
  - Pairing status

Examples:
  murdev doctor         # Run all checks
  murdev doctor --fix   # Auto-fix issues where possible`,
	RunE: runDoctor,
}

var doctorFix bool

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Auto-fix issues where possible")
}

type checkResult struct {
	name    string
	status  string // "ok", "warn", "error"
	message string
	fix     func() error
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintln(out, titleStyle.Render("murdev doctor"))
	fmt.Fprintf(out, "  platform: %s", sysinfo.Platform())
	if gb := sysinfo.MemoryGB(); gb > 0 {
		fmt.Fprintf(out, ", %d GB RAM", gb)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out)

	var checks []checkResult

	// Check 1: ~/.murdev directory
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		checks = append(checks, checkResult{
			name:    "~/.murdev directory",
			status:  "error",
			message: "Directory not found",
			fix: func() error {
				return os.MkdirAll(dir, 0700)
			},
		})
	} else {
		checks = append(checks, checkResult{name: "~/.murdev directory", status: "ok"})
	}

	// Check 2: config file
	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(dir, "config.yaml")
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		checks = append(checks, checkResult{
			name:    "config",
			status:  "warn",
			message: "Using defaults (no config file)",
			fix: func() error {
				return config.Default().Save(cfgPath)
			},
		})
	} else {
		checks = append(checks, checkResult{
			name:    "config",
			status:  "ok",
			message: fmt.Sprintf("server %s (%s)", cfg.Server.URL, cfg.Server.Version),
		})
	}

	// Check 3: identity
	var id identity.Identity
	store, err := identity.NewStore(cfg.Identity.Path)
	switch {
	case err != nil:
		checks = append(checks, checkResult{name: "identity", status: "error", message: err.Error()})
	default:
		id = store.Get()
		switch {
		case id.UUID == "":
			checks = append(checks, checkResult{name: "identity", status: "warn", message: "Not paired; run 'murdev device code'"})
		case id.IsExpired(time.Now()):
			checks = append(checks, checkResult{name: "identity", status: "ok", message: "Access token expired; it will be refreshed on next use"})
		default:
			checks = append(checks, checkResult{name: "identity", status: "ok", message: id.UUID})
		}
	}

	// Check 4: backend
	backendUp := false
	if err := sysinfo.Reachable(ctx, cfg.Server.URL); err != nil {
		checks = append(checks, checkResult{name: "backend", status: "error", message: err.Error()})
	} else {
		backendUp = true
		checks = append(checks, checkResult{name: "backend", status: "ok", message: cfg.Server.URL})
	}

	// Check 5: pairing
	if backendUp && id.UUID != "" {
		api, _, err := openDeviceAPI()
		if err == nil && cloud.IsPaired(ctx, api) {
			checks = append(checks, checkResult{name: "pairing", status: "ok"})
		} else {
			checks = append(checks, checkResult{name: "pairing", status: "error", message: "Backend does not recognise this device"})
		}
	}

	problems := 0
	for _, c := range checks {
		fixed := false
		if doctorFix && c.fix != nil && c.status != "ok" {
			fixed = c.fix() == nil
		}

		icon := okStyle.Render("✓")
		switch {
		case fixed:
			c.message += " (fixed)"
		case c.status == "warn":
			icon = warnStyle.Render("!")
		case c.status == "error":
			icon = errStyle.Render("✗")
			problems++
		}
		line := fmt.Sprintf("  %s %s", icon, c.name)
		if c.message != "" {
			line += ": " + c.message
		}
		fmt.Fprintln(out, line)
	}

	if problems > 0 {
		fmt.Fprintf(out, "\n%d problem(s) found\n", problems)
		return errSilent
	}
	return nil
}
