package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/mur-run/murdev/internal/identity"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Inspect or remove the stored device credentials",
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored identity (tokens redacted)",
	RunE:  runIdentityShow,
}

var identityClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored identity",
	RunE:  runIdentityClear,
}

var identityYes bool

func init() {
	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityShowCmd, identityClearCmd)
	identityClearCmd.Flags().BoolVarP(&identityYes, "yes", "y", false, "don't ask for confirmation")
}

type identityView struct {
	Path      string    `json:"path"`
	UUID      string    `json:"uuid"`
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

func runIdentityShow(cmd *cobra.Command, args []string) error {
	store, err := identity.NewStore(cfg.Identity.Path)
	if err != nil {
		return err
	}
	id := store.Get()
	return printJSON(cmd.OutOrStdout(), identityView{
		Path:      store.Path(),
		UUID:      id.UUID,
		Access:    redact(id.Access),
		Refresh:   redact(id.Refresh),
		ExpiresAt: id.ExpiresAt,
		Expired:   id.IsExpired(time.Now()),
	})
}

func runIdentityClear(cmd *cobra.Command, args []string) error {
	store, err := identity.NewStore(cfg.Identity.Path)
	if err != nil {
		return err
	}

	if !identityYes {
		if !isTerminal(os.Stdin) {
			return errors.New("refusing to clear identity without --yes")
		}
		confirm := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Delete %s? The device will need to be paired again.", store.Path()),
		}
		if err := survey.AskOne(prompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	if err := store.Clear(); err != nil {
		return err
	}
	log.Info(cmd.Context(), "identity cleared", "path", store.Path())
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Identity cleared")
	return nil
}
