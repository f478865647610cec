package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session and remove it from storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, done, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer done()

		if !engine.IsAuthenticated() {
			pterm.Info.Println("Not signed in.")
			return nil
		}

		err = engine.SignOut(cmd.Context())
		if errors.Is(err, goSession.ErrSignOutIncomplete) {
			pterm.Warning.Println("Signed out locally; the server could not be reached to revoke the session.")
			return nil
		}
		if err != nil {
			return err
		}
		pterm.Success.Println("Signed out.")
		return nil
	},
}
