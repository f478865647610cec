package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var (
	loginEmail    string
	loginPassword string
	loginMFA      string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	Long: `Signs in with email and password. When the account has MFA enabled and no
--mfa code was given, the code is prompted for interactively.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, done, err := openEngine(ctx, nil)
		if err != nil {
			return err
		}
		defer done()

		if loginPassword == "" {
			loginPassword, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
			if err != nil {
				return err
			}
		}

		in := goSession.SignInInput{Email: loginEmail, Password: loginPassword, MFACode: loginMFA}
		snap, err := engine.SignIn(ctx, in)
		if errors.Is(err, goSession.ErrMFARequired) && loginMFA == "" {
			in.MFACode, err = pterm.DefaultInteractiveTextInput.Show("Authenticator code")
			if err != nil {
				return err
			}
			snap, err = engine.SignIn(ctx, in)
		}
		if err != nil {
			return userError(err)
		}

		pterm.Success.Printf("Signed in as %s\n", snap.Identity.DisplayName())
		if snap.Customer != nil {
			pterm.Info.Printf("Customer: %s (%s)\n", snap.Customer.Name, snap.Customer.Code)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when empty)")
	loginCmd.Flags().StringVar(&loginMFA, "mfa", "", "authenticator code")
	_ = loginCmd.MarkFlagRequired("email")
}
