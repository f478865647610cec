package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var signupInput goSession.SignUpInput

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account under a customer and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, done, err := openEngine(ctx, nil)
		if err != nil {
			return err
		}
		defer done()

		if signupInput.Password == "" {
			signupInput.Password, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
			if err != nil {
				return err
			}
		}

		snap, err := engine.SignUp(ctx, signupInput)
		if err != nil {
			return userError(err)
		}
		pterm.Success.Printf("Account created for %s\n", snap.Identity.DisplayName())
		if !snap.Identity.IsEmailVerified {
			pterm.Warning.Println("Check your inbox to verify the email address.")
		}
		return nil
	},
}

func init() {
	f := signupCmd.Flags()
	f.StringVar(&signupInput.CustomerCode, "customer-code", "", "customer code to join")
	f.StringVar(&signupInput.Email, "email", "", "account email")
	f.StringVar(&signupInput.Password, "password", "", "account password (prompted when empty)")
	f.StringVar(&signupInput.FirstName, "first-name", "", "first name")
	f.StringVar(&signupInput.LastName, "last-name", "", "last name")
	_ = signupCmd.MarkFlagRequired("customer-code")
	_ = signupCmd.MarkFlagRequired("email")
}
