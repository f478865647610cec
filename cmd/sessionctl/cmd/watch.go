package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the session alive and print every change",
	Long: `Runs the renewal scheduler and the cross-instance synchronizer until
interrupted. A sign-out in another sessionctl or application sharing the same
storage shows up here immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg.Audit.Enabled = true
		sink := goSession.NewLogSink(newLogger().Level(zerolog.InfoLevel))
		engine, done, err := openEngine(ctx, func(b *goSession.Builder) {
			b.WithAuditSink(sink).WithSignInRedirector(func(context.Context, error) {
				pterm.Warning.Println("Session ended; run `sessionctl login` to sign in again.")
			})
		})
		if err != nil {
			return err
		}
		defer done()

		unsubscribe := engine.Subscribe(printChange)
		defer unsubscribe()
		printChange(engine.Snapshot())

		<-ctx.Done()
		return nil
	},
}

func printChange(snap goSession.Snapshot) {
	if !snap.IsAuthenticated {
		pterm.Info.Println("signed out")
		return
	}
	pterm.Info.Printf("signed in as %s, credential valid until %s\n",
		snap.Identity.DisplayName(), snap.ExpiresAt.Format(time.TimeOnly))
}
