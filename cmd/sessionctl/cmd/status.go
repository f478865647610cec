package cmd

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

var (
	statusJSON     bool
	statusSecurity bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, done, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer done()

		if statusSecurity {
			return printSecurity(engine.SecurityReport())
		}

		snap := engine.Snapshot()
		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		if !snap.IsAuthenticated {
			pterm.Warning.Println("Not signed in.")
			return nil
		}

		pterm.DefaultSection.Println("Session")
		rows := pterm.TableData{
			{"FIELD", "VALUE"},
			{"User", snap.Identity.DisplayName()},
			{"Email", snap.Identity.Email},
			{"Role", snap.Identity.Role},
			{"Tenant", snap.TenantID()},
		}
		if snap.Customer != nil {
			rows = append(rows, []string{"Customer", snap.Customer.Name + " (" + snap.Customer.Code + ")"})
		}
		rows = append(rows,
			[]string{"Expires", snap.ExpiresAt.Format(time.RFC1123) + " (in " + time.Until(snap.ExpiresAt).Round(time.Second).String() + ")"},
			[]string{"Permissions", strings.Join(snap.Permissions.Names(), ", ")},
		)
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func printSecurity(r goSession.SecurityReport) error {
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	pterm.DefaultSection.Println("Security posture")
	rows := pterm.TableData{
		{"CHECK", "VALUE"},
		{"Endpoint over TLS", yesNo(r.EndpointTLS)},
		{"Storage", r.StorageKind},
		{"Survives restart", yesNo(r.PersistsAcrossRuns)},
		{"Cross-instance sync", yesNo(r.SyncEnabled)},
		{"Pre-emptive renewal", yesNo(r.PreemptiveRenewal)},
		{"Margin covers a tick", yesNo(r.MarginCoversTick)},
		{"Max replays", strconv.Itoa(r.MaxReplays)},
		{"Audit", yesNo(r.AuditEnabled)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	for _, code := range r.HighSeverityFinding {
		pterm.Error.Println(code)
	}
	return nil
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the snapshot as JSON")
	statusCmd.Flags().BoolVar(&statusSecurity, "security", false, "print the configuration posture instead of the session")
}
