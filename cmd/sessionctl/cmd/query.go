package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/graphql"
)

var (
	queryOperation string
	queryTenant    string
	queryVars      []string
)

var queryCmd = &cobra.Command{
	Use:   "query <graphql>",
	Short: "Run a data operation with the session credentials",
	Long: `Runs one GraphQL operation through the request pipeline. Credential faults
are recovered by renewing and replaying; an exhausted retry budget signs the
session out.

Variables are given as --var name=value; values that parse as JSON are sent
as JSON, anything else as a string.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vars, err := parseVars(queryVars)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		engine, done, err := openEngine(ctx, func(b *goSession.Builder) {
			b.WithViolationHandler(func(_ context.Context, f *goSession.Fault) {
				pterm.Warning.Printf("Not permitted: %s\n", f.Operation)
			})
		})
		if err != nil {
			return err
		}
		defer done()

		if !engine.IsAuthenticated() {
			return userError(goSession.ErrNotAuthenticated)
		}
		if queryTenant != "" {
			ctx = goSession.WithTenantID(ctx, queryTenant)
		}

		var data json.RawMessage
		err = engine.GraphQL().Do(ctx, graphql.Request{
			Query:         args[0],
			Variables:     vars,
			OperationName: queryOperation,
		}, &data)
		if err != nil {
			return userError(err)
		}

		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, out.String())
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryOperation, "operation", "", "operation name")
	queryCmd.Flags().StringVar(&queryTenant, "tenant", "", "override the tenant header for this call")
	queryCmd.Flags().StringArrayVar(&queryVars, "var", nil, "variable as name=value (repeatable)")
}

func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: want name=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		vars[name] = v
	}
	return vars, nil
}
