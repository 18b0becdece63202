package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"qthlookup/lib/hamqth"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	lookupBio       bool
	lookupActivity  bool
	lookupNoProfile bool
	lookupJson      bool
)

func init() {
	lookupCmd.Flags().BoolVar(&lookupBio, "bio", false, "Include the operator's biography.")
	lookupCmd.Flags().BoolVar(&lookupActivity, "activity", false, "Include recent activity.")
	lookupCmd.Flags().BoolVar(&lookupNoProfile, "no-profile", false, "Skip the profile lookup.")
	lookupCmd.Flags().BoolVar(&lookupJson, "json", false, "Print the result as json.")
	rootCmd.AddCommand(lookupCmd)
}

func lookup(ctx context.Context, e *env, callsign string, opts hamqth.LookupOptions) (hamqth.Result, error) {
	if !e.client.HasLoginInfo() {
		return nil, fmt.Errorf("%w, run `qthlookup login` first", hamqth.ErrNoCredentials)
	}
	return e.client.Lookup(ctx, callsign, opts)
}

func printResult(out io.Writer, res hamqth.Result) {
	keys := make([]string, 0, len(res))
	for k := range res {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, res[k]})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <callsign> [--bio] [--activity] [--no-profile] [--json]",
	Short: "Prints what hamqth.com knows about a callsign.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := lookup(cmd.Context(), e, args[0], hamqth.LookupOptions{
			Profile:  !lookupNoProfile,
			Bio:      lookupBio,
			Activity: lookupActivity,
		})
		if err != nil {
			return err
		}

		if lookupJson {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(res)
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}
