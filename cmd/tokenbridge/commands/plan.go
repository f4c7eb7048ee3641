package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/tokenbridge/pkg/engine"
)

// planEntry is one line of the plan output.
type planEntry struct {
	Resource string `json:"resource"`
	Artifact string `json:"artifact"`
	Action   string `json:"action"`
	Address  string `json:"address,omitempty"`
}

func newPlanCommand() *cobra.Command {
	var dotFile string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a deploy would reuse and create",
		Long: `Show, per resource, whether a deploy would reuse a recorded or overridden
address, create a new resource, or skip it.

The plan is computed from the config and the stored record only. No ledger
call is made, so resources are not probed.`,
		Example: `  # Print the plan
  tokenbridge plan

  # Write the dependency graph for Graphviz
  tokenbridge plan --dot plan.dot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, settings, err := loadDeployment()
			if err != nil {
				return err
			}

			store, err := openStore(ctx, d.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			settings, err = withStoredRecord(ctx, store, settings)
			if err != nil {
				return err
			}

			plan, err := engine.BuildPlan(settings)
			if err != nil {
				return err
			}

			log.Debug().
				Str("network", settings.Network).
				Int("resources", len(plan.Resources)).
				Msg("Plan built")

			if dotFile != "" {
				if err := os.WriteFile(dotFile, []byte(plan.ToDOT()), 0o644); err != nil {
					return fmt.Errorf("failed to write DOT file: %w", err)
				}
			}

			entries := planEntries(plan)
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RESOURCE\tARTIFACT\tACTION\tADDRESS")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Resource, e.Artifact, e.Action, e.Address)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&dotFile, "dot", "", "write the plan graph in DOT format to this file")

	return cmd
}

func planEntries(plan *engine.Plan) []planEntry {
	entries := make([]planEntry, 0, len(plan.Resources))
	for i := range plan.Resources {
		spec := &plan.Resources[i]
		e := planEntry{Resource: spec.ID, Artifact: spec.Artifact}
		switch {
		case spec.Override != nil:
			e.Action = string(engine.ResourceReused)
			e.Address = spec.Override.Hex()
		case spec.Optional && !spec.Enabled:
			e.Action = string(engine.ResourceSkipped)
		default:
			e.Action = string(engine.ResourceDeployed)
		}
		entries = append(entries, e)
	}
	return entries
}
