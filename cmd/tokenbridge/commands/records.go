package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/tokenbridge/pkg/config"
	"github.com/openfroyo/tokenbridge/pkg/stores"
)

func newRecordsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect the stored deployment records",
		Long: `Inspect the deployment records, runs and events kept in the ledger
database. Records are written only by successful deploy runs.`,
	}

	cmd.AddCommand(newRecordsListCommand())
	cmd.AddCommand(newRecordsExportCommand())
	cmd.AddCommand(newRecordsRunsCommand())
	cmd.AddCommand(newRecordsEventsCommand())

	return cmd
}

// storePath resolves the ledger database without requiring a valid config.
func storePath() string {
	if dbPath != "" {
		return dbPath
	}
	if d, err := config.Load(configPath); err == nil && d.Store.Path != "" {
		return d.Store.Path
	}
	return config.DefaultStorePath
}

func newRecordsListCommand() *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded resources",
		Example: `  # Every network
  tokenbridge records list

  # One network
  tokenbridge records list --network base-sepolia`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, storePath())
			if err != nil {
				return err
			}
			defer store.Close()

			networks := []string{network}
			if network == "" {
				if networks, err = store.ListNetworks(ctx); err != nil {
					return err
				}
			}

			var all []*stores.Deployment
			for _, n := range networks {
				deployments, err := store.ListDeployments(ctx, n)
				if err != nil {
					return err
				}
				all = append(all, deployments...)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), all)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NETWORK\tRESOURCE\tADDRESS\tUPDATED")
			for _, dep := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", dep.Network, dep.ResourceID, dep.Address, dep.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&network, "network", "n", "", "only this network")

	return cmd
}

func newRecordsExportCommand() *cobra.Command {
	var (
		network string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a network's record as JSON",
		Long: `Export a network's deployment record as a JSON object of resource ID to
address, the shape accepted by the overrides section of a config.`,
		Example: `  tokenbridge records export --network base-sepolia --out base-sepolia.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, storePath())
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.LoadRecord(ctx, network)
			if err != nil {
				return err
			}
			if len(record) == 0 {
				return fmt.Errorf("no record stored for network %s", network)
			}

			out := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outFile, err)
				}
				defer f.Close()
				out = f
			}

			exported := make(map[string]string, len(record))
			for id, addr := range record {
				exported[id] = addr.Hex()
			}
			return printJSON(out, exported)
		},
	}

	cmd.Flags().StringVarP(&network, "network", "n", "", "network to export")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write to this file instead of stdout")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}

func newRecordsRunsCommand() *cobra.Command {
	var (
		network string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, storePath())
			if err != nil {
				return err
			}
			defer store.Close()

			var filter *string
			if network != "" {
				filter = &network
			}
			runs, err := store.ListRuns(ctx, filter, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), runs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tNETWORK\tSTATUS\tSTARTED\tERROR")
			for _, r := range runs {
				errMsg := ""
				if r.Error != nil {
					errMsg = *r.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Network, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), errMsg)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&network, "network", "n", "", "only this network")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	return cmd
}

func newRecordsEventsCommand() *cobra.Command {
	var (
		runID string
		level string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the event log of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, storePath())
			if err != nil {
				return err
			}
			defer store.Close()

			var runFilter *string
			if runID != "" {
				runFilter = &runID
			}
			var levelFilter *stores.EventLevel
			if level != "" {
				l := stores.EventLevel(level)
				levelFilter = &l
			}

			events, err := store.GetEvents(ctx, runFilter, levelFilter, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), events)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tLEVEL\tTYPE\tRESOURCE\tMESSAGE")
			for _, e := range events {
				resource := ""
				if e.ResourceID != nil {
					resource = *e.ResourceID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Format("15:04:05"), e.Level, e.Type, resource, e.Message)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "only this run")
	cmd.Flags().StringVar(&level, "level", "", "only this level (debug, info, warning, error)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")

	return cmd
}
