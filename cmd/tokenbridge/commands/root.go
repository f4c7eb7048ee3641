package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	envFile     string
	dbPath      string
	policyPaths []string
	jsonOutput  bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tokenbridge",
		Short: "tokenbridge - bridged token provisioner",
		Long: `tokenbridge deploys and wires a bridged fiat token on an L2 ledger:
a signature library, the token implementation and its proxy, the minter
controller and the bridge that mints against it.

Runs are idempotent. Addresses already recorded for a network are reused,
initializers that already ran are skipped and role wiring resumes where an
interrupted run stopped.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tokenbridge.yaml", "deployment config file (.yaml or .cue)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file overlaid on the config")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "ledger database path (overrides the config)")
	rootCmd.PersistentFlags().StringSliceVar(&policyPaths, "policies", nil, "additional .rego/.json policy files or directories")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newDeployCommand(version))
	rootCmd.AddCommand(newLinkCommand())
	rootCmd.AddCommand(newRecordsCommand())

	return rootCmd
}
