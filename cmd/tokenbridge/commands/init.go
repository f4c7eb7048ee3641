package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/tokenbridge/pkg/config"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a tokenbridge workspace",
		Long: `Initialize a workspace: create the ledger database, run its migrations and
write a sample deployment config.`,
		Example: `  # Initialize in the current directory
  tokenbridge init

  # Write the config elsewhere and keep the ledger in /var/lib
  tokenbridge init --config deploy/base.yaml --db /var/lib/tokenbridge/ledger.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := dbPath
			if path == "" {
				path = config.DefaultStorePath
			}

			log.Info().
				Str("config", configPath).
				Str("db", path).
				Msg("Initializing workspace")

			store, err := openStore(ctx, path)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Initialized ledger database: %s\n", path)

			_, err = os.Stat(configPath)
			switch {
			case err == nil && !force:
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Config file already exists: %s\n", configPath)
				return nil
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("failed to stat config file: %w", err)
			}

			if err := os.WriteFile(configPath, []byte(config.SampleYAML), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created config file: %s\n", configPath)
			fmt.Fprintln(cmd.OutOrStdout(), "\nEdit the addresses, then run 'tokenbridge validate'.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
