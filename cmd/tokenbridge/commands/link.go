package commands

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/tokenbridge/pkg/artifacts"
	"github.com/openfroyo/tokenbridge/pkg/config"
	"github.com/openfroyo/tokenbridge/pkg/linker"
)

func newLinkCommand() *cobra.Command {
	var (
		artifactName string
		artifactDir  string
		libs         map[string]string
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link an artifact's library placeholders offline",
		Long: `Patch every library placeholder of an artifact's object code with the given
addresses and print the linked object code. Nothing is sent to the ledger.`,
		Example: `  # Link the token implementation against a deployed SignatureChecker
  tokenbridge link --artifact FiatTokenV2_2 \
    --lib SignatureChecker=0x5FbDB2315678afecb367f032d93F642f64180aa3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir := artifactDir
			if dir == "" {
				d, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("no --artifacts given and config unusable: %w", err)
				}
				if dir, err = d.ArtifactDir(); err != nil {
					return err
				}
			}

			source, err := artifacts.NewDirSource(dir, 1)
			if err != nil {
				return err
			}
			art, err := source.Lookup(ctx, artifactName)
			if err != nil {
				return err
			}

			targets, err := parseLibraries(libs)
			if err != nil {
				return err
			}

			var refs []linker.Reference
			for _, lib := range art.Libraries() {
				target, ok := targets[lib]
				if !ok {
					return fmt.Errorf("artifact %s links library %s; pass --lib %s=0x...", art.Name, lib, lib)
				}
				refs = append(refs, linker.Resolve(art.References(lib), target)...)
			}
			for name := range targets {
				if len(art.References(name)) == 0 {
					log.Warn().Str("library", name).Msg("Artifact does not reference library")
				}
			}

			linked, err := linker.Link(art.Bytecode, refs)
			if err != nil {
				return err
			}
			if linker.Unresolved(linked) {
				return fmt.Errorf("linked object code still contains library placeholders")
			}

			log.Debug().
				Str("artifact", art.Name).
				Int("references", len(refs)).
				Msg("Artifact linked")

			fmt.Fprintln(cmd.OutOrStdout(), linked)
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactName, "artifact", "", "contract name to link")
	cmd.Flags().StringVar(&artifactDir, "artifacts", "", "build output directory (defaults to the config's)")
	cmd.Flags().StringToStringVar(&libs, "lib", nil, "library address as Name=0x...")
	_ = cmd.MarkFlagRequired("artifact")

	return cmd
}

func parseLibraries(libs map[string]string) (map[string]common.Address, error) {
	targets := make(map[string]common.Address, len(libs))
	for name, value := range libs {
		value = strings.TrimSpace(value)
		if !strings.HasPrefix(value, "0x") || !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid address for library %s: %q", name, value)
		}
		targets[name] = common.HexToAddress(value)
	}
	return targets, nil
}
