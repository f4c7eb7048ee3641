package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/tokenbridge/pkg/engine"
	"github.com/openfroyo/tokenbridge/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the deployment config",
		Long: `Validate the deployment config without contacting the ledger.

This command checks:
  - YAML or CUE syntax and schema conformance
  - Address formats and required fields
  - Policy compliance (built-in and --policies Rego)`,
		Example: `  # Validate tokenbridge.yaml
  tokenbridge validate

  # Add organisation policies and re-validate on every edit
  tokenbridge validate --policies ./policies --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := newPolicyEngine(ctx, log.Logger)
			if err != nil {
				return err
			}

			err = validateOnce(ctx, cmd.OutOrStdout(), eng)
			if !watch {
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %v\n", err)
			}

			paths := append([]string{configPath}, policyPaths...)
			loader := policy.NewLoader(log.Logger)
			if err := loader.Watch(ctx, paths, func(ctx context.Context) error {
				fmt.Fprintln(cmd.OutOrStdout(), "\n--- change detected ---")
				if len(policyPaths) > 0 {
					if err := eng.LoadPolicies(ctx, policyPaths); err != nil {
						return err
					}
				}
				if err := validateOnce(ctx, cmd.OutOrStdout(), eng); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "✗ %v\n", err)
				}
				return nil
			}); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-validate when the config or policies change")

	return cmd
}

func validateOnce(ctx context.Context, out io.Writer, eng *policy.Engine) error {
	_, settings, err := loadDeployment()
	if err != nil {
		return err
	}
	if err := engine.ValidateSettings(settings); err != nil {
		return err
	}

	result, err := eng.Evaluate(ctx, policy.NewInput(settings))
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		printPolicyResult(out, settings.Network, result)
	}

	if !result.Allowed {
		first := result.Violations[0]
		return engine.NewConfigError(fmt.Sprintf("policy %s: %s", first.Policy, first.Message), nil).
			WithOperation("validate").
			WithDetail("violations", len(result.Violations))
	}
	return nil
}

func printPolicyResult(out io.Writer, network string, result *policy.Result) {
	findings := append(append([]policy.Violation{}, result.Violations...), result.Warnings...)
	if len(findings) > 0 {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEVERITY\tPOLICY\tFIELD\tMESSAGE")
		for _, v := range findings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Severity, v.Policy, v.Field, v.Message)
		}
		_ = tw.Flush()
		fmt.Fprintln(out)
	}

	if result.Allowed {
		fmt.Fprintf(out, "✓ %s: config valid (%d policies, %d findings)\n",
			network, len(result.EvaluatedPolicies), len(result.Warnings))
	}
}
