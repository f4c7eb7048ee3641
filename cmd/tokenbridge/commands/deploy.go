package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/tokenbridge/pkg/artifacts"
	"github.com/openfroyo/tokenbridge/pkg/engine"
	"github.com/openfroyo/tokenbridge/pkg/telemetry"
	"github.com/openfroyo/tokenbridge/pkg/transports/rpc"
)

func newDeployCommand(version string) *cobra.Command {
	var (
		rpcURL         string
		chainID        uint64
		gasLimit       uint64
		receiptTimeout time.Duration
		logLevel       string
		logFormat      string
		metricsAddr    string
		traceExporter  string
		otlpEndpoint   string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision and wire the token on the ledger",
		Long: `Provision the resources, run the token initializers, wire the minter
controller and hand the proxies to the proxy admin.

Transactions are sent with eth_sendTransaction from the configured deployer,
which must be an account managed by the node. The deployment record is saved
once provisioning returns, so a failed run resumes from the stored addresses
when it is repeated.`,
		Example: `  # Deploy against the URL in the config
  tokenbridge deploy

  # Deploy to a local node, exposing metrics and printing spans
  tokenbridge deploy --rpc-url http://127.0.0.1:8545 --metrics-addr :9090 --trace stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, settings, err := loadDeployment()
			if err != nil {
				return err
			}
			if rpcURL == "" {
				rpcURL = d.RPCURL
			}
			if rpcURL == "" {
				return engine.NewConfigError("rpc url is required (--rpc-url or rpc_url)", nil).
					WithDetail("field", "rpc_url")
			}

			telCfg := telemetry.DefaultConfig()
			telCfg.ServiceVersion = version
			telCfg.Environment = settings.Network
			telCfg.Logging.Level = logLevel
			telCfg.Logging.Format = logFormat
			if metricsAddr != "" {
				telCfg.Metrics.Enabled = true
				telCfg.Metrics.ListenAddress = metricsAddr
			}
			if traceExporter != "" {
				telCfg.Tracing.Enabled = true
				telCfg.Tracing.Exporter = traceExporter
				telCfg.Tracing.Endpoint = otlpEndpoint
			}

			tel, err := telemetry.NewTelemetry(telCfg)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tel.Shutdown(shutdownCtx)
			}()
			if err := tel.StartMetricsServer(); err != nil {
				return err
			}
			ctx = tel.WithContext(ctx)
			logger := tel.Logger.WithNetwork(settings.Network).Zerolog()

			ctx, span := tel.Tracer.StartCommandSpan(ctx, "deploy", settings.Network)
			defer span.End()

			artifactDir, err := d.ArtifactDir()
			if err != nil {
				return err
			}
			source, err := artifacts.NewDirSource(artifactDir, d.Artifacts.CacheSize)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, d.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			tel.Events.Subscribe(storeEvents(store), nil)

			preflight, err := newPolicyEngine(ctx, logger)
			if err != nil {
				return err
			}

			rpcCfg := rpc.DefaultConfig(rpcURL, settings.Deployer)
			rpcCfg.ChainID = chainID
			rpcCfg.GasLimit = gasLimit
			if receiptTimeout > 0 {
				rpcCfg.ReceiptTimeout = receiptTimeout
			}
			client, err := rpc.Dial(ctx, rpcCfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			orch, err := engine.NewOrchestrator(engine.Options{
				Source:      source,
				Ledger:      client,
				Caller:      client,
				Accounts:    client,
				Records:     store,
				Writer:      store,
				PhaseLedger: store,
				Cursor:      store,
				Runs:        store,
				Preflight:   preflight,
				Events:      eventBridge{publisher: tel.Events},
				Metrics:     tel.Metrics,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			result, runErr := orch.Run(ctx, settings)
			if runErr != nil {
				telemetry.RecordError(span, runErr)
				recordRunError(tel.Metrics, runErr)
			}
			if result != nil {
				if jsonOutput {
					if err := printJSON(cmd.OutOrStdout(), result); err != nil {
						return err
					}
				} else {
					printRunResult(cmd.OutOrStdout(), result)
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "node JSON-RPC endpoint (overrides rpc_url)")
	cmd.Flags().Uint64Var(&chainID, "chain-id", 0, "refuse to run unless the node reports this chain ID")
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 0, "gas limit per transaction (0 lets the node estimate)")
	cmd.Flags().DurationVar(&receiptTimeout, "receipt-timeout", 0, "how long to wait for a transaction to be mined")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&traceExporter, "trace", "", "enable tracing with this exporter (stdout, otlp)")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector endpoint")

	return cmd
}

// recordRunError counts a failed run by error class and code.
func recordRunError(m *telemetry.Metrics, err error) {
	class := "unclassified"
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		class = string(ee.Class)
	}
	m.RecordError(class, engine.CodeOf(err))
}

func printRunResult(out io.Writer, result *engine.RunResult) {
	fmt.Fprintf(out, "Run %s on %s: %s\n\n", result.RunID, result.Network, result.Status)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tACTION\tADDRESS")
	for _, r := range result.Resources {
		addr := ""
		if r.Action != engine.ResourceSkipped {
			addr = r.Address.Hex()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Action, addr)
	}
	_ = tw.Flush()

	if len(result.Phases) > 0 {
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PHASE\tOUTCOME\tREASON")
		for _, p := range result.Phases {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Phase, p.Outcome, p.Reason)
		}
		_ = tw.Flush()
	}

	if result.Wiring != nil {
		switch {
		case result.Wiring.AlreadyWired:
			fmt.Fprintln(out, "\nController: already owned by governance")
		default:
			fmt.Fprintf(out, "\nController: %d wiring steps executed (resumed at %d)\n",
				len(result.Wiring.Executed), result.Wiring.ResumedFrom)
		}
	}
	if result.Admin != "" {
		fmt.Fprintf(out, "Token proxy admin: %s\n", result.Admin)
	}
}
