// Command specmatic serves contracts as stubs, runs them as tests against a
// live service, compares contract versions and exports them to OpenAPI.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Laisky/errors/v2"
	"github.com/spf13/cobra"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pkg/contractfile"
	"github.com/EmmanuelMendoza/specmatic/pkg/testrunner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by the subcommands.
type app struct {
	stderr io.Writer

	cfgFile  string
	logLevel string

	cfg config
	log specmatic.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr, log: specmatic.NopLogger()}

	root := &cobra.Command{
		Use:   "specmatic",
		Short: "Contract-driven stubs and tests",
		Long: `specmatic turns API contracts into stub servers and contract tests.

Examples:
  specmatic stub orders.yaml --data ./stubs
  specmatic test orders.yaml --testBaseURL http://localhost:8080
  specmatic compare orders-v1.yaml orders-v2.yaml
  specmatic export orders.yaml -o openapi.yaml`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./"+defaultConfigFile+" when present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: error, warn, info or debug")

	root.AddCommand(a.newStubCmd(), a.newTestCmd(), a.newCompareCmd(), a.newExportCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(a.cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
		if err := cfg.validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.log = specmatic.NewLogger(specmatic.ParseLogLevel(cfg.LogLevel), a.stderr)
	return nil
}

// contracts returns the contract paths from args, else from the config.
func (a *app) contracts(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(a.cfg.Contracts) > 0 {
		return a.cfg.Contracts, nil
	}
	return nil, errors.New("no contracts given: pass contract files or list them under contracts in " + defaultConfigFile)
}

// loader resolves references by running the referenced contracts against
// their services.
func (a *app) loader(ctx context.Context) *contractfile.Loader {
	opts := a.cfg.options()
	opts.Logger = a.log
	client := &http.Client{Timeout: a.cfg.timeout()}
	return contractfile.NewLoader(opts, testrunner.Exporter(ctx, client), 0)
}

func (a *app) loadFeatures(ctx context.Context, args []string) ([]*specmatic.Feature, error) {
	paths, err := a.contracts(args)
	if err != nil {
		return nil, err
	}
	features, err := a.loader(ctx).LoadAll(paths)
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		a.log.Infof("loaded contract %s (%d scenarios)", f.Name, len(f.Scenarios))
	}
	return features, nil
}
