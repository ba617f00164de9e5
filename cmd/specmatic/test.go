package main

import (
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/spf13/cobra"

	"github.com/EmmanuelMendoza/specmatic/pkg/testrunner"
)

func (a *app) newTestCmd() *cobra.Command {
	var (
		baseURL     string
		parallelism int
		generative  bool
		names       []string
	)
	cmd := &cobra.Command{
		Use:   "test [contract...]",
		Short: "Run the contracts as tests against a live service",
		Long: `Generates requests from every scenario, sends them to the service and
checks each response against the contract. Exits non-zero when a test fails.

Example:
  specmatic test orders.yaml --testBaseURL http://localhost:8080 --generative`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("testBaseURL") {
				a.cfg.Test.BaseURL = baseURL
			}
			if flags.Changed("parallelism") {
				a.cfg.Test.Parallelism = parallelism
			}
			if flags.Changed("generative") {
				a.cfg.Test.Generative = generative
			}
			if err := structValidator.Var(a.cfg.Test.BaseURL, "required,url"); err != nil {
				return errors.New("a valid test base URL is required: pass --testBaseURL or set test.baseURL")
			}
			if err := a.cfg.validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			features, err := a.loadFeatures(ctx, args)
			if err != nil {
				return err
			}
			executor := testrunner.NewExecutor(a.cfg.Test.BaseURL, &http.Client{Timeout: a.cfg.timeout()})
			report, runErr := testrunner.Run(ctx, features, executor, testrunner.Config{
				Parallelism: a.cfg.Test.Parallelism,
				Names:       names,
			})
			renderReport(cmd.OutOrStdout(), report, useColor(cmd.OutOrStdout()))
			if runErr != nil {
				return runErr
			}
			if report.Failed() > 0 {
				return errors.Errorf("%d of %d tests failed", report.Failed(), len(report.Outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "testBaseURL", "", "base URL of the service under test")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "concurrent requests (default 4)")
	cmd.Flags().BoolVar(&generative, "generative", false, "also send requests the contract should reject")
	cmd.Flags().StringSliceVar(&names, "filter-name", nil, "run only the named scenarios")
	return cmd
}
