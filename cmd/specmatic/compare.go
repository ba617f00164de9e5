package main

import (
	"fmt"

	"github.com/Laisky/errors/v2"
	"github.com/spf13/cobra"

	"github.com/EmmanuelMendoza/specmatic"
)

func (a *app) newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <older> <newer>",
		Short: "Check that a newer contract is backward compatible",
		Long: `Checks that every request the older contract accepted is still accepted,
and that every response the newer contract sends is still one the older
contract described. Exits non-zero when the newer contract breaks consumers.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			features, err := a.loadFeatures(cmd.Context(), args)
			if err != nil {
				return err
			}
			results := specmatic.TestBackwardCompatibility(features[0], features[1])
			fmt.Fprintln(cmd.OutOrStdout(), results.Report())
			if !results.Success() {
				return errors.Errorf("%s is not backward compatible with %s (%d failures)", args[1], args[0], results.FailureCount())
			}
			return nil
		},
	}
}
