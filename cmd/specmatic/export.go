package main

import (
	"io"
	"os"

	"github.com/Laisky/errors/v2"
	"github.com/spf13/cobra"

	"github.com/EmmanuelMendoza/specmatic/pkg/oasexport"
)

func (a *app) newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <contract>",
		Short: "Export a contract as an OpenAPI document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			features, err := a.loadFeatures(cmd.Context(), args)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, cerr := os.Create(output)
				if cerr != nil {
					return errors.Wrap(cerr, "create output")
				}
				defer func() {
					if cerr := file.Close(); cerr != nil && err == nil {
						err = errors.Wrap(cerr, "close output")
					}
				}()
				w = file
			}

			summary, err := oasexport.Export(cmd.Context(), features[0], w)
			if err != nil {
				return err
			}
			a.log.Infof("exported %d paths, %d operations and %d schemas", summary.Paths, summary.Operations, summary.Schemas)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
