package cmd

import (
	"github.com/spf13/cobra"

	"partquote/core/determinism"
	"partquote/core/output"
)

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Load the catalog and list what it defines",
		Long: `Catalog loads every .hcl file under the catalog path, validates the
finish operations and cost models, and lists them. Use it to check catalog
edits before deploying them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app(cmd)
			if err != nil {
				return err
			}
			cat := a.Catalog
			return opts.render(cmd, &output.CatalogSummary{
				Files:      cat.Files,
				Operations: cat.Operations.Operations(),
				CostModels: cat.CostModels,
				Regions:    determinism.SortedKeys(cat.Tables.Regions),
				Hazards:    determinism.SortedKeys(cat.Tables.Hazards),
			})
		},
	}
}
