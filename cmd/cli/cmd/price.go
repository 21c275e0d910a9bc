package cmd

import (
	"github.com/spf13/cobra"

	"partquote/core/quote"
)

func newPriceCmd(opts *options) *cobra.Command {
	var (
		input      string
		quantity   int
		quantities []int
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a part against explicit cost factors",
		Long: `Price reads a pricing request (JSON) holding metrics and resolved cost
factors and prints the per-part breakdown. No catalog is needed.

Examples:
  partquote price --input factors.json
  partquote price --input factors.json --quantities 1,10,100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req quote.PriceRequest
			if err := readInput(cmd, input, &req); err != nil {
				return err
			}
			if cmd.Flags().Changed("quantity") {
				req.Quantity = quantity
			}
			if cmd.Flags().Changed("quantities") {
				req.Quantities = quantities
			}
			priced, err := quote.Price(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return opts.render(cmd, priced)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "-", "pricing request JSON file (- for stdin)")
	f.IntVarP(&quantity, "quantity", "q", 0, "quantity")
	f.IntSliceVar(&quantities, "quantities", nil, "extra quantities to price")
	return cmd
}
