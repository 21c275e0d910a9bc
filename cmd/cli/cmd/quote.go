package cmd

import (
	"github.com/spf13/cobra"

	"partquote/core/costmodel"
	"partquote/core/quote"
)

func newQuoteCmd(opts *options) *cobra.Command {
	var (
		input     string
		costModel string
		quantity  int
		leadTime  string
		chain     []string
		region    string
		color     string
		breaks    []int
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a part line from a cost model and an optional finish chain",
		Long: `Quote reads a quote request (JSON) and prices it against the catalog's
cost model. Flags override the corresponding request fields.

Examples:
  partquote quote --input part.json
  partquote quote --input part.json --quantity 50 --lead-time expedited
  partquote quote --input part.json --chain BEAD_BLAST,ANODIZE --region EU`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req quote.Request
			if err := readInput(cmd, input, &req); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("cost-model") {
				req.CostModel = costModel
			}
			if flags.Changed("quantity") {
				req.Selection.Quantity = quantity
			}
			if flags.Changed("lead-time") {
				req.Selection.LeadTimeOption = leadTime
			}
			if flags.Changed("chain") {
				req.FinishChain = chain
			}
			if flags.Changed("region") {
				req.Region = region
			}
			if flags.Changed("color") {
				req.Color = color
			}
			if flags.Changed("breaks") {
				req.PriceBreaks = breaks
			}
			if req.Selection.LeadTimeOption == "" {
				req.Selection.LeadTimeOption = costmodel.DefaultLeadTime
			}

			a, err := opts.app(cmd)
			if err != nil {
				return err
			}
			line, err := a.Engine.Quote(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return opts.render(cmd, line)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "-", "quote request JSON file (- for stdin)")
	f.StringVar(&costModel, "cost-model", "", "cost model name")
	f.IntVarP(&quantity, "quantity", "q", 0, "quantity")
	f.StringVar(&leadTime, "lead-time", "", "lead time option")
	f.StringSliceVar(&chain, "chain", nil, "finish operation codes, in order")
	f.StringVar(&region, "region", "", "region for finish pricing")
	f.StringVar(&color, "color", "", "finish color")
	f.IntSliceVar(&breaks, "breaks", nil, "extra quantities to price")
	return cmd
}
