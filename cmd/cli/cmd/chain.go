package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"partquote/core/finish"
	"partquote/core/formula"
	"partquote/core/geometry"
	"partquote/core/output"
	"partquote/internal/errors"
)

// contextFlags binds the formula context to command flags
type contextFlags struct {
	areaM2    float64
	volumeCM3 float64
	qty       float64
	material  string
	region    string
	color     string
}

func (c *contextFlags) register(f *pflag.FlagSet) {
	f.Float64Var(&c.areaM2, "area-m2", 0, "surface area in m2")
	f.Float64Var(&c.volumeCM3, "volume-cm3", 0, "volume in cm3")
	f.Float64Var(&c.qty, "qty", 1, "quantity")
	f.StringVar(&c.material, "material", "", "material id")
	f.StringVar(&c.region, "region", "", "region")
	f.StringVar(&c.color, "color", "", "color")
}

func (c *contextFlags) context() formula.Context {
	return formula.Context{
		AreaM2:    c.areaM2,
		VolumeCM3: c.volumeCM3,
		Qty:       c.qty,
		Material:  c.material,
		Region:    c.region,
		Color:     c.color,
	}
}

func newChainCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Validate and price finish chains",
	}
	cmd.AddCommand(newChainValidateCmd(opts), newChainComposeCmd(opts))
	return cmd
}

func newChainValidateCmd(opts *options) *cobra.Command {
	var process string
	cmd := &cobra.Command{
		Use:   "validate CODE...",
		Short: "Check a finish chain against the catalog",
		Long: `Validate numbers the given operation codes 1..N in order and reports
every problem: unknown or duplicate operations, missing prerequisites and
incompatible pairs. The command fails when the chain is invalid.

Examples:
  partquote chain validate BEAD_BLAST ANODIZE
  partquote chain validate ANODIZE --process sheet_metal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app(cmd)
			if err != nil {
				return err
			}
			v := a.Engine.Composer().Validator()
			errs := v.ValidateFor(geometry.ProcessType(process), finish.StepsFromCodes(args))
			if errs == nil {
				errs = finish.ValidationErrors{}
			}
			res := &output.ChainValidation{Valid: len(errs) == 0, Policy: v.Policy(), Errors: errs}
			if err := opts.render(cmd, res); err != nil {
				return err
			}
			if !res.Valid {
				return errors.Validation("finish chain is invalid", errs)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&process, "process", "", "process type of the part")
	return cmd
}

func newChainComposeCmd(opts *options) *cobra.Command {
	var (
		process string
		ctx     contextFlags
	)
	cmd := &cobra.Command{
		Use:   "compose CODE...",
		Short: "Validate a finish chain and compute its cost and lead time",
		Long: `Compose evaluates each operation's cost and lead-day formulas against
the given part context and aggregates them by QoS mode.

Examples:
  partquote chain compose BEAD_BLAST ANODIZE --area-m2 0.05 --qty 10 --region EU`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app(cmd)
			if err != nil {
				return err
			}
			chain, err := a.Engine.Composer().ComposeFor(geometry.ProcessType(process), finish.StepsFromCodes(args), ctx.context())
			if err != nil {
				return err
			}
			return opts.render(cmd, chain)
		},
	}
	cmd.Flags().StringVar(&process, "process", "", "process type of the part")
	ctx.register(cmd.Flags())
	return cmd
}
