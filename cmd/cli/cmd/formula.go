package cmd

import (
	"github.com/spf13/cobra"

	"partquote/internal/errors"
)

func newFormulaCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Work with finish formulas",
	}
	cmd.AddCommand(newFormulaEvalCmd(opts))
	return cmd
}

func newFormulaEvalCmd(opts *options) *cobra.Command {
	var ctx contextFlags
	cmd := &cobra.Command{
		Use:   "eval FORMULA",
		Short: "Parse and evaluate a formula against a part context",
		Long: `Eval runs a formula the way a finish operation would, using the
catalog's region and hazard tables, and reports its value or the first
parse or evaluation error.

Examples:
  partquote formula eval "round(2.346, 2)"
  partquote formula eval "tiered(sa, [{upTo: 0.1, price: 18}, {price: 12}]) * regionMult(region)" --area-m2 0.05 --region EU`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app(cmd)
			if err != nil {
				return err
			}
			res := a.Engine.Composer().Evaluator().Test(args[0], ctx.context())
			if err := opts.render(cmd, res); err != nil {
				return err
			}
			switch {
			case res.ParseError != nil:
				return errors.Wrap(errors.TypeParse, "formula did not parse", res.ParseError)
			case res.EvalError != nil:
				return errors.Wrap(errors.TypeEval, "formula did not evaluate", res.EvalError)
			}
			return nil
		},
	}
	ctx.register(cmd.Flags())
	return cmd
}
