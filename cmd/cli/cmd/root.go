// Package cmd provides the CLI commands for partquote.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"partquote/core/output"
	"partquote/internal/app"
	"partquote/internal/config"
	"partquote/internal/logging"
)

// Version is the CLI version, overridden at build time
var Version = "0.1.0"

// options holds the persistent flags shared by every subcommand
type options struct {
	cfgFile     string
	catalogPath string
	format      string
	verbose     bool
	noColor     bool

	cfg *config.Config
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "partquote",
		Short: "Price manufactured parts and their finish chains",
		Long: `partquote prices CNC, sheet metal and molded parts from geometry
metrics and a cost model, and validates and prices finish chains
(bead blast, anodize, passivation ...) defined in an HCL catalog.

Examples:
  partquote quote --input part.json
  partquote price --input factors.json --quantities 1,10,100
  partquote chain validate BEAD_BLAST ANODIZE --process cnc_milling
  partquote formula eval "tiered(sa, [{upTo: 0.1, price: 18}, {price: 12}])" --area-m2 0.05`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (JSON)")
	pf.StringVar(&opts.catalogPath, "catalog", "", "catalog directory or .hcl file (overrides config)")
	pf.StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newQuoteCmd(opts),
		newPriceCmd(opts),
		newChainCmd(opts),
		newFormulaCmd(opts),
		newCatalogCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *options) init() error {
	cfg := config.Default()
	if o.cfgFile != "" {
		loaded, err := config.Load(o.cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if o.catalogPath != "" {
		cfg.Catalog.Path = o.catalogPath
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	} else if o.cfgFile == "" {
		cfg.Logging.Level = "warn"
	}
	o.cfg = cfg

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	return nil
}

func (o *options) app(cmd *cobra.Command) (*app.App, error) {
	return app.Build(cmd.Context(), o.cfg, logging.Logger)
}

func (o *options) render(cmd *cobra.Command, v interface{}) error {
	format, err := output.ParseFormat(o.format)
	if err != nil {
		return err
	}
	return output.NewRenderer(cmd.OutOrStdout(), format, o.noColor).Render(v)
}

// readInput decodes a JSON file into dst. "-" reads stdin.
func readInput(cmd *cobra.Command, path string, dst interface{}) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "partquote version %s\n", Version)
		},
	}
}
