// Package app wires configuration, the catalog and the quoting engine
// together for the CLI and the server.
package app

import (
	"context"

	"go.uber.org/zap"

	"partquote/adapters/catalog"
	"partquote/core/finish"
	"partquote/core/formula"
	"partquote/core/quote"
	"partquote/internal/config"
)

// App is a ready-to-use engine and the catalog it was built from
type App struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Engine  *quote.Engine
}

// Build loads the catalog named by cfg and constructs the engine
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy, err := finish.ParsePolicy(cfg.Pricing.PrerequisitePolicy)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.NewLoader(logger.Named("catalog")).Load(ctx, cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	engine := quote.NewEngine(
		cat.CostModels,
		cat.Composer(policy, formula.WithCacheSize(cfg.Pricing.FormulaCacheSize)),
		quote.EngineConfig{
			DefaultCostModel: cfg.Catalog.CostModel,
			Currency:         cfg.Pricing.Currency,
		},
		quote.WithLogger(logger.Named("quote")),
	)
	return &App{Config: cfg, Catalog: cat, Engine: engine}, nil
}
