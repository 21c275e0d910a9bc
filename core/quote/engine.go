// Package quote provides the quoting engine: one call resolves cost factors,
// prices the part, composes its finish chain, and returns a complete quote line.
// CLI and HTTP are thin wrappers around this engine.
package quote

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"partquote/core/costmodel"
	"partquote/core/determinism"
	"partquote/core/finish"
	"partquote/core/formula"
	"partquote/core/geometry"
	"partquote/core/pricing"
	"partquote/internal/errors"
)

// Engine is the primary API for quoting. It holds only immutable
// configuration and is safe for concurrent use.
type Engine struct {
	models   map[string]*costmodel.CostModel
	composer *finish.Composer
	config   EngineConfig
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time
}

// EngineConfig configures the quoting engine
type EngineConfig struct {
	// DefaultCostModel is used when a request names none
	DefaultCostModel string

	// Currency is reported when a cost model leaves it empty
	Currency string
}

// Option customizes an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator replaces the uuid line id generator
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithClock replaces the wall clock used for QuotedAt
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// NewEngine creates a quoting engine over the given cost models and finish
// composer. composer may be nil when no finish catalog is configured.
func NewEngine(models []*costmodel.CostModel, composer *finish.Composer, config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		models:   make(map[string]*costmodel.CostModel, len(models)),
		composer: composer,
		config:   config,
		logger:   zap.NewNop(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, m := range models {
		e.models[m.Name] = m
	}
	if e.config.Currency == "" {
		e.config.Currency = "USD"
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CostModels returns the configured cost model names, sorted
func (e *Engine) CostModels() []string {
	names := make([]string, 0, len(e.models))
	for name := range e.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CostModel returns the model for name, or the default model for ""
func (e *Engine) CostModel(name string) (*costmodel.CostModel, error) {
	if name == "" {
		name = e.config.DefaultCostModel
	}
	m, ok := e.models[name]
	if !ok {
		return nil, errors.NotFound("cost model", name)
	}
	return m, nil
}

// DefaultCostModel returns the name used when a request names no model
func (e *Engine) DefaultCostModel() string { return e.config.DefaultCostModel }

// Composer returns the finish chain composer, which may be nil
func (e *Engine) Composer() *finish.Composer { return e.composer }

// Request is the input to Quote
type Request struct {
	// CostModel names the cost model; empty means the configured default
	CostModel string `json:"cost_model,omitempty"`

	Process   geometry.ProcessType `json:"process"`
	Metrics   geometry.Metrics     `json:"metrics"`
	Selection costmodel.Selection  `json:"selection"`

	Tolerance       pricing.ToleranceClass `json:"tolerance,omitempty"`
	CustomTolerance float64                `json:"custom_tolerance,omitempty"`
	Overrides       *pricing.Overrides     `json:"overrides,omitempty"`

	// FinishChain lists finish operation codes in order
	FinishChain []string `json:"finish_chain,omitempty"`
	Region      string   `json:"region,omitempty"`
	Color       string   `json:"color,omitempty"`

	// PriceBreaks requests extra breakdowns at other quantities
	PriceBreaks []int `json:"price_breaks,omitempty"`
}

// CostModelRef identifies the cost model a line was priced with
type CostModelRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Line is a complete quote line
type Line struct {
	ID           string               `json:"id"`
	CostModel    CostModelRef         `json:"cost_model"`
	Process      geometry.ProcessType `json:"process"`
	Quantity     int                  `json:"quantity"`
	Breakdown    pricing.Breakdown    `json:"breakdown"`
	PriceBreaks  []pricing.Breakdown  `json:"price_breaks,omitempty"`
	Chain        *finish.Chain        `json:"finish_chain,omitempty"`
	FinishTotal  float64              `json:"finish_total"`
	LineTotal    float64              `json:"line_total"`
	LeadTimeDays int                  `json:"lead_time_days"`
	Currency     string               `json:"currency"`
	QuotedAt     time.Time            `json:"quoted_at"`
	Duration     time.Duration        `json:"duration_ns"`
}

// Quote prices one line. line_total is the batch total plus the finish chain
// cost, and lead time is the tier's days plus the chain's added days.
func (e *Engine) Quote(ctx context.Context, req *Request) (*Line, error) {
	start := e.now()
	if req == nil {
		return nil, errors.Input("quote request is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "quote cancelled", err)
	}

	process := req.Process
	if process == "" {
		process = req.Metrics.Process
	}
	metrics, err := geometry.NewMetrics(process, req.Metrics)
	if err != nil {
		return nil, err
	}

	model, err := e.CostModel(req.CostModel)
	if err != nil {
		return nil, err
	}
	currency := model.Currency
	if currency == "" {
		currency = e.config.Currency
	}

	tol, err := pricing.ToleranceMultiplier(req.Tolerance, req.CustomTolerance)
	if err != nil {
		return nil, err
	}

	breakdown, err := e.price(model, req, metrics, tol, req.Selection.Quantity)
	if err != nil {
		return nil, err
	}

	line := &Line{
		ID:           e.newID(),
		CostModel:    CostModelRef{Name: model.Name, Version: model.Version},
		Process:      process,
		Quantity:     req.Selection.Quantity,
		Breakdown:    breakdown,
		LeadTimeDays: model.LeadTimeDays(req.Selection.LeadTimeOption),
		Currency:     currency,
	}

	for _, q := range req.PriceBreaks {
		b, err := e.price(model, req, metrics, tol, q)
		if err != nil {
			return nil, errors.Wrapf(errors.TypePricing, err, "price break at quantity %d", q)
		}
		line.PriceBreaks = append(line.PriceBreaks, b)
	}

	finishTotal := determinism.NewMoneyFromCents(0, currency)
	if len(req.FinishChain) > 0 {
		if e.composer == nil {
			return nil, errors.New(errors.TypeConfig, "no finish catalog is configured")
		}
		fctx := ChainContext(metrics, req.Selection.Quantity, model.Material.CatalogMaterialID, req.Region, req.Color)
		chain, err := e.composer.ComposeFor(process, finish.StepsFromCodes(req.FinishChain), fctx)
		if err != nil {
			e.logger.Debug("finish chain rejected",
				zap.Strings("chain", req.FinishChain),
				zap.Error(err))
			return nil, err
		}
		line.Chain = chain
		line.LeadTimeDays += chain.AddedLeadDays
		finishTotal = determinism.NewMoneyFromCents(chain.TotalCostCents, currency)
	}

	total := determinism.NewMoneyFromFloat(breakdown.TotalPrice, currency).Add(finishTotal)
	line.FinishTotal = finishTotal.Float64()
	line.LineTotal = total.Round().Float64()
	line.QuotedAt = start.UTC()
	line.Duration = e.now().Sub(start)

	e.logger.Info("quote computed",
		zap.String("id", line.ID),
		zap.String("cost_model", model.Name),
		zap.String("process", string(process)),
		zap.Int("quantity", line.Quantity),
		zap.Strings("chain", req.FinishChain),
		zap.String("line_total", total.String()),
		zap.Int("lead_time_days", line.LeadTimeDays))

	return line, nil
}

func (e *Engine) price(model *costmodel.CostModel, req *Request, metrics geometry.Metrics, tol float64, qty int) (pricing.Breakdown, error) {
	sel := req.Selection
	sel.Quantity = qty
	factors, err := costmodel.Resolve(model, sel, metrics)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	if factors.Currency == "" {
		factors.Currency = e.config.Currency
	}
	return pricing.Compute(pricing.Input{
		Quantity:            qty,
		Metrics:             metrics,
		Factors:             factors,
		ToleranceMultiplier: tol,
		Overrides:           req.Overrides,
	})
}

// ChainContext derives the formula context for a part: surface area in m2
// and volume in cm3 from its metrics.
func ChainContext(m geometry.Metrics, qty int, material, region, color string) formula.Context {
	return formula.Context{
		AreaM2:    determinism.Dec(m.SurfaceAreaCM2).Shift(-4).InexactFloat64(),
		VolumeCM3: m.VolumeCC,
		Qty:       float64(qty),
		Material:  material,
		Region:    region,
		Color:     color,
	}
}
