package quote

import (
	"context"

	"partquote/core/costmodel"
	"partquote/core/geometry"
	"partquote/core/pricing"
	"partquote/internal/errors"
)

// PriceRequest prices a part against explicit cost factors. No cost model is
// consulted.
type PriceRequest struct {
	// Process is optional; when set the metrics are checked for it
	Process  geometry.ProcessType  `json:"process,omitempty"`
	Quantity int                   `json:"quantity"`
	Metrics  geometry.Metrics      `json:"metrics"`
	Factors  costmodel.CostFactors `json:"factors"`

	Tolerance       pricing.ToleranceClass `json:"tolerance,omitempty"`
	CustomTolerance float64                `json:"custom_tolerance,omitempty"`
	Overrides       *pricing.Overrides     `json:"overrides,omitempty"`

	// Quantities adds a breakdown per quantity, priced with the same factors
	Quantities []int `json:"quantities,omitempty"`
}

// Priced is the result of Price
type Priced struct {
	Breakdown   pricing.Breakdown   `json:"breakdown"`
	PriceBreaks []pricing.Breakdown `json:"price_breaks,omitempty"`
}

// Price computes the breakdown for req.Quantity and any extra quantities.
func Price(ctx context.Context, req *PriceRequest) (*Priced, error) {
	if req == nil {
		return nil, errors.Input("pricing request is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "pricing cancelled", err)
	}

	metrics := req.Metrics
	process := req.Process
	if process == "" {
		process = metrics.Process
	}
	if process != "" {
		m, err := geometry.NewMetrics(process, metrics)
		if err != nil {
			return nil, err
		}
		metrics = m
	}

	tol, err := pricing.ToleranceMultiplier(req.Tolerance, req.CustomTolerance)
	if err != nil {
		return nil, err
	}

	in := pricing.Input{
		Quantity:            req.Quantity,
		Metrics:             metrics,
		Factors:             req.Factors,
		ToleranceMultiplier: tol,
		Overrides:           req.Overrides,
	}
	b, err := pricing.Compute(in)
	if err != nil {
		return nil, err
	}
	out := &Priced{Breakdown: b}
	if len(req.Quantities) > 0 {
		out.PriceBreaks, err = pricing.ComputeForQuantities(in, req.Quantities)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
