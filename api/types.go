package api

import (
	"partquote/core/costmodel"
	"partquote/core/finish"
	"partquote/core/formula"
	"partquote/core/geometry"
	"partquote/core/pricing"
	"partquote/core/quote"
)

// Metadata is attached to every successful response
type Metadata struct {
	RequestID     string `json:"request_id"`
	InputHash     string `json:"input_hash,omitempty"`
	EngineVersion string `json:"engine_version"`
	DurationMs    int64  `json:"duration_ms"`
}

// ErrorBody is the error envelope: {"error": {...}}
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failed request
type ErrorDetail struct {
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	RequestID string                  `json:"request_id,omitempty"`
	Problems  finish.ValidationErrors `json:"problems,omitempty"`
}

// PricingResponse is returned by POST /v1/pricing
type PricingResponse struct {
	Breakdown   pricing.Breakdown   `json:"breakdown"`
	PriceBreaks []pricing.Breakdown `json:"price_breaks,omitempty"`
	Metadata    *Metadata           `json:"metadata"`
}

// ChainRequest is the body of the chain endpoints. Steps wins over Codes;
// Codes are numbered 1..N in order.
type ChainRequest struct {
	Process geometry.ProcessType `json:"process,omitempty"`
	Steps   []finish.Step        `json:"steps,omitempty"`
	Codes   []string             `json:"codes,omitempty"`
	Context formula.Context      `json:"context"`
}

func (r *ChainRequest) steps() []finish.Step {
	if len(r.Steps) > 0 {
		return r.Steps
	}
	return finish.StepsFromCodes(r.Codes)
}

// ChainValidationResponse is returned by POST /v1/chains/validate. An invalid
// chain is a normal result, not an error.
type ChainValidationResponse struct {
	Valid    bool                    `json:"valid"`
	Policy   finish.Policy           `json:"policy"`
	Errors   finish.ValidationErrors `json:"errors"`
	Metadata *Metadata               `json:"metadata"`
}

// ChainResponse is returned by POST /v1/chains/compose
type ChainResponse struct {
	Chain    *finish.Chain `json:"chain"`
	Metadata *Metadata     `json:"metadata"`
}

// FormulaRequest is the body of POST /v1/formulas/evaluate
type FormulaRequest struct {
	Formula string          `json:"formula"`
	Context formula.Context `json:"context"`
}

// FormulaResponse reports the outcome of a formula test
type FormulaResponse struct {
	OK       bool               `json:"ok"`
	Result   formula.TestResult `json:"result"`
	Metadata *Metadata          `json:"metadata"`
}

// QuoteResponse is returned by POST /v1/quotes
type QuoteResponse struct {
	Line     *quote.Line `json:"line"`
	Metadata *Metadata   `json:"metadata"`
}

// CostModelsResponse is returned by GET /v1/cost-models
type CostModelsResponse struct {
	Default    string                 `json:"default"`
	CostModels []*costmodel.CostModel `json:"cost_models"`
	Metadata   *Metadata              `json:"metadata"`
}

// OperationsResponse is returned by GET /v1/finish-operations
type OperationsResponse struct {
	Operations []finish.Operation `json:"operations"`
	Metadata   *Metadata          `json:"metadata"`
}
