package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partquote/adapters/catalog"
	"partquote/core/finish"
	"partquote/core/quote"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat, err := catalog.NewLoader(nil).Load(context.Background(), "../catalog")
	require.NoError(t, err)
	engine := quote.NewEngine(cat.CostModels, cat.Composer(finish.PolicyBefore),
		quote.EngineConfig{DefaultCostModel: "default"},
		quote.WithIDGenerator(func() string { return "line-1" }))
	return NewServer(engine, "test", WithRequestIDs(func() string { return "req-1" }))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

const quoteBody = `{
  "process": "cnc_milling",
  "metrics": {"volume_cc": 20, "surface_area_cm2": 500, "features": {}},
  "selection": {"quantity": 5, "lead_time_option": "standard"},
  "overrides": {"machine_time_min": 12, "material_mass_kg": 0.05}
}`

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	var health map[string]interface{}
	decode(t, rr, &health)
	assert.Equal(t, "healthy", health["status"])

	rr = do(t, s, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"engine":"partquote"`)
}

func TestQuoteEndpoint(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodPost, "/v1/quotes", quoteBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))

	var resp QuoteResponse
	decode(t, rr, &resp)
	require.NotNil(t, resp.Line)
	assert.Equal(t, "line-1", resp.Line.ID)
	assert.Equal(t, 39.32, resp.Line.Breakdown.UnitPrice)
	assert.Equal(t, 196.60, resp.Line.LineTotal)
	assert.Equal(t, 10, resp.Line.LeadTimeDays)
	assert.Equal(t, "req-1", resp.Metadata.RequestID)
	assert.Len(t, resp.Metadata.InputHash, 64)
	assert.Equal(t, "test", resp.Metadata.EngineVersion)
}

func TestQuoteEndpointWithChain(t *testing.T) {
	body := strings.Replace(quoteBody, `"process"`, `"finish_chain": ["BEAD_BLAST", "ANODIZE"], "region": "EU", "process"`, 1)
	rr := do(t, newTestServer(t), http.MethodPost, "/v1/quotes", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp QuoteResponse
	decode(t, rr, &resp)
	require.NotNil(t, resp.Line.Chain)
	assert.Equal(t, int64(3660), resp.Line.Chain.TotalCostCents)
	assert.Equal(t, 36.60, resp.Line.FinishTotal)
	assert.Equal(t, 233.20, resp.Line.LineTotal)
	assert.Equal(t, 14, resp.Line.LeadTimeDays)
}

func TestInputHashIsStable(t *testing.T) {
	s := newTestServer(t)
	var a, b QuoteResponse
	decode(t, do(t, s, http.MethodPost, "/v1/quotes", quoteBody), &a)
	decode(t, do(t, s, http.MethodPost, "/v1/quotes", quoteBody), &b)
	assert.Equal(t, a.Metadata.InputHash, b.Metadata.InputHash)
	assert.Equal(t, a.Line.Breakdown, b.Line.Breakdown)
}

func TestQuoteEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"process":`, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown field", `{"proces": "cnc_milling"}`, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown cost model", strings.Replace(quoteBody, `"process"`, `"cost_model": "nope", "process"`, 1),
			http.StatusNotFound, "NOT_FOUND"},
		{"zero quantity", strings.Replace(quoteBody, `"quantity": 5`, `"quantity": 0`, 1),
			http.StatusUnprocessableEntity, "INPUT_ERROR"},
		{"missing prerequisite", strings.Replace(quoteBody, `"process"`, `"finish_chain": ["ANODIZE"], "process"`, 1),
			http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, newTestServer(t), http.MethodPost, "/v1/quotes", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			var resp ErrorBody
			decode(t, rr, &resp)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestValidationErrorCarriesProblems(t *testing.T) {
	body := strings.Replace(quoteBody, `"process"`, `"finish_chain": ["ANODIZE"], "process"`, 1)
	rr := do(t, newTestServer(t), http.MethodPost, "/v1/quotes", body)

	var resp ErrorBody
	decode(t, rr, &resp)
	require.Len(t, resp.Error.Problems, 1)
	assert.Equal(t, finish.CodeMissingPrerequisite, resp.Error.Problems[0].Code)
	assert.Equal(t, 1, resp.Error.Problems[0].Step)
}

func TestPricingEndpoint(t *testing.T) {
	body := `{
  "quantity": 10,
  "metrics": {"volume_cc": 20, "surface_area_cm2": 500, "features": {}},
  "factors": {
    "machine_rate_per_hour": 90,
    "setup_cost": 40,
    "material_price_per_kg": 6,
    "overhead_percent": 0.15,
    "base_margin_percent": 0.3
  },
  "overrides": {"machine_time_min": 12, "material_mass_kg": 0.05},
  "quantities": [10, 100]
}`
	rr := do(t, newTestServer(t), http.MethodPost, "/v1/pricing", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp PricingResponse
	decode(t, rr, &resp)
	assert.Equal(t, 33.34, resp.Breakdown.UnitPrice)
	assert.Equal(t, 333.40, resp.Breakdown.TotalPrice)
	require.Len(t, resp.PriceBreaks, 2)
	assert.Equal(t, 27.96, resp.PriceBreaks[1].UnitPrice)
}

func TestChainValidateEndpoint(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/v1/chains/validate", `{"codes": ["BEAD_BLAST", "TUMBLE"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ChainValidationResponse
	decode(t, rr, &resp)
	assert.False(t, resp.Valid)
	assert.Equal(t, finish.PolicyBefore, resp.Policy)
	assert.Equal(t, []string{finish.CodeIncompatibleOperation}, resp.Errors.Codes())

	rr = do(t, s, http.MethodPost, "/v1/chains/validate",
		`{"steps": [{"operation_code": "ANODIZE", "sequence": 2}, {"operation_code": "BEAD_BLAST", "sequence": 1}]}`)
	var ok ChainValidationResponse
	decode(t, rr, &ok)
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)
	assert.Contains(t, rr.Body.String(), `"errors":[]`)
}

func TestChainComposeEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := `{
  "process": "cnc_milling",
  "codes": ["BEAD_BLAST", "ANODIZE"],
  "context": {"area_m2": 0.05, "qty": 10, "material": "aluminum-6061", "region": "EU"}
}`
	rr := do(t, s, http.MethodPost, "/v1/chains/compose", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp ChainResponse
	decode(t, rr, &resp)
	assert.Equal(t, int64(3660), resp.Chain.TotalCostCents)
	assert.Equal(t, 4, resp.Chain.AddedLeadDays)

	rr = do(t, s, http.MethodPost, "/v1/chains/compose", `{"process": "sheet_metal", "codes": ["BEAD_BLAST", "ANODIZE"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var errResp ErrorBody
	decode(t, rr, &errResp)
	assert.Equal(t, []string{finish.CodeProcessNotSupported}, errResp.Error.Problems.Codes())
}

func TestFormulaEvaluateEndpoint(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/v1/formulas/evaluate",
		`{"formula": "tiered(sa, [{upTo: 0.1, price: 18}, {price: 12}]) * regionMult(region, 'BEAD_BLAST')", "context": {"area_m2": 0.05, "region": "EU"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp FormulaResponse
	decode(t, rr, &resp)
	assert.True(t, resp.OK)
	assert.Equal(t, 27.0, resp.Result.Value)
	assert.Equal(t, []string{"regionMult", "tiered"}, resp.Result.Functions)

	rr = do(t, s, http.MethodPost, "/v1/formulas/evaluate", `{"formula": "1 +"}`)
	var bad FormulaResponse
	decode(t, rr, &bad)
	assert.False(t, bad.OK)
	require.NotNil(t, bad.Result.ParseError)
}

func TestCatalogListings(t *testing.T) {
	s := newTestServer(t)

	var models CostModelsResponse
	decode(t, do(t, s, http.MethodGet, "/v1/cost-models", ""), &models)
	assert.Equal(t, "default", models.Default)
	require.Len(t, models.CostModels, 1)
	assert.Equal(t, "2024-03", models.CostModels[0].Version)

	var ops OperationsResponse
	decode(t, do(t, s, http.MethodGet, "/v1/finish-operations", ""), &ops)
	assert.Len(t, ops.Operations, 6)
}

func TestWithoutFinishCatalog(t *testing.T) {
	engine := quote.NewEngine(nil, nil, quote.EngineConfig{})
	s := NewServer(engine, "test")

	rr := do(t, s, http.MethodPost, "/v1/chains/validate", `{"codes": ["BEAD_BLAST"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var resp ErrorBody
	decode(t, rr, &resp)
	assert.Equal(t, "CONFIG_ERROR", resp.Error.Code)
}

func TestRouting(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"NOT_FOUND"`)

	rr = do(t, s, http.MethodGet, "/v1/quotes", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "client-id", rec.Header().Get("X-Request-ID"))
}

func TestBodyTooLarge(t *testing.T) {
	body := `{"formula": "` + strings.Repeat("1", maxBodyBytes) + `"}`
	rr := do(t, newTestServer(t), http.MethodPost, "/v1/formulas/evaluate", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
