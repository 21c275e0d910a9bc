package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partquote/core/finish"
	"partquote/core/formula"
	"partquote/core/pricing"
	"partquote/core/quote"
	"partquote/internal/errors"
)

func sampleLine() *quote.Line {
	return &quote.Line{
		ID:        "line-1",
		CostModel: quote.CostModelRef{Name: "default", Version: "7"},
		Process:   "cnc_milling",
		Quantity:  10,
		Breakdown: pricing.Breakdown{
			Quantity: 10, Machining: 18, Material: 0.3, Setup: 4, Overhead: 3.35,
			UnitCostBeforeMargin: 25.65, Margin: 7.69, UnitPrice: 33.34, TotalPrice: 333.40,
			Currency: "USD",
		},
		Chain: &finish.Chain{
			Steps: []finish.ChainStep{
				{OperationCode: "BEAD_BLAST", Sequence: 1, CostCents: 2700, LeadDays: 1, Mode: finish.ModeAdd},
				{OperationCode: "TUMBLE", Sequence: 2, CostCents: 5, LeadDays: 1, Mode: finish.ModeMax, ParallelCompatible: true},
			},
			Groups: []finish.Group{
				{Mode: finish.ModeAdd, Sequences: []int{1}, LeadDays: 1},
				{Mode: finish.ModeMax, Sequences: []int{2}, LeadDays: 1},
			},
			TotalCostCents: 2705,
			AddedLeadDays:  2,
		},
		FinishTotal:  27.05,
		LineTotal:    360.45,
		LeadTimeDays: 12,
		Currency:     "USD",
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	assert.True(t, errors.IsType(err, errors.TypeInput))
}

func TestRenderLineText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, FormatText, true).Render(sampleLine()))

	out := buf.String()
	assert.Contains(t, out, "Quote line-1")
	assert.Contains(t, out, "default v7")
	assert.Contains(t, out, "33.34 USD")
	assert.Contains(t, out, "BEAD_BLAST")
	assert.Contains(t, out, "27.00")
	assert.Contains(t, out, "0.05")
	assert.Contains(t, out, "max (parallel)")
	assert.Contains(t, out, "Lead time groups")
	assert.Contains(t, out, "360.45 USD")
	assert.NotContains(t, out, "\033[")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, FormatJSON, true).Render(sampleLine()))

	var back quote.Line
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, 360.45, back.LineTotal)
	assert.Equal(t, int64(2705), back.Chain.TotalCostCents)
}

func TestRenderValidation(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatText, true)
	require.NoError(t, r.Render(&ChainValidation{
		Policy: finish.PolicyBefore,
		Errors: finish.ValidationErrors{{Code: finish.CodeMissingPrerequisite, Step: 1, Message: "operation ANODIZE requires BEAD_BLAST"}},
	}))
	assert.Contains(t, buf.String(), "1 problem(s)")
	assert.Contains(t, buf.String(), "MISSING_PREREQUISITE: step 1")

	buf.Reset()
	require.NoError(t, r.Render(&ChainValidation{Valid: true, Policy: finish.PolicyPresent}))
	assert.Contains(t, buf.String(), "chain is valid (prerequisite policy: present)")
}

func TestRenderFormula(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatText, true)
	require.NoError(t, r.Render(formula.TestResult{Value: 2.35, Nodes: 3, Functions: []string{"round"}}))
	assert.Contains(t, buf.String(), "2.35")
	assert.Contains(t, buf.String(), "[round]")

	buf.Reset()
	require.NoError(t, r.Render(formula.TestResult{ParseError: &formula.ParseError{Offset: 3, Message: "unexpected end of formula"}}))
	assert.Contains(t, buf.String(), "offset 3")
}

func TestRenderUnknownFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, FormatText, true).Render(map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a": 1}`, buf.String())
}

func TestCents(t *testing.T) {
	assert.Equal(t, "18.14", cents(1814))
	assert.Equal(t, "0.05", cents(5))
	assert.Equal(t, "-1.50", cents(-150))
}

func TestRenderCatalogWarnsAboutInactiveOperations(t *testing.T) {
	var buf bytes.Buffer
	summary := &CatalogSummary{
		Operations: []finish.Operation{
			{Code: "ANODIZE", QoS: finish.QoS{Mode: finish.ModeSerial}, Active: true, Version: 2},
			{Code: "CHROMATE", QoS: finish.QoS{Mode: finish.ModeAdd}, Version: 1},
		},
		Regions: []string{"EU"},
	}
	require.NoError(t, NewRenderer(&buf, FormatText, true).Render(summary))

	out := buf.String()
	assert.Contains(t, out, "ANODIZE")
	assert.Contains(t, out, "inactive, rejected in chains: CHROMATE")

	buf.Reset()
	summary.Operations = summary.Operations[:1]
	require.NoError(t, NewRenderer(&buf, FormatText, true).Render(summary))
	assert.NotContains(t, buf.String(), "inactive")
}
