// Package output renders engine results for people and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"partquote/core/costmodel"
	"partquote/core/finish"
	"partquote/core/formula"
	"partquote/core/pricing"
	"partquote/core/quote"
	"partquote/core/ui"
	"partquote/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatText is a human-readable report
	FormatText Format = "text"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"
)

// ParseFormat accepts "text", "json", or empty (text)
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", errors.Newf(errors.TypeInput, "unknown output format %q (want text or json)", s)
}

// ChainValidation is the result of validating a chain without composing it
type ChainValidation struct {
	Valid  bool                    `json:"valid"`
	Policy finish.Policy           `json:"policy"`
	Errors finish.ValidationErrors `json:"errors"`
}

// CatalogSummary lists what a catalog defines
type CatalogSummary struct {
	Files      []string               `json:"files"`
	Operations []finish.Operation     `json:"operations"`
	CostModels []*costmodel.CostModel `json:"cost_models"`
	Regions    []string               `json:"regions"`
	Hazards    []string               `json:"hazards"`
}

// Renderer writes results in one format
type Renderer struct {
	out     io.Writer
	format  Format
	noColor bool
}

// NewRenderer creates a renderer writing to out
func NewRenderer(out io.Writer, format Format, noColor bool) *Renderer {
	return &Renderer{out: out, format: format, noColor: noColor}
}

// Render writes v. JSON output is indented; text output knows the engine's
// result types and falls back to JSON for anything else.
func (r *Renderer) Render(v interface{}) error {
	if r.format == FormatJSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	w := ui.NewWriter(r.out, r.noColor)
	switch res := v.(type) {
	case *quote.Line:
		renderLine(w, res)
	case *quote.Priced:
		renderBreakdown(w, res.Breakdown)
		renderPriceBreaks(w, res.PriceBreaks)
	case *finish.Chain:
		renderChain(w, res)
	case *ChainValidation:
		renderValidation(w, res)
	case formula.TestResult:
		renderFormula(w, res)
	case *CatalogSummary:
		renderCatalog(w, res)
	default:
		r.format = FormatJSON
		return r.Render(v)
	}
	return nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func cents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

func renderBreakdown(w *ui.Writer, b pricing.Breakdown) {
	w.Header("Pricing Breakdown")
	w.KeyValue("Quantity", strconv.Itoa(b.Quantity))
	w.KeyValue("Machine time (min)", strconv.FormatFloat(b.MachineTimeMin, 'f', 2, 64))
	w.KeyValue("Cycle time (min)", strconv.FormatFloat(b.CycleTimeMin, 'f', 2, 64))
	w.KeyValue("Material mass (kg)", strconv.FormatFloat(b.MaterialMassKg, 'f', 4, 64))
	w.Println("")

	t := w.NewTable("Component", "Per part")
	t.AddRow("Material", money(b.Material))
	t.AddRow("Machining", money(b.Machining))
	t.AddRow("Setup", money(b.Setup))
	t.AddRow("Finish", money(b.Finish))
	t.AddRow("Inspection", money(b.Inspection))
	t.AddRow("Overhead", money(b.Overhead))
	t.AddRow("Cost before margin", money(b.UnitCostBeforeMargin))
	t.AddRow("Margin", money(b.Margin))
	t.Render()
	w.Println("")

	if b.DiscountPercent > 0 {
		w.KeyValue("Quantity discount", strconv.FormatFloat(b.DiscountPercent, 'f', -1, 64)+"%")
	}
	if b.RushMultiplier > 1 {
		w.KeyValue("Rush multiplier", strconv.FormatFloat(b.RushMultiplier, 'f', -1, 64))
	}
	w.KeyValue("Unit price", money(b.UnitPrice)+" "+b.Currency)
	w.KeyValue("Total price", money(b.TotalPrice)+" "+b.Currency)
}

func renderPriceBreaks(w *ui.Writer, breaks []pricing.Breakdown) {
	if len(breaks) == 0 {
		return
	}
	w.Header("Price Breaks")
	t := w.NewTable("Quantity", "Unit price", "Total")
	for _, b := range breaks {
		t.AddRow(strconv.Itoa(b.Quantity), money(b.UnitPrice), money(b.TotalPrice))
	}
	t.Render()
}

func renderChain(w *ui.Writer, c *finish.Chain) {
	w.Header("Finish Chain")
	if len(c.Steps) == 0 {
		w.Println("  (no finish operations)")
		return
	}
	t := w.NewTable("Seq", "Operation", "Mode", "Cost", "Days")
	for _, s := range c.Steps {
		mode := string(s.Mode)
		if s.ParallelCompatible {
			mode += " (parallel)"
		}
		t.AddRow(strconv.Itoa(s.Sequence), s.OperationCode, mode, cents(s.CostCents), strconv.Itoa(s.LeadDays))
	}
	t.Render()

	if len(c.Groups) > 0 {
		w.Println("")
		w.SubHeader("Lead time groups")
		g := w.NewTable("Mode", "Steps", "Days")
		for _, grp := range c.Groups {
			seqs := make([]string, len(grp.Sequences))
			for i, s := range grp.Sequences {
				seqs[i] = strconv.Itoa(s)
			}
			g.AddRow(string(grp.Mode), strings.Join(seqs, ","), strconv.Itoa(grp.LeadDays))
		}
		g.Render()
	}

	w.Println("")
	w.KeyValue("Finish cost", cents(c.TotalCostCents))
	w.KeyValue("Added lead days", strconv.Itoa(c.AddedLeadDays))
}

func renderValidation(w *ui.Writer, v *ChainValidation) {
	if v.Valid {
		w.Success("chain is valid (prerequisite policy: %s)", v.Policy)
		return
	}
	w.Error("chain has %d problem(s) (prerequisite policy: %s)", len(v.Errors), v.Policy)
	for _, e := range v.Errors {
		w.Println("    %s", e.Error())
	}
}

func renderFormula(w *ui.Writer, r formula.TestResult) {
	switch {
	case r.ParseError != nil:
		w.Error("%s", r.ParseError.Error())
	case r.EvalError != nil:
		w.Error("%s", r.EvalError.Error())
	default:
		w.Success("%s", strconv.FormatFloat(r.Value, 'f', -1, 64))
	}
	if r.Nodes > 0 {
		w.KeyValue("Nodes", strconv.Itoa(r.Nodes))
	}
	if len(r.Identifiers) > 0 {
		w.KeyValue("Reads", fmt.Sprint(r.Identifiers))
	}
	if len(r.Functions) > 0 {
		w.KeyValue("Calls", fmt.Sprint(r.Functions))
	}
}

func renderCatalog(w *ui.Writer, c *CatalogSummary) {
	w.Header("Finish Operations")
	t := w.NewTable("Code", "Name", "Mode", "Requires", "Excludes", "Active", "Version")
	var inactive []string
	for _, op := range c.Operations {
		active := "yes"
		if !op.Active {
			active = "no"
			inactive = append(inactive, op.Code)
		}
		t.AddRow(op.Code, op.Name, string(op.QoS.Mode),
			strings.Join(op.Prerequisites, ","), strings.Join(op.Incompatibilities, ","),
			active, strconv.Itoa(op.Version))
	}
	t.Render()
	if len(inactive) > 0 {
		w.Println("")
		w.Warning("inactive, rejected in chains: %s", strings.Join(inactive, ", "))
	}

	w.Header("Cost Models")
	t = w.NewTable("Name", "Version", "Currency", "Machine", "Rate/h", "Lead times")
	for _, m := range c.CostModels {
		codes := make([]string, len(m.LeadTimeTiers))
		for i, tier := range m.LeadTimeTiers {
			codes[i] = tier.Code
		}
		t.AddRow(m.Name, m.Version, m.Currency, m.Machine.ID, money(m.Machine.RatePerHour), strings.Join(codes, ","))
	}
	t.Render()
	w.Println("")
	w.KeyValue("Regions", strings.Join(c.Regions, ", "))
	w.KeyValue("Hazard materials", strings.Join(c.Hazards, ", "))
	w.KeyValue("Files", strconv.Itoa(len(c.Files)))
}

func renderLine(w *ui.Writer, l *quote.Line) {
	w.Header("Quote " + l.ID)
	w.KeyValue("Cost model", l.CostModel.Name+" v"+l.CostModel.Version)
	w.KeyValue("Process", string(l.Process))
	renderBreakdown(w, l.Breakdown)
	renderPriceBreaks(w, l.PriceBreaks)
	if l.Chain != nil {
		renderChain(w, l.Chain)
	}
	w.Header("Line Total")
	w.KeyValue("Parts", money(l.Breakdown.TotalPrice)+" "+l.Currency)
	w.KeyValue("Finishing", money(l.FinishTotal)+" "+l.Currency)
	w.KeyValue("Line total", money(l.LineTotal)+" "+l.Currency)
	w.KeyValue("Lead time (days)", strconv.Itoa(l.LeadTimeDays))
}
