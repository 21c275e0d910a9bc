// Package costmodel holds the configurable commercial drivers behind a quote
// and resolves them into an immutable CostFactors snapshot per pricing call.
package costmodel

import (
	"fmt"
	"math"

	"partquote/core/geometry"
	"partquote/internal/errors"
)

// Machine is the machine cost driver
type Machine struct {
	ID           string                 `json:"id"`
	Label        string                 `json:"label,omitempty"`
	ProcessTypes []geometry.ProcessType `json:"process_types,omitempty"`

	// RatePerHour is the fully burdened machine rate (USD/hour)
	RatePerHour float64 `json:"machine_rate_per_hour"`

	// SetupCost is the per-batch setup cost, amortized over the quantity
	SetupCost float64 `json:"setup_cost"`

	// OverheadPercent (0..1) applies to machining + material + setup
	OverheadPercent float64 `json:"overhead_percent"`
}

// Material is the raw material cost driver
type Material struct {
	ID                string  `json:"id"`
	CatalogMaterialID string  `json:"catalog_material_id"`
	RawCostPerKg      float64 `json:"raw_cost_per_kg"`
}

// Finish is a flat finish/secondary operation adder
type Finish struct {
	ID              string  `json:"id"`
	CatalogFinishID string  `json:"catalog_finish_id"`
	Label           string  `json:"label,omitempty"`
	CostPerPart     float64 `json:"cost_per_part"`
	CostPerCM2      float64 `json:"cost_per_cm2,omitempty"`
	BatchSetupCost  float64 `json:"batch_setup_cost,omitempty"`
}

// InspectionLevel names a QA level
type InspectionLevel string

const (
	InspectionBasic    InspectionLevel = "basic"
	InspectionEnhanced InspectionLevel = "enhanced"
	InspectionFull     InspectionLevel = "full"
)

// Inspection is the per-part QA cost for one level
type Inspection struct {
	ID          string          `json:"id"`
	Level       InspectionLevel `json:"level"`
	CostPerPart float64         `json:"cost_per_part"`
}

// LeadTimeTier maps a lead-time option to promised days and a price multiplier
type LeadTimeTier struct {
	ID              string  `json:"id"`
	Code            string  `json:"code"`
	Label           string  `json:"label,omitempty"`
	Days            int     `json:"days"`
	PriceMultiplier float64 `json:"price_multiplier"`
}

// QuantityDiscount is a break expressed as a fraction (0.10 = 10%)
type QuantityDiscount struct {
	MinQty   int     `json:"min_qty"`
	Discount float64 `json:"discount_percent"`
}

// ComplexityLevel names a machining complexity level
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

// Complexity holds machining rate multipliers per level
type Complexity struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// DefaultComplexity returns the stock multipliers
func DefaultComplexity() Complexity {
	return Complexity{Low: 1, Medium: 1.1, High: 1.25}
}

// Multiplier returns the multiplier for level. An empty level is 1 and an
// unset multiplier falls back to the stock value.
func (c Complexity) Multiplier(level ComplexityLevel) (float64, error) {
	d := DefaultComplexity()
	pick := func(v, def float64) float64 {
		if v > 0 {
			return v
		}
		return def
	}
	switch level {
	case "":
		return 1, nil
	case ComplexityLow:
		return pick(c.Low, d.Low), nil
	case ComplexityMedium:
		return pick(c.Medium, d.Medium), nil
	case ComplexityHigh:
		return pick(c.High, d.High), nil
	}
	return 0, errors.Newf(errors.TypeInput, "unknown machining complexity %q", level)
}

// Margin is the margin policy
type Margin struct {
	BaseMarginPercent float64 `json:"base_margin_percent"`
	MinMarginPerPart  float64 `json:"min_margin_per_part,omitempty"`
}

// CostModel is an aggregated, versioned snapshot of all commercial drivers.
// Treat it as read-only once loaded.
type CostModel struct {
	Name              string             `json:"name"`
	Version           string             `json:"version"`
	Currency          string             `json:"currency"`
	Machine           Machine            `json:"machine"`
	Material          Material           `json:"material"`
	Finishes          []Finish           `json:"finishes,omitempty"`
	InspectionLevels  []Inspection       `json:"inspection_levels,omitempty"`
	LeadTimeTiers     []LeadTimeTier     `json:"lead_time_tiers"`
	QuantityDiscounts []QuantityDiscount `json:"quantity_discounts,omitempty"`
	Complexity        Complexity         `json:"complexity"`
	Margin            Margin             `json:"margin"`
}

// LeadTime returns the tier for code
func (m *CostModel) LeadTime(code string) (LeadTimeTier, bool) {
	for _, t := range m.LeadTimeTiers {
		if t.Code == code {
			return t, true
		}
	}
	return LeadTimeTier{}, false
}

// Validate checks driver ranges. Loaders call it once; Resolve assumes a
// validated model.
func (m *CostModel) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	fraction := func(v float64) bool { return finite(v) && v >= 0 && v <= 1 }
	nonNeg := func(v float64) bool { return finite(v) && v >= 0 }

	check(finite(m.Machine.RatePerHour) && m.Machine.RatePerHour > 0, "machine rate must be positive")
	check(nonNeg(m.Machine.SetupCost), "setup cost must be non-negative")
	check(fraction(m.Machine.OverheadPercent), "overhead percent must be within 0..1")
	check(finite(m.Material.RawCostPerKg) && m.Material.RawCostPerKg > 0, "material cost per kg must be positive")
	check(fraction(m.Margin.BaseMarginPercent), "base margin percent must be within 0..1")
	check(nonNeg(m.Margin.MinMarginPerPart), "minimum margin must be non-negative")
	check(len(m.LeadTimeTiers) > 0, "at least one lead time tier is required")

	seen := make(map[string]bool)
	for _, f := range m.Finishes {
		check(f.CatalogFinishID != "", "finish %q has no catalog finish id", f.ID)
		check(!seen[f.CatalogFinishID], "finish %q is listed twice", f.CatalogFinishID)
		seen[f.CatalogFinishID] = true
		check(nonNeg(f.CostPerPart) && nonNeg(f.CostPerCM2) && nonNeg(f.BatchSetupCost),
			"finish %q costs must be non-negative", f.CatalogFinishID)
	}
	for _, l := range m.InspectionLevels {
		check(l.Level == InspectionBasic || l.Level == InspectionEnhanced || l.Level == InspectionFull,
			"unknown inspection level %q", l.Level)
		check(nonNeg(l.CostPerPart), "inspection %q cost must be non-negative", l.Level)
	}
	codes := make(map[string]bool)
	for _, t := range m.LeadTimeTiers {
		check(t.Code != "", "lead time tier %q has no code", t.ID)
		check(!codes[t.Code], "lead time tier %q is listed twice", t.Code)
		codes[t.Code] = true
		check(t.Days > 0, "lead time tier %q days must be positive", t.Code)
		check(finite(t.PriceMultiplier) && t.PriceMultiplier >= 1, "lead time tier %q multiplier must be >= 1", t.Code)
	}
	for _, q := range m.QuantityDiscounts {
		check(q.MinQty > 0, "quantity discount min_qty must be positive")
		check(fraction(q.Discount), "quantity discount at %d must be a fraction within 0..1", q.MinQty)
	}
	for _, v := range []float64{m.Complexity.Low, m.Complexity.Medium, m.Complexity.High} {
		check(nonNeg(v), "complexity multipliers must be non-negative")
	}

	if len(problems) > 0 {
		name := m.Name
		if name == "" {
			name = m.Version
		}
		return errors.New(errors.TypeConfig, fmt.Sprintf("cost model %q is invalid", name)).
			WithContext("problems", problems)
	}
	return nil
}
