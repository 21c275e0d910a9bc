package costmodel

import (
	"sort"

	"partquote/core/determinism"
	"partquote/core/geometry"
	"partquote/internal/errors"
)

// DefaultLeadTime is the tier used when a selection names none
const DefaultLeadTime = "standard"

// Selection is the per-part choice the resolver prices against
type Selection struct {
	Quantity            int             `json:"quantity"`
	LeadTimeOption      string          `json:"lead_time_option,omitempty"`
	MachiningComplexity ComplexityLevel `json:"machining_complexity,omitempty"`
	FinishIDs           []string        `json:"finish_ids,omitempty"`
	InspectionLevel     InspectionLevel `json:"inspection_level,omitempty"`
}

// QuantityBreak is a discount break in percent form (10 = 10%)
type QuantityBreak struct {
	MinQty          int     `json:"min_qty"`
	DiscountPercent float64 `json:"discount_percent"`
}

// CostFactors is the resolved, per-call pricing input. Build a new one per
// call rather than editing one in place.
type CostFactors struct {
	MachineRatePerHour    float64            `json:"machine_rate_per_hour"`
	SetupCost             float64            `json:"setup_cost"`
	MaterialPricePerKg    float64            `json:"material_price_per_kg"`
	MaterialKey           string             `json:"material_key,omitempty"`
	FinishCostAdders      map[string]float64 `json:"finish_cost_adders,omitempty"`
	InspectionCostPerPart float64            `json:"inspection_cost_per_part,omitempty"`
	OverheadPercent       float64            `json:"overhead_percent"`
	BaseMarginPercent     float64            `json:"base_margin_percent"`
	MinMarginPerPart      float64            `json:"min_margin_per_part,omitempty"`

	// RushMultiplier is zero unless the lead-time tier charges a premium
	RushMultiplier float64         `json:"rush_multiplier,omitempty"`
	QuantityBreaks []QuantityBreak `json:"quantity_breaks,omitempty"`
	Currency       string          `json:"currency,omitempty"`
}

// Resolve assembles CostFactors from model for sel. metrics feeds the
// area-based finish adders. Unknown finish ids and inspection levels without
// a driver resolve to nothing; only a non-positive quantity or an unknown
// complexity level is an error.
func Resolve(model *CostModel, sel Selection, metrics geometry.Metrics) (CostFactors, error) {
	if sel.Quantity <= 0 {
		return CostFactors{}, errors.Newf(errors.TypeInput, "quantity must be positive, got %d", sel.Quantity)
	}
	complexity, err := model.Complexity.Multiplier(sel.MachiningComplexity)
	if err != nil {
		return CostFactors{}, err
	}

	qty := determinism.Dec(float64(sel.Quantity))
	rate := determinism.Dec(model.Machine.RatePerHour).Mul(determinism.Dec(complexity))

	f := CostFactors{
		MachineRatePerHour: rate.InexactFloat64(),
		SetupCost:          model.Machine.SetupCost,
		MaterialPricePerKg: model.Material.RawCostPerKg,
		MaterialKey:        model.Material.CatalogMaterialID,
		OverheadPercent:    model.Machine.OverheadPercent,
		BaseMarginPercent:  model.Margin.BaseMarginPercent,
		MinMarginPerPart:   model.Margin.MinMarginPerPart,
		Currency:           model.Currency,
	}

	for _, id := range sel.FinishIDs {
		fin, ok := model.finish(id)
		if !ok {
			continue
		}
		adder := determinism.Dec(fin.CostPerPart).
			Add(determinism.Dec(fin.CostPerCM2).Mul(determinism.Dec(metrics.SurfaceAreaCM2))).
			Add(determinism.Dec(fin.BatchSetupCost).Div(qty))
		if f.FinishCostAdders == nil {
			f.FinishCostAdders = make(map[string]float64)
		}
		f.FinishCostAdders[id] = adder.InexactFloat64()
	}

	level := sel.InspectionLevel
	if level == "" {
		level = InspectionBasic
	}
	for _, l := range model.InspectionLevels {
		if l.Level == level {
			f.InspectionCostPerPart = l.CostPerPart
			break
		}
	}

	option := sel.LeadTimeOption
	if option == "" {
		option = DefaultLeadTime
	}
	if tier, ok := model.LeadTime(option); ok && tier.PriceMultiplier > 1 {
		f.RushMultiplier = tier.PriceMultiplier
	}

	if len(model.QuantityDiscounts) > 0 {
		f.QuantityBreaks = make([]QuantityBreak, len(model.QuantityDiscounts))
		for i, q := range model.QuantityDiscounts {
			f.QuantityBreaks[i] = QuantityBreak{
				MinQty:          q.MinQty,
				DiscountPercent: determinism.Dec(q.Discount).Shift(2).InexactFloat64(),
			}
		}
		sort.SliceStable(f.QuantityBreaks, func(i, j int) bool {
			return f.QuantityBreaks[i].MinQty < f.QuantityBreaks[j].MinQty
		})
	}

	return f, nil
}

// LeadTimeDays returns the promised days for option, falling back to the
// standard tier and then to zero.
func (m *CostModel) LeadTimeDays(option string) int {
	if option == "" {
		option = DefaultLeadTime
	}
	if t, ok := m.LeadTime(option); ok {
		return t.Days
	}
	if t, ok := m.LeadTime(DefaultLeadTime); ok {
		return t.Days
	}
	return 0
}

func (m *CostModel) finish(id string) (Finish, bool) {
	for _, f := range m.Finishes {
		if f.CatalogFinishID == id {
			return f, true
		}
	}
	return Finish{}, false
}
