// Package pricing turns geometry and resolved cost factors into a per-part
// and per-batch price breakdown.
//
// All arithmetic runs on shopspring/decimal. Values are rounded to cents only
// when the breakdown is returned, so a breakdown is bit-identical for
// identical inputs.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"partquote/core/costmodel"
	"partquote/core/determinism"
	"partquote/core/geometry"
	"partquote/internal/errors"
)

// inspectionToleranceWeight scales how much of the tolerance premium reaches
// inspection cost
const inspectionToleranceWeight = 0.8

// Overrides replace estimated values when the caller has better numbers
type Overrides struct {
	MachineTimeMin *float64 `json:"machine_time_min,omitempty"`
	CycleTimeMin   *float64 `json:"cycle_time_min,omitempty"`
	MaterialMassKg *float64 `json:"material_mass_kg,omitempty"`
}

// Input is everything Compute needs for one quantity
type Input struct {
	Quantity int                   `json:"quantity"`
	Metrics  geometry.Metrics      `json:"metrics"`
	Factors  costmodel.CostFactors `json:"factors"`

	// ToleranceMultiplier defaults to 1 when zero or negative
	ToleranceMultiplier float64    `json:"tolerance_multiplier,omitempty"`
	Overrides           *Overrides `json:"overrides,omitempty"`
}

// Breakdown is the priced result. Money fields are rounded to 2 decimals.
type Breakdown struct {
	Quantity             int     `json:"quantity"`
	Material             float64 `json:"material"`
	Machining            float64 `json:"machining"`
	Setup                float64 `json:"setup"`
	Finish               float64 `json:"finish"`
	Inspection           float64 `json:"inspection"`
	Overhead             float64 `json:"overhead"`
	Margin               float64 `json:"margin"`
	UnitCostBeforeMargin float64 `json:"unit_cost_before_margin"`
	UnitPrice            float64 `json:"unit_price"`
	TotalPrice           float64 `json:"total_price"`
	CycleTimeMin         float64 `json:"cycle_time_min"`
	MachineTimeMin       float64 `json:"machine_time_min"`
	MaterialMassKg       float64 `json:"material_mass_kg"`
	DiscountPercent      float64 `json:"discount_percent,omitempty"`
	RushMultiplier       float64 `json:"rush_multiplier,omitempty"`
	Currency             string  `json:"currency,omitempty"`
}

var (
	hundred = decimal.NewFromInt(100)
	sixty   = decimal.NewFromInt(60)
	one     = decimal.NewFromInt(1)
)

// Compute prices in.Quantity parts. The steps run in a fixed order: machine
// time and mass, component costs, overhead, margin, quantity discount, and
// rush last.
func Compute(in Input) (Breakdown, error) {
	if in.Quantity <= 0 {
		return Breakdown{}, errors.Pricingf("quantity must be positive, got %d", in.Quantity)
	}
	if err := in.validate(); err != nil {
		return Breakdown{}, err
	}
	f := in.Factors

	// 1. machine time, cycle time, mass
	est := geometry.EstimatePart(in.Metrics, f.MaterialKey)
	machineTime := est.MachineTimeMin
	materialMass := est.MaterialMassKg
	if o := in.Overrides; o != nil {
		if o.MachineTimeMin != nil {
			machineTime = *o.MachineTimeMin
		}
		if o.MaterialMassKg != nil {
			materialMass = *o.MaterialMassKg
		}
	}
	cycleTime := machineTime
	if o := in.Overrides; o != nil && o.CycleTimeMin != nil {
		cycleTime = *o.CycleTimeMin
	}

	qty := decimal.NewFromInt(int64(in.Quantity))
	tol := one
	if in.ToleranceMultiplier > 0 {
		tol = determinism.Dec(in.ToleranceMultiplier)
	}

	// 2. machining
	machining := determinism.Dec(machineTime).
		Mul(determinism.Dec(f.MachineRatePerHour)).
		Mul(tol).
		Div(sixty)

	// 3. setup, amortized and not tolerance-scaled
	setup := determinism.Dec(f.SetupCost).Div(qty)

	// 4. material
	material := determinism.Dec(materialMass).Mul(determinism.Dec(f.MaterialPricePerKg))

	// 5. finish
	finish := decimal.Zero
	determinism.RangeMapSorted(f.FinishCostAdders, func(_ string, v float64) bool {
		finish = finish.Add(determinism.Dec(v))
		return true
	})

	// 6. inspection scales lighter than machining
	inspection := determinism.Dec(f.InspectionCostPerPart)
	if tol.GreaterThan(one) {
		weight := tol.Sub(one).Mul(determinism.Dec(inspectionToleranceWeight)).Add(one)
		inspection = inspection.Mul(weight)
	}

	// 7. overhead excludes finish and inspection
	overhead := determinism.Dec(f.OverheadPercent).Mul(machining.Add(material).Add(setup))

	// 8. unit cost
	unitCost := material.Add(machining).Add(setup).Add(finish).Add(inspection).Add(overhead)

	// 9. margin
	margin := unitCost.Mul(determinism.Dec(f.BaseMarginPercent))
	if minMargin := determinism.Dec(f.MinMarginPerPart); margin.LessThan(minMargin) {
		margin = minMargin
	}
	unitPrice := unitCost.Add(margin)

	// 10. best quantity break
	discount := BestBreak(f.QuantityBreaks, in.Quantity)
	if discount > 0 {
		unitPrice = unitPrice.Mul(one.Sub(determinism.Dec(discount).Div(hundred)))
	}

	// 11. rush applies after every discount
	var rush float64
	if f.RushMultiplier > 1 {
		rush = f.RushMultiplier
		unitPrice = unitPrice.Mul(determinism.Dec(rush))
	}

	// 12. total from the quoted unit price
	total := unitPrice.Round(determinism.MoneyPlaces).Mul(qty)

	parts := splitCents(unitCost, []decimal.Decimal{material, machining, setup, finish, inspection, overhead})

	return Breakdown{
		Quantity:             in.Quantity,
		Material:             parts[0],
		Machining:            parts[1],
		Setup:                parts[2],
		Finish:               parts[3],
		Inspection:           parts[4],
		Overhead:             parts[5],
		Margin:               determinism.Round2(margin),
		UnitCostBeforeMargin: determinism.Round2(unitCost),
		UnitPrice:            determinism.Round2(unitPrice),
		TotalPrice:           determinism.Round2(total),
		CycleTimeMin:         determinism.Round2(determinism.Dec(cycleTime)),
		MachineTimeMin:       determinism.Round2(determinism.Dec(machineTime)),
		MaterialMassKg:       determinism.Dec(materialMass).Round(4).InexactFloat64(),
		DiscountPercent:      discount,
		RushMultiplier:       rush,
		Currency:             f.Currency,
	}, nil
}

// splitCents rounds parts to cents so that they add up to total rounded to
// cents. Every part is first rounded down; the missing cents go to the parts
// with the largest remainders, earlier parts first on ties. No part moves
// by a cent or more from its exact value, and none goes negative.
func splitCents(total decimal.Decimal, parts []decimal.Decimal) []float64 {
	floors := make([]decimal.Decimal, len(parts))
	rems := make([]decimal.Decimal, len(parts))
	sum := decimal.Zero
	for i, p := range parts {
		c := p.Mul(hundred)
		floors[i] = c.Floor()
		rems[i] = c.Sub(floors[i])
		sum = sum.Add(floors[i])
	}

	missing := total.Round(determinism.MoneyPlaces).Mul(hundred).Sub(sum).IntPart()
	order := make([]int, len(parts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rems[order[a]].GreaterThan(rems[order[b]]) })
	for _, i := range order {
		if missing <= 0 {
			break
		}
		if rems[i].IsZero() {
			break
		}
		floors[i] = floors[i].Add(one)
		missing--
	}

	out := make([]float64, len(parts))
	for i, c := range floors {
		out[i] = c.Div(hundred).InexactFloat64()
	}
	return out
}

// BestBreak returns the discount percent of the break with the largest
// min_qty not above quantity, or 0. Breaks may be in any order.
func BestBreak(breaks []costmodel.QuantityBreak, quantity int) float64 {
	best := -1
	var percent float64
	for _, b := range breaks {
		if b.MinQty <= quantity && b.MinQty > best {
			best = b.MinQty
			percent = b.DiscountPercent
		}
	}
	return percent
}

// ComputeForQuantities prices base at each quantity, in the order given.
func ComputeForQuantities(base Input, quantities []int) ([]Breakdown, error) {
	out := make([]Breakdown, 0, len(quantities))
	for _, q := range quantities {
		in := base
		in.Quantity = q
		b, err := Compute(in)
		if err != nil {
			return nil, errors.Wrapf(errors.TypePricing, err, "quantity %d", q)
		}
		out = append(out, b)
	}
	return out, nil
}

type field struct {
	name  string
	value float64
}

func (in Input) validate() error {
	if err := in.Metrics.Validate(); err != nil {
		return err
	}

	f := in.Factors
	fields := []field{
		{"machine_rate_per_hour", f.MachineRatePerHour},
		{"setup_cost", f.SetupCost},
		{"material_price_per_kg", f.MaterialPricePerKg},
		{"inspection_cost_per_part", f.InspectionCostPerPart},
		{"overhead_percent", f.OverheadPercent},
		{"base_margin_percent", f.BaseMarginPercent},
		{"min_margin_per_part", f.MinMarginPerPart},
		{"rush_multiplier", f.RushMultiplier},
	}
	for _, id := range determinism.SortedKeys(f.FinishCostAdders) {
		fields = append(fields, field{"finish_cost_adders." + id, f.FinishCostAdders[id]})
	}
	if o := in.Overrides; o != nil {
		for _, ov := range []struct {
			name  string
			value *float64
		}{
			{"overrides.machine_time_min", o.MachineTimeMin},
			{"overrides.cycle_time_min", o.CycleTimeMin},
			{"overrides.material_mass_kg", o.MaterialMassKg},
		} {
			if ov.value != nil {
				fields = append(fields, field{ov.name, *ov.value})
			}
		}
	}

	if !determinism.Finite(in.ToleranceMultiplier) {
		return errors.Pricing("tolerance_multiplier is not finite")
	}
	for _, fl := range fields {
		if !determinism.Finite(fl.value) {
			return errors.Pricingf("%s is not finite", fl.name)
		}
		if fl.value < 0 {
			return errors.Pricingf("%s must be non-negative", fl.name)
		}
	}
	for _, b := range f.QuantityBreaks {
		if !determinism.Finite(b.DiscountPercent) || b.DiscountPercent < 0 || b.DiscountPercent > 100 {
			return errors.Pricingf("quantity break at %d has discount %v outside 0..100", b.MinQty, b.DiscountPercent)
		}
	}
	return nil
}
