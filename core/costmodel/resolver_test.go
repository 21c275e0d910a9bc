package costmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partquote/core/geometry"
	"partquote/internal/errors"
)

func testModel() *CostModel {
	return &CostModel{
		Name:     "default",
		Version:  "2024.1",
		Currency: "USD",
		Machine: Machine{
			ID:              "vmc-3axis",
			RatePerHour:     90,
			SetupCost:       40,
			OverheadPercent: 0.15,
		},
		Material: Material{ID: "al", CatalogMaterialID: "aluminum-6061", RawCostPerKg: 6},
		Finishes: []Finish{
			{ID: "f1", CatalogFinishID: "anodize-black", CostPerPart: 2.5, BatchSetupCost: 50},
			{ID: "f2", CatalogFinishID: "bead-blast", CostPerPart: 1, CostPerCM2: 0.01},
		},
		InspectionLevels: []Inspection{
			{ID: "i1", Level: InspectionBasic, CostPerPart: 0.5},
			{ID: "i2", Level: InspectionFull, CostPerPart: 4},
		},
		LeadTimeTiers: []LeadTimeTier{
			{ID: "t1", Code: "standard", Days: 10, PriceMultiplier: 1},
			{ID: "t2", Code: "expedited", Days: 5, PriceMultiplier: 1.3},
		},
		QuantityDiscounts: []QuantityDiscount{
			{MinQty: 100, Discount: 0.12},
			{MinQty: 10, Discount: 0.05},
			{MinQty: 50, Discount: 0.07},
		},
		Complexity: DefaultComplexity(),
		Margin:     Margin{BaseMarginPercent: 0.3},
	}
}

func TestResolveBasics(t *testing.T) {
	m := testModel()
	f, err := Resolve(m, Selection{Quantity: 10}, geometry.Metrics{})
	require.NoError(t, err)

	assert.Equal(t, 90.0, f.MachineRatePerHour)
	assert.Equal(t, 40.0, f.SetupCost)
	assert.Equal(t, 6.0, f.MaterialPricePerKg)
	assert.Equal(t, "aluminum-6061", f.MaterialKey)
	assert.Equal(t, 0.15, f.OverheadPercent)
	assert.Equal(t, 0.3, f.BaseMarginPercent)
	assert.Equal(t, "USD", f.Currency)
	assert.Equal(t, 0.5, f.InspectionCostPerPart, "empty level resolves as basic")
	assert.Zero(t, f.RushMultiplier)
	assert.Nil(t, f.FinishCostAdders)
}

func TestResolveFinishAdders(t *testing.T) {
	m := testModel()
	f, err := Resolve(m, Selection{
		Quantity:  20,
		FinishIDs: []string{"anodize-black", "bead-blast", "chrome"},
	}, geometry.Metrics{SurfaceAreaCM2: 150})
	require.NoError(t, err)

	require.Len(t, f.FinishCostAdders, 2, "unknown finish ids are skipped")
	assert.InDelta(t, 2.5+50.0/20, f.FinishCostAdders["anodize-black"], 1e-9)
	assert.InDelta(t, 1+0.01*150, f.FinishCostAdders["bead-blast"], 1e-9)
}

func TestResolveInspection(t *testing.T) {
	m := testModel()

	f, err := Resolve(m, Selection{Quantity: 1, InspectionLevel: InspectionFull}, geometry.Metrics{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, f.InspectionCostPerPart)

	f, err = Resolve(m, Selection{Quantity: 1, InspectionLevel: InspectionEnhanced}, geometry.Metrics{})
	require.NoError(t, err)
	assert.Zero(t, f.InspectionCostPerPart, "missing driver resolves to zero")
}

func TestResolveRush(t *testing.T) {
	m := testModel()

	f, err := Resolve(m, Selection{Quantity: 1, LeadTimeOption: "expedited"}, geometry.Metrics{})
	require.NoError(t, err)
	assert.Equal(t, 1.3, f.RushMultiplier)

	f, err = Resolve(m, Selection{Quantity: 1, LeadTimeOption: "standard"}, geometry.Metrics{})
	require.NoError(t, err)
	assert.Zero(t, f.RushMultiplier, "multipliers <= 1 have no rush effect")

	f, err = Resolve(m, Selection{Quantity: 1, LeadTimeOption: "overnight"}, geometry.Metrics{})
	require.NoError(t, err)
	assert.Zero(t, f.RushMultiplier)
}

func TestResolveQuantityBreaks(t *testing.T) {
	m := testModel()
	f, err := Resolve(m, Selection{Quantity: 1}, geometry.Metrics{})
	require.NoError(t, err)

	assert.Equal(t, []QuantityBreak{
		{MinQty: 10, DiscountPercent: 5},
		{MinQty: 50, DiscountPercent: 7},
		{MinQty: 100, DiscountPercent: 12},
	}, f.QuantityBreaks)

	// the model's own slice keeps its order
	assert.Equal(t, 100, m.QuantityDiscounts[0].MinQty)
}

func TestResolveComplexity(t *testing.T) {
	m := testModel()

	tests := []struct {
		level ComplexityLevel
		rate  float64
	}{
		{"", 90},
		{ComplexityLow, 90},
		{ComplexityMedium, 99},
		{ComplexityHigh, 112.5},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			f, err := Resolve(m, Selection{Quantity: 1, MachiningComplexity: tt.level}, geometry.Metrics{})
			require.NoError(t, err)
			assert.Equal(t, tt.rate, f.MachineRatePerHour)
		})
	}

	_, err := Resolve(m, Selection{Quantity: 1, MachiningComplexity: "extreme"}, geometry.Metrics{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeInput))
}

func TestResolveRejectsNonPositiveQuantity(t *testing.T) {
	for _, q := range []int{0, -3} {
		_, err := Resolve(testModel(), Selection{Quantity: q}, geometry.Metrics{})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.TypeInput))
	}
}

func TestLeadTimeDays(t *testing.T) {
	m := testModel()
	assert.Equal(t, 5, m.LeadTimeDays("expedited"))
	assert.Equal(t, 10, m.LeadTimeDays(""))
	assert.Equal(t, 10, m.LeadTimeDays("unknown"))

	empty := &CostModel{}
	assert.Zero(t, empty.LeadTimeDays("standard"))
}

func TestValidate(t *testing.T) {
	require.NoError(t, testModel().Validate())

	tests := []struct {
		name   string
		mutate func(m *CostModel)
	}{
		{"zero rate", func(m *CostModel) { m.Machine.RatePerHour = 0 }},
		{"overhead above one", func(m *CostModel) { m.Machine.OverheadPercent = 1.5 }},
		{"no tiers", func(m *CostModel) { m.LeadTimeTiers = nil }},
		{"tier below one", func(m *CostModel) { m.LeadTimeTiers[1].PriceMultiplier = 0.8 }},
		{"duplicate tier", func(m *CostModel) { m.LeadTimeTiers[1].Code = "standard" }},
		{"discount as percent", func(m *CostModel) { m.QuantityDiscounts[0].Discount = 12 }},
		{"duplicate finish", func(m *CostModel) { m.Finishes[1].CatalogFinishID = "anodize-black" }},
		{"bad inspection level", func(m *CostModel) { m.InspectionLevels[0].Level = "extreme" }},
		{"negative margin", func(m *CostModel) { m.Margin.BaseMarginPercent = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testModel()
			tt.mutate(m)
			err := m.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeConfig))
		})
	}
}
