package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"partquote/core/finish"
	"partquote/core/formula"
	"partquote/core/geometry"
	"partquote/internal/errors"
)

const sampleDir = "../../catalog"

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func TestLoadSampleCatalog(t *testing.T) {
	cat, err := NewLoader(nil).Load(context.Background(), sampleDir)
	require.NoError(t, err)

	assert.Len(t, cat.Files, 3)
	assert.Equal(t,
		[]string{"ANODIZE", "BEAD_BLAST", "CHROMATE", "PASSIVATE", "POWDER_COAT", "TUMBLE"},
		cat.Operations.Codes())

	anodize, ok := cat.Operations.Get("ANODIZE")
	require.True(t, ok)
	assert.Equal(t, []string{"BEAD_BLAST"}, anodize.Prerequisites)
	assert.Equal(t, finish.ModeSerial, anodize.QoS.Mode)
	assert.Equal(t, 2, anodize.Version)
	assert.True(t, anodize.Active)
	assert.Equal(t, []geometry.ProcessType{geometry.ProcessCNCMilling, geometry.ProcessCNCTurning}, anodize.ProcessTypes)

	chromate, _ := cat.Operations.Get("CHROMATE")
	assert.False(t, chromate.Active)

	tumble, _ := cat.Operations.Get("TUMBLE")
	assert.True(t, tumble.QoS.ParallelCompatible)

	require.Len(t, cat.CostModels, 1)
	m := cat.CostModels[0]
	assert.Equal(t, "default", m.Name)
	assert.Equal(t, "2024-03", m.Version)
	assert.Equal(t, 90.0, m.Machine.RatePerHour)
	assert.Equal(t, "aluminum-6061", m.Material.CatalogMaterialID)
	assert.Len(t, m.LeadTimeTiers, 3)
	assert.Equal(t, 1.0, m.LeadTimeTiers[0].PriceMultiplier)
	assert.Len(t, m.QuantityDiscounts, 3)
	assert.Equal(t, 0.3, m.Margin.BaseMarginPercent)

	assert.Equal(t, 1.5, cat.Tables.RegionMultiplier("EU", "BEAD_BLAST"))
	assert.Equal(t, 1.2, cat.Tables.RegionMultiplier("EU", "ANODIZE"))
	assert.Equal(t, 0.9, cat.Tables.RegionMultiplier("APAC", ""))
	assert.Equal(t, 30.0, cat.Tables.HazardFee("stainless-316", "PASSIVATE"))
	assert.Equal(t, 4.0, cat.Tables.HazardFee("brass", "ANODIZE"))
}

func TestSampleCatalogComposes(t *testing.T) {
	cat, err := NewLoader(nil).Load(context.Background(), sampleDir)
	require.NoError(t, err)

	composer := cat.Composer(finish.PolicyBefore)
	chain, err := composer.Compose(
		finish.StepsFromCodes([]string{"BEAD_BLAST", "ANODIZE"}),
		formula.Context{AreaM2: 0.05, Qty: 10, Material: "aluminum-6061", Region: "EU"},
	)
	require.NoError(t, err)
	require.Len(t, chain.Steps, 2)
	assert.Equal(t, int64(2700), chain.Steps[0].CostCents)
	assert.Equal(t, int64(960), chain.Steps[1].CostCents)
	assert.Equal(t, int64(3660), chain.TotalCostCents)
	assert.Equal(t, 4, chain.AddedLeadDays)
}

func TestLoadSingleFile(t *testing.T) {
	cat, err := NewLoader(nil).Load(context.Background(), filepath.Join(sampleDir, "tables.hcl"))
	require.NoError(t, err)
	assert.Zero(t, cat.Operations.Len())
	assert.Empty(t, cat.CostModels)
	assert.Len(t, cat.Tables.Regions, 2)
}

func TestLoadEmptyDirectoryWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dir := writeFiles(t, map[string]string{"README.txt": "not a catalog"})

	cat, err := NewLoader(zap.New(core)).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, cat.Operations.Len())
	assert.Equal(t, 1, logs.FilterMessage("no catalog files found").Len())
}

func TestLoadMergesNestedFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.hcl": `finish_operation "A" {
  cost_formula      = "1"
  lead_days_formula = "1"
}`,
		"nested/b.hcl": `finish_operation "B" {
  cost_formula      = "2"
  lead_days_formula = "1"
  prerequisites     = ["A"]
}`,
	})
	cat, err := NewLoader(nil).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, cat.Operations.Codes())

	b, _ := cat.Operations.Get("B")
	assert.Equal(t, finish.ModeAdd, b.QoS.Mode)
	assert.True(t, b.Active)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"syntax", map[string]string{"a.hcl": `finish_operation "A" {`}},
		{"missing formula", map[string]string{"a.hcl": `finish_operation "A" {
  lead_days_formula = "1"
}`}},
		{"unknown block", map[string]string{"a.hcl": `widget "x" {}`}},
		{"bad formula", map[string]string{"a.hcl": `finish_operation "A" {
  cost_formula      = "1 +"
  lead_days_formula = "1"
}`}},
		{"unknown prerequisite", map[string]string{"a.hcl": `finish_operation "A" {
  cost_formula      = "1"
  lead_days_formula = "1"
  prerequisites     = ["Z"]
}`}},
		{"duplicate operation across files", map[string]string{
			"a.hcl": `finish_operation "A" {
  cost_formula      = "1"
  lead_days_formula = "1"
}`,
			"b.hcl": `finish_operation "A" {
  cost_formula      = "2"
  lead_days_formula = "1"
}`,
		}},
		{"invalid cost model", map[string]string{"a.hcl": `cost_model "m" {
  machine "x" {
    rate_per_hour = 0
  }
  material "al" {
    raw_cost_per_kg = 6
  }
  lead_time "standard" {
    days = 10
  }
  margin {
    base_margin_percent = 0.3
  }
}`}},
		{"duplicate region", map[string]string{"a.hcl": `region "EU" {
  multiplier = 1.2
}
region "EU" {
  multiplier = 1.1
}`}},
		{"zero region multiplier", map[string]string{"a.hcl": `region "EU" {
  multiplier = 0
}`}},
		{"negative region multiplier", map[string]string{"a.hcl": `region "EU" {
  multiplier = -0.5
}`}},
		{"overrides not an object", map[string]string{"a.hcl": `region "EU" {
  overrides = "BEAD_BLAST"
}`}},
		{"negative hazard code fee", map[string]string{"a.hcl": `hazard "lead" {
  codes = {
    ANODIZE = -1
  }
}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, tt.files)
			_, err := NewLoader(nil).Load(context.Background(), dir)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeConfig), "got %v", err)
		})
	}
}

func TestLoadMissingPath(t *testing.T) {
	_, err := NewLoader(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(nil).Load(ctx, sampleDir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse(t *testing.T) {
	cat, err := Parse([]byte(`
region "EU" {
  multiplier = 1.2
  overrides = {
    ANODIZE = 1
  }
}
hazard "lead" {
  fee = 5
}
`), "inline.hcl")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ANODIZE": 1}, cat.Tables.Regions["EU"].Overrides)
	assert.Equal(t, 5.0, cat.Tables.Hazards["lead"].Fee)
	assert.Nil(t, cat.Tables.Hazards["lead"].Codes)

	_, err = Parse([]byte(`region "EU" {`), "broken.hcl")
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}

func TestParseRegionWithoutMultiplier(t *testing.T) {
	cat, err := Parse([]byte(`region "APAC" {
  overrides = {
    ANODIZE = 0.8
  }
}`), "regions.hcl")
	require.NoError(t, err)

	apac := cat.Tables.Regions["APAC"]
	assert.Equal(t, 1.0, apac.Multiplier)
	assert.Equal(t, 0.8, cat.Tables.RegionMultiplier("APAC", "ANODIZE"))
	assert.Equal(t, 1.0, cat.Tables.RegionMultiplier("APAC", "BEAD_BLAST"))
}
