package catalog

import (
	"github.com/zclconf/go-cty/cty"
)

// hclFile is the top-level layout of one catalog file
type hclFile struct {
	Operations []hclOperation `hcl:"finish_operation,block"`
	CostModels []hclCostModel `hcl:"cost_model,block"`
	Regions    []hclRegion    `hcl:"region,block"`
	Hazards    []hclHazard    `hcl:"hazard,block"`
}

type hclOperation struct {
	Code               string   `hcl:"code,label"`
	Name               string   `hcl:"name,optional"`
	CostFormula        string   `hcl:"cost_formula"`
	LeadDaysFormula    string   `hcl:"lead_days_formula"`
	Prerequisites      []string `hcl:"prerequisites,optional"`
	Incompatibilities  []string `hcl:"incompatibilities,optional"`
	Mode               string   `hcl:"mode,optional"`
	ParallelCompatible bool     `hcl:"parallel_compatible,optional"`
	Version            int      `hcl:"version,optional"`
	Active             *bool    `hcl:"active,optional"`
	ProcessTypes       []string `hcl:"process_types,optional"`
}

type hclCostModel struct {
	Name        string          `hcl:"name,label"`
	Version     string          `hcl:"version,optional"`
	Currency    string          `hcl:"currency,optional"`
	Machine     hclMachine      `hcl:"machine,block"`
	Material    hclMaterial     `hcl:"material,block"`
	Finishes    []hclFinish     `hcl:"finish,block"`
	Inspections []hclInspection `hcl:"inspection,block"`
	LeadTimes   []hclLeadTime   `hcl:"lead_time,block"`
	Discounts   []hclDiscount   `hcl:"quantity_discount,block"`
	Complexity  *hclComplexity  `hcl:"complexity,block"`
	Margin      hclMargin       `hcl:"margin,block"`
}

type hclMachine struct {
	ID              string   `hcl:"id,label"`
	Label           string   `hcl:"label,optional"`
	ProcessTypes    []string `hcl:"process_types,optional"`
	RatePerHour     float64  `hcl:"rate_per_hour"`
	SetupCost       float64  `hcl:"setup_cost,optional"`
	OverheadPercent float64  `hcl:"overhead_percent,optional"`
}

type hclMaterial struct {
	ID                string  `hcl:"id,label"`
	CatalogMaterialID string  `hcl:"catalog_material_id,optional"`
	RawCostPerKg      float64 `hcl:"raw_cost_per_kg"`
}

type hclFinish struct {
	CatalogFinishID string  `hcl:"catalog_finish_id,label"`
	Label           string  `hcl:"label,optional"`
	CostPerPart     float64 `hcl:"cost_per_part,optional"`
	CostPerCM2      float64 `hcl:"cost_per_cm2,optional"`
	BatchSetupCost  float64 `hcl:"batch_setup_cost,optional"`
}

type hclInspection struct {
	Level       string  `hcl:"level,label"`
	CostPerPart float64 `hcl:"cost_per_part"`
}

type hclLeadTime struct {
	Code            string  `hcl:"code,label"`
	Label           string  `hcl:"label,optional"`
	Days            int     `hcl:"days"`
	PriceMultiplier float64 `hcl:"price_multiplier,optional"`
}

type hclDiscount struct {
	MinQty   int     `hcl:"min_qty"`
	Discount float64 `hcl:"discount"`
}

type hclComplexity struct {
	Low    float64 `hcl:"low,optional"`
	Medium float64 `hcl:"medium,optional"`
	High   float64 `hcl:"high,optional"`
}

type hclMargin struct {
	BaseMarginPercent float64 `hcl:"base_margin_percent"`
	MinMarginPerPart  float64 `hcl:"min_margin_per_part,optional"`
}

// hclRegion keeps overrides as a raw value: keys are operation codes, which
// a Go struct can't name up front.
type hclRegion struct {
	Name       string    `hcl:"name,label"`
	Multiplier *float64  `hcl:"multiplier,optional"`
	Overrides  cty.Value `hcl:"overrides,optional"`
}

type hclHazard struct {
	Material string    `hcl:"material,label"`
	Fee      float64   `hcl:"fee,optional"`
	Codes    cty.Value `hcl:"codes,optional"`
}
