// Package catalog loads finish operations, cost models and formula lookup
// tables from HCL files.
//
// A catalog directory holds any number of .hcl files containing
// finish_operation, cost_model, region and hazard blocks. Files are read in
// lexical path order and merged; a name defined twice is an error.
package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.uber.org/zap"

	"partquote/core/costmodel"
	"partquote/core/finish"
	"partquote/core/formula"
	"partquote/core/geometry"
	"partquote/internal/errors"
)

// Extension is the catalog file extension
const Extension = ".hcl"

// Catalog is everything a quoting engine needs from configuration
type Catalog struct {
	Operations *finish.Catalog
	CostModels []*costmodel.CostModel
	Tables     formula.Tables

	// Files lists the files that were read, in load order
	Files []string
}

// Composer wires the operations and tables into a chain composer
func (c *Catalog) Composer(policy finish.Policy, opts ...formula.Option) *finish.Composer {
	return finish.NewComposer(
		finish.NewValidator(c.Operations, policy),
		formula.NewEvaluator(c.Tables, opts...),
	)
}

// Loader reads catalog files
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load reads path, which is a single .hcl file or a directory searched
// recursively. A directory with no catalog files yields an empty catalog.
func (l *Loader) Load(ctx context.Context, path string) (*Catalog, error) {
	files, err := findFiles(path)
	if err != nil {
		return nil, errors.Config(fmt.Sprintf("reading catalog %s", path), err)
	}
	if len(files) == 0 {
		l.logger.Warn("no catalog files found", zap.String("path", path))
	}

	// hclparse.Parser caches by filename and is not safe to share
	parser := hclparse.NewParser()
	merged := &hclFile{}
	var diags hcl.Diagnostics
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, fileDiags := parser.ParseHCLFile(file)
		diags = append(diags, fileDiags...)
		if fileDiags.HasErrors() {
			continue
		}
		var parsed hclFile
		decodeDiags := gohcl.DecodeBody(f.Body, nil, &parsed)
		diags = append(diags, decodeDiags...)
		if decodeDiags.HasErrors() {
			continue
		}
		merged.Operations = append(merged.Operations, parsed.Operations...)
		merged.CostModels = append(merged.CostModels, parsed.CostModels...)
		merged.Regions = append(merged.Regions, parsed.Regions...)
		merged.Hazards = append(merged.Hazards, parsed.Hazards...)
		l.logger.Debug("catalog file parsed",
			zap.String("file", file),
			zap.Int("operations", len(parsed.Operations)),
			zap.Int("cost_models", len(parsed.CostModels)))
	}
	if diags.HasErrors() {
		return nil, errors.Config("catalog files have errors", diags)
	}

	cat, err := build(merged)
	if err != nil {
		return nil, err
	}
	cat.Files = files

	l.logger.Info("catalog loaded",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("operations", cat.Operations.Len()),
		zap.Int("cost_models", len(cat.CostModels)),
		zap.Int("regions", len(cat.Tables.Regions)),
		zap.Int("hazards", len(cat.Tables.Hazards)))
	return cat, nil
}

// Parse loads a catalog from in-memory HCL source. filename is used only in
// diagnostics.
func Parse(src []byte, filename string) (*Catalog, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Config("catalog has errors", diags)
	}
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, errors.Config("catalog has errors", diags)
	}
	return build(&parsed)
}

func findFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), Extension) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func build(f *hclFile) (*Catalog, error) {
	ops := make([]finish.Operation, 0, len(f.Operations))
	for _, o := range f.Operations {
		ops = append(ops, toOperation(o))
	}
	operations, err := finish.NewCatalog(ops)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{Operations: operations}
	names := make(map[string]bool, len(f.CostModels))
	for _, m := range f.CostModels {
		if names[m.Name] {
			return nil, errors.Newf(errors.TypeConfig, "cost model %q is defined twice", m.Name)
		}
		names[m.Name] = true
		model := toCostModel(m)
		if err := model.Validate(); err != nil {
			return nil, errors.Wrapf(errors.TypeConfig, err, "cost model %q", m.Name)
		}
		cat.CostModels = append(cat.CostModels, model)
	}

	tables, err := toTables(f.Regions, f.Hazards)
	if err != nil {
		return nil, err
	}
	cat.Tables = tables
	return cat, nil
}

func toOperation(o hclOperation) finish.Operation {
	active := true
	if o.Active != nil {
		active = *o.Active
	}
	return finish.Operation{
		Code:              o.Code,
		Name:              o.Name,
		CostFormula:       o.CostFormula,
		LeadDaysFormula:   o.LeadDaysFormula,
		Prerequisites:     o.Prerequisites,
		Incompatibilities: o.Incompatibilities,
		QoS: finish.QoS{
			Mode:               finish.Mode(o.Mode),
			ParallelCompatible: o.ParallelCompatible,
		},
		Version:      o.Version,
		Active:       active,
		ProcessTypes: processTypes(o.ProcessTypes),
	}
}

func toCostModel(m hclCostModel) *costmodel.CostModel {
	model := &costmodel.CostModel{
		Name:     m.Name,
		Version:  m.Version,
		Currency: m.Currency,
		Machine: costmodel.Machine{
			ID:              m.Machine.ID,
			Label:           m.Machine.Label,
			ProcessTypes:    processTypes(m.Machine.ProcessTypes),
			RatePerHour:     m.Machine.RatePerHour,
			SetupCost:       m.Machine.SetupCost,
			OverheadPercent: m.Machine.OverheadPercent,
		},
		Material: costmodel.Material{
			ID:                m.Material.ID,
			CatalogMaterialID: m.Material.CatalogMaterialID,
			RawCostPerKg:      m.Material.RawCostPerKg,
		},
		Complexity: costmodel.DefaultComplexity(),
		Margin: costmodel.Margin{
			BaseMarginPercent: m.Margin.BaseMarginPercent,
			MinMarginPerPart:  m.Margin.MinMarginPerPart,
		},
	}
	if model.Material.CatalogMaterialID == "" {
		model.Material.CatalogMaterialID = m.Material.ID
	}
	if m.Complexity != nil {
		model.Complexity = costmodel.Complexity{
			Low:    m.Complexity.Low,
			Medium: m.Complexity.Medium,
			High:   m.Complexity.High,
		}
	}
	for _, f := range m.Finishes {
		model.Finishes = append(model.Finishes, costmodel.Finish{
			ID:              f.CatalogFinishID,
			CatalogFinishID: f.CatalogFinishID,
			Label:           f.Label,
			CostPerPart:     f.CostPerPart,
			CostPerCM2:      f.CostPerCM2,
			BatchSetupCost:  f.BatchSetupCost,
		})
	}
	for _, i := range m.Inspections {
		model.InspectionLevels = append(model.InspectionLevels, costmodel.Inspection{
			ID:          i.Level,
			Level:       costmodel.InspectionLevel(i.Level),
			CostPerPart: i.CostPerPart,
		})
	}
	for _, t := range m.LeadTimes {
		mult := t.PriceMultiplier
		if mult == 0 {
			mult = 1
		}
		model.LeadTimeTiers = append(model.LeadTimeTiers, costmodel.LeadTimeTier{
			ID:              t.Code,
			Code:            t.Code,
			Label:           t.Label,
			Days:            t.Days,
			PriceMultiplier: mult,
		})
	}
	for _, d := range m.Discounts {
		model.QuantityDiscounts = append(model.QuantityDiscounts, costmodel.QuantityDiscount{
			MinQty:   d.MinQty,
			Discount: d.Discount,
		})
	}
	return model
}

func toTables(regions []hclRegion, hazards []hclHazard) (formula.Tables, error) {
	t := formula.Tables{
		Regions: make(map[string]formula.Region, len(regions)),
		Hazards: make(map[string]formula.Hazard, len(hazards)),
	}
	for _, r := range regions {
		if _, dup := t.Regions[r.Name]; dup {
			return formula.Tables{}, errors.Newf(errors.TypeConfig, "region %q is defined twice", r.Name)
		}
		mult := 1.0
		if r.Multiplier != nil {
			mult = *r.Multiplier
		}
		if mult <= 0 {
			return formula.Tables{}, errors.Newf(errors.TypeConfig, "region %q multiplier must be positive", r.Name)
		}
		overrides, err := numberMap(r.Overrides)
		if err != nil {
			return formula.Tables{}, errors.Wrapf(errors.TypeConfig, err, "region %q overrides", r.Name)
		}
		t.Regions[r.Name] = formula.Region{Multiplier: mult, Overrides: overrides}
	}
	for _, h := range hazards {
		if _, dup := t.Hazards[h.Material]; dup {
			return formula.Tables{}, errors.Newf(errors.TypeConfig, "hazard %q is defined twice", h.Material)
		}
		if h.Fee < 0 {
			return formula.Tables{}, errors.Newf(errors.TypeConfig, "hazard %q fee must be non-negative", h.Material)
		}
		codes, err := numberMap(h.Codes)
		if err != nil {
			return formula.Tables{}, errors.Wrapf(errors.TypeConfig, err, "hazard %q codes", h.Material)
		}
		t.Hazards[h.Material] = formula.Hazard{Fee: h.Fee, Codes: codes}
	}
	return t, nil
}

func processTypes(in []string) []geometry.ProcessType {
	if len(in) == 0 {
		return nil
	}
	out := make([]geometry.ProcessType, len(in))
	for i, p := range in {
		out[i] = geometry.ProcessType(p)
	}
	return out
}
