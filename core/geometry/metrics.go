// Package geometry turns CAD-derived part metrics into machine time and material mass.
package geometry

import (
	"fmt"

	"partquote/core/determinism"
	"partquote/internal/errors"
)

// ProcessType identifies the manufacturing process a part is quoted for
type ProcessType string

const (
	ProcessCNCMilling       ProcessType = "cnc_milling"
	ProcessCNCTurning       ProcessType = "cnc_turning"
	ProcessSheetMetal       ProcessType = "sheet_metal"
	ProcessSheetMetalLaser  ProcessType = "sheet_metal_laser"
	ProcessSheetMetalBrake  ProcessType = "sheet_metal_brake"
	ProcessInjectionMolding ProcessType = "injection_molding"
)

// IsSheet reports whether the process works from flat stock
func (p ProcessType) IsSheet() bool {
	switch p {
	case ProcessSheetMetal, ProcessSheetMetalLaser, ProcessSheetMetalBrake:
		return true
	}
	return false
}

// Valid reports whether p is a known process
func (p ProcessType) Valid() bool {
	switch p {
	case ProcessCNCMilling, ProcessCNCTurning, ProcessInjectionMolding:
		return true
	}
	return p.IsSheet()
}

// Point is a 3D coordinate in millimetres
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// BoundingBox is the axis-aligned extent of a part
type BoundingBox struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Size returns the box edge lengths
func (b BoundingBox) Size() Point {
	return Point{X: b.Max.X - b.Min.X, Y: b.Max.Y - b.Min.Y, Z: b.Max.Z - b.Min.Z}
}

// FeatureCounts holds the number of detected features per kind
type FeatureCounts struct {
	Holes     int `json:"holes,omitempty"`
	Pockets   int `json:"pockets,omitempty"`
	Slots     int `json:"slots,omitempty"`
	Faces     int `json:"faces,omitempty"`
	Bends     int `json:"bends,omitempty"`
	Corners   int `json:"corners,omitempty"`
	Threads   int `json:"threads,omitempty"`
	Undercuts int `json:"undercuts,omitempty"`
	Ribs      int `json:"ribs,omitempty"`
	Bosses    int `json:"bosses,omitempty"`
}

// SheetMetrics carries fields that only exist for sheet metal parts
type SheetMetrics struct {
	ThicknessMM        float64 `json:"thickness_mm"`
	FlatPatternAreaCM2 float64 `json:"flat_pattern_area_cm2,omitempty"`
	BendCount          int     `json:"bend_count,omitempty"`
	CutLengthMM        float64 `json:"cut_length_mm,omitempty"`
	NestUtilization    float64 `json:"nest_utilization,omitempty"`
}

// Metrics is the immutable geometry summary produced by CAD analysis.
// Zero VolumeCC or SurfaceAreaCM2 means "not measured".
type Metrics struct {
	Process        ProcessType   `json:"process,omitempty"`
	VolumeCC       float64       `json:"volume_cc,omitempty"`
	SurfaceAreaCM2 float64       `json:"surface_area_cm2,omitempty"`
	BoundingBox    *BoundingBox  `json:"bbox,omitempty"`
	Features       FeatureCounts `json:"features"`
	Sheet          *SheetMetrics `json:"sheet,omitempty"`
}

// NewMetrics stamps m with process and validates it for that process.
func NewMetrics(process ProcessType, m Metrics) (Metrics, error) {
	if !process.Valid() {
		return Metrics{}, errors.Newf(errors.TypeInput, "unknown process type %q", process)
	}
	m.Process = process
	if err := m.Validate(); err != nil {
		return Metrics{}, err
	}
	return m, nil
}

// Validate checks that every measurement is finite and non-negative, and that
// process-specific fields are present. Metrics with no process only get the
// numeric checks.
func (m Metrics) Validate() error {
	nums := []measure{
		{"volume_cc", m.VolumeCC},
		{"surface_area_cm2", m.SurfaceAreaCM2},
	}
	if m.BoundingBox != nil {
		b := m.BoundingBox
		if !determinism.Finite(b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z) {
			return errors.Pricing("bounding box contains a non-finite coordinate")
		}
	}
	if s := m.Sheet; s != nil {
		nums = append(nums,
			measure{"sheet.thickness_mm", s.ThicknessMM},
			measure{"sheet.flat_pattern_area_cm2", s.FlatPatternAreaCM2},
			measure{"sheet.cut_length_mm", s.CutLengthMM},
		)
		if s.BendCount < 0 {
			return errors.Pricing("sheet.bend_count must be non-negative")
		}
		if !determinism.Finite(s.NestUtilization) || s.NestUtilization < 0 || s.NestUtilization > 1 {
			return errors.Pricing("sheet.nest_utilization must be within 0..1")
		}
	}
	for _, n := range nums {
		if !determinism.Finite(n.value) {
			return errors.Pricingf("%s is not finite", n.name)
		}
		if n.value < 0 {
			return errors.Pricingf("%s must be non-negative", n.name)
		}
	}
	for _, name := range featureOrder {
		if m.Features.count(name) < 0 {
			return errors.Pricingf("feature count %s must be non-negative", name)
		}
	}

	if m.Process.IsSheet() && (m.Sheet == nil || m.Sheet.ThicknessMM <= 0) {
		return errors.Input(fmt.Sprintf("%s parts require sheet.thickness_mm", m.Process))
	}
	return nil
}

type measure struct {
	name  string
	value float64
}

// featureOrder fixes the summation order of per-feature machining time
var featureOrder = []string{
	"holes", "pockets", "slots", "faces", "bends",
	"corners", "threads", "undercuts", "ribs", "bosses",
}

func (f FeatureCounts) count(name string) int {
	switch name {
	case "holes":
		return f.Holes
	case "pockets":
		return f.Pockets
	case "slots":
		return f.Slots
	case "faces":
		return f.Faces
	case "bends":
		return f.Bends
	case "corners":
		return f.Corners
	case "threads":
		return f.Threads
	case "undercuts":
		return f.Undercuts
	case "ribs":
		return f.Ribs
	case "bosses":
		return f.Bosses
	}
	return 0
}
