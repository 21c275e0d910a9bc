package geometry

import (
	"math"
	"strings"
)

const (
	// RemovalRateCCPerMin is a conservative aluminum removal rate
	RemovalRateCCPerMin = 12.0

	// removalPassFactor accounts for roughing plus finishing passes
	removalPassFactor = 0.4

	// MaxComplexityMultiplier caps the surface-to-volume adjustment
	MaxComplexityMultiplier = 2.5

	// ToolChangeOverhead covers setup and tool changes during the cycle
	ToolChangeOverhead = 1.15

	// MinMachineTimeMin is the floor for any machined part
	MinMachineTimeMin = 2.0

	// DefaultDensityKgPerCC is used for materials missing from the table (steel)
	DefaultDensityKgPerCC = 0.0078
)

// FeatureMinutes is machining time per feature instance, in minutes.
var FeatureMinutes = map[string]float64{
	"holes":     0.35, // drill, spot, chamfer
	"pockets":   1.2,
	"slots":     0.6,
	"faces":     0.25,
	"bends":     0.8,
	"corners":   0.08,
	"threads":   0.75,
	"undercuts": 1.5, // special tooling
	"ribs":      0.4,
	"bosses":    0.5,
}

// Densities maps normalized material keys to kg per cubic centimetre.
var Densities = map[string]float64{
	"aluminum-6061": 0.0027,
	"aluminum-7075": 0.0028,
	"steel-1018":    0.0078,
	"steel-4140":    0.0078,
	"stainless-304": 0.0080,
	"stainless-316": 0.0080,
	"brass":         0.0085,
	"copper":        0.0089,
	"titanium":      0.0045,
	"plastic-abs":   0.00105,
	"plastic-nylon": 0.00114,
	"plastic-peek":  0.00132,
}

// Estimate is the estimator output for one part
type Estimate struct {
	MachineTimeMin float64 `json:"machine_time_min"`
	MaterialMassKg float64 `json:"material_mass_kg"`
}

// EstimatePart returns machine time and material mass for m. material may be
// empty, in which case the default density applies.
func EstimatePart(m Metrics, material string) Estimate {
	return Estimate{
		MachineTimeMin: MachineTimeMinutes(m),
		MaterialMassKg: MaterialMassKg(m, material),
	}
}

// MachineTimeMinutes sums per-feature time and volume removal time, scales by
// surface-to-volume complexity, adds tool change overhead, and applies the floor.
func MachineTimeMinutes(m Metrics) float64 {
	features := m.Features
	if features.Bends == 0 && m.Sheet != nil && m.Sheet.BendCount > 0 {
		features.Bends = m.Sheet.BendCount
	}

	var minutes float64
	for _, name := range featureOrder {
		if c := features.count(name); c > 0 {
			minutes += float64(c) * FeatureMinutes[name]
		}
	}

	if m.VolumeCC > 0 {
		minutes += m.VolumeCC / RemovalRateCCPerMin * removalPassFactor
		minutes *= ComplexityMultiplier(m)
	}

	minutes *= ToolChangeOverhead
	if minutes < MinMachineTimeMin || math.IsNaN(minutes) {
		minutes = MinMachineTimeMin
	}
	return minutes
}

// ComplexityMultiplier is 1 + (surface/volume ratio)/100, capped. It is 1
// unless both volume and surface area were measured.
func ComplexityMultiplier(m Metrics) float64 {
	if m.VolumeCC <= 0 || m.SurfaceAreaCM2 <= 0 {
		return 1
	}
	ratio := m.SurfaceAreaCM2 / (m.VolumeCC / 1000)
	return math.Min(1+ratio/100, MaxComplexityMultiplier)
}

// MaterialMassKg is volume times the density of material.
func MaterialMassKg(m Metrics, material string) float64 {
	if m.VolumeCC <= 0 {
		return 0
	}
	return m.VolumeCC * Density(material)
}

// Density looks up kg/cc for material, falling back to steel.
func Density(material string) float64 {
	if d, ok := Densities[NormalizeMaterialKey(material)]; ok {
		return d
	}
	return DefaultDensityKgPerCC
}

// NormalizeMaterialKey lower-cases the name and joins words with hyphens,
// so "Aluminum 6061" matches "aluminum-6061".
func NormalizeMaterialKey(material string) string {
	return strings.Join(strings.Fields(strings.ToLower(material)), "-")
}
