package pricing

import (
	"partquote/core/determinism"
	"partquote/internal/errors"
)

// ToleranceClass names a tolerance band offered on quotes
type ToleranceClass string

const (
	ToleranceStandard  ToleranceClass = "standard"
	TolerancePrecision ToleranceClass = "precision"
	ToleranceHigh      ToleranceClass = "high"
	ToleranceCustom    ToleranceClass = "custom"
)

// toleranceMultipliers are the stock multipliers per class
var toleranceMultipliers = map[ToleranceClass]float64{
	ToleranceStandard:  1.0,
	TolerancePrecision: 1.15,
	ToleranceHigh:      1.35,
}

// ToleranceMultiplier maps a class to its multiplier. custom is only read for
// ToleranceCustom and must be at least 1. An empty class is standard.
func ToleranceMultiplier(class ToleranceClass, custom float64) (float64, error) {
	if class == "" {
		class = ToleranceStandard
	}
	if class == ToleranceCustom {
		if !determinism.Finite(custom) || custom < 1 {
			return 0, errors.Newf(errors.TypeInput, "custom tolerance multiplier must be >= 1, got %v", custom)
		}
		return custom, nil
	}
	m, ok := toleranceMultipliers[class]
	if !ok {
		return 0, errors.Newf(errors.TypeInput, "unknown tolerance class %q", class)
	}
	return m, nil
}
