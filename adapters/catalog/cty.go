package catalog

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// numberMap converts an object or map value of numbers into a Go map.
// An unset or null value yields nil. Unknown values are never passed through.
func numberMap(v cty.Value) (map[string]float64, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known at load time")
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("expected an object of numbers, got %s", ty.FriendlyName())
	}

	out := make(map[string]float64, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		k, elem := it.Element()
		key := k.AsString()
		if elem.IsNull() {
			return nil, fmt.Errorf("%s: value is null", key)
		}
		n, err := convert.Convert(elem, cty.Number)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		var f float64
		if err := gocty.FromCtyValue(n, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return nil, fmt.Errorf("%s: must be a non-negative number", key)
		}
		out[key] = f
	}
	return out, nil
}
