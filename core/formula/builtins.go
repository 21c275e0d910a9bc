package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// call is one builtin invocation with evaluated arguments
type call struct {
	name   string
	pos    int
	args   []Value
	tables *Tables
}

func (c *call) number(i int) (float64, error) {
	if c.args[i].kind != KindNumber {
		return 0, evalErrorf(c.pos, "%s argument %d must be a number, got %s", c.name, i+1, c.args[i].kind)
	}
	return c.args[i].num, nil
}

func (c *call) string(i int) (string, error) {
	if c.args[i].kind != KindString {
		return "", evalErrorf(c.pos, "%s argument %d must be a string, got %s", c.name, i+1, c.args[i].kind)
	}
	return c.args[i].str, nil
}

type builtin struct {
	minArgs int
	maxArgs int // -1 means variadic
	call    func(c *call) (Value, error)
}

func (b builtin) arity() string {
	switch {
	case b.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", b.minArgs)
	case b.minArgs == b.maxArgs:
		return fmt.Sprintf("%d arguments", b.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", b.minArgs, b.maxArgs)
}

// builtins is the closed set of functions a formula may call
var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"tiered":     {minArgs: 2, maxArgs: 2, call: tiered},
		"regionMult": {minArgs: 1, maxArgs: 2, call: regionMult},
		"hazardFee":  {minArgs: 1, maxArgs: 2, call: hazardFee},
		"ceil":       {minArgs: 1, maxArgs: 1, call: unaryMath(math.Ceil)},
		"floor":      {minArgs: 1, maxArgs: 1, call: unaryMath(math.Floor)},
		"abs":        {minArgs: 1, maxArgs: 1, call: unaryMath(math.Abs)},
		"round":      {minArgs: 1, maxArgs: 2, call: round},
		"min":        {minArgs: 1, maxArgs: -1, call: extremum(math.Min)},
		"max":        {minArgs: 1, maxArgs: -1, call: extremum(math.Max)},
	}
}

// Builtins returns the names of all callable functions, sorted
func Builtins() []string {
	set := make(map[string]struct{}, len(builtins))
	for name := range builtins {
		set[name] = struct{}{}
	}
	return sortedSet(set)
}

func unaryMath(fn func(float64) float64) func(c *call) (Value, error) {
	return func(c *call) (Value, error) {
		x, err := c.number(0)
		if err != nil {
			return Value{}, err
		}
		return Number(fn(x)), nil
	}
}

// round(x) rounds half away from zero; round(x, places) keeps 0..6 places.
func round(c *call) (Value, error) {
	x, err := c.number(0)
	if err != nil {
		return Value{}, err
	}
	places := 0.0
	if len(c.args) == 2 {
		if places, err = c.number(1); err != nil {
			return Value{}, err
		}
		if places < 0 || places > 6 || places != math.Trunc(places) {
			return Value{}, evalErrorf(c.pos, "round places must be an integer between 0 and 6")
		}
	}
	scale := math.Pow(10, places)
	return Number(math.Round(x*scale) / scale), nil
}

func extremum(pick func(a, b float64) float64) func(c *call) (Value, error) {
	return func(c *call) (Value, error) {
		best, err := c.number(0)
		if err != nil {
			return Value{}, err
		}
		for i := 1; i < len(c.args); i++ {
			x, err := c.number(i)
			if err != nil {
				return Value{}, err
			}
			best = pick(best, x)
		}
		return Number(best), nil
	}
}

// tiered(value, [{upTo: n, price: p}, ...]) returns the price of the first
// bracket whose upTo is >= value. A bracket without upTo matches everything.
// Values above every bracket take the last bracket's price.
func tiered(c *call) (Value, error) {
	x, err := c.number(0)
	if err != nil {
		return Value{}, err
	}
	brackets := c.args[1]
	if brackets.kind != KindList {
		return Value{}, evalErrorf(c.pos, "tiered argument 2 must be a list of brackets, got %s", brackets.kind)
	}
	if len(brackets.list) == 0 {
		return Value{}, evalErrorf(c.pos, "tiered needs at least one bracket")
	}

	var last float64
	for i, br := range brackets.list {
		if br.kind != KindObject {
			return Value{}, evalErrorf(c.pos, "tiered bracket %d must be an object", i+1)
		}
		price, ok := br.field("price")
		if !ok || price.kind != KindNumber {
			return Value{}, evalErrorf(c.pos, "tiered bracket %d needs a numeric price", i+1)
		}
		last = price.num

		upTo, ok := br.field("upTo")
		if !ok {
			return price, nil
		}
		if upTo.kind != KindNumber {
			return Value{}, evalErrorf(c.pos, "tiered bracket %d upTo must be a number", i+1)
		}
		if x <= upTo.num {
			return price, nil
		}
	}
	return Number(last), nil
}

// regionMult(region) or regionMult(region, code)
func regionMult(c *call) (Value, error) {
	region, err := c.string(0)
	if err != nil {
		return Value{}, err
	}
	code := ""
	if len(c.args) == 2 {
		if code, err = c.string(1); err != nil {
			return Value{}, err
		}
	}
	return Number(c.tables.RegionMultiplier(region, code)), nil
}

// hazardFee(material) or hazardFee(material, code)
func hazardFee(c *call) (Value, error) {
	material, err := c.string(0)
	if err != nil {
		return Value{}, err
	}
	code := ""
	if len(c.args) == 2 {
		if code, err = c.string(1); err != nil {
			return Value{}, err
		}
	}
	return Number(c.tables.HazardFee(material, code)), nil
}

// Region is the regional pricing adjustment for finish operations. A zero
// Multiplier is treated as unset and prices at 1; the catalog loader never
// produces one.
type Region struct {
	Multiplier float64            `json:"multiplier"`
	Overrides  map[string]float64 `json:"overrides,omitempty"` // operation code -> multiplier
}

// Hazard is the handling fee for a hazardous material
type Hazard struct {
	Fee   float64            `json:"fee"`
	Codes map[string]float64 `json:"codes,omitempty"` // operation code -> fee
}

// Tables backs the lookup builtins. Keys are matched case-insensitively.
// Treat a Tables value as read-only once it is handed to an Evaluator.
type Tables struct {
	Regions map[string]Region `json:"regions,omitempty"`
	Hazards map[string]Hazard `json:"hazards,omitempty"`
}

// RegionMultiplier returns the code-specific override, else the region's
// multiplier, else 1.
func (t *Tables) RegionMultiplier(region, code string) float64 {
	r, ok := lookupFold(t.Regions, region)
	if !ok {
		return 1
	}
	if code != "" {
		if m, ok := lookupFold(r.Overrides, code); ok {
			return m
		}
	}
	if r.Multiplier == 0 {
		return 1
	}
	return r.Multiplier
}

// HazardFee returns the code-specific fee, else the material's fee, else 0.
func (t *Tables) HazardFee(material, code string) float64 {
	h, ok := lookupFold(t.Hazards, materialKey(material))
	if !ok {
		return 0
	}
	if code != "" {
		if fee, ok := lookupFold(h.Codes, code); ok {
			return fee
		}
	}
	return h.Fee
}

// clone deep-copies the tables so callers can't mutate an Evaluator's view
func (t Tables) clone() Tables {
	out := Tables{
		Regions: make(map[string]Region, len(t.Regions)),
		Hazards: make(map[string]Hazard, len(t.Hazards)),
	}
	for k, r := range t.Regions {
		out.Regions[k] = Region{Multiplier: r.Multiplier, Overrides: copyFloats(r.Overrides)}
	}
	for k, h := range t.Hazards {
		out.Hazards[k] = Hazard{Fee: h.Fee, Codes: copyFloats(h.Codes)}
	}
	return out
}

func copyFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func lookupFold[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return m[k], true
		}
	}
	var zero V
	return zero, false
}

func materialKey(material string) string {
	return strings.Join(strings.Fields(strings.ToLower(material)), "-")
}
