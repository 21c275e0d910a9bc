package formula

// Context is the complete set of values a formula can read. There is no way
// for a formula to reach anything else.
type Context struct {
	AreaM2    float64 `json:"area_m2"`
	VolumeCM3 float64 `json:"volume_cm3"`
	Qty       float64 `json:"qty"`
	Material  string  `json:"material"`
	Region    string  `json:"region"`
	Color     string  `json:"color"`
}

// ContextKeys lists the identifiers a formula may reference. "sa" is an
// alias of area_m2 kept for formulas written against surface area.
var ContextKeys = []string{"sa", "area_m2", "volume_cm3", "qty", "material", "region", "color"}

// IsContextKey reports whether name is readable by formulas
func IsContextKey(name string) bool {
	for _, k := range ContextKeys {
		if k == name {
			return true
		}
	}
	return false
}

func (c Context) lookup(name string) (Value, bool) {
	switch name {
	case "sa", "area_m2":
		return Number(c.AreaM2), true
	case "volume_cm3":
		return Number(c.VolumeCM3), true
	case "qty":
		return Number(c.Qty), true
	case "material":
		return String(c.Material), true
	case "region":
		return String(c.Region), true
	case "color":
		return String(c.Color), true
	}
	return Value{}, false
}
