// Package finish validates ordered finish-operation chains and composes their
// cost and lead time from each operation's formulas.
package finish

import (
	"fmt"
	"sort"

	"partquote/core/formula"
	"partquote/core/geometry"
	"partquote/internal/errors"
)

// Mode is how an operation's lead time combines with its neighbours
type Mode string

const (
	ModeAdd    Mode = "add"
	ModeMax    Mode = "max"
	ModeSerial Mode = "serial"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeAdd || m == ModeMax || m == ModeSerial
}

// QoS is an operation's lead-time combination rule
type QoS struct {
	Mode               Mode `json:"mode"`
	ParallelCompatible bool `json:"parallel_compatible"`
}

// Operation is an admin-managed finish operation. Version bumps on every
// edit and keys the formula cache.
type Operation struct {
	Code              string                 `json:"code"`
	Name              string                 `json:"name,omitempty"`
	CostFormula       string                 `json:"cost_formula"`
	LeadDaysFormula   string                 `json:"lead_days_formula"`
	Prerequisites     []string               `json:"prerequisites,omitempty"`
	Incompatibilities []string               `json:"incompatibilities,omitempty"`
	QoS               QoS                    `json:"qos"`
	Version           int                    `json:"version"`
	Active            bool                   `json:"active"`
	ProcessTypes      []geometry.ProcessType `json:"process_types,omitempty"`
}

// Supports reports whether the operation may run on parts of process.
// An empty ProcessTypes list allows every process.
func (o *Operation) Supports(process geometry.ProcessType) bool {
	if len(o.ProcessTypes) == 0 || process == "" {
		return true
	}
	for _, p := range o.ProcessTypes {
		if p == process {
			return true
		}
	}
	return false
}

func (o *Operation) incompatibleWith(code string) bool {
	for _, c := range o.Incompatibilities {
		if c == code {
			return true
		}
	}
	return false
}

// Catalog is an immutable, validated set of operations keyed by code
type Catalog struct {
	ops   map[string]Operation
	codes []string
}

// NewCatalog validates ops and indexes them. An empty QoS mode becomes add.
// Duplicate codes, unknown modes, self references, references to unknown
// codes and formulas that fail to compile are all rejected.
func NewCatalog(ops []Operation) (*Catalog, error) {
	c := &Catalog{ops: make(map[string]Operation, len(ops))}
	var problems []string
	report := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, op := range ops {
		if op.Code == "" {
			report("operation with empty code")
			continue
		}
		if _, dup := c.ops[op.Code]; dup {
			report("%s: duplicate operation code", op.Code)
			continue
		}
		if op.QoS.Mode == "" {
			op.QoS.Mode = ModeAdd
		}
		if !op.QoS.Mode.Valid() {
			report("%s: unknown qos mode %q", op.Code, op.QoS.Mode)
		}
		for _, p := range op.ProcessTypes {
			if !p.Valid() {
				report("%s: unknown process type %q", op.Code, p)
			}
		}
		for name, src := range map[string]string{"cost": op.CostFormula, "lead_days": op.LeadDaysFormula} {
			if err := lint(src); err != nil {
				report("%s: %s formula: %v", op.Code, name, err)
			}
		}
		op.Prerequisites = append([]string(nil), op.Prerequisites...)
		op.Incompatibilities = append([]string(nil), op.Incompatibilities...)
		op.ProcessTypes = append([]geometry.ProcessType(nil), op.ProcessTypes...)
		c.ops[op.Code] = op
		c.codes = append(c.codes, op.Code)
	}

	sort.Strings(c.codes)
	for _, code := range c.codes {
		op := c.ops[code]
		for _, p := range op.Prerequisites {
			switch {
			case p == code:
				report("%s: lists itself as a prerequisite", code)
			case !c.has(p):
				report("%s: prerequisite %s is not in the catalog", code, p)
			}
		}
		for _, i := range op.Incompatibilities {
			switch {
			case i == code:
				report("%s: lists itself as incompatible", code)
			case !c.has(i):
				report("%s: incompatibility %s is not in the catalog", code, i)
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, errors.New(errors.TypeConfig, fmt.Sprintf("finish catalog has %d problem(s): %s", len(problems), problems[0])).
			WithContext("problems", problems)
	}
	return c, nil
}

func lint(src string) error {
	prog, err := formula.Compile(src)
	if err != nil {
		return err
	}
	return prog.Check()
}

func (c *Catalog) has(code string) bool {
	_, ok := c.ops[code]
	return ok
}

// Get returns the operation for code
func (c *Catalog) Get(code string) (Operation, bool) {
	op, ok := c.ops[code]
	return op, ok
}

// Codes returns all operation codes, sorted
func (c *Catalog) Codes() []string {
	return append([]string(nil), c.codes...)
}

// Operations returns all operations sorted by code
func (c *Catalog) Operations() []Operation {
	out := make([]Operation, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, c.ops[code])
	}
	return out
}

// Len returns the number of operations
func (c *Catalog) Len() int { return len(c.codes) }
