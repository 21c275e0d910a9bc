package finish

import (
	"fmt"
	"sort"

	"partquote/core/determinism"
	"partquote/core/formula"
	"partquote/core/geometry"
	"partquote/internal/errors"
)

// leadDayPlaces trims float noise before lead days are rounded up
const leadDayPlaces = 6

// ChainStep is a step with its computed contribution
type ChainStep struct {
	OperationCode      string `json:"operation_code"`
	Sequence           int    `json:"sequence"`
	CostCents          int64  `json:"cost_cents"`
	LeadDays           int    `json:"lead_days"`
	Mode               Mode   `json:"mode"`
	ParallelCompatible bool   `json:"parallel_compatible"`
}

// Group is a run of consecutive steps sharing one mode
type Group struct {
	Mode      Mode  `json:"mode"`
	Sequences []int `json:"sequences"`
	LeadDays  int   `json:"lead_days"`
}

// Chain is a composed finish chain. It is derived state, rebuilt on every
// call.
type Chain struct {
	Steps          []ChainStep `json:"steps"`
	Groups         []Group     `json:"groups"`
	TotalCostCents int64       `json:"total_cost_cents"`
	AddedLeadDays  int         `json:"added_lead_days"`
}

// Composer evaluates a validated chain's formulas and aggregates the results
type Composer struct {
	validator *Validator
	evaluator *formula.Evaluator
}

// NewComposer returns a composer that validates with validator and evaluates
// formulas with evaluator
func NewComposer(validator *Validator, evaluator *formula.Evaluator) *Composer {
	return &Composer{validator: validator, evaluator: evaluator}
}

// Validator returns the composer's validator
func (c *Composer) Validator() *Validator { return c.validator }

// Evaluator returns the formula evaluator the composer runs chains with
func (c *Composer) Evaluator() *formula.Evaluator { return c.evaluator }

// Compose validates steps and, if the chain is valid, evaluates each step's
// cost and lead-days formulas against ctx. An invalid chain returns a
// VALIDATION_ERROR wrapping ValidationErrors; a formula failure returns a
// CHAIN_ERROR naming the step. No partial chain is ever returned.
func (c *Composer) Compose(steps []Step, ctx formula.Context) (*Chain, error) {
	return c.ComposeFor("", steps, ctx)
}

// ComposeFor is Compose with the process-specific checks enabled
func (c *Composer) ComposeFor(process geometry.ProcessType, steps []Step, ctx formula.Context) (*Chain, error) {
	if errs := c.validator.ValidateFor(process, steps); len(errs) > 0 {
		return nil, errors.Validation(fmt.Sprintf("finish chain has %d problem(s)", len(errs)), errs)
	}

	ordered := append([]Step(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	chain := &Chain{Steps: make([]ChainStep, 0, len(ordered))}
	for _, s := range ordered {
		op, _ := c.validator.catalog.Get(s.OperationCode)

		cost, err := c.evaluator.Evaluate(op.CostFormula, op.Version, ctx)
		if err != nil {
			return nil, errors.Chain(fmt.Sprintf("step %d (%s): cost formula failed", s.Sequence, op.Code), err)
		}
		days, err := c.evaluator.Evaluate(op.LeadDaysFormula, op.Version, ctx)
		if err != nil {
			return nil, errors.Chain(fmt.Sprintf("step %d (%s): lead days formula failed", s.Sequence, op.Code), err)
		}
		if cost < 0 || days < 0 {
			return nil, errors.Chain(fmt.Sprintf("step %d (%s): formulas must not produce negative values", s.Sequence, op.Code), nil).
				WithContext("cost", cost).
				WithContext("lead_days", days)
		}

		chain.Steps = append(chain.Steps, ChainStep{
			OperationCode:      op.Code,
			Sequence:           s.Sequence,
			CostCents:          determinism.ToCents(determinism.Dec(cost)),
			LeadDays:           int(determinism.Dec(days).Round(leadDayPlaces).Ceil().IntPart()),
			Mode:               op.QoS.Mode,
			ParallelCompatible: op.QoS.ParallelCompatible,
		})
	}

	for _, st := range chain.Steps {
		chain.TotalCostCents += st.CostCents
	}
	chain.Groups = groupLeadTime(chain.Steps)
	for _, g := range chain.Groups {
		chain.AddedLeadDays += g.LeadDays
	}
	return chain, nil
}

// groupLeadTime partitions steps into runs of one mode, in sequence order,
// and computes each run's lead time. add and serial runs are summed. A max
// run contributes the longest of its parallel-compatible steps plus the sum
// of any steps in it that cannot run in parallel.
func groupLeadTime(steps []ChainStep) []Group {
	var groups []Group
	for _, st := range steps {
		if len(groups) == 0 || groups[len(groups)-1].Mode != st.Mode {
			groups = append(groups, Group{Mode: st.Mode})
		}
		g := &groups[len(groups)-1]
		g.Sequences = append(g.Sequences, st.Sequence)
	}

	i := 0
	for gi := range groups {
		g := &groups[gi]
		var sum, longest int
		for range g.Sequences {
			st := steps[i]
			i++
			if g.Mode == ModeMax && st.ParallelCompatible {
				if st.LeadDays > longest {
					longest = st.LeadDays
				}
				continue
			}
			sum += st.LeadDays
		}
		g.LeadDays = sum + longest
	}
	return groups
}
