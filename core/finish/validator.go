package finish

import (
	"fmt"
	"sort"
	"strings"

	"partquote/core/geometry"
	"partquote/internal/errors"
)

// Validation error codes
const (
	CodeUnknownOperation      = "UNKNOWN_OPERATION"
	CodeDuplicateOperation    = "DUPLICATE_OPERATION"
	CodeInvalidSequence       = "INVALID_SEQUENCE"
	CodeMissingPrerequisite   = "MISSING_PREREQUISITE"
	CodeIncompatibleOperation = "INCOMPATIBLE_OPERATIONS"
	CodeInactiveOperation     = "INACTIVE_OPERATION"
	CodeProcessNotSupported   = "PROCESS_NOT_SUPPORTED"
)

// Step is one requested step of a chain
type Step struct {
	OperationCode string `json:"operation_code"`
	Sequence      int    `json:"sequence"`
}

// StepsFromCodes numbers codes 1..N in the order given
func StepsFromCodes(codes []string) []Step {
	steps := make([]Step, len(codes))
	for i, c := range codes {
		steps[i] = Step{OperationCode: c, Sequence: i + 1}
	}
	return steps
}

// ValidationError is one problem with a proposed chain. Step is the
// sequence number of the offending step, zero when the problem is chain-wide.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Step    int    `json:"offending_step,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: step %d: %s", e.Code, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationErrors is the full diagnostic list for a chain
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ErrorType marks the list as a validation failure
func (v ValidationErrors) ErrorType() errors.Type { return errors.TypeValidation }

// Codes returns the error codes in order
func (v ValidationErrors) Codes() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Code
	}
	return out
}

// Policy controls how prerequisites are satisfied
type Policy string

const (
	// PolicyBefore requires each prerequisite at a lower sequence
	PolicyBefore Policy = "before"
	// PolicyPresent accepts a prerequisite anywhere in the chain
	PolicyPresent Policy = "present"
)

// ParsePolicy accepts "before", "present", or empty (before)
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyBefore:
		return PolicyBefore, nil
	case PolicyPresent:
		return PolicyPresent, nil
	}
	return "", errors.Newf(errors.TypeConfig, "unknown prerequisite policy %q", s)
}

// Validator checks proposed chains against a catalog. It never modifies the
// steps it is given and is safe for concurrent use.
type Validator struct {
	catalog *Catalog
	policy  Policy
}

// NewValidator returns a validator using policy (empty means before)
func NewValidator(catalog *Catalog, policy Policy) *Validator {
	if policy == "" {
		policy = PolicyBefore
	}
	return &Validator{catalog: catalog, policy: policy}
}

// Policy returns the prerequisite policy in force
func (v *Validator) Policy() Policy { return v.policy }

// Catalog returns the catalog chains are checked against
func (v *Validator) Catalog() *Catalog { return v.catalog }

// Validate checks steps without regard to process
func (v *Validator) Validate(steps []Step) ValidationErrors {
	return v.ValidateFor("", steps)
}

// ValidateFor checks steps for a part of the given process. The chain is
// valid iff the result is empty; an empty chain is valid.
func (v *Validator) ValidateFor(process geometry.ProcessType, steps []Step) ValidationErrors {
	var errs ValidationErrors
	add := func(code string, step int, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Code: code, Step: step, Message: fmt.Sprintf(format, args...)})
	}

	ordered := append([]Step(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	// structure: sequences must be exactly 1..N
	n := len(ordered)
	seenSeq := make(map[int]bool, n)
	for _, s := range ordered {
		switch {
		case s.Sequence < 1 || s.Sequence > n:
			add(CodeInvalidSequence, s.Sequence, "sequence %d is outside 1..%d", s.Sequence, n)
		case seenSeq[s.Sequence]:
			add(CodeInvalidSequence, s.Sequence, "sequence %d is used more than once", s.Sequence)
		}
		seenSeq[s.Sequence] = true
	}

	// operations: known, unique, active, allowed for the process
	firstSeq := make(map[string]int, n)
	known := make([]*Operation, n)
	for i, s := range ordered {
		op, ok := v.catalog.Get(s.OperationCode)
		if !ok {
			add(CodeUnknownOperation, s.Sequence, "operation %q is not in the catalog", s.OperationCode)
			continue
		}
		if prev, dup := firstSeq[op.Code]; dup {
			add(CodeDuplicateOperation, s.Sequence, "operation %s already appears at step %d", op.Code, prev)
			continue
		}
		firstSeq[op.Code] = s.Sequence
		known[i] = &op
		if !op.Active {
			add(CodeInactiveOperation, s.Sequence, "operation %s is inactive", op.Code)
		}
		if !op.Supports(process) {
			add(CodeProcessNotSupported, s.Sequence, "operation %s is not offered for %s parts", op.Code, process)
		}
	}

	// prerequisites
	for i, op := range known {
		if op == nil {
			continue
		}
		seq := ordered[i].Sequence
		for _, pre := range op.Prerequisites {
			at, present := firstSeq[pre]
			switch {
			case !present:
				add(CodeMissingPrerequisite, seq, "operation %s requires %s", op.Code, pre)
			case v.policy == PolicyBefore && at >= seq:
				add(CodeMissingPrerequisite, seq, "operation %s requires %s to come before it", op.Code, pre)
			}
		}
	}

	// incompatibility is symmetric: either side may declare it
	for i := 0; i < n; i++ {
		a := known[i]
		if a == nil {
			continue
		}
		for j := i + 1; j < n; j++ {
			b := known[j]
			if b == nil {
				continue
			}
			if a.incompatibleWith(b.Code) || b.incompatibleWith(a.Code) {
				add(CodeIncompatibleOperation, ordered[j].Sequence,
					"operation %s cannot be combined with %s", b.Code, a.Code)
			}
		}
	}

	return errs
}
