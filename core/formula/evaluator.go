// Package formula evaluates the admin-authored cost and lead-time expression
// language used by finish operations.
//
// The language has number, string and bool literals, list and object literals
// (for tiered brackets), arithmetic, comparison, && || !, the ternary
// operator, reads of a fixed set of context keys, and calls into a closed
// builtin table. There is no assignment, no loops, no user-defined functions,
// and formula size and nesting are capped at parse time, so every evaluation
// finishes in time bounded by MaxNodes.
package formula

import (
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of parsed programs kept by an Evaluator
const DefaultCacheSize = 512

// Evaluator compiles and evaluates formulas against an immutable set of
// lookup tables. Parsed programs are cached by formula text and version.
// An Evaluator is safe for concurrent use.
type Evaluator struct {
	tables Tables
	cache  *programCache
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithCacheSize bounds the program cache. Zero or negative disables caching.
func WithCacheSize(n int) Option {
	return func(e *Evaluator) {
		if n <= 0 {
			e.cache = nil
			return
		}
		e.cache = newProgramCache(n)
	}
}

// NewEvaluator returns an evaluator over a private copy of tables.
func NewEvaluator(tables Tables, opts ...Option) *Evaluator {
	e := &Evaluator{
		tables: tables.clone(),
		cache:  newProgramCache(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile returns the parsed program for formula, using the cache. version is
// the owning operation's version counter; bumping it forces a fresh parse.
func (e *Evaluator) Compile(formula string, version int) (*Program, error) {
	if e.cache == nil {
		return Compile(formula)
	}
	return e.cache.get(formula, version)
}

// Evaluate compiles (or fetches) formula and evaluates it against ctx.
func (e *Evaluator) Evaluate(formula string, version int, ctx Context) (float64, error) {
	prog, err := e.Compile(formula, version)
	if err != nil {
		return 0, err
	}
	return prog.Eval(ctx, &e.tables)
}

// TestResult is the outcome of trying a formula before saving it
type TestResult struct {
	Value       float64     `json:"value"`
	Nodes       int         `json:"nodes,omitempty"`
	Identifiers []string    `json:"identifiers,omitempty"`
	Functions   []string    `json:"functions,omitempty"`
	ParseError  *ParseError `json:"parse_error,omitempty"`
	EvalError   *EvalError  `json:"eval_error,omitempty"`
}

// OK reports whether the formula parsed, passed the name check, and evaluated
func (r TestResult) OK() bool { return r.ParseError == nil && r.EvalError == nil }

// Test parses, checks, and evaluates formula without touching the cache.
// Authors use it to try a formula against sample values.
func (e *Evaluator) Test(formula string, ctx Context) TestResult {
	prog, err := Compile(formula)
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			pe = &ParseError{Message: err.Error()}
		}
		return TestResult{ParseError: pe}
	}
	res := TestResult{
		Nodes:       prog.Nodes(),
		Identifiers: prog.Identifiers(),
		Functions:   prog.Functions(),
	}
	v, err := prog.Eval(ctx, &e.tables)
	if err != nil {
		var ee *EvalError
		if !errors.As(err, &ee) {
			ee = &EvalError{Message: err.Error()}
		}
		res.EvalError = ee
		return res
	}
	res.Value = v
	return res
}

// CacheLen returns the number of cached programs
func (e *Evaluator) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.len()
}

// Evaluate is a convenience for one-off evaluation with empty tables.
func Evaluate(formula string, ctx Context) (float64, error) {
	prog, err := Compile(formula)
	if err != nil {
		return 0, err
	}
	return prog.Eval(ctx, nil)
}

type cacheKey struct {
	text    string
	version int
}

type cacheEntry struct {
	prog *Program
	err  error
}

// programCache is read-mostly: formulas change only when an operation's
// version bumps. Parse failures are cached too since they are deterministic.
type programCache struct {
	mu      sync.RWMutex
	max     int
	entries map[cacheKey]cacheEntry
	group   singleflight.Group
}

func newProgramCache(max int) *programCache {
	return &programCache{max: max, entries: make(map[cacheKey]cacheEntry)}
}

func (c *programCache) get(text string, version int) (*Program, error) {
	key := cacheKey{text: text, version: version}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry.prog, entry.err
	}

	sfKey := strconv.Itoa(version) + "\x00" + text
	v, _, _ := c.group.Do(sfKey, func() (interface{}, error) {
		prog, err := Compile(text)
		entry := cacheEntry{prog: prog, err: err}
		c.store(key, entry)
		return entry, nil
	})
	entry = v.(cacheEntry)
	return entry.prog, entry.err
}

func (c *programCache) store(key cacheKey, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// an older version of the same text belongs to an edit that was superseded
	for k := range c.entries {
		if k.text == key.text && k.version < key.version {
			delete(c.entries, k)
		}
	}
	if len(c.entries) >= c.max {
		c.entries = make(map[cacheKey]cacheEntry)
	}
	c.entries[key] = entry
}

func (c *programCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
