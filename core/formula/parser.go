package formula

import (
	"sort"
)

const (
	// MaxFormulaLength is the longest formula text accepted, in bytes
	MaxFormulaLength = 2048

	// MaxNodes caps the number of AST nodes in one formula
	MaxNodes = 256

	// MaxDepth caps expression nesting
	MaxDepth = 32
)

// node is an AST node. Every node records the byte offset it started at.
type node interface {
	offset() int
}

type (
	numberLit struct {
		pos   int
		value float64
	}
	stringLit struct {
		pos   int
		value string
	}
	boolLit struct {
		pos   int
		value bool
	}
	identRef struct {
		pos  int
		name string
	}
	unaryExpr struct {
		pos     int
		op      string
		operand node
	}
	binaryExpr struct {
		pos         int
		op          string
		left, right node
	}
	condExpr struct {
		pos                int
		cond, then, orElse node
	}
	callExpr struct {
		pos  int
		name string
		args []node
	}
	listLit struct {
		pos   int
		elems []node
	}
	objectLit struct {
		pos    int
		keys   []string
		values []node
	}
)

func (n *numberLit) offset() int  { return n.pos }
func (n *stringLit) offset() int  { return n.pos }
func (n *boolLit) offset() int    { return n.pos }
func (n *identRef) offset() int   { return n.pos }
func (n *unaryExpr) offset() int  { return n.pos }
func (n *binaryExpr) offset() int { return n.pos }
func (n *condExpr) offset() int   { return n.pos }
func (n *callExpr) offset() int   { return n.pos }
func (n *listLit) offset() int    { return n.pos }
func (n *objectLit) offset() int  { return n.pos }

// Program is a parsed formula. It is immutable and safe for concurrent use.
type Program struct {
	source      string
	root        node
	nodes       int
	identifiers []string
	functions   []string
}

// Source returns the formula text the program was parsed from
func (p *Program) Source() string { return p.source }

// Nodes returns the AST node count
func (p *Program) Nodes() int { return p.nodes }

// Identifiers returns the distinct identifiers the formula reads, sorted
func (p *Program) Identifiers() []string { return append([]string(nil), p.identifiers...) }

// Functions returns the distinct functions the formula calls, sorted
func (p *Program) Functions() []string { return append([]string(nil), p.functions...) }

// Check reports the first identifier outside the context set or function
// outside the builtin table, wherever it appears in the formula. Eval runs it
// first.
func (p *Program) Check() error {
	for _, id := range p.identifiers {
		if !IsContextKey(id) {
			return evalErrorf(0, "unknown identifier %q", id)
		}
	}
	for _, fn := range p.functions {
		if _, ok := builtins[fn]; !ok {
			return evalErrorf(0, "unknown function %q", fn)
		}
	}
	return nil
}

// Compile parses src into a Program, enforcing the length, node, and depth caps.
func Compile(src string) (*Program, error) {
	if len(src) > MaxFormulaLength {
		return nil, parseErrorf(MaxFormulaLength, "formula exceeds %d characters", MaxFormulaLength)
	}
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 1 {
		return nil, parseErrorf(0, "empty formula")
	}

	p := &parser{
		tokens: tokens,
		idents: make(map[string]struct{}),
		funcs:  make(map[string]struct{}),
	}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, parseErrorf(tok.pos, "unexpected %s after end of expression", describe(tok))
	}

	return &Program{
		source:      src,
		root:        root,
		nodes:       p.nodes,
		identifiers: sortedSet(p.idents),
		functions:   sortedSet(p.funcs),
	}, nil
}

type parser struct {
	tokens []token
	pos    int
	nodes  int
	depth  int
	idents map[string]struct{}
	funcs  map[string]struct{}
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isPunct(text string) bool {
	tok := p.peek()
	return tok.kind == tokPunct && tok.text == text
}

func (p *parser) expect(text string) (token, error) {
	tok := p.next()
	if tok.kind != tokPunct || tok.text != text {
		return tok, parseErrorf(tok.pos, "expected %q, found %s", text, describe(tok))
	}
	return tok, nil
}

// count registers a new node against the cap
func (p *parser) count(pos int) error {
	p.nodes++
	if p.nodes > MaxNodes {
		return parseErrorf(pos, "formula exceeds %d nodes", MaxNodes)
	}
	return nil
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > MaxDepth {
		return parseErrorf(pos, "formula nesting exceeds depth %d", MaxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// expr := or ( "?" expr ":" expr )?
func (p *parser) parseExpr() (node, error) {
	start := p.peek().pos
	if err := p.enter(start); err != nil {
		return nil, err
	}
	defer p.leave()

	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if !p.isPunct("?") {
		return cond, nil
	}
	q := p.next()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	orElse, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.count(q.pos); err != nil {
		return nil, err
	}
	return &condExpr{pos: cond.offset(), cond: cond, then: then, orElse: orElse}, nil
}

// binaryLevels lists operators from loosest to tightest binding
var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<", "<=", ">", ">="},
	{"+", "-"},
	{"*", "/"},
}

func (p *parser) parseBinary(level int) (node, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPunct || !contains(binaryLevels[level], tok.text) {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		if err := p.count(tok.pos); err != nil {
			return nil, err
		}
		left = &binaryExpr{pos: tok.pos, op: tok.text, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	tok := p.peek()
	if tok.kind == tokPunct && (tok.text == "-" || tok.text == "!" || tok.text == "+") {
		if err := p.enter(tok.pos); err != nil {
			return nil, err
		}
		defer p.leave()
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if tok.text == "+" {
			return operand, nil
		}
		if err := p.count(tok.pos); err != nil {
			return nil, err
		}
		return &unaryExpr{pos: tok.pos, op: tok.text, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	if err := p.count(tok.pos); err != nil {
		return nil, err
	}

	switch tok.kind {
	case tokNumber:
		return &numberLit{pos: tok.pos, value: tok.num}, nil
	case tokString:
		return &stringLit{pos: tok.pos, value: tok.text}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return &boolLit{pos: tok.pos, value: true}, nil
		case "false":
			return &boolLit{pos: tok.pos, value: false}, nil
		}
		if p.isPunct("(") {
			return p.parseCall(tok)
		}
		p.idents[tok.text] = struct{}{}
		return &identRef{pos: tok.pos, name: tok.text}, nil
	case tokPunct:
		switch tok.text {
		case "(":
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			return p.parseList(tok)
		case "{":
			return p.parseObject(tok)
		}
	}
	return nil, parseErrorf(tok.pos, "unexpected %s", describe(tok))
}

func (p *parser) parseCall(name token) (node, error) {
	p.next() // (
	p.funcs[name.text] = struct{}{}
	args, err := p.parseSequence(")")
	if err != nil {
		return nil, err
	}
	return &callExpr{pos: name.pos, name: name.text, args: args}, nil
}

func (p *parser) parseList(open token) (node, error) {
	elems, err := p.parseSequence("]")
	if err != nil {
		return nil, err
	}
	return &listLit{pos: open.pos, elems: elems}, nil
}

// parseSequence reads comma-separated expressions up to and including closer
func (p *parser) parseSequence(closer string) ([]node, error) {
	var items []node
	if p.isPunct(closer) {
		p.next()
		return items, nil
	}
	for {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			p.next()
			continue
		}
		if _, err := p.expect(closer); err != nil {
			return nil, err
		}
		return items, nil
	}
}

// object := "{" ( key ":" expr ( "," key ":" expr )* )? "}" where key is an
// identifier or string. Keys are data, not context references.
func (p *parser) parseObject(open token) (node, error) {
	obj := &objectLit{pos: open.pos}
	if p.isPunct("}") {
		p.next()
		return obj, nil
	}
	seen := make(map[string]bool)
	for {
		key := p.next()
		if key.kind != tokIdent && key.kind != tokString {
			return nil, parseErrorf(key.pos, "expected object key, found %s", describe(key))
		}
		if seen[key.text] {
			return nil, parseErrorf(key.pos, "duplicate object key %q", key.text)
		}
		seen[key.text] = true
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		obj.keys = append(obj.keys, key.text)
		obj.values = append(obj.values, value)
		if p.isPunct(",") {
			p.next()
			continue
		}
		if _, err := p.expect("}"); err != nil {
			return nil, err
		}
		return obj, nil
	}
}

func describe(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of formula"
	case tokNumber:
		return "number " + tok.text
	case tokString:
		return "string"
	case tokIdent:
		return "identifier " + tok.text
	}
	return "'" + tok.text + "'"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
