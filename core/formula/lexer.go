package formula

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokPunct
)

type token struct {
	kind tokenKind
	text string // operator/punctuation text, identifier name, or unquoted string
	num  float64
	pos  int
}

// twoCharOps must be checked before single characters
var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

const singleCharOps = "+-*/()[]{},:?!<>"

// lex splits src into tokens. It never looks past len(src), and the caller has
// already bounded len(src).
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					i = j
					for i < len(src) && isDigit(src[i]) {
						i++
					}
				}
			}
			n, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, parseErrorf(start, "invalid number %q", src[start:i])
			}
			tokens = append(tokens, token{kind: tokNumber, num: n, text: src[start:i], pos: start})

		case c == '\'' || c == '"':
			start := i
			quote := c
			i++
			var sb strings.Builder
			closed := false
			for i < len(src) {
				ch := src[i]
				if ch == '\\' && i+1 < len(src) {
					sb.WriteByte(src[i+1])
					i += 2
					continue
				}
				if ch == quote {
					closed = true
					i++
					break
				}
				sb.WriteByte(ch)
				i++
			}
			if !closed {
				return nil, parseErrorf(start, "unterminated string")
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), pos: start})

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})

		default:
			if op := matchTwoChar(src[i:]); op != "" {
				tokens = append(tokens, token{kind: tokPunct, text: op, pos: i})
				i += 2
				continue
			}
			if strings.IndexByte(singleCharOps, c) >= 0 {
				tokens = append(tokens, token{kind: tokPunct, text: string(c), pos: i})
				i++
				continue
			}
			return nil, parseErrorf(i, "unexpected character %q", c)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func matchTwoChar(s string) string {
	if len(s) < 2 {
		return ""
	}
	for _, op := range twoCharOps {
		if s[:2] == op {
			return op
		}
	}
	return ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
