// Package literal decodes string-literal expressions and provides the
// reversible one-line encoding used by corpus and checkpoint files.
//
// Two dialects are understood:
//
//   - C/C++ source, as found at call sites in the scanned tree: adjacent
//     literals with optional encoding prefixes, raw R"delim(...)delim"
//     literals and the usual escapes. Numeric escapes produce bytes.
//   - Python literal syntax, as returned by the text-generation service in
//     its assignment block: single, double and triple quotes, r/u prefixes
//     and implicit concatenation. Numeric escapes produce code points.
//
// In both dialects the expression may be wrapped in parentheses. Anything
// that is not purely literal (identifiers, commas, calls, operators) is
// rejected, so the decoders never evaluate code.
package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type dialect int

const (
	dialectC dialect = iota
	dialectPython
)

// maxNesting bounds parenthesis nesting in an expression.
const maxNesting = 32

// maxRawDelim is the longest raw-string delimiter C++ allows.
const maxRawDelim = 16

// Decode decodes a C/C++ string-literal expression such as
//
//	"unknown target CPU '%0'" "; did you mean '%1'?"
//
// It reports false when expr is not exactly one literal expression.
func Decode(expr string) (string, bool) {
	return decodeExpr(expr, dialectC)
}

// Quote encodes s on a single line. Unquote(Quote(s)) == s for every s.
func Quote(s string) string {
	return strconv.Quote(s)
}

// Unquote is the inverse of Quote.
func Unquote(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", fmt.Errorf("not a quoted string: %.40q", s)
	}
	v, err := strconv.Unquote(s)
	if err != nil {
		return "", fmt.Errorf("invalid quoted string %.40q: %w", s, err)
	}
	return v, nil
}

type parser struct {
	src string
	pos int
	d   dialect
	out strings.Builder
}

func decodeExpr(expr string, d dialect) (string, bool) {
	p := &parser{src: expr, d: d}
	p.skipSpace()
	if !p.expr(0) {
		return "", false
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return "", false
	}
	return p.out.String(), true
}

// ScanPython decodes the Python literal expression at the start of s and
// returns its value and length in bytes. Trailing text is left untouched.
func ScanPython(s string) (string, int, bool) {
	p := &parser{src: s, d: dialectPython}
	if !p.expr(0) {
		return "", 0, false
	}
	return p.out.String(), p.pos, true
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			p.pos++
		case '\\':
			// Python line continuation between literals.
			if p.d == dialectPython && strings.HasPrefix(p.src[p.pos:], "\\\n") {
				p.pos += 2
				continue
			}
			return
		default:
			return
		}
	}
}

func (p *parser) skipLineSpace() {
	for p.pos < len(p.src) {
		switch {
		case p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\f':
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "\\\n"):
			p.pos += 2
		default:
			return
		}
	}
}

// expr parses '(' expr ')' or a run of adjacent literals.
func (p *parser) expr(depth int) bool {
	if depth > maxNesting {
		return false
	}
	if p.peek() == '(' {
		p.pos++
		p.skipSpace()
		if !p.expr(depth + 1) {
			return false
		}
		p.skipSpace()
		if p.peek() != ')' {
			return false
		}
		p.pos++
		return true
	}

	n := 0
	for {
		save := p.pos
		if n > 0 {
			if depth == 0 && p.d == dialectPython {
				// Outside parentheses a newline ends the statement.
				p.skipLineSpace()
			} else {
				p.skipSpace()
			}
		}
		plen, ok := p.prefixLen()
		if !ok {
			p.pos = save
			break
		}
		if !p.literal(plen) {
			return false
		}
		n++
	}
	return n > 0
}

// prefixLen reports whether a literal starts at the cursor and how many
// prefix letters precede its opening quote.
func (p *parser) prefixLen() (int, bool) {
	for n := 0; n <= 3 && p.pos+n < len(p.src); n++ {
		c := p.src[p.pos+n]
		if c == '"' || (c == '\'' && p.d == dialectPython) {
			return n, true
		}
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return 0, false
		}
	}
	return 0, false
}

func (p *parser) literal(plen int) bool {
	prefix := p.src[p.pos : p.pos+plen]
	p.pos += plen
	if p.d == dialectPython {
		return p.pyLiteral(prefix)
	}
	return p.cLiteral(prefix)
}

// ---------------------------------------------------------------------------
// C/C++
// ---------------------------------------------------------------------------

func (p *parser) cLiteral(prefix string) bool {
	raw := strings.HasSuffix(prefix, "R")
	switch strings.TrimSuffix(prefix, "R") {
	case "", "u8", "u", "U", "L":
	default:
		return false
	}
	p.pos++ // opening quote
	if raw {
		return p.cRaw()
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return true
		case '\n':
			return false
		case '\\':
			if !p.cEscape() {
				return false
			}
		default:
			p.out.WriteByte(c)
			p.pos++
		}
	}
	return false
}

func (p *parser) cRaw() bool {
	open := strings.IndexByte(p.src[p.pos:], '(')
	if open < 0 || open > maxRawDelim {
		return false
	}
	delim := p.src[p.pos : p.pos+open]
	if strings.ContainsAny(delim, " \t\n\\)\"") {
		return false
	}
	p.pos += open + 1
	end := strings.Index(p.src[p.pos:], ")"+delim+`"`)
	if end < 0 {
		return false
	}
	p.out.WriteString(p.src[p.pos : p.pos+end])
	p.pos += end + len(delim) + 2
	return true
}

func (p *parser) cEscape() bool {
	if p.pos+1 >= len(p.src) {
		return false
	}
	e := p.src[p.pos+1]
	p.pos += 2
	switch e {
	case 'n':
		p.out.WriteByte('\n')
	case 't':
		p.out.WriteByte('\t')
	case 'r':
		p.out.WriteByte('\r')
	case 'a':
		p.out.WriteByte('\a')
	case 'b':
		p.out.WriteByte('\b')
	case 'f':
		p.out.WriteByte('\f')
	case 'v':
		p.out.WriteByte('\v')
	case '\\', '\'', '"', '?':
		p.out.WriteByte(e)
	case '\n':
		// backslash-newline splice
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(e - '0')
		for i := 0; i < 2 && p.pos < len(p.src) && isOctal(p.src[p.pos]); i++ {
			v = v*8 + int(p.src[p.pos]-'0')
			p.pos++
		}
		if v > 0xFF {
			return false
		}
		p.out.WriteByte(byte(v))
	case 'x':
		start := p.pos
		v := 0
		for p.pos < len(p.src) && isHex(p.src[p.pos]) {
			v = v*16 + unhex(p.src[p.pos])
			if v > 0xFF {
				return false
			}
			p.pos++
		}
		if p.pos == start {
			return false
		}
		p.out.WriteByte(byte(v))
	case 'u':
		return p.universal(4)
	case 'U':
		return p.universal(8)
	default:
		// Unknown escapes are kept verbatim.
		p.out.WriteByte('\\')
		p.out.WriteByte(e)
	}
	return true
}

// ---------------------------------------------------------------------------
// Python
// ---------------------------------------------------------------------------

func (p *parser) pyLiteral(prefix string) bool {
	raw := false
	switch strings.ToLower(prefix) {
	case "":
	case "u":
	case "r":
		raw = true
	default:
		// bytes and f-strings are not plain text values
		return false
	}

	q := p.src[p.pos]
	term := string(q)
	if strings.HasPrefix(p.src[p.pos:], strings.Repeat(term, 3)) {
		term = strings.Repeat(term, 3)
	}
	triple := len(term) == 3
	p.pos += len(term)

	for p.pos < len(p.src) {
		if strings.HasPrefix(p.src[p.pos:], term) {
			p.pos += len(term)
			return true
		}
		c := p.src[p.pos]
		switch {
		case c == '\n' && !triple:
			return false
		case c == '\\' && raw:
			if p.pos+1 >= len(p.src) {
				return false
			}
			p.out.WriteString(p.src[p.pos : p.pos+2])
			p.pos += 2
		case c == '\\':
			if !p.pyEscape() {
				return false
			}
		default:
			p.out.WriteByte(c)
			p.pos++
		}
	}
	return false
}

func (p *parser) pyEscape() bool {
	if p.pos+1 >= len(p.src) {
		return false
	}
	e := p.src[p.pos+1]
	p.pos += 2
	switch e {
	case '\n':
	case '\\', '\'', '"':
		p.out.WriteByte(e)
	case 'a':
		p.out.WriteByte('\a')
	case 'b':
		p.out.WriteByte('\b')
	case 'f':
		p.out.WriteByte('\f')
	case 'n':
		p.out.WriteByte('\n')
	case 'r':
		p.out.WriteByte('\r')
	case 't':
		p.out.WriteByte('\t')
	case 'v':
		p.out.WriteByte('\v')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(e - '0')
		for i := 0; i < 2 && p.pos < len(p.src) && isOctal(p.src[p.pos]); i++ {
			v = v*8 + int(p.src[p.pos]-'0')
			p.pos++
		}
		p.out.WriteRune(rune(v))
	case 'x':
		return p.universal(2)
	case 'u':
		return p.universal(4)
	case 'U':
		return p.universal(8)
	case 'N':
		// named escapes need the Unicode name table
		return false
	default:
		p.out.WriteByte('\\')
		p.out.WriteByte(e)
	}
	return true
}

// universal reads exactly n hex digits and writes the code point.
func (p *parser) universal(n int) bool {
	if p.pos+n > len(p.src) {
		return false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := p.src[p.pos+i]
		if !isHex(c) {
			return false
		}
		v = v*16 + unhex(c)
	}
	if v > utf8.MaxRune {
		return false
	}
	p.pos += n
	p.out.WriteRune(rune(v))
	return true
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
