package translate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/minios-linux/llvm-i18n/literal"
)

var (
	// ErrNoCodeBlock means the response has no fenced code block.
	ErrNoCodeBlock = errors.New("no fenced code block in response")
	// ErrBadAssignment means the code block is not a plain list of string
	// assignments.
	ErrBadAssignment = errors.New("code block is not a list of string assignments")
)

const fence = "```"

// ExtractCodeBlock returns the body of the first fenced code block in a
// Markdown response. A "```" that does not start a line is not a Markdown
// fence; it is still honored by a plain scan up to the next "```".
func ExtractCodeBlock(resp string) (string, error) {
	start := strings.Index(resp, fence)
	if start < 0 || atLineStart(resp, start) {
		if code, ok := firstFencedBlock(resp); ok {
			// A closing fence glued to the last line is not a fence to the
			// Markdown parser.
			if end := strings.Index(code, fence); end >= 0 {
				code = code[:end]
			}
			return code, nil
		}
	}
	if start < 0 {
		return "", ErrNoCodeBlock
	}

	nl := strings.IndexByte(resp[start:], '\n')
	if nl < 0 {
		return "", ErrNoCodeBlock
	}
	body := resp[start+nl+1:]
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return body, nil
}

// atLineStart reports whether only up to three spaces precede i on its line.
func atLineStart(s string, i int) bool {
	ls := strings.LastIndexByte(s[:i], '\n') + 1
	indent := s[ls:i]
	return len(indent) <= 3 && strings.Trim(indent, " ") == ""
}

func firstFencedBlock(resp string) (string, bool) {
	src := []byte(resp)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var (
		b     strings.Builder
		found bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := fb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		found = true
		return ast.WalkStop, nil
	})
	return b.String(), found
}

// ParseAssignments reads a block of Python string assignments
//
//	message0 = "..."
//	message1 = ('...'
//	            "...")
//
// without executing anything. Only "name = <string literal expression>"
// statements, blank lines, comments and ';' separators are allowed. When
// expected is non-nil, every assigned name must be in it. Any other
// statement rejects the whole block. A name assigned twice keeps its last
// value.
func ParseAssignments(code string, expected []string) (map[string]string, error) {
	var allowed map[string]bool
	if expected != nil {
		allowed = make(map[string]bool, len(expected))
		for _, name := range expected {
			allowed[name] = true
		}
	}

	p := &assignParser{src: code}
	out := make(map[string]string)
	for {
		p.skipBlank()
		if p.eof() {
			return out, nil
		}
		line := p.line()

		name := p.ident()
		if name == "" {
			return nil, p.errorf(line, "expected a variable name")
		}
		if allowed != nil && !allowed[name] {
			return nil, p.errorf(line, "unexpected variable %q", name)
		}
		p.skipInline()
		if !p.consume("=") || strings.HasPrefix(p.rest(), "=") {
			return nil, p.errorf(line, "expected '=' after %s", name)
		}
		p.skipInline()

		val, n, ok := literal.ScanPython(p.rest())
		if !ok {
			return nil, p.errorf(line, "value of %s is not a string literal", name)
		}
		p.pos += n
		p.skipInline()
		if !p.eof() && !strings.ContainsRune("\r\n;#", rune(p.src[p.pos])) {
			return nil, p.errorf(line, "unexpected text after value of %s", name)
		}
		out[name] = val
	}
}

type assignParser struct {
	src string
	pos int
}

func (p *assignParser) eof() bool    { return p.pos >= len(p.src) }
func (p *assignParser) rest() string { return p.src[p.pos:] }

func (p *assignParser) line() int {
	return strings.Count(p.src[:p.pos], "\n") + 1
}

func (p *assignParser) errorf(line int, format string, args ...any) error {
	return fmt.Errorf("line %d: %w: %s", line, ErrBadAssignment, fmt.Sprintf(format, args...))
}

func (p *assignParser) consume(s string) bool {
	if strings.HasPrefix(p.rest(), s) {
		p.pos += len(s)
		return true
	}
	return false
}

// skipInline skips spaces, tabs and backslash line continuations.
func (p *assignParser) skipInline() {
	for !p.eof() {
		switch {
		case p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\f':
			p.pos++
		case strings.HasPrefix(p.rest(), "\\\n"):
			p.pos += 2
		case strings.HasPrefix(p.rest(), "\\\r\n"):
			p.pos += 3
		default:
			return
		}
	}
}

// skipBlank skips whitespace, statement separators and comments.
func (p *assignParser) skipBlank() {
	for !p.eof() {
		switch c := p.src[p.pos]; c {
		case ' ', '\t', '\f', '\r', '\n', ';':
			p.pos++
		case '#':
			if i := strings.IndexByte(p.rest(), '\n'); i >= 0 {
				p.pos += i
			} else {
				p.pos = len(p.src)
			}
		default:
			return
		}
	}
}

func (p *assignParser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || p.pos > start && c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}
