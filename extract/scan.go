package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/minios-linux/llvm-i18n/literal"
)

// ScanOptions tunes the per-call scanner.
type ScanOptions struct {
	// MaxSpan caps the number of bytes captured after the first quote of
	// a call. Zero means the whole call, up to the end of the file.
	MaxSpan int
	// Workers bounds the number of files scanned concurrently. Zero means
	// GOMAXPROCS.
	Workers int
}

// ScanContent returns the strings found in src at every occurrence of the
// marker, in source order.
func ScanContent(src string, m Marker, opts ScanOptions) []string {
	if m.Token == "" {
		return nil
	}
	var out []string
	from := 0
	for from < len(src) {
		i := strings.Index(src[from:], m.Token)
		if i < 0 {
			break
		}
		pos := from + i
		q := strings.IndexByte(src[pos:], '"')
		if q < 0 {
			break
		}
		beg := pos + q
		end := callEnd(src, pos)
		from = end + 1

		if opts.MaxSpan > 0 && end-beg > opts.MaxSpan {
			end = beg + opts.MaxSpan
		}
		if beg >= end {
			continue
		}
		if s, ok := decodeSpan(src, beg, end, m); ok && keep(s, m) {
			out = append(out, s)
		}
	}
	return out
}

// callEnd tracks parenthesis depth from pos and returns the index of the
// parenthesis that brings it back to zero, or the last index of src.
func callEnd(src string, pos int) int {
	depth := 0
	for ; pos < len(src); pos++ {
		switch src[pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return pos
			}
		}
	}
	return len(src) - 1
}

// decodeSpan decodes src[beg:end], the argument text from the first quote
// to the end of the call.
func decodeSpan(src string, beg, end int, m Marker) (string, bool) {
	var expr string
	if beg > 0 && strings.HasPrefix(src[beg-1:], `R"(`) {
		// Raw literal: include the R and keep line breaks.
		expr = src[beg-1 : end]
	} else {
		expr = strings.ReplaceAll(src[beg:end], "\n", "")
	}
	if expr == "" {
		return "", false
	}
	if m.TruncForSuffix {
		if i := strings.LastIndexByte(expr, '"'); i >= 0 {
			expr = expr[:i+1]
		}
	}

	s, ok := literal.Decode(expr)
	for i := 1; !ok && i < len(expr); i++ {
		if m.Suffix {
			s, ok = literal.Decode(expr[i:])
		} else {
			s, ok = literal.Decode(expr[:len(expr)-i])
		}
	}
	if !ok {
		return "", false
	}
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		s = s[1 : len(s)-1]
	}
	return s, true
}

// keep applies the result filters: empty strings, bare flag names such as
// "enable-foo" and overlong results are dropped.
func keep(s string, m Marker) bool {
	if s == "" {
		return false
	}
	if strings.Contains(s, "-") && !strings.Contains(s, " ") && !strings.Contains(s, "<") {
		return false
	}
	if m.MaxLen > 0 && utf8.RuneCountInString(s) >= m.MaxLen {
		return false
	}
	return true
}
