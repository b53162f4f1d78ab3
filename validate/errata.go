package validate

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Erratum is a terminology rule. When Keyword (or its capitalized form)
// occurs in the source, the translation must contain Replacement if Require
// is set and must not contain it otherwise.
type Erratum struct {
	Keyword     string
	Replacement string
	Require     bool
}

// Applies reports whether the rule is gated on for source.
func (e Erratum) Applies(source string) bool {
	if e.Keyword == "" {
		return true
	}
	return strings.Contains(source, e.Keyword) || strings.Contains(source, capitalize(e.Keyword))
}

func (e Erratum) String() string {
	k := e.Keyword
	if e.Require {
		k = "!" + k
	}
	return k + " " + e.Replacement
}

// ParseErrata reads errata lines of the form "<keyword> <replacement>".
// The line is split at its first space; a leading '!' on the keyword marks
// a required replacement. Lines without a space are ignored. A repeated
// keyword replaces the earlier rule in place.
func ParseErrata(r io.Reader) ([]Erratum, error) {
	var out []Erratum
	pos := make(map[string]int)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			continue
		}
		key, repl := line[:i], line[i+1:]

		e := Erratum{Keyword: key, Replacement: repl}
		if strings.HasPrefix(key, "!") {
			e.Keyword = key[1:]
			e.Require = true
		}
		if j, ok := pos[key]; ok {
			out[j] = e
			continue
		}
		pos[key] = len(out)
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading errata: %w", err)
	}
	return out, nil
}

// LoadErrata reads an errata file. An empty path yields no rules.
func LoadErrata(path string) ([]Erratum, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening errata: %w", err)
	}
	defer f.Close()

	errata, err := ParseErrata(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return errata, nil
}

// capitalize title-cases the first character and lower-cases the rest,
// so "x86" becomes "X86" and "ARM" becomes "Arm".
func capitalize(s string) string {
	lower := cases.Lower(language.Und)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return lower.String(s)
	}
	return string(unicode.ToTitle(r)) + lower.String(s[size:])
}
