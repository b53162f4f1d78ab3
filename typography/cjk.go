// Package typography post-processes Chinese translations so that embedded
// placeholders, numbers and quoted ASCII runs are separated from Han
// characters by a space.
package typography

import "regexp"

const (
	han      = `[\x{4e00}-\x{9fa5}]`
	ascii    = `[\x20-\x7e]`
	nonSpace = `[\x00-\x1f\x21-\x7f]`
)

// Rule is one spacing substitution. Both capture groups are kept with a
// single space inserted between them.
type Rule struct {
	Name string
	re   *regexp.Regexp
}

func rule(name, left, right string) Rule {
	return Rule{Name: name, re: regexp.MustCompile("(" + left + ")(" + right + ")")}
}

// Apply rewrites every match of r in s.
func (r Rule) Apply(s string) string {
	return r.re.ReplaceAllString(s, "$1 $2")
}

// spaced lists pairs that need a space in either order.
var spaced = [][2]string{
	{han, `%\d+`},
	{han, `'` + ascii + `+'`},
	{han, `"` + ascii + `+"`},
	{han, `<` + ascii + `+>`},
}

// Rules returns the substitutions in the order SpaceCJK applies them.
func Rules() []Rule {
	out := []Rule{
		rule("han-selector", han, `%\w+?\{`+nonSpace),
		rule("select-han", `%select\{.*?`+nonSpace+`\}\d+`, han),
		rule("diff-han", `%diff\{.*?`+nonSpace+`\}\d+,\d+`, han),
		rule("han-digits", han, `\d+`),
		rule("digits-han", ` \d+`, han),
		rule("han-digits-han", han+`\d+`, han),
	}
	for _, p := range spaced {
		out = append(out, rule("han-"+p[1], p[0], p[1]))
	}
	for _, p := range spaced {
		out = append(out, rule(p[1]+"-han", p[1], p[0]))
	}
	return out
}

var defaultRules = Rules()

// SpaceCJK applies every rule in order, each to the output of the previous
// one. It suits Options.Formatter in the translate package.
func SpaceCJK(s string) string {
	for _, r := range defaultRules {
		s = r.Apply(s)
	}
	return s
}

// Trace is SpaceCJK that reports every rule that changed the text.
func Trace(s string, changed func(rule, before, after string)) string {
	for _, r := range defaultRules {
		next := r.Apply(s)
		if next != s && changed != nil {
			changed(r.Name, s, next)
		}
		s = next
	}
	return s
}
