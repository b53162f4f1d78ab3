package translate

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/minios-linux/llvm-i18n/literal"
)

// BatchVar is the variable name used when a prompt carries a single text.
const BatchVar = "message"

// VarName returns the variable that carries the i-th text of a batch.
func VarName(i int) string {
	return fmt.Sprintf("message%d", i)
}

// BuildPrompt appends the batch to the instruction template as a fenced
// block of Python assignments, one per source text:
//
//	```python
//	message0 = "cannot convert '%0' to '%1'"
//	```
//
// The service is expected to answer with the same block, values translated.
func BuildPrompt(template string, sources []string) string {
	var b strings.Builder
	b.WriteString(template)
	b.WriteString("\n```python\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "%s = %s\n", VarName(i), literal.Quote(src))
	}
	b.WriteString("```\n")
	return b.String()
}

// BuildSinglePrompt is BuildPrompt for one text bound to BatchVar.
func BuildSinglePrompt(template, source string) string {
	return template + "\n```python\n" + BatchVar + " = " + literal.Quote(source) + "\n```\n"
}

// LoadPrompt reads an instruction template file.
func LoadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return string(data), nil
}

// ExpandPrompt fills the {{lang}} and {{language}} placeholders of a
// template with the locale code and its English name.
func ExpandPrompt(template, lang string) string {
	return strings.NewReplacer(
		"{{lang}}", lang,
		"{{language}}", LanguageName(lang),
	).Replace(template)
}

// LanguageName returns the English name of a locale such as "zh_CN", or the
// locale itself when it is not recognized.
func LanguageName(lang string) string {
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return lang
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return lang
}
