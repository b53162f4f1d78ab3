package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/minios-linux/llvm-i18n/literal"
)

// Expander runs a macro program through a C preprocessor and returns the
// output lines.
type Expander interface {
	Expand(ctx context.Context, program string) ([]string, error)
}

// CCExpander shells out to "cc -E -P".
type CCExpander struct {
	// CC is the compiler driver. Empty means "cc".
	CC string
	// IncludeDirs are passed as -I options.
	IncludeDirs []string
}

// Expand implements Expander.
func (e *CCExpander) Expand(ctx context.Context, program string) ([]string, error) {
	cc := e.CC
	if cc == "" {
		cc = "cc"
	}
	ccPath, err := exec.LookPath(cc)
	if err != nil {
		return nil, fmt.Errorf("%s not found; install a C compiler or pass --no-preprocess", cc)
	}

	args := []string{"-E", "-P"}
	for _, dir := range e.IncludeDirs {
		args = append(args, "-I", dir)
	}
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, ccPath, args...)
	cmd.Stdin = strings.NewReader(program)
	var stdout bytes.Buffer
	var stderrBuf strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderrBuf.String()); msg != "" {
			return nil, fmt.Errorf("%s -E failed: %w\n%s", cc, err, msg)
		}
		return nil, fmt.Errorf("%s -E failed: %w", cc, err)
	}
	return strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n"), nil
}

// diagnosticKinds are the generated clang diagnostic tables, in the order
// they are included.
var diagnosticKinds = []string{
	"Common",
	"Driver",
	"Frontend",
	"Serialization",
	"Lex",
	"Parse",
	"AST",
	"Comment",
	"CrossTU",
	"Sema",
	"Analysis",
	"Refactoring",
	"InstallAPI",
}

// DiagnosticTable returns a macro program that expands every clang
// diagnostic to its description string, one per line.
func DiagnosticTable() string {
	var b strings.Builder
	b.WriteString("#define DIAG(ENUM, CLASS, DEFAULT_SEVERITY, DESC, GROUP, SFINAE, NOWERROR, SHOWINSYSHEADER, SHOWINSYSMACRO, DEFERRABLE, CATEGORY) DESC\n")
	for _, k := range diagnosticKinds {
		fmt.Fprintf(&b, "#include \"clang/Basic/Diagnostic%sKinds.inc\"\n", k)
	}
	return b.String()
}

const optionParams = "PREFIXES_OFFSET, PREFIXED_NAME_OFFSET, ID, KIND, GROUP, ALIAS, ALIASARGS, FLAGS, VISIBILITY, PARAM, HELPTEXT, HELPTEXTSFORVARIANTS, METAVAR, VALUES"

// OptionTable returns a macro program that expands every clang driver
// option to its help text, then to its per-variant help texts.
func OptionTable() string {
	return "#define OPTION(" + optionParams + ") HELPTEXT\n" +
		"#include \"clang/Driver/Options.inc\"\n" +
		"#undef OPTION\n" +
		"#define OPTION(" + optionParams + ") HELPTEXTSFORVARIANTS\n" +
		"#include \"clang/Driver/Options.inc\"\n"
}

// LineError reports a preprocessor output line that is not a literal.
type LineError struct {
	Line int
	Text string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: not a string literal: %.60q", e.Line, e.Text)
}

// LiteralsFromLines decodes preprocessor output. Blank lines are ignored.
//
// In strict mode every other line must be a literal expression. In lenient
// mode lines without a double quote are ignored, and a line that does not
// decode as a whole is retried on the text between its first and last
// quote; lines that still fail and empty results are dropped.
func LiteralsFromLines(lines []string, lenient bool) ([]string, error) {
	var out []string
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !lenient {
			s, ok := literal.Decode(line)
			if !ok {
				return nil, &LineError{Line: i + 1, Text: line}
			}
			out = append(out, s)
			continue
		}

		if !strings.Contains(line, `"`) {
			continue
		}
		s, ok := literal.Decode(line)
		if !ok {
			first := strings.IndexByte(line, '"')
			last := strings.LastIndexByte(line, '"')
			s, ok = literal.Decode(line[first : last+1])
		}
		if ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
