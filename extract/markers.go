package extract

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Marker describes one kind of call site that carries user-visible text.
type Marker struct {
	// Path restricts the marker to a subtree of the source root, in slash
	// form. Empty or "." means the whole tree.
	Path string
	// Token is the literal text that starts the call, e.g. "cl::desc(".
	Token string
	// Suffix makes the truncation fallback shrink the span from the start
	// rather than the end, for calls where the text is the last argument.
	Suffix bool
	// TruncForSuffix cuts the span after its last double quote before
	// decoding.
	TruncForSuffix bool
	// MaxLen drops results of this many characters or more. Zero means no
	// limit.
	MaxLen int
}

// Applies reports whether the marker covers rel, a slash-separated path
// relative to the source root.
func (m Marker) Applies(rel string) bool {
	p := path.Clean(m.Path)
	if p == "." || p == "" {
		return true
	}
	return rel == p || strings.HasPrefix(rel, p+"/")
}

// String renders the marker in the form accepted by ParseMarker.
func (m Marker) String() string {
	var flags []string
	if m.Suffix {
		flags = append(flags, "suffix")
	}
	if m.TruncForSuffix {
		flags = append(flags, "trunc")
	}
	if m.MaxLen > 0 {
		flags = append(flags, "max="+strconv.Itoa(m.MaxLen))
	}
	if m.Path != "" && m.Path != "." {
		flags = append(flags, "path="+m.Path)
	}
	if len(flags) == 0 {
		return m.Token
	}
	return m.Token + "@" + strings.Join(flags, ",")
}

// ParseMarker parses "token[@flag,flag...]" where the flags are suffix,
// trunc, max=N and path=DIR. The token may contain any character except
// '@'; a trailing space in the token is significant.
func ParseMarker(spec string) (Marker, error) {
	token, flags, hasFlags := strings.Cut(spec, "@")
	if token == "" {
		return Marker{}, fmt.Errorf("marker %q: empty token", spec)
	}
	m := Marker{Token: token}
	if !hasFlags {
		return m, nil
	}
	for _, f := range strings.Split(flags, ",") {
		f = strings.TrimSpace(f)
		key, val, _ := strings.Cut(f, "=")
		switch key {
		case "":
		case "suffix":
			m.Suffix = true
		case "trunc":
			m.TruncForSuffix = true
		case "max":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return Marker{}, fmt.Errorf("marker %q: invalid max %q", spec, val)
			}
			m.MaxLen = n
		case "path":
			m.Path = strings.Trim(val, "/")
		default:
			return Marker{}, fmt.Errorf("marker %q: unknown flag %q", spec, key)
		}
	}
	return m, nil
}

// DefaultMarkers returns the LLVM marker table.
func DefaultMarkers() []Marker {
	return []Marker{
		// custom diagnostics
		{Path: "clang/lib", Token: ".getCustomDiagID("},
		{Path: "libcxx/include", Token: "_LIBCPP_DIAGNOSE_WARNING("},

		// inline command-line options
		{Token: "cl::desc("},
		{Token: "clEnumValN(", Suffix: true},
		{Token: "clEnumVal(", Suffix: true},
		{Token: "cl::OptionCategory"},
		{Token: "cl::OptionCategory", Suffix: true},
		{Path: "llvm/include/llvm/Target", Token: "addLiteralOption(", Suffix: true},

		// legacy pass manager descriptions
		{Token: "INITIALIZE_PASS_BEGIN(", Suffix: true, TruncForSuffix: true},
		{Token: "INITIALIZE_PASS_END(", Suffix: true, TruncForSuffix: true},
		{Token: "INITIALIZE_PASS(", Suffix: true, TruncForSuffix: true},
		{Token: "static RegisterPass<", Suffix: true, TruncForSuffix: true},
		{Path: "llvm/lib", Token: "_NAME ", MaxLen: 100},

		// program descriptions
		{Token: "cl::ParseCommandLineOptions(", Suffix: true},

		// schedulers, debug counters, register allocators
		{Path: "llvm/lib", Token: "static MachineSchedRegistry", Suffix: true, TruncForSuffix: true},
		{Path: "llvm/lib", Token: "static RegisterScheduler", Suffix: true, TruncForSuffix: true},
		{Path: "llvm/lib", Token: "DEBUG_COUNTER(", Suffix: true},
		{Path: "llvm/lib/CodeGen", Token: "static RegisterRegAlloc", Suffix: true, TruncForSuffix: true},
	}
}

// SpecialStrings returns runtime strings that no marker reaches: command
// line parser banners and errors, crash report text and a few diagnostics
// built at run time.
func SpecialStrings() []string {
	return []string{
		"clang LLVM compiler",
		"OVERVIEW: ",
		"USAGE: ",
		"OPTIONS:\n",
		"SUBCOMMANDS:\n\n",
		"  Type \"",
		" <subcommand> --help\" to get more help on a specific subcommand",
		" [options]",
		"SUBCOMMAND '",
		" [subcommand]",
		"= *cannot print option value*\n",
		"*no default*",
		" (default: ",
		"= *unknown option value*\n",
		"PLEASE submit a bug report to https://github.com/llvm/llvm-project/issues/ and include the crash backtrace, preprocessed source, and associated run script.\n",
		"PLEASE submit a bug report to https://github.com/llvm/llvm-project/issues/ and include the crash backtrace.\n",
		"WARNING: You're attempting to print out a bitcode file.\n" +
			"This is inadvisable as it may cause display problems. If\n" +
			"you REALLY want to taste LLVM bitcode first-hand, you\n" +
			"can force output with the `-f' option.\n\n",
		"\n********************\n\n" +
			"PLEASE ATTACH THE FOLLOWING FILES TO THE BUG REPORT:\n" +
			"Preprocessed source(s) and associated run script(s) are located at:",
		"Override the behaviour of expand-variadics",
		"Options: <empty>|Legal|Discard|Convert. If non-empty, ignore TargetTransformInfo and always use this transformation for the %evl parameter (Used in testing).",
		": Unknown ",
		"command line argument",
		"subcommand",
		"'.  Try: '",
		": Did you mean '",
		"This argument does not take a value.\n" +
			"\tInstead, it consumes any positional arguments until " +
			"the next recognized option.",
		": Not enough positional command line arguments specified!\n",
		"Must specify at least ",
		" positional argument",
		": See: ",
		": Too many positional arguments specified!\n",
		"Can specify at most ",
		" positional arguments: See: ",
		"must be specified at least once!",
		"invalid case style for %0 '%1'",
		"declaration uses identifier '%0', which is %select{a reserved " +
			"identifier|not a reserved identifier|reserved in the global namespace}1",
	}
}
