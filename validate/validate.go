// Package validate decides whether a candidate translation may be stored.
//
// A candidate is accepted when every structural token (format placeholders,
// selector syntax, escapes, C++ keywords and architecture names) occurs
// exactly as often as in the source text, and every erratum whose keyword
// appears in the source is honored.
package validate

import (
	"fmt"
	"strings"
)

var structuralTokens = []string{
	"%0", "%1", "%2", "%3", "%4", "%5", "%6", "%7", "%8", "%9",
	"%select{",
	"%enum_select<",
	"%plural{",
	"%ordinal",
	"%human",
	"%objcclass",
	"%objcinstance",
	"%q",
	"%diff{",
	"%sub{",
	"|",
	"{",
	"}",
	`\`,
	`\n`,
	// C++ keywords
	"consteval",
	"constexpr",
	"constinit",
	"const_cast",
	"dynamic_cast",
	"reinterpret_cast",
	"static_cast",
	"typeid",
	"typename",
	"co_await",
	"co_return",
	"co_yield",
	"alignas",
	"alignof",
	"decltype",
	"goto",
	"noexcept",
	"nullptr",
	"static_assert",
	"thread_local",
	"#pragma",
	// architectures and vendors
	"X86",
	"ARM",
	"AArch64",
	"RISCV",
	"RISC-V",
	"MIPS",
	"SPARC",
	"PowerPC",
	"Alpha",
	"AMDGPU",
	"M68k",
	"SystemZ",
	"NVPTX",
	"WebAssembly",
	"JIT",
	"GNU",
	"MSVC",
	"DXIL",
	"Visual Studio",
}

// StructuralTokens returns a copy of the default token set.
func StructuralTokens() []string {
	out := make([]string, len(structuralTokens))
	copy(out, structuralTokens)
	return out
}

// ---------------------------------------------------------------------------
// Violations
// ---------------------------------------------------------------------------

// Kind classifies a rejected candidate.
type Kind int

const (
	NotText Kind = iota
	TokenCount
	MissingReplacement
	ForbiddenReplacement
)

func (k Kind) String() string {
	switch k {
	case NotText:
		return "not text"
	case TokenCount:
		return "token count"
	case MissingReplacement:
		return "missing replacement"
	case ForbiddenReplacement:
		return "forbidden replacement"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Violation describes the first rule a candidate broke.
type Violation struct {
	Kind Kind
	// Token is the structural token or erratum replacement involved.
	Token string
	// Source and Candidate are occurrence counts for TokenCount.
	Source    int
	Candidate int
	// Keyword is the erratum keyword for replacement violations.
	Keyword string
}

func (v *Violation) Error() string {
	switch v.Kind {
	case NotText:
		return "candidate is not a string"
	case TokenCount:
		return fmt.Sprintf("token %q occurs %d time(s) in source, %d in translation", v.Token, v.Source, v.Candidate)
	case MissingReplacement:
		return fmt.Sprintf("keyword %q requires %q in translation", v.Keyword, v.Token)
	case ForbiddenReplacement:
		return fmt.Sprintf("keyword %q forbids %q in translation", v.Keyword, v.Token)
	}
	return v.Kind.String()
}

// ---------------------------------------------------------------------------
// Validator
// ---------------------------------------------------------------------------

// Validator holds the token set and errata. The zero value checks nothing;
// use New.
type Validator struct {
	Tokens []string
	Errata []Erratum
}

// New returns a Validator with the default structural tokens.
func New(errata []Erratum) *Validator {
	return &Validator{Tokens: StructuralTokens(), Errata: errata}
}

// Accept reports whether candidate is an acceptable translation of source.
// Candidates that are not strings are always rejected.
func (v *Validator) Accept(source string, candidate any) bool {
	return v.Check(source, candidate) == nil
}

// Check is Accept with a reason. It returns nil or a *Violation.
func (v *Validator) Check(source string, candidate any) error {
	text, ok := candidate.(string)
	if !ok {
		return &Violation{Kind: NotText}
	}

	for _, tok := range v.Tokens {
		ns, nc := strings.Count(source, tok), strings.Count(text, tok)
		if ns != nc {
			return &Violation{Kind: TokenCount, Token: tok, Source: ns, Candidate: nc}
		}
	}

	for _, e := range v.Errata {
		if !e.Applies(source) {
			continue
		}
		has := strings.Contains(text, e.Replacement)
		switch {
		case e.Require && !has:
			return &Violation{Kind: MissingReplacement, Token: e.Replacement, Keyword: e.Keyword}
		case !e.Require && has:
			return &Violation{Kind: ForbiddenReplacement, Token: e.Replacement, Keyword: e.Keyword}
		}
	}
	return nil
}
