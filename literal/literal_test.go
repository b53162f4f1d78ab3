package literal

import (
	"testing"
)

func TestDecodeC(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "simple", in: `"hello"`, want: "hello", ok: true},
		{name: "empty", in: `""`, want: "", ok: true},
		{name: "padded", in: "  \"x\"\t", want: "x", ok: true},
		{name: "concatenation", in: `"unknown target CPU '%0'" "; did you mean '%1'?"`, want: "unknown target CPU '%0'; did you mean '%1'?", ok: true},
		{name: "parenthesized", in: `("wrapped")`, want: "wrapped", ok: true},
		{name: "nested parens", in: `(( "a" "b" ))`, want: "ab", ok: true},
		{name: "escapes", in: `"a\tb\n\\\"\'\?"`, want: "a\tb\n\\\"'?", ok: true},
		{name: "octal", in: `"\101\0"`, want: "A\x00", ok: true},
		{name: "hex bytes", in: `"\xe2\x80\x98"`, want: "‘", ok: true},
		{name: "universal", in: `"é\U0001F600"`, want: "é😀", ok: true},
		{name: "unknown escape kept", in: `"\%"`, want: `\%`, ok: true},
		{name: "prefixes", in: `u8"a" L"b" u"c" U"d"`, want: "abcd", ok: true},
		{name: "raw", in: `R"(line one
"quoted" line two)"`, want: "line one\n\"quoted\" line two", ok: true},
		{name: "raw with delimiter", in: `R"xy(a)"b)xy"`, want: `a)"b`, ok: true},
		{name: "trailing argument", in: `"desc", cl::init(false)`, ok: false},
		{name: "macro between", in: `"a" PRIu64 "b"`, ok: false},
		{name: "identifier", in: `Desc`, ok: false},
		{name: "unterminated", in: `"abc`, ok: false},
		{name: "newline inside", in: "\"ab\ncd\"", ok: false},
		{name: "char literal", in: `'a'`, ok: false},
		{name: "bad prefix", in: `x"a"`, ok: false},
		{name: "call", in: `("a")("b")`, ok: false},
		{name: "empty input", in: ``, ok: false},
		{name: "hex overflow", in: `"\x1234"`, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Decode(tc.in)
			if ok != tc.ok {
				t.Fatalf("Decode(%q) ok = %v, want %v (value %q)", tc.in, ok, tc.ok, got)
			}
			if ok && got != tc.want {
				t.Fatalf("Decode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeExpr_Python(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "double", in: `"无法将 '%0' 转换为 '%1'"`, want: "无法将 '%0' 转换为 '%1'", ok: true},
		{name: "single", in: `'it\'s'`, want: "it's", ok: true},
		{name: "triple", in: "\"\"\"a\nb\"\"\"", want: "a\nb", ok: true},
		{name: "triple single", in: "'''x ' y'''", want: "x ' y", ok: true},
		{name: "raw", in: `r"\n%0"`, want: `\n%0`, ok: true},
		{name: "unicode prefix", in: `u"x"`, want: "x", ok: true},
		{name: "concatenation", in: `"a" 'b'`, want: "ab", ok: true},
		{name: "paren multiline", in: "(\"a\"\n \"b\")", want: "ab", ok: true},
		{name: "newline outside parens", in: "\"a\"\n\"b\"", ok: false},
		{name: "hex code point", in: `"\xe9"`, want: "é", ok: true},
		{name: "octal code point", in: `"\101"`, want: "A", ok: true},
		{name: "unknown escape kept", in: `"\d"`, want: `\d`, ok: true},
		{name: "continuation", in: "\"a\\\nb\"", want: "ab", ok: true},
		{name: "bytes", in: `b"x"`, ok: false},
		{name: "fstring", in: `f"{x}"`, ok: false},
		{name: "named escape", in: `"\N{BULLET}"`, ok: false},
		{name: "call", in: `__import__("os")`, ok: false},
		{name: "operator", in: `"a" + "b"`, ok: false},
		{name: "number", in: `42`, ok: false},
		{name: "single quoted newline", in: "'a\nb'", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := decodeExpr(tc.in, dialectPython)
			if ok != tc.ok {
				t.Fatalf("decode python %q: ok = %v, want %v (value %q)", tc.in, ok, tc.ok, got)
			}
			if ok && got != tc.want {
				t.Fatalf("decode python %q = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestScanPython(t *testing.T) {
	v, n, ok := ScanPython(`"a" "b"  # trailing comment`)
	if !ok {
		t.Fatal("ScanPython failed")
	}
	if v != "ab" {
		t.Errorf("value = %q, want ab", v)
	}
	if n != len(`"a" "b"`) {
		t.Errorf("length = %d, want %d", n, len(`"a" "b"`))
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"cannot convert '%0' to '%1'",
		"OPTIONS:\n",
		"tab\tand \"quotes\" and \\ backslash",
		"中文 %select{a|b}0",
		"\x00\x7f\xff invalid utf8",
		"  line separator",
	}
	for _, in := range inputs {
		q := Quote(in)
		for _, c := range q {
			if c == '\n' {
				t.Fatalf("Quote(%q) spans lines: %s", in, q)
			}
		}
		out, err := Unquote(q)
		if err != nil {
			t.Fatalf("Unquote(%s): %v", q, err)
		}
		if out != in {
			t.Errorf("round trip of %q gave %q", in, out)
		}
	}
}

func TestUnquoteRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "'a'", "`raw`", `"unterminated`} {
		if _, err := Unquote(in); err == nil {
			t.Errorf("Unquote(%q) succeeded, want error", in)
		}
	}
}
