// Package pofile writes translation tables as GNU gettext PO catalogs and
// reads existing PO/MO catalogs back as translation candidates.
package pofile

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/renameio"
)

// Entry represents a single message in a PO file.
type Entry struct {
	// TranslatorComments are lines starting with "# " (translator comments).
	TranslatorComments []string
	// ExtractedComments are lines starting with "#." (extracted/automatic comments).
	ExtractedComments []string
	// Flags are format flags, lines starting with "#,".
	Flags []string

	// MsgCtxt is the message context (msgctxt).
	MsgCtxt string
	// MsgID is the untranslated string.
	MsgID string
	// MsgStr is the translated string.
	MsgStr string
}

// IsTranslated returns true if the entry has a non-empty, non-fuzzy translation.
func (e *Entry) IsTranslated() bool {
	return e.MsgID != "" && e.MsgStr != "" && !e.HasFlag("fuzzy")
}

// HasFlag checks if a specific flag is present.
func (e *Entry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// File represents a PO file.
type File struct {
	// Header is the metadata entry (msgid "").
	Header *Entry
	// Entries are the message entries.
	Entries []*Entry
}

// NewFile creates a new empty PO file.
func NewFile() *File {
	return &File{
		Header:  &Entry{},
		Entries: make([]*Entry, 0),
	}
}

// HeaderField returns a header field value by name.
func (f *File) HeaderField(name string) string {
	if f.Header == nil {
		return ""
	}
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			if strings.EqualFold(key, name) {
				return strings.TrimSpace(line[idx+1:])
			}
		}
	}
	return ""
}

// SetHeaderField sets a header field value.
func (f *File) SetHeaderField(name, value string) {
	if f.Header == nil {
		f.Header = &Entry{}
	}

	lines := strings.Split(f.Header.MsgStr, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, ":"); idx > 0 {
			if strings.EqualFold(strings.TrimSpace(line[:idx]), name) {
				lines[i] = name + ": " + value
				f.Header.MsgStr = strings.Join(lines, "\n")
				return
			}
		}
	}
	// Insert before trailing empty line
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = append(lines[:len(lines)-1], name+": "+value, "")
	} else {
		lines = append(lines, name+": "+value)
	}
	f.Header.MsgStr = strings.Join(lines, "\n")
}

// Stats returns translation statistics.
func (f *File) Stats() (total, translated int) {
	for _, e := range f.Entries {
		if e.MsgID == "" {
			continue
		}
		total++
		if e.IsTranslated() {
			translated++
		}
	}
	return
}

// Write writes the PO file to a writer.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if f.Header != nil {
		writeEntry(bw, f.Header)
	}
	for _, e := range f.Entries {
		fmt.Fprintln(bw)
		writeEntry(bw, e)
	}
	return bw.Flush()
}

// WriteFile atomically replaces path with the PO file.
func (f *File) WriteFile(path string) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer t.Cleanup()
	if err := f.Write(t); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}

func writeEntry(w *bufio.Writer, e *Entry) {
	for _, c := range e.TranslatorComments {
		fmt.Fprintf(w, "# %s\n", c)
	}
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}
	if e.MsgCtxt != "" {
		writeQuotedField(w, "msgctxt", e.MsgCtxt)
	}
	writeQuotedField(w, "msgid", e.MsgID)
	writeQuotedField(w, "msgstr", e.MsgStr)
}

// writeQuotedField writes a PO field with proper multiline quoting.
func writeQuotedField(w *bufio.Writer, field, value string) {
	if !strings.Contains(value, "\n") {
		fmt.Fprintf(w, "%s %s\n", field, quote(value))
		return
	}

	// Multiline: use empty string on first line
	fmt.Fprintf(w, "%s \"\"\n", field)
	parts := strings.Split(value, "\n")
	for i, part := range parts {
		if i < len(parts)-1 {
			fmt.Fprintf(w, "%s\n", quote(part+"\n"))
		} else if part != "" {
			fmt.Fprintf(w, "%s\n", quote(part))
		}
	}
}

var quoter = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

// quote produces a PO-style quoted string.
func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}

// MakeHeader creates a PO header for a translation table.
func MakeHeader(projectName, language string, now time.Time) *Entry {
	stamp := now.UTC().Format("2006-01-02 15:04+0000")
	header := fmt.Sprintf(
		"Project-Id-Version: %s\n"+
			"PO-Revision-Date: %s\n"+
			"Last-Translator: \n"+
			"Language-Team: %s\n"+
			"Language: %s\n"+
			"MIME-Version: 1.0\n"+
			"Content-Type: text/plain; charset=UTF-8\n"+
			"Content-Transfer-Encoding: 8bit\n"+
			"Plural-Forms: %s\n",
		projectName, stamp, LangNameNative(language), language, PluralFormsForLang(language),
	)
	return &Entry{
		TranslatorComments: []string{
			fmt.Sprintf("%s translations for %s.", LangNameNative(language), projectName),
			"msgctxt holds the content hash of msgid.",
		},
		MsgStr: header,
	}
}

// PluralFormsForLang returns the standard Plural-Forms header for a language code.
func PluralFormsForLang(lang string) string {
	switch baseLang(lang) {
	case "ja", "ko", "zh", "vi", "th", "id", "ms":
		return "nplurals=1; plural=0;"
	case "fr", "pt":
		return "nplurals=2; plural=(n > 1);"
	case "ru", "uk", "be", "hr", "sr", "bs":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "pl":
		return "nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "cs", "sk":
		return "nplurals=3; plural=(n==1 ? 0 : n>=2 && n<=4 ? 1 : 2);"
	default:
		return "nplurals=2; plural=(n != 1);"
	}
}

// LangNameNative returns the native name of a language, trying the full
// code first and then its base language.
func LangNameNative(lang string) string {
	names := map[string]string{
		"de":    "Deutsch",
		"en":    "English",
		"es":    "Español",
		"fr":    "Français",
		"it":    "Italiano",
		"ja":    "日本語",
		"ko":    "한국어",
		"pl":    "Polski",
		"pt":    "Português",
		"pt_BR": "Português (Brasil)",
		"ru":    "Русский",
		"uk":    "Українська",
		"vi":    "Tiếng Việt",
		"zh":    "中文",
		"zh_CN": "简体中文",
		"zh_TW": "繁體中文",
	}
	if name, ok := names[lang]; ok {
		return name
	}
	if name, ok := names[baseLang(lang)]; ok {
		return name
	}
	return lang
}

func baseLang(lang string) string {
	if idx := strings.IndexAny(lang, "_-"); idx > 0 {
		return lang[:idx]
	}
	return lang
}
