package checkpoint

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	"github.com/minios-linux/llvm-i18n/literal"
)

// Environment variables read by the runtime hook.
const (
	EnvTranslationDir = "CLANG_I18N_TRANSLATION_DIR"
	EnvLang           = "CLANG_I18N_LANG"
)

// TableStats counts what WriteTable wrote.
type TableStats struct {
	Written     int
	Unsupported []string // hashes whose quoted text the hook cannot decode
}

// TablePath returns where the hook looks for the table of lang inside dir.
func TablePath(dir, lang string) string {
	return filepath.Join(dir, RuntimeLang(lang)+".yml")
}

// RuntimeLang strips the encoding from a locale name, as the hook does:
// "zh_CN.UTF-8" becomes "zh_CN".
func RuntimeLang(locale string) string {
	lang, _, _ := strings.Cut(locale, ".")
	return lang
}

// HookSafe reports whether the hook can decode a quoted value. It only
// understands the \t \n \" \' and \\ escapes and aborts on anything else.
func HookSafe(quoted string) bool {
	for i := 0; i < len(quoted); i++ {
		if quoted[i] != '\\' {
			continue
		}
		if i+1 == len(quoted) {
			return false
		}
		switch quoted[i+1] {
		case 't', 'n', '"', '\'', '\\':
			i++
		default:
			return false
		}
	}
	return true
}

// WriteTable writes the translation table loaded by the runtime hook: one
// record per translation, in corpus order, without comment lines.
// Translations the hook could not decode are left out and reported.
func (cp *Checkpoint) WriteTable(w io.Writer) (TableStats, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	var st TableStats
	bw := bufio.NewWriter(w)
	for _, hash := range cp.corpus.Hashes() {
		text, ok := cp.accepted[hash]
		if !ok {
			continue
		}
		if !HookSafe(literal.Quote(text)) {
			st.Unsupported = append(st.Unsupported, hash)
			continue
		}
		bw.WriteString(FormatRecord(hash, text))
		st.Written++
	}
	return st, bw.Flush()
}

// InstallTable atomically writes the table to path.
func (cp *Checkpoint) InstallTable(path string) (TableStats, error) {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return TableStats{}, fmt.Errorf("creating %s: %w", path, err)
	}
	defer t.Cleanup()

	st, err := cp.WriteTable(t)
	if err != nil {
		return st, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := t.Chmod(0o644); err != nil {
		return st, err
	}
	return st, t.CloseAtomicallyReplace()
}
