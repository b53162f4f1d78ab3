package pofile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leonelquinteros/gotext"

	"github.com/minios-linux/llvm-i18n/checkpoint"
	"github.com/minios-linux/llvm-i18n/corpus"
	"github.com/minios-linux/llvm-i18n/validate"
)

// ProjectName is written into the Project-Id-Version header.
const ProjectName = "llvm-i18n"

// ExportOptions controls Export.
type ExportOptions struct {
	// Untranslated also writes entries without a translation, with an
	// empty msgstr.
	Untranslated bool
	// Now stamps PO-Revision-Date. Zero means time.Now.
	Now time.Time
	// Generator, if set, is written as X-Generator.
	Generator string
}

// Export builds a PO catalog from the corpus and the checkpoint. Each
// entry carries its content hash as msgctxt, so catalogs stay keyed the
// same way as the checkpoint. Quarantined entries get a translator comment.
func Export(c *corpus.Corpus, cp *checkpoint.Checkpoint, lang string, opts ExportOptions) *File {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	f := NewFile()
	f.Header = MakeHeader(ProjectName, lang, now)
	if opts.Generator != "" {
		f.SetHeaderField("X-Generator", opts.Generator)
	}

	quarantined := make(map[string]bool)
	for _, h := range cp.Quarantined() {
		quarantined[h] = true
	}

	for i := 0; i < c.Len(); i++ {
		h := c.Hash(i)
		text, ok := cp.Get(h)
		if !ok && !opts.Untranslated {
			continue
		}
		e := &Entry{MsgCtxt: h, MsgID: c.Entry(i), MsgStr: text}
		if strings.Contains(e.MsgID, "%") {
			e.Flags = append(e.Flags, "c-format")
		}
		if quarantined[h] {
			n := cp.State().AttemptCount(h)
			e.TranslatorComments = append(e.TranslatorComments,
				fmt.Sprintf("quarantined after %d failed attempts", n))
		}
		f.Entries = append(f.Entries, e)
	}
	return f
}

// ---------------------------------------------------------------------------
// Seeding from existing catalogs
// ---------------------------------------------------------------------------

// catalog is the read side shared by gotext.Po and gotext.Mo.
type catalog interface {
	ParseFile(string)
	Get(string, ...interface{}) string
	GetC(string, string, ...interface{}) string
}

// SeedStats counts what Seed found.
type SeedStats struct {
	Found    int // corpus entries with a translation in the catalog
	Rejected int // translations refused by the validator
}

// Seed reads a .po or .mo catalog and returns translations for corpus
// entries, keyed by content hash. An entry is looked up by hash context
// first and then by msgid alone, so catalogs written by Export and plain
// upstream catalogs both work. Translations that equal the source or fail
// validation are dropped.
func Seed(path string, c *corpus.Corpus, v *validate.Validator) (map[string]string, SeedStats, error) {
	var st SeedStats
	if _, err := os.Stat(path); err != nil {
		return nil, st, err
	}

	var cat catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".po", ".pot":
		cat = gotext.NewPo()
	case ".mo", ".gmo":
		cat = gotext.NewMo()
	default:
		return nil, st, fmt.Errorf("%s: not a .po or .mo file", path)
	}
	cat.ParseFile(path)

	if v == nil {
		v = validate.New(nil)
	}
	out := make(map[string]string)
	for i := 0; i < c.Len(); i++ {
		src, h := c.Entry(i), c.Hash(i)
		tr := cat.GetC(src, h)
		if tr == src {
			tr = cat.Get(src)
		}
		if tr == src || tr == "" {
			continue
		}
		st.Found++
		if !v.Accept(src, tr) {
			st.Rejected++
			continue
		}
		out[h] = tr
	}
	return out, st, nil
}
