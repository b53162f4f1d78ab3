// Package corpus stores the deduplicated, sorted list of source texts that
// the translation job works through.
//
// On disk a corpus is one literal.Quote-encoded string per line. The file is
// the unit of work for translation: entry order is the order in which
// pending texts are batched.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/renameio"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/minios-linux/llvm-i18n/contenthash"
	"github.com/minios-linux/llvm-i18n/literal"
)

// Corpus is an ordered list of distinct source texts with their content
// hashes. It is immutable once built.
type Corpus struct {
	entries []string
	hashes  []string
	index   map[string]int // hash -> position
}

// BuildOptions controls Build's filtering.
type BuildOptions struct {
	// DenyList holds exact strings that are never kept.
	DenyList []string
	// KeepNoise disables the case-mapping noise filter.
	KeepNoise bool
}

var defaultDenyList = []string{
	"All",
	"all",
	"never",
	"Enabled",
	"Disabled",
	"Default",
	"directory",
	"filename",
	" position!",
	" version ",
	"' attribute: ",
}

// DefaultDenyList returns the built-in list of strings too generic to
// translate out of context.
func DefaultDenyList() []string {
	out := make([]string, len(defaultDenyList))
	copy(out, defaultDenyList)
	return out
}

// Build filters, deduplicates and sorts raw extracted strings.
//
// A string is dropped when it has no cased letters (its upper and lower case
// forms are equal, e.g. "%0", "42" or pure CJK text) or when it is on the deny
// list. The result is sorted by byte order, which for valid UTF-8 is code
// point order.
func Build(raw []string, opts BuildOptions) (*Corpus, error) {
	deny := make(map[string]bool, len(opts.DenyList))
	for _, s := range opts.DenyList {
		deny[s] = true
	}
	lower := cases.Lower(language.Und)
	upper := cases.Upper(language.Und)

	seen := make(map[string]bool, len(raw))
	var kept []string
	for _, s := range raw {
		if seen[s] {
			continue
		}
		seen[s] = true
		if deny[s] {
			continue
		}
		if !opts.KeepNoise && lower.String(s) == upper.String(s) {
			continue
		}
		kept = append(kept, s)
	}
	sort.Strings(kept)
	return New(kept)
}

// New wraps entries as they are. Duplicates keep their first position.
func New(entries []string) (*Corpus, error) {
	if _, err := contenthash.Index(entries); err != nil {
		return nil, err
	}
	c := &Corpus{
		entries: make([]string, 0, len(entries)),
		hashes:  make([]string, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, s := range entries {
		h := contenthash.Hash(s)
		if _, ok := c.index[h]; ok {
			continue
		}
		c.index[h] = len(c.entries)
		c.entries = append(c.entries, s)
		c.hashes = append(c.hashes, h)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Len returns the number of entries.
func (c *Corpus) Len() int { return len(c.entries) }

// Entries returns the texts in corpus order. The slice must not be modified.
func (c *Corpus) Entries() []string { return c.entries }

// Entry returns the i-th text.
func (c *Corpus) Entry(i int) string { return c.entries[i] }

// Hash returns the content hash of the i-th text.
func (c *Corpus) Hash(i int) string { return c.hashes[i] }

// Hashes returns all content hashes in corpus order. The slice must not be
// modified.
func (c *Corpus) Hashes() []string { return c.hashes }

// Lookup returns the text for a content hash.
func (c *Corpus) Lookup(hash string) (string, bool) {
	i, ok := c.index[hash]
	if !ok {
		return "", false
	}
	return c.entries[i], true
}

// Position returns the corpus index of hash, or -1.
func (c *Corpus) Position(hash string) int {
	if i, ok := c.index[hash]; ok {
		return i
	}
	return -1
}

// Line returns the encoded corpus line of the i-th text.
func (c *Corpus) Line(i int) string { return literal.Quote(c.entries[i]) }

// ---------------------------------------------------------------------------
// Reading and writing
// ---------------------------------------------------------------------------

// ParseError reports an undecodable corpus line.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Write writes one encoded line per entry.
func (c *Corpus) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, s := range c.entries {
		bw.WriteString(literal.Quote(s))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteFile atomically replaces path with the encoded corpus.
func (c *Corpus) WriteFile(path string) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer t.Cleanup()

	if err := c.Write(t); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Load reads a corpus written by Write. Blank and undecodable lines are
// errors.
func Load(r io.Reader) (*Corpus, error) {
	return load(r, "")
}

// LoadFile reads a corpus file.
func LoadFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	return load(f, path)
}

func load(r io.Reader, path string) (*Corpus, error) {
	var entries []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if line == "" {
			return nil, &ParseError{Path: path, Line: n, Err: fmt.Errorf("blank line")}
		}
		s, err := literal.Unquote(line)
		if err != nil {
			return nil, &ParseError{Path: path, Line: n, Err: err}
		}
		entries = append(entries, s)
	}
	if err := sc.Err(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	c, err := New(entries)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	return c, nil
}
