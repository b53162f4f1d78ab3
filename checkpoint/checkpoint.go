// Package checkpoint persists accepted translations so an interrupted job
// can resume without redoing work.
//
// The file lists one record per translated corpus entry, in corpus order:
//
//	# "cannot convert '%0' to '%1'"
//	H396469E9FC34: "无法将 '%0' 转换为 '%1'"
//
// The comment line repeats the corpus line for human readers and is ignored
// on load. Only lines starting with the hash tag are read: the first 13
// bytes are the content hash and the quoted translation starts after ": ".
// When a hash appears more than once the last valid line wins, so batch
// import results can simply be appended to an existing checkpoint.
package checkpoint

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/renameio"

	"github.com/minios-linux/llvm-i18n/contenthash"
	"github.com/minios-linux/llvm-i18n/corpus"
	"github.com/minios-linux/llvm-i18n/literal"
	"github.com/minios-linux/llvm-i18n/validate"
)

// valueOffset is where the quoted translation starts on a record line.
const valueOffset = contenthash.Width + len(": ")

// Checkpoint is the set of accepted translations for one corpus.
type Checkpoint struct {
	// MaxAttempts quarantines a hash after this many rejected candidates.
	// Zero retries forever.
	MaxAttempts int

	mu       sync.Mutex
	path     string
	corpus   *corpus.Corpus
	accepted map[string]string
	state    *State
}

// Problem is a checkpoint line that was dropped on load.
type Problem struct {
	Line int
	Hash string
	Err  error
}

// Report summarizes what Load found.
type Report struct {
	Records   int // record lines read
	Kept      int // distinct hashes accepted
	Unknown   int // hashes not in the corpus
	Rejected  int // translations failing validation
	Malformed int // record lines that could not be decoded
	// Problems lists the rejected and malformed lines.
	Problems []Problem
}

// Pruned reports whether Load dropped anything, i.e. whether saving would
// change the file.
func (r Report) Pruned() bool {
	return r.Unknown+r.Rejected+r.Malformed > 0 || r.Records != r.Kept
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the checkpoint at path for the given corpus. A missing file
// yields an empty checkpoint. Records for hashes outside the corpus are
// dropped, and so are translations the validator rejects, so a changed
// errata file re-queues affected entries. A nil validator accepts all.
func Load(path string, c *corpus.Corpus, v *validate.Validator) (*Checkpoint, Report, error) {
	cp := &Checkpoint{
		path:     path,
		corpus:   c,
		accepted: make(map[string]string),
	}
	var rep Report

	st, err := LoadState(path + StateSuffix)
	if err != nil {
		return nil, rep, err
	}
	cp.state = st

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cp, rep, nil
		}
		return nil, rep, fmt.Errorf("opening checkpoint: %w", err)
	}
	defer f.Close()

	if err := cp.read(f, v, &rep); err != nil {
		return nil, rep, fmt.Errorf("reading %s: %w", path, err)
	}
	rep.Kept = len(cp.accepted)

	cp.state.Clean(func(h string) bool {
		_, ok := c.Lookup(h)
		return ok && !cp.Has(h)
	})
	return cp, rep, nil
}

func (cp *Checkpoint) read(r io.Reader, v *validate.Validator, rep *Report) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if !strings.HasPrefix(line, contenthash.Tag) {
			continue
		}
		rep.Records++

		if len(line) < valueOffset || line[contenthash.Width:valueOffset] != ": " {
			rep.Malformed++
			rep.Problems = append(rep.Problems, Problem{Line: n, Err: fmt.Errorf("malformed record")})
			continue
		}
		hash := line[:contenthash.Width]
		text, err := literal.Unquote(line[valueOffset:])
		if err != nil {
			rep.Malformed++
			rep.Problems = append(rep.Problems, Problem{Line: n, Hash: hash, Err: err})
			continue
		}

		src, ok := cp.corpus.Lookup(hash)
		if !ok {
			rep.Unknown++
			continue
		}
		if v != nil {
			if err := v.Check(src, text); err != nil {
				rep.Rejected++
				rep.Problems = append(rep.Problems, Problem{Line: n, Hash: hash, Err: err})
				continue
			}
		}
		cp.accepted[hash] = text
	}
	return sc.Err()
}

// Save rewrites the checkpoint in corpus order and saves the attempt state.
// The file is replaced atomically, so an interrupted save leaves the
// previous version intact.
func (cp *Checkpoint) Save() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	t, err := renameio.TempFile("", cp.path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", cp.path, err)
	}
	defer t.Cleanup()

	if err := cp.write(t); err != nil {
		return fmt.Errorf("writing %s: %w", cp.path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", cp.path, err)
	}
	return cp.state.Save()
}

func (cp *Checkpoint) write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, hash := range cp.corpus.Hashes() {
		text, ok := cp.accepted[hash]
		if !ok {
			continue
		}
		bw.WriteString("# ")
		bw.WriteString(cp.corpus.Line(i))
		bw.WriteByte('\n')
		bw.WriteString(FormatRecord(hash, text))
	}
	return bw.Flush()
}

// FormatRecord renders one record line, newline included.
func FormatRecord(hash, text string) string {
	return hash + ": " + literal.Quote(text) + "\n"
}

// Path returns the checkpoint file path.
func (cp *Checkpoint) Path() string { return cp.path }

// State returns the attempt state.
func (cp *Checkpoint) State() *State { return cp.state }

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// Accept stores a translation and clears any failure history for hash.
func (cp *Checkpoint) Accept(hash, text string) {
	cp.mu.Lock()
	cp.accepted[hash] = text
	cp.mu.Unlock()
	cp.state.Forget(hash)
}

// Has reports whether hash has an accepted translation.
func (cp *Checkpoint) Has(hash string) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	_, ok := cp.accepted[hash]
	return ok
}

// Get returns the accepted translation of hash.
func (cp *Checkpoint) Get(hash string) (string, bool) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	s, ok := cp.accepted[hash]
	return s, ok
}

// Len returns the number of accepted translations.
func (cp *Checkpoint) Len() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.accepted)
}

// Pending returns the hashes still to translate, in corpus order.
// Quarantined hashes are not pending.
func (cp *Checkpoint) Pending() []string {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	var out []string
	for _, h := range cp.corpus.Hashes() {
		if _, ok := cp.accepted[h]; ok {
			continue
		}
		if cp.state.IsQuarantined(h) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// RecordFailure counts a rejected candidate for hash against MaxAttempts.
func (cp *Checkpoint) RecordFailure(hash string) (attempts int, quarantined bool) {
	return cp.state.RecordFailure(hash, cp.MaxAttempts)
}

// Quarantined returns the quarantined hashes that are still untranslated.
func (cp *Checkpoint) Quarantined() []string {
	var out []string
	for _, h := range cp.state.QuarantinedHashes() {
		if !cp.Has(h) {
			out = append(out, h)
		}
	}
	return out
}
