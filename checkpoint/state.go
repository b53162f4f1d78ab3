package checkpoint

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"
)

// StateSuffix is appended to the checkpoint path to name its state file.
const StateSuffix = ".state.yaml"

// StateVersion is the state file format version.
const StateVersion = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// State tracks failed attempts per content hash next to a checkpoint.
// A hash whose translations keep getting rejected is quarantined once it
// reaches the attempt limit, so it stops occupying a slot in every batch.
type State struct {
	Version     int            `yaml:"version"`
	Attempts    map[string]int `yaml:"attempts,omitempty"` // hash -> rejected candidates
	Quarantined []string       `yaml:"quarantined,omitempty"`

	mu   sync.Mutex      `yaml:"-"`
	path string          `yaml:"-"`
	set  map[string]bool `yaml:"-"` // Quarantined as a set
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// LoadState reads a state file. A missing file yields an empty state.
func LoadState(path string) (*State, error) {
	st := &State{
		Version:  StateVersion,
		Attempts: make(map[string]int),
		path:     path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			st.index()
			return st, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	st.path = path
	if st.Version > StateVersion {
		return nil, fmt.Errorf("%s: unsupported state version %d", path, st.Version)
	}
	st.Version = StateVersion

	if st.Attempts == nil {
		st.Attempts = make(map[string]int)
	}
	st.index()
	return st, nil
}

func (st *State) index() {
	st.set = make(map[string]bool, len(st.Quarantined))
	for _, h := range st.Quarantined {
		st.set[h] = true
	}
}

// Save writes the state file. An empty state removes the file instead.
func (st *State) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.path == "" {
		return fmt.Errorf("state file path not set")
	}

	if len(st.Attempts) == 0 && len(st.Quarantined) == 0 {
		if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", st.path, err)
		}
		return nil
	}

	sort.Strings(st.Quarantined)
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := renameio.WriteFile(st.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", st.path, err)
	}
	return nil
}

// Path returns the state file path.
func (st *State) Path() string {
	return st.path
}

// ---------------------------------------------------------------------------
// Attempt tracking
// ---------------------------------------------------------------------------

// RecordFailure counts one rejected candidate for hash. When limit is
// positive and the count reaches it, the hash is quarantined. It returns the
// new count and whether the hash is now quarantined.
func (st *State) RecordFailure(hash string, limit int) (int, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.Attempts[hash]++
	n := st.Attempts[hash]
	if limit > 0 && n >= limit && !st.set[hash] {
		st.set[hash] = true
		st.Quarantined = append(st.Quarantined, hash)
	}
	return n, st.set[hash]
}

// AttemptCount returns the number of rejected candidates recorded for hash.
func (st *State) AttemptCount(hash string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Attempts[hash]
}

// IsQuarantined reports whether hash is quarantined.
func (st *State) IsQuarantined(hash string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.set[hash]
}

// QuarantinedHashes returns the quarantined hashes, sorted.
func (st *State) QuarantinedHashes() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]string, len(st.Quarantined))
	copy(out, st.Quarantined)
	sort.Strings(out)
	return out
}

// Forget drops everything recorded for hash, e.g. once it is translated.
func (st *State) Forget(hash string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.forget(hash)
}

func (st *State) forget(hash string) {
	delete(st.Attempts, hash)
	if st.set[hash] {
		delete(st.set, hash)
		for i, h := range st.Quarantined {
			if h == hash {
				st.Quarantined = append(st.Quarantined[:i], st.Quarantined[i+1:]...)
				break
			}
		}
	}
}

// Release lifts the quarantine of the given hashes, or of every hash when
// none are given, and resets their attempt counts. It returns the number of
// hashes released.
func (st *State) Release(hashes ...string) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	if len(hashes) == 0 {
		hashes = append([]string(nil), st.Quarantined...)
	}
	n := 0
	for _, h := range hashes {
		if st.set[h] {
			n++
		}
		st.forget(h)
	}
	return n
}

// Clean removes entries for hashes that keep reports false, so that state
// for texts no longer in the corpus does not accumulate.
func (st *State) Clean(keep func(hash string) bool) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	var stale []string
	for h := range st.Attempts {
		if !keep(h) {
			stale = append(stale, h)
		}
	}
	for _, h := range st.Quarantined {
		if !keep(h) && st.Attempts[h] == 0 {
			stale = append(stale, h)
		}
	}
	for _, h := range stale {
		st.forget(h)
	}
	return len(stale)
}

// Summary returns a short human-readable description.
func (st *State) Summary() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.Attempts) == 0 && len(st.Quarantined) == 0 {
		return "no failed attempts"
	}
	return fmt.Sprintf("%d hashes with failed attempts, %d quarantined", len(st.Attempts), len(st.Quarantined))
}
