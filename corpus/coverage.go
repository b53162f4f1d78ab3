package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Coverage is the test-coverage sampler's report: for every test file the
// compiler invocations that were kept and the content hashes each of them
// printed while running with the translation runtime in debug mode.
type Coverage struct {
	Files []CoverageFile
}

// CoverageFile is one test file of the report.
type CoverageFile struct {
	Filename string    `json:"filename"`
	RunLines []RunLine `json:"run_lines"`
}

// RunLine is one sampled compiler invocation.
type RunLine struct {
	Command    string   `json:"command"`
	Complexity int      `json:"complexity"`
	Activated  []string `json:"activated"`
}

// LoadCoverage reads a coverage report.
func LoadCoverage(path string) (*Coverage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading coverage report: %w", err)
	}
	var files []CoverageFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &Coverage{Files: files}, nil
}

// Reached returns every hash activated by at least one run line, with the
// number of run lines that activated it.
func (c *Coverage) Reached() map[string]int {
	out := make(map[string]int)
	for _, f := range c.Files {
		for _, rl := range f.RunLines {
			for _, h := range rl.Activated {
				out[h]++
			}
		}
	}
	return out
}

// CoverageStats summarizes how much of the reached text is translated.
type CoverageStats struct {
	Reached    int // distinct hashes seen in the report
	InCorpus   int // of those, present in the corpus
	Translated int // of those, accepted in the checkpoint
	// Missing lists reached corpus hashes without a translation, most
	// frequently activated first.
	Missing []string
}

// Stats relates the report to a corpus and a translated-hash predicate.
func (c *Coverage) Stats(cp *Corpus, translated func(hash string) bool) CoverageStats {
	reached := c.Reached()
	st := CoverageStats{Reached: len(reached)}
	for h := range reached {
		if _, ok := cp.Lookup(h); !ok {
			continue
		}
		st.InCorpus++
		if translated(h) {
			st.Translated++
		} else {
			st.Missing = append(st.Missing, h)
		}
	}
	sort.Slice(st.Missing, func(i, j int) bool {
		a, b := st.Missing[i], st.Missing[j]
		if reached[a] != reached[b] {
			return reached[a] > reached[b]
		}
		return a < b
	})
	return st
}
