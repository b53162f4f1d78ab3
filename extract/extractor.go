package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Section counts the strings contributed by one source of text.
type Section struct {
	Name  string
	Count int
}

// Result is the outcome of an extraction run.
type Result struct {
	// Strings holds every extracted string, duplicates included, grouped by
	// section in the order of Sections.
	Strings  []string
	Sections []Section
	// Files is the number of source files scanned; Skipped of those could
	// not be read.
	Files   int
	Skipped int
}

func (r *Result) add(name string, strs []string) {
	r.Strings = append(r.Strings, strs...)
	r.Sections = append(r.Sections, Section{Name: name, Count: len(strs)})
}

// Extractor runs the generated-table expansion, the marker scan over the
// source tree and appends the special strings.
type Extractor struct {
	Markers []Marker
	Scan    ScanOptions
	Walk    WalkOptions
	// Expander expands the diagnostic and option tables. Nil skips them.
	Expander Expander
	// NoSpecial omits SpecialStrings from the result.
	NoSpecial bool

	// OnLog receives progress messages.
	OnLog func(format string, args ...any)
	// OnProgress is called after each scanned file. It may be called from
	// several goroutines at once.
	OnProgress func(done, total int)
}

func (e *Extractor) log(format string, args ...any) {
	if e.OnLog != nil {
		e.OnLog(format, args...)
	}
}

func (e *Extractor) workers() int {
	if e.Scan.Workers > 0 {
		return e.Scan.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run extracts strings from the source tree at root.
func (e *Extractor) Run(ctx context.Context, root string) (*Result, error) {
	res := &Result{}

	if e.Expander != nil {
		lines, err := e.Expander.Expand(ctx, DiagnosticTable())
		if err != nil {
			return nil, fmt.Errorf("expanding diagnostic table: %w", err)
		}
		diags, err := LiteralsFromLines(lines, false)
		if err != nil {
			return nil, fmt.Errorf("decoding diagnostic table: %w", err)
		}
		res.add("Diagnostic", diags)
		e.log("Diagnostic: %d", len(diags))

		lines, err = e.Expander.Expand(ctx, OptionTable())
		if err != nil {
			return nil, fmt.Errorf("expanding option table: %w", err)
		}
		opts, _ := LiteralsFromLines(lines, true)
		res.add("Option", opts)
		e.log("Option: %d", len(opts))
	}

	files, err := FindSources(root, e.Walk)
	if err != nil {
		return nil, err
	}
	res.Files = len(files)
	e.log("Scanning %d source files", len(files))

	found, skipped, err := e.scanFiles(ctx, root, files)
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped

	// Marker-major order: all hits of the first marker, then the next.
	for mi, m := range e.Markers {
		var strs []string
		for fi := range files {
			strs = append(strs, found[fi][mi]...)
		}
		res.add(m.String(), strs)
		e.log("%s: %d", m.String(), len(strs))
	}

	if !e.NoSpecial {
		res.add("Special", SpecialStrings())
	}
	return res, nil
}

// scanFiles scans files concurrently. found[file][marker] holds the hits.
func (e *Extractor) scanFiles(ctx context.Context, root string, files []string) ([][][]string, int, error) {
	found := make([][][]string, len(files))
	var skipped, done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hits, ok := e.scanFile(root, path)
			if !ok {
				skipped.Add(1)
			}
			found[i] = hits
			if e.OnProgress != nil {
				e.OnProgress(int(done.Add(1)), len(files))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return found, int(skipped.Load()), nil
}

// scanFile returns the hits of every marker in one file. Unreadable files
// yield no hits and ok == false.
func (e *Extractor) scanFile(root, path string) (hits [][]string, ok bool) {
	hits = make([][]string, len(e.Markers))

	data, err := os.ReadFile(path)
	if err != nil {
		return hits, false
	}
	src := string(data)

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for mi, m := range e.Markers {
		if !m.Applies(rel) || !strings.Contains(src, m.Token) {
			continue
		}
		hits[mi] = ScanContent(src, m, e.Scan)
	}
	return hits, true
}
