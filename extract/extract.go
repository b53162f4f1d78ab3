// Package extract collects natural-language string literals from the LLVM
// source tree.
//
// Extraction is lexical: a Marker names a token that precedes a call whose
// arguments contain the interesting literal. The scanner finds the call,
// captures its argument span and decodes as much of it as it can as a C
// string-literal expression. There is no C++ parser behind this, so the
// result tolerates both missed strings and the occasional stray one.
//
// Two generated tables (diagnostics and driver option help) are obtained by
// running the C preprocessor over small macro programs, see Expander.
package extract

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs contains directory names to skip during source file scanning.
var skipDirs = map[string]bool{
	".git":        true,
	".hg":         true,
	".svn":        true,
	"__pycache__": true,
	"build":       true,
}

// sourceExtensions are the C/C++ file extensions that are scanned.
var sourceExtensions = map[string]bool{
	".cpp": true,
	".h":   true,
}

// WalkOptions tunes FindSources.
type WalkOptions struct {
	// SkipDirs adds directory names to the built-in skip list.
	SkipDirs []string
	// KeepTests scans directories whose path contains "test". Off by
	// default: test inputs are full of deliberately odd strings.
	KeepTests bool
}

// IsSource reports whether a file name is scanned: .cpp and .h files, and
// extension-less libc++ headers such as "__config".
func IsSource(name string) bool {
	if sourceExtensions[filepath.Ext(name)] {
		return true
	}
	return strings.HasPrefix(name, "__") && !strings.Contains(name, ".")
}

// FindSources recursively finds the source files under root. The returned
// paths are sorted. Unreadable entries are skipped.
func FindSources(root string, opts WalkOptions) ([]string, error) {
	skip := make(map[string]bool, len(skipDirs)+len(opts.SkipDirs))
	for d := range skipDirs {
		skip[d] = true
	}
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if skip[d.Name()] {
				return filepath.SkipDir
			}
			if !opts.KeepTests {
				rel, _ := filepath.Rel(root, path)
				if strings.Contains(filepath.ToSlash(rel), "test") {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if d.Type().IsRegular() && IsSource(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
