// Package config loads the .llvm-i18n.yaml project file and the LLM_* environment.
//
// The project file is optional. Every relative path in it is resolved
// against the directory holding the file; command-line flags override file
// values, and the LLM_* environment variables override the service
// settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/llvm-i18n/extract"
)

// FileName is the default config file name.
const FileName = ".llvm-i18n.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .llvm-i18n.yaml structure.
type File struct {
	// SourceRoot is the LLVM monorepo checkout.
	SourceRoot string `yaml:"source_root,omitempty"`
	// BuildRoot is the build directory holding the generated tables.
	BuildRoot string `yaml:"build_root,omitempty"`
	// IncludeDirs are preprocessor include paths relative to BuildRoot
	// (default "tools/clang/include").
	IncludeDirs []string `yaml:"include_dirs,omitempty"`
	// CC is the C compiler driver used to expand the tables (default "cc").
	CC string `yaml:"cc,omitempty"`

	// Language is the target locale, e.g. "zh_CN".
	Language string `yaml:"language,omitempty"`
	// Corpus is the corpus file (default "corpus.txt").
	Corpus string `yaml:"corpus,omitempty"`
	// Checkpoint is the translation table (default "<language>.yml").
	Checkpoint string `yaml:"checkpoint,omitempty"`
	// Prompt is the instruction template file (default "prompt.txt").
	Prompt string `yaml:"prompt,omitempty"`
	// Errata is the errata file; empty means no errata.
	Errata string `yaml:"errata,omitempty"`

	// --- extraction ---

	// Markers replace the built-in marker table when set.
	Markers []string `yaml:"markers,omitempty"`
	// DenyList is added to the built-in deny list.
	DenyList []string `yaml:"deny_list,omitempty"`
	// MaxSpan caps the bytes captured per call site (0 = whole call).
	MaxSpan int `yaml:"max_span,omitempty"`
	// Workers bounds concurrent file scans (0 = GOMAXPROCS).
	Workers int `yaml:"workers,omitempty"`
	// KeepTests includes unittests/ and test/ directories.
	KeepTests bool `yaml:"keep_tests,omitempty"`

	// --- translation ---

	// Endpoint and Model are defaults for LLM_ENDPOINT and LLM_MODEL.
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`
	// BatchSize is the number of entries per request (default 20).
	BatchSize int `yaml:"batch_size,omitempty"`
	// MaxAttempts quarantines an entry after this many rejected
	// candidates (0 = retry forever).
	MaxAttempts int `yaml:"max_attempts,omitempty"`
	// Timeout bounds one request (default 300s).
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// RetryDelay pauses after a failed batch (default 5s).
	RetryDelay time.Duration `yaml:"retry_delay,omitempty"`
	// FormatCJK inserts spaces between Han text and placeholders before
	// validation.
	FormatCJK bool `yaml:"format_cjk,omitempty"`

	// Dir is the directory the file was loaded from.
	Dir string `yaml:"-"`
}

// Defaults for unset fields.
const (
	DefaultLanguage   = "zh_CN"
	DefaultCorpus     = "corpus.txt"
	DefaultPrompt     = "prompt.txt"
	DefaultCC         = "cc"
	DefaultIncludeDir = "tools/clang/include"
	DefaultBatchSize  = 20
	DefaultTimeout    = 300 * time.Second
	DefaultRetryDelay = 5 * time.Second
)

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file exists in dir.
func Default(dir string) *File {
	f := &File{Dir: dir}
	f.applyDefaults()
	return f
}

// Load reads FileName from dir. A missing file yields Default(dir).
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(dir), nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates a config file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.Dir = filepath.Dir(path)
	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Language == "" {
		f.Language = DefaultLanguage
	}
	if f.Corpus == "" {
		f.Corpus = DefaultCorpus
	}
	if f.Checkpoint == "" {
		f.Checkpoint = f.Language + ".yml"
	}
	if f.Prompt == "" {
		f.Prompt = DefaultPrompt
	}
	if f.CC == "" {
		f.CC = DefaultCC
	}
	if len(f.IncludeDirs) == 0 {
		f.IncludeDirs = []string{DefaultIncludeDir}
	}
	if f.BatchSize == 0 {
		f.BatchSize = DefaultBatchSize
	}
	if f.Timeout == 0 {
		f.Timeout = DefaultTimeout
	}
	if f.RetryDelay == 0 {
		f.RetryDelay = DefaultRetryDelay
	}
}

// Validate rejects values no command could use.
func (f *File) Validate() error {
	if !IsLangCode(f.Language) {
		return fmt.Errorf("language %q is not a locale code like zh_CN", f.Language)
	}
	if f.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", f.BatchSize)
	}
	if f.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative, got %d", f.MaxAttempts)
	}
	if f.Timeout < 0 || f.RetryDelay < 0 {
		return fmt.Errorf("timeout and retry_delay must not be negative")
	}
	if f.MaxSpan < 0 || f.Workers < 0 {
		return fmt.Errorf("max_span and workers must not be negative")
	}
	for i, spec := range f.Markers {
		if _, err := extract.ParseMarker(spec); err != nil {
			return fmt.Errorf("markers[%d]: %w", i, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolving
// ---------------------------------------------------------------------------

// Path resolves p against the config directory. Empty stays empty.
func (f *File) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.Dir, p)
}

// MarkerTable returns the configured markers, or the built-in table.
func (f *File) MarkerTable() ([]extract.Marker, error) {
	if len(f.Markers) == 0 {
		return extract.DefaultMarkers(), nil
	}
	out := make([]extract.Marker, 0, len(f.Markers))
	for _, spec := range f.Markers {
		m, err := extract.ParseMarker(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// IncludePaths returns IncludeDirs resolved against the build root.
func (f *File) IncludePaths() []string {
	build := f.Path(f.BuildRoot)
	out := make([]string, len(f.IncludeDirs))
	for i, d := range f.IncludeDirs {
		if filepath.IsAbs(d) {
			out[i] = d
		} else {
			out[i] = filepath.Join(build, d)
		}
	}
	return out
}

// IsLangCode checks if a string looks like a language code (en, ru, pt_BR, zh_CN, etc).
func IsLangCode(s string) bool {
	if len(s) == 2 {
		return s[0] >= 'a' && s[0] <= 'z' && s[1] >= 'a' && s[1] <= 'z'
	}
	if len(s) == 5 && s[2] == '_' {
		return s[0] >= 'a' && s[0] <= 'z' && s[1] >= 'a' && s[1] <= 'z' &&
			s[3] >= 'A' && s[3] <= 'Z' && s[4] >= 'A' && s[4] <= 'Z'
	}
	return false
}
