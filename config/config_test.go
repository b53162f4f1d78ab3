package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/minios-linux/llvm-i18n/extract"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Language != "zh_CN" || f.Checkpoint != "zh_CN.yml" || f.Corpus != "corpus.txt" {
		t.Fatalf("unexpected defaults: %+v", f)
	}
	if f.BatchSize != 20 || f.Timeout != 300*time.Second || f.MaxAttempts != 0 {
		t.Fatalf("unexpected translation defaults: %+v", f)
	}
	if got := f.Path(f.Corpus); got != filepath.Join(dir, "corpus.txt") {
		t.Fatalf("Path(corpus) = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
source_root: /src/llvm-project
build_root: build
language: ja_JP
errata: errata.txt
batch_size: 8
max_attempts: 5
timeout: 90s
retry_delay: 2m
format_cjk: true
markers:
  - "Diag(@path=clang/lib/Sema"
  - "report_fatal_error(@suffix,trunc,max=200,path=llvm/lib"
deny_list: [foo]
`)
	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Checkpoint != "ja_JP.yml" {
		t.Errorf("checkpoint default = %q, want ja_JP.yml", f.Checkpoint)
	}
	if f.BatchSize != 8 || f.MaxAttempts != 5 || f.Timeout != 90*time.Second || f.RetryDelay != 2*time.Minute {
		t.Errorf("translation settings = %+v", f)
	}
	if !f.FormatCJK {
		t.Error("format_cjk not read")
	}
	if got := f.Path(f.SourceRoot); got != "/src/llvm-project" {
		t.Errorf("absolute path rewritten: %q", got)
	}
	if got := f.Path(f.Errata); got != filepath.Join(dir, "errata.txt") {
		t.Errorf("Path(errata) = %q", got)
	}
	wantIncludes := []string{filepath.Join(dir, "build", "tools/clang/include")}
	if diff := cmp.Diff(wantIncludes, f.IncludePaths()); diff != "" {
		t.Errorf("include paths mismatch (-want +got):\n%s", diff)
	}

	markers, err := f.MarkerTable()
	if err != nil {
		t.Fatalf("MarkerTable: %v", err)
	}
	want := []extract.Marker{
		{Path: "clang/lib/Sema", Token: "Diag("},
		{Path: "llvm/lib", Token: "report_fatal_error(", Suffix: true, TruncForSuffix: true, MaxLen: 200},
	}
	if diff := cmp.Diff(want, markers); diff != "" {
		t.Errorf("markers mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkerTableDefault(t *testing.T) {
	f := Default(t.TempDir())
	markers, err := f.MarkerTable()
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != len(extract.DefaultMarkers()) {
		t.Errorf("got %d markers, want the built-in table", len(markers))
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad language", "language: chinese\n", "language"},
		{"negative batch", "batch_size: -1\n", "batch_size"},
		{"negative attempts", "max_attempts: -2\n", "max_attempts"},
		{"bad marker", "markers: [\"@suffix\"]\n", "markers[0]"},
		{"bad duration", "timeout: soon\n", "parsing"},
		{"bad yaml", "batch_size: [\n", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeConfig(t, dir, tt.content)
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) || !strings.Contains(err.Error(), path) {
				t.Errorf("error %q should mention %q and the file path", err, tt.want)
			}
		})
	}
}

func TestIsLangCode(t *testing.T) {
	for _, s := range []string{"zh", "zh_CN", "pt_BR"} {
		if !IsLangCode(s) {
			t.Errorf("IsLangCode(%q) = false", s)
		}
	}
	for _, s := range []string{"", "zh-CN", "ZH", "zh_cn", "chinese"} {
		if IsLangCode(s) {
			t.Errorf("IsLangCode(%q) = true", s)
		}
	}
}

func TestServiceMergeAndCheck(t *testing.T) {
	t.Setenv(EnvEndpoint, "https://env.example/v1/")
	t.Setenv(EnvModel, "")
	t.Setenv(EnvToken, "env-token")

	flags := Service{Model: "flag-model"}
	file := Service{Endpoint: "https://file.example/v1/", Model: "file-model"}
	got := flags.Merge(Env(), file)
	want := Service{Endpoint: "https://env.example/v1/", Model: "flag-model", Token: "env-token"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
	if err := got.Check(true); err != nil {
		t.Errorf("Check: %v", err)
	}

	if err := (Service{Endpoint: "e", Model: "m"}).Check(true); err == nil || !strings.Contains(err.Error(), EnvToken) {
		t.Errorf("missing token: %v", err)
	}
	if err := (Service{Endpoint: "e", Model: "m"}).Check(false); err != nil {
		t.Errorf("token required for anonymous use: %v", err)
	}
	if err := (Service{Model: "m"}).Check(false); err == nil || !strings.Contains(err.Error(), EnvEndpoint) {
		t.Errorf("missing endpoint: %v", err)
	}
}
