package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/minios-linux/llvm-i18n/checkpoint"
	"github.com/minios-linux/llvm-i18n/config"
	"github.com/minios-linux/llvm-i18n/corpus"
	"github.com/minios-linux/llvm-i18n/settings"
)

const (
	srcConv  = "cannot convert '%0' to '%1'"
	srcPlain = "unknown argument"
	trConv   = "无法将 '%0' 转换为 '%1'"
)

// project writes a corpus and a checkpoint with one translation into a
// fresh directory.
func project(t *testing.T) (dir string, c *corpus.Corpus) {
	t.Helper()
	dir = t.TempDir()
	c, err := corpus.New([]string{srcConv, srcPlain})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteFile(filepath.Join(dir, config.DefaultCorpus)); err != nil {
		t.Fatal(err)
	}
	cp := loadCheckpoint(t, dir, "zh_CN.yml", c)
	cp.Accept(c.Hash(0), trConv)
	if err := cp.Save(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.DefaultPrompt), []byte("Translate into {{language}}."), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, c
}

func loadCheckpoint(t *testing.T, dir, name string, c *corpus.Corpus) *checkpoint.Checkpoint {
	t.Helper()
	cp, _, err := checkpoint.Load(filepath.Join(dir, name), c, nil)
	if err != nil {
		t.Fatal(err)
	}
	return cp
}

// run executes the command line and returns what it printed to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logOut = io.Discard
	t.Cleanup(func() { logOut = os.Stderr })

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestResolveService_Precedence(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Endpoint = "https://file.example/v1/"
	cfg.Model = "file-model"
	stored := func(endpoint string) *settings.Credential {
		if endpoint == "https://env.example/v1/" {
			return &settings.Credential{Token: "stored-token", Model: "stored-model"}
		}
		return nil
	}

	tests := []struct {
		name  string
		flags config.Service
		env   config.Service
		want  config.Service
	}{
		{
			name: "file only",
			want: config.Service{Endpoint: "https://file.example/v1/", Model: "file-model"},
		},
		{
			name: "env over file, store fills token",
			env:  config.Service{Endpoint: "https://env.example/v1/"},
			want: config.Service{Endpoint: "https://env.example/v1/", Model: "file-model", Token: "stored-token"},
		},
		{
			name:  "flags over env",
			flags: config.Service{Model: "flag-model", Token: "flag-token"},
			env:   config.Service{Endpoint: "https://env.example/v1/", Model: "env-model", Token: "env-token"},
			want:  config.Service{Endpoint: "https://env.example/v1/", Model: "flag-model", Token: "flag-token"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveService(tt.flags, tt.env, cfg, stored)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := writeOutput(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "new")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content = %q", data)
	}

	err = writeOutput(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return io.ErrUnexpectedEOF
	})
	if err == nil {
		t.Fatal("expected error")
	}
	data, _ = os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("failed write replaced the file: %q", data)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("两行\n文本", 10); got != `两行\n文本` {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
}

func TestPercent(t *testing.T) {
	if got := percent(1, 4); got != 25 {
		t.Errorf("percent(1, 4) = %v", got)
	}
	if got := percent(3, 0); got != 0 {
		t.Errorf("percent(3, 0) = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func TestRootCommandTree(t *testing.T) {
	var names []string
	for _, c := range newRootCmd().Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"auth", "batch", "collect", "export-po", "install", "release", "seed-po", "status", "translate", "version"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("command %q missing from %v", want, names)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "llvm-i18n version dev\n") {
		t.Errorf("output = %q", out)
	}
}

func TestCollectCmd_NoPreprocess(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "llvm", "lib")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	code := "void f() {\n  report_fatal_error(\"Unsupported relocation type\");\n  report_fatal_error(\"42\");\n}\n"
	if err := os.WriteFile(filepath.Join(src, "a.cpp"), []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "corpus.txt")
	if _, err := run(t, "collect", "--root", dir, "--src", dir, "--no-preprocess",
		"--marker", "report_fatal_error(", "-o", out); err != nil {
		t.Fatal(err)
	}
	c, err := corpus.LoadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !containsEntry(c, "Unsupported relocation type") {
		t.Errorf("corpus = %q", c.Entries())
	}
	if containsEntry(c, "42") {
		t.Error("noise string kept")
	}
}

func containsEntry(c *corpus.Corpus, s string) bool {
	for _, e := range c.Entries() {
		if e == s {
			return true
		}
	}
	return false
}

func TestCollectCmd_RequiresBuildForTables(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, "collect", "--root", dir, "--src", dir); err == nil {
		t.Fatal("expected error without a build directory")
	}
}

func TestInstallCmd(t *testing.T) {
	dir, c := project(t)
	target := filepath.Join(t.TempDir(), "share")
	if _, err := run(t, "install", "--root", dir, "--dir", target, "--lang", "zh_CN.UTF-8"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(target, "zh_CN.yml"))
	if err != nil {
		t.Fatal(err)
	}
	want := c.Hash(0) + `: "` + trConv + `"` + "\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestReleaseCmd(t *testing.T) {
	dir, c := project(t)
	cp := loadCheckpoint(t, dir, "zh_CN.yml", c)
	cp.MaxAttempts = 1
	cp.RecordFailure(c.Hash(1))
	if err := cp.Save(); err != nil {
		t.Fatal(err)
	}
	if got := loadCheckpoint(t, dir, "zh_CN.yml", c).Quarantined(); len(got) != 1 {
		t.Fatalf("setup: quarantined = %v", got)
	}

	if _, err := run(t, "release", "--root", dir, "not-a-hash"); err == nil {
		t.Error("invalid hash accepted")
	}
	if _, err := run(t, "release", "--root", dir); err != nil {
		t.Fatal(err)
	}
	if got := loadCheckpoint(t, dir, "zh_CN.yml", c).Quarantined(); len(got) != 0 {
		t.Errorf("still quarantined: %v", got)
	}
}

func TestExportAndSeedPO(t *testing.T) {
	dir, c := project(t)
	po := filepath.Join(dir, "zh_CN.po")
	if _, err := run(t, "export-po", "--root", dir, "-o", po); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(po)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `msgctxt "`+c.Hash(0)+`"`) {
		t.Errorf("catalog lacks hash context:\n%s", data)
	}

	if _, err := run(t, "seed-po", "--root", dir, "--checkpoint", filepath.Join(dir, "fresh.yml"), po); err != nil {
		t.Fatal(err)
	}
	fresh := loadCheckpoint(t, dir, "fresh.yml", c)
	if got, ok := fresh.Get(c.Hash(0)); !ok || got != trConv {
		t.Errorf("seeded translation = %q, %v", got, ok)
	}
	if fresh.Len() != 1 {
		t.Errorf("seeded %d entries, want 1", fresh.Len())
	}
}

func TestBatchExportImport(t *testing.T) {
	dir, c := project(t)
	requests := filepath.Join(dir, "requests.jsonl")
	if _, err := run(t, "batch", "export", "--root", dir, "--model", "m", "--pending", "-o", requests); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(requests)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], c.Hash(1)) {
		t.Fatalf("requests = %q", lines)
	}
	if strings.Contains(lines[0], "{{language}}") {
		t.Errorf("prompt not expanded: %s", lines[0])
	}

	resp, _ := json.Marshal(map[string]any{
		"custom_id": c.Hash(1),
		"response": map[string]any{"body": map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "```python\nmessage = '未知参数'\n```"}}},
		}},
	})
	responses := filepath.Join(dir, "responses.jsonl")
	if err := os.WriteFile(responses, append(resp, '\n'), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "batch", "import", "--root", dir, responses); err != nil {
		t.Fatal(err)
	}
	cp := loadCheckpoint(t, dir, "zh_CN.yml", c)
	if cp.Len() != 2 {
		t.Errorf("checkpoint has %d entries, want 2", cp.Len())
	}
	if got, _ := cp.Get(c.Hash(1)); got != "未知参数" {
		t.Errorf("imported translation = %q", got)
	}
}

func TestStatusCmd_Coverage(t *testing.T) {
	dir, c := project(t)
	report := `[{"filename": "t.c", "run_lines": [{"command": "clang -fsyntax-only", "complexity": 1, "activated": ["` +
		c.Hash(0) + `", "` + c.Hash(1) + `", "H000000000000"]}]}]`
	cov := filepath.Join(dir, "coverage.json")
	if err := os.WriteFile(cov, []byte(report), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "status", "--root", dir, "--coverage", cov)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Entries:      2", "Translated:   1 (50.0%)", "Reached:      3", "In corpus:    2", c.Hash(1) + "  " + srcPlain} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestTranslateCmd_DryRunNeedsNoService(t *testing.T) {
	dir, _ := project(t)
	t.Setenv(config.EnvEndpoint, "")
	t.Setenv(config.EnvToken, "")
	if _, err := run(t, "translate", "--root", dir, "--dry-run"); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
}

func TestTranslateCmd_MissingService(t *testing.T) {
	dir, _ := project(t)
	t.Setenv(config.EnvEndpoint, "")
	t.Setenv(config.EnvModel, "")
	t.Setenv(config.EnvToken, "")
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	_, err := run(t, "translate", "--root", dir)
	if err == nil || !strings.Contains(err.Error(), config.EnvEndpoint) {
		t.Fatalf("err = %v, want missing %s", err, config.EnvEndpoint)
	}
}

func TestTranslateCmd_RewritesPrunedCheckpoint(t *testing.T) {
	dir, c := project(t)
	cp := loadCheckpoint(t, dir, "zh_CN.yml", c)
	cp.Accept(c.Hash(1), "未知参数")
	if err := cp.Save(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "zh_CN.yml")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("H000000000000: \"stale\"\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := run(t, "translate", "--root", dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "H000000000000") {
		t.Errorf("unknown record kept:\n%s", data)
	}
	if got := loadCheckpoint(t, dir, "zh_CN.yml", c).Len(); got != 2 {
		t.Errorf("%d translations after rewrite, want 2", got)
	}
}

func TestTranslateCmd_DryRunZeroBatchSize(t *testing.T) {
	dir, _ := project(t)
	if _, err := run(t, "translate", "--root", dir, "--dry-run", "--batch-size", "0"); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
}

func TestTranslateCmd_MissingCorpus(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.DefaultPrompt), []byte("Translate."), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "translate", "--root", dir, "--dry-run")
	if err == nil || !strings.Contains(err.Error(), "llvm-i18n collect") {
		t.Fatalf("err = %v, want hint to collect first", err)
	}
}
