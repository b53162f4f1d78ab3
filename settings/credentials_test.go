package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDataDirAndFilePathUseXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error: %v", err)
	}
	wantDir := filepath.Join(tmp, "llvm-i18n")
	if dir != wantDir {
		t.Fatalf("DataDir() = %q, want %q", dir, wantDir)
	}
	wantPath := filepath.Join(tmp, "llvm-i18n", "auth.yaml")
	if got := FilePath(); got != wantPath {
		t.Fatalf("FilePath() = %q, want %q", got, wantPath)
	}
}

func TestSetGetRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := Set("https://api.example.com/v1/", &Credential{Token: "sk-1234567890", Model: "m1"}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := Set("http://localhost:8000/v1", &Credential{Token: "local"}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	info, err := os.Stat(FilePath())
	if err != nil {
		t.Fatalf("stat auth.yaml: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.yaml mode = %o, want 600", info.Mode().Perm())
	}

	got := Get("https://api.example.com/v1")
	if got == nil || got.Token != "sk-1234567890" || got.Model != "m1" {
		t.Fatalf("Get() = %#v", got)
	}

	store, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"http://localhost:8000/v1", "https://api.example.com/v1"}
	if diff := cmp.Diff(want, store.Endpoints()); diff != "" {
		t.Errorf("endpoints mismatch (-want +got):\n%s", diff)
	}

	if err := Remove("https://api.example.com/v1"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if Get("https://api.example.com/v1") != nil {
		t.Fatal("credential still present after Remove")
	}
	if err := Remove("http://localhost:8000/v1/"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(FilePath()); !os.IsNotExist(err) {
		t.Fatalf("auth file kept after last removal: %v", err)
	}
}

func TestLoadMissingIsEmpty(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	store, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(store) != 0 {
		t.Fatalf("Load() = %v, want empty", store)
	}
}

func TestLoadInvalid(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)
	if err := os.MkdirAll(filepath.Join(tmp, "llvm-i18n"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(FilePath(), []byte("- not\n- a map\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
	if Get("x") != nil {
		t.Fatal("Get on an unreadable store returned a credential")
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"short", "****"},
		{"12345678", "****"},
		{"sk-1234567890", "sk-1...7890"},
	}
	for _, tt := range tests {
		if got := MaskKey(tt.in); got != tt.want {
			t.Errorf("MaskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
