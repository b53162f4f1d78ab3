// Package settings stores per-user service credentials for llvm-i18n.
//
// Credentials live in the XDG data directory:
//
//	$XDG_DATA_HOME/llvm-i18n/auth.yaml  (default: ~/.local/share/llvm-i18n/)
//
// The file maps an endpoint URL to the token (and optionally the default
// model) used with it. File permissions are 0600.
//
// Lookup order for the access token:
//  1. --token flag (highest priority)
//  2. LLM_TOKEN environment variable
//  3. This credential store, keyed by endpoint
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"
)

const (
	dataDirName = "llvm-i18n"
	fileName    = "auth.yaml"
)

// Credential is what is stored for one endpoint.
type Credential struct {
	Token string `yaml:"token"`
	Model string `yaml:"model,omitempty"`
}

// Store holds credentials keyed by normalized endpoint URL.
type Store map[string]*Credential

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// DataDir returns the data directory, honoring $XDG_DATA_HOME.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

// FilePath returns the auth file path for display purposes.
func FilePath() string {
	dir, err := DataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, fileName)
}

// NormalizeEndpoint makes "https://host/v1" and "https://host/v1/" the same key.
func NormalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store. A missing file is an empty store.
func Load() (Store, error) {
	path := FilePath()
	if path == "" {
		return make(Store), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(Store), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var store Store
	if err := yaml.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if store == nil {
		store = make(Store)
	}
	return store, nil
}

// Save writes the credential store with 0600 permissions.
func Save(store Store) error {
	dir, err := DataDir()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(store)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(dir, fileName), data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the credential for endpoint, or nil.
func Get(endpoint string) *Credential {
	store, err := Load()
	if err != nil {
		return nil
	}
	return store[NormalizeEndpoint(endpoint)]
}

// Set stores the credential for endpoint (upsert).
func Set(endpoint string, cred *Credential) error {
	store, err := Load()
	if err != nil {
		return err
	}
	store[NormalizeEndpoint(endpoint)] = cred
	return Save(store)
}

// Remove deletes the credential for endpoint.
func Remove(endpoint string) error {
	store, err := Load()
	if err != nil {
		return err
	}
	key := NormalizeEndpoint(endpoint)
	if _, ok := store[key]; !ok {
		return nil // Nothing to delete
	}
	delete(store, key)
	if len(store) == 0 {
		return RemoveAll()
	}
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path := FilePath()
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// Endpoints returns the stored endpoints, sorted.
func (s Store) Endpoints() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Display helpers
// ---------------------------------------------------------------------------

// MaskKey returns a masked version of a key/token for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
