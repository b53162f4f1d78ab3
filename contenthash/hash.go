// Package contenthash derives the short content keys that join the corpus,
// the checkpoint and batch files.
//
// A key is the tag character followed by the first 12 hex digits (uppercase)
// of the SHA-1 digest of the UTF-8 text. That is 48 bits: collisions are
// unlikely for corpora of a few tens of thousands of strings but not
// impossible, so Index reports them instead of silently merging entries.
package contenthash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Tag prefixes every key so keys can be found in free-form text.
	Tag = "H"
	// Digits is the number of hex digits kept from the digest.
	Digits = 12
	// Width is the full key length.
	Width = len(Tag) + Digits
)

// Hash returns the content key of text.
func Hash(text string) string {
	sum := sha1.Sum([]byte(text))
	return Tag + strings.ToUpper(hex.EncodeToString(sum[:])[:Digits])
}

// Valid reports whether s has the shape of a content key.
func Valid(s string) bool {
	if len(s) != Width || !strings.HasPrefix(s, Tag) {
		return false
	}
	for _, c := range s[len(Tag):] {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// CollisionError reports two distinct texts with the same key.
type CollisionError struct {
	Key    string
	First  string
	Second string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("content hash collision on %s: %q and %q", e.Key, e.First, e.Second)
}

// Index maps each text to its key. Duplicated texts are fine; two different
// texts with the same key produce a *CollisionError.
func Index(texts []string) (map[string]string, error) {
	idx := make(map[string]string, len(texts))
	for _, t := range texts {
		key := Hash(t)
		if prev, ok := idx[key]; ok && prev != t {
			return nil, &CollisionError{Key: key, First: prev, Second: t}
		}
		idx[key] = t
	}
	return idx, nil
}
