// Package storage defines the document blob store abstraction.
package storage

import (
	"context"
	"path"
	"regexp"
	"strings"
)

// Provider stores uploaded document bytes under opaque keys.
type Provider interface {
	// Read returns the bytes stored at key. A missing key is apperr.ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write stores content at key, replacing any previous value.
	Write(ctx context.Context, key string, content []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DocumentKey builds the storage key of an uploaded document.
func DocumentKey(userID, documentID, filename string) string {
	name := unsafeChars.ReplaceAllString(path.Base(filename), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return path.Join("documents", userID, documentID, name)
}
