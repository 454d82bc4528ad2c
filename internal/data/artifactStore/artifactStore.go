package artifactStore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrInvalidName      = errors.New("invalid artifact name")
)

// Store persists whole artifacts by name. Write is all-or-nothing: readers
// see either the previous content or the new content, never a partial file.
type Store interface {
	Write(ctx context.Context, name string, data []byte) (location string, err error)
	Read(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) (bool, error)
	// List returns the names of all stored artifacts, in no particular order.
	List(ctx context.Context) ([]string, error)
	Location(name string) string
}

// checkName accepts a single path element only.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || path.Clean(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
