// Package blob defines byte-stream persistence keyed by (namespace, id).
// Message attachments are stored under the "message" namespace with the
// message id as key; at most one blob exists per key and a later Put
// replaces the earlier one.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NamespaceMessage holds message attachments.
const NamespaceMessage = "message"

var (
	// ErrNotFound is returned by Get when no blob exists for the key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for namespaces or ids that could escape
	// their namespace.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store persists blobs.
type Store interface {
	// Put stores the contents of r and returns the number of bytes written.
	Put(ctx context.Context, namespace, id string, r io.Reader) (int64, error)

	// Get opens the blob. The caller closes the reader.
	Get(ctx context.Context, namespace, id string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, namespace, id string) error
}

// ValidateKey rejects empty segments and anything containing a path
// separator or a parent reference.
func ValidateKey(namespace, id string) error {
	for _, part := range []string{namespace, id} {
		if part == "" || part == "." || strings.Contains(part, "..") ||
			strings.ContainsAny(part, "/\\\x00") {
			return fmt.Errorf("%w: %q/%q", ErrInvalidKey, namespace, id)
		}
	}
	return nil
}

// ObjectName joins a validated key into a flat object name.
func ObjectName(namespace, id string) string {
	return namespace + "/" + id
}
