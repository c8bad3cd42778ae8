// Package filesystem stores blobs as files under <root>/<namespace>/<id>.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rhuss/missive/pkg/blob"
	"github.com/rhuss/missive/pkg/debug"
)

// Store is a filesystem-backed blob.Store. Writes go to a temporary file in
// the target directory which is then renamed over the destination, so a
// reader sees either the previous blob or the complete new one.
type Store struct {
	root string
}

var _ blob.Store = (*Store)(nil)

// New creates the root directory if needed and returns a Store.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("filesystem blob root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(namespace, id string) string {
	return filepath.Join(s.root, namespace, id)
}

// Put writes the blob atomically.
func (s *Store) Put(ctx context.Context, namespace, id string, r io.Reader) (int64, error) {
	if err := blob.ValidateKey(namespace, id); err != nil {
		return 0, err
	}

	dir := filepath.Join(s.root, namespace)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("creating namespace dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+id+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("syncing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing blob: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, s.path(namespace, id)); err != nil {
		return 0, fmt.Errorf("committing blob: %w", err)
	}
	committed = true

	debug.Log("blob", "stored", "namespace", namespace, "id", id, "bytes", n)
	return n, nil
}

// Get opens the blob file.
func (s *Store) Get(_ context.Context, namespace, id string) (io.ReadCloser, error) {
	if err := blob.ValidateKey(namespace, id); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(namespace, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, blob.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob file.
func (s *Store) Delete(_ context.Context, namespace, id string) error {
	if err := blob.ValidateKey(namespace, id); err != nil {
		return err
	}

	err := os.Remove(s.path(namespace, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}
