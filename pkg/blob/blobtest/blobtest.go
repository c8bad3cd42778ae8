// Package blobtest holds a behavioral test suite for blob.Store backends.
package blobtest

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/rhuss/missive/pkg/blob"
)

// Run executes the suite against s.
func Run(t *testing.T, s blob.Store) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, s) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, s) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, s) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, s) })
	t.Run("InvalidKey", func(t *testing.T) { testInvalidKey(t, s) })
}

func readAll(t *testing.T, s blob.Store, id string) []byte {
	t.Helper()
	rc, err := s.Get(context.Background(), blob.NamespaceMessage, id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	return data
}

func testRoundTrip(t *testing.T, s blob.Store) {
	id := uuid.NewString()
	payload := make([]byte, 256*1024)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}

	n, err := s.Put(context.Background(), blob.NamespaceMessage, id, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("Put wrote %d bytes, want %d", n, len(payload))
	}

	if got := readAll(t, s, id); !bytes.Equal(got, payload) {
		t.Errorf("round trip returned %d bytes that differ from the %d written", len(got), len(payload))
	}
}

func testOverwrite(t *testing.T, s blob.Store) {
	ctx := context.Background()
	id := uuid.NewString()

	if _, err := s.Put(ctx, blob.NamespaceMessage, id, bytes.NewReader([]byte("first version, longer"))); err != nil {
		t.Fatalf("Put first: %v", err)
	}
	if _, err := s.Put(ctx, blob.NamespaceMessage, id, bytes.NewReader([]byte("second"))); err != nil {
		t.Fatalf("Put second: %v", err)
	}

	if got := readAll(t, s, id); string(got) != "second" {
		t.Errorf("after overwrite = %q, want %q", got, "second")
	}
}

func testNotFound(t *testing.T, s blob.Store) {
	_, err := s.Get(context.Background(), blob.NamespaceMessage, uuid.NewString())
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func testDelete(t *testing.T, s blob.Store) {
	ctx := context.Background()
	id := uuid.NewString()

	if _, err := s.Put(ctx, blob.NamespaceMessage, id, bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, blob.NamespaceMessage, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, blob.NamespaceMessage, id); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, blob.NamespaceMessage, id); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func testInvalidKey(t *testing.T, s blob.Store) {
	ctx := context.Background()

	if _, err := s.Put(ctx, blob.NamespaceMessage, "../escape", bytes.NewReader([]byte("x"))); !errors.Is(err, blob.ErrInvalidKey) {
		t.Errorf("Put traversal: err = %v, want ErrInvalidKey", err)
	}
	if _, err := s.Get(ctx, blob.NamespaceMessage, "a/b"); !errors.Is(err, blob.ErrInvalidKey) {
		t.Errorf("Get with separator: err = %v, want ErrInvalidKey", err)
	}
	if err := s.Delete(ctx, "", "id"); !errors.Is(err, blob.ErrInvalidKey) {
		t.Errorf("Delete empty namespace: err = %v, want ErrInvalidKey", err)
	}
}
