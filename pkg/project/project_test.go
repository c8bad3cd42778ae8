package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/blob"
	"github.com/rhuss/missive/pkg/blob/filesystem"
	"github.com/rhuss/missive/pkg/credential"
	"github.com/rhuss/missive/pkg/message"
	"github.com/rhuss/missive/pkg/storage"
	"github.com/rhuss/missive/pkg/storage/memory"
)

type fixture struct {
	projects *Service
	messages *message.Service
	blobs    *filesystem.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	blobs, err := filesystem.New(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem.New: %v", err)
	}
	messages := message.New(store, blobs, credential.NewBcrypt(bcrypt.MinCost))
	return &fixture{
		projects: New(store, messages),
		messages: messages,
		blobs:    blobs,
	}
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.NewString()

	p, err := f.projects.Create(ctx, owner, "  Birthday  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != "Birthday" {
		t.Errorf("Name = %q, want trimmed %q", p.Name, "Birthday")
	}
	if p.OwnerID != owner {
		t.Errorf("OwnerID = %q, want %q", p.OwnerID, owner)
	}

	got, err := f.projects.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %q, want %q", got.ID, p.ID)
	}
}

func TestGetAnyCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.projects.Create(ctx, uuid.NewString(), "shouting")

	got, err := f.projects.Get(ctx, strings.ToUpper(p.ID))
	if err != nil {
		t.Fatalf("Get(upper): %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %q, want %q", got.ID, p.ID)
	}
}

func TestCreate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.projects.Create(ctx, uuid.NewString(), "taken"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name    string
		project string
		want    api.ErrorType
	}{
		{"duplicate", "taken", api.ErrorTypeConflict},
		{"empty", "", api.ErrorTypeInvalidRequest},
		{"blank", "   ", api.ErrorTypeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.projects.Create(ctx, uuid.NewString(), tt.project)
			if !api.IsType(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestListByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.NewString(), uuid.NewString()

	for _, name := range []string{"a1", "a2"} {
		if _, err := f.projects.Create(ctx, alice, name); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := f.projects.Create(ctx, bob, "b1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := f.projects.ListByOwner(ctx, alice)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len = %d, want 2", len(list))
	}
	for _, p := range list {
		if p.OwnerID != alice {
			t.Errorf("project %s belongs to %s", p.ID, p.OwnerID)
		}
	}
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.NewString()
	p, _ := f.projects.Create(ctx, owner, "old")
	if _, err := f.projects.Create(ctx, owner, "other"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	renamed, err := f.projects.Rename(ctx, p.ID, "new")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.Name != "new" {
		t.Errorf("Name = %q, want %q", renamed.Name, "new")
	}

	if _, err := f.projects.Rename(ctx, p.ID, "other"); !api.IsType(err, api.ErrorTypeConflict) {
		t.Errorf("rename to taken name: err = %v, want conflict", err)
	}
	if _, err := f.projects.Rename(ctx, uuid.NewString(), "x"); !api.IsType(err, api.ErrorTypeNotFound) {
		t.Errorf("rename missing: err = %v, want not_found", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.projects.Create(ctx, uuid.NewString(), "doomed")

	m, err := f.messages.Create(ctx, p.ID, &api.CreateMessageRequest{Content: json.RawMessage(`{"t":1}`)})
	if err != nil {
		t.Fatalf("Create message: %v", err)
	}
	if _, err := f.messages.UploadAttachment(ctx, m.ID, nil, bytes.NewReader([]byte("img"))); err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}

	if err := f.projects.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := f.projects.Get(ctx, p.ID); !api.IsType(err, api.ErrorTypeNotFound) {
		t.Errorf("project still present: %v", err)
	}
	if _, err := f.messages.Summary(ctx, m.ID); !api.IsType(err, api.ErrorTypeNotFound) {
		t.Errorf("message still present: %v", err)
	}
	if _, err := f.blobs.Get(ctx, blob.NamespaceMessage, m.ID); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("attachment still present: %v", err)
	}

	if err := f.projects.Delete(ctx, p.ID); !api.IsType(err, api.ErrorTypeNotFound) {
		t.Errorf("second Delete: err = %v, want not_found", err)
	}
}

func TestIsOwnedBy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.NewString(), uuid.NewString()
	p, _ := f.projects.Create(ctx, alice, "mine")

	tests := []struct {
		name      string
		projectID string
		ownerID   string
		want      bool
	}{
		{"owner", p.ID, alice, true},
		{"owner upper case id", strings.ToUpper(p.ID), alice, true},
		{"other identity", p.ID, bob, false},
		{"missing project", uuid.NewString(), alice, false},
		{"malformed id", "not-a-uuid", alice, false},
		{"id without dashes", strings.ReplaceAll(p.ID, "-", ""), alice, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.projects.IsOwnedBy(ctx, tt.projectID, tt.ownerID)
			if err != nil {
				t.Fatalf("IsOwnedBy: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsOwnedBy = %v, want %v", got, tt.want)
			}
		})
	}
}

// racingStore fails the next conflicts project deletes with ErrConflict, as
// postgres does when a message lands between the purge and the delete.
type racingStore struct {
	*memory.Store
	conflicts int
	deletes   int
}

func (s *racingStore) DeleteProject(ctx context.Context, id string) error {
	s.deletes++
	if s.conflicts > 0 {
		s.conflicts--
		return storage.ErrConflict
	}
	return s.Store.DeleteProject(ctx, id)
}

func TestDeleteRetriesAfterConcurrentMessage(t *testing.T) {
	tests := []struct {
		name        string
		conflicts   int
		wantErr     bool
		wantDeletes int
	}{
		{"no race", 0, false, 1},
		{"one race", 1, false, 2},
		{"persistent race", 5, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := &racingStore{Store: memory.New(), conflicts: tt.conflicts}
			blobs, err := filesystem.New(t.TempDir())
			if err != nil {
				t.Fatalf("filesystem.New: %v", err)
			}
			projects := New(store, message.New(store.Store, blobs, credential.NewBcrypt(bcrypt.MinCost)))
			p, _ := projects.Create(ctx, uuid.NewString(), "busy")

			err = projects.Delete(ctx, strings.ToUpper(p.ID))
			if store.deletes != tt.wantDeletes {
				t.Errorf("DeleteProject calls = %d, want %d", store.deletes, tt.wantDeletes)
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Delete: %v", err)
				}
				return
			}

			var apiErr *api.APIError
			if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeConflict {
				t.Fatalf("err = %v, want conflict", err)
			}
			if apiErr.Message != MsgDeleteConflict {
				t.Errorf("Message = %q, want %q", apiErr.Message, MsgDeleteConflict)
			}
		})
	}
}
