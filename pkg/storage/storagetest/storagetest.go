// Package storagetest holds a behavioral test suite that every
// storage.Store backend runs against itself.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/storage"
)

// Factory returns a ready store. It may return the same database for every
// call; the suite only uses fresh random ids and names.
type Factory func(t *testing.T) storage.Store

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("ProjectCRUD", func(t *testing.T) { testProjectCRUD(t, newStore(t)) })
	t.Run("ProjectUniqueName", func(t *testing.T) { testProjectUniqueName(t, newStore(t)) })
	t.Run("ProjectListByOwner", func(t *testing.T) { testProjectListByOwner(t, newStore(t)) })
	t.Run("MessageRoundTrip", func(t *testing.T) { testMessageRoundTrip(t, newStore(t)) })
	t.Run("MessageCreateErrors", func(t *testing.T) { testMessageCreateErrors(t, newStore(t)) })
	t.Run("MessageVersioning", func(t *testing.T) { testMessageVersioning(t, newStore(t)) })
	t.Run("MessageListAndDelete", func(t *testing.T) { testMessageListAndDelete(t, newStore(t)) })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func strPtr(s string) *string { return &s }

// NewProject builds a project with a random id and name.
func NewProject(ownerID string, createdAt time.Time) *api.Project {
	id := uuid.NewString()
	return &api.Project{
		ID:        id,
		Name:      "project-" + id,
		OwnerID:   ownerID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// NewMessage builds an unprotected message with a random id.
func NewMessage(projectID string, createdAt time.Time) *api.Message {
	return &api.Message{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Content:   json.RawMessage(`{"text":"hello","n":1}`),
		Hint:      strPtr("the usual"),
		From:      strPtr("alice"),
		To:        strPtr("bob"),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func mustCreateProject(t *testing.T, s storage.Store, p *api.Project) {
	t.Helper()
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
}

func mustCreateMessage(t *testing.T, s storage.Store, m *api.Message) {
	t.Helper()
	if err := s.CreateMessage(context.Background(), m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
}

func sameJSON(t *testing.T, got, want json.RawMessage) bool {
	t.Helper()
	if len(got) == 0 || len(want) == 0 {
		return len(got) == len(want)
	}
	var g, w any
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("decoding %s: %v", got, err)
	}
	if err := json.Unmarshal(want, &w); err != nil {
		t.Fatalf("decoding %s: %v", want, err)
	}
	return reflect.DeepEqual(g, w)
}

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func testProjectCRUD(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := uuid.NewString()
	p := NewProject(owner, now())
	mustCreateProject(t, s, p)

	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Name != p.Name || got.OwnerID != owner {
		t.Errorf("GetProject = %+v, want %+v", got, p)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, p.CreatedAt)
	}

	if err := s.CreateProject(ctx, p); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate id: err = %v, want ErrConflict", err)
	}

	renamed := *got
	renamed.Name = "renamed-" + p.ID
	renamed.UpdatedAt = now().Add(time.Second)
	if err := s.UpdateProject(ctx, &renamed); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	got, _ = s.GetProject(ctx, p.ID)
	if got.Name != renamed.Name {
		t.Errorf("Name after update = %q, want %q", got.Name, renamed.Name)
	}

	missing := NewProject(owner, now())
	if err := s.UpdateProject(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateProject missing: err = %v, want ErrNotFound", err)
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := s.GetProject(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetProject after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteProject(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteProject twice: err = %v, want ErrNotFound", err)
	}
}

func testProjectUniqueName(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first := NewProject(uuid.NewString(), now())
	mustCreateProject(t, s, first)

	dup := NewProject(uuid.NewString(), now())
	dup.Name = first.Name
	if err := s.CreateProject(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate name: err = %v, want ErrConflict", err)
	}

	second := NewProject(first.OwnerID, now())
	mustCreateProject(t, s, second)
	second.Name = first.Name
	if err := s.UpdateProject(ctx, second); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("rename to taken name: err = %v, want ErrConflict", err)
	}

	// Keeping one's own name is not a conflict.
	first.UpdatedAt = now()
	if err := s.UpdateProject(ctx, first); err != nil {
		t.Errorf("rename to own name: %v", err)
	}
}

func testProjectListByOwner(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := uuid.NewString()
	base := now()

	later := NewProject(owner, base.Add(time.Minute))
	earlier := NewProject(owner, base)
	other := NewProject(uuid.NewString(), base)
	mustCreateProject(t, s, later)
	mustCreateProject(t, s, earlier)
	mustCreateProject(t, s, other)

	list, err := s.ListProjectsByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ListProjectsByOwner: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != earlier.ID || list[1].ID != later.ID {
		t.Errorf("order = [%s %s], want [%s %s]", list[0].ID, list[1].ID, earlier.ID, later.ID)
	}

	empty, err := s.ListProjectsByOwner(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("ListProjectsByOwner unknown owner: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown owner = %v, want empty non-nil slice", empty)
	}
}

func testMessageRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := NewProject(uuid.NewString(), now())
	mustCreateProject(t, s, p)

	m := NewMessage(p.ID, now())
	hash := "$2a$10$abcdefghijklmnopqrstuuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ01"
	m.PasswordHash = &hash
	mustCreateMessage(t, s, m)
	if m.Version != 1 {
		t.Errorf("Version after create = %d, want 1", m.Version)
	}

	got, err := s.GetMessage(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.ProjectID != p.ID {
		t.Errorf("ProjectID = %q, want %q", got.ProjectID, p.ID)
	}
	if !sameJSON(t, got.Content, m.Content) {
		t.Errorf("Content = %s, want %s", got.Content, m.Content)
	}
	if deref(got.PasswordHash) != hash {
		t.Errorf("PasswordHash = %q, want %q", deref(got.PasswordHash), hash)
	}
	if deref(got.Hint) != "the usual" || deref(got.From) != "alice" || deref(got.To) != "bob" {
		t.Errorf("metadata = %q/%q/%q", deref(got.Hint), deref(got.From), deref(got.To))
	}
	if got.Version != 1 {
		t.Errorf("stored Version = %d, want 1", got.Version)
	}

	bare := &api.Message{ID: uuid.NewString(), ProjectID: p.ID, CreatedAt: now(), UpdatedAt: now()}
	mustCreateMessage(t, s, bare)
	got, err = s.GetMessage(ctx, bare.ID)
	if err != nil {
		t.Fatalf("GetMessage bare: %v", err)
	}
	if len(got.Content) != 0 || got.PasswordHash != nil || got.Hint != nil || got.From != nil || got.To != nil {
		t.Errorf("bare message = %+v, want nil optional fields", got)
	}

	if _, err := s.GetMessage(ctx, uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMessage missing: err = %v, want ErrNotFound", err)
	}
}

func testMessageCreateErrors(t *testing.T, s storage.Store) {
	ctx := context.Background()

	orphan := NewMessage(uuid.NewString(), now())
	if err := s.CreateMessage(ctx, orphan); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing project: err = %v, want ErrNotFound", err)
	}

	p := NewProject(uuid.NewString(), now())
	mustCreateProject(t, s, p)
	m := NewMessage(p.ID, now())
	mustCreateMessage(t, s, m)

	dup := NewMessage(p.ID, now())
	dup.ID = m.ID
	if err := s.CreateMessage(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate id: err = %v, want ErrConflict", err)
	}
}

func testMessageVersioning(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := NewProject(uuid.NewString(), now())
	mustCreateProject(t, s, p)
	m := NewMessage(p.ID, now())
	mustCreateMessage(t, s, m)

	first, _ := s.GetMessage(ctx, m.ID)
	second, _ := s.GetMessage(ctx, m.ID)

	first.Hint = strPtr("new hint")
	first.Content = nil
	first.UpdatedAt = now().Add(time.Second)
	if err := s.UpdateMessage(ctx, first); err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("Version after update = %d, want 2", first.Version)
	}

	second.To = strPtr("carol")
	if err := s.UpdateMessage(ctx, second); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("stale update: err = %v, want ErrConflict", err)
	}

	got, _ := s.GetMessage(ctx, m.ID)
	if deref(got.Hint) != "new hint" {
		t.Errorf("Hint = %q, want %q", deref(got.Hint), "new hint")
	}
	if deref(got.To) != "bob" {
		t.Errorf("To = %q, want %q (stale write must not apply)", deref(got.To), "bob")
	}
	if len(got.Content) != 0 {
		t.Errorf("Content = %s, want cleared", got.Content)
	}
	if got.Version != 2 {
		t.Errorf("stored Version = %d, want 2", got.Version)
	}
	if !got.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("CreatedAt changed: %v, want %v", got.CreatedAt, m.CreatedAt)
	}

	missing := NewMessage(p.ID, now())
	missing.Version = 1
	if err := s.UpdateMessage(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func testMessageListAndDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := now()
	p := NewProject(uuid.NewString(), base)
	other := NewProject(uuid.NewString(), base)
	mustCreateProject(t, s, p)
	mustCreateProject(t, s, other)

	late := NewMessage(p.ID, base.Add(2*time.Minute))
	early := NewMessage(p.ID, base)
	mid := NewMessage(p.ID, base.Add(time.Minute))
	foreign := NewMessage(other.ID, base)
	for _, m := range []*api.Message{late, early, mid, foreign} {
		mustCreateMessage(t, s, m)
	}

	list, err := s.ListMessagesByProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListMessagesByProject: %v", err)
	}
	var ids []string
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	if want := []string{early.ID, mid.ID, late.ID}; !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}

	if err := s.DeleteMessage(ctx, mid.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := s.DeleteMessage(ctx, mid.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteMessage twice: err = %v, want ErrNotFound", err)
	}

	deleted, err := s.DeleteMessagesByProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("DeleteMessagesByProject: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted = %v, want 2 ids", deleted)
	}
	again, err := s.DeleteMessagesByProject(ctx, p.ID)
	if err != nil || len(again) != 0 {
		t.Errorf("second DeleteMessagesByProject = %v, %v; want empty, nil", again, err)
	}

	if _, err := s.GetMessage(ctx, foreign.ID); err != nil {
		t.Errorf("other project's message removed: %v", err)
	}

	// With the messages gone the project row can be removed.
	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Errorf("DeleteProject after cascade: %v", err)
	}
}
