// Package project manages projects: named containers of messages owned by
// a single identity.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/auth/ownership"
	"github.com/rhuss/missive/pkg/storage"
	"github.com/rhuss/missive/pkg/transport"
)

// Client-facing messages.
const (
	MsgNotFound       = "Project not found"
	MsgNameTaken      = "A project with this name already exists"
	MsgDeleteConflict = "The project received new messages while it was being deleted. Please retry."
)

// MessagePurger removes every message of a project, attachments included.
type MessagePurger interface {
	DeleteByProject(ctx context.Context, projectID string) error
}

// Service implements project management and the ownership lookup used by
// the ownership middleware.
type Service struct {
	store    storage.ProjectStore
	messages MessagePurger
	now      func() time.Time
}

var (
	_ transport.ProjectService = (*Service)(nil)
	_ ownership.ProjectChecker = (*Service)(nil)
)

// New creates a Service.
func New(store storage.ProjectStore, messages MessagePurger) *Service {
	return &Service{store: store, messages: messages, now: time.Now}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func fromStore(err error, op string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError(MsgNotFound)
	case errors.Is(err, storage.ErrConflict):
		return api.NewConflictError(MsgNameTaken)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Create registers a project owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID, name string) (*api.Project, error) {
	name = strings.TrimSpace(name)
	if apiErr := api.ValidateProjectName(name); apiErr != nil {
		return nil, apiErr
	}

	now := s.timestamp()
	p := &api.Project{
		ID:        api.NewID(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fromStore(err, "creating project")
	}

	slog.Info("project created", "project_id", p.ID, "owner_id", ownerID)
	return p, nil
}

// Get returns a project. The id may be spelled in any case.
func (s *Service) Get(ctx context.Context, id string) (*api.Project, error) {
	id, ok := api.CanonicalID(id)
	if !ok {
		return nil, api.NewNotFoundError(MsgNotFound)
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, fromStore(err, "loading project")
	}
	return p, nil
}

// ListByOwner returns the projects owned by ownerID.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*api.Project, error) {
	list, err := s.store.ListProjectsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return list, nil
}

// Rename changes a project's name.
func (s *Service) Rename(ctx context.Context, id, name string) (*api.Project, error) {
	name = strings.TrimSpace(name)
	if apiErr := api.ValidateProjectName(name); apiErr != nil {
		return nil, apiErr
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.UpdatedAt = s.timestamp()

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, fromStore(err, "renaming project")
	}
	return p, nil
}

// Delete removes the project's messages, then the project itself. A
// message created between the two steps makes the store refuse the
// project delete; the purge is repeated once before giving up.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		if err := s.messages.DeleteByProject(ctx, p.ID); err != nil {
			return err
		}
		err := s.store.DeleteProject(ctx, p.ID)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrConflict) {
			return fromStore(err, "deleting project")
		}
		if attempt == 1 {
			slog.Warn("project delete raced with message creation", "project_id", p.ID)
			return api.NewConflictError(MsgDeleteConflict)
		}
	}

	slog.Info("project deleted", "project_id", p.ID)
	return nil
}

// IsOwnedBy reports whether the project exists and belongs to ownerID.
// A missing project is not an error.
func (s *Service) IsOwnedBy(ctx context.Context, projectID, ownerID string) (bool, error) {
	projectID, ok := api.CanonicalID(projectID)
	if !ok {
		return false, nil
	}
	p, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking ownership: %w", err)
	}
	return p.OwnerID == ownerID, nil
}
