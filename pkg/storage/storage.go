package storage

import (
	"context"

	"github.com/rhuss/missive/pkg/api"
)

// ProjectStore persists projects.
type ProjectStore interface {
	// CreateProject inserts p. Returns ErrConflict when the id or the
	// name is already taken.
	CreateProject(ctx context.Context, p *api.Project) error

	// GetProject returns ErrNotFound if the project does not exist.
	GetProject(ctx context.Context, id string) (*api.Project, error)

	// ListProjectsByOwner returns the owner's projects, oldest first.
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]*api.Project, error)

	// UpdateProject writes the name and updatedAt of p.
	UpdateProject(ctx context.Context, p *api.Project) error

	// DeleteProject removes the project row only. Callers delete the
	// project's messages first.
	DeleteProject(ctx context.Context, id string) error
}

// MessageStore persists messages.
type MessageStore interface {
	// CreateMessage inserts m with version 1. Returns ErrConflict for a
	// duplicate id and ErrNotFound when the project does not exist.
	CreateMessage(ctx context.Context, m *api.Message) error

	GetMessage(ctx context.Context, id string) (*api.Message, error)

	// ListMessagesByProject returns the project's messages ordered by
	// createdAt ascending.
	ListMessagesByProject(ctx context.Context, projectID string) ([]*api.Message, error)

	// UpdateMessage writes every mutable field of m provided the stored
	// version still equals m.Version. On success m.Version is incremented.
	// A stale version yields ErrConflict, a missing row ErrNotFound.
	UpdateMessage(ctx context.Context, m *api.Message) error

	DeleteMessage(ctx context.Context, id string) error

	// DeleteMessagesByProject removes every message of the project and
	// returns the removed ids. Deleting from an empty project is not an
	// error.
	DeleteMessagesByProject(ctx context.Context, projectID string) ([]string, error)
}

// Store is implemented by every backend.
type Store interface {
	ProjectStore
	MessageStore

	HealthCheck(ctx context.Context) error
	Close() error
}
