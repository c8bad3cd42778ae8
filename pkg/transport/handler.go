package transport

import (
	"context"
	"io"

	"github.com/rhuss/missive/pkg/api"
)

// ProjectService manages projects. Implementations return *api.APIError
// values for domain failures (not found, duplicate name); any other error
// is treated as an internal failure.
type ProjectService interface {
	Create(ctx context.Context, ownerID, name string) (*api.Project, error)
	Get(ctx context.Context, id string) (*api.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*api.Project, error)
	Rename(ctx context.Context, id, name string) (*api.Project, error)

	// Delete removes the project together with its messages and their
	// attachments.
	Delete(ctx context.Context, id string) error

	// IsOwnedBy reports whether the project exists and belongs to ownerID.
	IsOwnedBy(ctx context.Context, projectID, ownerID string) (bool, error)
}

// MessageService is the message access controller. Reads, password
// rotation and attachment access are gated by the message password.
// Admin operations take the project ID that the ownership check already
// approved; a message outside that project is reported as not found.
type MessageService interface {
	Create(ctx context.Context, projectID string, req *api.CreateMessageRequest) (*api.Message, error)
	ListByProject(ctx context.Context, projectID string) ([]*api.Message, error)
	Update(ctx context.Context, projectID, id string, req *api.UpdateMessageRequest) (*api.Message, error)
	Delete(ctx context.Context, projectID, id string) error
	DeleteByProject(ctx context.Context, projectID string) error

	Summary(ctx context.Context, id string) (*api.Message, error)
	Read(ctx context.Context, id string, password *string) (*api.Message, error)
	UpdatePassword(ctx context.Context, id string, req *api.UpdatePasswordRequest) (*api.Message, error)
	UploadAttachment(ctx context.Context, id string, password *string, r io.Reader) (int64, error)
	OpenAttachment(ctx context.Context, id string, password *string) (io.ReadCloser, error)
}

// HealthChecker is implemented by backends that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
