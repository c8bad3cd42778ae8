package message

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/auth"
	"github.com/rhuss/missive/pkg/blob"
	"github.com/rhuss/missive/pkg/credential"
	"github.com/rhuss/missive/pkg/debug"
	"github.com/rhuss/missive/pkg/observability"
	"github.com/rhuss/missive/pkg/storage"
	"github.com/rhuss/missive/pkg/transport"
)

// Store is the persistence the service needs: messages plus project
// lookups for creation.
type Store interface {
	storage.MessageStore
	GetProject(ctx context.Context, id string) (*api.Project, error)
}

// Service is the message access controller.
type Service struct {
	store    Store
	blobs    blob.Store
	verifier credential.Verifier
	limiter  auth.RateLimiter
	now      func() time.Time
}

// Ensure Service implements transport.MessageService at compile time.
var _ transport.MessageService = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithRateLimiter limits password attempts per message.
func WithRateLimiter(l auth.RateLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(store Store, blobs blob.Store, verifier credential.Verifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		blobs:    blobs,
		verifier: verifier,
		limiter:  auth.NoLimit{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// get loads a message by its id in any case. Ids that are not UUIDs
// cannot exist.
func (s *Service) get(ctx context.Context, id string) (*api.Message, error) {
	id, ok := api.CanonicalID(id)
	if !ok {
		return nil, api.NewNotFoundError(MsgNotFound)
	}
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, fromStore(err, "loading message", MsgNotFound, MsgConcurrentUpdate)
	}
	return m, nil
}

// getInProject loads a message and hides it when it belongs to another project.
func (s *Service) getInProject(ctx context.Context, projectID, id string) (*api.Message, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pid, ok := api.CanonicalID(projectID); !ok || m.ProjectID != pid {
		return nil, api.NewNotFoundError(MsgNotFound)
	}
	return m, nil
}

// attemptKey scopes the attempt counter to the message and the calling
// address, so one caller exhausting its attempts does not lock out others.
func attemptKey(ctx context.Context, id string) string {
	if addr := transport.ClientAddrFromContext(ctx); addr != "" {
		return id + "|" + addr
	}
	return id
}

// attempt charges one password attempt against the message.
func (s *Service) attempt(ctx context.Context, id, operation string) error {
	err := s.limiter.Allow(ctx, attemptKey(ctx, id))
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrTooManyRequests) {
		observability.RateLimitRejectedTotal.WithLabelValues(operation).Inc()
		observability.PasswordChecksTotal.WithLabelValues(operation, "limited").Inc()
		slog.Warn("password attempts exhausted", "message_id", id, "operation", operation,
			"client", transport.ClientAddrFromContext(ctx))
		return api.NewTooManyRequestsError(MsgTooManyAttempts)
	}
	return fmt.Errorf("rate limiter: %w", err)
}

// gate enforces the password of a protected message. An empty password
// counts as missing.
func (s *Service) gate(ctx context.Context, m *api.Message, password *string, operation string) error {
	if !m.Protected() {
		observability.PasswordChecksTotal.WithLabelValues(operation, "open").Inc()
		return nil
	}
	if password == nil || *password == "" {
		observability.PasswordChecksTotal.WithLabelValues(operation, "missing").Inc()
		return api.NewUnauthenticatedError(MsgPasswordRequired)
	}
	if err := s.attempt(ctx, m.ID, operation); err != nil {
		return err
	}
	if !s.verifier.Compare(*password, *m.PasswordHash) {
		observability.PasswordChecksTotal.WithLabelValues(operation, "invalid").Inc()
		debug.Log("message", "password rejected", "message_id", m.ID, "operation", operation)
		return api.NewUnauthenticatedError(MsgInvalidPassword)
	}
	observability.PasswordChecksTotal.WithLabelValues(operation, "ok").Inc()
	return nil
}

// Create stores a new message in the project.
func (s *Service) Create(ctx context.Context, projectID string, req *api.CreateMessageRequest) (*api.Message, error) {
	if apiErr := api.ValidateCreateMessage(req); apiErr != nil {
		return nil, apiErr
	}
	projectID, ok := api.CanonicalID(projectID)
	if !ok {
		return nil, api.NewNotFoundError(MsgProjectNotFound)
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, fromStore(err, "loading project", MsgProjectNotFound, MsgAlreadyExists)
	}

	id := api.NewID()
	if req.MessageID != "" {
		id, _ = api.CanonicalID(req.MessageID)
	}

	now := s.timestamp()
	m := &api.Message{
		ID:        id,
		ProjectID: projectID,
		Content:   req.Content,
		Hint:      req.Hint,
		From:      req.From,
		To:        req.To,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.InitialPassword != "" {
		hash, err := s.verifier.Hash(req.InitialPassword)
		if err != nil {
			return nil, err
		}
		m.PasswordHash = &hash
	}

	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, fromStore(err, "creating message", MsgProjectNotFound, MsgAlreadyExists)
	}

	debug.Log("message", "created", "message_id", m.ID, "project_id", projectID, "protected", m.Protected())
	return m, nil
}

// ListByProject returns the project's messages, oldest first.
func (s *Service) ListByProject(ctx context.Context, projectID string) ([]*api.Message, error) {
	projectID, ok := api.CanonicalID(projectID)
	if !ok {
		return []*api.Message{}, nil
	}
	msgs, err := s.store.ListMessagesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

// Update merges the supplied fields into the message. Omitted fields keep
// their value; explicit null content clears it; a supplied password
// replaces the hash without proof of the old one.
func (s *Service) Update(ctx context.Context, projectID, id string, req *api.UpdateMessageRequest) (*api.Message, error) {
	if apiErr := api.ValidateUpdateMessage(req); apiErr != nil {
		return nil, apiErr
	}

	m, err := s.getInProject(ctx, projectID, id)
	if err != nil {
		return nil, err
	}

	if req.ContentSupplied() {
		if api.IsNullContent(req.Content) {
			m.Content = nil
		} else {
			m.Content = req.Content
		}
	}
	if req.Password != nil {
		hash, err := s.verifier.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		m.PasswordHash = &hash
	}
	if req.Hint != nil {
		m.Hint = req.Hint
	}
	if req.From != nil {
		m.From = req.From
	}
	if req.To != nil {
		m.To = req.To
	}
	m.UpdatedAt = s.timestamp()

	if err := s.store.UpdateMessage(ctx, m); err != nil {
		return nil, fromStore(err, "updating message", MsgNotFound, MsgConcurrentUpdate)
	}
	return m, nil
}

// Delete removes a message of the project and its attachment.
func (s *Service) Delete(ctx context.Context, projectID, id string) error {
	m, err := s.getInProject(ctx, projectID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, m.ID); err != nil {
		return fromStore(err, "deleting message", MsgNotFound, MsgConcurrentUpdate)
	}
	s.removeAttachment(ctx, m.ID)
	return nil
}

// DeleteByProject removes every message of the project and their
// attachments. It succeeds for an empty project.
func (s *Service) DeleteByProject(ctx context.Context, projectID string) error {
	projectID, ok := api.CanonicalID(projectID)
	if !ok {
		return nil
	}
	ids, err := s.store.DeleteMessagesByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("deleting project messages: %w", err)
	}
	for _, id := range ids {
		s.removeAttachment(ctx, id)
	}
	debug.Log("message", "deleted project messages", "project_id", projectID, "count", len(ids))
	return nil
}

// removeAttachment deletes the attachment of a removed message. Failures
// leave an orphaned blob and are only logged.
func (s *Service) removeAttachment(ctx context.Context, id string) {
	if err := s.blobs.Delete(ctx, blob.NamespaceMessage, id); err != nil {
		slog.Warn("failed to remove attachment", "message_id", id, "error", err)
	}
}

// Summary returns the message without checking its password. Callers
// expose only the summary fields.
func (s *Service) Summary(ctx context.Context, id string) (*api.Message, error) {
	return s.get(ctx, id)
}

// Read returns the full message once its password, if any, is verified.
func (s *Service) Read(ctx context.Context, id string, password *string) (*api.Message, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, m, password, "read"); err != nil {
		return nil, err
	}
	return m, nil
}

// Verify applies the same gate as Read without returning the message.
func (s *Service) Verify(ctx context.Context, id string, password *string) error {
	_, err := s.verified(ctx, id, password)
	return err
}

func (s *Service) verified(ctx context.Context, id string, password *string) (*api.Message, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, m, password, "verify"); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdatePassword rotates the password of a protected message after
// checking the current one. A concurrent rotation surfaces as a conflict.
func (s *Service) UpdatePassword(ctx context.Context, id string, req *api.UpdatePasswordRequest) (*api.Message, error) {
	if apiErr := api.ValidateUpdatePassword(req); apiErr != nil {
		return nil, apiErr
	}

	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Protected() {
		return nil, api.NewUnauthenticatedError(MsgNoPassword)
	}
	if err := s.attempt(ctx, m.ID, "rotate"); err != nil {
		return nil, err
	}
	if !s.verifier.Compare(req.CurrentPassword, *m.PasswordHash) {
		observability.PasswordChecksTotal.WithLabelValues("rotate", "invalid").Inc()
		return nil, api.NewUnauthenticatedError(MsgInvalidCurrentPassword)
	}
	observability.PasswordChecksTotal.WithLabelValues("rotate", "ok").Inc()

	hash, err := s.verifier.Hash(req.NewPassword)
	if err != nil {
		return nil, err
	}
	m.PasswordHash = &hash
	if req.NewHint != nil {
		m.Hint = req.NewHint
	}
	m.UpdatedAt = s.timestamp()

	if err := s.store.UpdateMessage(ctx, m); err != nil {
		return nil, fromStore(err, "rotating password", MsgNotFound, MsgConcurrentUpdate)
	}

	slog.Info("message password rotated", "message_id", m.ID)
	return m, nil
}

// UploadAttachment stores r as the message's attachment, replacing any
// previous one.
func (s *Service) UploadAttachment(ctx context.Context, id string, password *string, r io.Reader) (int64, error) {
	m, err := s.verified(ctx, id, password)
	if err != nil {
		return 0, err
	}

	n, err := s.blobs.Put(ctx, blob.NamespaceMessage, m.ID, r)
	if err != nil {
		return 0, fmt.Errorf("storing attachment: %w", err)
	}
	observability.AttachmentBytesTotal.WithLabelValues("upload").Add(float64(n))
	return n, nil
}

// OpenAttachment opens the message's attachment for reading.
func (s *Service) OpenAttachment(ctx context.Context, id string, password *string) (io.ReadCloser, error) {
	m, err := s.verified(ctx, id, password)
	if err != nil {
		return nil, err
	}

	rc, err := s.blobs.Get(ctx, blob.NamespaceMessage, m.ID)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, api.NewNotFoundError(MsgAttachmentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening attachment: %w", err)
	}
	return rc, nil
}
