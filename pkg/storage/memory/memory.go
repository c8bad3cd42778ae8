// Package memory provides an in-memory storage.Store for tests and
// single-process deployments. Data is lost when the process exits.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/storage"
)

// Store is an in-memory Store. Records are copied on the way in and out so
// callers never share state with the store.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*api.Project
	names    map[string]string // project name -> id
	messages map[string]*api.Message
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		projects: make(map[string]*api.Project),
		names:    make(map[string]string),
		messages: make(map[string]*api.Message),
	}
}

// CreateProject inserts a project.
func (s *Store) CreateProject(_ context.Context, p *api.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[p.ID]; exists {
		return storage.ErrConflict
	}
	if _, taken := s.names[p.Name]; taken {
		return storage.ErrConflict
	}

	cp := *p
	s.projects[p.ID] = &cp
	s.names[p.Name] = p.ID
	return nil
}

// GetProject returns a copy of the project.
func (s *Store) GetProject(_ context.Context, id string) (*api.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListProjectsByOwner returns the owner's projects, oldest first.
func (s *Store) ListProjectsByOwner(_ context.Context, ownerID string) ([]*api.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*api.Project{}
	for _, p := range s.projects {
		if p.OwnerID == ownerID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// UpdateProject renames a project.
func (s *Store) UpdateProject(_ context.Context, p *api.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if owner, taken := s.names[p.Name]; taken && owner != p.ID {
		return storage.ErrConflict
	}

	delete(s.names, existing.Name)
	existing.Name = p.Name
	existing.UpdatedAt = p.UpdatedAt
	s.names[p.Name] = p.ID
	return nil
}

// DeleteProject removes the project row.
func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.names, p.Name)
	delete(s.projects, id)
	return nil
}

// CreateMessage inserts a message with version 1.
func (s *Store) CreateMessage(_ context.Context, m *api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[m.ProjectID]; !ok {
		return storage.ErrNotFound
	}
	if _, exists := s.messages[m.ID]; exists {
		return storage.ErrConflict
	}

	m.Version = 1
	s.messages[m.ID] = cloneMessage(m)
	return nil
}

// GetMessage returns a copy of the message.
func (s *Store) GetMessage(_ context.Context, id string) (*api.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneMessage(m), nil
}

// ListMessagesByProject returns the project's messages, oldest first.
func (s *Store) ListMessagesByProject(_ context.Context, projectID string) ([]*api.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*api.Message{}
	for _, m := range s.messages {
		if m.ProjectID == projectID {
			result = append(result, cloneMessage(m))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// UpdateMessage replaces the mutable fields when the version matches.
func (s *Store) UpdateMessage(_ context.Context, m *api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.messages[m.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if existing.Version != m.Version {
		return storage.ErrConflict
	}

	m.Version++
	updated := cloneMessage(m)
	updated.ProjectID = existing.ProjectID
	updated.CreatedAt = existing.CreatedAt
	s.messages[m.ID] = updated
	return nil
}

// DeleteMessage removes a single message.
func (s *Store) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

// DeleteMessagesByProject removes every message of the project.
func (s *Store) DeleteMessagesByProject(_ context.Context, projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []string{}
	for id, m := range s.messages {
		if m.ProjectID == projectID {
			ids = append(ids, id)
			delete(s.messages, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func cloneMessage(m *api.Message) *api.Message {
	cp := *m
	if m.Content != nil {
		cp.Content = append([]byte(nil), m.Content...)
	}
	return &cp
}
