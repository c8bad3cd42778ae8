// Package gormstore implements storage.Store with GORM on PostgreSQL.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/debug"
	"github.com/rhuss/missive/pkg/storage"
)

// Store is a GORM-backed Store.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// New opens the database and runs auto-migrations.
func New(dsn string) (*Store, error) {
	level := gormlogger.Warn
	if debug.Enabled("storage") {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(log.New(os.Stderr, "gorm ", log.LstdFlags), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&ProjectModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateProject inserts a project.
func (s *Store) CreateProject(ctx context.Context, p *api.Project) error {
	model := projectToModel(p)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err, "create project")
	}
	return nil
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*api.Project, error) {
	var model ProjectModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get project")
	}
	return projectFromModel(model), nil
}

// ListProjectsByOwner returns the owner's projects ordered by created_at.
func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID string) ([]*api.Project, error) {
	var models []ProjectModel
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, translate(err, "list projects")
	}
	res := make([]*api.Project, 0, len(models))
	for _, m := range models {
		res = append(res, projectFromModel(m))
	}
	return res, nil
}

// UpdateProject renames a project.
func (s *Store) UpdateProject(ctx context.Context, p *api.Project) error {
	tx := s.db.WithContext(ctx).Model(&ProjectModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":       p.Name,
			"updated_at": p.UpdatedAt,
		})
	if tx.Error != nil {
		return translate(tx.Error, "update project")
	}
	if tx.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteProject removes the project row.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx).Delete(&ProjectModel{}, "id = ?", id)
	if tx.Error != nil {
		return translate(tx.Error, "delete project")
	}
	if tx.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateMessage inserts a message after confirming its project exists.
func (s *Store) CreateMessage(ctx context.Context, m *api.Message) error {
	model := messageToModel(m)
	model.Version = 1

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ProjectModel{}).Where("id = ?", m.ProjectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return translate(err, "create message")
	}
	m.Version = 1
	return nil
}

// GetMessage returns a message by id.
func (s *Store) GetMessage(ctx context.Context, id string) (*api.Message, error) {
	var model MessageModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get message")
	}
	return messageFromModel(model), nil
}

// ListMessagesByProject returns the project's messages ordered by created_at.
func (s *Store) ListMessagesByProject(ctx context.Context, projectID string) ([]*api.Message, error) {
	var models []MessageModel
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, translate(err, "list messages")
	}
	res := make([]*api.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

// UpdateMessage writes m when the stored version equals m.Version.
func (s *Store) UpdateMessage(ctx context.Context, m *api.Message) error {
	var content any
	if !api.IsNullContent(m.Content) {
		content = datatypes.JSON(m.Content)
	}

	tx := s.db.WithContext(ctx).Model(&MessageModel{}).
		Where("id = ? AND version = ?", m.ID, m.Version).
		Updates(map[string]any{
			"content":       content,
			"password_hash": m.PasswordHash,
			"hint":          m.Hint,
			"from_name":     m.From,
			"to_name":       m.To,
			"updated_at":    m.UpdatedAt,
			"version":       gorm.Expr("version + 1"),
		})
	if tx.Error != nil {
		return translate(tx.Error, "update message")
	}

	if tx.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&MessageModel{}).Where("id = ?", m.ID).Count(&count).Error; err != nil {
			return translate(err, "check message")
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}

	m.Version++
	return nil
}

// DeleteMessage removes a single message.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx).Delete(&MessageModel{}, "id = ?", id)
	if tx.Error != nil {
		return translate(tx.Error, "delete message")
	}
	if tx.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteMessagesByProject removes the project's messages and returns their ids.
func (s *Store) DeleteMessagesByProject(ctx context.Context, projectID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&MessageModel{}).Where("project_id = ?", projectID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Where("id IN ?", ids).Delete(&MessageModel{}).Error
	})
	if err != nil {
		return nil, translate(err, "delete messages")
	}
	return ids, nil
}

// HealthCheck pings the underlying connection pool.
func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func projectToModel(p *api.Project) ProjectModel {
	return ProjectModel{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func projectFromModel(m ProjectModel) *api.Project {
	return &api.Project{
		ID:        m.ID,
		Name:      m.Name,
		OwnerID:   m.OwnerID,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func messageToModel(m *api.Message) MessageModel {
	model := MessageModel{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		PasswordHash: m.PasswordHash,
		Hint:         m.Hint,
		FromName:     m.From,
		ToName:       m.To,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if !api.IsNullContent(m.Content) {
		content := datatypes.JSON(append([]byte(nil), m.Content...))
		model.Content = &content
	}
	return model
}

func messageFromModel(m MessageModel) *api.Message {
	msg := &api.Message{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		PasswordHash: m.PasswordHash,
		Hint:         m.Hint,
		From:         m.FromName,
		To:           m.ToName,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if m.Content != nil && !api.IsNullContent(json.RawMessage(*m.Content)) {
		msg.Content = json.RawMessage(*m.Content)
	}
	return msg
}
