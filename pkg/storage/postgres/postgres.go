// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling, JSONB for message content and
// goose for schema migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/debug"
	"github.com/rhuss/missive/pkg/storage"
)

// PostgreSQL error codes translated into storage sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store is a PostgreSQL-backed Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// CreateProject inserts a project.
func (s *Store) CreateProject(ctx context.Context, p *api.Project) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Name, p.OwnerID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*api.Project, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, id)

	p, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return p, nil
}

// ListProjectsByOwner returns the owner's projects, oldest first.
func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID string) ([]*api.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	result := []*api.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return result, nil
}

// UpdateProject writes the project's name and updatedAt.
func (s *Store) UpdateProject(ctx context.Context, p *api.Project) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET name = $2, updated_at = $3
		WHERE id = $1
	`, p.ID, p.Name, p.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return storage.ErrConflict
		}
		return fmt.Errorf("updating project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteProject removes the project row.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return storage.ErrConflict
		}
		return fmt.Errorf("deleting project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateMessage inserts a message with version 1.
func (s *Store) CreateMessage(ctx context.Context, m *api.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (
			id, project_id, content, password_hash, hint, from_name, to_name,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
	`,
		m.ID, m.ProjectID, nullContent(m.Content), m.PasswordHash, m.Hint, m.From, m.To,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return storage.ErrConflict
		case codeForeignKeyViolation:
			return storage.ErrNotFound
		}
		return fmt.Errorf("inserting message: %w", err)
	}
	m.Version = 1
	return nil
}

// GetMessage retrieves a message by id.
func (s *Store) GetMessage(ctx context.Context, id string) (*api.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, content, password_hash, hint, from_name, to_name,
		       version, created_at, updated_at
		FROM messages
		WHERE id = $1
	`, id)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}
	return m, nil
}

// ListMessagesByProject returns the project's messages, oldest first.
func (s *Store) ListMessagesByProject(ctx context.Context, projectID string) ([]*api.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, content, password_hash, hint, from_name, to_name,
		       version, created_at, updated_at
		FROM messages
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	result := []*api.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return result, nil
}

// UpdateMessage performs a compare-and-set on the version column.
func (s *Store) UpdateMessage(ctx context.Context, m *api.Message) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET content = $3, password_hash = $4, hint = $5, from_name = $6, to_name = $7,
		    updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`,
		m.ID, m.Version, nullContent(m.Content), m.PasswordHash, m.Hint, m.From, m.To, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, m.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking message: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		debug.Log("storage", "stale message version", "message_id", m.ID, "version", m.Version)
		return storage.ErrConflict
	}

	m.Version++
	return nil
}

// DeleteMessage removes a single message.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteMessagesByProject removes the project's messages and returns their ids.
func (s *Store) DeleteMessagesByProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM messages WHERE project_id = $1 RETURNING id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("deleting messages: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting deleted ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanProject(row pgx.Row) (*api.Project, error) {
	var p api.Project
	if err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func scanMessage(row pgx.Row) (*api.Message, error) {
	var (
		m       api.Message
		content []byte
	)
	if err := row.Scan(
		&m.ID, &m.ProjectID, &content, &m.PasswordHash, &m.Hint, &m.From, &m.To,
		&m.Version, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if content != nil {
		m.Content = content
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

// nullContent maps absent and JSON null content to SQL NULL.
func nullContent(raw []byte) any {
	if api.IsNullContent(raw) {
		return nil
	}
	return string(raw)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
