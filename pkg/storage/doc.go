// Package storage defines the persistence contract for projects and
// messages, together with the sentinel errors every backend translates its
// driver errors into.
//
// Backends live in sub-packages: memory for tests and single-process
// deployments, postgres (pgx and goose) and gormstore (gorm) for durable
// deployments.
package storage
