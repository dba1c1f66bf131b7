// Package store defines the persistence interfaces (repositories) for the
// trail generation pipeline, along with the shared error vocabulary and
// transaction helpers all implementations follow. Concrete implementations
// live in internal/platform/postgres.
package store
