package database

import (
	"context"
	"errors"
)

// ErrCaseNotFound is returned when a case id does not exist.
var ErrCaseNotFound = errors.New("case not found")

// CaseReader provides read-only access to missing-person cases
type CaseReader interface {
	// ListCasesWithEmbeddings returns every case whose embedding is present.
	// An empty result is normal before the first registration completes.
	ListCasesWithEmbeddings(ctx context.Context) ([]Case, error)
	// GetCase retrieves a case by id, returns nil if not found
	GetCase(ctx context.Context, id int64) (*Case, error)
	// ListCases returns cases, most recent first
	ListCases(ctx context.Context, opts ListOptions) ([]Case, error)
	// Stats returns aggregate counts
	Stats(ctx context.Context) (*CaseStats, error)
}

// CaseWriter provides write access to cases
type CaseWriter interface {
	CaseReader

	// CreateCase inserts a case with an absent embedding and returns its id
	CreateCase(ctx context.Context, c *Case) (int64, error)

	// UpdateEmbedding overwrites the embedding of a case in a single statement.
	// Returns the number of affected rows (0 when the case no longer exists).
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32, profile string) (int64, error)

	// DeleteCase removes a case. Returns ErrCaseNotFound for unknown ids.
	DeleteCase(ctx context.Context, id int64) error
}
