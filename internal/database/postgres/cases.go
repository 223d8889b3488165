package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/pgvector/pgvector-go"
)

const caseColumns = `
	id, missing_full_name, gender, age, missing_state, missing_city, pin_code,
	missing_date, description, image_path, complainant_name, relationship,
	complainant_phone, address_line1, status, embedding, embedding_profile,
	embedded_at, created_at`

// CaseRepository provides PostgreSQL-backed case storage with pgvector embeddings.
type CaseRepository struct {
	pool *Pool
}

// NewCaseRepository creates a new PostgreSQL case repository.
func NewCaseRepository(pool *Pool) *CaseRepository {
	return &CaseRepository{pool: pool}
}

// CreateCase inserts a case with an absent embedding.
func (r *CaseRepository) CreateCase(ctx context.Context, c *database.Case) (int64, error) {
	query := `
		INSERT INTO cases (
			missing_full_name, gender, age, missing_state, missing_city, pin_code,
			missing_date, description, image_path, complainant_name, relationship,
			complainant_phone, address_line1, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		c.Name, c.Gender, c.Age, c.State, c.City, c.PinCode,
		nullTime(c.MissingDate), c.Description, c.ImageRef, c.ComplainantName, c.Relationship,
		c.ContactPhone, c.Address, c.Status,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert case: %w", err)
	}
	return c.ID, nil
}

// UpdateEmbedding overwrites the embedding and its profile signature in one statement.
func (r *CaseRepository) UpdateEmbedding(ctx context.Context, id int64, embedding []float32, profile string) (int64, error) {
	vec := pgvector.NewVector(embedding)
	result, err := r.pool.Exec(ctx, `
		UPDATE cases
		SET embedding = $2, embedding_profile = $3, embedded_at = NOW()
		WHERE id = $1
	`, id, vec, profile)
	if err != nil {
		return 0, fmt.Errorf("update embedding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return affected, nil
}

// ListCasesWithEmbeddings returns every case whose embedding is present.
func (r *CaseRepository) ListCasesWithEmbeddings(ctx context.Context) ([]database.Case, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases WHERE embedding IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query cases with embeddings: %w", err)
	}
	defer rows.Close()

	return scanCases(rows)
}

// GetCase retrieves a case by id, returns nil if not found.
func (r *CaseRepository) GetCase(ctx context.Context, id int64) (*database.Case, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query case: %w", err)
	}
	defer rows.Close()

	cases, err := scanCases(rows)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, nil
	}
	return &cases[0], nil
}

// ListCases returns cases, most recent first.
func (r *CaseRepository) ListCases(ctx context.Context, opts database.ListOptions) ([]database.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases ORDER BY created_at DESC, id DESC`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	return scanCases(rows)
}

// DeleteCase removes a case.
func (r *CaseRepository) DeleteCase(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM cases WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrCaseNotFound
	}
	return nil
}

// Stats returns aggregate counts and the per-month distribution of missing dates.
func (r *CaseRepository) Stats(ctx context.Context) (*database.CaseStats, error) {
	var stats database.CaseStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE embedding IS NOT NULL),
		       COUNT(*) FILTER (WHERE status = 'Pending')
		FROM cases
	`).Scan(&stats.Total, &stats.WithEmbedding, &stats.Pending)
	if err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT to_char(missing_date, 'YYYY-MM') AS month, COUNT(*)
		FROM cases
		WHERE missing_date IS NOT NULL
		GROUP BY month
		ORDER BY month
	`)
	if err != nil {
		return nil, fmt.Errorf("query monthly stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mc database.MonthCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan monthly stats: %w", err)
		}
		stats.ByMonth = append(stats.ByMonth, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly stats: %w", err)
	}
	return &stats, nil
}

func scanCases(rows *sql.Rows) ([]database.Case, error) {
	var cases []database.Case
	for rows.Next() {
		var (
			c           database.Case
			vec         *pgvector.Vector
			missingDate sql.NullTime
			embeddedAt  sql.NullTime
		)
		err := rows.Scan(
			&c.ID, &c.Name, &c.Gender, &c.Age, &c.State, &c.City, &c.PinCode,
			&missingDate, &c.Description, &c.ImageRef, &c.ComplainantName, &c.Relationship,
			&c.ContactPhone, &c.Address, &c.Status, &vec, &c.EmbeddingProfile,
			&embeddedAt, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		if vec != nil {
			c.Embedding = vec.Slice()
		}
		if missingDate.Valid {
			c.MissingDate = missingDate.Time
		}
		if embeddedAt.Valid {
			c.EmbeddedAt = embeddedAt.Time
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

var _ database.CaseWriter = (*CaseRepository)(nil)
