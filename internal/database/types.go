package database

import (
	"time"
)

// Case is a missing-person report. Embedding is nil until the embedding
// worker has processed the reference photo.
type Case struct {
	ID          int64
	Name        string
	Gender      string // free text demographic tag, may be empty
	Age         int
	State       string
	City        string
	PinCode     string
	MissingDate time.Time // zero when unknown
	Description string
	ImageRef    string // storage key of the reference photo

	ComplainantName string
	Relationship    string
	ContactPhone    string
	Address         string

	Status string

	Embedding        []float32
	EmbeddingProfile string // signature of the match profile that produced Embedding
	EmbeddedAt       time.Time

	CreatedAt time.Time
}

// HasEmbedding reports whether the case can take part in matching.
func (c *Case) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// ListOptions controls case listing. A zero Limit returns every case.
type ListOptions struct {
	Limit  int
	Offset int
}

// MonthCount is the number of cases reported missing in one month (YYYY-MM).
type MonthCount struct {
	Month string
	Count int
}

// CaseStats summarizes the case table.
type CaseStats struct {
	Total         int
	WithEmbedding int
	Pending       int
	ByMonth       []MonthCount // ordered by month, cases without a missing date are left out
}
