// Package service wires extraction, matching, confirmation and alerting into
// the scan and registration flows used by the HTTP and CLI layers.
package service

import (
	"context"
	"errors"

	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/worker"
)

// Extractor produces embeddings under the shared match profile.
type Extractor interface {
	Extract(ctx context.Context, img []byte, mode faceembed.Mode) (faceembed.Extraction, error)
	Signature() string
}

// Dispatcher delivers alerts without blocking the caller.
type Dispatcher interface {
	Dispatch(a alert.Alert)
}

// JobSubmitter queues background embedding work.
type JobSubmitter interface {
	Submit(job worker.Job) error
}

// UserMessage maps a scan error to the message shown to the officer.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, faceembed.ErrNoFaceDetected), errors.Is(err, faceembed.ErrTimeout):
		return constants.MessageNoFace
	case errors.Is(err, faceembed.ErrInvalidFrame):
		return constants.MessageBadFrame
	default:
		return constants.MessageScanError
	}
}

// candidates converts stored cases to match candidates.
func candidates(cases []database.Case) []facematch.Candidate {
	out := make([]facematch.Candidate, 0, len(cases))
	for _, c := range cases {
		out = append(out, facematch.Candidate{
			CaseID:       c.ID,
			Name:         c.Name,
			Gender:       c.Gender,
			ContactPhone: c.ContactPhone,
			Embedding:    c.Embedding,
			Profile:      c.EmbeddingProfile,
		})
	}
	return out
}
