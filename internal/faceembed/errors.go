package faceembed

import "errors"

var (
	// ErrNoFaceDetected means no face was found under any configured detector.
	// It is user-correctable: better lighting or framing usually fixes it.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrExtraction covers backend failures unrelated to face presence.
	ErrExtraction = errors.New("embedding extraction failed")
	// ErrTimeout means the bounded extraction deadline expired.
	ErrTimeout = errors.New("embedding extraction timed out")
	// ErrInvalidFrame is returned by DecodeFrame for malformed base64 input.
	ErrInvalidFrame = errors.New("invalid image frame")
)

// Outcome labels an extraction result for metrics and logs.
func Outcome(ext Extraction, err error) string {
	switch {
	case err == nil && ext.Degraded:
		return "degraded"
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoFaceDetected):
		return "no_face"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidFrame):
		return "invalid_frame"
	default:
		return "error"
	}
}
