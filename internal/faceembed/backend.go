// Package faceembed turns images into face embeddings through an external
// face detection and feature extraction backend.
package faceembed

import "context"

// RepresentRequest is one call of the backend with a single detector.
type RepresentRequest struct {
	Image            []byte // JPEG encoded, already normalized
	Model            string
	Detector         string
	EnforceDetection bool
	Align            bool
}

// FacialArea is the detected face box in pixels.
type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Face is one detected face and its embedding.
type Face struct {
	Embedding  []float32
	Area       FacialArea
	Confidence float64
}

// Backend computes embeddings for every face the detector finds. With
// EnforceDetection set, a frame without faces must yield an error wrapping
// ErrNoFaceDetected.
type Backend interface {
	Represent(ctx context.Context, req RepresentRequest) ([]Face, error)
}
