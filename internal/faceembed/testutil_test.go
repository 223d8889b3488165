package faceembed

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
)

// pngImage encodes a solid-colored image of the given size.
func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

type backendCall struct {
	Detector string
	Enforce  bool
}

// fakeBackend answers per detector and records every call.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []backendCall
	responses map[string]func(ctx context.Context, enforce bool) ([]Face, error)
}

func (f *fakeBackend) Represent(ctx context.Context, req RepresentRequest) ([]Face, error) {
	f.mu.Lock()
	f.calls = append(f.calls, backendCall{Detector: req.Detector, Enforce: req.EnforceDetection})
	fn := f.responses[req.Detector]
	f.mu.Unlock()
	if fn == nil {
		return nil, ErrNoFaceDetected
	}
	return fn(ctx, req.EnforceDetection)
}

func (f *fakeBackend) Calls() []backendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backendCall(nil), f.calls...)
}
