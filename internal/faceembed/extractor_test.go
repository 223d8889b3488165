package faceembed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

func testProfile() facematch.Profile {
	return facematch.Profile{
		Model:         "ArcFace",
		Detectors:     []string{"opencv", "ssd", "retinaface"},
		Threshold:     0.55,
		DisplayCutoff: 0.6,
		ConfirmCount:  2,
	}
}

func found(emb ...float32) func(context.Context, bool) ([]Face, error) {
	return func(context.Context, bool) ([]Face, error) {
		return []Face{{Embedding: emb, Area: FacialArea{W: 10, H: 10}}}, nil
	}
}

func noFace(context.Context, bool) ([]Face, error) {
	return nil, ErrNoFaceDetected
}

func TestExtract_FirstDetectorWins(t *testing.T) {
	backend := &fakeBackend{responses: map[string]func(context.Context, bool) ([]Face, error){
		"opencv": found(1, 0),
		"ssd":    found(0, 1),
	}}
	ex := NewExtractor(backend, testProfile(), Config{MaxImageSize: 64}, nil)

	res, err := ex.Extract(context.Background(), pngImage(t, 32, 32), Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detector != "opencv" || res.Degraded {
		t.Errorf("expected strict opencv result, got %+v", res)
	}
	if res.Profile != testProfile().Signature() {
		t.Errorf("expected profile signature %q, got %q", testProfile().Signature(), res.Profile)
	}
	if len(backend.Calls()) != 1 {
		t.Errorf("expected a single backend call, got %d", len(backend.Calls()))
	}
}

func TestExtract_FallsThroughDetectorOrder(t *testing.T) {
	backend := &fakeBackend{responses: map[string]func(context.Context, bool) ([]Face, error){
		"opencv":     noFace,
		"ssd":        noFace,
		"retinaface": found(1, 1),
	}}
	ex := NewExtractor(backend, testProfile(), Config{}, nil)

	res, err := ex.Extract(context.Background(), pngImage(t, 16, 16), Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detector != "retinaface" {
		t.Errorf("expected retinaface, got %s", res.Detector)
	}

	want := []backendCall{{"opencv", true}, {"ssd", true}, {"retinaface", true}}
	if got := backend.Calls(); !slices.Equal(got, want) {
		t.Errorf("expected calls %v, got %v", want, got)
	}
}

func TestExtract_NoFaceStrict(t *testing.T) {
	backend := &fakeBackend{}
	ex := NewExtractor(backend, testProfile(), Config{}, nil)

	_, err := ex.Extract(context.Background(), pngImage(t, 16, 16), Strict)
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
	for _, c := range backend.Calls() {
		if !c.Enforce {
			t.Errorf("strict mode must never disable enforcement, got call %+v", c)
		}
	}
}

func TestExtract_DegradedFallback(t *testing.T) {
	backend := &fakeBackend{responses: map[string]func(context.Context, bool) ([]Face, error){
		"opencv": func(_ context.Context, enforce bool) ([]Face, error) {
			if enforce {
				return nil, ErrNoFaceDetected
			}
			return []Face{{Embedding: []float32{0.5, 0.5}}}, nil
		},
	}}
	ex := NewExtractor(backend, testProfile(), Config{}, nil)

	res, err := ex.Extract(context.Background(), pngImage(t, 16, 16), AllowDegraded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Degraded || res.Detector != "opencv" {
		t.Errorf("expected degraded opencv result, got %+v", res)
	}

	calls := backend.Calls()
	if last := calls[len(calls)-1]; last.Enforce || last.Detector != "opencv" {
		t.Errorf("expected final non-enforcing opencv call, got %+v", last)
	}
}

func TestExtract_BackendFailure(t *testing.T) {
	boom := errors.New("connection refused")
	backend := &fakeBackend{responses: map[string]func(context.Context, bool) ([]Face, error){
		"opencv":     func(context.Context, bool) ([]Face, error) { return nil, boom },
		"ssd":        noFace,
		"retinaface": noFace,
	}}
	ex := NewExtractor(backend, testProfile(), Config{}, nil)

	_, err := ex.Extract(context.Background(), pngImage(t, 16, 16), Strict)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if errors.Is(err, ErrNoFaceDetected) {
		t.Error("a backend failure must not be reported as no face")
	}
}

func TestExtract_Timeout(t *testing.T) {
	block := func(ctx context.Context, _ bool) ([]Face, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	backend := &fakeBackend{responses: map[string]func(context.Context, bool) ([]Face, error){
		"opencv": block,
	}}
	ex := NewExtractor(backend, testProfile(), Config{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := ex.Extract(context.Background(), pngImage(t, 16, 16), AllowDegraded)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("extraction was not bounded, took %v", elapsed)
	}
	if len(backend.Calls()) != 1 {
		t.Errorf("expected no attempts after the deadline, got %d calls", len(backend.Calls()))
	}
}

func TestExtract_InvalidImage(t *testing.T) {
	backend := &fakeBackend{}
	ex := NewExtractor(backend, testProfile(), Config{}, nil)

	_, err := ex.Extract(context.Background(), []byte("nope"), Strict)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame, got %v", err)
	}
	if len(backend.Calls()) != 0 {
		t.Error("backend must not be called for undecodable input")
	}
}

func TestLargestFace(t *testing.T) {
	faces := []Face{
		{Embedding: []float32{1}, Area: FacialArea{W: 10, H: 10}},
		{Embedding: []float32{2}, Area: FacialArea{W: 30, H: 20}},
		{Embedding: []float32{3}, Area: FacialArea{W: 20, H: 30}},
	}
	if got := largestFace(faces); got.Embedding[0] != 2 {
		t.Errorf("expected the first of the largest faces, got %v", got.Embedding)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		ext  Extraction
		err  error
		want string
	}{
		{Extraction{}, nil, "ok"},
		{Extraction{Degraded: true}, nil, "degraded"},
		{Extraction{}, ErrNoFaceDetected, "no_face"},
		{Extraction{}, ErrTimeout, "timeout"},
		{Extraction{}, fmt.Errorf("%w: %w", ErrExtraction, ErrInvalidFrame), "invalid_frame"},
		{Extraction{}, ErrExtraction, "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.ext, tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
