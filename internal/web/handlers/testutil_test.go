package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/database/mock"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/service"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/kozaktomas/facewatch/internal/worker"
)

func testProfile() facematch.Profile {
	return facematch.Profile{
		Model:         "ArcFace",
		Detectors:     []string{"opencv", "ssd"},
		Threshold:     0.55,
		DisplayCutoff: 0.6,
		ConfirmCount:  2,
	}
}

// stubExtractor maps frame content to embeddings. Unknown frames have no face.
type stubExtractor struct {
	embeddings map[string][]float32
	err        error
}

func (s *stubExtractor) Extract(ctx context.Context, img []byte, mode faceembed.Mode) (faceembed.Extraction, error) {
	if s.err != nil {
		return faceembed.Extraction{}, s.err
	}
	emb, ok := s.embeddings[string(img)]
	if !ok {
		return faceembed.Extraction{}, faceembed.ErrNoFaceDetected
	}
	return faceembed.Extraction{Embedding: emb, Detector: "opencv", Profile: s.Signature()}, nil
}

func (s *stubExtractor) Signature() string { return testProfile().Signature() }

type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (d *recordingDispatcher) Dispatch(a alert.Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

type recordingJobs struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (j *recordingJobs) Submit(job worker.Job) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs = append(j.jobs, job)
	return nil
}

// handlerFixture wires handlers to in-memory collaborators.
type handlerFixture struct {
	cases      *mock.MockCaseStore
	images     *storage.MemoryStore
	extractor  *stubExtractor
	dispatcher *recordingDispatcher
	jobs       *recordingJobs
	confirmer  *facematch.Confirmer
	scanner    *service.Scanner
	caseSvc    *service.CaseService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		cases:      mock.NewMockCaseStore(),
		images:     storage.NewMemoryStore(),
		extractor:  &stubExtractor{embeddings: map[string][]float32{}},
		dispatcher: &recordingDispatcher{},
		jobs:       &recordingJobs{},
		confirmer:  facematch.NewConfirmer(testProfile().ConfirmCount, 0),
	}
	f.scanner = service.NewScanner(service.ScannerDeps{
		Extractor:  f.extractor,
		Cases:      f.cases,
		Matcher:    facematch.NewMatcher(testProfile()),
		Confirmer:  f.confirmer,
		Dispatcher: f.dispatcher,
	})
	f.caseSvc = service.NewCaseService(service.CaseServiceDeps{
		Cases:      f.cases,
		Images:     f.images,
		Jobs:       f.jobs,
		Dispatcher: f.dispatcher,
		Confirmer:  f.confirmer,
	})
	return f
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a report submission request.
func multipartRequest(t *testing.T, fields map[string]string, filename string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("missing_image", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/api/v1/cases", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
