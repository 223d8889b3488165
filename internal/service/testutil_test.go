package service

import (
	"context"
	"sync"
	"testing"

	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/database/mock"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/facematch"
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

// fakeExtractor maps image content to embeddings. Unknown content means no face.
type fakeExtractor struct {
	mu         sync.Mutex
	embeddings map[string][]float32
	errs       map[string]error
	calls      int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{embeddings: map[string][]float32{}, errs: map[string]error{}}
}

func (f *fakeExtractor) Extract(ctx context.Context, img []byte, mode faceembed.Mode) (faceembed.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[string(img)]; err != nil {
		return faceembed.Extraction{}, err
	}
	emb, ok := f.embeddings[string(img)]
	if !ok {
		return faceembed.Extraction{}, faceembed.ErrNoFaceDetected
	}
	return faceembed.Extraction{Embedding: emb, Detector: "opencv", Profile: f.Signature()}, nil
}

func (f *fakeExtractor) Signature() string { return testProfile().Signature() }

type fakeDispatcher struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (f *fakeDispatcher) Dispatch(a alert.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

func (f *fakeDispatcher) sent() []alert.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]alert.Alert(nil), f.alerts...)
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (f *fakeJobs) Submit(job worker.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type scanFixture struct {
	cases      *mock.MockCaseStore
	extractor  *fakeExtractor
	dispatcher *fakeDispatcher
	confirmer  *facematch.Confirmer
	scanner    *Scanner
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()
	f := &scanFixture{
		cases:      mock.NewMockCaseStore(),
		extractor:  newFakeExtractor(),
		dispatcher: &fakeDispatcher{},
		confirmer:  facematch.NewConfirmer(testProfile().ConfirmCount, 0),
	}
	f.scanner = NewScanner(ScannerDeps{
		Extractor:  f.extractor,
		Cases:      f.cases,
		Matcher:    facematch.NewMatcher(testProfile()),
		Confirmer:  f.confirmer,
		Dispatcher: f.dispatcher,
	})
	return f
}

// addCase stores a case whose embedding was produced by the active profile.
func (f *scanFixture) addCase(name, gender, phone string, emb []float32) int64 {
	return f.cases.AddCase(database.Case{
		Name:             name,
		Gender:           gender,
		ContactPhone:     phone,
		Embedding:        emb,
		EmbeddingProfile: testProfile().Signature(),
	})
}

func newTestImages() *storage.MemoryStore {
	return storage.NewMemoryStore()
}
