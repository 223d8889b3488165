package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

func TestScan_TwoConsecutiveHitsFireOnce(t *testing.T) {
	f := newScanFixture(t)
	asha := f.addCase("Asha", "female", "9876543210", []float32{1, 0, 0})
	f.addCase("Ravi", "male", "9123456789", []float32{0, 1, 0})
	f.extractor.embeddings["asha-frame"] = []float32{0.95, 0.05, 0}

	ctx := context.Background()
	first, err := f.scanner.Scan(ctx, ScanRequest{Image: []byte("asha-frame")})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if first.Confirmation.Decision != facematch.DecisionArmed {
		t.Errorf("first decision = %s, want armed", first.Confirmation.Decision)
	}
	if len(first.Results) != 1 || first.Results[0].CaseID != asha {
		t.Fatalf("visible results = %+v", first.Results)
	}
	if len(f.dispatcher.sent()) != 0 {
		t.Fatal("no alert expected after one hit")
	}

	second, err := f.scanner.Scan(ctx, ScanRequest{Image: []byte("asha-frame")})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if second.Confirmation.Decision != facematch.DecisionFire {
		t.Errorf("second decision = %s, want fire", second.Confirmation.Decision)
	}
	alerts := f.dispatcher.sent()
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].CaseID != asha || alerts[0].Phone != "9876543210" {
		t.Errorf("unexpected alert %+v", alerts[0])
	}
	if f.confirmer.Hits(asha) != 0 {
		t.Errorf("counter should reset after firing")
	}
}

func TestScan_OtherCaseBreaksStreak(t *testing.T) {
	f := newScanFixture(t)
	asha := f.addCase("Asha", "", "1", []float32{1, 0, 0})
	f.addCase("Ravi", "", "2", []float32{0, 1, 0})
	f.extractor.embeddings["asha"] = []float32{1, 0, 0}
	f.extractor.embeddings["ravi"] = []float32{0, 1, 0}

	ctx := context.Background()
	for _, frame := range []string{"asha", "ravi", "asha"} {
		if _, err := f.scanner.Scan(ctx, ScanRequest{Image: []byte(frame)}); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(f.dispatcher.sent()); n != 0 {
		t.Errorf("alerts = %d, want 0", n)
	}
	if f.confirmer.Hits(asha) != 1 {
		t.Errorf("asha hits = %d, want 1", f.confirmer.Hits(asha))
	}
}

func TestScan_NoFaceLeavesStateUntouched(t *testing.T) {
	f := newScanFixture(t)
	asha := f.addCase("Asha", "", "1", []float32{1, 0, 0})
	f.extractor.embeddings["asha"] = []float32{1, 0, 0}

	ctx := context.Background()
	if _, err := f.scanner.Scan(ctx, ScanRequest{Image: []byte("asha")}); err != nil {
		t.Fatal(err)
	}
	_, err := f.scanner.Scan(ctx, ScanRequest{Image: []byte("empty-frame")})
	if !errors.Is(err, faceembed.ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
	if UserMessage(err) != constants.MessageNoFace {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
	if f.confirmer.Hits(asha) != 1 {
		t.Errorf("failed extraction must not touch the counter")
	}

	if _, err := f.scanner.Scan(ctx, ScanRequest{Image: []byte("asha")}); err != nil {
		t.Fatal(err)
	}
	if n := len(f.dispatcher.sent()); n != 1 {
		t.Errorf("alerts = %d, want 1", n)
	}
}

func TestScan_EmptyDatabase(t *testing.T) {
	f := newScanFixture(t)
	f.cases.AddCase(database.Case{Name: "pending, no embedding"})
	f.extractor.embeddings["frame"] = []float32{1, 0}

	res, err := f.scanner.Scan(context.Background(), ScanRequest{Image: []byte("frame")})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(res.Results) != 0 || res.Message != constants.MessageNoCases {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestScan_DemographicFilterLeavesNoResults(t *testing.T) {
	f := newScanFixture(t)
	f.addCase("Asha", "female", "1", []float32{1, 0, 0})
	f.extractor.embeddings["frame"] = []float32{1, 0, 0}

	res, err := f.scanner.Scan(context.Background(), ScanRequest{Image: []byte("frame"), Gender: "Man"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 0 || res.Message != constants.MessageNoResults {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Confirmation.Decision != facematch.DecisionNone {
		t.Errorf("decision = %s", res.Confirmation.Decision)
	}
}

func TestScan_IncompatibleCandidateSkipped(t *testing.T) {
	f := newScanFixture(t)
	f.cases.AddCase(database.Case{Name: "old", Embedding: []float32{1, 0, 0}, EmbeddingProfile: "Facenet:mtcnn"})
	f.cases.AddCase(database.Case{Name: "short", Embedding: []float32{1, 0}, EmbeddingProfile: testProfile().Signature()})
	good := f.addCase("good", "", "1", []float32{1, 0, 0})
	f.extractor.embeddings["frame"] = []float32{1, 0, 0}

	res, err := f.scanner.Scan(context.Background(), ScanRequest{Image: []byte("frame")})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].CaseID != good {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestScan_FarMatchesHiddenButNotAlerted(t *testing.T) {
	f := newScanFixture(t)
	f.addCase("far", "", "1", []float32{0, 1, 0})
	f.extractor.embeddings["frame"] = []float32{1, 0, 0}

	for range 3 {
		res, err := f.scanner.Scan(context.Background(), ScanRequest{Image: []byte("frame")})
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Results) != 0 {
			t.Errorf("distance 1 must be above the display cutoff")
		}
	}
	if n := len(f.dispatcher.sent()); n != 0 {
		t.Errorf("alerts = %d, want 0", n)
	}
}

func TestScan_ListError(t *testing.T) {
	f := newScanFixture(t)
	f.cases.ListWithEmbedsError = errors.New("db down")
	f.extractor.embeddings["frame"] = []float32{1}

	if _, err := f.scanner.Scan(context.Background(), ScanRequest{Image: []byte("frame")}); err == nil {
		t.Fatal("expected error")
	}
}

func TestScan_ConcurrentCyclesFireExactlyOnce(t *testing.T) {
	f := newScanFixture(t)
	f.addCase("Asha", "", "1", []float32{1, 0, 0})
	f.extractor.embeddings["asha"] = []float32{1, 0, 0}
	f.extractor.embeddings["nobody"] = []float32{0, 0, 1}

	frames := make([]string, 50)
	for i := range frames {
		frames[i] = "nobody"
	}
	frames[10], frames[40] = "asha", "asha"

	var wg sync.WaitGroup
	for _, frame := range frames {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.scanner.Scan(context.Background(), ScanRequest{Image: []byte(frame)}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := len(f.dispatcher.sent()); n != 1 {
		t.Errorf("alerts = %d, want exactly 1", n)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{faceembed.ErrNoFaceDetected, constants.MessageNoFace},
		{faceembed.ErrTimeout, constants.MessageNoFace},
		{faceembed.ErrInvalidFrame, constants.MessageBadFrame},
		{faceembed.ErrExtraction, constants.MessageScanError},
		{errors.New("connection reset"), constants.MessageScanError},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
