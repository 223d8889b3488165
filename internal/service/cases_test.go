package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/database/mock"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/kozaktomas/facewatch/internal/worker"
)

type caseFixture struct {
	cases      *mock.MockCaseStore
	images     *storage.MemoryStore
	jobs       *fakeJobs
	dispatcher *fakeDispatcher
	confirmer  *facematch.Confirmer
	svc        *CaseService
}

func newCaseFixture(t *testing.T) *caseFixture {
	t.Helper()
	f := &caseFixture{
		cases:      mock.NewMockCaseStore(),
		images:     newTestImages(),
		jobs:       &fakeJobs{},
		dispatcher: &fakeDispatcher{},
		confirmer:  facematch.NewConfirmer(2, 0),
	}
	f.svc = NewCaseService(CaseServiceDeps{
		Cases:         f.cases,
		Images:        f.images,
		Jobs:          f.jobs,
		Dispatcher:    f.dispatcher,
		Confirmer:     f.confirmer,
		MaxUploadSize: 1024,
	})
	return f
}

func validRegistration() Registration {
	return Registration{
		Case: database.Case{
			Name:            "Asha Rao",
			Gender:          "Female",
			Age:             12,
			ContactPhone:    "9876543210",
			ComplainantName: "Meena",
		},
		Image:    []byte("jpeg bytes"),
		Filename: "Photo.JPG",
	}
}

func TestRegister(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()

	c, err := f.svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if c.ID == 0 || c.Status != constants.StatusPending {
		t.Errorf("unexpected case %+v", c)
	}

	stored, _ := f.cases.GetCase(ctx, c.ID)
	if stored == nil || stored.HasEmbedding() {
		t.Fatalf("case must be stored without an embedding: %+v", stored)
	}
	data, err := f.images.Get(ctx, stored.ImageRef)
	if err != nil || !bytes.Equal(data, []byte("jpeg bytes")) {
		t.Errorf("image not stored under %q: %v", stored.ImageRef, err)
	}

	if len(f.jobs.jobs) != 1 || f.jobs.jobs[0] != (worker.Job{CaseID: c.ID, ImageRef: stored.ImageRef}) {
		t.Errorf("jobs = %+v", f.jobs.jobs)
	}

	alerts := f.dispatcher.sent()
	if len(alerts) != 1 || alerts[0].Kind != alert.KindReportConfirmation || alerts[0].ComplainantName != "Meena" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestRegister_QueueFullStillSucceeds(t *testing.T) {
	f := newCaseFixture(t)
	f.jobs.err = worker.ErrQueueFull

	c, err := f.svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	stored, _ := f.cases.GetCase(context.Background(), c.ID)
	if stored == nil {
		t.Fatal("case should be stored")
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Registration)
	}{
		{"missing name", func(r *Registration) { r.Case.Name = " " }},
		{"missing complainant", func(r *Registration) { r.Case.ComplainantName = "" }},
		{"missing phone", func(r *Registration) { r.Case.ContactPhone = "" }},
		{"negative age", func(r *Registration) { r.Case.Age = -1 }},
		{"no image", func(r *Registration) { r.Image = nil }},
		{"too large", func(r *Registration) { r.Image = make([]byte, 2048) }},
		{"bad extension", func(r *Registration) { r.Filename = "photo.gif" }},
		{"no extension", func(r *Registration) { r.Filename = "photo" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCaseFixture(t)
			reg := validRegistration()
			tt.modify(&reg)

			_, err := f.svc.Register(context.Background(), reg)
			if !errors.Is(err, ErrInvalidReport) {
				t.Fatalf("expected ErrInvalidReport, got %v", err)
			}
			if f.images.Len() != 0 {
				t.Error("rejected report must not store an image")
			}
		})
	}
}

func TestRegister_CreateFailureRemovesImage(t *testing.T) {
	f := newCaseFixture(t)
	f.cases.CreateError = errors.New("db down")

	if _, err := f.svc.Register(context.Background(), validRegistration()); err == nil {
		t.Fatal("expected error")
	}
	if f.images.Len() != 0 {
		t.Error("image should be removed when the case cannot be created")
	}
	if len(f.jobs.jobs) != 0 {
		t.Error("no job should be queued")
	}
}

func TestDelete(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()

	c, err := f.svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}
	f.confirmer.Observe(&facematch.Result{CaseID: c.ID, Matched: true})

	if err := f.svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := f.cases.GetCase(ctx, c.ID); got != nil {
		t.Error("case should be gone")
	}
	if f.images.Len() != 0 {
		t.Error("image should be gone")
	}
	if f.confirmer.Hits(c.ID) != 0 {
		t.Error("confirmation counter should be reset")
	}

	if err := f.svc.Delete(ctx, c.ID); !errors.Is(err, database.ErrCaseNotFound) {
		t.Errorf("expected ErrCaseNotFound, got %v", err)
	}
}
