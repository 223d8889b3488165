package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/kozaktomas/facewatch/internal/worker"
	"github.com/sirupsen/logrus"
)

// ErrInvalidReport marks a registration rejected by validation.
var ErrInvalidReport = errors.New("invalid report")

// Registration is a new missing-person report with its reference photo.
type Registration struct {
	Case     database.Case
	Image    []byte
	Filename string
}

// CaseService registers and removes cases.
type CaseService struct {
	cases         database.CaseWriter
	images        storage.ImageStore
	jobs          JobSubmitter
	dispatcher    Dispatcher
	confirmer     *facematch.Confirmer
	maxUploadSize int64
	log           *logrus.Entry
}

// CaseServiceDeps holds the collaborators of a CaseService. Dispatcher and
// Confirmer may be nil.
type CaseServiceDeps struct {
	Cases         database.CaseWriter
	Images        storage.ImageStore
	Jobs          JobSubmitter
	Dispatcher    Dispatcher
	Confirmer     *facematch.Confirmer
	MaxUploadSize int64
	Log           *logrus.Entry
}

// NewCaseService creates a case service.
func NewCaseService(deps CaseServiceDeps) *CaseService {
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}
	maxSize := deps.MaxUploadSize
	if maxSize <= 0 {
		maxSize = constants.MaxUploadSize
	}
	return &CaseService{
		cases:         deps.Cases,
		images:        deps.Images,
		jobs:          deps.Jobs,
		dispatcher:    deps.Dispatcher,
		confirmer:     deps.Confirmer,
		maxUploadSize: maxSize,
		log:           logger.Component(log, "cases"),
	}
}

// Register validates the report, stores the photo and the case row, then
// queues the embedding job. The case is returned as soon as it is stored;
// a rejected job only leaves the embedding absent.
func (s *CaseService) Register(ctx context.Context, reg Registration) (*database.Case, error) {
	ext, err := s.validate(reg)
	if err != nil {
		return nil, err
	}

	key := storage.NewImageKey(ext)
	if err := s.images.Put(ctx, key, reg.Image, storage.ContentType(ext)); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	c := reg.Case
	c.ImageRef = key
	c.Embedding = nil
	c.EmbeddingProfile = ""
	if c.Status == "" {
		c.Status = constants.StatusPending
	}

	id, err := s.cases.CreateCase(ctx, &c)
	if err != nil {
		if delErr := s.images.Delete(ctx, key); delErr != nil {
			s.log.WithError(delErr).Warn("Failed to remove orphaned image")
		}
		return nil, fmt.Errorf("create case: %w", err)
	}
	c.ID = id

	log := logger.FromContext(ctx, s.log).WithField(logger.FieldCaseID, id)
	if err := s.jobs.Submit(worker.Job{CaseID: id, ImageRef: key}); err != nil {
		log.WithError(err).Error("Embedding job rejected, case needs re-embedding")
	}

	if s.dispatcher != nil && c.ContactPhone != "" {
		s.dispatcher.Dispatch(alert.Alert{
			Kind:            alert.KindReportConfirmation,
			CaseID:          id,
			Name:            c.Name,
			Phone:           c.ContactPhone,
			ComplainantName: c.ComplainantName,
		})
	}

	log.Info("Case registered")
	return &c, nil
}

func (s *CaseService) validate(reg Registration) (string, error) {
	if strings.TrimSpace(reg.Case.Name) == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidReport)
	}
	if strings.TrimSpace(reg.Case.ComplainantName) == "" {
		return "", fmt.Errorf("%w: complainant name is required", ErrInvalidReport)
	}
	if strings.TrimSpace(reg.Case.ContactPhone) == "" {
		return "", fmt.Errorf("%w: contact phone is required", ErrInvalidReport)
	}
	if reg.Case.Age < 0 || reg.Case.Age > 150 {
		return "", fmt.Errorf("%w: age %d out of range", ErrInvalidReport, reg.Case.Age)
	}
	if len(reg.Image) == 0 {
		return "", fmt.Errorf("%w: photo is required", ErrInvalidReport)
	}
	if int64(len(reg.Image)) > s.maxUploadSize {
		return "", fmt.Errorf("%w: photo exceeds %d bytes", ErrInvalidReport, s.maxUploadSize)
	}
	ext := strings.ToLower(filepath.Ext(reg.Filename))
	if !slices.Contains(constants.AllowedImageExtensions, ext) {
		return "", fmt.Errorf("%w: file type %q not allowed", ErrInvalidReport, ext)
	}
	return ext, nil
}

// Delete removes the case, its reference photo and its confirmation counter.
func (s *CaseService) Delete(ctx context.Context, id int64) error {
	c, err := s.cases.GetCase(ctx, id)
	if err != nil {
		return fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return database.ErrCaseNotFound
	}

	if err := s.cases.DeleteCase(ctx, id); err != nil {
		return err
	}
	if s.confirmer != nil {
		s.confirmer.Reset(id)
	}

	log := logger.FromContext(ctx, s.log).WithField(logger.FieldCaseID, id)
	if c.ImageRef != "" {
		if err := s.images.Delete(ctx, c.ImageRef); err != nil {
			log.WithError(err).Warn("Failed to delete case image")
		}
	}
	log.Info("Case deleted")
	return nil
}
