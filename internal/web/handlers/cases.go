package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/service"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/sirupsen/logrus"
)

// CasesHandler handles report submission and case administration
type CasesHandler struct {
	service       *service.CaseService
	cases         database.CaseReader
	images        storage.ImageStore
	stats         *StatsHandler
	maxUploadSize int64
	log           *logrus.Entry
}

// NewCasesHandler creates a new cases handler
func NewCasesHandler(svc *service.CaseService, cases database.CaseReader, images storage.ImageStore, stats *StatsHandler, maxUploadSize int64, log *logrus.Entry) *CasesHandler {
	return &CasesHandler{
		service:       svc,
		cases:         cases,
		images:        images,
		stats:         stats,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// CaseResponse is the public view of a case. The embedding itself is never
// exposed, only whether it is present.
type CaseResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Gender          string `json:"gender,omitempty"`
	Age             int    `json:"age,omitempty"`
	State           string `json:"state,omitempty"`
	City            string `json:"city,omitempty"`
	PinCode         string `json:"pin_code,omitempty"`
	MissingDate     string `json:"missing_date,omitempty"`
	Description     string `json:"description,omitempty"`
	ComplainantName string `json:"complainant_name,omitempty"`
	Relationship    string `json:"relationship,omitempty"`
	ContactPhone    string `json:"complainant_phone,omitempty"`
	Address         string `json:"address,omitempty"`
	Status          string `json:"status"`
	HasEmbedding    bool   `json:"has_embedding"`
	EmbeddingModel  string `json:"embedding_profile,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func caseResponse(c *database.Case) CaseResponse {
	resp := CaseResponse{
		ID:              c.ID,
		Name:            c.Name,
		Gender:          c.Gender,
		Age:             c.Age,
		State:           c.State,
		City:            c.City,
		PinCode:         c.PinCode,
		Description:     c.Description,
		ComplainantName: c.ComplainantName,
		Relationship:    c.Relationship,
		ContactPhone:    c.ContactPhone,
		Address:         c.Address,
		Status:          c.Status,
		HasEmbedding:    c.HasEmbedding(),
		EmbeddingModel:  c.EmbeddingProfile,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
	if !c.MissingDate.IsZero() {
		resp.MissingDate = c.MissingDate.Format("2006-01-02")
	}
	return resp
}

// Create handles a multipart report submission
func (h *CasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	// form fields come on top of the photo
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("missing_image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read missing_image")
		return
	}

	c, err := caseFromForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.Register(r.Context(), service.Registration{
		Case:     c,
		Image:    data,
		Filename: header.Filename,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidReport) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.FromContext(r.Context(), h.log).WithError(err).Error("Failed to register case")
		respondError(w, http.StatusInternalServerError, "failed to register case")
		return
	}

	h.stats.InvalidateCache()
	respondJSON(w, http.StatusCreated, caseResponse(created))
}

func caseFromForm(r *http.Request) (database.Case, error) {
	field := func(name string) string {
		return strings.TrimSpace(r.FormValue(name))
	}

	c := database.Case{
		Name:            field("missing_full_name"),
		Gender:          field("gender"),
		State:           field("missing_state"),
		City:            field("missing_city"),
		PinCode:         field("pin_code"),
		Description:     field("description"),
		ComplainantName: field("complainant_name"),
		Relationship:    field("relationship"),
		ContactPhone:    field("complainant_phone"),
		Address:         field("address_line1"),
	}

	if v := field("age"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.New("age must be a number")
		}
		c.Age = age
	}

	if v := field("missing_date"); v != "" {
		layout, value := "2006-01-02", v
		if t := field("missing_time"); t != "" {
			layout, value = "2006-01-02 15:04", v+" "+t
		}
		d, err := time.ParseInLocation(layout, value, time.Local)
		if err != nil {
			return c, errors.New("missing_date must be YYYY-MM-DD")
		}
		c.MissingDate = d
	}
	return c, nil
}

// CaseListResponse wraps a page of cases
type CaseListResponse struct {
	Cases  []CaseResponse `json:"cases"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// List returns cases, most recent first
func (h *CasesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	cases, err := h.cases.ListCases(r.Context(), database.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		logger.FromContext(r.Context(), h.log).WithError(err).Error("Failed to list cases")
		respondError(w, http.StatusInternalServerError, "failed to list cases")
		return
	}

	resp := CaseListResponse{Cases: make([]CaseResponse, 0, len(cases)), Limit: limit, Offset: offset}
	for i := range cases {
		resp.Cases = append(resp.Cases, caseResponse(&cases[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get returns one case
func (h *CasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, caseResponse(c))
}

// Image streams the reference photo of a case
func (h *CasesHandler) Image(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}

	data, err := h.images.Get(r.Context(), c.ImageRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			respondError(w, http.StatusNotFound, "image not found")
			return
		}
		logger.FromContext(r.Context(), h.log).WithError(err).Error("Failed to read case image")
		respondError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	ext := ""
	if i := strings.LastIndex(c.ImageRef, "."); i >= 0 {
		ext = c.ImageRef[i:]
	}
	w.Header().Set("Content-Type", storage.ContentType(ext))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Delete removes a case and its photo
func (h *CasesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid case id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrCaseNotFound) {
			respondError(w, http.StatusNotFound, "case not found")
			return
		}
		logger.FromContext(r.Context(), h.log).WithError(err).WithField(logger.FieldCaseID, id).Error("Failed to delete case")
		respondError(w, http.StatusInternalServerError, "failed to delete case")
		return
	}

	h.stats.InvalidateCache()
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *CasesHandler) load(w http.ResponseWriter, r *http.Request) (*database.Case, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid case id")
		return nil, false
	}

	c, err := h.cases.GetCase(r.Context(), id)
	if err != nil {
		logger.FromContext(r.Context(), h.log).WithError(err).WithField(logger.FieldCaseID, id).Error("Failed to get case")
		respondError(w, http.StatusInternalServerError, "failed to get case")
		return nil, false
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "case not found")
		return nil, false
	}
	return c, true
}
