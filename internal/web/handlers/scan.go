package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/service"
	"github.com/sirupsen/logrus"
)

// ScanHandler handles live frame scans from the officer console
type ScanHandler struct {
	scanner *service.Scanner
	log     *logrus.Entry
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scanner *service.Scanner, log *logrus.Entry) *ScanHandler {
	return &ScanHandler{scanner: scanner, log: log}
}

// ScanRequest is one frame from the camera, as raw base64 or a data URL
type ScanRequest struct {
	FrameB64 string `json:"frame_b64"`
	Gender   string `json:"gender,omitempty"`
}

// ScanMatch is one candidate in the scan response
type ScanMatch struct {
	CaseID           int64   `json:"case_id"`
	Name             string  `json:"name"`
	Distance         float64 `json:"distance"`
	Matched          bool    `json:"matched"`
	ComplainantPhone string  `json:"complainant_phone"`
	Gender           string  `json:"gender"`
}

// ScanResponse is returned for every successful scan cycle
type ScanResponse struct {
	Results      []ScanMatch `json:"results"`
	Message      string      `json:"message,omitempty"`
	Confirmation string      `json:"confirmation,omitempty"`
	Hits         int         `json:"hits,omitempty"`
	Required     int         `json:"required,omitempty"`
}

// Scan matches one frame against all registered cases
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxScanFrameSize)

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	img, err := faceembed.DecodeFrame(req.FrameB64)
	if err != nil {
		respondError(w, http.StatusBadRequest, constants.MessageBadFrame)
		return
	}

	result, err := h.scanner.Scan(r.Context(), service.ScanRequest{Image: img, Gender: req.Gender})
	if err != nil {
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, faceembed.ErrNoFaceDetected) && !errors.Is(err, faceembed.ErrTimeout) &&
			!errors.Is(err, faceembed.ErrInvalidFrame) {
			status = http.StatusInternalServerError
			logger.FromContext(r.Context(), h.log).WithError(err).Error("Scan failed")
		}
		respondError(w, status, service.UserMessage(err))
		return
	}

	resp := ScanResponse{
		Results:      make([]ScanMatch, 0, len(result.Results)),
		Message:      result.Message,
		Confirmation: string(result.Confirmation.Decision),
		Hits:         result.Confirmation.Hits,
		Required:     result.Confirmation.Required,
	}
	for _, m := range result.Results {
		resp.Results = append(resp.Results, ScanMatch{
			CaseID:           m.CaseID,
			Name:             m.Name,
			Distance:         roundDistance(m.Score),
			Matched:          m.Matched,
			ComplainantPhone: m.ContactPhone,
			Gender:           m.Gender,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// roundDistance rounds a score to 4 decimal places for display.
func roundDistance(d float64) float64 {
	return math.Round(d*1e4) / 1e4
}
