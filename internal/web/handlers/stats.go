package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/sirupsen/logrus"
)

const statsCacheTTL = 30 * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	cases database.CaseReader
	log   *logrus.Entry
	cache statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(cases database.CaseReader, log *logrus.Entry) *StatsHandler {
	return &StatsHandler{cases: cases, log: log}
}

// InvalidateCache clears the cached stats so the next request fetches fresh data
func (h *StatsHandler) InvalidateCache() {
	if h == nil {
		return
	}
	h.cache.invalidate()
}

// MonthStat is the number of cases reported missing in one month
type MonthStat struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	TotalCases         int         `json:"total_cases"`
	CasesWithEmbedding int         `json:"cases_with_embedding"`
	PendingCases       int         `json:"pending_cases"`
	AwaitingEmbedding  int         `json:"awaiting_embedding"`
	ByMonth            []MonthStat `json:"by_month"`
}

// Get returns case statistics
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := h.cases.Stats(r.Context())
	if err != nil {
		logger.FromContext(r.Context(), h.log).WithError(err).Error("Failed to compute stats")
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	resp := &StatsResponse{
		TotalCases:         stats.Total,
		CasesWithEmbedding: stats.WithEmbedding,
		PendingCases:       stats.Pending,
		AwaitingEmbedding:  stats.Total - stats.WithEmbedding,
		ByMonth:            make([]MonthStat, 0, len(stats.ByMonth)),
	}
	for _, m := range stats.ByMonth {
		resp.ByMonth = append(resp.ByMonth, MonthStat{Month: m.Month, Count: m.Count})
	}

	h.cache.set(resp)
	respondJSON(w, http.StatusOK, resp)
}
