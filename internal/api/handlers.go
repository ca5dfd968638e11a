package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coinscribe/coinscribe/internal/market"
	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/coinscribe/coinscribe/internal/storage"
	"github.com/coinscribe/coinscribe/internal/worker"
	"github.com/go-chi/chi/v5"
)

// Handlers holds the API handlers.
type Handlers struct {
	store     *storage.Store
	runner    *worker.Runner
	collector *market.Collector
}

// NewHandlers creates new API handlers.
func NewHandlers(store *storage.Store, runner *worker.Runner, collector *market.Collector) *Handlers {
	return &Handlers{store: store, runner: runner, collector: collector}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func getLimit(r *http.Request, defaultLimit int) int {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

// ============================================================================
// GENERATION HANDLERS
// ============================================================================

type generateRequest struct {
	TopicID    string `json:"topic_id"`
	UserID     string `json:"user_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
	Options    struct {
		WordCount int    `json:"word_count,omitempty"`
		Depth     string `json:"depth,omitempty"`
		Tone      string `json:"tone,omitempty"`
	} `json:"options"`
}

// SubmitGeneration enqueues a generation job and returns its ID.
func (h *Handlers) SubmitGeneration(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	options := models.DefaultSettings()
	options.WordCount = req.Options.WordCount
	options.Depth = req.Options.Depth
	if req.Options.Tone != "" {
		options.Tone = req.Options.Tone
	}

	jobID, err := h.runner.Submit(r.Context(), req.TopicID, req.UserID, req.TemplateID, options)
	switch {
	case errors.Is(err, worker.ErrMissingTopic):
		respondError(w, http.StatusBadRequest, "topic_id is required")
		return
	case errors.Is(err, worker.ErrThrottled):
		respondError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, worker.ErrQueueFull):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Failed to submit job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// GetJobStatus returns the current state of a job.
func (h *Handlers) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.runner.Status(jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	resp := map[string]interface{}{
		"status":   job.Status,
		"progress": job.Progress,
		"stage":    job.Stage,
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	respondJSON(w, http.StatusOK, resp)
}

// ============================================================================
// ARTICLE HANDLERS
// ============================================================================

// GetArticles returns recent articles.
func (h *Handlers) GetArticles(w http.ResponseWriter, r *http.Request) {
	limit := getLimit(r, 20)

	articles, err := h.store.GetRecentArticles(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch articles")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
	})
}

// GetArticle returns a single article by ID.
func (h *Handlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	article, err := h.store.GetArticle(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Article not found")
		return
	}

	respondJSON(w, http.StatusOK, article)
}

// ============================================================================
// TOPIC / TEMPLATE HANDLERS
// ============================================================================

// GetTopics returns the highest-scored topics.
func (h *Handlers) GetTopics(w http.ResponseWriter, r *http.Request) {
	limit := getLimit(r, 20)

	topics, err := h.store.GetTopTopics(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch topics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"topics": topics,
		"count":  len(topics),
	})
}

// GetTemplates returns all article templates.
func (h *Handlers) GetTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.GetTemplates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch templates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

// ============================================================================
// MARKET HANDLERS
// ============================================================================

// GetGlobalMarket returns market-wide indicators with sentiment when
// available.
func (h *Handlers) GetGlobalMarket(w http.ResponseWriter, r *http.Request) {
	global, err := h.collector.FetchGlobalIndicators(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "Failed to fetch global market data")
		return
	}

	respondJSON(w, http.StatusOK, global)
}

// ============================================================================
// STATS HANDLERS
// ============================================================================

// GetStats returns general statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// HealthCheck returns service health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "coinscribe",
	})
}
