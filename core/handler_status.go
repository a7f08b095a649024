package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/QuyenFunc/vietcmc/router"
	"github.com/QuyenFunc/vietcmc/store"
)

type moderationResult struct {
	Action     string   `json:"moderation_result"`
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Labels     []string `json:"detected_labels,omitempty"`
	Severity   int      `json:"severity_score"`
}

type statusResponse struct {
	JobID                string            `json:"job_id"`
	Status               string            `json:"status"`
	CommentID            string            `json:"comment_id,omitempty"`
	Text                 string            `json:"text,omitempty"`
	Result               *moderationResult `json:"result,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	ProcessingDurationMs *int64            `json:"processing_duration_ms,omitempty"`
}

// handleStatus implements GET /status/{job_id} (spec.md §4.1): a tenant
// may only read its own jobs, and completed results are served from cache
// when available.
func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	jobID, ok := router.ParamsFromContext(r.Context()).Get("job_id")
	if !ok || jobID == "" {
		writePrecomputed(w, errJobNotFound)
		return
	}

	cacheKey := statusCacheKey(tenant.TenantID, jobID)
	if a.cache != nil {
		if cached, found := a.cache.Get(cacheKey); found {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	job, err := a.store.GetJob(r.Context(), jobID, tenant.TenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writePrecomputed(w, errJobNotFound)
			return
		}
		a.logger.Error("status: get job", "job_id", jobID, "error", err)
		writePrecomputed(w, errInternal)
		return
	}

	resp := statusResponse{
		JobID:     job.JobID,
		Status:    string(job.Status),
		CommentID: job.ClientSuppliedCommentID,
		Text:      job.PayloadText,
		CreatedAt: job.CreatedAt,
	}
	if job.Status == store.JobCompleted {
		resp.Result = &moderationResult{
			Action:     string(job.ModerationAction),
			Sentiment:  string(job.Sentiment),
			Confidence: job.Confidence,
			Reasoning:  job.Reasoning,
			Labels:     job.Labels,
			Severity:   job.Severity,
		}
		completedAt := job.CompletedAt
		resp.CompletedAt = &completedAt
		duration := job.ProcessingDurationMs
		resp.ProcessingDurationMs = &duration
	}

	body, err := json.Marshal(envelope{Success: true, Data: resp})
	if err != nil {
		a.logger.Error("status: marshal response", "job_id", jobID, "error", err)
		writePrecomputed(w, errInternal)
		return
	}

	if a.cache != nil && job.Status == store.JobCompleted {
		a.cache.SetWithTTL(cacheKey, body, int64(len(body)), statusCacheTTL)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
