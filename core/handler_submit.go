package core

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/QuyenFunc/vietcmc/broker"
	"github.com/QuyenFunc/vietcmc/store"

	"github.com/google/uuid"
)

// estimatedProcessingMs is a fixed, conservative estimate surfaced to the
// client; the real latency depends on current queue depth, which the API
// front-end does not track.
const estimatedProcessingMs = 2000

type submitRequest struct {
	Text      string          `json:"text"`
	CommentID string          `json:"comment_id"`
	Type      string          `json:"type"`
	Metadata  json.RawMessage `json:"metadata"`
}

type submitResponse struct {
	JobID                 string    `json:"job_id"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
	EstimatedProcessingMs int       `json:"estimated_processing_time_ms"`
}

// handleSubmit implements POST /submit (spec.md §4.1): persist the job
// before publishing, so a publish failure never loses an accepted job.
func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "request body is not valid JSON")
		return
	}
	if err := validateSubmitText(req.Text); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, err.Error())
		return
	}
	if err := validateCommentID(req.CommentID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, err.Error())
		return
	}

	jobType := store.JobTypeText
	if req.Type != "" {
		switch store.JobType(req.Type) {
		case store.JobTypeText, store.JobTypeImage, store.JobTypeAudio:
			jobType = store.JobType(req.Type)
		default:
			writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "type must be one of text, image, audio")
			return
		}
	}

	metadata := req.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	} else {
		var obj map[string]json.RawMessage
		if json.Unmarshal(metadata, &obj) != nil || obj == nil {
			writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "metadata must be a JSON object")
			return
		}
	}

	job := &store.Job{
		JobID:                   uuid.NewString(),
		TenantID:                tenant.TenantID,
		ClientSuppliedCommentID: req.CommentID,
		PayloadText:             req.Text,
		JobType:                 jobType,
		Metadata:                metadata,
		Status:                  store.JobQueued,
	}

	if err := a.store.InsertJob(r.Context(), job); err != nil {
		a.logger.Error("submit: insert job", "error", err)
		writePrecomputed(w, errInternal)
		return
	}

	if err := a.broker.PublishJob(r.Context(), broker.JobMessage{JobID: job.JobID, TenantID: job.TenantID}); err != nil {
		// The job row is already durable and queued, and the client still
		// gets 202. Nothing in this repository republishes such a job, so
		// it stays queued.
		a.logger.Error("submit: publish job", "job_id", job.JobID, "error", err)
	}

	writeJSON(w, http.StatusAccepted, envelope{Success: true, Data: submitResponse{
		JobID:                 job.JobID,
		Status:                string(store.JobQueued),
		CreatedAt:             job.CreatedAt,
		EstimatedProcessingMs: estimatedProcessingMs,
	}})
}
