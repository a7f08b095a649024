package core

import (
	"encoding/json"
	"net/http"
	"time"
)

type updateWebhookRequest struct {
	WebhookURL string `json:"webhook_url"`
}

type updateWebhookResponse struct {
	WebhookURL string    `json:"webhook_url"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// handleUpdateWebhook implements both PUT /webhook (API-key authenticated)
// and PUT /client/webhook (bearer authenticated): both land here since
// apiKeyAuth and jwtBearerAuth agree on stashing the tenant in the request
// context (spec.md §4.1).
func (a *App) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var req updateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "request body is not valid JSON")
		return
	}
	if err := ValidateWebhookURL(req.WebhookURL); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, err.Error())
		return
	}

	if err := a.store.UpdateWebhookURL(r.Context(), tenant.TenantID, req.WebhookURL); err != nil {
		a.logger.Error("update webhook: store", "tenant_id", tenant.TenantID, "error", err)
		writePrecomputed(w, errInternal)
		return
	}

	writeData(w, http.StatusOK, updateWebhookResponse{
		WebhookURL: req.WebhookURL,
		UpdatedAt:  time.Now(),
	})
}
