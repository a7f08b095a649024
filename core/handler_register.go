package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/QuyenFunc/vietcmc/crypto"
	"github.com/QuyenFunc/vietcmc/store"
)

const (
	apiKeyTokenBytes     = 24
	hmacSecretTokenBytes = 32
)

type registerRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	WebhookURL       string `json:"webhook_url"`
}

type registerResponse struct {
	AppID      string    `json:"app_id"`
	APIKey     string    `json:"api_key"`
	HMACSecret string    `json:"hmac_secret"`
	WebhookURL string    `json:"webhook_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// handleRegister implements POST /register (spec.md §4.1): create a
// tenant, server-generating app_id/api_key/hmac_secret, returning the
// secrets exactly once.
func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "request body is not valid JSON")
		return
	}

	if req.OrganizationName == "" {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "organization_name is required")
		return
	}
	if err := ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, err.Error())
		return
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "password must be at least 8 characters")
		return
	}
	if err := ValidateWebhookURL(req.WebhookURL); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, err.Error())
		return
	}

	passwordHash, err := crypto.GenerateHash(req.Password)
	if err != nil {
		a.logger.Error("register: hash password", "error", err)
		writePrecomputed(w, errInternal)
		return
	}

	tenant := &store.Tenant{
		AppID:            "app_" + crypto.GenerateSecureToken(8),
		Email:            req.Email,
		OrganizationName: req.OrganizationName,
		PasswordHash:     passwordHash,
		APIKey:           "key_" + crypto.GenerateSecureToken(apiKeyTokenBytes),
		HMACSecret:       crypto.GenerateSecureToken(hmacSecretTokenBytes),
		WebhookURL:       req.WebhookURL,
		Status:           store.TenantActive,
	}

	if err := a.store.CreateTenant(r.Context(), tenant); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, CodeEmailExists, "email address is already registered")
			return
		}
		a.logger.Error("register: create tenant", "error", err)
		writePrecomputed(w, errInternal)
		return
	}

	writeData(w, http.StatusCreated, registerResponse{
		AppID:      tenant.AppID,
		APIKey:     tenant.APIKey,
		HMACSecret: tenant.HMACSecret,
		WebhookURL: tenant.WebhookURL,
		CreatedAt:  tenant.CreatedAt,
	})
}
