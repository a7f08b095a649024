package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/QuyenFunc/vietcmc/crypto"
	"github.com/QuyenFunc/vietcmc/store"
)

type clientLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type clientView struct {
	AppID            string    `json:"app_id"`
	OrganizationName string    `json:"organization_name"`
	Email            string    `json:"email"`
	APIKey           string    `json:"api_key"`
	HMACSecret       string    `json:"hmac_secret"`
	WebhookURL       string    `json:"webhook_url"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

type clientLoginResponse struct {
	Token  string     `json:"token"`
	Client clientView `json:"client"`
}

// handleClientLogin implements POST /client/login (spec.md §4.1): issues a
// short-lived bearer token authorizing PUT /client/webhook.
func (a *App) handleClientLogin(w http.ResponseWriter, r *http.Request) {
	var req clientLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "request body is not valid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, "email and password are required")
		return
	}

	tenant, err := a.store.GetTenantByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, CodeInvalidAPIKey, "incorrect email or password")
			return
		}
		a.logger.Error("client login: get tenant", "error", err)
		writePrecomputed(w, errInternal)
		return
	}

	if tenant.PasswordHash == "" || !crypto.CheckPassword(req.Password, tenant.PasswordHash) {
		writeError(w, http.StatusUnauthorized, CodeInvalidAPIKey, "incorrect email or password")
		return
	}
	if tenant.Status == store.TenantSuspended {
		writePrecomputed(w, errClientSuspended)
		return
	}

	cfg := a.config.Get()
	token, err := crypto.NewClientToken(tenant.TenantID, tenant.AppID, string(cfg.Jwt.ClientSecret), cfg.Jwt.ClientTokenDuration.Duration)
	if err != nil {
		a.logger.Error("client login: issue token", "error", err)
		writePrecomputed(w, errInternal)
		return
	}

	writeDataMessage(w, http.StatusOK, clientLoginResponse{
		Token: token,
		Client: clientView{
			AppID:            tenant.AppID,
			OrganizationName: tenant.OrganizationName,
			Email:            tenant.Email,
			APIKey:           tenant.APIKey,
			HMACSecret:       tenant.HMACSecret,
			WebhookURL:       tenant.WebhookURL,
			Status:           string(tenant.Status),
			CreatedAt:        tenant.CreatedAt,
		},
	}, "login successful")
}
