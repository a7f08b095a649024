// Package core wires the store, broker, cache, and rate limiter into the
// HTTP API front-end of spec.md §4.1: tenant registration, job submission,
// status lookups, webhook configuration, and health reporting.
package core

import (
	"encoding/json"
	"net/http"
)

// envelope is the canonical successful-response shape of spec.md §6.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// apiError is the body of the canonical error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool     `json:"success"`
	Error   apiError `json:"error"`
}

// Error codes from spec.md §7.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidAPIKey    = "INVALID_API_KEY"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeClientSuspended  = "CLIENT_SUSPENDED"
	CodeJobNotFound      = "JOB_NOT_FOUND"
	CodeEmailExists      = "EMAIL_EXISTS"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// jsonResponse holds a precomputed status+body pair, avoiding repeated
// marshaling for the fixed-message errors that fire on every hot path
// (auth failures, rate limiting).
type jsonResponse struct {
	status int
	body   []byte
}

func precompute(status int, code, message string) jsonResponse {
	body, err := json.Marshal(errorEnvelope{Error: apiError{Code: code, Message: message}})
	if err != nil {
		panic("core: failed to precompute response: " + err.Error())
	}
	return jsonResponse{status: status, body: body}
}

var (
	errInvalidAPIKey    = precompute(http.StatusUnauthorized, CodeInvalidAPIKey, "API key is missing or invalid")
	errNoAuthHeader     = precompute(http.StatusUnauthorized, CodeInvalidAPIKey, "authorization header is required")
	errInvalidToken     = precompute(http.StatusUnauthorized, CodeInvalidAPIKey, "invalid or expired bearer token")
	errInvalidSignature = precompute(http.StatusForbidden, CodeInvalidSignature, "request signature is missing or invalid")
	errClientSuspended  = precompute(http.StatusForbidden, CodeClientSuspended, "tenant account is suspended")
	errJobNotFound      = precompute(http.StatusNotFound, CodeJobNotFound, "job not found")
	errRateLimited      = precompute(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later")
	errInternal         = precompute(http.StatusInternalServerError, CodeInternalError, "internal error")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeDataMessage(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writePrecomputed(w http.ResponseWriter, resp jsonResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}
