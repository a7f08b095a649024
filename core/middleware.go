package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/QuyenFunc/vietcmc/crypto"
	"github.com/QuyenFunc/vietcmc/ratelimit"
	"github.com/QuyenFunc/vietcmc/store"
)

// responseRecorder wraps http.ResponseWriter to capture the status code a
// handler wrote, defaulting to 200 for handlers that never call
// WriteHeader explicitly.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLog logs method, path, status, and duration for every request,
// grounded on the teacher's prerouter.RequestLog but folded into the
// ordinary middleware chain since this package has no separate pre-router
// stage.
func (a *App) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		a.logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

type contextKey string

const tenantContextKey contextKey = "tenant"

func tenantFromContext(ctx context.Context) *store.Tenant {
	t, _ := ctx.Value(tenantContextKey).(*store.Tenant)
	return t
}

func withTenant(ctx context.Context, t *store.Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey, t)
}

// apiKeyAuth resolves X-API-Key into a tenant and stores it on the request
// context. It does not reject suspended tenants itself — GET /status and
// PUT /webhook have no CLIENT_SUSPENDED error documented in spec.md §4.1,
// only POST /submit does; requireActiveTenant enforces that separately.
func (a *App) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			writePrecomputed(w, errInvalidAPIKey)
			return
		}

		tenant, err := a.store.GetTenantByAPIKey(r.Context(), apiKey)
		if err != nil {
			writePrecomputed(w, errInvalidAPIKey)
			return
		}
		a.touchLastUsed(r.Context(), tenant.TenantID)

		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tenant)))
	})
}

// touchLastUsed is a best-effort, lost-update-tolerant bump of
// tenant.last_used_at (spec.md §3, §5); a failure here never blocks the
// request it's attached to.
func (a *App) touchLastUsed(ctx context.Context, tenantID int64) {
	if err := a.store.TouchLastUsed(ctx, tenantID); err != nil {
		a.logger.Error("touch last_used_at failed", "tenant_id", tenantID, "error", err)
	}
}

// requireActiveTenant rejects a suspended tenant. Wired only onto
// POST /submit, per spec.md §4.1.
func (a *App) requireActiveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenant := tenantFromContext(r.Context()); tenant.Status == store.TenantSuspended {
			writePrecomputed(w, errClientSuspended)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// verifyHMAC checks X-Hub-Signature-256 against the tenant's hmac_secret
// over the exact raw request body, constant-time, per spec.md §4.1's
// signature contract. Must run after apiKeyAuth.
func (a *App) verifyHMAC(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := tenantFromContext(r.Context())

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidInput, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		sig := r.Header.Get("X-Hub-Signature-256")
		if err := crypto.VerifyHMACSignature([]byte(tenant.HMACSecret), body, sig); err != nil {
			writePrecomputed(w, errInvalidSignature)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimit enforces one of the two token-bucket tiers of spec.md §4.1,
// keyed by tenant API key when authenticated, else by remote address.
func (a *App) rateLimit(tier ratelimit.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if tenant := tenantFromContext(r.Context()); tenant != nil {
				key = tenant.APIKey
			}
			if !a.limiter.Allow(tier, key) {
				writePrecomputed(w, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// jwtBearerAuth authorizes PUT /client/webhook with the short-lived token
// POST /client/login issues, per spec.md §4.1.
func (a *App) jwtBearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writePrecomputed(w, errNoAuthHeader)
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writePrecomputed(w, errInvalidToken)
			return
		}

		secret := string(a.config.Get().Jwt.ClientSecret)
		claims, err := crypto.ParseClientToken(tokenString, secret)
		if err != nil {
			writePrecomputed(w, errInvalidToken)
			return
		}

		tenant, err := a.store.GetTenant(r.Context(), claims.TenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writePrecomputed(w, errInvalidToken)
				return
			}
			a.logger.Error("jwtBearerAuth: load tenant", "error", err)
			writePrecomputed(w, errInternal)
			return
		}
		if tenant.Status == store.TenantSuspended {
			writePrecomputed(w, errClientSuspended)
			return
		}
		a.touchLastUsed(r.Context(), tenant.TenantID)

		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tenant)))
	})
}
