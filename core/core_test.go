package core

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/QuyenFunc/vietcmc/broker"
	"github.com/QuyenFunc/vietcmc/config"
	"github.com/QuyenFunc/vietcmc/crypto"
	"github.com/QuyenFunc/vietcmc/ratelimit"
	"github.com/QuyenFunc/vietcmc/router"
	"github.com/QuyenFunc/vietcmc/store"
)

// fakeStore is a minimal in-memory store.Store for core tests, avoiding a
// real sqlite file the way spec.md's ambient testing section calls for.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	tenants  map[int64]*store.Tenant
	byEmail  map[string]int64
	byAPIKey map[string]int64
	jobs     map[string]*store.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:  make(map[int64]*store.Tenant),
		byEmail:  make(map[string]int64),
		byAPIKey: make(map[string]int64),
		jobs:     make(map[string]*store.Job),
	}
}

func (f *fakeStore) CreateTenant(ctx context.Context, t *store.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[t.Email]; exists {
		return store.ErrConflict
	}
	f.nextID++
	t.TenantID = f.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = store.TenantActive
	}
	cp := *t
	f.tenants[t.TenantID] = &cp
	f.byEmail[t.Email] = t.TenantID
	f.byAPIKey[t.APIKey] = t.TenantID
	return nil
}

func (f *fakeStore) GetTenantByAPIKey(ctx context.Context, apiKey string) (*store.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byAPIKey[apiKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f.tenants[id]
	return &cp, nil
}

func (f *fakeStore) GetTenantByAppID(ctx context.Context, appID string) (*store.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tenants {
		if t.AppID == appID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetTenantByEmail(ctx context.Context, email string) (*store.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f.tenants[id]
	return &cp, nil
}

func (f *fakeStore) GetTenant(ctx context.Context, tenantID int64) (*store.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) UpdateWebhookURL(ctx context.Context, tenantID int64, webhookURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[tenantID]
	if !ok {
		return store.ErrNotFound
	}
	t.WebhookURL = webhookURL
	return nil
}

func (f *fakeStore) TouchLastUsed(ctx context.Context, tenantID int64) error { return nil }

func (f *fakeStore) InsertJob(ctx context.Context, j *store.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j.CreatedAt = time.Now()
	if j.Status == "" {
		j.Status = store.JobQueued
	}
	cp := *j
	f.jobs[j.JobID] = &cp
	return nil
}

func (f *fakeStore) MarkProcessing(ctx context.Context, jobID string) error { return nil }
func (f *fakeStore) MarkCompleted(ctx context.Context, jobID string, result *store.JobResult) error {
	return nil
}
func (f *fakeStore) MarkFailed(ctx context.Context, jobID string, reason string) error { return nil }

func (f *fakeStore) GetJob(ctx context.Context, jobID string, tenantID int64) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) ListJobsByTenant(ctx context.Context, tenantID int64, limit int) ([]*store.Job, error) {
	return nil, nil
}

func (f *fakeStore) InsertWebhookAttempt(ctx context.Context, a *store.WebhookAttempt) error {
	return nil
}
func (f *fakeStore) ListWebhookAttempts(ctx context.Context, jobID string) ([]*store.WebhookAttempt, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

// markCompleted is a test helper bypassing MarkCompleted's no-op stub,
// simulating a worker having already finished a job.
func (f *fakeStore) markCompleted(jobID string, result store.JobResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[jobID]
	j.Status = store.JobCompleted
	j.ModerationAction = result.ModerationAction
	j.Sentiment = result.Sentiment
	j.Confidence = result.Confidence
	j.Reasoning = result.Reasoning
	j.Labels = result.Labels
	j.Severity = result.Severity
	j.ProcessingDurationMs = result.ProcessingDurationMs
	j.CompletedAt = time.Now()
}

// fakeCache is a minimal in-memory cache.Cache[string, []byte] for testing
// the GET /status cache short-circuit without Ristretto's async writes.
type fakeCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{m: make(map[string][]byte)} }

func (c *fakeCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *fakeCache) Set(key string, value []byte, cost int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return true
}

func (c *fakeCache) SetWithTTL(key string, value []byte, cost int64, ttl time.Duration) bool {
	return c.Set(key, value, cost)
}

func testJwtSecret() []byte {
	return bytes.Repeat([]byte("a"), crypto.MinKeyLength)
}

func newTestApp(t *testing.T, fs *fakeStore, b broker.Broker, c *fakeCache) *App {
	t.Helper()
	cfg := &config.Config{
		Jwt: config.Jwt{ClientSecret: testJwtSecret(), ClientTokenDuration: config.Duration{Duration: time.Hour}},
	}
	opts := []Option{
		WithStore(fs),
		WithBroker(b),
		WithRateLimiter(ratelimit.New(1000, 1000)),
		WithRouter(router.New()),
		WithConfigProvider(config.NewProvider(cfg)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if c != nil {
		opts = append(opts, WithCache(c))
	}
	app, err := NewApp(opts...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func decodeEnvelope(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode envelope: %v, body=%s", err, body)
	}
	return v
}

func TestRegister_SucceedsThenConflictsOnDuplicateEmail(t *testing.T) {
	app := newTestApp(t, newFakeStore(), broker.NewFake(), nil)

	body := `{"organization_name":"Acme","email":"a@b.c","password":"password123","webhook_url":"https://x.example/w"}`
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	data := decodeEnvelope(t, rec.Body.Bytes())["data"].(map[string]any)
	if data["api_key"] == "" || data["hmac_secret"] == "" {
		t.Errorf("expected non-empty api_key and hmac_secret, got %v", data)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body))
	rec2 := httptest.NewRecorder()
	app.Router().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusConflict {
		t.Fatalf("second register status = %d, want 409", rec2.Code)
	}
	errBody := decodeEnvelope(t, rec2.Body.Bytes())["error"].(map[string]any)
	if errBody["code"] != CodeEmailExists {
		t.Errorf("error code = %v, want %s", errBody["code"], CodeEmailExists)
	}
}

func registerTestTenant(t *testing.T, fs *fakeStore) *store.Tenant {
	t.Helper()
	tenant := &store.Tenant{
		AppID:      "app_test",
		Email:      "t@example.com",
		APIKey:     "key_test",
		HMACSecret: "secret",
		WebhookURL: "https://x.example/w",
		Status:     store.TenantActive,
	}
	if err := fs.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	return tenant
}

func signedSubmitRequest(tenant *store.Tenant, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewBufferString(body))
	req.Header.Set("X-API-Key", tenant.APIKey)
	req.Header.Set("X-Hub-Signature-256", crypto.SignHMACHeader([]byte(tenant.HMACSecret), []byte(body)))
	return req
}

func TestSubmit_ValidSignatureEnqueuesJob(t *testing.T) {
	fs := newFakeStore()
	tenant := registerTestTenant(t, fs)
	b := broker.NewFake()
	app := newTestApp(t, fs, b, nil)

	body := `{"text":"Sản phẩm rất tốt, tôi rất hài lòng!","comment_id":"c1"}`
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, signedSubmitRequest(tenant, body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}
	data := decodeEnvelope(t, rec.Body.Bytes())["data"].(map[string]any)
	if data["status"] != "queued" {
		t.Errorf("status field = %v, want queued", data["status"])
	}
	if len(b.Jobs) != 1 {
		t.Fatalf("expected one published job, got %d", len(b.Jobs))
	}
}

func TestSubmit_WrongSignatureRejected(t *testing.T) {
	fs := newFakeStore()
	tenant := registerTestTenant(t, fs)
	app := newTestApp(t, fs, broker.NewFake(), nil)

	body := `{"text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewBufferString(body))
	req.Header.Set("X-API-Key", tenant.APIKey)
	req.Header.Set("X-Hub-Signature-256", "sha256=0000000000000000000000000000000000000000000000000000000000000000")

	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body=%s", rec.Code, rec.Body.String())
	}
	errBody := decodeEnvelope(t, rec.Body.Bytes())["error"].(map[string]any)
	if errBody["code"] != CodeInvalidSignature {
		t.Errorf("error code = %v, want %s", errBody["code"], CodeInvalidSignature)
	}
}

func TestSubmit_SuspendedTenantRejected(t *testing.T) {
	fs := newFakeStore()
	tenant := registerTestTenant(t, fs)
	fs.mu.Lock()
	fs.tenants[tenant.TenantID].Status = store.TenantSuspended
	fs.mu.Unlock()
	app := newTestApp(t, fs, broker.NewFake(), nil)

	body := `{"text":"hello"}`
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, signedSubmitRequest(tenant, body))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body=%s", rec.Code, rec.Body.String())
	}
	errBody := decodeEnvelope(t, rec.Body.Bytes())["error"].(map[string]any)
	if errBody["code"] != CodeClientSuspended {
		t.Errorf("error code = %v, want %s", errBody["code"], CodeClientSuspended)
	}
}

func TestSubmit_MissingAPIKeyRejected(t *testing.T) {
	app := newTestApp(t, newFakeStore(), broker.NewFake(), nil)
	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewBufferString(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestStatus_UnknownJobReturns404(t *testing.T) {
	fs := newFakeStore()
	tenant := registerTestTenant(t, fs)
	app := newTestApp(t, fs, broker.NewFake(), nil)

	req := httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil)
	req.Header.Set("X-API-Key", tenant.APIKey)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", rec.Code, rec.Body.String())
	}
}

func TestStatus_CompletedJobCachedAndTenantScoped(t *testing.T) {
	fs := newFakeStore()
	tenant := registerTestTenant(t, fs)
	job := &store.Job{JobID: "job-1", TenantID: tenant.TenantID, PayloadText: "hello", JobType: store.JobTypeText}
	if err := fs.InsertJob(context.Background(), job); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	fs.markCompleted(job.JobID, store.JobResult{ModerationAction: store.ActionAllowed, Sentiment: store.SentimentPositive})

	fc := newFakeCache()
	app := newTestApp(t, fs, broker.NewFake(), fc)

	req := httptest.NewRequest(http.MethodGet, "/status/"+job.JobID, nil)
	req.Header.Set("X-API-Key", tenant.APIKey)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	data := decodeEnvelope(t, rec.Body.Bytes())["data"].(map[string]any)
	if data["status"] != "completed" {
		t.Errorf("status field = %v, want completed", data["status"])
	}

	if _, found := fc.Get(statusCacheKey(tenant.TenantID, job.JobID)); !found {
		t.Errorf("expected completed job response to be cached")
	}

	// A different tenant must never see this job.
	other := &store.Tenant{AppID: "app_other", Email: "o@example.com", APIKey: "key_other", HMACSecret: "s"}
	fs.CreateTenant(context.Background(), other)
	req2 := httptest.NewRequest(http.MethodGet, "/status/"+job.JobID, nil)
	req2.Header.Set("X-API-Key", other.APIKey)
	rec2 := httptest.NewRecorder()
	app.Router().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant status = %d, want 404", rec2.Code)
	}
}

func TestUpdateWebhook_WithAPIKey(t *testing.T) {
	fs := newFakeStore()
	tenant := registerTestTenant(t, fs)
	app := newTestApp(t, fs, broker.NewFake(), nil)

	body := `{"webhook_url":"https://new.example/hook"}`
	req := httptest.NewRequest(http.MethodPut, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-API-Key", tenant.APIKey)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	updated, _ := fs.GetTenant(context.Background(), tenant.TenantID)
	if updated.WebhookURL != "https://new.example/hook" {
		t.Errorf("WebhookURL = %q, not updated", updated.WebhookURL)
	}
}

func TestClientLoginThenUpdateWebhookWithBearer(t *testing.T) {
	fs := newFakeStore()
	hash, err := crypto.GenerateHash("password123")
	if err != nil {
		t.Fatalf("GenerateHash: %v", err)
	}
	tenant := &store.Tenant{
		AppID: "app_bearer", Email: "bearer@example.com", APIKey: "key_bearer",
		HMACSecret: "s", PasswordHash: hash, Status: store.TenantActive,
	}
	if err := fs.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	app := newTestApp(t, fs, broker.NewFake(), nil)

	loginReq := httptest.NewRequest(http.MethodPost, "/client/login", bytes.NewBufferString(`{"email":"bearer@example.com","password":"password123"}`))
	loginRec := httptest.NewRecorder()
	app.Router().ServeHTTP(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200, body=%s", loginRec.Code, loginRec.Body.String())
	}
	data := decodeEnvelope(t, loginRec.Body.Bytes())["data"].(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	putReq := httptest.NewRequest(http.MethodPut, "/client/webhook", bytes.NewBufferString(`{"webhook_url":"https://bearer.example/hook"}`))
	putReq.Header.Set("Authorization", "Bearer "+token)
	putRec := httptest.NewRecorder()
	app.Router().ServeHTTP(putRec, putReq)
	if putRec.Code != http.StatusOK {
		t.Fatalf("put webhook status = %d, want 200, body=%s", putRec.Code, putRec.Body.String())
	}
}

func TestClientLogin_WrongPasswordRejected(t *testing.T) {
	fs := newFakeStore()
	hash, _ := crypto.GenerateHash("password123")
	tenant := &store.Tenant{AppID: "app_x", Email: "x@example.com", APIKey: "key_x", HMACSecret: "s", PasswordHash: hash}
	fs.CreateTenant(context.Background(), tenant)
	app := newTestApp(t, fs, broker.NewFake(), nil)

	req := httptest.NewRequest(http.MethodPost, "/client/login", bytes.NewBufferString(`{"email":"x@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHealth_ReportsHealthyWhenDependenciesUp(t *testing.T) {
	app := newTestApp(t, newFakeStore(), broker.NewFake(), nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := decodeEnvelope(t, rec.Body.Bytes())["data"].(map[string]any)
	if data["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", data["status"])
	}
}

func TestRateLimit_SubmitBlockedAfterBurst(t *testing.T) {
	fs := newFakeStore()
	tenant := registerTestTenant(t, fs)
	app := newTestApp(t, fs, broker.NewFake(), nil)
	app.limiter = ratelimit.New(1, 1000)

	body := `{"text":"hello"}`
	var lastCode int
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		app.Router().ServeHTTP(rec, signedSubmitRequest(tenant, body))
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Errorf("final status = %d, want 429", lastCode)
	}
}
