package core

import (
	"net/http"

	"github.com/QuyenFunc/vietcmc/ratelimit"
	"github.com/QuyenFunc/vietcmc/router"
)

// registerRoutes binds every endpoint of spec.md §6 onto a's router, each
// wrapped in the middleware chain its authentication/rate-limit contract
// requires, with request logging as the outermost layer.
func (a *App) registerRoutes() {
	a.router.Post("/register", router.NewChain(http.HandlerFunc(a.handleRegister)).
		WithMiddleware(a.requestLog, a.rateLimit(ratelimit.TierSubmit)).
		Handler())

	a.router.Post("/submit", router.NewChain(http.HandlerFunc(a.handleSubmit)).
		WithMiddleware(a.requestLog, a.apiKeyAuth, a.requireActiveTenant, a.rateLimit(ratelimit.TierSubmit), a.verifyHMAC).
		Handler())

	a.router.Get("/status/:job_id", router.NewChain(http.HandlerFunc(a.handleStatus)).
		WithMiddleware(a.requestLog, a.apiKeyAuth, a.rateLimit(ratelimit.TierStatus)).
		Handler())

	a.router.Put("/webhook", router.NewChain(http.HandlerFunc(a.handleUpdateWebhook)).
		WithMiddleware(a.requestLog, a.apiKeyAuth).
		Handler())

	a.router.Put("/client/webhook", router.NewChain(http.HandlerFunc(a.handleUpdateWebhook)).
		WithMiddleware(a.requestLog, a.jwtBearerAuth).
		Handler())

	a.router.Post("/client/login", router.NewChain(http.HandlerFunc(a.handleClientLogin)).
		WithMiddleware(a.requestLog, a.rateLimit(ratelimit.TierSubmit)).
		Handler())

	a.router.Get("/health", router.NewChain(http.HandlerFunc(a.handleHealth)).
		WithMiddleware(a.requestLog).
		Handler())
}
