package core

import (
	"net/http"

	"github.com/rs/cors"
)

// corsMiddleware applies the tenant-facing CORS policy from config.CORS,
// re-read on every request so a SIGHUP config reload takes effect without
// restarting the process. Wired as the outermost layer on the whole
// router, not per-route, since preflight OPTIONS requests never reach a
// registered handler otherwise.
func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := a.config.Get().CORS
		cors.New(cors.Options{
			AllowedOrigins: c.AllowedOrigins,
			AllowedMethods: c.AllowMethods,
			AllowedHeaders: c.AllowHeaders,
			MaxAge:         c.MaxAge,
		}).Handler(next).ServeHTTP(w, r)
	})
}

// Handler returns the full request handler for this App, including the
// CORS layer that the router itself doesn't apply per-route.
func (a *App) Handler() http.Handler {
	return a.corsMiddleware(a.router)
}
