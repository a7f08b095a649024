package router

import "net/http"

// Chain composes a base handler with an ordered list of middlewares and a
// list of post-response observers, so every route wires authentication,
// rate limiting, and logging the same way instead of repeating the
// wrapping at each registration site.
type Chain struct {
	handler     http.Handler
	middlewares []func(http.Handler) http.Handler
	observers   []http.Handler
}

// NewChain starts a Chain around the route's terminal handler.
func NewChain(h http.Handler) *Chain {
	if h == nil {
		panic("router: chain handler cannot be nil")
	}
	return &Chain{handler: h}
}

// WithMiddleware adds middlewares that run, left to right, before handler:
// WithMiddleware(authenticate, rateLimit) runs authenticate first, then
// rateLimit, then the handler.
func (c *Chain) WithMiddleware(middlewares ...func(http.Handler) http.Handler) *Chain {
	for _, mw := range middlewares {
		c.middlewares = append([]func(http.Handler) http.Handler{mw}, c.middlewares...)
	}
	return c
}

// WithObservers adds handlers run after the wrapped handler returns, for
// side effects like request logging. Observers never see a response the
// handler chain already wrote headers for rewritten; they must not write
// to w themselves.
func (c *Chain) WithObservers(observers ...http.Handler) *Chain {
	c.observers = append(c.observers, observers...)
	return c
}

// Handler builds the final http.Handler: observers wrapped around the
// middleware-wrapped base handler.
func (c *Chain) Handler() http.Handler {
	handler := c.handler
	for _, mw := range c.middlewares {
		handler = mw(handler)
	}
	if len(c.observers) == 0 {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		handler.ServeHTTP(w, req)
		for _, obs := range c.observers {
			obs.ServeHTTP(w, req)
		}
	})
}
