// Package router is a thin wrapper around julienschmidt/httprouter, giving
// the API front-end path-parameter routing (`/status/:job_id`) without
// coupling core's handlers to the underlying router implementation.
package router

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Param is one named path segment, e.g. {Key: "job_id", Value: "abc-123"}.
type Param struct {
	Key   string
	Value string
}

// Params is the ordered set of path parameters matched for one request.
type Params []Param

// Get returns the value of the named parameter and whether it was present.
func (p Params) Get(name string) (string, bool) {
	for _, param := range p {
		if param.Key == name {
			return param.Value, true
		}
	}
	return "", false
}

// Router wraps httprouter.Router, exposing the handful of HTTP-method
// registration helpers the API front-end needs.
type Router struct {
	*httprouter.Router
}

// New returns a Router with httprouter's default not-found/method-not-
// allowed behavior.
func New() *Router {
	return &Router{httprouter.New()}
}

func (r *Router) Get(path string, handler http.Handler)  { r.Handler(http.MethodGet, path, handler) }
func (r *Router) Post(path string, handler http.Handler) { r.Handler(http.MethodPost, path, handler) }
func (r *Router) Put(path string, handler http.Handler)  { r.Handler(http.MethodPut, path, handler) }

// ParamsFromContext extracts the Params httprouter stashed on the request
// context, translated into this package's router-independent Param type so
// handlers never import httprouter directly.
func ParamsFromContext(ctx context.Context) Params {
	raw, _ := ctx.Value(httprouter.ParamsKey).(httprouter.Params)
	if len(raw) == 0 {
		return nil
	}
	params := make(Params, len(raw))
	for i, v := range raw {
		params[i] = Param{Key: v.Key, Value: v.Value}
	}
	return params
}
