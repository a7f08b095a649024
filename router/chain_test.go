package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChain_MiddlewareRunsInDeclaredOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	h := NewChain(base).WithMiddleware(mw("first"), mw("second")).Handler()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"first", "second", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestChain_ObserversRunAfterHandler(t *testing.T) {
	var ran []string
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ran = append(ran, "handler") })
	observer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ran = append(ran, "observer") })

	h := NewChain(base).WithObservers(observer).Handler()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(ran) != 2 || ran[0] != "handler" || ran[1] != "observer" {
		t.Errorf("ran = %v, want [handler observer]", ran)
	}
}

func TestNewChain_NilHandlerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for nil handler")
		}
	}()
	NewChain(nil)
}
