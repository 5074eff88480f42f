package suite

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

const requestPath = "/_heft/request"

var requestSeq atomic.Int64

// buildRequest pushes one request through a middleware stack, router and
// handler per invocation and checks the status.
func buildRequest(context.Context, Env) (workload.Body, error) {
	handler := newRequestStack()

	return func(ctx context.Context, _ *store.Conn) error {
		req := httptest.NewRequestWithContext(ctx, http.MethodGet, requestPath, nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			return fmt.Errorf("request %s: status %d", requestPath, rec.Code)
		}

		return nil
	}, nil
}

func newRequestStack() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+requestPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})

	return withRequestID(withRecover(mux))
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strconv.FormatInt(requestSeq.Add(1), 36)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
