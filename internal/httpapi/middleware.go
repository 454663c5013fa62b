package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
)

// recovery recovers from panics in HTTP handlers and returns HTTP 500,
// adapted from the teacher's proxy.Recovery.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// logging logs HTTP requests with method, path, status, and duration,
// never the request/response body, adapted from the teacher's
// proxy.Logging. DEBUG enables verbose request headers while keeping
// body logging off — bodies may carry message content or keys and must
// stay out of logs regardless of DEBUG (§6 DEBUG: "log writes still pass
// through redaction").
func logging(logger *slog.Logger, debug bool) func(http.Handler) http.Handler {
	headers := []string{"Content-Type"}
	if debug {
		headers = []string{"Content-Type", "Origin", "User-Agent"}
	}
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema:             httplog.SchemaECS.Concise(true),
		LogRequestHeaders:  headers,
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,
		RecoverPanics:      false,
	})
}

// applyMiddlewares applies middlewares to h in the order they appear; the
// first middleware is outermost.
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
