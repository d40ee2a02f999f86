package cache

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/citypulse/api-edge/internal/metrics"
)

// Options tunes one cached route family.
type Options struct {
	TTL time.Duration
	// Skip marks a request as not cacheable. Requests carrying an
	// Authorization header are always skipped, since responses may be
	// personalized.
	Skip func(r *http.Request) bool
}

// Middleware wraps a read handler in the cache facade: serve the stored
// payload on hit, otherwise run the handler, tee its response, and store it
// when it is a 200 with a success envelope. Caching stays invisible to
// clients apart from the X-Cache header.
func (c *Cache) Middleware(prefix string, opts Options) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.Header.Get("Authorization") != "" ||
				(opts.Skip != nil && opts.Skip(r)) {
				metrics.CacheOperations.WithLabelValues(prefix, "skip").Inc()
				next.ServeHTTP(w, r)
				return
			}

			key := Key(prefix, requestParams(r))

			payload, ok, err := c.Get(r.Context(), key)
			switch {
			case err != nil:
				metrics.CacheOperations.WithLabelValues(prefix, "error").Inc()
			case ok:
				metrics.CacheOperations.WithLabelValues(prefix, "hit").Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				w.Write(payload)
				return
			default:
				metrics.CacheOperations.WithLabelValues(prefix, "miss").Inc()
			}

			w.Header().Set("X-Cache", "MISS")

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode == http.StatusOK && isSuccessEnvelope(recorder.body.Bytes()) {
				c.Set(r.Context(), key, recorder.body.Bytes(), opts.TTL)
			}
		})
	}
}

// requestParams merges route variables and query parameters; both identify
// the response being memoized.
func requestParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	for k, v := range mux.Vars(r) {
		params[k] = v
	}
	return params
}

// isSuccessEnvelope reports whether the payload is a success:true envelope.
// Errors and non-success payloads are never cached.
func isSuccessEnvelope(payload []byte) bool {
	var probe struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	return probe.Success
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	headerWritten bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.headerWritten {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.headerWritten = true
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	if r.body != nil {
		r.body.Write(b)
	}
	return size, err
}
