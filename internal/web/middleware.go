package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// requestLogger tags every request with an id and logs method, path,
// status and latency on completion.
func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			rr := &responseRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rr, r)

			log.WithFields(logrus.Fields{
				"http.req.id":       requestID,
				"http.req.method":   r.Method,
				"http.req.path":     r.URL.Path,
				"http.resp.status":  rr.status,
				"http.resp.bytes":   rr.bytes,
				"http.resp.took_ms": time.Since(start).Milliseconds(),
			}).Debug("request complete")
		})
	}
}
