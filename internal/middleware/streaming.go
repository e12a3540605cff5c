package middleware

import (
	"context"
	"net/http"
	"time"
)

// StreamingTimeout bounds attachment downloads without buffering the body.
// maxDuration caps the whole transfer. The request is cancelled when no
// bytes have been written for idleTimeout.
func StreamingTimeout(maxDuration, idleTimeout time.Duration) func(http.Handler) http.Handler {
	if idleTimeout <= 0 || idleTimeout > maxDuration {
		idleTimeout = maxDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
			defer cancel()

			rc := http.NewResponseController(w)
			_ = rc.SetWriteDeadline(time.Now().Add(maxDuration))

			watchdog := time.AfterFunc(idleTimeout, func() {
				_ = rc.SetWriteDeadline(time.Now())
				cancel()
			})
			defer watchdog.Stop()

			next.ServeHTTP(&idleWriter{ResponseWriter: w, watchdog: watchdog, window: idleTimeout}, r.WithContext(ctx))
		})
	}
}

type idleWriter struct {
	http.ResponseWriter
	watchdog *time.Timer
	window   time.Duration
}

func (iw *idleWriter) Write(b []byte) (int, error) {
	iw.watchdog.Reset(iw.window)
	return iw.ResponseWriter.Write(b)
}

func (iw *idleWriter) Unwrap() http.ResponseWriter {
	return iw.ResponseWriter
}

func (iw *idleWriter) Flush() {
	if f, ok := iw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
