package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DebugLogging logs every request once its handler returns. Websocket requests are logged when
// the connection closes.
func DebugLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"remote":  r.RemoteAddr,
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Debug("request")
	})
}
