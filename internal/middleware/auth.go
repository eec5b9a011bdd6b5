package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/crypto"
	"github.com/vibbin/vibbin/internal/dal"
	"github.com/vibbin/vibbin/internal/schemas"
	"golang.org/x/net/websocket"
)

type contextKey string

const authKey contextKey = "authorization"

// BasicAuth is a middleware that mandates basic auth is present in the headers and validates it
// against the users table. The authenticated user is stored in the request context.
func BasicAuth(next http.Handler, db *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		username = strings.TrimSpace(username)
		if !ok {
			writeAuthError(w)
			return
		}

		user, err := dal.GetUserByUsername(r.Context(), db, username)
		if err == nil {
			err = crypto.CompareHashAndPassword(user.Password, password)
		}
		if err != nil {
			logrus.WithField("username", username).Infof("auth error: %v", err)
			writeAuthError(w)
			return
		}

		ctx := context.WithValue(r.Context(), authKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="vibbin"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// GetUser is used in endpoint handlers to retrieve the user that created the request.
// Returns nil outside of BasicAuth.
func GetUser(r *http.Request) *schemas.User {
	user, _ := r.Context().Value(authKey).(*schemas.User)
	return user
}

// GetUserWS is GetUser for websocket handlers
func GetUserWS(ws *websocket.Conn) *schemas.User {
	return GetUser(ws.Request())
}
