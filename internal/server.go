package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/dal"
	"github.com/vibbin/vibbin/internal/middleware"
	"github.com/vibbin/vibbin/internal/presence"
	"github.com/vibbin/vibbin/internal/relay"
	"github.com/vibbin/vibbin/internal/routes"
	"golang.org/x/net/websocket"
)

// NewHandler wires the relay, presence directory and routes on top of db
func NewHandler(db *sql.DB, debug bool) http.Handler {
	directory := presence.NewDirectory()
	r := relay.New(dal.Store{DB: db}, directory)

	// Initialize handlers with dependencies
	h := routes.NewRouteHandler(db, directory, r)

	mux := http.NewServeMux()
	createRoutes(mux, h)

	// apply middlewares
	var handler http.Handler
	if debug {
		handler = middleware.DebugLogging(mux)
	} else {
		handler = mux
	}
	return middleware.BasicAuth(handler, db)
}

func CreateAndListen(db *sql.DB, debug bool, host string, port int) {
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           NewHandler(db, debug),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// graceful shutdown channel
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// run server
	go func() {
		logrus.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("http server error: %v", err)
		}
		logrus.Info("Stopped serving new connections.")
	}()

	// recieve stop signals
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// hijacked websockets are not tracked by Shutdown
	if err := server.Shutdown(ctx); err != nil {
		logrus.Fatalf("http shutdown error: %v", err)
	}
	logrus.Info("Graceful shutdown complete.")
}

// createRoutes creates the routing rules for the webserver. Only the REST routes get a handler
// timeout; http.TimeoutHandler does not support hijacking.
func createRoutes(mux *http.ServeMux, h *routes.RouteHandler) {
	signalHandler := websocket.Server{
		Handshake: websocketHandshake,
		Handler:   h.SignalWS,
	}
	mux.Handle("GET /ws", signalHandler)

	mux.Handle("GET /status", http.TimeoutHandler(http.HandlerFunc(h.Status), 30*time.Second, ""))
	mux.Handle("GET /calls/history", http.TimeoutHandler(http.HandlerFunc(h.CallHistory), 30*time.Second, ""))
}

// clients are not browsers, so there is no origin to check
func websocketHandshake(_ *websocket.Config, _ *http.Request) error { return nil }
