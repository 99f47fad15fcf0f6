package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mwerner/todo-api/config"
	"github.com/mwerner/todo-api/database"
	"github.com/mwerner/todo-api/handlers"
	"github.com/mwerner/todo-api/logging"
	"github.com/mwerner/todo-api/middleware"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	if err := database.EnsureSchema(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to ensure schema")
	}

	h := handlers.New(db, log, cfg.DB.AcquireTimeout, version)
	router := newRouter(h, log)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.WithField("addr", cfg.Server.Addr()).Info("server listening")

	select {
	case err := <-errCh:
		log.WithError(err).Fatal("server stopped unexpectedly")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// newRouter wires the HTTP surface. Fixed segments (stats, bulk) register
// before the id route so they are never captured as an id.
func newRouter(h *handlers.Handlers, log *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recover(log), middleware.RequestLogger(log))
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handlers.NotFound)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/todos").Subrouter()
	api.HandleFunc("", h.ListTodos).Methods(http.MethodGet)
	api.HandleFunc("", h.CreateTodo).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/bulk/complete", h.BulkComplete).Methods(http.MethodPost)
	api.HandleFunc("/bulk/delete", h.BulkDelete).Methods(http.MethodDelete)
	api.HandleFunc("/{id}", h.GetTodo).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.UpdateTodo).Methods(http.MethodPut)
	api.HandleFunc("/{id}", h.DeleteTodo).Methods(http.MethodDelete)

	return router
}
