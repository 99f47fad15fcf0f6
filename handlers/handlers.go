// Package handlers implements the HTTP operations for the todo resource. It
// owns the mapping from typed errors to HTTP statuses: validation failures
// become 400s, missing rows 404s, and store failures are logged in full and
// surfaced as a generic 500.
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mwerner/todo-api/database"
	"github.com/mwerner/todo-api/models"
	"github.com/mwerner/todo-api/validation"
)

// Handlers holds the shared database pool and logger for all request
// handlers.
type Handlers struct {
	db             *sql.DB
	log            *logrus.Logger
	acquireTimeout time.Duration
	version        string
}

// New constructs the handler set.
func New(db *sql.DB, log *logrus.Logger, acquireTimeout time.Duration, version string) *Handlers {
	return &Handlers{
		db:             db,
		log:            log,
		acquireTimeout: acquireTimeout,
		version:        version,
	}
}

// respondWithJSON formats and sends a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondError sends the standard error body.
func respondError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondValidationErrors renders field errors. Payload-level failures carry
// just the message; field-level ones also list every offending field.
func respondValidationErrors(w http.ResponseWriter, errs []validation.FieldError) {
	if len(errs) == 1 && errs[0].Field == "payload" {
		respondError(w, http.StatusBadRequest, errs[0].Message)
		return
	}
	respondWithJSON(w, http.StatusBadRequest, map[string]any{
		"error":   errs[0].Message,
		"details": errs,
	})
}

// acquire checks a connection out of the pool for the request, responding 503
// when the pool cannot supply one within the acquire timeout. On success the
// caller must Close the connection on every path.
func (h *Handlers) acquire(w http.ResponseWriter, r *http.Request, op string) (*sql.Conn, bool) {
	conn, err := database.Acquire(r.Context(), h.db, h.acquireTimeout)
	if err != nil {
		h.log.WithError(err).WithField("op", op).Error("could not acquire database connection")
		respondError(w, http.StatusServiceUnavailable, "Service unavailable")
		return nil, false
	}
	return conn, true
}

// storeError logs the failure with full detail and responds with the generic
// 500 body; store errors never reach the client verbatim.
func (h *Handlers) storeError(w http.ResponseWriter, op string, err error) {
	h.log.WithError(err).WithField("op", op).Error("database operation failed")
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeFields reads a JSON object body into its raw fields.
func decodeFields(r *http.Request) (map[string]json.RawMessage, error) {
	defer r.Body.Close()
	fields := map[string]json.RawMessage{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTodo reads one todo row in query.Columns order.
func scanTodo(row rowScanner) (*models.Todo, error) {
	var (
		t    models.Todo
		desc sql.NullString
		due  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &desc, &t.Completed, &t.Priority, &due, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return &t, nil
}

// Health reports liveness. It never touches the store.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
	})
}

// NotFound is the catch-all for unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Endpoint not found")
}
