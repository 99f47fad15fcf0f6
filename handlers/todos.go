package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mwerner/todo-api/models"
	"github.com/mwerner/todo-api/query"
	"github.com/mwerner/todo-api/validation"
)

// todoID parses the path id. Non-numeric ids are rejected before any
// statement is built.
func todoID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

// ListTodos serves the filtered, sorted, paginated collection.
func (h *Handlers) ListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stmt, args := query.List(query.ListOptions{
		Completed: q.Get("completed"),
		Priority:  q.Get("priority"),
		Sort:      q.Get("sort"),
		Limit:     q.Get("limit"),
		Offset:    q.Get("offset"),
	})

	conn, ok := h.acquire(w, r, "list todos")
	if !ok {
		return
	}
	defer conn.Close()

	rows, err := conn.QueryContext(r.Context(), stmt, args...)
	if err != nil {
		h.storeError(w, "list todos", err)
		return
	}
	defer rows.Close()

	todos := make([]models.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			h.storeError(w, "list todos", err)
			return
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		h.storeError(w, "list todos", err)
		return
	}

	respondWithJSON(w, http.StatusOK, todos)
}

// GetTodo serves a single todo by id.
func (h *Handlers) GetTodo(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid todo ID")
		return
	}

	conn, ok := h.acquire(w, r, "get todo")
	if !ok {
		return
	}
	defer conn.Close()

	stmt, args := query.GetByID(id)
	todo, err := scanTodo(conn.QueryRowContext(r.Context(), stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		h.storeError(w, "get todo", err)
		return
	}

	respondWithJSON(w, http.StatusOK, todo)
}

// CreateTodo validates and inserts a new todo, responding with the created
// row.
func (h *Handlers) CreateTodo(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	payload, verrs := validation.ValidateCreate(fields)
	if len(verrs) > 0 {
		respondValidationErrors(w, verrs)
		return
	}

	conn, ok := h.acquire(w, r, "create todo")
	if !ok {
		return
	}
	defer conn.Close()

	stmt, args := query.Insert(payload)
	todo, err := scanTodo(conn.QueryRowContext(r.Context(), stmt, args...))
	if err != nil {
		h.storeError(w, "create todo", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, todo)
}

// UpdateTodo applies a partial update, responding with the updated row.
func (h *Handlers) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid todo ID")
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	payload, verrs := validation.ValidateUpdate(fields)
	if len(verrs) > 0 {
		respondValidationErrors(w, verrs)
		return
	}

	stmt, args, err := query.Update(id, payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, "No valid fields to update")
		return
	}

	conn, ok := h.acquire(w, r, "update todo")
	if !ok {
		return
	}
	defer conn.Close()

	todo, err := scanTodo(conn.QueryRowContext(r.Context(), stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		h.storeError(w, "update todo", err)
		return
	}

	respondWithJSON(w, http.StatusOK, todo)
}

// DeleteTodo removes a todo, responding with the deleted row so the client
// sees what went away.
func (h *Handlers) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid todo ID")
		return
	}

	conn, ok := h.acquire(w, r, "delete todo")
	if !ok {
		return
	}
	defer conn.Close()

	stmt, args := query.Delete(id)
	todo, err := scanTodo(conn.QueryRowContext(r.Context(), stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		h.storeError(w, "delete todo", err)
		return
	}

	respondWithJSON(w, http.StatusOK, todo)
}

// bulkIDs decodes the {ids: [...]} body and keeps only positive integers.
// An empty result fails the request before any store call.
func bulkIDs(r *http.Request) ([]int64, error) {
	defer r.Body.Close()
	var body struct {
		IDs []any `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return query.FilterIDs(body.IDs), nil
}

// BulkComplete marks every valid id completed in one statement.
func (h *Handlers) BulkComplete(w http.ResponseWriter, r *http.Request) {
	ids, err := bulkIDs(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(ids) == 0 {
		respondError(w, http.StatusBadRequest, "No valid IDs provided")
		return
	}

	conn, ok := h.acquire(w, r, "bulk complete")
	if !ok {
		return
	}
	defer conn.Close()

	stmt, args := query.BulkComplete(ids)
	rows, err := conn.QueryContext(r.Context(), stmt, args...)
	if err != nil {
		h.storeError(w, "bulk complete", err)
		return
	}
	defer rows.Close()

	todos := make([]models.Todo, 0, len(ids))
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			h.storeError(w, "bulk complete", err)
			return
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		h.storeError(w, "bulk complete", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"count": len(todos),
		"todos": todos,
	})
}

// BulkDelete removes every valid id in one statement, responding with the
// affected count.
func (h *Handlers) BulkDelete(w http.ResponseWriter, r *http.Request) {
	ids, err := bulkIDs(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(ids) == 0 {
		respondError(w, http.StatusBadRequest, "No valid IDs provided")
		return
	}

	conn, ok := h.acquire(w, r, "bulk delete")
	if !ok {
		return
	}
	defer conn.Close()

	stmt, args := query.BulkDelete(ids)
	rows, err := conn.QueryContext(r.Context(), stmt, args...)
	if err != nil {
		h.storeError(w, "bulk delete", err)
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			h.storeError(w, "bulk delete", err)
			return
		}
		count++
	}
	if err := rows.Err(); err != nil {
		h.storeError(w, "bulk delete", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"count": count})
}
