package handlers

import (
	"net/http"

	"github.com/mwerner/todo-api/models"
	"github.com/mwerner/todo-api/query"
)

// Stats aggregates collection statistics. All reads run on one acquired
// connection so the derived pending count stays consistent with total and
// completed, and every priority bucket is present even at zero.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.acquire(w, r, "stats")
	if !ok {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var stats models.Stats

	if err := conn.QueryRowContext(ctx, query.CountAll).Scan(&stats.Total); err != nil {
		h.storeError(w, "stats", err)
		return
	}
	if err := conn.QueryRowContext(ctx, query.CountCompleted).Scan(&stats.Completed); err != nil {
		h.storeError(w, "stats", err)
		return
	}
	if err := conn.QueryRowContext(ctx, query.CountOverdue).Scan(&stats.Overdue); err != nil {
		h.storeError(w, "stats", err)
		return
	}
	stats.Pending = stats.Total - stats.Completed

	rows, err := conn.QueryContext(ctx, query.CountByPriority)
	if err != nil {
		h.storeError(w, "stats", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p models.Priority
			n int
		)
		if err := rows.Scan(&p, &n); err != nil {
			h.storeError(w, "stats", err)
			return
		}
		switch p {
		case models.PriorityLow:
			stats.ByPriority.Low = n
		case models.PriorityMedium:
			stats.ByPriority.Medium = n
		case models.PriorityHigh:
			stats.ByPriority.High = n
		}
	}
	if err := rows.Err(); err != nil {
		h.storeError(w, "stats", err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}
