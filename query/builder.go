// Package query assembles parameterized statements for the todos table. Every
// function is pure and returns the statement text together with its arguments
// in placeholder order; nothing here touches the store.
package query

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mwerner/todo-api/models"
	"github.com/mwerner/todo-api/validation"
)

// ErrNoFields is returned when an update carries nothing to set. The caller
// must surface it as a validation failure, never as a store call.
var ErrNoFields = errors.New("no fields to update")

// Columns is the full todo column list, in scan order.
const Columns = "id, title, description, completed, priority, due_date, created_at, updated_at"

const (
	defaultLimit  = 10
	defaultOffset = 0
)

// sortable is the allow-list of ORDER BY columns. Anything else falls back to
// created_at.
var sortable = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"due_date":   true,
	"priority":   true,
}

// builder accumulates statement text and arguments so that placeholder
// numbering always matches argument position, no matter which optional
// clauses get appended.
type builder struct {
	sql  strings.Builder
	args []any
}

func (b *builder) write(s string) {
	b.sql.WriteString(s)
}

// bind appends v to the argument list and returns its placeholder.
func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// ListOptions carries the raw query-string values for a list request. Empty
// strings mean the parameter was absent.
type ListOptions struct {
	Completed string
	Priority  string
	Sort      string
	Limit     string
	Offset    string
}

// List builds the filtered, sorted, paginated select. Invalid priorities are
// ignored rather than rejected, an unknown sort column falls back to
// created_at, and non-numeric limit/offset coerce to their defaults.
func List(opts ListOptions) (string, []any) {
	var b builder
	b.write("SELECT " + Columns + " FROM todos WHERE 1=1")

	if opts.Completed != "" {
		b.write(" AND completed = " + b.bind(opts.Completed == "true"))
	}
	if models.Priority(opts.Priority).Valid() {
		b.write(" AND priority = " + b.bind(opts.Priority))
	}

	sort := opts.Sort
	if !sortable[sort] {
		sort = "created_at"
	}
	b.write(" ORDER BY " + sort + " DESC")
	b.write(" LIMIT " + b.bind(intOrDefault(opts.Limit, defaultLimit)))
	b.write(" OFFSET " + b.bind(intOrDefault(opts.Offset, defaultOffset)))

	return b.sql.String(), b.args
}

// GetByID builds the single-row select.
func GetByID(id int) (string, []any) {
	var b builder
	b.write("SELECT " + Columns + " FROM todos WHERE id = " + b.bind(id))
	return b.sql.String(), b.args
}

// Insert builds the create statement, returning the full created row. Absent
// description and due date become NULL; the payload has already defaulted the
// priority.
func Insert(p *validation.CreatePayload) (string, []any) {
	var b builder
	b.write("INSERT INTO todos (title, description, priority, due_date) VALUES (")
	b.write(b.bind(p.Title))
	b.write(", " + b.bind(nullableString(p.Description)))
	b.write(", " + b.bind(string(p.Priority)))
	b.write(", " + b.bind(nullableTime(p.DueDate)))
	b.write(") RETURNING " + Columns)
	return b.sql.String(), b.args
}

// updateColumns fixes the SET-clause order. Dynamic assembly iterates this
// table, never the payload's own keys, so a field can only ever bind to its
// declared column.
var updateColumns = []struct {
	column string
	value  func(p *validation.UpdatePayload) (any, bool)
}{
	{"title", func(p *validation.UpdatePayload) (any, bool) {
		if p.Title == nil {
			return nil, false
		}
		return *p.Title, true
	}},
	{"description", func(p *validation.UpdatePayload) (any, bool) {
		if p.Description == nil {
			return nil, false
		}
		return *p.Description, true
	}},
	{"completed", func(p *validation.UpdatePayload) (any, bool) {
		if p.Completed == nil {
			return nil, false
		}
		return *p.Completed, true
	}},
	{"priority", func(p *validation.UpdatePayload) (any, bool) {
		if p.Priority == nil {
			return nil, false
		}
		return string(*p.Priority), true
	}},
	{"due_date", func(p *validation.UpdatePayload) (any, bool) {
		if !p.DueDateSet {
			return nil, false
		}
		return nullableTime(p.DueDate), true
	}},
}

// Update builds the partial update. Only fields present in the payload become
// SET clauses; the id predicate is always the final parameter. With nothing
// to set it returns ErrNoFields and must not reach the store.
func Update(id int, p *validation.UpdatePayload) (string, []any, error) {
	var b builder
	b.write("UPDATE todos SET ")

	n := 0
	for _, uc := range updateColumns {
		v, ok := uc.value(p)
		if !ok {
			continue
		}
		if n > 0 {
			b.write(", ")
		}
		b.write(uc.column + " = " + b.bind(v))
		n++
	}
	if n == 0 {
		return "", nil, ErrNoFields
	}

	b.write(" WHERE id = " + b.bind(id))
	b.write(" RETURNING " + Columns)
	return b.sql.String(), b.args, nil
}

// Delete builds the single-row delete, returning the deleted row so the
// caller can tell "not found" from "deleted".
func Delete(id int) (string, []any) {
	var b builder
	b.write("DELETE FROM todos WHERE id = " + b.bind(id) + " RETURNING " + Columns)
	return b.sql.String(), b.args
}

// FilterIDs keeps the positive integers from a decoded ids array, silently
// dropping everything else. JSON numbers decode as float64; fractional or
// out-of-range values are not integers.
func FilterIDs(ids []any) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		f, ok := v.(float64)
		if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt64 {
			continue
		}
		out = append(out, int64(f))
	}
	return out
}

// BulkComplete marks every listed id completed in one statement, returning
// the affected rows. The caller must reject an empty id set first.
func BulkComplete(ids []int64) (string, []any) {
	var b builder
	b.write("UPDATE todos SET completed = true WHERE id IN (" + b.bindIDs(ids) + ")")
	b.write(" RETURNING " + Columns)
	return b.sql.String(), b.args
}

// BulkDelete removes every listed id in one statement, returning the deleted
// ids for an accurate count.
func BulkDelete(ids []int64) (string, []any) {
	var b builder
	b.write("DELETE FROM todos WHERE id IN (" + b.bindIDs(ids) + ") RETURNING id")
	return b.sql.String(), b.args
}

func (b *builder) bindIDs(ids []int64) string {
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = b.bind(id)
	}
	return strings.Join(placeholders, ", ")
}

// Aggregate statements. Overdue compares against the store clock, matching
// the trigger's notion of time.
const (
	CountAll        = "SELECT COUNT(*) FROM todos"
	CountCompleted  = "SELECT COUNT(*) FROM todos WHERE completed = true"
	CountOverdue    = "SELECT COUNT(*) FROM todos WHERE due_date < NOW() AND completed = false"
	CountByPriority = "SELECT priority, COUNT(*) FROM todos GROUP BY priority"
)

func intOrDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
