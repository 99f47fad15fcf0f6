package query

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mwerner/todo-api/models"
	"github.com/mwerner/todo-api/validation"
)

func TestList(t *testing.T) {
	tests := []struct {
		name     string
		opts     ListOptions
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "no options",
			opts:     ListOptions{},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			wantArgs: []any{10, 0},
		},
		{
			name:     "completed true",
			opts:     ListOptions{Completed: "true"},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 AND completed = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
			wantArgs: []any{true, 10, 0},
		},
		{
			name:     "completed other value coerces false",
			opts:     ListOptions{Completed: "yes"},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 AND completed = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
			wantArgs: []any{false, 10, 0},
		},
		{
			name:     "valid priority",
			opts:     ListOptions{Priority: "high"},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 AND priority = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
			wantArgs: []any{"high", 10, 0},
		},
		{
			name:     "invalid priority silently ignored",
			opts:     ListOptions{Priority: "urgent"},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			wantArgs: []any{10, 0},
		},
		{
			name:     "both filters keep placeholder order",
			opts:     ListOptions{Completed: "true", Priority: "low", Limit: "25", Offset: "5"},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 AND completed = $1 AND priority = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4",
			wantArgs: []any{true, "low", 25, 5},
		},
		{
			name:     "allowed sort column",
			opts:     ListOptions{Sort: "due_date"},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 ORDER BY due_date DESC LIMIT $1 OFFSET $2",
			wantArgs: []any{10, 0},
		},
		{
			name:     "unknown sort falls back to created_at",
			opts:     ListOptions{Sort: "id; DROP TABLE todos"},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			wantArgs: []any{10, 0},
		},
		{
			name:     "non-numeric limit and offset coerce to defaults",
			opts:     ListOptions{Limit: "abc", Offset: "-3"},
			wantSQL:  "SELECT " + Columns + " FROM todos WHERE 1=1 ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			wantArgs: []any{10, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := List(tt.opts)
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}
}

func TestGetByID(t *testing.T) {
	sql, args := GetByID(42)
	if want := "SELECT " + Columns + " FROM todos WHERE id = $1"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{42}) {
		t.Errorf("args = %#v", args)
	}
}

func TestInsert(t *testing.T) {
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	desc := "milk and eggs"

	t.Run("all fields", func(t *testing.T) {
		sql, args := Insert(&validation.CreatePayload{
			Title:       "Buy milk",
			Description: &desc,
			Priority:    models.PriorityHigh,
			DueDate:     &due,
		})
		want := "INSERT INTO todos (title, description, priority, due_date) VALUES ($1, $2, $3, $4) RETURNING " + Columns
		if sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if !reflect.DeepEqual(args, []any{"Buy milk", desc, "high", due}) {
			t.Errorf("args = %#v", args)
		}
	})

	t.Run("absent optionals bind NULL", func(t *testing.T) {
		_, args := Insert(&validation.CreatePayload{Title: "Buy milk", Priority: models.PriorityMedium})
		if !reflect.DeepEqual(args, []any{"Buy milk", nil, "medium", nil}) {
			t.Errorf("args = %#v", args)
		}
	})
}

func TestUpdate(t *testing.T) {
	str := func(s string) *string { return &s }
	boolp := func(b bool) *bool { return &b }
	prio := models.PriorityLow
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		payload  *validation.UpdatePayload
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "title only",
			payload:  &validation.UpdatePayload{Title: str("New title")},
			wantSQL:  "UPDATE todos SET title = $1 WHERE id = $2 RETURNING " + Columns,
			wantArgs: []any{"New title", 7},
		},
		{
			name:     "title and completed keep declared order",
			payload:  &validation.UpdatePayload{Title: str("x"), Completed: boolp(true)},
			wantSQL:  "UPDATE todos SET title = $1, completed = $2 WHERE id = $3 RETURNING " + Columns,
			wantArgs: []any{"x", true, 7},
		},
		{
			name:     "clear due date binds NULL",
			payload:  &validation.UpdatePayload{DueDateSet: true},
			wantSQL:  "UPDATE todos SET due_date = $1 WHERE id = $2 RETURNING " + Columns,
			wantArgs: []any{nil, 7},
		},
		{
			name: "all fields in declared order",
			payload: &validation.UpdatePayload{
				Title:       str("t"),
				Description: str("d"),
				Completed:   boolp(false),
				Priority:    &prio,
				DueDate:     &due,
				DueDateSet:  true,
			},
			wantSQL:  "UPDATE todos SET title = $1, description = $2, completed = $3, priority = $4, due_date = $5 WHERE id = $6 RETURNING " + Columns,
			wantArgs: []any{"t", "d", false, "low", due, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := Update(7, tt.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}

	t.Run("no fields", func(t *testing.T) {
		_, _, err := Update(7, &validation.UpdatePayload{})
		if !errors.Is(err, ErrNoFields) {
			t.Errorf("err = %v, want ErrNoFields", err)
		}
	})
}

func TestDelete(t *testing.T) {
	sql, args := Delete(3)
	if want := "DELETE FROM todos WHERE id = $1 RETURNING " + Columns; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{3}) {
		t.Errorf("args = %#v", args)
	}
}

func TestFilterIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want []int64
	}{
		{"mixed valid and invalid", []any{float64(1), float64(-1), "x", float64(2)}, []int64{1, 2}},
		{"fractional dropped", []any{float64(1.5), float64(3)}, []int64{3}},
		{"zero dropped", []any{float64(0), float64(4)}, []int64{4}},
		{"booleans and nil dropped", []any{true, nil, float64(9)}, []int64{9}},
		{"numeric strings dropped", []any{"3", float64(3)}, []int64{3}},
		{"all invalid yields empty", []any{"a", float64(-2), nil}, []int64{}},
		{"empty input", []any{}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterIDs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterIDs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBulkComplete(t *testing.T) {
	sql, args := BulkComplete([]int64{1, 2, 3})
	want := "UPDATE todos SET completed = true WHERE id IN ($1, $2, $3) RETURNING " + Columns
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{int64(1), int64(2), int64(3)}) {
		t.Errorf("args = %#v", args)
	}
}

func TestBulkDelete(t *testing.T) {
	sql, args := BulkDelete([]int64{5, 6})
	want := "DELETE FROM todos WHERE id IN ($1, $2) RETURNING id"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{int64(5), int64(6)}) {
		t.Errorf("args = %#v", args)
	}
}

func TestListSortNeverInterpolatesInput(t *testing.T) {
	sql, _ := List(ListOptions{Sort: "priority'; --"})
	if strings.Contains(sql, "'") {
		t.Errorf("sort input leaked into sql: %q", sql)
	}
}
