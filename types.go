package dbauth

import (
	"context"
	"fmt"

	"github.com/goliatone/go-router"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Record is a row or session payload, a mapping from column name to value.
type Record map[string]any

// GetString fetches a value by key, returning an empty string when the key is
// absent or the value is not a string.
func (r Record) GetString(key string) string {
	if r == nil {
		return ""
	}
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Clone returns a shallow copy so callers can strip columns without mutating
// the source row.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Reflection resolves a table name into its column schema.
type Reflection interface {
	Table(ctx context.Context, name string) (*Table, error)
}

// Repository reads and writes rows by table and column list. Equality lookups
// must order rows deterministically by primary key. CreateSingle reports
// uniqueness violations through an error matched by IsDuplicateKey.
type Repository interface {
	SelectAll(ctx context.Context, table *Table, columns []string, eqColumn string, value any, limit int) ([]Record, error)
	SelectSingle(ctx context.Context, table *Table, columns []string, id any) (Record, error)
	CreateSingle(ctx context.Context, table *Table, data Record) error
	UpdateSingle(ctx context.Context, table *Table, data Record, id any) (int64, error)
}

// Session is the per-client authenticated state. It holds at most one user
// snapshot plus an updatedAt timestamp in epoch seconds.
type Session interface {
	ID() string
	User() (Record, bool)
	SetUser(Record)
	DeleteUser()
	UpdatedAt() int64
	SetUpdatedAt(epoch int64)
	Regenerate() error
	Destroy() error
}

// SessionStore resolves the request's session, creating one lazily when the
// client has none yet.
type SessionStore interface {
	Get(c router.Context) (Session, error)
}

// Responder frames protocol outcomes. The default implementation renders
// JSON; replace it to integrate with an outer response envelope.
type Responder interface {
	Success(c router.Context, record Record) error
	Error(c router.Context, err error) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] DBAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] DBAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] DBAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
