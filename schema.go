package dbauth

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Table is the read-only column schema for one table, as supplied by the
// Reflection collaborator.
type Table struct {
	Name       string
	Columns    []string
	PrimaryKey string
}

// ColumnNames returns the ordered column list. The slice is a copy; callers
// may append to it freely.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	copy(out, t.Columns)
	return out
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Pk returns the primary key column name.
func (t *Table) Pk() string {
	return t.PrimaryKey
}

// StaticReflection is a Reflection backed by schemas registered up front.
// Reflection is a capability the embedding application owns; most CRUD
// layers already know their tables and can hand them over at startup.
type StaticReflection struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

var _ Reflection = (*StaticReflection)(nil)

func NewStaticReflection(tables ...*Table) *StaticReflection {
	r := &StaticReflection{tables: map[string]*Table{}}
	for _, t := range tables {
		r.tables[t.Name] = t
	}
	return r
}

// Register adds or replaces a table schema.
func (r *StaticReflection) Register(table *Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[table.Name] = table
}

func (r *StaticReflection) Table(_ context.Context, name string) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[name]
	if !ok {
		return nil, goerrors.New("table not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"table": name})
	}
	return table, nil
}
