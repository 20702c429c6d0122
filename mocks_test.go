package dbauth_test

import (
	"context"
	"fmt"
	"slices"

	"github.com/goliatone/go-dbauth"
	goerrors "github.com/goliatone/go-errors"
)

// fakeSession implements dbauth.Session in memory.
type fakeSession struct {
	id          string
	user        dbauth.Record
	hasUser     bool
	updatedAt   int64
	regenerated int
	destroyed   bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{id: "sess-0"}
}

func (s *fakeSession) ID() string {
	return s.id
}

func (s *fakeSession) User() (dbauth.Record, bool) {
	if !s.hasUser {
		return nil, false
	}
	return s.user, true
}

func (s *fakeSession) SetUser(user dbauth.Record) {
	s.user = user
	s.hasUser = true
}

func (s *fakeSession) DeleteUser() {
	s.user = nil
	s.hasUser = false
}

func (s *fakeSession) UpdatedAt() int64 {
	return s.updatedAt
}

func (s *fakeSession) SetUpdatedAt(epoch int64) {
	s.updatedAt = epoch
}

func (s *fakeSession) Regenerate() error {
	s.regenerated++
	s.id = fmt.Sprintf("sess-%d", s.regenerated)
	return nil
}

func (s *fakeSession) Destroy() error {
	s.destroyed = true
	s.user = nil
	s.hasUser = false
	return nil
}

// fakeRepo is an in-memory dbauth.Repository keeping rows per table in
// insertion order.
type fakeRepo struct {
	rows map[string][]dbauth.Record

	createErr    error
	selectErr    error
	createCalls  int
	selectCalls  int
	singleCalls  int
	updateCalls  int
	lastInserted dbauth.Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string][]dbauth.Record{}}
}

func (r *fakeRepo) seed(table string, rows ...dbauth.Record) {
	r.rows[table] = append(r.rows[table], rows...)
}

func project(row dbauth.Record, columns []string) dbauth.Record {
	out := dbauth.Record{}
	for _, col := range columns {
		if v, ok := row[col]; ok {
			out[col] = v
		}
	}
	return out
}

func (r *fakeRepo) SelectAll(_ context.Context, table *dbauth.Table, columns []string, eqColumn string, value any, limit int) ([]dbauth.Record, error) {
	r.selectCalls++
	if r.selectErr != nil {
		return nil, r.selectErr
	}

	out := []dbauth.Record{}
	for _, row := range r.rows[table.Name] {
		if row[eqColumn] != value {
			continue
		}
		out = append(out, project(row, columns))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRepo) SelectSingle(_ context.Context, table *dbauth.Table, columns []string, id any) (dbauth.Record, error) {
	r.singleCalls++
	for _, row := range r.rows[table.Name] {
		if row[table.Pk()] == id {
			return project(row, columns), nil
		}
	}
	return nil, dbauth.ErrRecordNotFound
}

func (r *fakeRepo) CreateSingle(_ context.Context, table *dbauth.Table, data dbauth.Record) error {
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}

	row := dbauth.Record{}
	for k, v := range data {
		row[k] = v
	}
	if _, ok := row[table.Pk()]; !ok {
		row[table.Pk()] = int64(len(r.rows[table.Name]) + 1)
	}

	r.lastInserted = row
	r.rows[table.Name] = append(r.rows[table.Name], row)
	return nil
}

func (r *fakeRepo) UpdateSingle(_ context.Context, table *dbauth.Table, data dbauth.Record, id any) (int64, error) {
	r.updateCalls++
	for _, row := range r.rows[table.Name] {
		if row[table.Pk()] != id {
			continue
		}
		for k, v := range data {
			row[k] = v
		}
		return 1, nil
	}
	return 0, nil
}

var _ dbauth.Repository = (*fakeRepo)(nil)
var _ dbauth.Session = (*fakeSession)(nil)

func usersTable(extra ...string) *dbauth.Table {
	return &dbauth.Table{
		Name:       "users",
		Columns:    append([]string{"id", "username", "password"}, extra...),
		PrimaryKey: "id",
	}
}

func testReflection(tables ...*dbauth.Table) *dbauth.StaticReflection {
	if len(tables) == 0 {
		tables = []*dbauth.Table{usersTable()}
	}
	return dbauth.NewStaticReflection(slices.Clone(tables)...)
}

func errMetadata(err error) map[string]any {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Metadata
	}
	return nil
}
