package dbauth

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// BunRepository implements Repository over a Bun database handle. Column and
// table names arrive at query time, so everything is built with dynamic
// identifiers instead of model structs.
type BunRepository struct {
	db *bun.DB
}

var _ Repository = (*BunRepository)(nil)

func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

func (r *BunRepository) SelectAll(ctx context.Context, table *Table, columns []string, eqColumn string, value any, limit int) ([]Record, error) {
	var rows []map[string]any

	q := r.db.NewSelect().
		Table(table.Name).
		Column(columns...).
		Where("? = ?", bun.Ident(eqColumn), value).
		OrderExpr("? ASC", bun.Ident(table.Pk()))

	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}

	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = Record(row)
	}
	return out, nil
}

func (r *BunRepository) SelectSingle(ctx context.Context, table *Table, columns []string, id any) (Record, error) {
	rows, err := r.SelectAll(ctx, table, columns, table.Pk(), id, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrRecordNotFound
	}
	return rows[0], nil
}

func (r *BunRepository) CreateSingle(ctx context.Context, table *Table, data Record) error {
	values := map[string]any(data)

	_, err := r.db.NewInsert().
		Model(&values).
		Table(table.Name).
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return err
	}
	return nil
}

func (r *BunRepository) UpdateSingle(ctx context.Context, table *Table, data Record, id any) (int64, error) {
	values := map[string]any(data)

	res, err := r.db.NewUpdate().
		Model(&values).
		Table(table.Name).
		Where("? = ?", bun.Ident(table.Pk()), id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}
