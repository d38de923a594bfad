package repair

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
)

// Inspector reads the live schema of the connected database.
type Inspector struct {
	exec core.DBExecutor
}

func NewInspector(exec core.DBExecutor) *Inspector {
	return &Inspector{exec: exec}
}

func (in *Inspector) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := in.exec.QueryRowxContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?`, table,
	).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "inspecting table %s", table)
	}
	return n > 0, nil
}

func (in *Inspector) IndexExists(ctx context.Context, table, index string) (bool, error) {
	var n int
	err := in.exec.QueryRowxContext(ctx, `
		SELECT COUNT(*) FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`, table, index,
	).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "inspecting index %s.%s", table, index)
	}
	return n > 0, nil
}

// Columns returns the column names of table in ordinal order.
func (in *Inspector) Columns(ctx context.Context, table string) ([]string, error) {
	var cols []string
	err := sqlx.SelectContext(ctx, in.exec, &cols, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, table,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "inspecting columns of %s", table)
	}
	return cols, nil
}

// schema caches inspection results for one run. In a dry run it is updated
// as if every planned statement had succeeded.
type schema struct {
	in      *Inspector
	tables  map[string]bool
	columns map[string][]string
	actual  map[string][]string
	order   []string
}

func newSchema(in *Inspector) *schema {
	return &schema{
		in:      in,
		tables:  make(map[string]bool),
		columns: make(map[string][]string),
		actual:  make(map[string][]string),
	}
}

func (s *schema) hasTable(ctx context.Context, table string) (bool, error) {
	if ok, seen := s.tables[table]; seen {
		return ok, nil
	}
	ok, err := s.in.TableExists(ctx, table)
	if err != nil {
		return false, err
	}
	s.tables[table] = ok
	return ok, nil
}

func (s *schema) cols(ctx context.Context, table string) ([]string, error) {
	if cols, ok := s.columns[table]; ok {
		return cols, nil
	}
	cols, err := s.in.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	s.columns[table] = cols
	s.actual[table] = append([]string(nil), cols...)
	s.order = append(s.order, table)
	return cols, nil
}

func (s *schema) hasColumn(ctx context.Context, table, column string) (bool, error) {
	cols, err := s.cols(ctx, table)
	if err != nil {
		return false, err
	}
	return indexOf(cols, column) >= 0, nil
}

// addColumn records column after the named column, or last when after is
// unknown.
func (s *schema) addColumn(table, column, after string) {
	cols := s.columns[table]
	at := len(cols)
	if i := indexOf(cols, after); i >= 0 {
		at = i + 1
	}
	out := make([]string, 0, len(cols)+1)
	out = append(out, cols[:at]...)
	out = append(out, column)
	s.columns[table] = append(out, cols[at:]...)
}

func (s *schema) renameColumn(table, from, to string) bool {
	cols := s.columns[table]
	i := indexOf(cols, from)
	if i < 0 {
		return false
	}
	cols[i] = to
	return true
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
