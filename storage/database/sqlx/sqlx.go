// Package sqlxrepos implements the core repositories with hand written SQL run through sqlx.
// Queries use '?' placeholders and are rebound to the driver's bind type before execution.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/touchline/academy/core"
)

// where accumulates the AND-ed conditions of a query along with their arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// in restricts col to values. An empty, non nil list matches nothing; a nil list is ignored.
func (w *where) in(col string, values []string) {
	if values == nil {
		return
	}
	if len(values) == 0 {
		w.add("1 = 0")
		return
	}
	w.add(col+" IN (?)", values)
}

// search adds a case-insensitive substring match on any of cols.
func (w *where) search(term string, cols ...string) {
	term = strings.ToLower(core.CleanString(term))
	if term == "" {
		return
	}
	pattern := "%" + term + "%"
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, "LOWER("+col+") LIKE ?")
		w.args = append(w.args, pattern)
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// build expands the IN lists of query and rebinds it for exec.
func build(exec core.DBExecutor, query string, args ...interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "building query")
	}
	return exec.Rebind(q), args, nil
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, args, err := build(exec, query, args...)
	if err != nil {
		return err
	}
	return exec.SelectContext(ctx, dest, q, args...)
}

func get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, args, err := build(exec, query, args...)
	if err != nil {
		return err
	}
	return exec.GetContext(ctx, dest, q, args...)
}

func execute(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (int64, error) {
	q, args, err := build(exe, query, args...)
	if err != nil {
		return 0, err
	}
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func limit(n int) string {
	if n <= 0 {
		return ""
	}
	return " LIMIT " + strconv.Itoa(n)
}

// trapNoRows maps "no rows" errors to notFound.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// constraint violations, as reported by postgres and sqlite
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqForeignKeyViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
			strings.Contains(liteErr.Error(), "FOREIGN KEY constraint failed")
	}
	return false
}
