package sqlxrepos

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWhere(t *testing.T) {
	tests := []struct {
		name     string
		build    func(w *where)
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "empty",
			build:    func(w *where) {},
			wantSQL:  "",
			wantArgs: nil,
		},
		{
			name:     "nil list is ignored",
			build:    func(w *where) { w.in("team_id", nil) },
			wantSQL:  "",
			wantArgs: nil,
		},
		{
			name:     "empty list matches nothing",
			build:    func(w *where) { w.in("team_id", []string{}) },
			wantSQL:  " WHERE 1 = 0",
			wantArgs: nil,
		},
		{
			name: "conditions are and-ed",
			build: func(w *where) {
				w.add("status = ?", "active")
				w.in("team_id", []string{"a", "b"})
			},
			wantSQL:  " WHERE status = ? AND team_id IN (?)",
			wantArgs: []interface{}{"active", []string{"a", "b"}},
		},
		{
			name:     "search over columns",
			build:    func(w *where) { w.search("  Ada ", "first_name", "last_name") },
			wantSQL:  " WHERE (LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?)",
			wantArgs: []interface{}{"%ada%", "%ada%"},
		},
		{
			name:     "blank search is ignored",
			build:    func(w *where) { w.search("   ", "name") },
			wantSQL:  "",
			wantArgs: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var w where
			tc.build(&w)
			assert.Equal(t, tc.wantSQL, w.String())
			assert.Equal(t, tc.wantArgs, w.args)
		})
	}
}

func TestLimit(t *testing.T) {
	assert.Equal(t, "", limit(0))
	assert.Equal(t, "", limit(-3))
	assert.Equal(t, " LIMIT 10", limit(10))
}

func TestConstraintViolations(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantUnique bool
		wantFK     bool
	}{
		{name: "postgres unique", err: &pq.Error{Code: "23505"}, wantUnique: true},
		{name: "wrapped postgres unique", err: errors.Wrap(&pq.Error{Code: "23505"}, "inserting invoice"), wantUnique: true},
		{name: "postgres foreign key", err: &pq.Error{Code: "23503"}, wantFK: true},
		{name: "postgres check", err: &pq.Error{Code: "23514"}},
		{name: "other", err: errors.New("connection refused")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantUnique, isUniqueViolation(tc.err))
			assert.Equal(t, tc.wantFK, isForeignKeyViolation(tc.err))
		})
	}
}
