package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// newMockDB wraps a sqlmock connection in the sqlx-backed DB used by the
// repositories. Transaction-based methods need the real sqlx wrapper, not a
// hand-rolled stub.
func newMockDB(t *testing.T) (DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	return &PostgresDB{DB: sqlx.NewDb(mockDb, "sqlmock")}, mock
}
