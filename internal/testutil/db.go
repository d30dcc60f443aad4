package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"

	"invertix/internal/ledger"
)

// NewTestLedger opens an in-memory run ledger and closes it when the test
// finishes.
func NewTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	l, err := ledger.OpenDB(db)
	require.NoError(t, err)
	return l
}
