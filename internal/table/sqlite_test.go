package table

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

func TestSQLite_SaveLoad(t *testing.T) {
	ctx := context.Background()
	tbl := sampleTable(t)
	path := filepath.Join(t.TempDir(), "prices.sqlite")

	require.NoError(t, Save(ctx, tbl, path, SaveOptions{}))

	back, err := Load(ctx, path, Options{})
	require.NoError(t, err)
	assert.Equal(t, tbl.Names(), back.Names())
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, back.Columns[0].Values)
	assert.Equal(t, []any{int64(100), nil, int64(300)}, back.Columns[1].Values)
	assert.Equal(t, []any{"a", "b", "c"}, back.Columns[2].Values)
}

func TestSQLite_NamedTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "research.db")
	require.NoError(t, Save(ctx, sampleTable(t), path, SaveOptions{Table: "quarters"}))

	tbl, err := Load(ctx, path, Options{Sheet: "quarters"})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())

	_, err = Load(ctx, path, Options{Sheet: "districts"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSchema))
}

func TestSQLite_AmbiguousTables(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "multi.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE a (x INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE b (y TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Load(ctx, path, Options{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSchema))
	assert.Contains(t, err.Error(), "a, b")

	tbl, err := Load(ctx, path, Options{Sheet: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, tbl.Names())
	assert.Equal(t, 0, tbl.Len())
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"price"`, quoteIdent("price"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
