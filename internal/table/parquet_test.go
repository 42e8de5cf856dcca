package table

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeParquet(t *testing.T) string {
	t.Helper()
	alloc := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "area_id", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "price", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	rb := array.NewRecordBuilder(alloc, schema)
	defer rb.Release()

	rb.Field(0).(*array.Int32Builder).AppendValues([]int32{1, 2, 3}, nil)
	rb.Field(1).(*array.Float64Builder).AppendValues([]float64{100, 0, 300}, []bool{true, false, true})
	rb.Field(2).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, nil)

	rec := rb.NewRecord()
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "prices.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w, err := pqarrow.NewFileWriter(schema, f, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	return path
}

func TestLoad_Parquet(t *testing.T) {
	path := writeParquet(t)

	tbl, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"area_id", "price", "name"}, tbl.Names())
	assert.Equal(t, 3, tbl.Len())

	ids, _ := tbl.Column("area_id")
	assert.Equal(t, KindInt, ids.Kind)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids.Values)

	prices, _ := tbl.Column("price")
	assert.Equal(t, KindFloat, prices.Kind)
	assert.Equal(t, []any{100.0, nil, 300.0}, prices.Values)

	assert.Equal(t, "c", tbl.Value(2, "name"))
}

func TestLoad_ParquetPinnedKind(t *testing.T) {
	path := writeParquet(t)

	tbl, err := Load(context.Background(), path, Options{Dtypes: map[string]Kind{"area_id": KindString}})
	require.NoError(t, err)
	ids, _ := tbl.Column("area_id")
	assert.Equal(t, KindString, ids.Kind)
	assert.Equal(t, []any{"1", "2", "3"}, ids.Values)
}

func TestLoad_ParquetCorrupt(t *testing.T) {
	path := writeFile(t, "broken.parquet", "not a parquet file")
	_, err := Load(context.Background(), path, Options{})
	require.Error(t, err)
}
