package table

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

func loadParquet(ctx context.Context, path string, opts Options) (*Table, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, apperr.Parse(err, "table: open parquet %s", path)
	}
	defer rdr.Close() //nolint:errcheck

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, memory.DefaultAllocator)
	if err != nil {
		return nil, apperr.Parse(err, "table: read parquet schema %s", path)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, apperr.Parse(err, "table: read parquet %s", path)
	}
	defer tbl.Release()

	names := make([]string, tbl.NumCols())
	for i := range names {
		names[i] = tbl.Column(i).Name()
	}
	names = CleanHeader(names)

	cols := make([]*Column, len(names))
	for i := range cols {
		cols[i] = arrowColumn(names[i], tbl.Column(i), opts)
	}
	return New(cols...)
}

// arrowColumn converts one arrow column. Integer, floating point and string
// arrow types fix the kind; other types go through the text inference path.
func arrowColumn(name string, col *arrow.Column, opts Options) *Column {
	kind, pinned := opts.Dtypes[name]
	if !pinned {
		kind = arrowKind(col.DataType())
	}

	if kind == "" {
		var cells []string
		for _, chunk := range col.Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				if chunk.IsNull(j) {
					cells = append(cells, "")
					continue
				}
				cells = append(cells, arrowCellString(chunk, j))
			}
		}
		return BuildColumn(name, cells, opts)
	}

	vals := make([]any, 0, col.Len())
	for _, chunk := range col.Data().Chunks() {
		for j := 0; j < chunk.Len(); j++ {
			if chunk.IsNull(j) {
				vals = append(vals, nil)
				continue
			}
			vals = append(vals, Convert(arrowValue(chunk, j), kind))
		}
	}
	return &Column{Name: name, Kind: kind, Values: vals}
}

func arrowKind(dt arrow.DataType) Kind {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return KindInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.UINT64:
		return KindFloat
	case arrow.STRING, arrow.LARGE_STRING, arrow.BOOL:
		return KindString
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return KindDate
	}
	return ""
}

func arrowValue(arr arrow.Array, i int) any {
	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return float64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Date32:
		return a.Value(i).ToTime().UTC()
	case *array.Date64:
		return a.Value(i).ToTime().UTC()
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC()
	}
	return arrowCellString(arr, i)
}

func arrowCellString(arr arrow.Array, i int) string {
	return arr.ValueStr(i)
}
