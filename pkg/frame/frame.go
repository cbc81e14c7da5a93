// Package frame turns an inference request body into a tabular Frame backed by an arrow record.
//
// Accepted body shapes:
//
//	{"col": [v, ...], ...}          columnar, scalars become one-row columns
//	{"col": {"0": v, ...}, ...}     columnar with an index, as written by pandas to_json
//	[{"col": v, ...}, ...]          records
//	[[v, ...], ...]                 positional matrix
//	[v, ...]                        positional single row
//
// Any of these may be wrapped as {"instances": ...} or {"inputs": ...}.
package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/ipc"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/Eventual-Inc/modelfn/pkg/schema"
)

var (
	// ErrMalformed means the body could not be read as a table at all
	ErrMalformed = errors.New("malformed input")
	// ErrShape means the table does not fit what a consumer expects
	ErrShape = errors.New("input shape mismatch")
)

var wrapperKeys = []string{"instances", "inputs"}

type Frame struct {
	record arrow.Record
	// Columns were not named by the caller and are addressed by position
	Positional bool
}

func (f *Frame) Record() arrow.Record {
	return f.record
}

func (f *Frame) Release() {
	f.record.Release()
}

func (f *Frame) NumRows() int {
	return int(f.record.NumRows())
}

func (f *Frame) NumCols() int {
	return int(f.record.NumCols())
}

func (f *Frame) Columns() []string {
	names := make([]string, f.NumCols())
	for i := range names {
		names[i] = f.record.ColumnName(i)
	}
	return names
}

// Value returns the cell as float64, string, bool or nil
func (f *Frame) Value(col int, row int) interface{} {
	column := f.record.Column(col)
	if column.IsNull(row) {
		return nil
	}
	switch typed := column.(type) {
	case *array.Float64:
		return typed.Value(row)
	case *array.String:
		return typed.Value(row)
	case *array.Boolean:
		return typed.Value(row)
	default:
		return nil
	}
}

// Float64Rows coerces the frame into row-major numeric form with columns ordered as
// features. Empty features selects every column in frame order. A positional frame is
// matched by position instead of by name.
func (f *Frame) Float64Rows(features []string) ([][]float64, error) {
	indexes, err := f.columnIndexes(features)
	if err != nil {
		return nil, err
	}
	names := f.Columns()
	rows := make([][]float64, f.NumRows())
	for r := range rows {
		row := make([]float64, len(indexes))
		for i, c := range indexes {
			switch v := f.Value(c, r).(type) {
			case float64:
				row[i] = v
			case bool:
				if v {
					row[i] = 1
				}
			case nil:
				return nil, fmt.Errorf("%w: column %q row %d is null", ErrShape, names[c], r)
			default:
				return nil, fmt.Errorf("%w: column %q row %d is not numeric", ErrShape, names[c], r)
			}
		}
		rows[r] = row
	}
	return rows, nil
}

func (f *Frame) columnIndexes(features []string) ([]int, error) {
	if len(features) == 0 {
		indexes := make([]int, f.NumCols())
		for i := range indexes {
			indexes[i] = i
		}
		return indexes, nil
	}
	if f.Positional {
		if len(features) != f.NumCols() {
			return nil, fmt.Errorf("%w: expected %d columns, received %d", ErrShape, len(features), f.NumCols())
		}
		return f.columnIndexes(nil)
	}
	byName := map[string]int{}
	for i, name := range f.Columns() {
		byName[name] = i
	}
	indexes := make([]int, len(features))
	for i, feature := range features {
		idx, ok := byName[feature]
		if !ok {
			return nil, fmt.Errorf("%w: missing feature %q", ErrShape, feature)
		}
		indexes[i] = idx
	}
	return indexes, nil
}

const positionalMetadataKey = "modelfn.positional"

// WriteIPC writes the frame as an arrow IPC stream
func (f *Frame) WriteIPC(out io.Writer) error {
	md := arrow.NewMetadata([]string{positionalMetadataKey}, []string{strconv.FormatBool(f.Positional)})
	ipcSchema := arrow.NewSchema(f.record.Schema().Fields(), &md)
	record := array.NewRecord(ipcSchema, f.record.Columns(), f.record.NumRows())
	defer record.Release()

	writer := ipc.NewWriter(out, ipc.WithSchema(ipcSchema))
	if err := writer.Write(record); err != nil {
		return err
	}
	return writer.Close()
}

// ReadIPC reads a frame written by WriteIPC. Record batches after the first are appended
// as further rows. Callers must Release the frame.
func ReadIPC(in io.Reader) (*Frame, error) {
	reader, err := ipc.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read arrow stream: %v", ErrMalformed, err)
	}
	defer reader.Release()

	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unable to read arrow stream: %v", ErrMalformed, err)
	}

	ipcSchema := reader.Schema()
	positional := false
	if idx := ipcSchema.Metadata().FindKey(positionalMetadataKey); idx >= 0 {
		positional, _ = strconv.ParseBool(ipcSchema.Metadata().Values()[idx])
	}
	plain := arrow.NewSchema(ipcSchema.Fields(), nil)

	var record arrow.Record
	switch len(records) {
	case 0:
		builder := array.NewRecordBuilder(memory.NewGoAllocator(), plain)
		defer builder.Release()
		record = builder.NewRecord()
	case 1:
		record = array.NewRecord(plain, records[0].Columns(), records[0].NumRows())
	default:
		pool := memory.NewGoAllocator()
		columns := make([]arrow.Array, len(plain.Fields()))
		rows := int64(0)
		for _, rec := range records {
			rows += rec.NumRows()
		}
		for c := range columns {
			chunks := make([]arrow.Array, len(records))
			for i, rec := range records {
				chunks[i] = rec.Column(c)
			}
			combined, err := array.Concatenate(chunks, pool)
			if err != nil {
				for _, done := range columns[:c] {
					done.Release()
				}
				return nil, fmt.Errorf("%w: unable to combine record batches: %v", ErrMalformed, err)
			}
			columns[c] = combined
		}
		record = array.NewRecord(plain, columns, rows)
		for _, col := range columns {
			col.Release()
		}
	}
	return &Frame{record: record, Positional: positional}, nil
}

// Parse reads a JSON request body into a Frame. Callers must Release the frame.
func Parse(raw []byte) (*Frame, error) {
	value, err := decodeOrdered(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: body is not valid JSON: %v", ErrMalformed, err)
	}
	value = unwrap(value)

	var columns []column
	positional := false
	switch v := value.(type) {
	case *object:
		columns, err = fromColumnar(v)
	case []interface{}:
		columns, positional, err = fromArray(v)
	default:
		err = fmt.Errorf("%w: expected a JSON object or array", ErrMalformed)
	}
	if err != nil {
		return nil, err
	}
	record, err := build(columns)
	if err != nil {
		return nil, err
	}
	return &Frame{record: record, Positional: positional}, nil
}

func unwrap(value interface{}) interface{} {
	obj, ok := value.(*object)
	if !ok || len(obj.keys) != 1 {
		return value
	}
	for _, key := range wrapperKeys {
		if inner, ok := obj.values[key]; ok {
			return inner
		}
	}
	return value
}

type column struct {
	name  string
	cells []interface{}
}

func fromColumnar(obj *object) ([]column, error) {
	if len(obj.keys) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrMalformed)
	}
	columns := make([]column, 0, len(obj.keys))
	for _, key := range obj.keys {
		switch v := obj.values[key].(type) {
		case []interface{}:
			columns = append(columns, column{name: key, cells: v})
		case *object:
			cells := make([]interface{}, len(v.keys))
			for i, indexKey := range v.keys {
				cells[i] = v.values[indexKey]
			}
			columns = append(columns, column{name: key, cells: cells})
		default:
			columns = append(columns, column{name: key, cells: []interface{}{v}})
		}
	}
	return columns, nil
}

func fromArray(arr []interface{}) ([]column, bool, error) {
	if len(arr) == 0 {
		return nil, false, fmt.Errorf("%w: no rows", ErrMalformed)
	}
	switch arr[0].(type) {
	case *object:
		columns, err := fromRecords(arr)
		return columns, false, err
	case []interface{}:
		columns, err := fromMatrix(arr)
		return columns, true, err
	default:
		columns, err := fromMatrix([]interface{}{arr})
		return columns, true, err
	}
}

func fromRecords(arr []interface{}) ([]column, error) {
	var names []string
	seen := map[string]bool{}
	for i, item := range arr {
		rec, ok := item.(*object)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is not an object", ErrMalformed, i)
		}
		for _, key := range rec.keys {
			if !seen[key] {
				seen[key] = true
				names = append(names, key)
			}
		}
	}
	columns := make([]column, len(names))
	for c, name := range names {
		cells := make([]interface{}, len(arr))
		for r, item := range arr {
			cells[r] = item.(*object).values[name]
		}
		columns[c] = column{name: name, cells: cells}
	}
	return columns, nil
}

func fromMatrix(arr []interface{}) ([]column, error) {
	width := -1
	var columns []column
	for r, item := range arr {
		row, ok := item.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: row %d is not an array", ErrMalformed, r)
		}
		if width == -1 {
			width = len(row)
			if width == 0 {
				return nil, fmt.Errorf("%w: rows have no values", ErrMalformed)
			}
			columns = make([]column, width)
			for c := range columns {
				columns[c] = column{name: strconv.Itoa(c), cells: make([]interface{}, len(arr))}
			}
		}
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrMalformed, r, len(row), width)
		}
		for c, cell := range row {
			columns[c].cells[r] = cell
		}
	}
	return columns, nil
}

func inferType(col column) (schema.TypeEnum, error) {
	var inferred schema.TypeEnum
	for r, cell := range col.cells {
		var t schema.TypeEnum
		switch cell.(type) {
		case nil:
			continue
		case json.Number:
			t = schema.DoubleType
		case string:
			t = schema.StringType
		case bool:
			t = schema.BoolType
		default:
			return "", fmt.Errorf("%w: column %q row %d is not a scalar", ErrMalformed, col.name, r)
		}
		if inferred != "" && inferred != t {
			return "", fmt.Errorf("%w: column %q mixes %s and %s values", ErrMalformed, col.name, inferred, t)
		}
		inferred = t
	}
	if inferred == "" {
		inferred = schema.DoubleType
	}
	return inferred, nil
}

func build(columns []column) (arrow.Record, error) {
	numRows := len(columns[0].cells)
	frameSchema := schema.Schema{}
	for _, col := range columns {
		if len(col.cells) != numRows {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d", ErrMalformed, col.name, len(col.cells), numRows)
		}
		t, err := inferType(col)
		if err != nil {
			return nil, err
		}
		frameSchema.Fields = append(frameSchema.Fields, schema.FeatureField{Name: col.name, Type: t})
	}
	if numRows == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformed)
	}

	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, frameSchema.ArrowSchema())
	defer builder.Release()
	for i, col := range columns {
		if err := appendColumn(builder, i, frameSchema.Fields[i].Type, col); err != nil {
			return nil, err
		}
	}
	return builder.NewRecord(), nil
}

func appendColumn(builder *array.RecordBuilder, fieldIdx int, t schema.TypeEnum, col column) error {
	switch t {
	case schema.DoubleType:
		fb := builder.Field(fieldIdx).(*array.Float64Builder)
		for _, cell := range col.cells {
			if cell == nil {
				fb.AppendNull()
				continue
			}
			v, err := cell.(json.Number).Float64()
			if err != nil {
				return fmt.Errorf("%w: column %q has out of range number %s", ErrMalformed, col.name, cell)
			}
			fb.Append(v)
		}
	case schema.StringType:
		sb := builder.Field(fieldIdx).(*array.StringBuilder)
		for _, cell := range col.cells {
			if cell == nil {
				sb.AppendNull()
				continue
			}
			sb.Append(cell.(string))
		}
	case schema.BoolType:
		bb := builder.Field(fieldIdx).(*array.BooleanBuilder)
		for _, cell := range col.cells {
			if cell == nil {
				bb.AppendNull()
				continue
			}
			bb.Append(cell.(bool))
		}
	default:
		return fmt.Errorf("unable to map type %s to an Arrow builder", t)
	}
	return nil
}
