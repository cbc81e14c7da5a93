package frame

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/apache/arrow/go/v12/arrow/ipc"
)

const irisColumnar = `{"sepal_length":[5.1],"sepal_width":[3.5],"petal_length":[1.4],"petal_width":[0.2]}`

func mustParse(t *testing.T, body string) *Frame {
	t.Helper()
	f, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse(%s) error = %v", body, err)
	}
	t.Cleanup(f.Release)
	return f
}

func TestParseShapes(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		columns    []string
		rows       [][]float64
		positional bool
	}{
		{
			name:    "columnar keeps key order",
			body:    irisColumnar,
			columns: []string{"sepal_length", "sepal_width", "petal_length", "petal_width"},
			rows:    [][]float64{{5.1, 3.5, 1.4, 0.2}},
		},
		{
			name:    "columnar scalars",
			body:    `{"b": 2, "a": 1}`,
			columns: []string{"b", "a"},
			rows:    [][]float64{{2, 1}},
		},
		{
			name:    "pandas index orientation",
			body:    `{"x": {"0": 1, "1": 2}, "y": {"0": 3, "1": 4}}`,
			columns: []string{"x", "y"},
			rows:    [][]float64{{1, 3}, {2, 4}},
		},
		{
			name:    "records with missing keys in later rows",
			body:    `[{"x": 1, "y": true}, {"y": false, "x": 2}]`,
			columns: []string{"x", "y"},
			rows:    [][]float64{{1, 1}, {2, 0}},
		},
		{
			name:       "matrix",
			body:       `[[1, 2], [3, 4], [5, 6]]`,
			columns:    []string{"0", "1"},
			rows:       [][]float64{{1, 2}, {3, 4}, {5, 6}},
			positional: true,
		},
		{
			name:       "flat row",
			body:       `[5.1, 3.5, 1.4, 0.2]`,
			columns:    []string{"0", "1", "2", "3"},
			rows:       [][]float64{{5.1, 3.5, 1.4, 0.2}},
			positional: true,
		},
		{
			name:       "instances wrapper",
			body:       `{"instances": [[1, 2]]}`,
			columns:    []string{"0", "1"},
			rows:       [][]float64{{1, 2}},
			positional: true,
		},
		{
			name:    "inputs wrapper",
			body:    `{"inputs": {"a": [1, 2]}}`,
			columns: []string{"a"},
			rows:    [][]float64{{1}, {2}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := mustParse(t, tc.body)
			if got := f.Columns(); !reflect.DeepEqual(got, tc.columns) {
				t.Fatalf("columns = %v want %v", got, tc.columns)
			}
			if f.Positional != tc.positional {
				t.Fatalf("positional = %v want %v", f.Positional, tc.positional)
			}
			rows, err := f.Float64Rows(nil)
			if err != nil {
				t.Fatalf("Float64Rows() error = %v", err)
			}
			if !reflect.DeepEqual(rows, tc.rows) {
				t.Fatalf("rows = %v want %v", rows, tc.rows)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bodies := map[string]string{
		"not json":       `sepal_length=5.1`,
		"trailing data":  `{"a": [1]} {"b": [2]}`,
		"scalar":         `42`,
		"empty object":   `{}`,
		"empty array":    `[]`,
		"ragged columns": `{"a": [1, 2], "b": [1]}`,
		"ragged matrix":  `[[1, 2], [3]]`,
		"mixed types":    `{"a": [1, "two"]}`,
		"nested cell":    `{"a": [[1]]}`,
		"mixed rows":     `[{"a": 1}, [1]]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestFloat64RowsByFeatureName(t *testing.T) {
	f := mustParse(t, `{"petal_width": [0.2], "sepal_length": [5.1], "extra": ["ignored"]}`)
	rows, err := f.Float64Rows([]string{"sepal_length", "petal_width"})
	if err != nil {
		t.Fatalf("Float64Rows() error = %v", err)
	}
	if !reflect.DeepEqual(rows, [][]float64{{5.1, 0.2}}) {
		t.Fatalf("unexpected rows %v", rows)
	}

	if _, err := f.Float64Rows([]string{"sepal_width"}); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for missing feature, got %v", err)
	}
	if _, err := f.Float64Rows([]string{"extra"}); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for string feature, got %v", err)
	}
}

func TestFloat64RowsPositionalWidth(t *testing.T) {
	f := mustParse(t, `[[1, 2, 3]]`)
	if _, err := f.Float64Rows([]string{"a", "b"}); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for width mismatch, got %v", err)
	}
	rows, err := f.Float64Rows([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Float64Rows() error = %v", err)
	}
	if !reflect.DeepEqual(rows, [][]float64{{1, 2, 3}}) {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestFloat64RowsNull(t *testing.T) {
	f := mustParse(t, `{"a": [1, null]}`)
	if f.Value(0, 1) != nil {
		t.Fatalf("expected null cell")
	}
	if _, err := f.Float64Rows(nil); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for null, got %v", err)
	}
}

func TestWriteIPCRoundTrip(t *testing.T) {
	f := mustParse(t, `[{"x": 1.5, "label": "a"}, {"x": 2.5, "label": "b"}]`)
	var buf bytes.Buffer
	if err := f.WriteIPC(&buf); err != nil {
		t.Fatalf("WriteIPC() error = %v", err)
	}
	reader, err := ipc.NewReader(&buf)
	if err != nil {
		t.Fatalf("ipc.NewReader() error = %v", err)
	}
	defer reader.Release()
	if !reader.Next() {
		t.Fatalf("expected a record in the stream")
	}
	rec := reader.Record()
	if rec.NumRows() != 2 || rec.NumCols() != 2 {
		t.Fatalf("unexpected record shape %dx%d", rec.NumRows(), rec.NumCols())
	}
	if rec.ColumnName(1) != "label" {
		t.Fatalf("unexpected column name %q", rec.ColumnName(1))
	}
}

func TestReadIPCKeepsPositional(t *testing.T) {
	cases := map[string]bool{
		`[{"x": 1.5, "label": "a"}, {"x": 2.5, "label": null}]`: false,
		`[[5.1, 3.5], [6.2, 2.9]]`:                               true,
	}
	for body, positional := range cases {
		f := mustParse(t, body)
		var buf bytes.Buffer
		if err := f.WriteIPC(&buf); err != nil {
			t.Fatalf("WriteIPC() error = %v", err)
		}
		read, err := ReadIPC(&buf)
		if err != nil {
			t.Fatalf("ReadIPC() error = %v", err)
		}
		if read.Positional != positional {
			t.Fatalf("%s: Positional = %v", body, read.Positional)
		}
		if !reflect.DeepEqual(read.Columns(), f.Columns()) || read.NumRows() != f.NumRows() {
			t.Fatalf("%s: read %v x %d", body, read.Columns(), read.NumRows())
		}
		for c := 0; c < f.NumCols(); c++ {
			for r := 0; r < f.NumRows(); r++ {
				if read.Value(c, r) != f.Value(c, r) {
					t.Fatalf("%s: cell (%d,%d) = %v want %v", body, c, r, read.Value(c, r), f.Value(c, r))
				}
			}
		}
		read.Release()
	}
}

func TestReadIPCCombinesBatches(t *testing.T) {
	first := mustParse(t, `{"x": [1, 2]}`)
	second := mustParse(t, `{"x": [3]}`)

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(first.Record().Schema()))
	for _, f := range []*Frame{first, second} {
		if err := writer.Write(f.Record()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	read, err := ReadIPC(&buf)
	if err != nil {
		t.Fatalf("ReadIPC() error = %v", err)
	}
	defer read.Release()
	rows, err := read.Float64Rows([]string{"x"})
	if err != nil {
		t.Fatalf("Float64Rows() error = %v", err)
	}
	if !reflect.DeepEqual(rows, [][]float64{{1}, {2}, {3}}) {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestReadIPCRejectsGarbage(t *testing.T) {
	if _, err := ReadIPC(bytes.NewReader([]byte("not arrow"))); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
