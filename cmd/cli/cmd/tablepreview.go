package cmd

import (
	"fmt"
	"strings"

	"github.com/Eventual-Inc/modelfn/pkg/frame"
)

const MaxCharPerCol = 16

func transpose(slice [][]string) [][]string {
	if len(slice) == 0 {
		return nil
	}
	xl := len(slice[0])
	yl := len(slice)
	result := make([][]string, xl)
	for i := range result {
		result[i] = make([]string, yl)
	}
	for i := 0; i < xl; i++ {
		for j := 0; j < yl; j++ {
			result[i][j] = slice[j][i]
		}
	}
	return result
}

func formatCell(value interface{}) string {
	if value == nil {
		return "null"
	}
	return fmt.Sprint(value)
}

// PreviewFrame renders a frame as a fixed-width table, one line per row after the header
func PreviewFrame(f *frame.Frame) string {
	headers := f.Columns()
	columns := make([][]string, f.NumCols())
	for colIdx := range columns {
		columns[colIdx] = make([]string, f.NumRows())
		for rowIdx := range columns[colIdx] {
			columns[colIdx][rowIdx] = formatCell(f.Value(colIdx, rowIdx))
		}
	}
	rows := transpose(columns)
	rows = append([][]string{headers}, rows...)

	var stringRows []string
	for _, row := range rows {
		stringRow := "# "
		for _, cell := range row {
			truncatedCell := fmt.Sprintf("%*.*s", MaxCharPerCol, MaxCharPerCol, cell)
			stringRow += " | "
			stringRow += truncatedCell
		}
		stringRows = append(stringRows, stringRow)
	}
	return strings.Join(stringRows, "\n") + "\n\n"
}
