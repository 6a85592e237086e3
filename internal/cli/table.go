package cli

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	tablePadding = 2
	// maxCellWidth keeps long names from pushing later columns off screen.
	maxCellWidth = 40
)

// writeTable aligns rows by display width, so accented names and emoji line
// up with ASCII ones.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	cell := func(row []string, idx int) string {
		if idx >= len(row) {
			return ""
		}
		return runewidth.Truncate(row[idx], maxCellWidth, "…")
	}

	widths := make([]int, colCount)
	for _, row := range append([][]string{headers}, rows...) {
		for idx := 0; idx < colCount; idx++ {
			if w := runewidth.StringWidth(cell(row, idx)); w > widths[idx] {
				widths[idx] = w
			}
		}
	}

	writer := bufio.NewWriter(out)
	writeRow := func(row []string) {
		for idx := 0; idx < colCount; idx++ {
			value := cell(row, idx)
			writer.WriteString(value)
			if idx < colCount-1 {
				pad := widths[idx] - runewidth.StringWidth(value) + tablePadding
				writer.WriteString(strings.Repeat(" ", pad))
			}
		}
		writer.WriteString("\n")
	}

	if len(headers) > 0 {
		writeRow(headers)
	}
	for _, row := range rows {
		writeRow(row)
	}
	return writer.Flush()
}

// WriteOutput writes v as indented JSON.
func WriteOutput(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
