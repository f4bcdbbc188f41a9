package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const table_max_message = 60

// Table prints checks as aligned columns. Widths are measured in terminal
// cells so non-ASCII expectations line up.
func Table(w io.Writer, checks []Check) error {
	headers := []string{"CHECK", "STATUS", "EXPECTED", "ACTUAL", "MESSAGE"}
	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		rows = append(rows, []string{
			check.Name,
			strings.ToUpper(string(check.Status)),
			check.Expected,
			check.Actual,
			runewidth.Truncate(check.Message, table_max_message, "..."),
		})
	}

	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	for _, row := range append([][]string{headers}, rows...) {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = runewidth.FillRight(cell, widths[i])
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

// Counts tallies checks by status.
func Counts(checks []Check) (pass, warn, fail int) {
	for _, check := range checks {
		switch check.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}
	return pass, warn, fail
}
