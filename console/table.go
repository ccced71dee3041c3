package console

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
)

const maxColWidth = 50

// Table prints rows under headers, or "(none)" when there are no rows.
func Table(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}

	var table = uitable.New()
	table.MaxColWidth = maxColWidth
	table.Wrap = true

	table.AddRow(toCells(headers)...)
	for _, row := range rows {
		table.AddRow(toCells(row)...)
	}
	fmt.Fprintln(w, table)
}

// Record prints one record as aligned name/value lines.
func Record(w io.Writer, fields [][2]string) {
	var table = uitable.New()
	table.MaxColWidth = maxColWidth
	table.Wrap = true

	for _, field := range fields {
		table.AddRow(field[0]+":", field[1])
	}
	fmt.Fprintln(w, table)
}

// Money formats an amount with thousands separators and at most two decimals.
func Money(amount float64) string {
	return humanize.CommafWithDigits(amount, 2)
}

// Date formats t as YYYY-MM-DD, or "-" for the zero time.
func Date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// Ago formats how long before now t was.
func Ago(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// Size formats a byte count.
func Size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func toCells(values []string) []interface{} {
	var cells = make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
