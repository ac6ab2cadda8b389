package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns are right aligned and
// take part in totals.
type column struct {
	header  string
	numeric bool
}

func textColumn(header string) column    { return column{header: header} }
func numericColumn(header string) column { return column{header: header, numeric: true} }

// textTable collects rows for a rounded go-pretty table.
type textTable struct {
	title   string
	columns []column
	rows    [][]string
	footer  []string
}

func newTextTable(title string, columns ...column) *textTable {
	return &textTable{title: title, columns: columns}
}

// add appends a row. Missing cells render blank and extra cells are dropped.
func (t *textTable) add(cells ...string) {
	row := make([]string, len(t.columns))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// total sets a footer that sums every numeric column. Cells that are not
// integers, such as "-", are ignored.
func (t *textTable) total(label string) {
	if len(t.columns) == 0 {
		return
	}
	footer := make([]string, len(t.columns))
	for i, c := range t.columns {
		if !c.numeric {
			continue
		}
		sum := 0
		for _, row := range t.rows {
			if n, err := strconv.Atoi(row[i]); err == nil {
				sum += n
			}
		}
		footer[i] = strconv.Itoa(sum)
	}
	if !t.columns[0].numeric {
		footer[0] = label
	}
	t.footer = footer
}

func (t *textTable) String() string {
	if len(t.columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if t.title != "" {
		tw.SetTitle(t.title)
	}

	configs := make([]table.ColumnConfig, len(t.columns))
	header := make(table.Row, len(t.columns))
	for i, c := range t.columns {
		header[i] = c.header
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft, AlignFooter: align}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range t.rows {
		tw.AppendRow(toRow(row))
	}
	if t.footer != nil {
		tw.AppendFooter(toRow(t.footer))
	}
	return tw.Render()
}

func toRow(cells []string) table.Row {
	r := make(table.Row, len(cells))
	for i, c := range cells {
		r[i] = c
	}
	return r
}
