package api

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Tabler is implemented by values that can render as a table.
type Tabler interface {
	Table() (headers []string, rows [][]string)
}

// RenderTable renders rows under headers. Columns whose header ends in
// "#" or is a count are right-aligned.
func RenderTable(headers []string, rows [][]string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i, h := range headers {
		align := text.AlignLeft
		if numericHeader(h) {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func numericHeader(h string) bool {
	h = strings.ToLower(h)
	return strings.HasSuffix(h, "#") || strings.HasSuffix(h, "count") ||
		h == "papers" || h == "page" || h == "pages" || h == "minutes"
}
