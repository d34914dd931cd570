package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/TimelordUK/tailtree/internal/group"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
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

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderGroupTree draws the group hierarchy with each group's file count
// and its files beneath it.
func renderGroupTree(tree *group.Tree) string {
	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedRounded)

	level := 0
	tree.Walk(func(n group.Node, depth int) bool {
		for level < depth {
			lw.Indent()
			level++
		}
		for level > depth {
			lw.UnIndent()
			level--
		}

		label := n.Name
		if n.Icon != "" {
			label = n.Icon + " " + label
		}
		lw.AppendItem(fmt.Sprintf("%s (%d files)", label, n.TotalFileCount))

		if len(n.Files) > 0 {
			lw.Indent()
			for _, f := range n.Files {
				lw.AppendItem(f.Name)
			}
			lw.UnIndent()
		}
		return true
	})
	if lw.Length() == 0 {
		return ""
	}
	return lw.Render()
}
