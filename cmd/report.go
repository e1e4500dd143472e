package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"audiobook2renpy/internal/app"
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

func renderReport(res *app.Result, showUnresolved bool) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Project generated: " + res.ProjectDir))
	b.WriteString("\n")

	rows := [][]string{
		{"Lines", strconv.Itoa(res.Cues)},
		{"Images placed", strconv.Itoa(len(res.PlacedImages))},
		{"Images unresolved", strconv.Itoa(res.UnresolvedImages)},
		{"Images dropped", strconv.Itoa(res.DroppedImages)},
		{"Rubies unmatched", strconv.Itoa(len(res.UnmatchedRubies))},
		{"Clips extracted", strconv.Itoa(res.Audio.Written)},
		{"Clips silenced", strconv.Itoa(res.Audio.Silenced)},
		{"Clips already present", strconv.Itoa(res.Audio.Skipped)},
		{"Chunks failed", strconv.Itoa(res.Audio.Failed)},
		{"Chunks cancelled", strconv.Itoa(res.Audio.Cancelled)},
	}
	b.WriteString(renderTable([]string{"Item", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	b.WriteString("\n")

	if res.Audio.Cancelled > 0 {
		b.WriteString(warnStyle.Render("Interrupted before all clips were extracted, run again to resume."))
		b.WriteString("\n")
	}

	if n := len(res.UnmatchedRubies); n > 0 {
		if showUnresolved {
			unmatched := make([][]string, 0, n)
			for _, a := range res.UnmatchedRubies {
				unmatched = append(unmatched, []string{a.Base, a.Reading, a.Context})
			}
			b.WriteString(renderTable([]string{"Base", "Reading", "Context"}, unmatched, nil))
			b.WriteString("\n")
		} else {
			b.WriteString(infoStyle.Render(fmt.Sprintf("%d ruby annotation(s) could not be placed, use --show-unresolved to list them (may contain spoilers).", n)))
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
