package cmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lepinkainen/exrmatte/sequence"
)

// reportTable lists one row per discovered group, with the output channel
// names each group will get.
func reportTable(report sequence.Report, basename string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{"Sequence", "Type", "Frames", "Channels"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Frames", Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	for _, g := range report.Groups {
		names := make([]string, 0, len(g.MatteFolders))
		for _, key := range g.Keys() {
			names = append(names, sequence.ResolveChannelName(key, basename))
		}
		kind := "single"
		if !g.IsSingleChannel() {
			kind = "multi"
		}
		tw.AppendRow(table.Row{g.Name(), kind, g.FrameCount(), strings.Join(names, ", ")})
	}
	if len(report.Groups) > 1 {
		tw.AppendFooter(table.Row{"", "", report.TotalFiles(), ""})
	}
	return tw.Render()
}
