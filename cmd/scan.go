package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/lepinkainen/exrmatte/sequence"
	"github.com/lepinkainen/exrmatte/types"
	"github.com/lepinkainen/exrmatte/ui"
)

// ScanCmd reports the base/matte sequence groups under a folder without
// writing anything.
type ScanCmd struct {
	Folder       string `arg:"" name:"folder" optional:"" help:"Root folder to scan (default: last used folder)" default:"${last_folder}"`
	MatteChannel string `short:"m" name:"matte-channel" help:"Output channel basename used for the channel column" default:"${matte_channel}"`
	Plain        bool   `help:"List sequences one per line instead of a table"`
}

func (cmd *ScanCmd) Validate() error {
	if err := checkFolder(cmd.Folder); err != nil {
		return err
	}
	if err := sequence.ValidateChannelBasename(cmd.MatteChannel); err != nil {
		return fmt.Errorf("--matte-channel: %w", err)
	}
	return nil
}

func (cmd *ScanCmd) Run(appCtx *types.AppContext) error {
	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("EXR Matte Embedder %s", appVersion(appCtx))))

	root, err := resolveFolder(appCtx, cmd.Folder)
	if err != nil {
		return err
	}
	fmt.Printf("Scanning %s for sequences...\n", root)

	report, err := discover(root, cmd.MatteChannel, appLogger(appCtx))
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}
	rememberFolder(appCtx, root)

	if cmd.Plain {
		printReportPlain(os.Stdout, report, cmd.MatteChannel)
	} else {
		printReport(os.Stdout, report, cmd.MatteChannel)
	}
	return nil
}

// printReport writes the group table, warnings and totals for report.
func printReport(w io.Writer, report sequence.Report, basename string) {
	if report.TotalSequences() == 0 {
		fmt.Fprintln(w, ui.WarningStyle.Render("⚠️  No base/matte sequence groups found"))
	} else {
		fmt.Fprintln(w, reportTable(report, basename))
	}
	printWarnings(w, report.Warnings)
	printTotals(w, report)
}

func printReportPlain(w io.Writer, report sequence.Report, basename string) {
	for _, g := range report.Groups {
		fmt.Fprintf(w, "%s\t%s\t%d frames\n", g.BaseFolder, g.SequenceType(), g.FrameCount())
		for _, key := range g.Keys() {
			fmt.Fprintf(w, "  %s -> %s\n", g.MatteFolders[key], sequence.ResolveChannelName(key, basename))
		}
	}
	printWarnings(w, report.Warnings)
	printTotals(w, report)
}

func printWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", ui.WarningStyle.Render(fmt.Sprintf("⚠️  %d warning(s):", len(warnings))))
	for _, warning := range warnings {
		fmt.Fprintf(w, "  %s\n", warning)
	}
}

func printTotals(w io.Writer, report sequence.Report) {
	fmt.Fprintf(w, "\n%s\n", ui.InfoStyle.Render(fmt.Sprintf("Found %d sequence(s), %d frame(s)",
		report.TotalSequences(), report.TotalFiles())))
}
