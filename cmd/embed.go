package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/lepinkainen/exrmatte/exr"
	"github.com/lepinkainen/exrmatte/pipeline"
	"github.com/lepinkainen/exrmatte/sequence"
	"github.com/lepinkainen/exrmatte/trash"
	"github.com/lepinkainen/exrmatte/types"
	"github.com/lepinkainen/exrmatte/ui"
	"github.com/lepinkainen/exrmatte/utils"
)

// LockFileName is created in the root folder while an embed runs there.
const LockFileName = ".exrmatte.lock"

// EmbedCmd discovers the sequences under a folder and writes every base
// frame with its mattes added as extra channels.
type EmbedCmd struct {
	Folder           string `arg:"" name:"folder" optional:"" help:"Root folder containing base and matte sequences (default: last used folder)" default:"${last_folder}"`
	Compression      string `short:"c" help:"Output compression (${compressions})" default:"${compression}"`
	MatteChannel     string `short:"m" name:"matte-channel" help:"Output channel basename for the mattes" default:"${matte_channel}"`
	Workers          int    `short:"p" help:"Number of parallel workers, 0 picks a default" default:"${workers}"`
	ReplaceOriginals bool   `short:"r" name:"replace-originals" negatable:"" help:"Move the originals to the trash and put the embedded frames in their place" default:"${replace_originals}"`
	Yes              bool   `short:"y" help:"Do not ask before replacing originals"`
	ScanOnly         bool   `short:"s" name:"scan-only" help:"Only report what would be embedded"`
	Quiet            bool   `short:"q" xor:"verbosity" help:"Only print errors and the final status"`
	Verbose          bool   `short:"v" xor:"verbosity" help:"Debug logging, implies --no-tui"`
	NoTUI            bool   `name:"no-tui" help:"Plain progress bar instead of the interactive view"`
	Select           bool   `help:"Choose which sequences to embed before starting"`
}

// Validate is called by kong after parsing.
func (cmd *EmbedCmd) Validate() error {
	if err := checkFolder(cmd.Folder); err != nil {
		return err
	}
	if cmd.Workers < 0 || cmd.Workers > runtime.NumCPU() {
		return fmt.Errorf("--workers must be between 1 and %d, or 0 for a default", runtime.NumCPU())
	}
	if _, err := exr.ParseCompression(cmd.Compression); err != nil {
		return fmt.Errorf("--compression: %w", err)
	}
	if err := sequence.ValidateChannelBasename(cmd.MatteChannel); err != nil {
		return fmt.Errorf("--matte-channel: %w", err)
	}
	return nil
}

func (cmd *EmbedCmd) Run(appCtx *types.AppContext) error {
	logger := appLogger(appCtx)
	cfg := appConfig(appCtx)
	switch {
	case cmd.Verbose:
		logger.SetLevel(log.DebugLevel)
	case cmd.Quiet:
		logger.SetLevel(log.ErrorLevel)
	}

	out := io.Writer(os.Stdout)
	if cmd.Quiet {
		out = io.Discard
	}
	fmt.Fprintln(out, ui.HeaderStyle.Render(fmt.Sprintf("EXR Matte Embedder %s", appVersion(appCtx))))

	root, err := resolveFolder(appCtx, cmd.Folder)
	if err != nil {
		return err
	}

	if !cmd.ScanOnly {
		if err := utils.ValidateOIIOToolDependency(cfg.OIIOTool); err != nil {
			return err
		}
		lock := flock.New(filepath.Join(root, LockFileName))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another embed is already running in %s", root)
		}
		defer func() { _ = lock.Unlock() }()
	}

	fmt.Fprintf(out, "Scanning %s for sequences...\n", root)
	report, err := discover(root, cmd.MatteChannel, logger)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}
	rememberFolder(appCtx, root)
	printReport(out, report, cmd.MatteChannel)

	if cmd.ScanOnly {
		return nil
	}
	if report.TotalSequences() == 0 {
		if len(report.Warnings) > 0 {
			return &ExitError{Code: ExitIssues}
		}
		return nil
	}

	if cmd.Select {
		selected, ok, err := selectGroups(report)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, ui.WarningStyle.Render("Aborted, nothing was processed"))
			return nil
		}
		report = selected
	}

	if cmd.ReplaceOriginals && !cmd.Yes {
		if !isTerminal(os.Stdin) {
			return errors.New("--replace-originals asks for confirmation; pass --yes when not running in a terminal")
		}
		ok, err := confirmReplace(report)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, ui.WarningStyle.Render("Aborted, nothing was processed"))
			return nil
		}
	}

	workers := cmd.Workers
	if workers == 0 {
		var network bool
		workers, network = utils.DefaultWorkers(root)
		if network {
			fmt.Fprintln(out, ui.WarningStyle.Render("⚠️  Network drive detected, using 1 worker for optimal performance"))
		}
	}

	fmt.Fprintln(out, ui.ProcessingStyle.Render(fmt.Sprintf("Embedding %d frame(s) from %d sequence(s) with %d worker(s)",
		report.TotalFiles(), report.TotalSequences(), workers)))

	tui := !cmd.Quiet && cmd.useTUI()
	runLogger := logger
	if tui {
		// Log lines would tear the full screen view
		runLogger = log.New(io.Discard)
	}

	runID := uuid.NewString()
	opts := pipeline.Options{
		Compression:      exr.Compression(cmd.Compression),
		ChannelBasename:  cmd.MatteChannel,
		Executor:         pipeline.ExecutorConfig{Workers: workers},
		ReplaceOriginals: cmd.ReplaceOriginals,
		Codec:            exr.NewOIIOCodec(cfg.OIIOTool, runLogger),
		Logger:           runLogger,
		RunID:            runID,
	}
	if cmd.ReplaceOriginals {
		opts.Quarantiner = trash.Default(cfg.QuarantineDir, runID)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var result pipeline.RunResult
	switch {
	case cmd.Quiet:
		result, err = pipeline.Run(ctx, report, opts, nil)
	case tui:
		result, err = runWithTUI(ctx, cancel, report, opts, appVersion(appCtx))
	default:
		bar := ui.NewPlainProgress(os.Stderr, report.TotalFiles())
		result, err = runPipeline(ctx, report, opts, bar.Handle)
		bar.Finish()
	}
	if err != nil {
		return err
	}

	printSummary(os.Stdout, result, cmd.Quiet)

	switch {
	case result.Cancelled:
		return &ExitError{Code: ExitCancelled}
	case result.HasIssues():
		return &ExitError{Code: ExitIssues}
	}
	return nil
}

func (cmd *EmbedCmd) useTUI() bool {
	return !cmd.NoTUI && !cmd.Verbose && isTerminal(os.Stdout) && isTerminal(os.Stdin)
}

// runPipeline runs the pipeline and hands every event to handle from a
// single goroutine.
func runPipeline(ctx context.Context, report sequence.Report, opts pipeline.Options, handle func(pipeline.Event)) (pipeline.RunResult, error) {
	events := make(chan pipeline.Event, 64)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range events {
			handle(ev)
		}
	}()

	result, err := pipeline.Run(ctx, report, opts, events)
	close(events)
	<-forwarded
	return result, err
}

func runWithTUI(ctx context.Context, cancel context.CancelFunc, report sequence.Report, opts pipeline.Options, version string) (pipeline.RunResult, error) {
	p := tea.NewProgram(ui.NewEmbedModel(report, version, cancel), tea.WithAltScreen())

	done := make(chan ui.RunFinishedMsg, 1)
	go func() {
		result, err := runPipeline(ctx, report, opts, func(ev pipeline.Event) {
			if msg := ui.EventMsg(ev); msg != nil {
				p.Send(msg)
			}
		})
		msg := ui.RunFinishedMsg{Result: result, Err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		// The display is gone; stop starting frames and wait for the run
		cancel()
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render(fmt.Sprintf("❌ Progress display failed: %v", err)))
	}
	outcome := <-done
	return outcome.Result, outcome.Err
}

func selectGroups(report sequence.Report) (sequence.Report, bool, error) {
	p := tea.NewProgram(ui.NewSelectModel(report), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return sequence.Report{}, false, fmt.Errorf("selection failed: %w", err)
	}
	model, ok := final.(ui.SelectModel)
	if !ok || !model.Confirmed() {
		return sequence.Report{}, false, nil
	}
	return model.Apply(report), true, nil
}

func confirmReplace(report sequence.Report) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Replace the originals of %d sequence(s)?", report.TotalSequences())).
				Description("After a clean run the base and matte folders are moved to the trash\nand the embedded frames take the base folder's name.").
				Affirmative("Replace").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get confirmation: %w", err)
	}
	return confirmed, nil
}

// printSummary reports the outcome of a run. quiet limits it to problems and
// the final status.
func printSummary(w io.Writer, result pipeline.RunResult, quiet bool) {
	if !quiet {
		fmt.Fprintf(w, "\n%s\n", ui.InfoStyle.Render(fmt.Sprintf("Embedded %d of %d frame(s), %s written in %s",
			result.Processed-len(result.ErrorFiles), result.Total,
			humanize.Bytes(uint64(result.BytesWritten)), result.Elapsed.Round(time.Second))))
	}

	if len(result.Warnings) > 0 && !quiet {
		printWarnings(w, result.Warnings)
	}

	if len(result.ErrorFiles) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.ErrorStyle.Render(fmt.Sprintf("❌ %d frame(s) failed:", len(result.ErrorFiles))))
		for _, fe := range result.ErrorFiles {
			fmt.Fprintf(w, "  %s\n", fe.Error())
		}
	}

	for _, re := range result.ReplacementErrors {
		fmt.Fprintf(w, "\n%s\n", ui.ErrorStyle.Render("❌ "+re.Error()))
		if re.Recovery != "" {
			fmt.Fprintf(w, "  %s\n", ui.MutedStyle.Render(re.Recovery))
		}
	}

	if len(result.Replaced) > 0 && !quiet {
		fmt.Fprintf(w, "\n%s\n", ui.SuccessStyle.Render(fmt.Sprintf("Replaced %d folder(s):", len(result.Replaced))))
		for _, folder := range result.Replaced {
			fmt.Fprintf(w, "  %s\n", folder)
		}
	}

	switch result.Status() {
	case pipeline.StatusSuccess:
		fmt.Fprintf(w, "\n%s\n", ui.SuccessStyle.Render("✅ Processing complete."))
	case pipeline.StatusCancelled:
		fmt.Fprintf(w, "\n%s\n", ui.WarningStyle.Render("⚠️  Cancelled, frames already written were kept."))
	default:
		fmt.Fprintf(w, "\n%s\n", ui.WarningStyle.Render("⚠️  Completed with issues."))
	}
}
