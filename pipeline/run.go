package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lepinkainen/exrmatte/exr"
	"github.com/lepinkainen/exrmatte/sequence"
	"github.com/lepinkainen/exrmatte/trash"
)

// ErrInvalidOptions is wrapped by every option validation error.
var ErrInvalidOptions = errors.New("invalid options")

// Options configures a Run.
type Options struct {
	Compression      exr.Compression
	ChannelBasename  string
	Executor         ExecutorConfig
	ReplaceOriginals bool

	Codec exr.Codec
	// Quarantiner receives the original folders when ReplaceOriginals is set.
	Quarantiner trash.Quarantiner
	Logger      *log.Logger
	// RunID names the staging folders. Generated when empty.
	RunID string
}

func (o *Options) normalize() error {
	if o.Codec == nil {
		return fmt.Errorf("%w: no codec", ErrInvalidOptions)
	}
	if o.Compression == "" {
		o.Compression = exr.DefaultCompression
	}
	compression, err := exr.ParseCompression(string(o.Compression))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	o.Compression = compression

	if o.ChannelBasename == "" {
		o.ChannelBasename = sequence.DefaultChannelBasename
	}
	if err := sequence.ValidateChannelBasename(o.ChannelBasename); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if err := o.Executor.Validate(); err != nil {
		return err
	}
	if o.ReplaceOriginals && o.Quarantiner == nil {
		return fmt.Errorf("%w: replacing originals requires a quarantine location", ErrInvalidOptions)
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return nil
}

// Run embeds every group of report and, when requested and the run was
// clean, replaces the original folders with the output.
//
// Per-file failures and replacement failures are collected in the result.
// The returned error is only set when the run could not start at all.
// Events are sent to sink, which may be nil. When ctx is cancelled no new
// frame is started, frames in progress are finished, and Run returns once
// the pool has shut down.
func Run(ctx context.Context, report sequence.Report, opts Options, sink chan<- Event) (RunResult, error) {
	if err := opts.normalize(); err != nil {
		return RunResult{}, err
	}
	logger := opts.Logger

	tasks := PlanTasks(report, opts.Compression, opts.ChannelBasename)
	pool, err := NewPool(opts.Executor, logger)
	if err != nil {
		return RunResult{}, err
	}

	logger.Info("Starting embed", "sequences", report.TotalSequences(), "frames", len(tasks),
		"workers", opts.Executor.Workers, "compression", opts.Compression, "run", opts.RunID)

	agg := newAggregator(report.Warnings, len(tasks), sink)
	emb := &embedder{codec: opts.Codec}
	outcomes := pool.Execute(ctx, tasks, emb.run)

consume:
	for {
		select {
		case <-ctx.Done():
			break consume
		case outcome, ok := <-outcomes:
			if !ok {
				break consume
			}
			if outcome.Err != nil {
				logger.Error("Frame failed", "file", outcome.BaseFile, "base", outcome.BaseFolder, "err", outcome.Err)
			}
			agg.add(ctx, outcome)
		}
	}

	if ctx.Err() != nil {
		agg.result.Cancelled = true
		logger.Warn("Cancelled, waiting for running frames to finish")
		// Outcomes are discarded but the pool must be gone before returning
		for range outcomes {
		}
	}

	if opts.ReplaceOriginals {
		replaceOriginals(ctx, report, opts, agg, sink)
	}

	result := agg.finish()
	logger.Info("Embed finished", "status", result.Status(), "processed", result.Processed,
		"errors", len(result.ErrorFiles), "replaced", len(result.Replaced))
	return result, nil
}

func replaceOriginals(ctx context.Context, report sequence.Report, opts Options, agg *aggregator, sink chan<- Event) {
	logger := opts.Logger
	if !agg.result.replaceAllowed() {
		logger.Warn("Not replacing originals", "errors", len(agg.result.ErrorFiles),
			"warnings", len(agg.result.Warnings), "cancelled", agg.result.Cancelled)
		return
	}

	replacer := &OriginalsReplacer{Quarantiner: opts.Quarantiner, RunID: opts.RunID, Logger: logger}
	nested := NestedGroups(report.Groups)
	for _, group := range report.Groups {
		if ctx.Err() != nil {
			agg.result.Cancelled = true
			return
		}
		if folders, ok := nested[group.BaseFolder]; ok {
			logger.Error("Not replacing group that contains other sequences", "base", group.BaseFolder, "contains", folders)
			agg.result.ReplacementErrors = append(agg.result.ReplacementErrors, ReplacementError{
				BaseFolder: group.BaseFolder,
				Stage:      StageNested,
				Err:        fmt.Errorf("contains the folders of another sequence: %s", strings.Join(folders, ", ")),
				Recovery:   fmt.Sprintf("originals are untouched; embedded output is at %s", group.OutputFolder()),
			})
			continue
		}
		emit(ctx, sink, ReplaceEvent{BaseFolder: group.BaseFolder})
		if rerr := replacer.Replace(group); rerr != nil {
			agg.result.ReplacementErrors = append(agg.result.ReplacementErrors, *rerr)
			continue
		}
		agg.result.Replaced = append(agg.result.Replaced, group.BaseFolder)
	}
}
