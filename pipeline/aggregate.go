package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// FileError records one output frame that could not be produced.
type FileError struct {
	File string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// ReplacementError records a failed step while swapping a base folder.
type ReplacementError struct {
	BaseFolder string
	Stage      string
	Err        error
	// Recovery tells the user where the data is and how to restore it.
	Recovery string
}

func (e ReplacementError) Error() string {
	return fmt.Sprintf("replacement process failed for %s during %s: %v", e.BaseFolder, e.Stage, e.Err)
}

func (e ReplacementError) Unwrap() error { return e.Err }

// Status classifies a finished run.
type Status int

const (
	StatusSuccess Status = iota
	StatusCompletedWithIssues
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCompletedWithIssues:
		return "completed with issues"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// RunResult is the outcome of one Run.
type RunResult struct {
	Warnings          []string
	ErrorFiles        []FileError
	ReplacementErrors []ReplacementError
	// Replaced lists the base folders that now hold the embedded output.
	Replaced     []string
	Processed    int
	Total        int
	BytesWritten int64
	Elapsed      time.Duration
	Cancelled    bool
}

// HasIssues reports whether anything needs the user's attention.
func (r RunResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.ErrorFiles) > 0 || len(r.ReplacementErrors) > 0
}

// Success is true for a clean run.
func (r RunResult) Success() bool {
	return !r.Cancelled && !r.HasIssues()
}

// Status classifies the run.
func (r RunResult) Status() Status {
	switch {
	case r.Cancelled:
		return StatusCancelled
	case r.HasIssues():
		return StatusCompletedWithIssues
	default:
		return StatusSuccess
	}
}

// replaceAllowed gates the destructive swap: every task must have succeeded
// and discovery must not have reported anything.
func (r RunResult) replaceAllowed() bool {
	return !r.Cancelled && len(r.ErrorFiles) == 0 && len(r.Warnings) == 0 && r.Processed == r.Total
}

// aggregator is the single consumer of task outcomes.
type aggregator struct {
	result  RunResult
	started time.Time
	sink    chan<- Event
}

func newAggregator(warnings []string, total int, sink chan<- Event) *aggregator {
	return &aggregator{
		result: RunResult{
			Warnings: append([]string(nil), warnings...),
			Total:    total,
		},
		started: time.Now(),
		sink:    sink,
	}
}

func (a *aggregator) add(ctx context.Context, o TaskOutcome) {
	a.result.Processed++

	file := filepath.Join(o.BaseFolder, o.BaseFile)
	status := fmt.Sprintf("Processing %s", filepath.Base(o.BaseFolder))
	if o.Err != nil {
		a.result.ErrorFiles = append(a.result.ErrorFiles, FileError{File: file, Err: o.Err})
	} else {
		a.result.BytesWritten += o.Bytes
	}

	emit(ctx, a.sink, ProgressEvent{
		Processed: a.result.Processed,
		Total:     a.result.Total,
		Status:    status,
		File:      file,
		Err:       o.Err,
	})
	emit(ctx, a.sink, estimate(time.Since(a.started), a.result.Processed, a.result.Total))
}

func (a *aggregator) finish() RunResult {
	a.result.Elapsed = time.Since(a.started)
	return a.result
}
