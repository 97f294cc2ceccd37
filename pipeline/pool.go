package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// ExecutorConfig configures the worker pool.
type ExecutorConfig struct {
	// Workers is the number of tasks executed concurrently. Must be at least 1.
	Workers int
}

// Validate checks the configuration.
func (c ExecutorConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: worker count must be at least 1, got %d", ErrInvalidOptions, c.Workers)
	}
	return nil
}

// TaskOutcome is produced exactly once for every task the pool starts.
type TaskOutcome struct {
	BaseFolder string
	BaseFile   string
	Output     string
	Bytes      int64
	Err        error
}

// TaskFunc executes one task.
type TaskFunc func(ctx context.Context, task Task) TaskOutcome

// Pool runs tasks on a bounded number of goroutines.
type Pool struct {
	config ExecutorConfig
	logger *log.Logger
}

// NewPool validates config and returns a pool.
func NewPool(config ExecutorConfig, logger *log.Logger) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pool{config: config, logger: logger}, nil
}

// Execute starts the tasks and returns a channel of outcomes in completion
// order. The channel is closed once every started task has finished.
//
// After ctx is cancelled no further task is started. Tasks already running
// are not interrupted: fn receives a context that is never cancelled, and its
// outcome is dropped if nobody is receiving any more.
func (p *Pool) Execute(ctx context.Context, tasks []Task, fn TaskFunc) <-chan TaskOutcome {
	outcomes := make(chan TaskOutcome, p.config.Workers)

	go func() {
		defer close(outcomes)

		var g errgroup.Group
		g.SetLimit(p.config.Workers)

		submitted := 0
		for _, task := range tasks {
			if ctx.Err() != nil {
				break
			}
			// Blocks until a worker slot is free
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				outcome := fn(context.WithoutCancel(ctx), task)
				select {
				case outcomes <- outcome:
				case <-ctx.Done():
				}
				return nil
			})
			submitted++
		}

		if skipped := len(tasks) - submitted; skipped > 0 {
			p.logger.Debug("Stopped submitting tasks", "skipped", skipped)
		}
		_ = g.Wait()
	}()

	return outcomes
}
