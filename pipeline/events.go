package pipeline

import (
	"context"
	"time"
)

// Event is delivered to the progress sink once per completed task.
type Event interface {
	isEvent()
}

// ProgressEvent reports one completed task.
type ProgressEvent struct {
	Processed int
	Total     int
	// Status is a human readable line naming the base folder.
	Status string
	File   string
	Err    error
}

// TimingEvent follows every ProgressEvent.
type TimingEvent struct {
	Elapsed   time.Duration
	Average   time.Duration
	Remaining time.Duration
}

// ReplaceEvent reports the start of the swap for one base folder.
type ReplaceEvent struct {
	BaseFolder string
}

func (ProgressEvent) isEvent() {}
func (TimingEvent) isEvent()   {}
func (ReplaceEvent) isEvent()  {}

// estimate extrapolates the remaining time linearly from the running average.
func estimate(elapsed time.Duration, processed, total int) TimingEvent {
	ev := TimingEvent{Elapsed: elapsed}
	if processed <= 0 {
		return ev
	}
	ev.Average = elapsed / time.Duration(processed)
	if remaining := total - processed; remaining > 0 {
		ev.Remaining = ev.Average * time.Duration(remaining)
	}
	return ev
}

// emit sends ev to sink unless sink is nil or ctx is done.
func emit(ctx context.Context, sink chan<- Event, ev Event) {
	if sink == nil {
		return
	}
	select {
	case sink <- ev:
	case <-ctx.Done():
	}
}
