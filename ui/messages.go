package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/exrmatte/pipeline"
)

// TUI Message Types for pipeline communication
type FrameCompletedMsg struct {
	Processed int
	Total     int
	Status    string
	File      string
	Error     error
}

type TimingMsg struct {
	Elapsed   time.Duration
	Average   time.Duration
	Remaining time.Duration
}

type ReplacingMsg struct {
	BaseFolder string
}

// RunFinishedMsg is sent once Run has returned.
type RunFinishedMsg struct {
	Result pipeline.RunResult
	Err    error
}

// EventMsg converts a pipeline event into the matching TUI message.
func EventMsg(ev pipeline.Event) tea.Msg {
	switch ev := ev.(type) {
	case pipeline.ProgressEvent:
		return FrameCompletedMsg{Processed: ev.Processed, Total: ev.Total, Status: ev.Status, File: ev.File, Error: ev.Err}
	case pipeline.TimingEvent:
		return TimingMsg{Elapsed: ev.Elapsed, Average: ev.Average, Remaining: ev.Remaining}
	case pipeline.ReplaceEvent:
		return ReplacingMsg{BaseFolder: ev.BaseFolder}
	}
	return nil
}
