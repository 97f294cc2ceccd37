package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/lepinkainen/exrmatte/sequence"
)

// maxLogEntries caps the processed frames list.
const maxLogEntries = 500

// File log entry for the processed frames list
type FileLogEntry struct {
	File   string
	Status string
	Error  string
}

func (f FileLogEntry) FilterValue() string { return f.File }
func (f FileLogEntry) Title() string       { return filepath.Base(f.File) }
func (f FileLogEntry) Description() string {
	if f.Error != "" {
		return fmt.Sprintf("❌ %s", f.Error)
	}
	return fmt.Sprintf("✓ %s", f.Status)
}

// sequenceState tracks one base folder's frames
type sequenceState struct {
	Name   string
	Done   int
	Total  int
	Errors int
}

// EmbedModel shows the progress of an embed run
type EmbedModel struct {
	// Application state
	totalFiles     int
	processedFiles int
	errorCount     int
	sequences      []*sequenceState
	byFolder       map[string]*sequenceState
	fileEntries    []FileLogEntry
	timing         TimingMsg
	replacing      string

	// UI components
	overallProgress  progress.Model
	sequenceProgress progress.Model
	fileList         list.Model

	// Layout
	width  int
	height int

	// Control state
	cancel     func()
	cancelling bool
	finished   bool
	Outcome    RunFinishedMsg

	// Version for display
	Version string
}

// NewEmbedModel creates the progress model for report. cancel is called when
// the user asks to stop.
func NewEmbedModel(report sequence.Report, version string, cancel func()) EmbedModel {
	sequences := make([]*sequenceState, 0, len(report.Groups))
	byFolder := make(map[string]*sequenceState, len(report.Groups))
	for _, g := range report.Groups {
		state := &sequenceState{Name: g.Name(), Total: g.FrameCount()}
		sequences = append(sequences, state)
		byFolder[g.BaseFolder] = state
	}

	fileList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	fileList.Title = "Processed Frames"
	fileList.SetShowHelp(false)

	return EmbedModel{
		totalFiles:       report.TotalFiles(),
		sequences:        sequences,
		byFolder:         byFolder,
		overallProgress:  progress.New(progress.WithDefaultGradient()),
		sequenceProgress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		fileList:         fileList,
		cancel:           cancel,
		Version:          version,
	}
}

// Init implements tea.Model
func (m EmbedModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m EmbedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Frames already running are allowed to finish; wait for RunFinishedMsg
			if !m.cancelling && m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.overallProgress.Width = max(msg.Width-30, 10)
		m.fileList.SetSize(msg.Width-4, msg.Height/3)

	case FrameCompletedMsg:
		m.processedFiles = msg.Processed
		folder := filepath.Dir(msg.File)
		state := m.byFolder[folder]
		entry := FileLogEntry{File: msg.File, Status: msg.Status}
		if msg.Error != nil {
			m.errorCount++
			entry.Error = msg.Error.Error()
			if state != nil {
				state.Errors++
			}
		}
		if state != nil {
			state.Done++
		}

		m.fileEntries = append(m.fileEntries, entry)
		if len(m.fileEntries) > maxLogEntries {
			m.fileEntries = m.fileEntries[len(m.fileEntries)-maxLogEntries:]
		}
		// Newest first
		items := make([]list.Item, len(m.fileEntries))
		for i, entry := range m.fileEntries {
			items[len(items)-1-i] = entry
		}
		m.fileList.SetItems(items)

	case TimingMsg:
		m.timing = msg

	case ReplacingMsg:
		m.replacing = msg.BaseFolder

	case RunFinishedMsg:
		m.finished = true
		m.Outcome = msg
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model
func (m EmbedModel) View() string {
	if m.finished {
		return ""
	}

	header := HeaderStyle.Render(fmt.Sprintf("EXR Matte Embedder %s", m.Version))

	overallPercent := 0.0
	if m.totalFiles > 0 {
		overallPercent = float64(m.processedFiles) / float64(m.totalFiles)
	}
	overallView := fmt.Sprintf("Overall Progress: %s (%d/%d)",
		m.overallProgress.ViewAs(overallPercent),
		m.processedFiles,
		m.totalFiles)
	if m.errorCount > 0 {
		overallView += " " + ErrorStyle.Render(fmt.Sprintf("%d failed", m.errorCount))
	}

	timingView := MutedStyle.Render(m.timingLine())

	sequenceViews := []string{"Sequences:"}
	for _, s := range m.sequences {
		percent := 0.0
		if s.Total > 0 {
			percent = float64(s.Done) / float64(s.Total)
		}
		line := fmt.Sprintf("  %-24s %s %d/%d", s.Name, m.sequenceProgress.ViewAs(percent), s.Done, s.Total)
		if s.Errors > 0 {
			line += " " + ErrorStyle.Render(fmt.Sprintf("(%d failed)", s.Errors))
		}
		sequenceViews = append(sequenceViews, line)
	}

	sections := []string{
		header,
		overallView,
		timingView,
		strings.Join(sequenceViews, "\n"),
		m.fileList.View(),
	}

	switch {
	case m.replacing != "":
		sections = append(sections, WarningStyle.Render(fmt.Sprintf("Replacing originals: %s", filepath.Base(m.replacing))))
	case m.cancelling:
		sections = append(sections, WarningStyle.Render("Cancelling, waiting for running frames to finish..."))
	default:
		sections = append(sections, "Controls: [q] Cancel")
	}

	return strings.Join(sections, "\n\n")
}

func (m EmbedModel) timingLine() string {
	if m.timing.Elapsed == 0 {
		return "Elapsed: -"
	}
	line := fmt.Sprintf("Elapsed: %s  Avg/frame: %s",
		m.timing.Elapsed.Round(time.Second), m.timing.Average.Round(time.Millisecond))
	if m.timing.Remaining > 0 {
		line += fmt.Sprintf("  Remaining: ~%s (finishes %s)",
			m.timing.Remaining.Round(time.Second),
			humanize.Time(time.Now().Add(m.timing.Remaining)))
	}
	return line
}
