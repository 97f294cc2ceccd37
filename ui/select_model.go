package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/exrmatte/sequence"
)

// SelectModel lets the user choose which discovered sequences to embed
type SelectModel struct {
	// Data
	groups   []sequence.Group
	selected []bool
	current  int

	// UI state
	width  int
	height int

	showHelp bool

	// Control state
	confirmed bool
	quitting  bool
}

// NewSelectModel creates a selection model with every group selected
func NewSelectModel(report sequence.Report) SelectModel {
	selected := make([]bool, len(report.Groups))
	for i := range selected {
		selected[i] = true
	}
	return SelectModel{
		groups:   report.Groups,
		selected: selected,
		showHelp: true,
	}
}

// Confirmed reports whether the user accepted the selection
func (m SelectModel) Confirmed() bool {
	return m.confirmed
}

// Apply returns report reduced to the selected groups
func (m SelectModel) Apply(report sequence.Report) sequence.Report {
	keep := make(map[string]bool, len(m.groups))
	for i, g := range m.groups {
		if m.selected[i] {
			keep[g.BaseFolder] = true
		}
	}
	return report.Filter(func(g sequence.Group) bool { return keep[g.BaseFolder] })
}

// Init implements tea.Model
func (m SelectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m SelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleInput(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m SelectModel) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "h", "?":
		m.showHelp = !m.showHelp

	case "up", "k":
		if m.current > 0 {
			m.current--
		}

	case "down", "j":
		if m.current < len(m.groups)-1 {
			m.current++
		}

	case " ": // spacebar to toggle selection
		if len(m.selected) > 0 {
			m.selected[m.current] = !m.selected[m.current]
		}

	case "a":
		for i := range m.selected {
			m.selected[i] = true
		}

	case "c":
		for i := range m.selected {
			m.selected[i] = false
		}

	case "enter":
		if m.selectedCount() == 0 {
			return m, nil
		}
		m.confirmed = true
		return m, tea.Quit
	}

	return m, nil
}

func (m SelectModel) selectedCount() int {
	n := 0
	for _, s := range m.selected {
		if s {
			n++
		}
	}
	return n
}

func (m SelectModel) selectedFrames() int {
	n := 0
	for i, g := range m.groups {
		if m.selected[i] {
			n += g.FrameCount()
		}
	}
	return n
}

// View implements tea.Model
func (m SelectModel) View() string {
	if m.quitting || m.confirmed {
		return ""
	}

	if len(m.groups) == 0 {
		style := WarningStyle.MarginTop(2).MarginLeft(2)
		return style.Render("No sequences to select.\n\nPress 'q' to quit.")
	}

	var content strings.Builder

	header := fmt.Sprintf("Select sequences to embed (%d of %d selected, %d frames)",
		m.selectedCount(), len(m.groups), m.selectedFrames())
	content.WriteString(HeaderStyle.Render(header))
	content.WriteString("\n\n")
	content.WriteString(m.renderGroupList())
	content.WriteString("\n")

	if m.showHelp {
		content.WriteString(m.renderHelp())
	} else {
		content.WriteString("Press 'h' for help")
	}

	return content.String()
}

func (m SelectModel) renderGroupList() string {
	var content strings.Builder

	folders := make([]string, len(m.groups))
	for i, g := range m.groups {
		folders[i] = g.BaseFolder
	}
	displayPaths := optimizePaths(folders)

	for i, group := range m.groups {
		var line strings.Builder

		if m.selected[i] {
			line.WriteString("[✓] ")
		} else {
			line.WriteString("[ ] ")
		}

		name := group.Name()
		switch {
		case i == m.current && m.selected[i]:
			line.WriteString(SuccessStyle.Reverse(true).Render(name))
		case i == m.current:
			line.WriteString(lipgloss.NewStyle().Reverse(true).Render(name))
		case m.selected[i]:
			line.WriteString(SuccessStyle.Render(name))
		default:
			line.WriteString(name)
		}

		line.WriteString(fmt.Sprintf(" %s, %d frames ", group.SequenceType(), group.FrameCount()))
		line.WriteString(MutedStyle.Render(fmt.Sprintf("(%s)", displayPaths[i])))
		content.WriteString(line.String())
		content.WriteString("\n")
	}

	return content.String()
}

// optimizePaths finds the common path prefix and returns optimized display paths
// that show only the meaningful differences, keeping the topmost directory for context
func optimizePaths(paths []string) []string {
	if len(paths) <= 1 {
		return paths
	}

	pathComponents := make([][]string, len(paths))
	for i, path := range paths {
		pathComponents[i] = strings.Split(filepath.Clean(path), string(filepath.Separator))
	}

	maxLength := len(pathComponents[0])
	for _, components := range pathComponents[1:] {
		maxLength = min(maxLength, len(components))
	}

	commonPrefixLength := 0
	for i := 0; i < maxLength; i++ {
		first := pathComponents[0][i]
		allMatch := true
		for _, components := range pathComponents[1:] {
			if components[i] != first {
				allMatch = false
				break
			}
		}
		if !allMatch {
			break
		}
		commonPrefixLength = i + 1
	}

	result := make([]string, len(paths))
	for i, components := range pathComponents {
		// Keep one level of context above the first differing component
		startIndex := commonPrefixLength
		if startIndex > 0 && len(components) > startIndex {
			startIndex = commonPrefixLength - 1
		}

		if startIndex >= len(components) {
			result[i] = paths[i]
			continue
		}
		result[i] = filepath.Join(components[startIndex:]...)
		if startIndex > 0 {
			result[i] = "..." + string(filepath.Separator) + result[i]
		}
	}

	return result
}

func (m SelectModel) renderHelp() string {
	help := []string{
		"",
		"Navigation:",
		"  ↑/↓ or j/k   Move between sequences",
		"",
		"Selection:",
		"  Space        Toggle sequence",
		"  a            Select all sequences",
		"  c            Clear all selections",
		"",
		"Actions:",
		"  Enter        Embed the selected sequences",
		"  h/?          Toggle this help",
		"  q/Esc        Abort without processing",
		"",
	}

	return strings.Join(help, "\n")
}
