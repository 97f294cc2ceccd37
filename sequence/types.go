package sequence

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Group is a base image sequence together with every matte sequence that
// belongs to it. Once accepted by discovery, every MatteFiles list has the
// same length as BaseFiles and index i of each list holds the same frame.
type Group struct {
	BaseFolder   string
	MatteFolders map[ChannelKey]string
	BaseFiles    []string
	MatteFiles   map[ChannelKey][]string
	// ChannelNames holds the resolved output channel name per key.
	ChannelNames map[ChannelKey]string
}

// Name returns the base folder's name for display.
func (g Group) Name() string {
	return filepath.Base(g.BaseFolder)
}

// Keys returns the group's channel keys, BaseChannel first.
func (g Group) Keys() []ChannelKey {
	return SortedKeys(g.MatteFolders)
}

// IsSingleChannel reports whether the group only has the <base>_matte folder.
func (g Group) IsSingleChannel() bool {
	_, ok := g.MatteFolders[BaseChannel]
	return ok && len(g.MatteFolders) == 1
}

// SequenceType is the human readable classification of the group.
func (g Group) SequenceType() string {
	if g.IsSingleChannel() {
		return "Single Channel Matte"
	}
	names := make([]string, 0, len(g.MatteFolders))
	for _, key := range g.Keys() {
		names = append(names, g.ChannelNames[key])
	}
	return fmt.Sprintf("Multi-Channel (%s)", strings.Join(names, ", "))
}

// OutputFolder is where embedded frames for this group are written.
func (g Group) OutputFolder() string {
	return g.BaseFolder + EmbeddedSuffix
}

// FrameCount is the number of frames that will be embedded.
func (g Group) FrameCount() int {
	return len(g.BaseFiles)
}

// Report is the result of scanning a root folder.
type Report struct {
	Root     string
	Groups   []Group
	Warnings []string
}

// TotalSequences is the number of accepted groups.
func (r Report) TotalSequences() int {
	return len(r.Groups)
}

// TotalFiles is the number of output frames the report will produce.
func (r Report) TotalFiles() int {
	total := 0
	for _, g := range r.Groups {
		total += g.FrameCount()
	}
	return total
}

// Filter returns a copy of the report keeping only the groups whose base
// folder satisfies keep. Warnings are preserved.
func (r Report) Filter(keep func(Group) bool) Report {
	out := Report{Root: r.Root, Warnings: append([]string(nil), r.Warnings...)}
	for _, g := range r.Groups {
		if keep(g) {
			out.Groups = append(out.Groups, g)
		}
	}
	return out
}
