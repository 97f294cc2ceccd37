package sequence

import (
	"fmt"
	"slices"
	"strings"
)

// FrameMismatch lists the frame identifiers by which one matte channel
// differs from the base sequence.
type FrameMismatch struct {
	Key     ChannelKey
	Missing []string // in the base sequence but not in the channel
	Extra   []string // in the channel but not in the base sequence
}

func (m FrameMismatch) String() string {
	var parts []string
	if len(m.Missing) > 0 {
		parts = append(parts, "missing frames "+strings.Join(m.Missing, ", "))
	}
	if len(m.Extra) > 0 {
		parts = append(parts, "extra frames "+strings.Join(m.Extra, ", "))
	}
	return fmt.Sprintf("channel %s: %s", m.Key, strings.Join(parts, "; "))
}

// ValidateFrames compares the frame identifiers of every matte channel with
// those of the base sequence. Identifiers are compared as multisets, so a
// frame that appears twice in one list and once in the other is reported.
// The returned slice is empty when every channel matches.
func ValidateFrames(baseFiles []string, matteFiles map[ChannelKey][]string) []FrameMismatch {
	baseCounts := countIDs(baseFiles)

	var mismatches []FrameMismatch
	for _, key := range SortedKeys(matteFiles) {
		counts := countIDs(matteFiles[key])
		m := FrameMismatch{Key: key}
		for id, n := range baseCounts {
			if counts[id] < n {
				m.Missing = append(m.Missing, id)
			}
		}
		for id, n := range counts {
			if baseCounts[id] < n {
				m.Extra = append(m.Extra, id)
			}
		}
		if len(m.Missing) == 0 && len(m.Extra) == 0 {
			continue
		}
		sortIDs(m.Missing)
		sortIDs(m.Extra)
		mismatches = append(mismatches, m)
	}
	return mismatches
}

func countIDs(files []string) map[string]int {
	counts := make(map[string]int, len(files))
	for id := range FrameIDs(files) {
		counts[id]++
	}
	return counts
}

func sortIDs(ids []string) {
	slices.SortFunc(ids, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case frameLess(a, b):
			return -1
		}
		return 1
	})
}

// SortByFrame orders filenames by parsed frame identifier, falling back to
// the filename for equal identifiers. After validation this makes index i
// of every list in a group refer to the same frame.
func SortByFrame(files []string) {
	slices.SortStableFunc(files, func(a, b string) int {
		ia, ib := FrameID(a), FrameID(b)
		switch {
		case ia != ib && frameLess(ia, ib):
			return -1
		case ia != ib:
			return 1
		}
		return strings.Compare(a, b)
	})
}
