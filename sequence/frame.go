package sequence

import (
	"iter"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// trailingFrameRegex matches a run of 4+ digits directly before the extension: shot.1001.exr, shot_1001.exr
	trailingFrameRegex = regexp.MustCompile(`(\d{4,})\.[^.]+$`)
	anyFrameRegex      = regexp.MustCompile(`\d{4,}`)
)

// FrameID extracts the frame identifier used to pair a base file with its
// matte files. The identifier is a string: "0100" and "100" are different frames.
func FrameID(filename string) string {
	name := filepath.Base(filename)

	if m := trailingFrameRegex.FindStringSubmatch(name); m != nil {
		return m[1]
	}

	if runs := anyFrameRegex.FindAllString(name, -1); len(runs) > 0 {
		return runs[len(runs)-1]
	}

	return strings.TrimSuffix(name, filepath.Ext(name))
}

// FrameIDs yields the frame identifier of each filename in order. The
// sequence can be ranged over any number of times.
func FrameIDs(filenames []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range filenames {
			if !yield(FrameID(name)) {
				return
			}
		}
	}
}

// frameLess orders identifiers numerically when both are digit runs and
// lexically otherwise.
func frameLess(a, b string) bool {
	if isDigits(a) && isDigits(b) {
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			return len(ta) < len(tb)
		}
		if ta != tb {
			return ta < tb
		}
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
