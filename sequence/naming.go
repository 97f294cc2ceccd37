package sequence

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ChannelKey identifies a matte channel within a group. It is either
// BaseChannel or the lowercased suffix of the matte folder name.
type ChannelKey string

const (
	// BaseChannel is the key of a matte folder named exactly <base>_matte.
	BaseChannel ChannelKey = "base"

	// MatteMarker separates the base folder name from the optional suffix.
	MatteMarker = "_matte"

	// EmbeddedSuffix is appended to a base folder to form its output folder.
	EmbeddedSuffix = "_embedded"

	// DefaultChannelBasename is the output channel name used when none is configured.
	DefaultChannelBasename = "matte"
)

// matteFolderRegex is the folder grammar: <base-name> "_matte" [suffix].
// The suffix, when present, starts with a letter or digit.
var matteFolderRegex = regexp.MustCompile(`^(.+)_matte([A-Za-z0-9][A-Za-z0-9_-]*)?$`)

// reservedSuffixes collide with the base image's own channels and always get
// the matte_ disambiguation prefix.
var reservedSuffixes = []string{"r", "g", "b", "a"}

// ParseMatteFolder splits a matte folder name into the base folder name and
// the suffix exactly as written. ok is false when name does not follow the grammar.
func ParseMatteFolder(name string) (base, suffix string, ok bool) {
	m := matteFolderRegex.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// KeyForSuffix converts a folder suffix into its channel key. The empty
// suffix is BaseChannel; a literal "base" suffix is rejected because it would
// shadow the sentinel.
func KeyForSuffix(suffix string) (ChannelKey, error) {
	if suffix == "" {
		return BaseChannel, nil
	}
	lower := strings.ToLower(suffix)
	if ChannelKey(lower) == BaseChannel {
		return "", fmt.Errorf("suffix %q is reserved", suffix)
	}
	return ChannelKey(lower), nil
}

// IsReservedSuffix reports whether key names one of the base image channels
// R, G, B or A, compared case-insensitively.
func IsReservedSuffix(key ChannelKey) bool {
	return slices.Contains(reservedSuffixes, strings.ToLower(string(key)))
}

// ResolveChannelName maps a channel key to the output channel name.
//
//	base        -> <basename>
//	r, g, b, a  -> <basename>.matte_<lowercase suffix>
//	other       -> <basename>.<suffix>
func ResolveChannelName(key ChannelKey, basename string) string {
	switch {
	case key == BaseChannel:
		return basename
	case IsReservedSuffix(key):
		return basename + ".matte_" + strings.ToLower(string(key))
	default:
		return basename + "." + string(key)
	}
}

// IsBaseImageChannel reports whether name is one of the reserved base image
// channels.
func IsBaseImageChannel(name string) bool {
	return slices.Contains(reservedSuffixes, strings.ToLower(name))
}

// ValidateChannelBasename rejects basenames that could collide with the base
// image's channels or nest unexpectedly in the channel hierarchy.
func ValidateChannelBasename(basename string) error {
	switch {
	case strings.TrimSpace(basename) == "":
		return fmt.Errorf("matte channel name must not be empty")
	case basename != strings.TrimSpace(basename):
		return fmt.Errorf("matte channel name %q has surrounding whitespace", basename)
	case IsBaseImageChannel(basename):
		return fmt.Errorf("matte channel name %q collides with a base image channel", basename)
	case strings.Contains(basename, "."):
		return fmt.Errorf("matte channel name %q must not contain '.'", basename)
	}
	return nil
}

// SortedKeys returns the keys in display order: BaseChannel first, then the
// rest alphabetically.
func SortedKeys[V any](m map[ChannelKey]V) []ChannelKey {
	keys := make([]ChannelKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b ChannelKey) int {
		switch {
		case a == b:
			return 0
		case a == BaseChannel:
			return -1
		case b == BaseChannel:
			return 1
		}
		return strings.Compare(string(a), string(b))
	})
	return keys
}
