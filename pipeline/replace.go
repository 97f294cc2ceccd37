package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lepinkainen/exrmatte/sequence"
	"github.com/lepinkainen/exrmatte/trash"
)

// Replacement stages, reported in ReplacementError.Stage.
const (
	StageNested          = "check nested sequences"
	StageVerify          = "verify output"
	StageStage           = "stage output"
	StageQuarantineMatte = "quarantine matte folder"
	StageQuarantineBase  = "quarantine base folder"
	StageRename          = "rename output"
)

// stagingMarker separates the base folder name from the run ID in the
// temporary name the embedded output is parked under.
const stagingMarker = ".exrmatte-"

// OriginalsReplacer swaps a group's embedded output in for its original
// folders. The output is first renamed to a staging name next to the base
// folder, then the originals are quarantined, then the staging folder takes
// the base folder's name. At every step the data exists somewhere on disk.
type OriginalsReplacer struct {
	Quarantiner trash.Quarantiner
	RunID       string
	Logger      *log.Logger
}

func (r *OriginalsReplacer) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.New(io.Discard)
}

// StagingPath is the temporary location of a group's embedded output.
func (r *OriginalsReplacer) StagingPath(group sequence.Group) string {
	return group.BaseFolder + stagingMarker + r.RunID
}

// Replace performs the swap for one group. It returns nil on success.
func (r *OriginalsReplacer) Replace(group sequence.Group) *ReplacementError {
	logger := r.logger()
	embedded := group.OutputFolder()
	staging := r.StagingPath(group)

	fail := func(stage string, err error, recovery string) *ReplacementError {
		logger.Error("Replacement failed", "base", group.BaseFolder, "stage", stage, "err", err)
		return &ReplacementError{BaseFolder: group.BaseFolder, Stage: stage, Err: err, Recovery: recovery}
	}

	if err := verifyOutput(embedded, group.FrameCount()); err != nil {
		return fail(StageVerify, err, "originals are untouched")
	}

	if _, err := os.Lstat(staging); err == nil {
		return fail(StageStage, fmt.Errorf("%s already exists", staging), "originals are untouched")
	}
	if err := os.Rename(embedded, staging); err != nil {
		return fail(StageStage, err, "originals are untouched")
	}
	logger.Debug("Staged embedded output", "from", embedded, "to", staging)

	// unstage puts the output back where the user expects it
	unstage := func() string {
		if err := os.Rename(staging, embedded); err != nil {
			return fmt.Sprintf("embedded output is at %s", staging)
		}
		return fmt.Sprintf("embedded output is at %s", embedded)
	}

	var moved []string
	for _, key := range sequence.SortedKeys(group.MatteFolders) {
		folder := group.MatteFolders[key]
		dst, err := r.Quarantiner.Quarantine(folder)
		if err != nil {
			recovery := unstage()
			if len(moved) > 0 {
				recovery += "; already quarantined: " + strings.Join(moved, ", ")
			}
			return fail(StageQuarantineMatte, fmt.Errorf("%s: %w", folder, err), recovery)
		}
		logger.Debug("Quarantined matte folder", "folder", folder, "to", dst)
		moved = append(moved, fmt.Sprintf("%s -> %s", folder, dst))
	}

	baseDst, err := r.Quarantiner.Quarantine(group.BaseFolder)
	if err != nil {
		recovery := unstage() + "; already quarantined: " + strings.Join(moved, ", ")
		return fail(StageQuarantineBase, err, recovery)
	}
	logger.Debug("Quarantined base folder", "folder", group.BaseFolder, "to", baseDst)

	if err := os.Rename(staging, group.BaseFolder); err != nil {
		recovery := fmt.Sprintf("embedded output is at %s; original base folder is at %s", staging, baseDst)
		return fail(StageRename, err, recovery)
	}

	logger.Info("Replaced originals", "base", group.BaseFolder)
	return nil
}

// verifyOutput checks that dir holds at least frames image files.
func verifyOutput(dir string, frames int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("embedded folder %s does not exist", dir)
		}
		return err
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && sequence.IsImageFile(entry.Name()) {
			count++
		}
	}
	if count < frames {
		return fmt.Errorf("embedded folder %s has %d of %d frames", dir, count, frames)
	}
	return nil
}

// NestedGroups maps the base folder of every group whose base or matte
// folders contain another group's folders to the folders it contains.
// Quarantining such a group would take the other group's files with it.
func NestedGroups(groups []sequence.Group) map[string][]string {
	nested := make(map[string][]string)
	for _, outer := range groups {
		moved := append([]string{outer.BaseFolder}, mapValues(outer.MatteFolders)...)
		for _, inner := range groups {
			if inner.BaseFolder == outer.BaseFolder {
				continue
			}
			folders := append([]string{inner.BaseFolder, inner.OutputFolder()}, mapValues(inner.MatteFolders)...)
			for _, folder := range folders {
				if slices.ContainsFunc(moved, func(parent string) bool { return isWithin(parent, folder) }) {
					nested[outer.BaseFolder] = append(nested[outer.BaseFolder], folder)
				}
			}
		}
	}
	for _, folders := range nested {
		slices.Sort(folders)
	}
	return nested
}

func mapValues(m map[sequence.ChannelKey]string) []string {
	values := make([]string, 0, len(m))
	for _, key := range sequence.SortedKeys(m) {
		values = append(values, m[key])
	}
	return values
}

// isWithin reports whether path lies below dir.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
