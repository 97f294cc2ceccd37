package sequence

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// imageExtensions are the recognized image file extensions (lowercase, with leading dot).
var imageExtensions = []string{".exr"}

// IsImageFile reports whether path has a recognized image extension.
func IsImageFile(path string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path)))
}

// Discoverer scans directory trees for base/matte folder groups.
type Discoverer struct {
	// ChannelBasename is used to resolve output channel names. Defaults to DefaultChannelBasename.
	ChannelBasename string
	Logger          *log.Logger
}

// Discover scans root with default settings.
func Discover(root string) (Report, error) {
	return (&Discoverer{}).Discover(root)
}

// pendingGroup collects matte folders for one base folder during traversal.
type pendingGroup struct {
	matteFolders map[ChannelKey]string
}

// Discover walks root and returns every base folder whose matte sequences
// pass the count and frame checks. Problems with individual folders become
// warnings; only an unreadable root is returned as an error.
func (d *Discoverer) Discover(root string) (Report, error) {
	logger := d.logger()
	basename := d.ChannelBasename
	if basename == "" {
		basename = DefaultChannelBasename
	}

	info, err := os.Stat(root)
	if err != nil {
		return Report{}, fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		return Report{}, fmt.Errorf("%s is not a directory", root)
	}

	report := Report{Root: root}
	pending := make(map[string]*pendingGroup)

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			report.Warnings = append(report.Warnings, fmt.Sprintf("Error reading folder %s: %v", path, err))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() || path == root {
			return nil
		}
		// Hidden folders hold quarantined originals and other tool state
		if strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}

		baseName, suffix, ok := ParseMatteFolder(entry.Name())
		if !ok {
			return nil
		}

		baseFolder := filepath.Join(filepath.Dir(path), baseName)
		if fi, statErr := os.Stat(baseFolder); statErr != nil || !fi.IsDir() {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Base folder not found for matte folder: %s", path))
			return nil
		}

		key, keyErr := KeyForSuffix(suffix)
		if keyErr != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Ignoring matte folder %s: %v", path, keyErr))
			return nil
		}

		group, exists := pending[baseFolder]
		if !exists {
			group = &pendingGroup{matteFolders: make(map[ChannelKey]string)}
			pending[baseFolder] = group
		}
		if previous, dup := group.matteFolders[key]; dup {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"Channel %s of %s is defined by both %s and %s; using %s",
				key, baseFolder, filepath.Base(previous), entry.Name(), entry.Name()))
		}
		group.matteFolders[key] = path
		logger.Debug("Found matte folder", "base", baseFolder, "channel", key, "folder", path)
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	baseFolders := make([]string, 0, len(pending))
	for baseFolder := range pending {
		baseFolders = append(baseFolders, baseFolder)
	}
	slices.Sort(baseFolders)

	for _, baseFolder := range baseFolders {
		group, warnings := buildGroup(baseFolder, pending[baseFolder].matteFolders, basename)
		report.Warnings = append(report.Warnings, warnings...)
		if group == nil {
			logger.Debug("Rejected group", "base", baseFolder)
			continue
		}
		logger.Debug("Accepted group", "base", baseFolder, "frames", group.FrameCount(), "type", group.SequenceType())
		report.Groups = append(report.Groups, *group)
	}

	return report, nil
}

// buildGroup lists and validates the files of one base folder and its matte
// folders. A nil group means the whole group was rejected.
func buildGroup(baseFolder string, matteFolders map[ChannelKey]string, basename string) (*Group, []string) {
	var warnings []string

	baseFiles, err := listImages(baseFolder)
	if err != nil {
		return nil, append(warnings, fmt.Sprintf("Error reading base folder %s: %v", baseFolder, err))
	}
	if len(baseFiles) == 0 {
		return nil, append(warnings, fmt.Sprintf("No EXR files found in base folder: %s", baseFolder))
	}

	matteFiles := make(map[ChannelKey][]string, len(matteFolders))
	for _, key := range SortedKeys(matteFolders) {
		folder := matteFolders[key]
		files, err := listImages(folder)
		if err != nil {
			return nil, append(warnings, fmt.Sprintf("Error reading matte folder %s: %v", folder, err))
		}
		if len(files) != len(baseFiles) {
			msg := fmt.Sprintf("File count mismatch for %s: expected %d, found %d", folder, len(baseFiles), len(files))
			if diff := ValidateFrames(baseFiles, map[ChannelKey][]string{key: files}); len(diff) > 0 {
				msg += fmt.Sprintf(" (%s)", diff[0])
			}
			return nil, append(warnings, msg)
		}
		matteFiles[key] = files
	}

	if mismatches := ValidateFrames(baseFiles, matteFiles); len(mismatches) > 0 {
		for _, m := range mismatches {
			warnings = append(warnings, fmt.Sprintf("Frame mismatch for %s %s", baseFolder, m))
		}
		return nil, warnings
	}

	names := make(map[ChannelKey]string, len(matteFolders))
	owners := make(map[string]ChannelKey, len(matteFolders))
	for _, key := range SortedKeys(matteFolders) {
		name := ResolveChannelName(key, basename)
		if other, taken := owners[name]; taken {
			return nil, append(warnings, fmt.Sprintf(
				"Channel name collision for %s: %s and %s both resolve to %s", baseFolder, other, key, name))
		}
		owners[name] = key
		names[key] = name
	}

	SortByFrame(baseFiles)
	for _, files := range matteFiles {
		SortByFrame(files)
	}

	return &Group{
		BaseFolder:   baseFolder,
		MatteFolders: matteFolders,
		BaseFiles:    baseFiles,
		MatteFiles:   matteFiles,
		ChannelNames: names,
	}, warnings
}

// listImages returns the recognized image files directly inside folder,
// sorted by name. Hidden files are skipped.
func listImages(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !IsImageFile(name) {
			continue
		}
		files = append(files, name)
	}
	slices.Sort(files)
	return files, nil
}

func (d *Discoverer) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.New(io.Discard)
}
