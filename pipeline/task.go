// Package pipeline turns a scan report into embedded output frames: it plans
// one task per frame, runs the tasks on a bounded worker pool, aggregates the
// outcomes and optionally swaps the embedded output in for the originals.
package pipeline

import (
	"path/filepath"

	"github.com/lepinkainen/exrmatte/exr"
	"github.com/lepinkainen/exrmatte/sequence"
)

// Task embeds the mattes of one frame into one base image.
type Task struct {
	BaseFolder   string
	MatteFolders map[sequence.ChannelKey]string
	BaseFile     string
	MatteFiles   map[sequence.ChannelKey]string
	// ChannelNames maps each key to its output channel name.
	ChannelNames    map[sequence.ChannelKey]string
	Compression     exr.Compression
	ChannelBasename string
}

// BasePath is the full path of the base frame.
func (t Task) BasePath() string {
	return filepath.Join(t.BaseFolder, t.BaseFile)
}

// MattePath is the full path of the matte frame for key.
func (t Task) MattePath(key sequence.ChannelKey) string {
	return filepath.Join(t.MatteFolders[key], t.MatteFiles[key])
}

// OutputPath is where the embedded frame is written.
func (t Task) OutputPath() string {
	return filepath.Join(t.BaseFolder+sequence.EmbeddedSuffix, t.BaseFile)
}

// PlanTasks expands every group of the report into one task per frame.
// Frames are paired by index; discovery has already sorted every list by
// frame identifier. Output channel names are resolved against basename.
func PlanTasks(report sequence.Report, compression exr.Compression, basename string) []Task {
	tasks := make([]Task, 0, report.TotalFiles())
	for _, group := range report.Groups {
		names := make(map[sequence.ChannelKey]string, len(group.MatteFolders))
		for key := range group.MatteFolders {
			names[key] = sequence.ResolveChannelName(key, basename)
		}

		for i, baseFile := range group.BaseFiles {
			matteFiles := make(map[sequence.ChannelKey]string, len(group.MatteFiles))
			for key, files := range group.MatteFiles {
				matteFiles[key] = files[i]
			}
			tasks = append(tasks, Task{
				BaseFolder:      group.BaseFolder,
				MatteFolders:    group.MatteFolders,
				BaseFile:        baseFile,
				MatteFiles:      matteFiles,
				ChannelNames:    names,
				Compression:     compression,
				ChannelBasename: basename,
			})
		}
	}
	return tasks
}
