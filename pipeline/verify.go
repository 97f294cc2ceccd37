package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/lepinkainen/exrmatte/exr"
	"github.com/lepinkainen/exrmatte/sequence"
)

// FrameCheck is the result of checking one frame for embedded mattes.
type FrameCheck struct {
	File string
	// Found lists the matte channels present in the frame.
	Found   []string
	Missing []string
	Err     error
}

// OK reports whether the frame carries every expected matte channel.
func (c FrameCheck) OK() bool {
	return c.Err == nil && len(c.Missing) == 0
}

// VerifyFolder checks every image in folder for matte channels named after
// basename. When expected is empty a frame passes if it has at least one
// such channel; otherwise every name in expected must be present.
func VerifyFolder(ctx context.Context, codec exr.Codec, folder, basename string, expected []string) ([]FrameCheck, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", folder, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && sequence.IsImageFile(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	sequence.SortByFrame(files)

	checks := make([]FrameCheck, 0, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return checks, err
		}
		checks = append(checks, verifyFrame(ctx, codec, filepath.Join(folder, name), basename, expected))
	}
	return checks, nil
}

func verifyFrame(ctx context.Context, codec exr.Codec, path, basename string, expected []string) FrameCheck {
	check := FrameCheck{File: path}

	img, err := codec.Open(ctx, path)
	if err != nil {
		check.Err = err
		return check
	}
	defer img.Close()

	channels := img.Header().Channels
	for _, name := range channels {
		if isMatteChannel(name, basename) {
			check.Found = append(check.Found, name)
		}
	}

	if len(expected) == 0 {
		if len(check.Found) == 0 {
			check.Missing = []string{basename}
		}
		return check
	}
	for _, name := range expected {
		if !slices.Contains(channels, name) {
			check.Missing = append(check.Missing, name)
		}
	}
	return check
}
