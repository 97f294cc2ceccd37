package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lepinkainen/exrmatte/exr"
	"github.com/lepinkainen/exrmatte/sequence"
)

// matteSourceChannel is the channel matte images are read from.
const matteSourceChannel = "R"

// embedder executes tasks against a codec.
type embedder struct {
	codec exr.Codec
}

// isMatteChannel reports whether a base channel was written by a previous
// embed with the same basename and should be replaced.
func isMatteChannel(name, basename string) bool {
	return name == basename || strings.HasPrefix(name, basename+".")
}

// run embeds one frame and always returns an outcome.
func (e *embedder) run(ctx context.Context, task Task) TaskOutcome {
	outcome := TaskOutcome{BaseFolder: task.BaseFolder, BaseFile: task.BaseFile, Output: task.OutputPath()}
	size, err := e.embed(ctx, task)
	outcome.Bytes = size
	outcome.Err = err
	return outcome
}

func (e *embedder) embed(ctx context.Context, task Task) (int64, error) {
	base, err := e.codec.Open(ctx, task.BasePath())
	if err != nil {
		return 0, fmt.Errorf("error opening base file: %w", err)
	}
	defer base.Close()

	in := base.Header()
	header := exr.Header{
		DataWindow: in.DataWindow,
		Attributes: make(map[string]string, len(in.Attributes)),
	}
	for name, value := range in.Attributes {
		if !exr.IsWriterAttribute(name) {
			header.Attributes[name] = value
		}
	}

	var channels []exr.Channel
	for _, name := range in.Channels {
		if isMatteChannel(name, task.ChannelBasename) {
			continue
		}
		buf, err := base.ReadChannel(ctx, name, exr.Half)
		if err != nil {
			return 0, fmt.Errorf("error reading base channel %s: %w", name, err)
		}
		channels = append(channels, exr.Channel{Name: name, Pixels: buf})
	}

	for _, key := range sequence.SortedKeys(task.MatteFolders) {
		buf, err := e.readMatte(ctx, task.MattePath(key), in.DataWindow)
		if err != nil {
			return 0, fmt.Errorf("error processing matte channel %s: %w", key, err)
		}
		channels = append(channels, exr.Channel{Name: task.ChannelNames[key], Pixels: buf})
	}

	for _, ch := range channels {
		header.Channels = append(header.Channels, ch.Name)
	}

	outDir := filepath.Dir(task.OutputPath())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("error creating output folder: %w", err)
	}

	out := task.OutputPath()
	if err := e.codec.Write(ctx, out, header, task.Compression, channels); err != nil {
		// Never leave a truncated frame behind
		if rmErr := os.Remove(out); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
		return 0, fmt.Errorf("error writing output file: %w", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		return 0, fmt.Errorf("output file missing after write: %w", err)
	}
	return info.Size(), nil
}

// readMatte returns the matte's R channel, or its only channel when it has
// no R, after checking that it covers the same pixels as the base.
func (e *embedder) readMatte(ctx context.Context, path string, window exr.Box) (exr.PixelBuffer, error) {
	img, err := e.codec.Open(ctx, path)
	if err != nil {
		return exr.PixelBuffer{}, err
	}
	defer img.Close()

	header := img.Header()
	if header.DataWindow != window {
		return exr.PixelBuffer{}, fmt.Errorf("data window %dx%d does not match base %dx%d",
			header.DataWindow.Width(), header.DataWindow.Height(), window.Width(), window.Height())
	}

	source := matteSourceChannel
	if !slices.Contains(header.Channels, source) {
		if len(header.Channels) != 1 {
			return exr.PixelBuffer{}, fmt.Errorf("no %s channel in %s", source, filepath.Base(path))
		}
		source = header.Channels[0]
	}
	return img.ReadChannel(ctx, source, exr.Half)
}
