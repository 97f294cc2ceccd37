package exr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultOIIOTool is the oiiotool binary looked up on PATH.
const DefaultOIIOTool = "oiiotool"

var (
	// sizeLineRegex matches the summary line: "<path> :  1920 x 1080, 4 channel, half openexr"
	sizeLineRegex = regexp.MustCompile(`:\s+(\d+)\s+x\s+(\d+),\s+(\d+)\s+channel`)
	originRegex   = regexp.MustCompile(`x=(-?\d+),\s*y=(-?\d+)`)
)

// infoSkipKeys are --info lines that describe layout rather than metadata.
var infoSkipKeys = []string{
	"channel list",
	"SHA-1",
	"pixel data origin",
	"full/display size",
	"full/display origin",
	"tile size",
	"compression",
}

// OIIOCodec reads headers with `oiiotool --info -v` and writes embedded
// frames by composing channels from their source files with --ch/--chappend.
// Channels are never decoded in process.
type OIIOCodec struct {
	Binary string
	Logger *log.Logger
}

// NewOIIOCodec returns a codec using the given oiiotool binary, or the one on PATH.
func NewOIIOCodec(binary string, logger *log.Logger) *OIIOCodec {
	if binary == "" {
		binary = DefaultOIIOTool
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &OIIOCodec{Binary: binary, Logger: logger}
}

type oiioImage struct {
	path   string
	header Header
}

func (img *oiioImage) Header() Header { return img.header }

func (img *oiioImage) ReadChannel(_ context.Context, name string, pixelType PixelType) (PixelBuffer, error) {
	if !slices.Contains(img.header.Channels, name) {
		return PixelBuffer{}, &CodecError{Op: "read", Path: img.path, Err: fmt.Errorf("channel %q not found", name)}
	}
	return PixelBuffer{Type: pixelType, Source: ChannelRef{Path: img.path, Channel: name}}, nil
}

func (img *oiioImage) Close() error { return nil }

// Open reads the header of path.
func (c *OIIOCodec) Open(ctx context.Context, path string) (Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &CodecError{Op: "open", Path: path, Err: err}
	}

	cmd := exec.CommandContext(ctx, c.Binary, "--info", "-v", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &CodecError{Op: "open", Path: path, Err: fmt.Errorf("%w: %s", err, extractFirstLine(string(output)))}
	}

	header, err := parseInfo(string(output))
	if err != nil {
		return nil, &CodecError{Op: "open", Path: path, Err: err}
	}
	return &oiioImage{path: path, header: header}, nil
}

// Write composes the output file from the channels' sources. The output
// carries the metadata of the first source file as oiiotool reads it, so
// typed attributes keep their types. header only feeds the producer tags to
// erase; its other attributes are not re-applied.
func (c *OIIOCodec) Write(ctx context.Context, path string, header Header, compression Compression, channels []Channel) error {
	args, err := writeArgs(path, header, compression, channels)
	if err != nil {
		return &CodecError{Op: "write", Path: path, Err: err}
	}

	c.Logger.Debug("Running oiiotool", "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return &CodecError{Op: "write", Path: path, Err: fmt.Errorf("%w: %s", err, extractFirstLine(string(output)))}
	}
	return nil
}

// writeArgs builds the oiiotool argument list. Consecutive channels from the
// same source file share one --ch selection; each later selection is appended
// to the first with --chappend. Producer tags are erased from the result and
// oiiotool is kept from stamping its own.
func writeArgs(path string, header Header, compression Compression, channels []Channel) ([]string, error) {
	if len(channels) == 0 {
		return nil, errors.New("no channels to write")
	}

	args := []string{"--nosoftwareattrib"}
	var selection []string
	source := ""
	inputs := 0

	flush := func() {
		if source == "" {
			return
		}
		args = append(args, source, "--ch", strings.Join(selection, ","))
		if inputs > 0 {
			args = append(args, "--chappend")
		}
		inputs++
		selection = selection[:0]
	}

	for _, ch := range channels {
		ref := ch.Pixels.Source
		if ref.Path == "" {
			return nil, fmt.Errorf("channel %q has no source file", ch.Name)
		}
		if ref.Path != source {
			flush()
			source = ref.Path
		}
		if ch.Name == ref.Channel {
			selection = append(selection, ch.Name)
		} else {
			selection = append(selection, ch.Name+"="+ref.Channel)
		}
	}
	flush()

	for _, name := range eraseAttributes(header) {
		args = append(args, "--eraseattrib", name)
	}

	if compression == "" {
		compression = DefaultCompression
	}
	args = append(args, "--compression", string(compression), "-d", "half", "-o", path)
	return args, nil
}

// eraseAttributes lists the producer tags to remove: the known names plus
// any spelling of them found in header.
func eraseAttributes(header Header) []string {
	names := slices.Clone(WriterAttributes)
	for name := range header.Attributes {
		if IsWriterAttribute(name) && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names[len(WriterAttributes):])
	return names
}

// parseInfo parses the output of `oiiotool --info -v` for a single file.
func parseInfo(output string) (Header, error) {
	header := Header{Attributes: make(map[string]string)}
	sized := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if !sized {
			if m := sizeLineRegex.FindStringSubmatch(line); m != nil {
				w, _ := strconv.Atoi(m[1])
				h, _ := strconv.Atoi(m[2])
				header.DataWindow = Box{MaxX: w - 1, MaxY: h - 1}
				sized = true
				continue
			}
		}

		// Attribute names may themselves contain colons ("oiio:ColorSpace")
		key, value, ok := strings.Cut(trimmed, ": ")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch key {
		case "channel list":
			for _, name := range strings.Split(value, ",") {
				// Names may carry a type annotation: "R (half)"
				name, _, _ = strings.Cut(strings.TrimSpace(name), " ")
				if name != "" {
					header.Channels = append(header.Channels, name)
				}
			}
		case "pixel data origin":
			if m := originRegex.FindStringSubmatch(value); m != nil {
				x, _ := strconv.Atoi(m[1])
				y, _ := strconv.Atoi(m[2])
				header.DataWindow.MinX += x
				header.DataWindow.MaxX += x
				header.DataWindow.MinY += y
				header.DataWindow.MaxY += y
			}
		}

		if slices.Contains(infoSkipKeys, key) {
			continue
		}
		header.Attributes[key] = value
	}
	if err := scanner.Err(); err != nil {
		return Header{}, err
	}

	if !sized {
		return Header{}, errors.New("unrecognized oiiotool --info output")
	}
	if len(header.Channels) == 0 {
		return Header{}, errors.New("no channels reported")
	}
	return header, nil
}

// extractFirstLine extracts just the first line from a multi-line string
func extractFirstLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0])
	}
	return "no additional information available"
}
