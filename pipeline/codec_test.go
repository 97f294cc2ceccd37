package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lepinkainen/exrmatte/exr"
)

var testWindow = exr.Box{MaxX: 63, MaxY: 31}

// fakeCodec serves headers from memory and records every write. Written
// files get a small payload so size and folder checks behave as with real
// output.
type fakeCodec struct {
	mu        sync.Mutex
	headers   map[string]exr.Header
	failOpen  map[string]bool
	failWrite map[string]bool
	writes    map[string]writeCall

	// gate, when set, blocks every base image open until it is closed.
	gate       chan struct{}
	baseOpened chan string
	baseOpens  atomic.Int32
}

type writeCall struct {
	header      exr.Header
	compression exr.Compression
	channels    []exr.Channel
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		headers:   make(map[string]exr.Header),
		failOpen:  make(map[string]bool),
		failWrite: make(map[string]bool),
		writes:    make(map[string]writeCall),
	}
}

func isMattePath(path string) bool {
	return strings.Contains(filepath.Base(filepath.Dir(path)), "_matte")
}

func (c *fakeCodec) header(path string) exr.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.headers[path]; ok {
		return h
	}
	if isMattePath(path) {
		return exr.Header{DataWindow: testWindow, Channels: []string{"R"}}
	}
	return exr.Header{
		DataWindow: testWindow,
		Channels:   []string{"R", "G", "B", "A"},
		Attributes: map[string]string{"writer": "Nuke", "PixelAspectRatio": "1"},
	}
}

func (c *fakeCodec) Open(ctx context.Context, path string) (exr.Image, error) {
	if !isMattePath(path) {
		c.baseOpens.Add(1)
		if c.baseOpened != nil {
			c.baseOpened <- path
		}
		if c.gate != nil {
			<-c.gate
		}
	}
	c.mu.Lock()
	fail := c.failOpen[filepath.Base(path)]
	c.mu.Unlock()
	if fail {
		return nil, &exr.CodecError{Op: "open", Path: path, Err: errors.New("corrupt file")}
	}
	return &fakeImage{path: path, header: c.header(path)}, nil
}

func (c *fakeCodec) Write(ctx context.Context, path string, header exr.Header, compression exr.Compression, channels []exr.Channel) error {
	if err := os.WriteFile(path, []byte("embedded"), 0o644); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite[filepath.Base(path)] {
		return &exr.CodecError{Op: "write", Path: path, Err: errors.New("disk full")}
	}
	c.writes[path] = writeCall{header: header, compression: compression, channels: channels}
	return nil
}

func (c *fakeCodec) written(path string) (writeCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.writes[path]
	return w, ok
}

type fakeImage struct {
	path   string
	header exr.Header
}

func (img *fakeImage) Header() exr.Header { return img.header }

func (img *fakeImage) ReadChannel(_ context.Context, name string, pixelType exr.PixelType) (exr.PixelBuffer, error) {
	for _, ch := range img.header.Channels {
		if ch == name {
			return exr.PixelBuffer{Type: pixelType, Source: exr.ChannelRef{Path: img.path, Channel: name}}, nil
		}
	}
	return exr.PixelBuffer{}, &exr.CodecError{Op: "read", Path: img.path, Err: errors.New("no such channel")}
}

func (img *fakeImage) Close() error { return nil }

// makeSequence creates folder under root with one placeholder file per name.
func makeSequence(t *testing.T, root, folder string, names ...string) string {
	t.Helper()
	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("exr"), 0o644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
	return dir
}

func frames(prefix string, ids ...string) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = prefix + "." + id + ".exr"
	}
	return names
}

func channelNames(channels []exr.Channel) []string {
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name
	}
	return names
}
