// Package exr defines the image codec used to read base and matte frames and
// write the embedded result, and provides an implementation backed by
// OpenImageIO's oiiotool.
package exr

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCodec is wrapped by every error returned from a codec operation.
var ErrCodec = errors.New("codec error")

// CodecError describes a failed codec operation on one file.
type CodecError struct {
	Op   string // "open", "read", "write"
	Path string
	Err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CodecError) Unwrap() []error {
	return []error{ErrCodec, e.Err}
}

// Compression is an output compression scheme.
type Compression string

// CompressionOptions lists the supported schemes in their canonical order.
var CompressionOptions = []Compression{"none", "rle", "zip", "zips", "piz", "pxr24", "b44", "b44a", "dwaa"}

// DefaultCompression is used when no compression is configured.
const DefaultCompression Compression = "piz"

// ParseCompression validates a compression name (case-insensitive).
func ParseCompression(s string) (Compression, error) {
	c := Compression(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(CompressionOptions, c) {
		return "", fmt.Errorf("unknown compression %q (valid: %s)", s, CompressionNames())
	}
	return c, nil
}

// CompressionNames returns the supported schemes as a comma separated list.
func CompressionNames() string {
	names := make([]string, len(CompressionOptions))
	for i, c := range CompressionOptions {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}

// PixelType is the sample format channels are read and written as.
type PixelType int

const (
	Half PixelType = iota
	Float
	Uint
)

func (p PixelType) String() string {
	switch p {
	case Half:
		return "half"
	case Float:
		return "float"
	case Uint:
		return "uint"
	}
	return fmt.Sprintf("PixelType(%d)", int(p))
}

// Box is an inclusive pixel rectangle.
type Box struct {
	MinX, MinY, MaxX, MaxY int
}

func (b Box) Width() int  { return b.MaxX - b.MinX + 1 }
func (b Box) Height() int { return b.MaxY - b.MinY + 1 }

// Header is the subset of an image header the embedder works with.
type Header struct {
	DataWindow Box
	Channels   []string
	Attributes map[string]string
}

// WriterAttributes name producer tags that are not copied to output files.
var WriterAttributes = []string{"writer", "Software"}

// IsWriterAttribute reports whether name is a producer tag.
func IsWriterAttribute(name string) bool {
	return slices.ContainsFunc(WriterAttributes, func(w string) bool { return strings.EqualFold(w, name) })
}

// ChannelRef locates a channel inside an image file.
type ChannelRef struct {
	Path    string
	Channel string
}

// PixelBuffer holds a channel's samples. Codecs that copy channels between
// files without decoding them leave Data nil and only fill Source.
type PixelBuffer struct {
	Type   PixelType
	Data   []byte
	Source ChannelRef
}

// Channel is a named output channel.
type Channel struct {
	Name   string
	Pixels PixelBuffer
}

// Image is an open input file.
type Image interface {
	Header() Header
	ReadChannel(ctx context.Context, name string, pixelType PixelType) (PixelBuffer, error)
	Close() error
}

// Codec opens input images and writes output images.
type Codec interface {
	Open(ctx context.Context, path string) (Image, error)
	Write(ctx context.Context, path string, header Header, compression Compression, channels []Channel) error
}
