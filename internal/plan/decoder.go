// Package plan decodes uploaded floor-plan images and exposes them as
// viewport textures.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for files no registered decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported plan format")

// HeaderSize is how many leading bytes are sniffed to pick a decoder.
const HeaderSize = 32

// Decoder decodes one image format.
type Decoder interface {
	// Name returns the format name, e.g. "png".
	Name() string
	// CanDecode reports whether header starts a file of this format.
	CanDecode(header []byte) bool
	Decode(r io.Reader) (image.Image, error)
	DecodeConfig(r io.Reader) (image.Config, error)
}

type formatDecoder struct {
	name         string
	match        func(header []byte) bool
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

func (d *formatDecoder) Name() string                 { return d.name }
func (d *formatDecoder) CanDecode(header []byte) bool { return d.match(header) }

func (d *formatDecoder) Decode(r io.Reader) (image.Image, error) {
	return d.decode(r)
}

func (d *formatDecoder) DecodeConfig(r io.Reader) (image.Config, error) {
	return d.decodeConfig(r)
}

func prefix(magic ...string) func([]byte) bool {
	return func(header []byte) bool {
		for _, m := range magic {
			if bytes.HasPrefix(header, []byte(m)) {
				return true
			}
		}
		return false
	}
}

func isWebP(header []byte) bool {
	return len(header) >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WEBP"
}

// NewPNGDecoder returns the PNG decoder.
func NewPNGDecoder() Decoder {
	return &formatDecoder{"png", prefix("\x89PNG\r\n\x1a\n"), png.Decode, png.DecodeConfig}
}

// NewJPEGDecoder returns the JPEG decoder.
func NewJPEGDecoder() Decoder {
	return &formatDecoder{"jpeg", prefix("\xff\xd8\xff"), jpeg.Decode, jpeg.DecodeConfig}
}

// NewGIFDecoder returns the GIF decoder. Only the first frame is used.
func NewGIFDecoder() Decoder {
	return &formatDecoder{"gif", prefix("GIF87a", "GIF89a"), gif.Decode, gif.DecodeConfig}
}

// NewBMPDecoder returns the BMP decoder.
func NewBMPDecoder() Decoder {
	return &formatDecoder{"bmp", prefix("BM"), bmp.Decode, bmp.DecodeConfig}
}

// NewTIFFDecoder returns the TIFF decoder.
func NewTIFFDecoder() Decoder {
	return &formatDecoder{"tiff", prefix("II*\x00", "MM\x00*"), tiff.Decode, tiff.DecodeConfig}
}

// NewWebPDecoder returns the WebP decoder.
func NewWebPDecoder() Decoder {
	return &formatDecoder{"webp", isWebP, webp.Decode, webp.DecodeConfig}
}

// Formats the upload picker accepts but nothing here can rasterize.
var knownUnsupported = []struct {
	name  string
	match func([]byte) bool
}{
	{"pdf", prefix("%PDF-")},
	{"svg", func(h []byte) bool {
		h = bytes.TrimLeft(h, " \t\r\n\ufeff")
		return bytes.HasPrefix(h, []byte("<svg")) || bytes.HasPrefix(h, []byte("<?xml"))
	}},
}

func unsupportedError(header []byte) error {
	for _, f := range knownUnsupported {
		if f.match(header) {
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.name)
		}
	}
	return ErrUnsupportedFormat
}
