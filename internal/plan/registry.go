package plan

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"
)

// Registry holds the available decoders and picks one by sniffing the file
// header.
type Registry struct {
	decoders []Decoder
}

var defaultRegistry = NewRegistry()

// NewRegistry returns a registry with every built-in format.
func NewRegistry() *Registry {
	return &Registry{
		decoders: []Decoder{
			NewPNGDecoder(),
			NewJPEGDecoder(),
			NewGIFDecoder(),
			NewBMPDecoder(),
			NewTIFFDecoder(),
			NewWebPDecoder(),
		},
	}
}

// DefaultRegistry returns the shared registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a decoder. Later decoders are tried last.
func (r *Registry) Register(d Decoder) {
	r.decoders = append(r.decoders, d)
}

// Formats returns the registered format names.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.decoders))
	for _, d := range r.decoders {
		names = append(names, d.Name())
	}
	return names
}

// FindDecoder returns the decoder for a file starting with header.
func (r *Registry) FindDecoder(header []byte) (Decoder, error) {
	for _, d := range r.decoders {
		if d.CanDecode(header) {
			return d, nil
		}
	}
	return nil, unsupportedError(header)
}

// GetDecoderByName returns a decoder by format name.
func (r *Registry) GetDecoderByName(name string) (Decoder, error) {
	name = strings.ToLower(name)
	for _, d := range r.decoders {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Detect sniffs the decoder for an open file and rewinds it.
func (r *Registry) Detect(f io.ReadSeeker) (Decoder, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding: %w", err)
	}
	return r.FindDecoder(header[:n])
}

// DecodeConfigFile reads only the dimensions and format of an image file.
func (r *Registry) DecodeConfigFile(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()

	d, err := r.Detect(f)
	if err != nil {
		return image.Config{}, "", err
	}
	cfg, err := d.DecodeConfig(f)
	if err != nil {
		return image.Config{}, d.Name(), fmt.Errorf("decoding %s header: %w", d.Name(), err)
	}
	return cfg, d.Name(), nil
}
