package plan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	return img
}

func encode(t *testing.T, format string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "tiff":
		err = tiff.Encode(&buf, img, nil)
	default:
		t.Fatalf("no encoder for %s", format)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

// dirFiles resolves ids to files in a temp directory.
type dirFiles struct {
	dir string
}

func (d dirFiles) GetFilePath(id string) (string, error) {
	path := filepath.Join(d.dir, id)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func writePlan(t *testing.T, dir, id string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id), data, 0644))
}

func TestRegistry_FindDecoder(t *testing.T) {
	r := NewRegistry()
	img := testImage(4, 2)

	for _, format := range []string{"png", "jpeg", "gif", "bmp", "tiff"} {
		t.Run(format, func(t *testing.T) {
			d, err := r.FindDecoder(encode(t, format, img)[:HeaderSize])
			require.NoError(t, err)
			assert.Equal(t, format, d.Name())
		})
	}

	webpHeader := []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
	d, err := r.FindDecoder(webpHeader)
	require.NoError(t, err)
	assert.Equal(t, "webp", d.Name())
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{"pdf", "%PDF-1.7\n", "unsupported plan format: pdf"},
		{"svg", "<svg xmlns=\"http://www.w3.org/2000/svg\">", "unsupported plan format: svg"},
		{"xml svg", "\n<?xml version=\"1.0\"?><svg>", "unsupported plan format: svg"},
		{"text", "hello world", "unsupported plan format"},
		{"empty", "", "unsupported plan format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.FindDecoder([]byte(tt.header))
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
			assert.EqualError(t, err, tt.wantMsg)
		})
	}
}

func TestRegistry_GetDecoderByName(t *testing.T) {
	r := NewRegistry()
	d, err := r.GetDecoderByName("PNG")
	require.NoError(t, err)
	assert.Equal(t, "png", d.Name())

	_, err = r.GetDecoderByName("pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, []string{"png", "jpeg", "gif", "bmp", "tiff", "webp"}, r.Formats())
}

func TestRegistry_DecodeConfigFile(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "a", encode(t, "png", testImage(300, 150)))

	cfg, format, err := NewRegistry().DecodeConfigFile(filepath.Join(dir, "a"))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 150, cfg.Height)

	writePlan(t, dir, "broken", []byte("\x89PNG\r\n\x1a\ntruncated"))
	_, format, err = NewRegistry().DecodeConfigFile(filepath.Join(dir, "broken"))
	assert.Error(t, err)
	assert.Equal(t, "png", format)
}

func TestLoader_LoadTexture(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "plan-1", encode(t, "png", testImage(200, 100)))
	writePlan(t, dir, "plan-2", encode(t, "bmp", testImage(30, 60)))

	l := NewLoader(dirFiles{dir}, nil, 0)

	tex, err := l.LoadTexture(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, 200, tex.Width())
	assert.Equal(t, 100, tex.Height())

	pt := tex.(*Texture)
	assert.Equal(t, "png", pt.Format())
	assert.NotNil(t, pt.Image())
	pt.Dispose()
	pt.Dispose()
	assert.True(t, pt.Disposed())

	tex, err = l.LoadTexture(context.Background(), "plan-2")
	require.NoError(t, err)
	assert.Equal(t, 30, tex.Width())
	assert.Equal(t, 60, tex.Height())
}

func TestLoader_Failures(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "pdf", []byte("%PDF-1.4\n..."))
	writePlan(t, dir, "corrupt", append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...))
	writePlan(t, dir, "big", encode(t, "png", testImage(100, 100)))

	l := NewLoader(dirFiles{dir}, nil, 5000)

	_, err := l.LoadTexture(context.Background(), "pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = l.LoadTexture(context.Background(), "corrupt")
	assert.Error(t, err)

	_, err = l.LoadTexture(context.Background(), "big")
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = l.LoadTexture(context.Background(), "missing")
	assert.Error(t, err)
}

func TestLoader_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "plan-1", encode(t, "png", testImage(10, 10)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(dirFiles{dir}, nil, 0).LoadTexture(ctx, "plan-1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCtxReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &ctxReader{ctx: ctx, r: bytes.NewReader([]byte("abc"))}

	buf := make([]byte, 1)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cancel()
	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, context.Canceled)
}
