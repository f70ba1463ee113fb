package plan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/plan-placer/backend/internal/viewport"
)

// ErrImageTooLarge is returned when a plan exceeds the configured pixel cap.
var ErrImageTooLarge = errors.New("plan image too large")

// Texture is a decoded plan image. Dispose drops the pixel data.
type Texture struct {
	mu     sync.Mutex
	img    image.Image
	width  int
	height int
	format string
}

// NewTexture wraps a decoded image.
func NewTexture(img image.Image, format string) *Texture {
	b := img.Bounds()
	return &Texture{img: img, width: b.Dx(), height: b.Dy(), format: format}
}

func (t *Texture) Width() int     { return t.width }
func (t *Texture) Height() int    { return t.height }
func (t *Texture) Format() string { return t.format }

// Image returns the pixels, or nil once disposed.
func (t *Texture) Image() image.Image {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.img
}

// Dispose releases the pixels. It is safe to call more than once.
func (t *Texture) Dispose() {
	t.mu.Lock()
	t.img = nil
	t.mu.Unlock()
}

// Disposed reports whether Dispose has been called.
func (t *Texture) Disposed() bool {
	return t.Image() == nil
}

// FileResolver maps a stored plan id to a path on disk.
type FileResolver interface {
	GetFilePath(id string) (string, error)
}

// Loader decodes stored plan files into textures.
type Loader struct {
	files     FileResolver
	registry  *Registry
	maxPixels int
}

// NewLoader returns a loader over files. maxPixels <= 0 disables the cap.
func NewLoader(files FileResolver, registry *Registry, maxPixels int) *Loader {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Loader{files: files, registry: registry, maxPixels: maxPixels}
}

var _ viewport.TextureLoader = (*Loader)(nil)

// LoadTexture implements viewport.TextureLoader.
func (l *Loader) LoadTexture(ctx context.Context, ref viewport.PlanRef) (viewport.Texture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.files.GetFilePath(string(ref))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan: %w", err)
	}
	defer f.Close()

	d, err := l.registry.Detect(f)
	if err != nil {
		return nil, err
	}

	if l.maxPixels > 0 {
		cfg, err := d.DecodeConfig(f)
		if err != nil {
			return nil, fmt.Errorf("decoding %s header: %w", d.Name(), err)
		}
		if cfg.Width*cfg.Height > l.maxPixels {
			return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewinding: %w", err)
		}
	}

	img, err := d.Decode(&ctxReader{ctx: ctx, r: f})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("decoding %s: %w", d.Name(), err)
	}

	tex := NewTexture(img, d.Name())
	slog.Debug("plan decoded", "plan", shortID(string(ref)), "format", d.Name(),
		"width", tex.Width(), "height", tex.Height())
	return tex, nil
}

// ctxReader stops a decode once its context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
