package viewport

import (
	"context"
	"errors"
	"fmt"
)

// PlanRef identifies a plan image resource. The zero value means no plan.
type PlanRef string

// Texture is a decoded plan image held in memory until disposed.
type Texture interface {
	Width() int
	Height() int
	Dispose()
}

// TextureLoader decodes a plan resource into a texture. It runs off the
// event loop and must honor ctx cancellation.
type TextureLoader interface {
	LoadTexture(ctx context.Context, ref PlanRef) (Texture, error)
}

// ErrEmptyImage is reported when a plan decodes to an image with no area.
var ErrEmptyImage = errors.New("plan image has no area")

// BackdropState is the load state of the plan backdrop.
type BackdropState int

const (
	BackdropUnloaded BackdropState = iota
	BackdropLoading
	BackdropDisplayed
	BackdropFailed
)

func (s BackdropState) String() string {
	switch s {
	case BackdropUnloaded:
		return "unloaded"
	case BackdropLoading:
		return "loading"
	case BackdropDisplayed:
		return "displayed"
	case BackdropFailed:
		return "failed"
	default:
		return fmt.Sprintf("BackdropState(%d)", int(s))
	}
}

// Backdrop renders the plan image as a rectangle of size (aspect, 1)
// centered on the origin, Depth units behind the interaction plane.
// It owns at most one texture at a time.
type Backdrop struct {
	loader TextureLoader
	post   func(func())
	depth  float64

	ref     PlanRef
	state   BackdropState
	texture Texture
	err     error
	gen     uint64
	cancel  context.CancelFunc
}

// NewBackdrop returns an unloaded backdrop. post schedules a function on the
// owner's event loop; load completions are delivered through it.
func NewBackdrop(loader TextureLoader, post func(func()), depth float64) *Backdrop {
	return &Backdrop{
		loader: loader,
		post:   post,
		depth:  depth,
	}
}

// Load starts loading ref. Whatever was loaded or loading before is disposed
// or cancelled first, so the backdrop never holds two textures.
func (b *Backdrop) Load(ref PlanRef) {
	b.gen++
	b.release()

	gen := b.gen
	b.ref = ref
	b.state = BackdropLoading
	b.err = nil

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	loader, post := b.loader, b.post

	go func() {
		tex, err := loader.LoadTexture(ctx, ref)
		post(func() { b.finish(gen, tex, err) })
	}()
}

func (b *Backdrop) finish(gen uint64, tex Texture, err error) {
	if gen != b.gen {
		// Superseded by a newer load or by Close.
		if tex != nil {
			tex.Dispose()
		}
		return
	}

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	if err != nil {
		b.state = BackdropFailed
		b.err = fmt.Errorf("loading plan %s: %w", b.ref, err)
		return
	}
	if tex == nil || tex.Width() <= 0 || tex.Height() <= 0 {
		if tex != nil {
			tex.Dispose()
		}
		b.state = BackdropFailed
		b.err = fmt.Errorf("loading plan %s: %w", b.ref, ErrEmptyImage)
		return
	}

	b.texture = tex
	b.state = BackdropDisplayed
}

// Close disposes the texture and abandons any in-flight load.
func (b *Backdrop) Close() {
	b.gen++
	b.release()
	b.ref = ""
	b.state = BackdropUnloaded
	b.err = nil
}

func (b *Backdrop) release() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if b.texture != nil {
		b.texture.Dispose()
		b.texture = nil
	}
}

// State returns the current load state.
func (b *Backdrop) State() BackdropState { return b.state }

// Err returns the load failure, if any.
func (b *Backdrop) Err() error { return b.err }

// Ref returns the resource being displayed or loaded.
func (b *Backdrop) Ref() PlanRef { return b.ref }

// Texture returns the installed texture, or nil unless displayed.
func (b *Backdrop) Texture() Texture { return b.texture }

// Size returns the rectangle size in world units. It is zero unless the
// backdrop is displayed.
func (b *Backdrop) Size() (width, height float64) {
	if b.state != BackdropDisplayed || b.texture == nil {
		return 0, 0
	}
	return float64(b.texture.Width()) / float64(b.texture.Height()), 1
}

// Render returns the backdrop frame, or nil while nothing is displayed.
func (b *Backdrop) Render() *BackdropFrame {
	if b.state != BackdropDisplayed {
		return nil
	}
	w, h := b.Size()
	return &BackdropFrame{
		Plan:        string(b.ref),
		Width:       w,
		Height:      h,
		Z:           -b.depth,
		PixelWidth:  b.texture.Width(),
		PixelHeight: b.texture.Height(),
	}
}
