package present

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/dmgcore/dmgcore/internal/video"
)

// EbitenPresenter is the windowed Presenter adapter, grounded on the
// teacher's internal/ui.App but trimmed down to the four-hook contract:
// no menus, no audio, no save states. It implements ebiten.Game so
// cmd/dmgemu can hand it straight to ebiten.RunGame.
//
// Spec.md §5 carves the presentation-port event pump out of the
// single-threaded emulation loop as the one operation allowed to run
// independently; this adapter takes that literally — ebiten owns the
// window/event goroutine via RunGame while the emulation loop (started
// by cmd/dmgemu in its own goroutine) only ever touches the adapter
// through the Presenter interface's three push/pull methods, guarded by
// a mutex.
type EbitenPresenter struct {
	Title string
	Scale int

	mu     sync.Mutex
	latest *image.RGBA
	closed atomic.Bool
}

// NewEbitenPresenter constructs a windowed presenter at the given
// integer scale (applied on top of the rasterizer's own 4x upscale).
func NewEbitenPresenter(title string, scale int) *EbitenPresenter {
	if scale <= 0 {
		scale = 1
	}
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(video.Width*video.Scale*scale, video.Height*video.Scale*scale)
	ebiten.SetWindowClosingHandled(true)
	return &EbitenPresenter{Title: title, Scale: scale}
}

// Run hands control of the process to ebiten; it returns when the window
// is closed or ebiten reports an error.
func (p *EbitenPresenter) Run() error {
	return ebiten.RunGame(p)
}

// PollEvents reports whether the window has been closed. Unlike the
// headless adapter, this adapter's "polling" is really just reading a
// flag ebiten's own Update loop sets on the window-close signal.
func (p *EbitenPresenter) PollEvents() bool {
	return p.closed.Load()
}

func (p *EbitenPresenter) BeginFrame() {}

// EndFrame stores a copy of the frame for the next ebiten Draw call, so
// the emulation loop can keep rasterizing into f while ebiten paints.
func (p *EbitenPresenter) EndFrame(f *video.Frame) {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	img := &image.RGBA{
		Pix:    pix,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, video.Width*video.Scale, video.Height*video.Scale),
	}
	p.mu.Lock()
	p.latest = img
	p.mu.Unlock()
}

func (p *EbitenPresenter) Destroy() {}

// Update satisfies ebiten.Game; this adapter has no per-tick input
// handling to do since spec.md's core has no joypad model, so it only
// watches for the window close request ebiten itself detects.
func (p *EbitenPresenter) Update() error {
	if ebiten.IsWindowBeingClosed() {
		p.closed.Store(true)
	}
	return nil
}

// Draw satisfies ebiten.Game, painting the most recently pushed frame.
func (p *EbitenPresenter) Draw(screen *ebiten.Image) {
	p.mu.Lock()
	img := p.latest
	p.mu.Unlock()
	if img == nil {
		return
	}
	screen.WritePixels(img.Pix)
}

// Layout satisfies ebiten.Game, fixing the logical screen size to the
// rasterizer's native upscaled output.
func (p *EbitenPresenter) Layout(outsideWidth, outsideHeight int) (int, int) {
	return video.Width * video.Scale, video.Height * video.Scale
}
