// Package present defines the presentation port spec.md §6 hands video
// frames to, plus the two adapters the rest of this module drives it
// with: a windowed ebiten.Game implementation (grounded on the
// teacher's internal/ui.App, trimmed to the four-hook contract) and a
// headless adapter for tests and ROM-exercising CLIs.
package present

import "github.com/dmgcore/dmgcore/internal/video"

// Presenter is the four-hook external collaborator spec.md §6 describes:
// poll pending events (and report whether the host asked to quit),
// receive one fully-drawn frame, and release any resources on shutdown.
type Presenter interface {
	// PollEvents processes pending host events (input, window close) and
	// reports whether the host has requested shutdown.
	PollEvents() (quit bool)
	// BeginFrame is called before the rasterizer starts filling the next
	// frame; most adapters have nothing to do here.
	BeginFrame()
	// EndFrame receives one fully-rasterized frame for display.
	EndFrame(f *video.Frame)
	// Destroy releases any resources the presenter owns.
	Destroy()
}
