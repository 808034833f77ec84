package present

import "github.com/dmgcore/dmgcore/internal/video"

// Headless is a Presenter that never opens a window: it records the most
// recent frame and a count of frames pushed, for tests and the dmgrun
// CLI's -expect framebuffer-hash check, grounded on the teacher's
// cmd/cpurunner headless-run pattern.
type Headless struct {
	quitAfter int // quit once PollEvents has been called this many times; 0 means never
	polls     int

	Last   *video.Frame
	Frames int
}

// NewHeadless returns a Headless presenter. quitAfter == 0 means
// PollEvents never requests shutdown on its own (the caller drives the
// loop by some other stopping condition, e.g. a step count).
func NewHeadless(quitAfter int) *Headless {
	return &Headless{quitAfter: quitAfter}
}

func (h *Headless) PollEvents() bool {
	h.polls++
	return h.quitAfter > 0 && h.polls >= h.quitAfter
}

func (h *Headless) BeginFrame() {}

func (h *Headless) EndFrame(f *video.Frame) {
	h.Last = f
	h.Frames++
}

func (h *Headless) Destroy() {}
