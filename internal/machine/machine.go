// Package machine implements the orchestrator spec.md §4.6 describes:
// it owns the register file, MMU, interrupt controller, CPU, and
// rasterizer, and drives the single-threaded cooperative main loop
// against an external present.Presenter.
package machine

import (
	"github.com/sirupsen/logrus"

	"github.com/dmgcore/dmgcore/internal/cartridge"
	"github.com/dmgcore/dmgcore/internal/cpu"
	"github.com/dmgcore/dmgcore/internal/interrupt"
	"github.com/dmgcore/dmgcore/internal/memory"
	"github.com/dmgcore/dmgcore/internal/present"
	"github.com/dmgcore/dmgcore/internal/register"
	"github.com/dmgcore/dmgcore/internal/video"
)

// framesEvery is the iteration count between rasterizer pushes, per
// spec.md §4.6 step 5's "every ≈ 8192 iterations" contract.
const framesEvery = 8192

// Machine owns every core component and runs the main step loop.
type Machine struct {
	Reg *register.File
	Mem *memory.MMU
	IRQ *interrupt.Controller
	CPU *cpu.CPU

	frame   *video.Frame
	iter    int
	log     *logrus.Logger
	trace   bool
	onTrace func(pc uint16, mnemonic string)
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithLogger overrides the default logrus.StandardLogger().
func WithLogger(l *logrus.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithTrace enables a per-step disassembly callback, used by the
// dmgemu/dmgrun CLIs' -trace flag.
func WithTrace(fn func(pc uint16, mnemonic string)) Option {
	return func(m *Machine) {
		m.trace = true
		m.onTrace = fn
	}
}

// New constructs a Machine from a cartridge ROM image and an optional
// boot ROM (pass nil to skip straight to the post-boot register
// defaults). Cartridge parsing never fails outright (spec.md's
// cartridge.New degrades unknown headers to ROM-only), so the only
// initialization failure this surfaces is a malformed boot ROM.
func New(rom []byte, bootROM []byte, opts ...Option) (*Machine, error) {
	cart := cartridge.New(rom)
	irq := interrupt.New()
	mem := memory.New(cart, irq)
	reg := register.New()

	if bootROM != nil {
		if len(bootROM) < 0x100 {
			return nil, &InitializationFailure{Stage: "bootrom", Err: errShortBootROM}
		}
		mem.SetBootROM(bootROM)
		reg.Write16(register.PC, 0x0000)
	} else {
		reg.ResetPostBoot()
	}

	m := &Machine{
		Reg:   reg,
		Mem:   mem,
		IRQ:   irq,
		CPU:   cpu.New(reg, mem, irq),
		frame: video.NewFrame(),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Frame returns the most recently rasterized framebuffer.
func (m *Machine) Frame() *video.Frame { return m.frame }

// step performs one iteration of spec.md §4.6's loop body (steps 2-4):
// dispatch a pending interrupt, otherwise step the CPU if not halted,
// then advance LY. It reports whether this iteration's rasterizer push
// is due.
func (m *Machine) step() (frameReady bool, err error) {
	taken := m.IRQ.Dispatch(m.Reg.Read16(register.PC),
		func(pc uint16) { m.pushPC(pc) },
		func(pc uint16) { m.Reg.Write16(register.PC, pc) })
	// A dispatched interrupt preempts this iteration's CPU step, mirroring
	// the teacher's serviceInterrupt() short-circuit: the same fetch slot
	// either services an interrupt or executes an instruction, not both.
	if !taken {
		if m.trace {
			pc := m.Reg.Read16(register.PC)
			m.onTrace(pc, cpu.Disassemble(m.Mem, pc))
		}
		if stepErr := m.CPU.Step(); stepErr != nil {
			m.log.WithError(stepErr).Error("machine: CPU step failed, halting loop")
			return false, stepErr
		}
	}

	ly := m.Mem.Read(memory.LYAddr)
	ly++
	if ly == 144 {
		m.IRQ.Request(interrupt.VBlank)
	}
	if ly > 153 {
		ly = 0
	}
	m.rawSetLY(ly)

	m.iter++
	if m.iter%framesEvery == 0 {
		video.Draw(m.Mem, m.frame)
		return true, nil
	}
	return false, nil
}

// pushPC stores a return address the same way cpu's push16 does,
// without exposing CPU internals: the interrupt controller's Dispatch
// callback contract only needs SP manipulation plus a 16-bit store.
func (m *Machine) pushPC(pc uint16) {
	sp := m.Reg.Read16(register.SP) - 2
	m.Reg.Write16(register.SP, sp)
	m.Mem.Write16(sp, pc)
}

// rawSetLY writes LY without going through MMU.Write's program-write
// clear-to-zero quirk, since this is the loop driving LY itself rather
// than a CPU instruction touching it.
func (m *Machine) rawSetLY(v byte) {
	m.Mem.WriteRaw(memory.LYAddr, v)
}

// Run drives the main loop against p until p requests shutdown or a
// CPU step fails. It implements spec.md §4.6 in full, including the
// presentation-port event pump (step 1) and periodic frame push (step
// 5).
func (m *Machine) Run(p present.Presenter) error {
	defer p.Destroy()
	for {
		if p.PollEvents() {
			return nil
		}
		p.BeginFrame()
		frameReady, err := m.step()
		if err != nil {
			return err
		}
		if frameReady {
			p.EndFrame(m.frame)
		}
	}
}
