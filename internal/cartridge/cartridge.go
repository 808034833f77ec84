// Package cartridge parses DMG cartridge headers and provides the
// read-only ROM image the MMU banks against, per spec.md §3/§4.2.
package cartridge

import "github.com/sirupsen/logrus"

// Cartridge is the minimal surface the MMU needs: the raw ROM bytes to
// bank-index into, the current bank-select latch, and a write sink for
// addresses below 0x8000 (ROM control lines).
//
// The MMU itself performs the bank arithmetic (spec.md §4.2 step 3); a
// Cartridge only needs to report what its latch currently holds.
type Cartridge struct {
	rom    []byte
	header *Header
	impl   controller
}

// controller is the per-cartridge-type write handler and bank latch.
// ROM-only cartridges never move off bank 1; MBC1/MBC2 are deliberate
// stubs per spec.md §9; MBC3/MBC5 implement real ROM bank selection.
type controller interface {
	bankLatch() byte
	handleWrite(addr uint16, value byte)
}

// New constructs a Cartridge from a raw ROM image, selecting a banking
// controller from the header's cartridge-type byte. Unknown types fall
// back to ROM-only so malformed or homebrew images still run bank 1.
func New(rom []byte) *Cartridge {
	h, err := ParseHeader(rom)
	c := &Cartridge{rom: rom, header: h}
	if err != nil {
		c.impl = &romOnly{}
		return c
	}
	switch h.CartType {
	case 0x00:
		c.impl = &romOnly{}
	case 0x01, 0x02, 0x03, 0x05, 0x06:
		// MBC1 / MBC2: dispatch stub per spec.md §4.2, §9.
		c.impl = &mbcStub{name: h.CartType.String()}
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		c.impl = newMBC3()
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		c.impl = newMBC5()
	default:
		c.impl = &romOnly{}
	}
	return c
}

// Header returns the parsed header, or nil if the ROM was too short to
// contain one (the cartridge still behaves as ROM-only in that case).
func (c *Cartridge) Header() *Header { return c.header }

// Len returns the size of the raw ROM image in bytes.
func (c *Cartridge) Len() int { return len(c.rom) }

// Bytes returns the raw ROM image. Callers must not mutate it.
func (c *Cartridge) Bytes() []byte { return c.rom }

// BankLatch returns the cartridge's current bank-select latch. The MMU
// combines this with spec.md §4.2's `max(1, latch & 0x1F)` rule.
func (c *Cartridge) BankLatch() byte { return c.impl.bankLatch() }

// Write dispatches a write below 0x8000 to the cartridge's controller.
func (c *Cartridge) Write(addr uint16, value byte) {
	c.impl.handleWrite(addr, value)
}

// romOnly never changes its latch and drops every control write.
type romOnly struct{}

func (romOnly) bankLatch() byte { return 1 }
func (romOnly) handleWrite(addr uint16, value byte) {
	// ROM-only writes below 0x8000 are always ignored (spec.md §4.2).
}

// mbcStub represents MBC1/MBC2 as spec.md deliberately leaves them: a
// dispatch target that exists but does not implement bank-select or
// RAM-enable semantics. Writes are silently dropped and logged, which is
// exactly the BadMemoryWrite classification from spec.md §7.
type mbcStub struct {
	name string
	warn bool // log only once per cartridge instance to avoid flooding
}

func (mbcStub) bankLatch() byte { return 1 }

func (s *mbcStub) handleWrite(addr uint16, value byte) {
	if !s.warn {
		logrus.WithFields(logrus.Fields{
			"cartridge": s.name,
			"addr":      addr,
		}).Warn("cartridge: MBC write-path is an unimplemented stub, write dropped")
		s.warn = true
	}
}
