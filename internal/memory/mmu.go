// Package memory implements the DMG memory map described in spec.md §3
// and §4.2: boot-ROM shadow, cartridge bank routing below 0x8000, and a
// single flat "effective RAM" buffer for everything from 0x8000 upward,
// per the deliberate simplification spec.md calls out.
package memory

import (
	"github.com/dmgcore/dmgcore/internal/cartridge"
	"github.com/dmgcore/dmgcore/internal/interrupt"
)

const (
	// BootLockAddr is the boot-ROM disable latch. While it reads zero and
	// a boot ROM is present, reads below 0x0100 are shadowed by it.
	BootLockAddr = 0xFF50
	// LYAddr is the current-scanline register; writes from the running
	// program always clear it to zero (a real hardware quirk).
	LYAddr = 0xFF44
	// LCDCAddr is the LCD control register the rasterizer reads.
	LCDCAddr = 0xFF40
	// BGPAddr is the background palette register the rasterizer reads.
	BGPAddr = 0xFF47
	// IFAddr and IEAddr are the interrupt request/enable registers.
	IFAddr = 0xFF0F
	IEAddr = 0xFFFF

	ramBase  = 0x8000
	ramSize  = 0x8000 // 32 KiB effective RAM, addr-0x8000 indexed
	bankSize = 0x4000
)

// MMU is the 64 KiB address space view the CPU reads and writes through.
type MMU struct {
	ram  [ramSize]byte
	boot []byte // optional 256-byte DMG boot ROM
	cart *cartridge.Cartridge
	irq  *interrupt.Controller
}

// New constructs an MMU over the given cartridge and interrupt
// controller. A boot ROM may be attached afterward with SetBootROM;
// without one, sub-0x0100 reads fall through to the cartridge
// immediately. The controller is threaded through so that a program's
// ordinary stores to IF (0xFF0F) and IE (0xFFFF) actually reach the
// dispatcher, instead of landing in inert effective-RAM bytes.
func New(cart *cartridge.Cartridge, irq *interrupt.Controller) *MMU {
	return &MMU{cart: cart, irq: irq}
}

// SetBootROM installs a 256-byte DMG boot ROM to shadow 0x0000..0x00FF
// until a non-zero value is written to the boot-lock register.
func (m *MMU) SetBootROM(data []byte) {
	if len(data) < 0x100 {
		return
	}
	m.boot = make([]byte, 0x100)
	copy(m.boot, data[:0x100])
}

// Cartridge returns the cartridge backing this MMU.
func (m *MMU) Cartridge() *cartridge.Cartridge { return m.cart }

// bootLocked reports whether the boot-ROM shadow is currently active:
// a boot ROM is present and the lock register at 0xFF50 still reads
// zero.
func (m *MMU) bootLocked() bool {
	return m.boot != nil && m.ram[BootLockAddr-ramBase] == 0
}

// Read implements spec.md §4.2's read algorithm.
func (m *MMU) Read(addr uint16) byte {
	switch {
	case addr == IFAddr:
		return m.irq.IF()
	case addr == IEAddr:
		return m.irq.IE()
	case addr >= ramBase:
		return m.ram[addr-ramBase]
	case addr <= 0x00FF && m.bootLocked():
		return m.boot[addr%0x100]
	case addr >= 0x4000 && addr <= 0x7FFF:
		rom := m.cart.Bytes()
		if len(rom) == 0 {
			return 0xFF
		}
		bank := m.cart.BankLatch() & 0x1F
		if bank == 0 {
			bank = 1
		}
		off := (uint32(addr) + uint32(bank-1)*bankSize) % uint32(len(rom))
		return rom[off]
	default:
		rom := m.cart.Bytes()
		if int(addr) < len(rom) {
			return rom[addr]
		}
		return 0xFF
	}
}

// Write implements spec.md §4.2's write algorithm.
func (m *MMU) Write(addr uint16, v byte) {
	if addr < ramBase {
		m.cart.Write(addr, v)
		return
	}
	switch addr {
	case LYAddr:
		// Hardware quirk: any program write to LY clears it to zero.
		m.ram[addr-ramBase] = 0
		return
	case IFAddr:
		m.irq.SetIF(v)
		return
	case IEAddr:
		m.irq.SetIE(v)
		return
	}
	// Boot-lock writes (0xFF50) land here too: storing the raw byte is
	// exactly what bootLocked's zero-check needs, so no special case.
	m.ram[addr-ramBase] = v
}

// WriteRaw stores directly into effective RAM, bypassing the LY
// write-clears-to-zero quirk in Write. The main loop uses this to
// advance LY itself; only a running program's writes are subject to the
// quirk.
func (m *MMU) WriteRaw(addr uint16, v byte) {
	if addr >= ramBase {
		m.ram[addr-ramBase] = v
	}
}

// Read16 / Write16 are little-endian convenience helpers used by the CPU
// and by tests; they are not part of spec.md's MMU contract directly but
// compose the two primitive operations it defines.
func (m *MMU) Read16(addr uint16) uint16 {
	lo := uint16(m.Read(addr))
	hi := uint16(m.Read(addr + 1))
	return lo | hi<<8
}

func (m *MMU) Write16(addr uint16, v uint16) {
	m.Write(addr, byte(v))
	m.Write(addr+1, byte(v>>8))
}
