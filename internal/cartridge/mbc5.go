package cartridge

// MBC5 ROM banking: a 9-bit bank-select register, of which this module
// only tracks the low 8 bits, written at 0x2000-0x2FFF. The high bit lives
// in a second write-only register at 0x3000-0x3FFF on real hardware;
// writes there are ignored. The MMU applies only the latch's low 5 bits
// (memory.MMU.Read), so for both MBC3 and MBC5 banks 0x20 and above alias
// onto banks 1-31.

// bankedController is shared between MBC3 and MBC5: both are a single
// bank-select register gated to bankBits wide, with RAM-enable/RAM-bank/
// RTC-latch writes accepted but inert under the flat effective-RAM model
// (spec.md §3 gives external cartridge RAM no separate address window).
type bankedController struct {
	bankBits int // 7 for MBC3, 8 (of 9) for MBC5
	bank     byte
}

func newMBC5() *bankedController {
	return newBankedController(8)
}

func newBankedController(bankBits int) *bankedController {
	return &bankedController{bankBits: bankBits, bank: 1}
}

func (b *bankedController) bankLatch() byte { return b.bank }

func (b *bankedController) handleWrite(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		// RAM enable: inert under the flat effective-RAM model.
	case addr < 0x4000:
		if b.bankBits == 8 && addr >= 0x3000 {
			// MBC5's ninth bank bit: not tracked (see file comment).
			return
		}
		mask := byte(1<<b.bankBits - 1)
		v := value & mask
		if v == 0 {
			v = 1
		}
		b.bank = v
	case addr < 0x6000:
		// RAM bank / RTC register select: inert (see type doc).
	case addr < 0x8000:
		// RTC latch: inert, no RTC modeled.
	}
}
