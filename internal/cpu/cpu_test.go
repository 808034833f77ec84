package cpu

import (
	"testing"

	"github.com/dmgcore/dmgcore/internal/cartridge"
	"github.com/dmgcore/dmgcore/internal/interrupt"
	"github.com/dmgcore/dmgcore/internal/memory"
	"github.com/dmgcore/dmgcore/internal/register"
)

func newCPUWithROM(code []byte) *CPU {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	irq := interrupt.New()
	mem := memory.New(cartridge.New(rom), irq)
	reg := register.New()
	reg.ResetPostBoot()
	reg.Write16(register.PC, 0x0000)
	return New(reg, mem, irq)
}

func TestNopAdvancesPC(t *testing.T) {
	c := newCPUWithROM([]byte{0x00})
	if err := c.Step(); err != nil {
		t.Fatalf("NOP returned error: %v", err)
	}
	if pc := c.Reg.Read16(register.PC); pc != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", pc)
	}
}

func TestLDImmediateAndXOR(t *testing.T) {
	c := newCPUWithROM([]byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	c.Step()
	if a := c.Reg.Read8(register.A); a != 0x12 {
		t.Fatalf("A after LD got %#02x want 0x12", a)
	}
	c.Step()
	if a := c.Reg.Read8(register.A); a != 0x00 {
		t.Fatalf("A after XOR A got %#02x want 0x00", a)
	}
	if !c.Reg.Flag(register.FlagZ) {
		t.Fatalf("Z flag not set after XOR A")
	}
}

func TestLDAbsoluteRoundTrip(t *testing.T) {
	prog := []byte{
		0x3E, 0x77, // LD A,0x77
		0xEA, 0x00, 0xC0, // LD (0xC000),A
		0x3E, 0x00, // LD A,0x00
		0xFA, 0x00, 0xC0, // LD A,(0xC000)
	}
	c := newCPUWithROM(prog)
	c.Step()
	c.Step()
	if v := c.Mem.Read(0xC000); v != 0x77 {
		t.Fatalf("WRAM at C000 got %#02x want 0x77", v)
	}
	c.Step()
	c.Step()
	if a := c.Reg.Read8(register.A); a != 0x77 {
		t.Fatalf("A after round trip got %#02x want 0x77", a)
	}
}

func TestJPAndJR(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xC3 // JP 0x0010
	rom[0x0001] = 0x10
	rom[0x0002] = 0x00
	rom[0x0010] = 0x18 // JR -2 (loops on itself)
	rom[0x0011] = 0xFE
	irq := interrupt.New()
	c := New(register.New(), memory.New(cartridge.New(rom), irq), irq)
	c.Step()
	if pc := c.Reg.Read16(register.PC); pc != 0x0010 {
		t.Fatalf("PC after JP got %#04x want 0x0010", pc)
	}
	c.Step()
	if pc := c.Reg.Read16(register.PC); pc != 0x0010 {
		t.Fatalf("PC after JR -2 got %#04x want 0x0010 (self-loop)", pc)
	}
}

func TestIncBFlagsAndCarryFromBit4(t *testing.T) {
	c := newCPUWithROM([]byte{0x04, 0x04}) // INC B twice
	c.Reg.Write8(register.B, 0x0F)
	c.Reg.SetFlags(false, false, false, true) // carry pre-set
	c.Step()
	if b := c.Reg.Read8(register.B); b != 0x10 {
		t.Fatalf("INC B got %#02x want 0x10", b)
	}
	if !c.Reg.Flag(register.FlagH) {
		t.Fatalf("INC B should set H when crossing a nibble boundary")
	}
	if !c.Reg.Flag(register.FlagC) {
		t.Fatalf("INC B must not touch the carry flag")
	}
	c.Reg.Write8(register.B, 0xFF)
	c.Step()
	if b := c.Reg.Read8(register.B); b != 0x00 || !c.Reg.Flag(register.FlagZ) {
		t.Fatalf("INC B wraparound got B=%#02x Z=%v", b, c.Reg.Flag(register.FlagZ))
	}
}

func TestCallAndRet(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xCD // CALL 0x0005
	rom[0x0001] = 0x05
	rom[0x0002] = 0x00
	rom[0x0005] = 0xC9 // RET
	irq := interrupt.New()
	c := New(register.New(), memory.New(cartridge.New(rom), irq), irq)
	c.Reg.Write16(register.SP, 0xFFFE)
	c.Step() // CALL
	if pc := c.Reg.Read16(register.PC); pc != 0x0005 {
		t.Fatalf("PC after CALL got %#04x want 0x0005", pc)
	}
	c.Step() // RET
	if pc := c.Reg.Read16(register.PC); pc != 0x0003 {
		t.Fatalf("PC after RET got %#04x want 0x0003", pc)
	}
	if sp := c.Reg.Read16(register.SP); sp != 0xFFFE {
		t.Fatalf("SP after CALL/RET got %#04x want back at 0xFFFE", sp)
	}
}

func TestPushPopStackOrder(t *testing.T) {
	c := newCPUWithROM(nil)
	c.Reg.Write16(register.SP, 0xFFFE)
	c.Reg.Write16(register.BC, 0x1234)
	c.push16(c.Reg.Read16(register.BC))
	if sp := c.Reg.Read16(register.SP); sp != 0xFFFC {
		t.Fatalf("SP after push got %#04x want 0xFFFC", sp)
	}
	if lo := c.Mem.Read(0xFFFC); lo != 0x34 {
		t.Fatalf("low byte at SP got %#02x want 0x34 (hardware stores low byte at the post-decrement SP)", lo)
	}
	got := c.pop16()
	if got != 0x1234 {
		t.Fatalf("pop16 got %#04x want 0x1234", got)
	}
}

func TestHaltWakesOnPendingRegardlessOfIME(t *testing.T) {
	c := newCPUWithROM([]byte{0x76, 0x00}) // HALT; NOP
	c.Step()                               // HALT
	if !c.IRQ.Halted() {
		t.Fatalf("HALT did not set halted state")
	}
	c.IRQ.SetIE(0xFF)
	c.IRQ.Request(interrupt.VBlank)
	if err := c.Step(); err != nil {
		t.Fatalf("Step returned error: %v", err)
	}
	if c.IRQ.Halted() {
		t.Fatalf("pending interrupt should wake HALT even with IME clear")
	}
}

func TestMemoryWritesToIEAndIFReachDispatch(t *testing.T) {
	// LD A,0xFF; LD (0xFFFF),A  -- enable every interrupt via an ordinary
	// store, the way the boot ROM and every real cartridge do it, rather
	// than calling SetIE directly.
	prog := []byte{
		0x3E, 0xFF, // LD A,0xFF
		0xEA, 0xFF, 0xFF, // LD (0xFFFF),A  (IE)
		0x3E, 0x01, // LD A,0x01
		0xE0, 0x0F, // LDH (0xFF0F),A (IF: request VBlank)
	}
	c := newCPUWithROM(prog)
	c.IRQ.IME = true
	for i := 0; i < 4; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("step %d returned error: %v", i, err)
		}
	}
	if ie := c.Mem.Read(0xFFFF); ie != 0xFF {
		t.Fatalf("reading back IE through memory got %#02x want 0xFF", ie)
	}
	if iff := c.Mem.Read(0xFF0F); iff != 0x01 {
		t.Fatalf("reading back IF through memory got %#02x want 0x01", iff)
	}
	c.Reg.Write16(register.SP, 0xFFFE)
	taken := c.IRQ.Dispatch(c.Reg.Read16(register.PC),
		func(pc uint16) {
			sp := c.Reg.Read16(register.SP) - 2
			c.Reg.Write16(register.SP, sp)
			c.Mem.Write16(sp, pc)
		},
		func(pc uint16) { c.Reg.Write16(register.PC, pc) })
	if !taken {
		t.Fatalf("Dispatch did not fire after IE/IF were set through ordinary memory writes")
	}
	if pc := c.Reg.Read16(register.PC); pc != 0x0040 {
		t.Fatalf("PC after dispatch got %#04x want 0x0040 (VBlank vector)", pc)
	}
}

func TestUnknownOpcodeReturnsDecodeError(t *testing.T) {
	c := newCPUWithROM([]byte{0xD3}) // unassigned opcode on the DMG
	err := c.Step()
	if err == nil {
		t.Fatalf("expected a DecodeError for opcode 0xD3")
	}
	de, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("error type got %T want *DecodeError", err)
	}
	if de.Opcode != 0xD3 || de.Page != "unprefixed" {
		t.Fatalf("DecodeError got %+v", de)
	}
}

func TestCBBit6ScenarioFromCorpus(t *testing.T) {
	// BIT 6,A on A=0x40: bit 6 is set, so Z must clear; H is always set
	// by BIT regardless of the tested bit's value.
	c := newCPUWithROM([]byte{0xCB, 0x77}) // BIT 6,A
	c.Reg.Write8(register.A, 0x40)
	c.Reg.SetFlags(true, true, false, true)
	if err := c.Step(); err != nil {
		t.Fatalf("Step returned error: %v", err)
	}
	if c.Reg.Flag(register.FlagZ) {
		t.Fatalf("BIT 6,A on 0x40 should clear Z (bit 6 is set)")
	}
	if !c.Reg.Flag(register.FlagH) {
		t.Fatalf("BIT always sets H")
	}
	if c.Reg.Flag(register.FlagN) {
		t.Fatalf("BIT always clears N")
	}
	if !c.Reg.Flag(register.FlagC) {
		t.Fatalf("BIT must not touch C")
	}
}

func TestDAAAfterBCDAdd(t *testing.T) {
	// 0x45 + 0x38 = 0x7D raw; BCD-correct result is 0x83.
	c := newCPUWithROM(nil)
	c.Reg.Write8(register.A, 0x45)
	c.execALU(0, 0x38) // ADD
	c.execDAA()
	if a := c.Reg.Read8(register.A); a != 0x83 {
		t.Fatalf("DAA result got %#02x want 0x83", a)
	}
}

func TestResetPostBootThenTenSteps(t *testing.T) {
	// Ten NOPs from the cartridge entry point: PC should land at 0x010A
	// with every other register untouched from its power-up default.
	rom := make([]byte, 0x8000)
	for i := 0x0100; i < 0x010A; i++ {
		rom[i] = 0x00
	}
	irq := interrupt.New()
	c := New(register.New(), memory.New(cartridge.New(rom), irq), irq)
	c.Reg.ResetPostBoot()
	for i := 0; i < 10; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("step %d returned error: %v", i, err)
		}
	}
	if pc := c.Reg.Read16(register.PC); pc != 0x010A {
		t.Fatalf("PC after 10 NOPs got %#04x want 0x010A", pc)
	}
	if af := c.Reg.Read16(register.AF); af != 0x0000 {
		t.Fatalf("AF got %#04x want 0x0000", af)
	}
	if bc := c.Reg.Read16(register.BC); bc != 0x0013 {
		t.Fatalf("BC got %#04x want 0x0013", bc)
	}
	if de := c.Reg.Read16(register.DE); de != 0x00D8 {
		t.Fatalf("DE got %#04x want 0x00D8", de)
	}
	if hl := c.Reg.Read16(register.HL); hl != 0x014D {
		t.Fatalf("HL got %#04x want 0x014D", hl)
	}
	if sp := c.Reg.Read16(register.SP); sp != 0xFFFE {
		t.Fatalf("SP got %#04x want 0xFFFE", sp)
	}
}
