// Package cpu implements the LR35902 fetch-decode-execute loop described
// in spec.md §4.4: family-based bit-pattern decoding (§9's design note)
// rather than a flat 256-entry switch, a bit-packed flag register via
// internal/register, and the interrupt/HALT coupling the main loop
// depends on.
package cpu

import (
	"github.com/dmgcore/dmgcore/internal/interrupt"
	"github.com/dmgcore/dmgcore/internal/memory"
	"github.com/dmgcore/dmgcore/internal/register"
)

// CPU is the LR35902 interpreter. It owns no state of its own beyond
// wiring: the register file, address space, and interrupt controller are
// all shared with the rest of the machine.
type CPU struct {
	Reg *register.File
	Mem *memory.MMU
	IRQ *interrupt.Controller
}

// New constructs a CPU over the given register file, memory map, and
// interrupt controller.
func New(reg *register.File, mem *memory.MMU, irq *interrupt.Controller) *CPU {
	return &CPU{Reg: reg, Mem: mem, IRQ: irq}
}

// regIdxSub maps a 3-bit instruction register field to a register.Sub.
// Field value 6 means (HL) and is handled separately by getReg8/setReg8.
var regIdxSub = [8]register.Sub{register.B, register.C, register.D, register.E, register.H, register.L, 0, register.A}

func (c *CPU) getReg8(idx byte) byte {
	if idx == 6 {
		return c.Mem.Read(c.Reg.Read16(register.HL))
	}
	return c.Reg.Read8(regIdxSub[idx])
}

func (c *CPU) setReg8(idx byte, v byte) {
	if idx == 6 {
		c.Mem.Write(c.Reg.Read16(register.HL), v)
		return
	}
	c.Reg.Write8(regIdxSub[idx], v)
}

// pairIdxSP / pairIdxAF map the two-bit pair field used by LD rr,nn /
// INC rr / DEC rr / ADD HL,rr (SP variant) and PUSH/POP (AF variant).
var pairIdxSP = [4]register.Pair{register.BC, register.DE, register.HL, register.SP}
var pairIdxAF = [4]register.Pair{register.BC, register.DE, register.HL, register.AF}

func (c *CPU) fetch8() byte {
	pc := c.Reg.Read16(register.PC)
	b := c.Mem.Read(pc)
	c.Reg.Write16(register.PC, pc+1)
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | hi<<8
}

// push16 stores v little-endian at SP-2..SP-1 after decrementing SP by
// 2: the low byte lands at the new SP. Spec.md §9 flags the source's
// SP+1/SP+2 placement as a bug; hardware (and this implementation) store
// at SP..SP+1 of the post-decrement stack pointer.
func (c *CPU) push16(v uint16) {
	sp := c.Reg.Read16(register.SP) - 2
	c.Reg.Write16(register.SP, sp)
	c.Mem.Write16(sp, v)
}

func (c *CPU) pop16() uint16 {
	sp := c.Reg.Read16(register.SP)
	v := c.Mem.Read16(sp)
	c.Reg.Write16(register.SP, sp+2)
	return v
}

// Step executes exactly one instruction, servicing HALT wakeup first.
// It returns a *DecodeError for an unrecognised opcode; every other
// error the rest of the machine defines originates outside this package.
func (c *CPU) Step() error {
	if c.IRQ.Halted() {
		if c.IRQ.Pending() {
			c.IRQ.SetHalted(false)
		} else {
			return nil
		}
	}
	pcAtFetch := c.Reg.Read16(register.PC)
	op := c.fetch8()
	if op == 0xCB {
		cb := c.fetch8()
		return c.execCB(cb, pcAtFetch)
	}
	return c.exec(op, pcAtFetch)
}

// exec dispatches an unprefixed opcode by matching it against the
// bit-pattern families from spec.md §4.4's decode table, falling back to
// the singleton table for fixed-form instructions.
func (c *CPU) exec(op byte, pc uint16) error {
	switch {
	case op == 0x00: // NOP
		return nil
	case op == 0x76: // HALT
		c.IRQ.SetHalted(true)
		return nil
	case op == 0x10: // STOP
		c.fetch8() // STOP's mandatory (and ignored) second byte
		return nil
	case op == 0xF3: // DI
		c.IRQ.IME = false
		return nil
	case op == 0xFB: // EI
		c.IRQ.IME = true
		return nil
	case op&0xC0 == 0x40: // LD r,r'  (0x76 already handled above)
		c.setReg8((op>>3)&7, c.getReg8(op&7))
		return nil
	case op&0xC7 == 0x06: // LD r,n
		c.setReg8((op>>3)&7, c.fetch8())
		return nil
	case op&0xCF == 0x01: // LD rr,nn
		c.Reg.Write16(pairIdxSP[(op>>4)&3], c.fetch16())
		return nil
	case op&0xCF == 0xC5: // PUSH rr
		c.push16(c.Reg.Read16(pairIdxAF[(op>>4)&3]))
		return nil
	case op&0xCF == 0xC1: // POP rr
		c.Reg.Write16(pairIdxAF[(op>>4)&3], c.pop16())
		return nil
	case op&0xC7 == 0x04: // INC r (idx 6 is INC (HL))
		c.execInc8((op >> 3) & 7)
		return nil
	case op&0xC7 == 0x05: // DEC r (idx 6 is DEC (HL))
		c.execDec8((op >> 3) & 7)
		return nil
	case op&0xCF == 0x03: // INC rr
		p := pairIdxSP[(op>>4)&3]
		c.Reg.Write16(p, c.Reg.Read16(p)+1)
		return nil
	case op&0xCF == 0x0B: // DEC rr
		p := pairIdxSP[(op>>4)&3]
		c.Reg.Write16(p, c.Reg.Read16(p)-1)
		return nil
	case op&0xCF == 0x09: // ADD HL,rr
		c.execAddHL(pairIdxSP[(op>>4)&3])
		return nil
	case op&0xC0 == 0x80: // ALU A,r
		c.execALU((op>>3)&7, c.getReg8(op&7))
		return nil
	case op&0xC7 == 0xC6: // ALU A,n
		c.execALU((op>>3)&7, c.fetch8())
		return nil
	case op&0xE7 == 0xC2: // JP cc,nn
		target := c.fetch16()
		if c.Reg.CheckCond(register.Cond((op >> 3) & 3)) {
			c.Reg.Write16(register.PC, target)
		}
		return nil
	case op == 0xC3: // JP nn
		c.Reg.Write16(register.PC, c.fetch16())
		return nil
	case op == 0xE9: // JP (HL)
		c.Reg.Write16(register.PC, c.Reg.Read16(register.HL))
		return nil
	case op&0xE7 == 0x20: // JR cc,d
		d := int8(c.fetch8())
		if c.Reg.CheckCond(register.Cond((op >> 3) & 3)) {
			c.Reg.Write16(register.PC, uint16(int32(c.Reg.Read16(register.PC))+int32(d)))
		}
		return nil
	case op == 0x18: // JR d
		d := int8(c.fetch8())
		c.Reg.Write16(register.PC, uint16(int32(c.Reg.Read16(register.PC))+int32(d)))
		return nil
	case op&0xE7 == 0xC4: // CALL cc,nn
		target := c.fetch16()
		if c.Reg.CheckCond(register.Cond((op >> 3) & 3)) {
			c.push16(c.Reg.Read16(register.PC))
			c.Reg.Write16(register.PC, target)
		}
		return nil
	case op == 0xCD: // CALL nn
		target := c.fetch16()
		c.push16(c.Reg.Read16(register.PC))
		c.Reg.Write16(register.PC, target)
		return nil
	case op&0xE7 == 0xC0: // RET cc
		if c.Reg.CheckCond(register.Cond((op >> 3) & 3)) {
			c.Reg.Write16(register.PC, c.pop16())
		}
		return nil
	case op == 0xC9: // RET
		c.Reg.Write16(register.PC, c.pop16())
		return nil
	case op == 0xD9: // RETI
		c.Reg.Write16(register.PC, c.pop16())
		c.IRQ.IME = true
		return nil
	case op&0xC7 == 0xC7: // RST n
		c.push16(c.Reg.Read16(register.PC))
		c.Reg.Write16(register.PC, uint16(op&0x38))
		return nil
	case op == 0x2F: // CPL
		c.Reg.Write8(register.A, ^c.Reg.Read8(register.A))
		c.Reg.SetFlag(register.FlagN, true)
		c.Reg.SetFlag(register.FlagH, true)
		return nil
	case op == 0x3F: // CCF
		c.Reg.SetFlag(register.FlagN, false)
		c.Reg.SetFlag(register.FlagH, false)
		c.Reg.SetFlag(register.FlagC, !c.Reg.Flag(register.FlagC))
		return nil
	case op == 0x37: // SCF
		c.Reg.SetFlag(register.FlagN, false)
		c.Reg.SetFlag(register.FlagH, false)
		c.Reg.SetFlag(register.FlagC, true)
		return nil
	case op == 0x27: // DAA
		c.execDAA()
		return nil
	case op == 0x07: // RLCA
		c.execRLCA()
		return nil
	case op == 0x0F: // RRCA
		c.execRRCA()
		return nil
	case op == 0x17: // RLA
		c.execRLA()
		return nil
	case op == 0x1F: // RRA
		c.execRRA()
		return nil
	case op == 0xEA: // LD (nn),A
		c.Mem.Write(c.fetch16(), c.Reg.Read8(register.A))
		return nil
	case op == 0xFA: // LD A,(nn)
		c.Reg.Write8(register.A, c.Mem.Read(c.fetch16()))
		return nil
	case op == 0x22: // LD (HL+),A
		hl := c.Reg.Read16(register.HL)
		c.Mem.Write(hl, c.Reg.Read8(register.A))
		c.Reg.Write16(register.HL, hl+1)
		return nil
	case op == 0x2A: // LD A,(HL+)
		hl := c.Reg.Read16(register.HL)
		c.Reg.Write8(register.A, c.Mem.Read(hl))
		c.Reg.Write16(register.HL, hl+1)
		return nil
	case op == 0x32: // LD (HL-),A
		hl := c.Reg.Read16(register.HL)
		c.Mem.Write(hl, c.Reg.Read8(register.A))
		c.Reg.Write16(register.HL, hl-1)
		return nil
	case op == 0x3A: // LD A,(HL-)
		hl := c.Reg.Read16(register.HL)
		c.Reg.Write8(register.A, c.Mem.Read(hl))
		c.Reg.Write16(register.HL, hl-1)
		return nil
	case op == 0xE0: // LDH (FF00+n),A
		c.Mem.Write(0xFF00+uint16(c.fetch8()), c.Reg.Read8(register.A))
		return nil
	case op == 0xF0: // LDH A,(FF00+n)
		c.Reg.Write8(register.A, c.Mem.Read(0xFF00+uint16(c.fetch8())))
		return nil
	case op == 0xE2: // LD (FF00+C),A
		c.Mem.Write(0xFF00+uint16(c.Reg.Read8(register.C)), c.Reg.Read8(register.A))
		return nil
	case op == 0xF2: // LD A,(FF00+C)
		c.Reg.Write8(register.A, c.Mem.Read(0xFF00+uint16(c.Reg.Read8(register.C))))
		return nil
	case op == 0x02: // LD (BC),A
		c.Mem.Write(c.Reg.Read16(register.BC), c.Reg.Read8(register.A))
		return nil
	case op == 0x12: // LD (DE),A
		c.Mem.Write(c.Reg.Read16(register.DE), c.Reg.Read8(register.A))
		return nil
	case op == 0x0A: // LD A,(BC)
		c.Reg.Write8(register.A, c.Mem.Read(c.Reg.Read16(register.BC)))
		return nil
	case op == 0x1A: // LD A,(DE)
		c.Reg.Write8(register.A, c.Mem.Read(c.Reg.Read16(register.DE)))
		return nil
	case op == 0x08: // LD (nn),SP
		c.Mem.Write16(c.fetch16(), c.Reg.Read16(register.SP))
		return nil
	case op == 0xF9: // LD SP,HL
		c.Reg.Write16(register.SP, c.Reg.Read16(register.HL))
		return nil
	case op == 0xE8: // ADD SP,d
		c.Reg.Write16(register.SP, c.execSPPlusD())
		return nil
	case op == 0xF8: // LD HL,SP+d
		c.Reg.Write16(register.HL, c.execSPPlusD())
		return nil
	}
	return &DecodeError{Page: "unprefixed", Opcode: op, PC: pc}
}

// execInc8 / execDec8 implement INC r / DEC r (and their (HL) variants,
// reg index 6) with the Z/N/H flag semantics from spec.md's flag table;
// neither touches the carry flag.
func (c *CPU) execInc8(idx byte) {
	v := c.getReg8(idx)
	res := v + 1
	c.setReg8(idx, res)
	c.Reg.SetFlag(register.FlagZ, res == 0)
	c.Reg.SetFlag(register.FlagN, false)
	c.Reg.SetFlag(register.FlagH, v&0x0F == 0x0F)
}

func (c *CPU) execDec8(idx byte) {
	v := c.getReg8(idx)
	res := v - 1
	c.setReg8(idx, res)
	c.Reg.SetFlag(register.FlagZ, res == 0)
	c.Reg.SetFlag(register.FlagN, true)
	c.Reg.SetFlag(register.FlagH, v&0x0F == 0x00)
}

// execAddHL implements ADD HL,rr: Z is unaffected, N cleared, H/C from
// the 16-bit addition's bit 11 / bit 15 carries.
func (c *CPU) execAddHL(p register.Pair) {
	hl := c.Reg.Read16(register.HL)
	v := c.Reg.Read16(p)
	res := uint32(hl) + uint32(v)
	c.Reg.SetFlag(register.FlagN, false)
	c.Reg.SetFlag(register.FlagH, (hl&0x0FFF)+(v&0x0FFF) > 0x0FFF)
	c.Reg.SetFlag(register.FlagC, res > 0xFFFF)
	c.Reg.Write16(register.HL, uint16(res))
}

// execALU implements the eight ADD/ADC/SUB/SBC/AND/XOR/OR/CP operations
// against A, per spec.md's ALU flag table. AND always sets H; OR/XOR
// always clear H and C; CP computes SUB's flags without storing the
// result.
func (c *CPU) execALU(op byte, rhs byte) {
	a := c.Reg.Read8(register.A)
	carryIn := byte(0)
	if (op == 1 || op == 3) && c.Reg.Flag(register.FlagC) { // ADC, SBC
		carryIn = 1
	}
	switch op {
	case 0, 1: // ADD, ADC
		res := uint16(a) + uint16(rhs) + uint16(carryIn)
		c.Reg.SetFlags(byte(res) == 0, false,
			(a&0x0F)+(rhs&0x0F)+carryIn > 0x0F, res > 0xFF)
		c.Reg.Write8(register.A, byte(res))
	case 2, 3: // SUB, SBC
		res := int16(a) - int16(rhs) - int16(carryIn)
		c.Reg.SetFlags(byte(res) == 0, true,
			int16(a&0x0F)-int16(rhs&0x0F)-int16(carryIn) < 0, res < 0)
		c.Reg.Write8(register.A, byte(res))
	case 4: // AND
		res := a & rhs
		c.Reg.SetFlags(res == 0, false, true, false)
		c.Reg.Write8(register.A, res)
	case 5: // XOR
		res := a ^ rhs
		c.Reg.SetFlags(res == 0, false, false, false)
		c.Reg.Write8(register.A, res)
	case 6: // OR
		res := a | rhs
		c.Reg.SetFlags(res == 0, false, false, false)
		c.Reg.Write8(register.A, res)
	case 7: // CP
		res := int16(a) - int16(rhs)
		c.Reg.SetFlags(byte(res) == 0, true, int16(a&0x0F)-int16(rhs&0x0F) < 0, res < 0)
	}
}

// execSPPlusD is the shared arithmetic for ADD SP,d and LD HL,SP+d: both
// add a signed 8-bit displacement to SP and compute Z=0, N=0, H/C from
// the *unsigned byte* addition of SP's low byte and d, matching
// hardware's documented quirk (flags never reflect the sign extension).
func (c *CPU) execSPPlusD() uint16 {
	sp := c.Reg.Read16(register.SP)
	d := int8(c.fetch8())
	lo := byte(sp)
	res := uint16(lo) + uint16(byte(d))
	c.Reg.SetFlags(false, false, (lo&0x0F)+(byte(d)&0x0F) > 0x0F, res > 0xFF)
	return uint16(int32(sp) + int32(d))
}

// execDAA adjusts A after a BCD ADD/SUB, using N/H/C from the preceding
// ALU op to decide the correction, per the standard LR35902 table.
func (c *CPU) execDAA() {
	a := c.Reg.Read8(register.A)
	n := c.Reg.Flag(register.FlagN)
	h := c.Reg.Flag(register.FlagH)
	carry := c.Reg.Flag(register.FlagC)
	var adjust byte
	newCarry := carry
	if n {
		if h {
			adjust += 0x06
		}
		if carry {
			adjust += 0x60
		}
		a -= adjust
	} else {
		if h || a&0x0F > 0x09 {
			adjust += 0x06
		}
		if carry || a > 0x99 {
			adjust += 0x60
			newCarry = true
		}
		a += adjust
	}
	c.Reg.Write8(register.A, a)
	c.Reg.SetFlag(register.FlagZ, a == 0)
	c.Reg.SetFlag(register.FlagH, false)
	c.Reg.SetFlag(register.FlagC, newCarry)
}

func (c *CPU) execRLCA() {
	a := c.Reg.Read8(register.A)
	carry := a&0x80 != 0
	res := a<<1 | a>>7
	c.Reg.Write8(register.A, res)
	c.Reg.SetFlags(false, false, false, carry)
}

func (c *CPU) execRRCA() {
	a := c.Reg.Read8(register.A)
	carry := a&0x01 != 0
	res := a>>1 | a<<7
	c.Reg.Write8(register.A, res)
	c.Reg.SetFlags(false, false, false, carry)
}

func (c *CPU) execRLA() {
	a := c.Reg.Read8(register.A)
	oldCarry := byte(0)
	if c.Reg.Flag(register.FlagC) {
		oldCarry = 1
	}
	carry := a&0x80 != 0
	res := a<<1 | oldCarry
	c.Reg.Write8(register.A, res)
	c.Reg.SetFlags(false, false, false, carry)
}

func (c *CPU) execRRA() {
	a := c.Reg.Read8(register.A)
	oldCarry := byte(0)
	if c.Reg.Flag(register.FlagC) {
		oldCarry = 0x80
	}
	carry := a&0x01 != 0
	res := a>>1 | oldCarry
	c.Reg.Write8(register.A, res)
	c.Reg.SetFlags(false, false, false, carry)
}

// execCB dispatches a CB-prefixed opcode: the top two bits pick the
// group (rotate/shift family, BIT, RES, SET), the next three bits pick
// the bit index (rotate/shift family instead indexes cbRotateNames), and
// the low three bits pick the register operand (6 means (HL)).
func (c *CPU) execCB(cb byte, pc uint16) error {
	group := (cb >> 6) & 3
	regIdx := cb & 7
	bit := (cb >> 3) & 7
	v := c.getReg8(regIdx)
	switch group {
	case 0:
		res, carry := c.rotateShift(bit, v)
		c.setReg8(regIdx, res)
		c.Reg.SetFlags(res == 0, false, false, carry)
		return nil
	case 1: // BIT
		c.Reg.SetFlag(register.FlagZ, v&(1<<bit) == 0)
		c.Reg.SetFlag(register.FlagN, false)
		c.Reg.SetFlag(register.FlagH, true)
		return nil
	case 2: // RES
		c.setReg8(regIdx, v&^(1<<bit))
		return nil
	case 3: // SET
		c.setReg8(regIdx, v|(1<<bit))
		return nil
	}
	return &DecodeError{Page: "CB", Opcode: cb, PC: pc}
}

// rotateShift implements the eight CB 0x00-0x3F operations: RLC, RRC,
// RL, RR, SLA, SRA, SWAP, SRL, in cbRotateNames order.
func (c *CPU) rotateShift(op byte, v byte) (result byte, carry bool) {
	switch op {
	case 0: // RLC
		carry = v&0x80 != 0
		return v<<1 | v>>7, carry
	case 1: // RRC
		carry = v&0x01 != 0
		return v>>1 | v<<7, carry
	case 2: // RL
		oldCarry := byte(0)
		if c.Reg.Flag(register.FlagC) {
			oldCarry = 1
		}
		carry = v&0x80 != 0
		return v<<1 | oldCarry, carry
	case 3: // RR
		oldCarry := byte(0)
		if c.Reg.Flag(register.FlagC) {
			oldCarry = 0x80
		}
		carry = v&0x01 != 0
		return v>>1 | oldCarry, carry
	case 4: // SLA
		carry = v&0x80 != 0
		return v << 1, carry
	case 5: // SRA
		carry = v&0x01 != 0
		return v&0x80 | v>>1, carry
	case 6: // SWAP
		return v<<4 | v>>4, false
	case 7: // SRL
		carry = v&0x01 != 0
		return v >> 1, carry
	}
	return v, false
}
