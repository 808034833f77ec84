package cpu

import "fmt"

// DecodeError reports an unrecognised opcode. It is fatal to Step: the
// caller (normally the main loop in internal/machine) logs register
// state and exits, per spec.md §7's propagation policy.
type DecodeError struct {
	Page   string // "unprefixed" or "CB"
	Opcode byte
	PC     uint16
}

func (e *DecodeError) Error() string {
	name := mnemonicFor(e.Opcode)
	if e.Page == "CB" {
		name = mnemonicForCB(e.Opcode)
	}
	return fmt.Sprintf("cpu: unknown %s opcode %#02x (%s) at PC=%#04x", e.Page, e.Opcode, name, e.PC)
}
