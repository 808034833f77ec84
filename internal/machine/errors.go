package machine

import (
	"errors"
	"fmt"
)

var errShortBootROM = errors.New("boot ROM image is shorter than 256 bytes")

// InitializationFailure reports that the machine could not be brought up.
// New returns it, with Stage "bootrom", for a boot ROM shorter than 256
// bytes; cartridge images never cause it (they degrade to ROM-only) and
// presenter failures are not wrapped in it. Per spec.md §7 this is fatal
// and prevents Run from ever starting.
type InitializationFailure struct {
	Stage string // the step that failed; New only sets "bootrom"
	Err   error
}

func (e *InitializationFailure) Error() string {
	return fmt.Sprintf("machine: initialization failed at %s: %v", e.Stage, e.Err)
}

func (e *InitializationFailure) Unwrap() error { return e.Err }
