package cartridge

import (
	"errors"
	"strings"
)

// Type identifies the cartridge's memory-bank-controller hardware, decoded
// from the header byte at 0x0147. Named constants cover the MBC families
// this module's banking controllers care about; every other code is still
// a valid Type value, it just has no special String() case.
type Type byte

const (
	TypeROM         Type = 0x00
	TypeMBC1        Type = 0x01
	TypeMBC1RAM     Type = 0x02
	TypeMBC1RAMBatt Type = 0x03
	TypeMBC2        Type = 0x05
	TypeMBC2Batt    Type = 0x06

	TypeMBC3TimerBatt    Type = 0x0F
	TypeMBC3TimerRAMBatt Type = 0x10
	TypeMBC3             Type = 0x11
	TypeMBC3RAM          Type = 0x12
	TypeMBC3RAMBatt      Type = 0x13

	TypeMBC5              Type = 0x19
	TypeMBC5RAM           Type = 0x1A
	TypeMBC5RAMBatt       Type = 0x1B
	TypeMBC5Rumble        Type = 0x1C
	TypeMBC5RumbleRAM     Type = 0x1D
	TypeMBC5RumbleRAMBatt Type = 0x1E
)

// String names the MBC family a Type belongs to, for diagnostics and the
// mbcStub warning. Unrecognised codes report "unknown" rather than
// panicking, since homebrew and test ROMs sometimes use reserved values.
func (t Type) String() string {
	switch t {
	case TypeROM:
		return "ROM ONLY"
	case TypeMBC1, TypeMBC1RAM, TypeMBC1RAMBatt:
		return "MBC1"
	case TypeMBC2, TypeMBC2Batt:
		return "MBC2"
	case TypeMBC3TimerBatt, TypeMBC3TimerRAMBatt, TypeMBC3, TypeMBC3RAM, TypeMBC3RAMBatt:
		return "MBC3"
	case TypeMBC5, TypeMBC5RAM, TypeMBC5RAMBatt, TypeMBC5Rumble, TypeMBC5RumbleRAM, TypeMBC5RumbleRAMBatt:
		return "MBC5"
	default:
		return "unknown"
	}
}

// CGBSupport records how a cartridge declares Game Boy Color compatibility
// via the byte at 0x0143, which doubles as the tail of Title on DMG-only
// cartridges (title occupies 0x0134-0x0143 there, one byte further than on
// a CGB-aware cartridge).
type CGBSupport byte

const (
	CGBUnsupported CGBSupport = iota
	CGBSupported
	CGBOnly
)

// ramSizeTable maps the RAM-size header code (0x0149) to the external RAM
// capacity it declares. Codes outside this table carry no RAM.
var ramSizeTable = map[byte]int{
	0x00: 0,
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// Header holds the decoded fields of a DMG cartridge header, read from the
// fixed 0x0100..0x014F window described in spec.md §6.
type Header struct {
	Title       string
	CGB         CGBSupport
	NewLicensee string
	SGB         bool
	CartType    Type
	ROMBytes    int
	ROMBanks    int
	RAMBytes    int
	Region      byte
	OldLicensee byte
	Version     byte
	Checksum    byte
	GlobalSum   uint16
}

// ParseHeader decodes the cartridge header from a raw ROM image.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < 0x0150 {
		return nil, errors.New("cartridge: ROM too small to contain a header")
	}

	h := &Header{}

	switch rom[0x0143] {
	case 0x80:
		h.CGB = CGBSupported
	case 0xC0:
		h.CGB = CGBOnly
	default:
		h.CGB = CGBUnsupported
	}

	titleEnd := 0x0144
	if h.CGB != CGBUnsupported {
		titleEnd = 0x0143
	}
	h.Title = strings.TrimRight(string(rom[0x0134:titleEnd]), "\x00")

	h.NewLicensee = string(rom[0x0144:0x0146])
	h.SGB = rom[0x0146] == 0x03
	h.CartType = Type(rom[0x0147])

	// ROM size is always 32KiB left-shifted by the header code; bank count
	// follows from the fixed 16KiB bank size.
	h.ROMBytes = (32 * 1024) << rom[0x0148]
	h.ROMBanks = h.ROMBytes / (16 * 1024)
	h.RAMBytes = ramSizeTable[rom[0x0149]]

	h.Region = rom[0x014A]
	h.OldLicensee = rom[0x014B]
	h.Version = rom[0x014C]
	h.Checksum = rom[0x014D]
	h.GlobalSum = uint16(rom[0x014E])<<8 | uint16(rom[0x014F])

	return h, nil
}

// HeaderChecksumOK verifies the one-byte header checksum at 0x014D.
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}
