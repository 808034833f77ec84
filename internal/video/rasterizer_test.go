package video

import "testing"

type fakeVRAM struct {
	mem map[uint16]byte
}

func newFakeVRAM() *fakeVRAM { return &fakeVRAM{mem: map[uint16]byte{}} }

func (f *fakeVRAM) Read(addr uint16) byte { return f.mem[addr] }
func (f *fakeVRAM) set(addr uint16, v byte) { f.mem[addr] = v }

func TestDecodePaletteAllFourShades(t *testing.T) {
	// BGP = 0b11_10_01_00: shade0->white(00), shade1->light(01), shade2->dark(10), shade3->black(11)
	pal := decodePalette(0b11_10_01_00)
	if pal[0] != paletteRGBA[0] || pal[1] != paletteRGBA[1] || pal[2] != paletteRGBA[2] || pal[3] != paletteRGBA[3] {
		t.Fatalf("palette decode mismatch: %#v", pal)
	}
}

func TestDrawSolidTileFillsBlock(t *testing.T) {
	mem := newFakeVRAM()
	mem.set(lcdcAddr, 0x91) // LCD on, BG tilemap 0x9800, unsigned tile data 0x8000
	mem.set(bgpAddr, 0b11_10_01_00)

	// Tile index 0 at map (0,0) -> tile data at 0x8000; make every row's
	// bit pattern select shade 3 (black) for every pixel.
	mem.set(0x9800, 0x00)
	for ty := 0; ty < 8; ty++ {
		mem.set(0x8000+uint16(2*ty), 0xFF)
		mem.set(0x8001+uint16(2*ty), 0xFF)
	}

	f := NewFrame()
	Draw(mem, f)

	// Pixel (0,0) in source space should be black across its 4x4 block.
	for dy := 0; dy < Scale; dy++ {
		for dx := 0; dx < Scale; dx++ {
			off := dy*f.Stride + dx*4
			if f.Pix[off] != 0x00 || f.Pix[off+1] != 0x00 || f.Pix[off+2] != 0x00 || f.Pix[off+3] != 0xFF {
				t.Fatalf("pixel (%d,%d) got %v want black", dx, dy, f.Pix[off:off+4])
			}
		}
	}
}

func TestDrawSignedAddressingUsesTileBase0x9000(t *testing.T) {
	mem := newFakeVRAM()
	mem.set(lcdcAddr, 0x81) // LCD on, BG tilemap 0x9800, signed tile data 0x8800
	mem.set(bgpAddr, 0b11_10_01_00)

	mem.set(0x9800, 0xFF) // index -1 -> row address 0x9000 + (-1)*16 = 0x8FF0
	for ty := 0; ty < 8; ty++ {
		mem.set(0x8FF0+uint16(2*ty), 0x00)
		mem.set(0x8FF1+uint16(2*ty), 0x00) // shade 0 -> white
	}

	f := NewFrame()
	Draw(mem, f)

	off := 0
	if f.Pix[off] != 0xFF || f.Pix[off+1] != 0xFF || f.Pix[off+2] != 0xFF {
		t.Fatalf("signed-addressed tile got %v want white", f.Pix[off:off+4])
	}
}

func TestFrameDimensionsAreFixedUpscale(t *testing.T) {
	f := NewFrame()
	wantStride := Width * Scale * 4
	if f.Stride != wantStride {
		t.Fatalf("stride got %d want %d", f.Stride, wantStride)
	}
	wantLen := Width * Scale * Height * Scale * 4
	if len(f.Pix) != wantLen {
		t.Fatalf("buffer length got %d want %d", len(f.Pix), wantLen)
	}
}
