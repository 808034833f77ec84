// Command dmgemu is the windowed entry point: it loads a ROM (and an
// optional DMG boot ROM overlay), wires an ebiten-backed Presenter, and
// runs the machine loop until the window is closed.
package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dmgcore/dmgcore/internal/machine"
	"github.com/dmgcore/dmgcore/internal/present"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb); falls back to the first positional argument")
	bootPath := flag.String("bootrom", "", "DMG boot ROM image; defaults to ./DMG_ROM.bin if present")
	scale := flag.Int("scale", 2, "window scale, applied on top of the rasterizer's 4x upscale")
	title := flag.String("title", "dmgemu", "window title")
	trace := flag.Bool("trace", false, "log a disassembly line for every CPU step")
	flag.Parse()

	log := logrus.StandardLogger()

	path := *romPath
	if path == "" {
		path = flag.Arg(0)
	}
	if path == "" {
		log.Fatal("dmgemu: usage: dmgemu [-rom] <rom-path>")
	}
	rom, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Fatal("dmgemu: failed to read ROM")
	}
	boot, err := loadBootROM(*bootPath)
	if err != nil {
		log.WithError(err).Fatal("dmgemu: failed to read boot ROM")
	}

	opts := []machine.Option{machine.WithLogger(log)}
	if *trace {
		opts = append(opts, machine.WithTrace(func(pc uint16, mnemonic string) {
			log.WithField("pc", pc).Tracef("%s", mnemonic)
		}))
	}
	m, err := machine.New(rom, boot, opts...)
	if err != nil {
		log.WithError(err).Fatal("dmgemu: initialization failed")
	}
	presenter := present.NewEbitenPresenter(*title, *scale)

	go func() {
		if err := m.Run(presenter); err != nil {
			log.WithError(err).Error("dmgemu: machine loop exited with error")
			os.Exit(1)
		}
	}()

	if err := presenter.Run(); err != nil {
		log.WithError(err).Fatal("dmgemu: presenter exited with error")
	}
}

// loadBootROM reads the boot ROM at path. If path is empty it falls back to
// DMG_ROM.bin in the working directory (spec.md §6's documented side-file
// convention); a missing fallback file is not an error, it just means no
// boot-ROM overlay runs.
func loadBootROM(path string) ([]byte, error) {
	if path == "" {
		path = "DMG_ROM.bin"
		if _, err := os.Stat(path); err != nil {
			return nil, nil
		}
	}
	return os.ReadFile(path)
}
