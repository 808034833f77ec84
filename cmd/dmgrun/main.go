// Command dmgrun is the headless entry point for automated ROM
// exercising: blargg/mooneye-style test ROMs that signal pass/fail over
// the serial port, or simple step-count smoke runs in CI. Mirrors the
// teacher's cmd/cpurunner, swapping its ad hoc CRC32 for an xxhash64 of
// the framebuffer.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/dmgcore/dmgcore/internal/machine"
	"github.com/dmgcore/dmgcore/internal/present"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb); falls back to the first positional argument")
	bootPath := flag.String("bootrom", "", "DMG boot ROM image; defaults to ./DMG_ROM.bin if present")
	steps := flag.Int("steps", 0, "number of main-loop iterations to run (0 means run until -until, or 8192*64 iterations when -until is also unset)")
	until := flag.Duration("until", 0, "wall-clock duration to run for (0 means no time limit)")
	timeout := flag.Duration("timeout", 0, "alias for -until kept for cpurunner-style invocations")
	trace := flag.Bool("trace", false, "log a disassembly line for every CPU step")
	expect := flag.String("expect", "", "expected xxhash64 of the final framebuffer, as hex")
	flag.Parse()

	log := logrus.StandardLogger()

	path := *romPath
	if path == "" {
		path = flag.Arg(0)
	}
	if path == "" {
		log.Fatal("dmgrun: usage: dmgrun [-rom] <rom-path>")
	}
	rom, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Fatal("dmgrun: failed to read ROM")
	}
	boot, err := loadBootROM(*bootPath)
	if err != nil {
		log.WithError(err).Fatal("dmgrun: failed to read boot ROM")
	}

	opts := []machine.Option{machine.WithLogger(log)}
	if *trace {
		opts = append(opts, machine.WithTrace(func(pc uint16, mnemonic string) {
			log.WithField("pc", pc).Tracef("%s", mnemonic)
		}))
	}
	m, err := machine.New(rom, boot, opts...)
	if err != nil {
		log.WithError(err).Fatal("dmgrun: initialization failed")
	}

	deadline := *until
	if deadline == 0 {
		deadline = *timeout
	}
	limit := *steps
	if limit == 0 && deadline == 0 {
		limit = 8192 * 64 // a bounded default so CI invocations always terminate
	}

	h := present.NewHeadless(limit)
	start := time.Now()
	var runErr error
	if deadline > 0 {
		runErr = runWithDeadline(m, h, deadline)
	} else {
		runErr = m.Run(h)
	}
	elapsed := time.Since(start)

	if runErr != nil {
		log.WithError(runErr).Fatal("dmgrun: machine loop exited with error")
	}

	log.WithFields(logrus.Fields{
		"frames":  h.Frames,
		"elapsed": elapsed.Truncate(time.Millisecond),
	}).Info("dmgrun: run complete")

	if *expect != "" {
		if h.Last == nil {
			log.Fatal("dmgrun: -expect given but no frame was ever rasterized")
		}
		got := fmt.Sprintf("%016x", xxhash.Sum64(h.Last.Pix))
		if got != *expect {
			log.Fatalf("dmgrun: framebuffer hash mismatch: got %s want %s", got, *expect)
		}
	}
}

// runWithDeadline runs the machine loop until either the headless
// presenter's step budget is exhausted or the wall-clock deadline
// passes, whichever comes first.
func runWithDeadline(m *machine.Machine, h *present.Headless, deadline time.Duration) error {
	timer := &deadlinePresenter{Headless: h, expires: time.Now().Add(deadline)}
	return m.Run(timer)
}

// deadlinePresenter wraps Headless so PollEvents also honors a
// wall-clock deadline, letting -until and -steps compose.
type deadlinePresenter struct {
	*present.Headless
	expires time.Time
}

func (d *deadlinePresenter) PollEvents() bool {
	if time.Now().After(d.expires) {
		return true
	}
	return d.Headless.PollEvents()
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
