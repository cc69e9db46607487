// Package console wires memory, the CPU, and the device watchers into a
// single runnable unit, and provides the single-step debugger built on
// top of it.
package console

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/Ubuntufanboy/Helios/cpu"
	"github.com/Ubuntufanboy/Helios/devices"
	"github.com/Ubuntufanboy/Helios/memory"
)

// Machine owns one console's worth of memory, CPU, and device watchers.
type Machine struct {
	Mem         *memory.Memory
	CPU         *cpu.CPU
	Framebuffer *devices.Framebuffer
	Audio       *devices.AudioWatcher

	// ClockInterval paces Run: Step is called, then the loop sleeps this
	// long before the next one. Zero means run unthrottled, which is what
	// tests and the assembler round-trip checks want.
	ClockInterval time.Duration
}

// New returns a Machine with program already loaded into ROM.
func New(program []byte) *Machine {
	mem := memory.New()
	mem.LoadProgram(program)
	return &Machine{
		Mem:         mem,
		CPU:         cpu.New(mem),
		Framebuffer: devices.NewFramebuffer(mem),
		Audio:       devices.NewAudioWatcher(mem, 16*time.Millisecond),
	}
}

// Run steps the CPU until it halts, hits an error, or ctx is canceled.
// It returns the CPU's last error, if any (nil on a clean HLT or a
// canceled context).
//
// The garbage collector is disabled for the duration of the run, matching
// the rest of the execution pipeline: memory is allocated up front and a
// GC pause mid-instruction-stream only hurts the tight fetch/decode/
// execute loop.
func (m *Machine) Run(ctx context.Context) error {
	restore := disableGC()
	defer restore()

	go m.Audio.Run()
	defer m.Audio.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		cont, err := m.CPU.Step()
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}

		if m.ClockInterval > 0 {
			time.Sleep(m.ClockInterval)
		}
	}
}

func disableGC() func() {
	prev := debug.SetGCPercent(-1)
	return func() { debug.SetGCPercent(prev) }
}
