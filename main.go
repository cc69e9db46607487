// Command helios runs the Helios 8-bit console: it assembles or loads a
// ROM, then either executes it, drops into a single-step debugger, or
// prints a disassembly listing.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/oto/v2"
	"github.com/spf13/cobra"

	"github.com/Ubuntufanboy/Helios/asm"
	"github.com/Ubuntufanboy/Helios/audiosink"
	"github.com/Ubuntufanboy/Helios/console"
	"github.com/Ubuntufanboy/Helios/presenter"
)

func main() {
	var romPath, asmPath string
	var headless, debug, disassemble bool

	root := &cobra.Command{
		Use:   "helios",
		Short: "Run programs on the Helios 8-bit console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(romPath, asmPath, headless, debug, disassemble)
		},
	}

	root.Flags().StringVarP(&romPath, "rom", "r", "", "path to an assembled ROM image")
	root.Flags().StringVarP(&asmPath, "asm", "a", "", "path to a console assembly source file")
	root.Flags().BoolVar(&headless, "headless", false, "run without opening a presenter window")
	root.Flags().BoolVar(&debug, "debug", false, "drop into the single-step debugger instead of free-running")
	root.Flags().BoolVarP(&disassemble, "disassemble", "d", false, "print a disassembly listing and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(romPath, asmPath string, headless, debug, disassemble bool) error {
	code, err := loadProgram(romPath, asmPath)
	if err != nil {
		return err
	}

	if disassemble {
		fmt.Print(asm.Listing(code))
		return nil
	}

	m := console.New(code)
	m.ClockInterval = time.Microsecond // nominal 1 MHz, one instruction per cycle

	if debug {
		return m.RunDebug(os.Stdin, os.Stdout)
	}

	if headless {
		return m.Run(context.Background())
	}
	return runWithPresenter(m)
}

func loadProgram(romPath, asmPath string) ([]byte, error) {
	switch {
	case romPath != "" && asmPath != "":
		return nil, fmt.Errorf("specify only one of --rom or --asm")
	case romPath != "":
		return os.ReadFile(romPath)
	case asmPath != "":
		source, err := os.ReadFile(asmPath)
		if err != nil {
			return nil, err
		}
		return asm.Assemble(string(source))
	default:
		return nil, fmt.Errorf("one of --rom or --asm is required")
	}
}

func runWithPresenter(m *console.Machine) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runErr error
	go func() {
		runErr = m.Run(ctx)
		cancel()
	}()

	if sink, err := newAudioSink(); err == nil {
		go sink.Watch(m.Audio.Events())
		defer sink.Close()
	}

	game := presenter.New(m.Framebuffer)
	if err := ebiten.RunGame(game); err != nil {
		return err
	}
	cancel()
	return runErr
}

func newAudioSink() (*audiosink.Sink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   44100,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready
	return audiosink.New(ctx), nil
}
