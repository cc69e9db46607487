package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RunDebug drives a single-step debugger over in/out: "n"/"next" executes
// one instruction, "r"/"run" free-runs until a breakpoint or halt, "b
// <addr>"/"break <addr>" toggles a breakpoint at a PC value. State is
// printed after every step taken while waiting for input.
func (m *Machine) RunDebug(in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "commands: n/next, r/run, b/break <addr>")
	m.printState(out)

	reader := bufio.NewReader(in)
	waitForInput := true
	breakpoints := make(map[uint16]struct{})
	lastBreak := int32(-1)

	for {
		var line string
		if waitForInput {
			fmt.Fprint(out, "\n-> ")
			raw, err := reader.ReadString('\n')
			if err != nil && raw == "" {
				return nil
			}
			line = strings.ToLower(strings.TrimSpace(raw))
		} else {
			pc := m.CPU.PC
			if _, hit := breakpoints[pc]; hit && int32(pc) != lastBreak {
				fmt.Fprintln(out, "breakpoint")
				m.printState(out)
				waitForInput = true
				lastBreak = int32(pc)
				continue
			}
		}

		switch {
		case !waitForInput, line == "n", line == "next":
			lastBreak = -1
			cont, err := m.CPU.Step()
			if waitForInput {
				m.printState(out)
			}
			if err != nil {
				fmt.Fprintln(out, err)
				return err
			}
			if !cont {
				fmt.Fprintln(out, "halted")
				return nil
			}

		case line == "r", line == "run":
			waitForInput = false

		case strings.HasPrefix(line, "b"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: break <addr>")
				continue
			}
			addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "$"), 16, 16)
			if err != nil {
				fmt.Fprintln(out, "bad address:", err)
				continue
			}
			a := uint16(addr)
			if _, ok := breakpoints[a]; ok {
				delete(breakpoints, a)
			} else {
				breakpoints[a] = struct{}{}
			}

		default:
			fmt.Fprintln(out, "unknown command:", line)
		}
	}
}

func (m *Machine) printState(out io.Writer) {
	c := m.CPU
	fmt.Fprintf(out, "PC=%04X A=%02X X=%02X Y=%02X SP=%02X STATUS=%04b\n",
		c.PC, c.A, c.X, c.Y, c.SP, c.Status)
}
