package cpu

import (
	"strings"
	"testing"

	"github.com/Ubuntufanboy/Helios/memory"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func newCPU(program ...byte) (*CPU, *memory.Memory) {
	mem := memory.New()
	mem.LoadProgram(program)
	return New(mem), mem
}

func TestLDAImmediateSetsFlags(t *testing.T) {
	c, _ := newCPU(0xA9, 0x00, 0xA9, 0x80, 0xA9, 0x05)
	c.Step()
	assert(t, c.A == 0 && c.flag(FlagZero), "LDA #0 should set zero flag")

	c.Step()
	assert(t, c.A == 0x80 && c.flag(FlagNegative), "LDA #$80 should set negative flag")

	c.Step()
	assert(t, c.A == 5 && !c.flag(FlagZero) && !c.flag(FlagNegative), "LDA #5 should clear both")
}

func TestSTALDARoundTrip(t *testing.T) {
	// LDA #$42; STA $80; LDA #$00; LDA $80
	c, _ := newCPU(0xA9, 0x42, 0x85, 0x80, 0xA9, 0x00, 0xA5, 0x80)
	for i := 0; i < 4; i++ {
		c.Step()
	}
	assert(t, c.A == 0x42, "STA then LDA should round-trip the value, got %#x", c.A)
}

func TestJSRRTSBalancesStack(t *testing.T) {
	// JSR $0006; HLT; HLT; HLT; NOP; RTS
	program := []byte{0x20, 0x06, 0x00, 0xFF, 0xFF, 0xFF, 0xEA, 0x60}
	c, _ := newCPU(program...)
	startSP := c.SP
	c.Step() // JSR
	assert(t, c.SP == startSP-2, "JSR should push 2 bytes, SP went from %#x to %#x", startSP, c.SP)
	assert(t, c.PC == 0x0006, "JSR should jump to target, got %#x", c.PC)

	c.Step() // NOP at 0x0006
	c.Step() // RTS
	assert(t, c.SP == startSP, "RTS should restore SP, got %#x want %#x", c.SP, startSP)
	assert(t, c.PC == 0x0003, "RTS should resume after the JSR operand, got %#x", c.PC)
}

func TestStackWraparound(t *testing.T) {
	c, _ := newCPU(0xEA)
	c.SP = 0x00
	c.push(0x99)
	assert(t, c.SP == 0xFF, "push at SP=0 should wrap to 0xFF, got %#x", c.SP)

	v := c.pop()
	assert(t, v == 0x99, "pop should read back the wrapped push, got %#x", v)
	assert(t, c.SP == 0x00, "pop should restore SP, got %#x", c.SP)
}

func TestADCOverflowAndCarry(t *testing.T) {
	// LDA #$7F; ADC #$01 -> signed overflow (127+1 = -128 in two's complement)
	c, _ := newCPU(0xA9, 0x7F, 0x69, 0x01)
	c.Step()
	c.Step()
	assert(t, c.A == 0x80, "ADC result wrong, got %#x", c.A)
	assert(t, c.flag(FlagOverflow), "7F+01 should set overflow")
	assert(t, !c.flag(FlagCarry), "7F+01 should not set carry")

	// LDA #$FF; ADC #$01 -> unsigned carry, no signed overflow
	c2, _ := newCPU(0xA9, 0xFF, 0x69, 0x01)
	c2.Step()
	c2.Step()
	assert(t, c2.A == 0x00, "FF+01 should wrap to 0, got %#x", c2.A)
	assert(t, c2.flag(FlagCarry), "FF+01 should set carry")
	assert(t, !c2.flag(FlagOverflow), "FF+01 should not set overflow")
	assert(t, c2.flag(FlagZero), "FF+01 result is zero")
}

func TestSBCBorrow(t *testing.T) {
	// LDA #$00; SBC #$01 with carry clear (borrow) should wrap to 0xFE
	c, _ := newCPU(0xA9, 0x00, 0xE9, 0x01)
	c.Step()
	c.Step()
	assert(t, c.A == 0xFE, "0 - 1 - borrow should be 0xFE, got %#x", c.A)
	assert(t, !c.flag(FlagCarry), "borrow should leave carry clear")
}

func TestBranchBoundaryOffsets(t *testing.T) {
	// BEQ +127 from a zero flag
	prog := make([]byte, 0, 260)
	prog = append(prog, 0xA9, 0x00) // LDA #0 sets zero flag
	prog = append(prog, 0xF0, 127)  // BEQ +127
	c, _ := newCPU(prog...)
	c.Step()
	c.Step()
	assert(t, c.PC == 0x0004+127, "branch +127 should land at PC+127, got %#x", c.PC)

	prog2 := []byte{0xA9, 0x00, 0xF0, 0x80} // BEQ -128 (0x80 as int8 == -128)
	c2, _ := newCPU(prog2...)
	c2.Step()
	c2.Step()
	// 0x0004 - 128 wraps around the 16-bit address space to 0xFF84.
	assert(t, c2.PC == 0xFF84, "branch -128 should land at PC-128 (wrapped), got %#x", c2.PC)
}

func TestBEQNotTakenStillConsumesOperand(t *testing.T) {
	// LDA #$01 clears zero flag, so the BEQ after it should fall through
	c, _ := newCPU(0xA9, 0x01, 0xF0, 0x7F, 0xEA)
	c.Step()
	c.Step() // BEQ not taken: zero flag clear
	assert(t, c.PC == 0x0004, "untaken branch should still advance past its operand, got %#x", c.PC)
}

func TestUnknownOpcodeHalts(t *testing.T) {
	c, _ := newCPU(0x03) // unassigned opcode
	cont, err := c.Step()
	assert(t, !cont, "unknown opcode should stop execution")
	assert(t, err != nil, "unknown opcode should return an error")
	assert(t, c.Halted, "CPU should be halted")
	assert(t, strings.Contains(err.Error(), "03"), "error should mention the opcode: %v", err)
}

func TestHLTStopsExecution(t *testing.T) {
	c, _ := newCPU(0xFF)
	cont, err := c.Step()
	assert(t, !cont, "HLT should stop the run loop")
	assert(t, err == nil, "HLT is not an error")
	assert(t, c.Halted, "HLT should set Halted")
}

func TestBRKConsumesPaddingByte(t *testing.T) {
	// BRK; padding byte; LDA #$11
	c, _ := newCPU(0x00, 0x00, 0xA9, 0x11)
	cont, err := c.Step()
	assert(t, cont, "BRK should not halt")
	assert(t, err == nil, "BRK is not an error")
	assert(t, c.PC == 2, "BRK should consume one padding byte, PC=%#x", c.PC)
	c.Step()
	assert(t, c.A == 0x11, "instruction after BRK's padding should execute normally")
}

func TestDBGWritesDebugLine(t *testing.T) {
	var buf strings.Builder
	mem := memory.New()
	mem.Write(0x0050, 9)
	// DBG $0050
	mem.LoadProgram([]byte{0x02, 0x50, 0x00})
	c := New(mem)
	c.DebugOut = &buf
	_, err := c.Step()
	assert(t, err == nil, "DBG should not error")
	assert(t, strings.Contains(buf.String(), "HELIOS DEBUG: Value 9 @ 0050"), "unexpected debug line: %q", buf.String())
}

func TestSNDWritesAudioRegister(t *testing.T) {
	// SND with payload 0b01_000011 (channel 1, note 3)
	c, mem := newCPU(0x42, 0b01000011)
	c.Step()
	got := mem.Read(memory.AudioStart | 0b01000011)
	assert(t, got == 0b01000011, "SND should write its payload at 0xFC00|payload, got %#x", got)
}

func TestLoopCountdownEndToEnd(t *testing.T) {
	// LDX #$03
	// loop: DEX; BNE loop; HLT
	prog := []byte{0xA2, 0x03, 0xCA, 0xD0, 0xFD, 0xFF}
	c, _ := newCPU(prog...)
	for steps := 0; steps < 10; steps++ {
		cont, err := c.Step()
		assert(t, err == nil, "unexpected error: %v", err)
		if !cont {
			break
		}
	}
	assert(t, c.Halted, "loop should eventually halt")
	assert(t, c.X == 0, "DEX loop should count X down to zero, got %d", c.X)
}
