package cpu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Ubuntufanboy/Helios/memory"
)

// Status flag bit layout, matching the original console's status register.
const (
	FlagZero     byte = 0b0001
	FlagNegative byte = 0b0010
	FlagCarry    byte = 0b0100
	FlagOverflow byte = 0b1000
)

// ErrUnknownOpcode is wrapped into the error Step returns when it fetches a
// byte with no table entry.
var ErrUnknownOpcode = errors.New("Unknown opcode")

// CPU is the console's register file and execution engine. It holds a
// pointer to the shared memory rather than owning it; many goroutines
// (devices, a presenter) may read that memory concurrently while the CPU
// steps.
type CPU struct {
	A, X, Y byte
	SP      byte
	PC      uint16
	Status  byte

	Cycles  uint64
	Halted  bool
	LastError error

	mem *memory.Memory

	// DebugOut receives the line DBG writes. Defaults to os.Stdout; tests
	// substitute a buffer.
	DebugOut io.Writer
}

// New returns a CPU wired to mem, reset to its power-on state.
func New(mem *memory.Memory) *CPU {
	c := &CPU{mem: mem, DebugOut: os.Stdout}
	c.Reset()
	return c
}

// Reset zeroes every register and sets the stack pointer and program
// counter to their power-on values. It does not touch memory.
func (c *CPU) Reset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.Status = 0
	c.SP = 0xFF
	c.PC = 0
	c.Cycles = 0
	c.Halted = false
	c.LastError = nil
}

func (c *CPU) setFlag(mask byte, on bool) {
	if on {
		c.Status |= mask
	} else {
		c.Status &^= mask
	}
}

func (c *CPU) flag(mask byte) bool { return c.Status&mask != 0 }

func (c *CPU) setZN(v byte) {
	c.setFlag(FlagZero, v == 0)
	c.setFlag(FlagNegative, v&0x80 != 0)
}

func (c *CPU) fetch() byte {
	v := c.mem.Read(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch()
	hi := c.fetch()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) push(v byte) {
	c.mem.Write(0x0100|uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() byte {
	c.SP++
	return c.mem.Read(0x0100 | uint16(c.SP))
}

// operandAddress resolves every addressing mode that names a memory
// location. It must not be called with Implied, Immediate, Relative, or
// Packed.
func (c *CPU) operandAddress(mode AddressingMode) uint16 {
	switch mode {
	case ZeroPage:
		return uint16(c.fetch())
	case ZeroPageX:
		return uint16(c.fetch() + c.X)
	case ZeroPageY:
		return uint16(c.fetch() + c.Y)
	case Absolute:
		return c.fetch16()
	case AbsoluteX:
		return c.fetch16() + uint16(c.X)
	case AbsoluteY:
		return c.fetch16() + uint16(c.Y)
	case IndirectX:
		ptr := c.fetch() + c.X
		lo := c.mem.Read(uint16(ptr))
		hi := c.mem.Read(uint16(ptr + 1))
		return uint16(hi)<<8 | uint16(lo)
	case IndirectY:
		ptr := c.fetch()
		lo := c.mem.Read(uint16(ptr))
		hi := c.mem.Read(uint16(ptr + 1))
		return (uint16(hi)<<8 | uint16(lo)) + uint16(c.Y)
	default:
		panic("cpu: operandAddress called with non-memory addressing mode")
	}
}

// operandValue reads the operand of a read-style instruction, handling
// Immediate separately from the memory-addressed modes.
func (c *CPU) operandValue(mode AddressingMode) byte {
	if mode == Immediate {
		return c.fetch()
	}
	return c.mem.Read(c.operandAddress(mode))
}

// Step executes exactly one instruction. It returns false once the CPU has
// halted (via HLT or an unknown opcode), true
// otherwise. The boolean is the loop-continuation signal a caller like
// console.Machine polls.
func (c *CPU) Step() (bool, error) {
	if c.Halted {
		return false, nil
	}

	opcodeAddr := c.PC
	opcode := c.fetch()
	entry, ok := Decode(opcode)
	if !ok {
		c.Halted = true
		err := fmt.Errorf("%w: %02X at address %04X", ErrUnknownOpcode, opcode, opcodeAddr)
		c.LastError = err
		return false, err
	}

	c.execute(entry)
	c.Cycles++
	return !c.Halted, nil
}

func (c *CPU) execute(e OpEntry) {
	switch e.Mnemonic {
	case "LDA":
		c.A = c.operandValue(e.Mode)
		c.setZN(c.A)
	case "LDX":
		c.X = c.operandValue(e.Mode)
		c.setZN(c.X)
	case "LDY":
		c.Y = c.operandValue(e.Mode)
		c.setZN(c.Y)

	case "STA":
		c.mem.Write(c.operandAddress(e.Mode), c.A)
	case "STX":
		c.mem.Write(c.operandAddress(e.Mode), c.X)
	case "STY":
		c.mem.Write(c.operandAddress(e.Mode), c.Y)

	case "ADC":
		c.adc(c.operandValue(e.Mode))
	case "SBC":
		c.adc(^c.operandValue(e.Mode))
	case "AND":
		c.A &= c.operandValue(e.Mode)
		c.setZN(c.A)
	case "ORA":
		c.A |= c.operandValue(e.Mode)
		c.setZN(c.A)
	case "EOR":
		c.A ^= c.operandValue(e.Mode)
		c.setZN(c.A)

	case "CMP":
		c.compare(c.A, c.operandValue(e.Mode))
	case "CPX":
		c.compare(c.X, c.operandValue(e.Mode))
	case "CPY":
		c.compare(c.Y, c.operandValue(e.Mode))

	case "INC":
		addr := c.operandAddress(e.Mode)
		v := c.mem.Read(addr) + 1
		c.mem.Write(addr, v)
		c.setZN(v)
	case "DEC":
		addr := c.operandAddress(e.Mode)
		v := c.mem.Read(addr) - 1
		c.mem.Write(addr, v)
		c.setZN(v)

	case "TAX":
		c.X = c.A
		c.setZN(c.X)
	case "TAY":
		c.Y = c.A
		c.setZN(c.Y)
	case "TXA":
		c.A = c.X
		c.setZN(c.A)
	case "TYA":
		c.A = c.Y
		c.setZN(c.A)
	case "INX":
		c.X++
		c.setZN(c.X)
	case "INY":
		c.Y++
		c.setZN(c.Y)
	case "DEX":
		c.X--
		c.setZN(c.X)
	case "DEY":
		c.Y--
		c.setZN(c.Y)

	case "JMP":
		c.PC = c.operandAddress(e.Mode)
	case "JSR":
		target := c.operandAddress(e.Mode)
		ret := c.PC - 1
		c.push(byte(ret >> 8))
		c.push(byte(ret))
		c.PC = target
	case "RTS":
		lo := c.pop()
		hi := c.pop()
		c.PC = (uint16(hi)<<8 | uint16(lo)) + 1

	case "BEQ":
		c.branch(c.flag(FlagZero))
	case "BNE":
		c.branch(!c.flag(FlagZero))
	case "BCS":
		c.branch(c.flag(FlagCarry))
	case "BCC":
		c.branch(!c.flag(FlagCarry))
	case "BMI":
		c.branch(c.flag(FlagNegative))
	case "BPL":
		c.branch(!c.flag(FlagNegative))

	case "NOP":
		// nothing

	case "BRK":
		// Consumes one padding byte and continues; no interrupt vector.
		c.fetch()

	case "HLT":
		c.Halted = true

	case "DBG":
		addr := c.fetch16()
		v := c.mem.Read(addr)
		fmt.Fprintf(c.DebugOut, "HELIOS DEBUG: Value %d @ %04X\n", v, addr)

	case "SND":
		payload := c.fetch()
		c.mem.Write(memory.AudioStart|uint16(payload), payload)

	default:
		panic("cpu: opcode table entry with no execute case: " + e.Mnemonic)
	}
}

func (c *CPU) adc(value byte) {
	carryIn := uint16(0)
	if c.flag(FlagCarry) {
		carryIn = 1
	}
	sum := uint16(c.A) + uint16(value) + carryIn
	result := byte(sum)

	overflow := (c.A^result)&(value^result)&0x80 != 0

	c.setFlag(FlagCarry, sum > 0xFF)
	c.setFlag(FlagOverflow, overflow)
	c.A = result
	c.setZN(c.A)
}

func (c *CPU) compare(reg, value byte) {
	c.setFlag(FlagCarry, reg >= value)
	c.setZN(reg - value)
}

func (c *CPU) branch(taken bool) {
	offset := int8(c.fetch())
	if taken {
		c.PC = uint16(int32(c.PC) + int32(offset))
	}
}
