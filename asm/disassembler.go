package asm

import (
	"fmt"
	"strings"

	"github.com/Ubuntufanboy/Helios/cpu"
)

// Instruction is one decoded line of a disassembly listing.
type Instruction struct {
	Address  uint16
	Mnemonic string
	Operand  string
	Raw      []byte
}

// Disassemble walks code from the start, decoding one instruction at a
// time from the same opcode table Assemble encodes against. Bytes that
// don't correspond to a known opcode are emitted as a raw `.byte`
// pseudo-instruction so a listing never silently drops data.
func Disassemble(code []byte) []Instruction {
	var out []Instruction
	addr := 0
	for addr < len(code) {
		opcode := code[addr]
		entry, ok := cpu.Decode(opcode)
		if !ok {
			out = append(out, Instruction{
				Address:  uint16(addr),
				Mnemonic: ".byte",
				Operand:  fmt.Sprintf("$%02X", opcode),
				Raw:      code[addr : addr+1],
			})
			addr++
			continue
		}

		length := entry.Length()
		end := addr + length
		if end > len(code) {
			end = len(code)
		}
		raw := code[addr:end]

		out = append(out, Instruction{
			Address:  uint16(addr),
			Mnemonic: entry.Mnemonic,
			Operand:  formatOperand(entry, raw, uint16(addr)),
			Raw:      raw,
		})
		addr = end
	}
	return out
}

func formatOperand(entry cpu.OpEntry, raw []byte, addr uint16) string {
	switch entry.Mode {
	case cpu.Implied:
		return ""
	case cpu.Immediate:
		return fmt.Sprintf("#$%02X", byteAt(raw, 1))
	case cpu.ZeroPage:
		return fmt.Sprintf("$%02X", byteAt(raw, 1))
	case cpu.ZeroPageX:
		return fmt.Sprintf("$%02X,X", byteAt(raw, 1))
	case cpu.ZeroPageY:
		return fmt.Sprintf("$%02X,Y", byteAt(raw, 1))
	case cpu.Absolute:
		return fmt.Sprintf("$%04X", word(raw))
	case cpu.AbsoluteX:
		return fmt.Sprintf("$%04X,X", word(raw))
	case cpu.AbsoluteY:
		return fmt.Sprintf("$%04X,Y", word(raw))
	case cpu.IndirectX:
		return fmt.Sprintf("($%02X,X)", byteAt(raw, 1))
	case cpu.IndirectY:
		return fmt.Sprintf("($%02X),Y", byteAt(raw, 1))
	case cpu.Relative:
		if len(raw) < 2 {
			return ""
		}
		offset := int8(raw[1])
		target := uint16(int32(addr) + 2 + int32(offset))
		return fmt.Sprintf("$%04X", target)
	case cpu.Packed:
		return fmt.Sprintf("$%02X", byteAt(raw, 1))
	default:
		return ""
	}
}

func byteAt(raw []byte, i int) byte {
	if i >= len(raw) {
		return 0
	}
	return raw[i]
}

func word(raw []byte) uint16 {
	if len(raw) < 3 {
		return 0
	}
	return uint16(raw[2])<<8 | uint16(raw[1])
}

// Listing renders a full disassembly as text, one instruction per line,
// in the `$ADDR  MNEM OPERAND` shape a debugger or `-d` CLI flag prints.
func Listing(code []byte) string {
	var b strings.Builder
	for _, ins := range Disassemble(code) {
		if ins.Operand == "" {
			fmt.Fprintf(&b, "$%04X  %s\n", ins.Address, ins.Mnemonic)
		} else {
			fmt.Fprintf(&b, "$%04X  %s %s\n", ins.Address, ins.Mnemonic, ins.Operand)
		}
	}
	return b.String()
}
