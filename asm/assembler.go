// Package asm implements the console's two-pass assembler and
// disassembler. Both read and write the same opcode table package cpu
// exposes, so an addressing mode the CPU can decode is always one the
// assembler can encode, and vice versa.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Ubuntufanboy/Helios/cpu"
)

// Error is a single assembly failure, tied to the source line that caused
// it. An undefined label, found only after every line has been parsed, is
// reported against the line that references it. An Error with Line 0
// prints its message without the "Line n:" prefix.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("Line %d: %s", e.Line, e.Msg)
}

// Program is the result of a successful assembly: the emitted bytes plus
// the label table, kept around so a caller (the debugger, mainly) can map
// addresses back to names.
type Program struct {
	Bytes  []byte
	Labels map[string]uint16
}

var branchMnemonics = map[string]bool{
	"BEQ": true, "BNE": true, "BCS": true, "BCC": true, "BMI": true, "BPL": true,
}

type operandRef struct {
	Mode    cpu.AddressingMode
	Value   uint16
	IsLabel bool
	Label   string
}

type parsedLine struct {
	lineNo  int
	mnemonic string
	operand  operandRef
	entry    cpu.OpEntry
	address  int
}

type fixup struct {
	lineNo       int
	pos          int
	label        string
	width        int
	relativeFrom int
}

// Assemble compiles source into raw bytes. It is a thin wrapper over
// AssembleProgram for callers that don't need the label table.
func Assemble(source string) ([]byte, error) {
	p, err := AssembleProgram(source)
	if err != nil {
		return nil, err
	}
	return p.Bytes, nil
}

// AssembleProgram runs both passes: the first walks every line to build
// the label table and the instruction-length-derived address of each
// instruction, the second emits bytes and queues an unresolved-reference
// fixup for every operand that names a label, resolving the whole queue
// once the final address is known.
func AssembleProgram(source string) (*Program, error) {
	labels := map[string]uint16{}
	var instrs []parsedLine

	addr := 0
	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if idx := strings.Index(line, ":"); idx >= 0 {
			label := strings.TrimSpace(line[:idx])
			if isValidLabel(label) {
				if _, exists := labels[label]; exists {
					return nil, &Error{lineNo, "duplicate label " + label}
				}
				labels[label] = uint16(addr)
				line = strings.TrimSpace(line[idx+1:])
				if line == "" {
					continue
				}
			}
		}

		mnemonic, operandText := splitInstruction(line)
		mnemonic = strings.ToUpper(mnemonic)
		if !cpu.HasMnemonic(mnemonic) {
			return nil, &Error{lineNo, "unknown mnemonic " + mnemonic}
		}

		ref, err := parseOperand(mnemonic, operandText, lineNo)
		if err != nil {
			return nil, err
		}

		entry, ok := cpu.Encode(mnemonic, ref.Mode)
		if !ok {
			return nil, &Error{lineNo, fmt.Sprintf("illegal addressing mode for %s", mnemonic)}
		}

		instrs = append(instrs, parsedLine{
			lineNo:   lineNo,
			mnemonic: mnemonic,
			operand:  ref,
			entry:    entry,
			address:  addr,
		})
		addr += entry.Length()
	}

	buf := make([]byte, 0, addr)
	var fixups []fixup

	for _, ins := range instrs {
		buf = append(buf, ins.entry.Opcode)
		pos := len(buf)

		switch ins.entry.Mode {
		case cpu.Implied:
			// no operand bytes

		case cpu.Immediate, cpu.ZeroPage, cpu.ZeroPageX, cpu.ZeroPageY,
			cpu.IndirectX, cpu.IndirectY, cpu.Packed:
			if ins.operand.IsLabel {
				return nil, &Error{ins.lineNo, "label operand not valid here"}
			}
			buf = append(buf, byte(ins.operand.Value))

		case cpu.Relative:
			if ins.operand.IsLabel {
				buf = append(buf, 0x00)
				fixups = append(fixups, fixup{
					lineNo:       ins.lineNo,
					pos:          pos,
					label:        ins.operand.Label,
					width:        1,
					relativeFrom: ins.address + ins.entry.Length(),
				})
			} else {
				buf = append(buf, byte(int8(ins.operand.Value)))
			}

		case cpu.Absolute, cpu.AbsoluteX, cpu.AbsoluteY:
			if ins.operand.IsLabel {
				buf = append(buf, 0x00, 0x00)
				fixups = append(fixups, fixup{
					lineNo: ins.lineNo,
					pos:    pos,
					label:  ins.operand.Label,
					width:  2,
				})
			} else {
				buf = append(buf, byte(ins.operand.Value), byte(ins.operand.Value>>8))
			}
		}
	}

	for _, fx := range fixups {
		target, ok := labels[fx.label]
		if !ok {
			return nil, &Error{fx.lineNo, "undefined label " + fx.label}
		}
		if fx.width == 2 {
			buf[fx.pos] = byte(target)
			buf[fx.pos+1] = byte(target >> 8)
			continue
		}
		disp := int32(target) - int32(fx.relativeFrom)
		if disp < -128 || disp > 127 {
			return nil, &Error{fx.lineNo, fmt.Sprintf("branch target %s out of range (%d bytes)", fx.label, disp)}
		}
		buf[fx.pos] = byte(int8(disp))
	}

	return &Program{Bytes: buf, Labels: labels}, nil
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		return line[:idx]
	}
	return line
}

func splitInstruction(line string) (mnemonic, operand string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], "")
}

func isValidLabel(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func isLabelToken(s string) bool {
	return isValidLabel(s)
}

// parseNumeric parses a `$hex`, `%binary`, `'c'` character, or decimal
// literal. wide reports whether the literal's own textual form demands a
// two-byte (absolute) operand: more than two hex digits, more than eight
// binary digits, or a decimal value above 255. This textual rule, not the
// numeric value, is what lets `$00` and `$0000` assemble to different
// addressing modes even though they name the same address.
func parseNumeric(tok string) (value uint16, wide bool, err error) {
	tok = strings.TrimSpace(tok)
	switch {
	case strings.HasPrefix(tok, "$"):
		hex := tok[1:]
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, false, fmt.Errorf("invalid hex literal %q", tok)
		}
		return uint16(v), len(hex) > 2, nil

	case strings.HasPrefix(tok, "%"):
		bin := tok[1:]
		v, err := strconv.ParseUint(bin, 2, 32)
		if err != nil {
			return 0, false, fmt.Errorf("invalid binary literal %q", tok)
		}
		return uint16(v), len(bin) > 8, nil

	case len(tok) == 3 && tok[0] == '\'' && tok[2] == '\'':
		return uint16(tok[1]), false, nil

	case strings.HasPrefix(tok, "-"):
		v, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return 0, false, fmt.Errorf("invalid decimal literal %q", tok)
		}
		return uint16(int8(v)), false, nil

	default:
		v, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return 0, false, fmt.Errorf("invalid decimal literal %q", tok)
		}
		return uint16(v), v > 255, nil
	}
}

func parseOperand(mnemonic, raw string, lineNo int) (operandRef, error) {
	op := strings.TrimSpace(raw)
	isBranch := branchMnemonics[mnemonic]

	if op == "" {
		return operandRef{Mode: cpu.Implied}, nil
	}

	if mnemonic == "SND" {
		v, _, err := parseNumeric(op)
		if err != nil {
			return operandRef{}, &Error{lineNo, err.Error()}
		}
		return operandRef{Mode: cpu.Packed, Value: v & 0xFF}, nil
	}

	if strings.HasPrefix(op, "#") {
		v, _, err := parseNumeric(op[1:])
		if err != nil {
			return operandRef{}, &Error{lineNo, err.Error()}
		}
		return operandRef{Mode: cpu.Immediate, Value: v & 0xFF}, nil
	}

	if strings.HasPrefix(op, "(") {
		upper := strings.ToUpper(op)
		switch {
		case strings.HasSuffix(upper, ",X)"):
			inner := op[1 : len(op)-3]
			v, _, err := parseNumeric(inner)
			if err != nil {
				return operandRef{}, &Error{lineNo, err.Error()}
			}
			return operandRef{Mode: cpu.IndirectX, Value: v & 0xFF}, nil
		case strings.HasSuffix(upper, "),Y"):
			inner := op[1 : len(op)-3]
			v, _, err := parseNumeric(inner)
			if err != nil {
				return operandRef{}, &Error{lineNo, err.Error()}
			}
			return operandRef{Mode: cpu.IndirectY, Value: v & 0xFF}, nil
		default:
			return operandRef{}, &Error{lineNo, "malformed indirect operand " + op}
		}
	}

	base := op
	index := ""
	upper := strings.ToUpper(op)
	switch {
	case strings.HasSuffix(upper, ",X"):
		index = "X"
		base = op[:len(op)-2]
	case strings.HasSuffix(upper, ",Y"):
		index = "Y"
		base = op[:len(op)-2]
	}
	base = strings.TrimSpace(base)

	if isLabelToken(base) {
		switch {
		case isBranch:
			return operandRef{Mode: cpu.Relative, IsLabel: true, Label: base}, nil
		case mnemonic == "DBG":
			return operandRef{Mode: cpu.Absolute, IsLabel: true, Label: base}, nil
		case index != "":
			return operandRef{}, &Error{lineNo, "indexed addressing with a label operand is not supported"}
		default:
			return operandRef{Mode: cpu.Absolute, IsLabel: true, Label: base}, nil
		}
	}

	v, wide, err := parseNumeric(base)
	if err != nil {
		return operandRef{}, &Error{lineNo, err.Error()}
	}
	if mnemonic == "DBG" {
		wide = true
	}
	if isBranch {
		return operandRef{Mode: cpu.Relative, Value: v}, nil
	}

	switch index {
	case "X":
		if wide {
			return operandRef{Mode: cpu.AbsoluteX, Value: v}, nil
		}
		return operandRef{Mode: cpu.ZeroPageX, Value: v}, nil
	case "Y":
		if wide {
			return operandRef{Mode: cpu.AbsoluteY, Value: v}, nil
		}
		return operandRef{Mode: cpu.ZeroPageY, Value: v}, nil
	default:
		if wide {
			return operandRef{Mode: cpu.Absolute, Value: v}, nil
		}
		return operandRef{Mode: cpu.ZeroPage, Value: v}, nil
	}
}
