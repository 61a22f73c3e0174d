// Package asm converts between CHIP-8 ROM images and their textual forms:
// mnemonic source, hex listings, disassembly and memory dumps.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrUnknownMnemonic = errors.New("unknown instruction")
	ErrOperands        = errors.New("invalid operands")
)

// Error reports the source line an assembly failure happened on.
type Error struct {
	Line int
	Text string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type operands int

const (
	noOperands operands = iota
	addrOperand
	regByteOperands
	regRegOperands
	regOperand
	drawOperands
)

type mnemonic struct {
	base     uint16
	operands operands
}

var mnemonics = map[string]mnemonic{
	"CLR":  {0x00E0, noOperands},
	"RET":  {0x00EE, noOperands},
	"JMP":  {0x1000, addrOperand},
	"CAL":  {0x2000, addrOperand},
	"SEB":  {0x3000, regByteOperands},
	"SNE":  {0x4000, regByteOperands},
	"SEV":  {0x5000, regRegOperands},
	"LD":   {0x6000, regByteOperands},
	"ADD":  {0x7000, regByteOperands},
	"SET":  {0x8000, regRegOperands},
	"OR":   {0x8001, regRegOperands},
	"AND":  {0x8002, regRegOperands},
	"XOR":  {0x8003, regRegOperands},
	"ADDV": {0x8004, regRegOperands},
	"SUB":  {0x8005, regRegOperands},
	"SHR":  {0x8006, regOperand},
	"SUBN": {0x8007, regRegOperands},
	"SHL":  {0x800E, regOperand},
	"SNEV": {0x9000, regRegOperands},
	"LDI":  {0xA000, addrOperand},
	"JMPV": {0xB000, addrOperand},
	"RAN":  {0xC000, regByteOperands},
	"DIS":  {0xD000, drawOperands},
	"SKP":  {0xE09E, regOperand},
	"SKNP": {0xE0A1, regOperand},
	"GDT":  {0xF007, regOperand},
	"LDK":  {0xF00A, regOperand},
	"LDT":  {0xF015, regOperand},
	"LDS":  {0xF018, regOperand},
	"ADDI": {0xF01E, regOperand},
	"LDF":  {0xF029, regOperand},
	"BCD":  {0xF033, regOperand},
	"RTM":  {0xF055, regOperand}, // registers to memory
	"MTR":  {0xF065, regOperand}, // memory to registers
}

// Assemble translates mnemonic source into a big-endian ROM image. Blank
// lines and text after ';' are ignored.
func Assemble(r io.Reader) ([]byte, error) {
	var rom []byte

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()

		opcode, ok, err := AssembleLine(line)
		if err != nil {
			return nil, &Error{Line: n, Text: strings.TrimSpace(line), Err: err}
		}
		if !ok {
			continue
		}

		rom = append(rom, byte(opcode>>8), byte(opcode))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read source: %w", err)
	}

	return rom, nil
}

// AssembleLine encodes a single source line. ok is false when the line holds
// no instruction.
func AssembleLine(line string) (opcode uint16, ok bool, err error) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}

	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	if len(fields) == 0 {
		return 0, false, nil
	}

	m, found := mnemonics[strings.ToUpper(fields[0])]
	if !found {
		return 0, false, fmt.Errorf("%w %q", ErrUnknownMnemonic, fields[0])
	}

	opcode, err = m.encode(fields[1:])
	if err != nil {
		return 0, false, err
	}
	return opcode, true, nil
}

func (m mnemonic) encode(args []string) (uint16, error) {
	switch m.operands {
	case noOperands:
		if err := wantArgs(args, 0); err != nil {
			return 0, err
		}
		return m.base, nil

	case addrOperand:
		if err := wantArgs(args, 1); err != nil {
			return 0, err
		}
		addr, err := parseNumber(args[0], 0x0FFF)
		if err != nil {
			return 0, err
		}
		return m.base | addr, nil

	case regByteOperands:
		if err := wantArgs(args, 2); err != nil {
			return 0, err
		}
		x, err := parseRegister(args[0])
		if err != nil {
			return 0, err
		}
		nn, err := parseNumber(args[1], 0xFF)
		if err != nil {
			return 0, err
		}
		return m.base | x<<8 | nn, nil

	case regRegOperands:
		if err := wantArgs(args, 2); err != nil {
			return 0, err
		}
		x, err := parseRegister(args[0])
		if err != nil {
			return 0, err
		}
		y, err := parseRegister(args[1])
		if err != nil {
			return 0, err
		}
		return m.base | x<<8 | y<<4, nil

	case regOperand:
		if err := wantArgs(args, 1); err != nil {
			return 0, err
		}
		x, err := parseRegister(args[0])
		if err != nil {
			return 0, err
		}
		return m.base | x<<8, nil

	case drawOperands:
		return m.encodeDraw(args)
	}

	return 0, fmt.Errorf("unsupported operand kind %d", m.operands)
}

// encodeDraw accepts both "DIS vX NN", where NN packs Y and the height, and
// "DIS vX vY N".
func (m mnemonic) encodeDraw(args []string) (uint16, error) {
	if len(args) == 2 {
		return mnemonic{m.base, regByteOperands}.encode(args)
	}

	if err := wantArgs(args, 3); err != nil {
		return 0, err
	}
	x, err := parseRegister(args[0])
	if err != nil {
		return 0, err
	}
	y, err := parseRegister(args[1])
	if err != nil {
		return 0, err
	}
	n, err := parseNumber(args[2], 0xF)
	if err != nil {
		return 0, err
	}
	return m.base | x<<8 | y<<4 | n, nil
}

func wantArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: want %d, have %d", ErrOperands, n, len(args))
	}
	return nil
}

// parseRegister decodes v0-vF (case-insensitive).
func parseRegister(s string) (uint16, error) {
	if len(s) != 2 || (s[0] != 'v' && s[0] != 'V') {
		return 0, fmt.Errorf("%w: %q is not a register", ErrOperands, s)
	}

	v, err := strconv.ParseUint(s[1:], 16, 4)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a register", ErrOperands, s)
	}
	return uint16(v), nil
}

// parseNumber decodes a hexadecimal value, with or without a 0x prefix.
func parseNumber(s string, limit uint16) (uint16, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	v, err := strconv.ParseUint(digits, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a hex number", ErrOperands, s)
	}
	if v > uint64(limit) {
		return 0, fmt.Errorf("%w: %q exceeds 0x%x", ErrOperands, s, limit)
	}
	return uint16(v), nil
}
