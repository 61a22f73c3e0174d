package asm

import (
	"fmt"
	"io"

	"github.com/kapitanov/chip8emu/internal/vm"
)

// Disassemble writes one line per instruction word of program, addressed
// from origin. A trailing odd byte is listed as data.
func Disassemble(w io.Writer, program []byte, origin uint16) error {
	for i := 0; i < len(program); i += vm.InstructionSize {
		addr := int(origin) + i

		if i+1 >= len(program) {
			if _, err := fmt.Fprintf(w, "0x%04x  %02x     DB 0x%02x\n", addr, program[i], program[i]); err != nil {
				return err
			}
			break
		}

		opcode := uint16(program[i])<<8 | uint16(program[i+1])
		if _, err := fmt.Fprintf(w, "0x%04x  %02x %02x  %s\n", addr, program[i], program[i+1], vm.Decode(opcode)); err != nil {
			return err
		}
	}

	return nil
}
