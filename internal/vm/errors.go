package vm

import (
	"errors"
	"fmt"
)

var (
	ErrRomTooLarge    = errors.New("rom too large")
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrInfiniteLoop is returned when a program jumps to the jump itself,
	// which is how most programs halt.
	ErrInfiniteLoop = errors.New("infinite loop")
)

// OpcodeError describes an instruction that could not complete.
type OpcodeError struct {
	PC     uint16
	Opcode uint16
	Err    error
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("opcode 0x%04x at 0x%04x: %v", e.Opcode, e.PC, e.Err)
}

func (e *OpcodeError) Unwrap() error {
	return e.Err
}
