package vm

import (
	"context"
	"fmt"
	"log/slog"
)

// Op identifies one of the 35 instructions of the base instruction set.
type Op uint8

const (
	OpUnknown Op = iota
	OpSYS        // 0n00
	OpCLS        // 00E0
	OpRET        // 00EE
	OpJP         // 1nnn
	OpCALL       // 2nnn
	OpSEByte     // 3xnn
	OpSNEByte    // 4xnn
	OpSEReg      // 5xy_
	OpLDByte     // 6xnn
	OpADDByte    // 7xnn
	OpLDReg      // 8xy0
	OpOR         // 8xy1
	OpAND        // 8xy2
	OpXOR        // 8xy3
	OpADDReg     // 8xy4
	OpSUB        // 8xy5
	OpSHR        // 8xy6
	OpSUBN       // 8xy7
	OpSHL        // 8xyE
	OpSNEReg     // 9xy_
	OpLDI        // Annn
	OpJPV0       // Bnnn
	OpRND        // Cxnn
	OpDRW        // Dxyn
	OpSKP        // Ex9E
	OpSKNP       // ExA1
	OpLDVxDT     // Fx07
	OpLDVxK      // Fx0A
	OpLDDTVx     // Fx15
	OpLDSTVx     // Fx18
	OpADDI       // Fx1E
	OpLDF        // Fx29
	OpLDB        // Fx33
	OpStore      // Fx55
	OpLoad       // Fx65

	opCount
)

func (op Op) drawsScreen() bool {
	return op == OpCLS || op == OpDRW
}

// Instruction is a decoded opcode word. All fields are filled in regardless
// of which ones the operation uses.
type Instruction struct {
	Op     Op
	Opcode uint16

	X   uint8  // bits 8-11
	Y   uint8  // bits 4-7
	N   uint8  // bits 0-3
	NN  uint8  // bits 0-7
	NNN uint16 // bits 0-11
}

// String renders the instruction in conventional assembler syntax.
func (in Instruction) String() string {
	return instructions[in.Op].Name(in)
}

// Decode splits an opcode word into its fields and identifies the operation.
func Decode(opcode uint16) Instruction {
	return Instruction{
		Op:     decodeOp(opcode),
		Opcode: opcode,
		X:      uint8((opcode & 0x0F00) >> 8),
		Y:      uint8((opcode & 0x00F0) >> 4),
		N:      uint8(opcode & 0x000F),
		NN:     uint8(opcode & 0x00FF),
		NNN:    opcode & 0x0FFF,
	}
}

func decodeOp(opcode uint16) Op {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode & 0x00FF {
		case 0x00E0:
			// 00E0 - Clear screen
			return OpCLS

		case 0x00EE:
			// 00EE - Return from subroutine
			return OpRET

		case 0x0000:
			// 0n00 - Machine code routine, ignored
			return OpSYS
		}

	case 0x1000:
		// 1NNN - Jumps to address NNN
		return OpJP

	case 0x2000:
		// 2NNN - Calls subroutine at NNN
		return OpCALL

	case 0x3000:
		// 3XNN - Skips the next instruction if VX equals NN
		return OpSEByte

	case 0x4000:
		// 4XNN - Skips the next instruction if VX does not equal NN
		return OpSNEByte

	case 0x5000:
		// 5XY_ - Skips the next instruction if VX equals VY
		return OpSEReg

	case 0x6000:
		// 6XNN - Sets VX to NN
		return OpLDByte

	case 0x7000:
		// 7XNN - Adds NN to VX, no carry
		return OpADDByte

	case 0x8000:
		switch opcode & 0x000F {
		case 0x0000:
			// 8XY0 - Sets VX to the value of VY
			return OpLDReg

		case 0x0001:
			// 8XY1 - Sets VX to (VX OR VY)
			return OpOR

		case 0x0002:
			// 8XY2 - Sets VX to (VX AND VY)
			return OpAND

		case 0x0003:
			// 8XY3 - Sets VX to (VX XOR VY)
			return OpXOR

		case 0x0004:
			// 8XY4 - Adds VY to VX. VF is set to 1 when there's a carry
			return OpADDReg

		case 0x0005:
			// 8XY5 - VY is subtracted from VX. VF is set to 1 when there's no borrow
			return OpSUB

		case 0x0006:
			// 8XY6 - Shifts VX right by one. VF gets the bit shifted out
			return OpSHR

		case 0x0007:
			// 8XY7 - Sets VX to VY minus VX. VF is set to 1 when there's no borrow
			return OpSUBN

		case 0x000E:
			// 8XYE - Shifts VX left by one. VF gets the bit shifted out
			return OpSHL
		}

	case 0x9000:
		// 9XY_ - Skips the next instruction if VX doesn't equal VY
		return OpSNEReg

	case 0xA000:
		// ANNN - Sets I to the address NNN
		return OpLDI

	case 0xB000:
		// BNNN - Jumps to the address NNN plus V0
		return OpJPV0

	case 0xC000:
		// CXNN - Sets VX to a random number, masked by NN
		return OpRND

	case 0xD000:
		// DXYN - Draws an 8xN sprite from memory at I to (VX, VY)
		return OpDRW

	case 0xE000:
		switch opcode & 0x00FF {
		case 0x009E:
			// EX9E - Skips the next instruction if the key stored in VX is pressed
			return OpSKP

		case 0x00A1:
			// EXA1 - Skips the next instruction if the key stored in VX isn't pressed
			return OpSKNP
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			// FX07 - Sets VX to the value of the delay timer
			return OpLDVxDT

		case 0x000A:
			// FX0A - A key press is awaited, and then stored in VX
			return OpLDVxK

		case 0x0015:
			// FX15 - Sets the delay timer to VX
			return OpLDDTVx

		case 0x0018:
			// FX18 - Sets the sound timer to VX
			return OpLDSTVx

		case 0x001E:
			// FX1E - Adds VX to I, VF is set when I leaves 0x000-0xFFF
			return OpADDI

		case 0x0029:
			// FX29 - Points I at the font glyph for the digit in VX
			return OpLDF

		case 0x0033:
			// FX33 - Stores the BCD representation of VX at I, I+1, I+2
			return OpLDB

		case 0x0055:
			// FX55 - Stores V0 to VX in memory starting at address I
			return OpStore

		case 0x0065:
			// FX65 - Reads memory starting at address I into V0...VX
			return OpLoad
		}
	}

	return OpUnknown
}

func (vm *VM) executeOpcode(opcode uint16) (Instruction, error) {
	in := Decode(opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", vm.pc),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", in.String(),
			"i", fmt.Sprintf("0x%04x", vm.index),
		)
	}

	return in, instructions[in.Op].Execute(vm, in)
}

type instruction struct {
	Name    func(in Instruction) string
	Execute func(vm *VM, in Instruction) error
}

var instructions = [opCount]instruction{
	OpUnknown: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("unknown 0x%04x", in.Opcode)
		},
		Execute: func(vm *VM, in Instruction) error {
			return ErrUnknownOpcode
		},
	},

	OpSYS: {
		Name: nameAddr("SYS"),
		Execute: func(vm *VM, in Instruction) error {
			vm.pc += InstructionSize
			return nil
		},
	},

	OpCLS: {
		Name: nameOnly("CLS"),
		Execute: func(vm *VM, in Instruction) error {
			vm.gfx = [ScreenWidth * ScreenHeight]uint8{}
			vm.drawFlag = true
			vm.pc += InstructionSize
			return nil
		},
	},

	OpRET: {
		Name: nameOnly("RET"),
		Execute: func(vm *VM, in Instruction) error {
			if vm.sp == 0 {
				return ErrStackUnderflow
			}
			vm.sp--
			vm.pc = vm.stack[vm.sp]
			vm.pc += InstructionSize
			return nil
		},
	},

	OpJP: {
		Name: nameAddr("JP"),
		Execute: func(vm *VM, in Instruction) error {
			if in.NNN == vm.pc {
				return ErrInfiniteLoop
			}
			vm.pc = in.NNN
			return nil
		},
	},

	OpCALL: {
		Name: nameAddr("CALL"),
		Execute: func(vm *VM, in Instruction) error {
			if int(vm.sp) >= StackSize {
				return ErrStackOverflow
			}
			vm.stack[vm.sp] = vm.pc
			vm.sp++
			vm.pc = in.NNN
			return nil
		},
	},

	OpSEByte: {
		Name: nameRegByte("SE"),
		Execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.registers[in.X] == in.NN)
			return nil
		},
	},

	OpSNEByte: {
		Name: nameRegByte("SNE"),
		Execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.registers[in.X] != in.NN)
			return nil
		},
	},

	OpSEReg: {
		Name: nameRegReg("SE"),
		Execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.registers[in.X] == vm.registers[in.Y])
			return nil
		},
	},

	OpLDByte: {
		Name: nameRegByte("LD"),
		Execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] = in.NN
			vm.pc += InstructionSize
			return nil
		},
	},

	OpADDByte: {
		Name: nameRegByte("ADD"),
		Execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] += in.NN
			vm.pc += InstructionSize
			return nil
		},
	},

	OpLDReg: {
		Name: nameRegReg("LD"),
		Execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] = vm.registers[in.Y]
			vm.pc += InstructionSize
			return nil
		},
	},

	OpOR: {
		Name: nameRegReg("OR"),
		Execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] |= vm.registers[in.Y]
			vm.pc += InstructionSize
			return nil
		},
	},

	OpAND: {
		Name: nameRegReg("AND"),
		Execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] &= vm.registers[in.Y]
			vm.pc += InstructionSize
			return nil
		},
	},

	OpXOR: {
		Name: nameRegReg("XOR"),
		Execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] ^= vm.registers[in.Y]
			vm.pc += InstructionSize
			return nil
		},
	},

	OpADDReg: {
		Name: nameRegReg("ADD"),
		Execute: func(vm *VM, in Instruction) error {
			sum := uint16(vm.registers[in.X]) + uint16(vm.registers[in.Y])

			vm.registers[in.X] = uint8(sum)
			vm.setFlag(sum > 0xFF)
			vm.pc += InstructionSize
			return nil
		},
	},

	OpSUB: {
		Name: nameRegReg("SUB"),
		Execute: func(vm *VM, in Instruction) error {
			x := vm.registers[in.X]
			y := vm.registers[in.Y]

			vm.registers[in.X] = x - y
			vm.setFlag(x >= y)
			vm.pc += InstructionSize
			return nil
		},
	},

	OpSHR: {
		Name: nameReg("SHR"),
		Execute: func(vm *VM, in Instruction) error {
			x := vm.registers[in.X]

			vm.registers[in.X] = x >> 1
			vm.registers[flagRegister] = x & 0x1
			vm.pc += InstructionSize
			return nil
		},
	},

	OpSUBN: {
		Name: nameRegReg("SUBN"),
		Execute: func(vm *VM, in Instruction) error {
			x := vm.registers[in.X]
			y := vm.registers[in.Y]

			vm.registers[in.X] = y - x
			vm.setFlag(y >= x)
			vm.pc += InstructionSize
			return nil
		},
	},

	OpSHL: {
		Name: nameReg("SHL"),
		Execute: func(vm *VM, in Instruction) error {
			x := vm.registers[in.X]

			vm.registers[in.X] = x << 1
			vm.registers[flagRegister] = x >> 7
			vm.pc += InstructionSize
			return nil
		},
	},

	OpSNEReg: {
		Name: nameRegReg("SNE"),
		Execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.registers[in.X] != vm.registers[in.Y])
			return nil
		},
	},

	OpLDI: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD I, 0x%03x", in.NNN)
		},
		Execute: func(vm *VM, in Instruction) error {
			vm.index = in.NNN
			vm.pc += InstructionSize
			return nil
		},
	},

	OpJPV0: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("JP V0, 0x%03x", in.NNN)
		},
		Execute: func(vm *VM, in Instruction) error {
			vm.pc = in.NNN + uint16(vm.registers[0])
			return nil
		},
	},

	OpRND: {
		Name: nameRegByte("RND"),
		Execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] = uint8(vm.rng.IntN(256)) & in.NN
			vm.pc += InstructionSize
			return nil
		},
	},

	OpDRW: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("DRW V%X, V%X, %d", in.X, in.Y, in.N)
		},
		Execute: func(vm *VM, in Instruction) error {
			vm.drawSprite(vm.registers[in.X], vm.registers[in.Y], in.N)
			vm.pc += InstructionSize
			return nil
		},
	},

	OpSKP: {
		Name: nameReg("SKP"),
		Execute: func(vm *VM, in Instruction) error {
			vm.skipIf(vm.keypad[vm.registers[in.X]&0x0F])
			return nil
		},
	},

	OpSKNP: {
		Name: nameReg("SKNP"),
		Execute: func(vm *VM, in Instruction) error {
			vm.skipIf(!vm.keypad[vm.registers[in.X]&0x0F])
			return nil
		},
	},

	OpLDVxDT: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD V%X, DT", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			vm.registers[in.X] = vm.delayTimer
			vm.pc += InstructionSize
			return nil
		},
	},

	OpLDVxK: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD V%X, K", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			for i, pressed := range vm.keypad {
				if pressed {
					vm.registers[in.X] = uint8(i)
					vm.pc += InstructionSize
					return nil
				}
			}

			// No key yet: PC stays put and the next step runs this again.
			return nil
		},
	},

	OpLDDTVx: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD DT, V%X", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			vm.delayTimer = vm.registers[in.X]
			vm.pc += InstructionSize
			return nil
		},
	},

	OpLDSTVx: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD ST, V%X", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			vm.soundTimer = vm.registers[in.X]
			vm.pc += InstructionSize
			return nil
		},
	},

	OpADDI: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("ADD I, V%X", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			sum := vm.index + uint16(vm.registers[in.X])

			vm.index = sum
			vm.setFlag(sum > 0x0FFF)
			vm.pc += InstructionSize
			return nil
		},
	},

	OpLDF: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD F, V%X", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			vm.index = uint16(vm.registers[in.X]) * 5
			vm.pc += InstructionSize
			return nil
		},
	},

	OpLDB: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD B, V%X", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			x := vm.registers[in.X]

			vm.writeMemory(vm.index, x/100)
			vm.writeMemory(vm.index+1, (x/10)%10)
			vm.writeMemory(vm.index+2, x%10)
			vm.pc += InstructionSize
			return nil
		},
	},

	OpStore: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD [I], V%X", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			n := uint16(in.X)

			for i := uint16(0); i <= n; i++ {
				vm.writeMemory(vm.index+i, vm.registers[i])
			}

			// As on the COSMAC VIP, I ends up at I + X + 1.
			vm.index += n + 1
			vm.pc += InstructionSize
			return nil
		},
	},

	OpLoad: {
		Name: func(in Instruction) string {
			return fmt.Sprintf("LD V%X, [I]", in.X)
		},
		Execute: func(vm *VM, in Instruction) error {
			n := uint16(in.X)

			for i := uint16(0); i <= n; i++ {
				vm.registers[i] = vm.readMemory(vm.index + i)
			}

			vm.index += n + 1
			vm.pc += InstructionSize
			return nil
		},
	},
}

func nameOnly(mnemonic string) func(Instruction) string {
	return func(Instruction) string {
		return mnemonic
	}
}

func nameAddr(mnemonic string) func(Instruction) string {
	return func(in Instruction) string {
		return fmt.Sprintf("%s 0x%03x", mnemonic, in.NNN)
	}
}

func nameReg(mnemonic string) func(Instruction) string {
	return func(in Instruction) string {
		return fmt.Sprintf("%s V%X", mnemonic, in.X)
	}
}

func nameRegByte(mnemonic string) func(Instruction) string {
	return func(in Instruction) string {
		return fmt.Sprintf("%s V%X, 0x%02x", mnemonic, in.X, in.NN)
	}
}

func nameRegReg(mnemonic string) func(Instruction) string {
	return func(in Instruction) string {
		return fmt.Sprintf("%s V%X, V%X", mnemonic, in.X, in.Y)
	}
}

// skipIf advances past the current instruction, and past the next one too
// when cond holds.
func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += 2 * InstructionSize
	} else {
		vm.pc += InstructionSize
	}
}

// setFlag writes VF. Callers store their result first so the flag wins when
// the destination is VF itself.
func (vm *VM) setFlag(cond bool) {
	if cond {
		vm.registers[flagRegister] = 1
	} else {
		vm.registers[flagRegister] = 0
	}
}

func (vm *VM) readMemory(addr uint16) uint8 {
	return vm.memory[addr&addressMask]
}

func (vm *VM) writeMemory(addr uint16, value uint8) {
	vm.memory[addr&addressMask] = value
}

// drawSprite XORs an 8 pixel wide, height rows tall sprite read from I onto
// the screen. Pixels past an edge wrap around to the opposite one. VF ends
// up 1 if any lit pixel was turned off.
func (vm *VM) drawSprite(xLocation, yLocation uint8, height uint8) {
	hasCollision := false

	for y := uint16(0); y < uint16(height); y++ {
		pixel := vm.readMemory(vm.index + y)

		const width = uint16(8)
		for x := uint16(0); x < width; x++ {
			mask := uint8(0x80 >> x)
			if (pixel & mask) == 0 {
				continue
			}

			screenAddr := getScreenAddr(x+uint16(xLocation), y+uint16(yLocation))
			if vm.gfx[screenAddr] != 0 {
				hasCollision = true
			}

			vm.gfx[screenAddr] ^= 1
		}
	}

	vm.setFlag(hasCollision)
	vm.drawFlag = true
}

func getScreenAddr(x, y uint16) uint16 {
	x %= ScreenWidth
	y %= ScreenHeight

	screenAddr := ScreenWidth*(y) + x
	return screenAddr
}
