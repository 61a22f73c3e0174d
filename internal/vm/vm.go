package vm

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	MaxProgramSize  = MemorySize - int(ProgramStart)
	InstructionSize = 2

	addressMask  = MemorySize - 1
	flagRegister = 0x0F
)

// Config holds the per-machine options. The zero value is a faithful machine.
type Config struct {
	// SkipUnknownOpcodes makes Step move past opcodes that do not decode
	// instead of stalling on them.
	SkipUnknownOpcodes bool

	// Rand feeds the RND instruction. A randomly seeded source is used when nil.
	Rand *rand.Rand
}

type VM struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    uint16            // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	gfx      [ScreenWidth * ScreenHeight]uint8 // Graphics buffer
	keypad   [KeyCount]bool                    // Keypad
	drawFlag bool                              // Indicates a draw has occurred
	beep     bool                              // Set by the last TickTimers when a tone is due

	rng         *rand.Rand
	skipUnknown bool
}

// New returns a reset machine with no program loaded.
func New(cfg Config) *VM {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	vm := &VM{
		rng:         rng,
		skipUnknown: cfg.SkipUnknownOpcodes,
	}
	vm.Reset()
	return vm
}

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// Reset clears the whole machine, installs the font and points PC at the
// program start. A loaded program is wiped too.
func (vm *VM) Reset() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0

	// Clear the display
	vm.gfx = [ScreenWidth * ScreenHeight]uint8{}
	vm.drawFlag = true

	// Clear the stack, keypad, and V registers
	slog.Debug("clear stack", "n", len(vm.stack))
	vm.stack = [StackSize]uint16{}

	slog.Debug("clear keypad", "n", len(vm.keypad))
	vm.keypad = [KeyCount]bool{}

	slog.Debug("clear registers", "n", len(vm.registers))
	vm.registers = [RegisterCount]uint8{}

	// Clear memory
	slog.Debug("clear memory", "n", len(vm.memory))
	vm.memory = [MemorySize]uint8{}

	// Load font set into memory
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", 0), "n", len(chip8Font))
	copy(vm.memory[0:], chip8Font[:])

	// Reset timers
	vm.delayTimer = 0
	vm.soundTimer = 0
	vm.beep = false
}

// LoadProgram copies a raw ROM image into memory at ProgramStart.
func (vm *VM) LoadProgram(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, at most %d fit", ErrRomTooLarge, len(program), MaxProgramSize)
	}

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))
	copy(vm.memory[ProgramStart:], program)
	return nil
}

// SetKey updates the key latch. Keys outside 0x0-0xF are ignored.
func (vm *VM) SetKey(key Key, pressed bool) {
	if int(key) >= KeyCount {
		return
	}
	vm.keypad[key] = pressed
}

func (vm *VM) keyDown(key Key) {
	vm.SetKey(key, true)
}

func (vm *VM) keyUp(key Key) {
	vm.SetKey(key, false)
}

// DisplayChanged reports whether the screen was modified since the last
// ClearDisplayChanged.
func (vm *VM) DisplayChanged() bool {
	return vm.drawFlag
}

func (vm *VM) ClearDisplayChanged() {
	vm.drawFlag = false
}

// Pixels returns the 64x32 row-major screen, one byte (0 or 1) per pixel.
// The slice aliases machine state and must not be modified.
func (vm *VM) Pixels() []uint8 {
	return vm.gfx[:]
}

// Pixel reports whether the pixel at (x, y) is lit.
func (vm *VM) Pixel(x, y int) bool {
	return vm.gfx[(y%ScreenHeight)*ScreenWidth+x%ScreenWidth] != 0
}

// ShouldBeep reports whether the last TickTimers requested a tone.
func (vm *VM) ShouldBeep() bool {
	return vm.beep
}

func (vm *VM) PC() uint16 {
	return vm.pc
}

func (vm *VM) Index() uint16 {
	return vm.index
}

// Register returns Vn. It panics when n is not in 0x0-0xF.
func (vm *VM) Register(n int) uint8 {
	return vm.registers[n]
}

func (vm *VM) DelayTimer() uint8 {
	return vm.delayTimer
}

func (vm *VM) SoundTimer() uint8 {
	return vm.soundTimer
}

// StackDepth returns the number of pending return addresses.
func (vm *VM) StackDepth() int {
	return int(vm.sp)
}

// Memory returns a copy of the address space.
func (vm *VM) Memory() []byte {
	bs := make([]byte, MemorySize)
	copy(bs, vm.memory[:])
	return bs
}

// Step executes exactly one instruction and reports whether it changed the
// display. Instruction failures come back as *OpcodeError; only
// ErrStackOverflow and ErrStackUnderflow leave the machine unusable.
func (vm *VM) Step() (bool, error) {
	pc := vm.pc
	opcode := vm.fetchOpcode()

	in, err := vm.executeOpcode(opcode)
	if err != nil {
		if in.Op == OpUnknown && vm.skipUnknown {
			vm.pc = (vm.pc + InstructionSize) & addressMask
		}
		return false, &OpcodeError{PC: pc, Opcode: opcode, Err: err}
	}

	vm.pc &= addressMask
	return in.Op.drawsScreen(), nil
}

// TickTimers advances both timers by one 60 Hz tick.
func (vm *VM) TickTimers() {
	vm.beep = false

	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		if vm.soundTimer == 1 {
			vm.beep = true
		}
		vm.soundTimer--
	}
}

func (vm *VM) fetchOpcode() uint16 {
	hi := vm.memory[vm.pc&addressMask]
	lo := vm.memory[(vm.pc+1)&addressMask]

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode
}

var chip8Font = [80]uint8{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}
