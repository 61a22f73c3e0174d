package vm

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func newTestVM(t *testing.T, program ...uint16) *VM {
	t.Helper()

	vm := New(Config{Rand: rand.New(rand.NewPCG(1, 2))})
	if err := vm.LoadProgram(words(program...)); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	return vm
}

func words(program ...uint16) []byte {
	bs := make([]byte, 0, 2*len(program))
	for _, w := range program {
		bs = append(bs, byte(w>>8), byte(w))
	}
	return bs
}

func mustStep(t *testing.T, vm *VM, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		if _, err := vm.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestReset(t *testing.T) {
	vm := newTestVM(t, 0x6005, 0x7003)
	mustStep(t, vm, 2)
	vm.SetKey(Key3, true)

	vm.Reset()

	if vm.PC() != ProgramStart {
		t.Errorf("PC mismatch\nwant:%#04x\nhave:%#04x", ProgramStart, vm.PC())
	}
	if vm.Register(0) != 0 {
		t.Errorf("V0 not cleared: %#02x", vm.Register(0))
	}
	if vm.keypad[Key3] {
		t.Errorf("key latch not cleared")
	}
	if !vm.DisplayChanged() {
		t.Errorf("reset should request a redraw")
	}

	mem := vm.Memory()
	for i, b := range chip8Font {
		if mem[i] != b {
			t.Fatalf("font byte %d\nwant:%#02x\nhave:%#02x", i, b, mem[i])
		}
	}
	for i := len(chip8Font); i < MemorySize; i++ {
		if mem[i] != 0 {
			t.Fatalf("memory[%#04x] = %#02x, want 0", i, mem[i])
		}
	}
}

func TestLoadProgram(t *testing.T) {
	t.Run("fits exactly", func(t *testing.T) {
		program := make([]byte, MaxProgramSize)
		program[len(program)-1] = 0xAB

		vm := New(Config{})
		if err := vm.LoadProgram(program); err != nil {
			t.Fatalf("LoadProgram: %v", err)
		}
		if have := vm.Memory()[MemorySize-1]; have != 0xAB {
			t.Errorf("last byte\nwant:0xab\nhave:%#02x", have)
		}
	})

	t.Run("too large", func(t *testing.T) {
		vm := New(Config{})
		err := vm.LoadProgram(make([]byte, MaxProgramSize+1))
		if !errors.Is(err, ErrRomTooLarge) {
			t.Fatalf("want ErrRomTooLarge, have %v", err)
		}
	})

	t.Run("verbatim at 0x200", func(t *testing.T) {
		vm := newTestVM(t, 0x60FF, 0x1234)
		mem := vm.Memory()
		want := []byte{0x60, 0xFF, 0x12, 0x34}
		for i, b := range want {
			if mem[int(ProgramStart)+i] != b {
				t.Errorf("memory[%#04x]\nwant:%#02x\nhave:%#02x", int(ProgramStart)+i, b, mem[int(ProgramStart)+i])
			}
		}
	})
}

func TestTickTimers(t *testing.T) {
	vm := New(Config{})
	vm.delayTimer = 5

	for i := 1; i <= 5; i++ {
		vm.TickTimers()
		if want := uint8(5 - i); vm.DelayTimer() != want {
			t.Fatalf("tick %d\nwant:%d\nhave:%d", i, want, vm.DelayTimer())
		}
	}

	vm.TickTimers()
	if vm.DelayTimer() != 0 {
		t.Errorf("delay timer went below zero: %d", vm.DelayTimer())
	}
}

func TestTickTimersBeep(t *testing.T) {
	vm := New(Config{})
	vm.soundTimer = 2

	vm.TickTimers()
	if vm.ShouldBeep() {
		t.Errorf("beep requested with sound timer at 2")
	}

	vm.TickTimers()
	if !vm.ShouldBeep() {
		t.Errorf("no beep when sound timer left 1")
	}
	if vm.SoundTimer() != 0 {
		t.Errorf("sound timer\nwant:0\nhave:%d", vm.SoundTimer())
	}

	vm.TickTimers()
	if vm.ShouldBeep() {
		t.Errorf("beep repeated with sound timer at 0")
	}
}

func TestSetKeyOutOfRange(t *testing.T) {
	vm := New(Config{})
	vm.SetKey(Key(0x10), true)

	for i, pressed := range vm.keypad {
		if pressed {
			t.Errorf("key %x pressed", i)
		}
	}
}

func TestIndependentMachines(t *testing.T) {
	a := newTestVM(t, 0x6001)
	b := newTestVM(t, 0x6002)

	mustStep(t, a, 1)
	mustStep(t, b, 1)

	if a.Register(0) != 1 || b.Register(0) != 2 {
		t.Errorf("machines share state: a.V0=%d b.V0=%d", a.Register(0), b.Register(0))
	}
}
