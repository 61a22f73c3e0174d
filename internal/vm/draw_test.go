package vm

import (
	"testing"
)

func litPixels(vm *VM) int {
	n := 0
	for _, p := range vm.Pixels() {
		if p != 0 {
			n++
		}
	}
	return n
}

// glyphZero is the expected bitmap of font glyph 0 at the origin.
var glyphZero = []string{
	"####",
	"#..#",
	"#..#",
	"#..#",
	"####",
}

func checkGlyphZero(t *testing.T, vm *VM, x0, y0 int) {
	t.Helper()

	for row, line := range glyphZero {
		for col, c := range line {
			want := c == '#'
			if have := vm.Pixel(x0+col, y0+row); have != want {
				t.Errorf("pixel (%d, %d)\nwant:%v\nhave:%v", x0+col, y0+row, want, have)
			}
		}
	}
}

func TestDrawFontGlyph(t *testing.T) {
	vm := newTestVM(t, 0xA250, 0xD005)
	copy(vm.memory[0x250:], chip8Font[0:5])

	mustStep(t, vm, 1)
	changed, err := vm.Step()
	if err != nil {
		t.Fatal(err)
	}

	if !changed {
		t.Errorf("DRW did not report a display change")
	}
	if vm.Register(0xF) != 0 {
		t.Errorf("VF\nwant:0\nhave:%d", vm.Register(0xF))
	}

	checkGlyphZero(t, vm, 0, 0)
	if n := litPixels(vm); n != 14 {
		t.Errorf("lit pixels\nwant:14\nhave:%d", n)
	}
}

func TestClearThenDraw(t *testing.T) {
	vm := newTestVM(t, 0x00E0, 0xA000, 0xD125)
	for i := range vm.gfx {
		vm.gfx[i] = 1
	}
	vm.registers[1] = 10
	vm.registers[2] = 7

	changed, err := vm.Step()
	if err != nil {
		t.Fatal(err)
	}
	if !changed || litPixels(vm) != 0 {
		t.Fatalf("CLS left %d pixels lit", litPixels(vm))
	}

	mustStep(t, vm, 2)
	checkGlyphZero(t, vm, 10, 7)
	if n := litPixels(vm); n != 14 {
		t.Errorf("lit pixels\nwant:14\nhave:%d", n)
	}
}

func TestDrawTwiceRestores(t *testing.T) {
	vm := newTestVM(t, 0xA00A, 0xD015, 0xD015)
	vm.registers[0] = 20
	vm.registers[1] = 3
	vm.gfx[3*ScreenWidth+21] = 1
	before := vm.gfx

	mustStep(t, vm, 2)
	if vm.Register(0xF) != 1 {
		t.Errorf("first draw over a lit pixel: VF\nwant:1\nhave:%d", vm.Register(0xF))
	}

	mustStep(t, vm, 1)
	if vm.Register(0xF) != 1 {
		t.Errorf("second draw: VF\nwant:1\nhave:%d", vm.Register(0xF))
	}
	if vm.gfx != before {
		t.Errorf("screen not restored after drawing the same sprite twice")
	}
}

func TestDrawClearsFlagWithoutCollision(t *testing.T) {
	vm := newTestVM(t, 0xA000, 0xD015)
	vm.registers[0xF] = 1

	mustStep(t, vm, 2)
	if vm.Register(0xF) != 0 {
		t.Errorf("VF\nwant:0\nhave:%d", vm.Register(0xF))
	}
}

func TestDrawWraps(t *testing.T) {
	vm := newTestVM(t, 0xA000, 0xD015)
	vm.registers[0] = 62
	vm.registers[1] = 30

	mustStep(t, vm, 2)

	// Top row of the glyph straddles the right edge.
	for _, x := range []int{62, 63, 0, 1} {
		if !vm.Pixel(x, 30) {
			t.Errorf("pixel (%d, 30) not lit", x)
		}
	}
	// Rows 2..4 wrap to the top of the screen.
	for _, x := range []int{62, 1} {
		if !vm.Pixel(x, 0) {
			t.Errorf("pixel (%d, 0) not lit", x)
		}
	}
	if n := litPixels(vm); n != 14 {
		t.Errorf("lit pixels\nwant:14\nhave:%d", n)
	}
}

func TestDrawUsesVFAsCoordinate(t *testing.T) {
	vm := newTestVM(t, 0xA000, 0xDFF1)
	vm.registers[0xF] = 8

	mustStep(t, vm, 2)
	for x := 8; x < 12; x++ {
		if !vm.Pixel(x, 8) {
			t.Errorf("pixel (%d, 8) not lit", x)
		}
	}
	if vm.Register(0xF) != 0 {
		t.Errorf("VF\nwant:0\nhave:%d", vm.Register(0xF))
	}
}
