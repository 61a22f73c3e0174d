package hal

import (
	"github.com/kapitanov/chip8emu/internal/vm"
)

const (
	ansiHome       = "\x1b[H"
	ansiClear      = "\x1b[2J"
	ansiHideCursor = "\x1b[?25l"
	ansiShowCursor = "\x1b[?25h"
	ansiReset      = "\x1b[0m"
)

// Each text cell shows two vertically stacked pixels.
var halfBlocks = [4]string{
	" ", // neither
	"▀", // top
	"▄", // bottom
	"█", // both
}

// appendFrame renders gfx as 16 lines of 64 cells, starting at the top left
// corner of the terminal.
func appendFrame(dst []byte, gfx []uint8) []byte {
	dst = append(dst, ansiHome...)

	for y := 0; y < vm.ScreenHeight; y += 2 {
		for x := 0; x < vm.ScreenWidth; x++ {
			top := gfx[y*vm.ScreenWidth+x] & 1
			bottom := gfx[(y+1)*vm.ScreenWidth+x] & 1
			dst = append(dst, halfBlocks[top|bottom<<1]...)
		}
		dst = append(dst, '\r', '\n')
	}

	return dst
}

// keyLatch turns a stream of key presses without releases into held keys.
// A key is released after it has not been seen for hold frames.
type keyLatch struct {
	hold int
	left [vm.KeyCount]int
}

func (l *keyLatch) update(seen [vm.KeyCount]bool, keyDown func(vm.Key), keyUp func(vm.Key)) {
	for i := range l.left {
		key := vm.Key(i)

		switch {
		case seen[i]:
			if l.left[i] == 0 {
				keyDown(key)
			}
			l.left[i] = l.hold

		case l.left[i] > 0:
			l.left[i]--
			if l.left[i] == 0 {
				keyUp(key)
			}
		}
	}
}
