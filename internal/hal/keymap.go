package hal

import (
	"unicode"

	"github.com/kapitanov/chip8emu/internal/vm"
)

// Physical                Logical
// ================        =================
// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
// | q | w | e | r |       | 4 | 5 | 6 | D |
// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
// | z | x | c | v |       | A | 0 | B | F |
// ================        =================
var runeKeys = map[rune]vm.Key{
	'1': vm.Key1, '2': vm.Key2, '3': vm.Key3, '4': vm.KeyC,
	'q': vm.Key4, 'w': vm.Key5, 'e': vm.Key6, 'r': vm.KeyD,
	'a': vm.Key7, 's': vm.Key8, 'd': vm.Key9, 'f': vm.KeyE,
	'z': vm.KeyA, 'x': vm.Key0, 'c': vm.KeyB, 'v': vm.KeyF,
}

// KeyForRune maps a character typed on the physical keyboard to a key.
func KeyForRune(r rune) (vm.Key, bool) {
	key, ok := runeKeys[unicode.ToLower(r)]
	return key, ok
}
