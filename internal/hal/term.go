//go:build linux || darwin || freebsd || netbsd || openbsd

package hal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kapitanov/chip8emu/internal/vm"
	"golang.org/x/sys/unix"
)

const (
	ctrlC     = 0x03
	escape    = 0x1b
	backspace = 0x7f
	ctrlH     = 0x08
)

// Terminal draws the screen with block characters and reads keys from a
// raw mode terminal.
type Terminal struct {
	in  *os.File
	out *os.File

	restore unix.Termios
	latch   keyLatch
	input   []byte
	frame   []byte
}

func openTerminal(opts Options) (Frontend, error) {
	return NewTerminal(os.Stdin, os.Stdout, opts)
}

func NewTerminal(in, out *os.File, opts Options) (*Terminal, error) {
	opts = opts.withDefaults()

	t := &Terminal{
		in:    in,
		out:   out,
		latch: keyLatch{hold: opts.KeyHold},
		input: make([]byte, 64),
	}

	if err := t.enterRawMode(); err != nil {
		return nil, err
	}

	if _, err := t.out.WriteString(ansiClear + ansiHideCursor); err != nil {
		t.Shutdown()
		return nil, fmt.Errorf("failed to prepare terminal: %w", err)
	}

	slog.Debug("hal: terminal ready", "key_hold", opts.KeyHold)
	return t, nil
}

func (t *Terminal) enterRawMode() error {
	fd := int(t.in.Fd())

	termios, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return fmt.Errorf("stdin is not a terminal: %w", err)
	}

	t.restore = *termios
	state := *termios

	state.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.INLCR | unix.ICRNL | unix.IXON
	state.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.IEXTEN | unix.ISIG
	state.Cflag &^= unix.CSIZE | unix.PARENB
	state.Cflag |= unix.CS8

	// Reads return immediately with whatever is buffered.
	state.Cc[unix.VMIN] = 0
	state.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, &state); err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	return nil
}

func (t *Terminal) Shutdown() {
	if _, err := t.out.WriteString(ansiReset + ansiShowCursor + ansiClear + ansiHome); err != nil {
		slog.Error("failed to reset terminal", "err", err)
	}

	if err := unix.IoctlSetTermios(int(t.in.Fd()), ioctlWriteTermios, &t.restore); err != nil {
		slog.Error("failed to restore terminal mode", "err", err)
	}
}

func (t *Terminal) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	var seen [vm.KeyCount]bool

	for {
		n, err := unix.Read(int(t.in.Fd()), t.input)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read terminal input: %w", err)
		}
		if n == 0 {
			break
		}

		for _, b := range t.input[:n] {
			switch b {
			case ctrlC, escape:
				slog.Debug("hal: exit requested")
				return ErrQuit
			case backspace, ctrlH:
				slog.Debug("hal: reboot requested")
				return ErrReboot
			}

			if key, ok := KeyForRune(rune(b)); ok {
				seen[key] = true
			}
		}
	}

	t.latch.update(seen, keyDown, keyUp)
	return nil
}

func (t *Terminal) Draw(gfx []uint8) error {
	t.frame = appendFrame(t.frame[:0], gfx)

	if _, err := t.out.Write(t.frame); err != nil {
		return fmt.Errorf("failed to draw frame: %w", err)
	}
	return nil
}

// Beep rings the terminal bell.
func (t *Terminal) Beep() error {
	if _, err := t.out.WriteString("\a"); err != nil {
		return fmt.Errorf("failed to ring bell: %w", err)
	}
	return nil
}
