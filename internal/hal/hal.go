package hal

import (
	"errors"
	"fmt"

	"github.com/kapitanov/chip8emu/internal/vm"
)

var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
)

const (
	FrontendSDL      = "sdl"
	FrontendTerminal = "term"
)

// Options configures a frontend. Zero fields take defaults.
type Options struct {
	Frontend string

	// Scale is the window pixel size of one screen pixel (SDL only).
	Scale int

	// Foreground and Background are ARGB colors for lit and unlit pixels.
	Foreground uint32
	Background uint32

	// KeyHold is the number of frames a terminal key stays pressed after
	// its last byte arrived. Terminals report presses but no releases.
	KeyHold int
}

const (
	defaultScale      = 16
	defaultForeground = uint32(0xbea700)
	defaultBackground = uint32(0x000000)
	defaultKeyHold    = 12
)

func (opts Options) withDefaults() Options {
	if opts.Frontend == "" {
		opts.Frontend = FrontendSDL
	}
	if opts.Scale <= 0 {
		opts.Scale = defaultScale
	}
	if opts.Foreground == 0 && opts.Background == 0 {
		opts.Foreground = defaultForeground
		opts.Background = defaultBackground
	}
	if opts.KeyHold <= 0 {
		opts.KeyHold = defaultKeyHold
	}
	return opts
}

// Frontend is a vm.HAL that owns host resources.
type Frontend interface {
	vm.HAL
	Shutdown()
}

// Open creates the frontend named by opts.Frontend.
func Open(opts Options) (Frontend, error) {
	opts = opts.withDefaults()

	switch opts.Frontend {
	case FrontendSDL:
		return NewWindow(opts)
	case FrontendTerminal:
		return openTerminal(opts)
	default:
		return nil, fmt.Errorf("unknown frontend %q", opts.Frontend)
	}
}
