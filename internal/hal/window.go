package hal

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/kapitanov/chip8emu/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

// Window is the SDL2 frontend.
type Window struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	fgColor uint32
	bgColor uint32
}

func NewWindow(opts Options) (*Window, error) {
	opts = opts.withDefaults()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	width := int32(vm.ScreenWidth * opts.Scale)
	height := int32(vm.ScreenHeight * opts.Scale)

	window, err := sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, width, height, sdl.WINDOW_SHOWN|sdl.WINDOW_UTILITY)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window", "width", width, "height", height)
	window.Show()

	w := &Window{
		window:          window,
		backBuffer:      make([]uint32, vm.ScreenWidth*vm.ScreenHeight),
		backBufferPitch: int(vm.ScreenWidth) * int(unsafe.Sizeof(uint32(0))),
		fgColor:         opts.Foreground,
		bgColor:         opts.Background,
	}

	w.renderer, err = sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		w.Shutdown()
		return nil, fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	if err = w.renderer.SetLogicalSize(width, height); err != nil {
		w.Shutdown()
		return nil, fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	w.texture, err = w.renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		w.Shutdown()
		return nil, fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	return w, nil
}

func (w *Window) Shutdown() {
	if w.texture != nil {
		if err := w.texture.Destroy(); err != nil {
			slog.Error("failed to destroy sdl texture", "err", err)
		}
	}

	if w.renderer != nil {
		if err := w.renderer.Destroy(); err != nil {
			slog.Error("failed to destroy sdl renderer", "err", err)
		}
	}

	if err := w.window.Destroy(); err != nil {
		slog.Error("failed to destroy sdl window", "err", err)
	}

	sdl.Quit()
}

func (w *Window) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			return ErrQuit

		case sdl.KEYDOWN:
			if err := w.processKeyDown(e.(*sdl.KeyboardEvent), keyDown); err != nil {
				return err
			}

		case sdl.KEYUP:
			w.processKeyUp(e.(*sdl.KeyboardEvent), keyUp)
		}
	}

	return nil
}

func (w *Window) processKeyDown(e *sdl.KeyboardEvent, callback func(vm.Key)) error {
	switch e.Keysym.Scancode {
	case sdl.SCANCODE_BACKSPACE:
		slog.Debug("hal: reboot requested")
		return ErrReboot
	case sdl.SCANCODE_ESCAPE:
		slog.Debug("hal: exit requested")
		return ErrQuit
	}

	if e.Repeat != 0 {
		return nil
	}

	key, ok := scancodeKey(e.Keysym.Scancode)
	if ok {
		callback(key)
	}

	return nil
}

func (w *Window) processKeyUp(e *sdl.KeyboardEvent, callback func(vm.Key)) {
	key, ok := scancodeKey(e.Keysym.Scancode)
	if ok {
		callback(key)
	}
}

// scancodeKey uses scancodes so the layout follows key positions rather
// than the host keyboard layout. See runeKeys for the table.
func scancodeKey(code sdl.Scancode) (vm.Key, bool) {
	switch code {
	case sdl.SCANCODE_X:
		return vm.Key0, true
	case sdl.SCANCODE_1:
		return vm.Key1, true
	case sdl.SCANCODE_2:
		return vm.Key2, true
	case sdl.SCANCODE_3:
		return vm.Key3, true
	case sdl.SCANCODE_Q:
		return vm.Key4, true
	case sdl.SCANCODE_W:
		return vm.Key5, true
	case sdl.SCANCODE_E:
		return vm.Key6, true
	case sdl.SCANCODE_A:
		return vm.Key7, true
	case sdl.SCANCODE_S:
		return vm.Key8, true
	case sdl.SCANCODE_D:
		return vm.Key9, true
	case sdl.SCANCODE_Z:
		return vm.KeyA, true
	case sdl.SCANCODE_C:
		return vm.KeyB, true
	case sdl.SCANCODE_4:
		return vm.KeyC, true
	case sdl.SCANCODE_R:
		return vm.KeyD, true
	case sdl.SCANCODE_F:
		return vm.KeyE, true
	case sdl.SCANCODE_V:
		return vm.KeyF, true
	default:
		return 0, false
	}
}

func (w *Window) Draw(gfx []uint8) error {
	for i, pixel := range gfx {
		color := w.bgColor
		if pixel != 0 {
			color = w.fgColor
		}

		w.backBuffer[i] = color
	}

	backBufferPtr := unsafe.Pointer(&w.backBuffer[0])
	if err := w.texture.Update(nil, backBufferPtr, w.backBufferPitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	if err := w.renderer.Clear(); err != nil {
		return fmt.Errorf("failed to clear sdl renderer: %w", err)
	}

	if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	w.renderer.Present()
	return nil
}

// Beep is only logged, the window has no audio device.
func (w *Window) Beep() error {
	slog.Debug("hal: beep")
	return nil
}
