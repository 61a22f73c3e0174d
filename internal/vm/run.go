package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultCPUHz   = 500
	DefaultFrameHz = 60

	// maxCatchUp bounds how many CPU periods a single late wakeup can replay.
	maxCatchUp = 32
)

// HAL is the display and input adapter driven by Run.
type HAL interface {
	ReadInput(keyDown func(Key), keyUp func(Key)) error
	Draw(gfx []uint8) error
	Beep() error
}

// Clock is the time source of the scheduler.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// RunConfig sets the two fixed rates of the scheduler.
type RunConfig struct {
	CPUHz   int
	FrameHz int
	Clock   Clock
}

func (cfg RunConfig) withDefaults() RunConfig {
	if cfg.CPUHz <= 0 {
		cfg.CPUHz = DefaultCPUHz
	}
	if cfg.FrameHz <= 0 {
		cfg.FrameHz = DefaultFrameHz
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	return cfg
}

type scheduler struct {
	vm    *VM
	hal   HAL
	clock Clock

	cpuPeriod   time.Duration
	framePeriod time.Duration
	cpuBudget   time.Duration
	frameBudget time.Duration

	halted    bool
	stalledAt int
}

// Run executes the loaded program until the HAL or the machine fails. It
// never returns nil: quitting is signalled by the HAL's own error.
func (vm *VM) Run(hal HAL, cfg RunConfig) error {
	cfg = cfg.withDefaults()

	s := &scheduler{
		vm:          vm,
		hal:         hal,
		clock:       cfg.Clock,
		cpuPeriod:   time.Second / time.Duration(cfg.CPUHz),
		framePeriod: time.Second / time.Duration(cfg.FrameHz),
		stalledAt:   -1,
	}

	slog.Debug("run", "cpu_hz", cfg.CPUHz, "frame_hz", cfg.FrameHz)

	last := s.clock.Now()
	for {
		now := s.clock.Now()
		elapsed := now.Sub(last)
		last = now

		if err := s.advance(elapsed); err != nil {
			return err
		}

		s.clock.Sleep(s.untilNextTick())
	}
}

func (s *scheduler) advance(elapsed time.Duration) error {
	s.cpuBudget += elapsed
	s.frameBudget += elapsed

	if s.cpuBudget > maxCatchUp*s.cpuPeriod {
		s.cpuBudget = maxCatchUp * s.cpuPeriod
	}

	for s.cpuBudget >= s.cpuPeriod {
		s.cpuBudget -= s.cpuPeriod
		if err := s.step(); err != nil {
			return err
		}
	}

	if s.frameBudget >= s.framePeriod {
		s.frameBudget -= s.framePeriod
		if s.frameBudget >= s.framePeriod {
			// Too late for the missed frames, drop them.
			s.frameBudget = 0
		}

		return s.frame()
	}

	return nil
}

func (s *scheduler) step() error {
	if s.halted {
		return nil
	}

	_, err := s.vm.Step()
	switch {
	case err == nil:
		s.stalledAt = -1
		return nil

	case errors.Is(err, ErrUnknownOpcode):
		if pc := int(s.vm.pc); pc != s.stalledAt {
			slog.Warn("bad instruction", "err", err)
			s.stalledAt = pc
		}
		return nil

	case errors.Is(err, ErrInfiniteLoop):
		slog.Info("program looped", "pc", fmt.Sprintf("0x%04x", s.vm.pc))
		s.halted = true
		return nil

	default:
		return err
	}
}

func (s *scheduler) frame() error {
	if err := s.hal.ReadInput(s.vm.keyDown, s.vm.keyUp); err != nil {
		return err
	}

	s.vm.TickTimers()
	if s.vm.ShouldBeep() {
		if err := s.hal.Beep(); err != nil {
			return err
		}
	}

	if s.vm.DisplayChanged() {
		if err := s.hal.Draw(s.vm.Pixels()); err != nil {
			return err
		}
		s.vm.ClearDisplayChanged()
	}

	return nil
}

func (s *scheduler) untilNextTick() time.Duration {
	d := s.framePeriod - s.frameBudget
	if !s.halted {
		d = min(d, s.cpuPeriod-s.cpuBudget)
	}
	return max(d, 0)
}
