package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kapitanov/chip8emu/internal/hal"
	"github.com/kapitanov/chip8emu/internal/vm"
	"github.com/spf13/cobra"
)

type runOptions struct {
	verbose     bool
	logFile     string
	frontend    string
	scale       int
	cpuHz       int
	fps         int
	skipUnknown bool
}

func main() {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	var opts runOptions
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	cmd.Flags().StringVar(&opts.frontend, "frontend", hal.FrontendSDL, "display frontend: sdl or term")
	cmd.Flags().IntVar(&opts.scale, "scale", 16, "window pixels per screen pixel (sdl)")
	cmd.Flags().IntVar(&opts.cpuHz, "cpu-hz", vm.DefaultCPUHz, "instructions per second")
	cmd.Flags().IntVar(&opts.fps, "fps", vm.DefaultFrameHz, "display refreshes and timer ticks per second")
	cmd.Flags().BoolVar(&opts.skipUnknown, "skip-unknown", false, "step over unknown opcodes instead of stalling on them")

	var closeLog func()
	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		var err error
		closeLog, err = setupLogger(opts, c == cmd)
		return err
	}
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if closeLog != nil {
			closeLog()
		}
	}

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		return run(args[0], opts)
	}

	cmd.AddCommand(
		newAsmCommand(),
		newHexCommand(),
		newDisCommand(),
	)

	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

// setupLogger installs the default slog logger. The terminal frontend shares
// stderr with the screen, so it only gets errors unless a log file is given.
func setupLogger(opts runOptions, running bool) (func(), error) {
	loggerOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if opts.verbose {
		loggerOpts.Level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}

	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("unable to open log file %q: %w", opts.logFile, err)
		}
		out = f
		closeLog = func() { _ = f.Close() }
	} else if running && opts.frontend == hal.FrontendTerminal {
		loggerOpts.Level = slog.LevelError
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, loggerOpts)))
	return closeLog, nil
}

func run(path string, opts runOptions) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to load file %q: %w", path, err)
	}

	machine := vm.New(vm.Config{SkipUnknownOpcodes: opts.skipUnknown})
	if err := machine.LoadProgram(bs); err != nil {
		return fmt.Errorf("unable to load program %q: %w", path, err)
	}

	h, err := hal.Open(hal.Options{
		Frontend: opts.frontend,
		Scale:    opts.scale,
	})
	if err != nil {
		return fmt.Errorf("unable to initialize hal: %w", err)
	}
	defer h.Shutdown()

	runCfg := vm.RunConfig{
		CPUHz:   opts.cpuHz,
		FrameHz: opts.fps,
	}

	for {
		err = machine.Run(h, runCfg)

		if errors.Is(err, hal.ErrQuit) {
			return nil
		}

		if errors.Is(err, hal.ErrReboot) {
			slog.Info("reboot")
			machine.Reset()
			if err := machine.LoadProgram(bs); err != nil {
				return err
			}
			continue
		}

		return err
	}
}
