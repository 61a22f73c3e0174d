package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/kapitanov/chip8emu/internal/asm"
	"github.com/kapitanov/chip8emu/internal/vm"
	"github.com/spf13/cobra"
)

func newAsmCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "asm PATH_TO_SOURCE_FILE",
		Short: "Assemble mnemonic source into a ROM",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("unable to load file %q: %w", args[0], err)
			}
			defer src.Close()

			rom, err := asm.Assemble(src)
			if err != nil {
				return fmt.Errorf("unable to assemble %q: %w", args[0], err)
			}

			return writeROM(output, rom)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "a.ch8", "output ROM file")
	return cmd
}

func newHexCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "hex2rom PATH_TO_HEX_FILE",
		Short: "Convert a hex text dump into a ROM",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("unable to load file %q: %w", args[0], err)
			}
			defer src.Close()

			rom, err := asm.DecodeHex(src)
			if err != nil {
				return fmt.Errorf("unable to convert %q: %w", args[0], err)
			}

			return writeROM(output, rom)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "a.ch8", "output ROM file")
	return cmd
}

func newDisCommand() *cobra.Command {
	var (
		dumpStart string
		dumpLen   int
	)

	cmd := &cobra.Command{
		Use:   "dis PATH_TO_ROM_FILE",
		Short: "Disassemble a ROM",
		Long:  "Disassemble a ROM. With --dump-len, print a hex dump of machine memory after loading the ROM instead.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rom, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("unable to load file %q: %w", args[0], err)
			}

			if dumpLen <= 0 {
				return asm.Disassemble(c.OutOrStdout(), rom, vm.ProgramStart)
			}

			start, err := strconv.ParseUint(dumpStart, 0, 16)
			if err != nil {
				return fmt.Errorf("invalid dump start %q: %w", dumpStart, err)
			}
			return dumpROM(c.OutOrStdout(), rom, int(start), dumpLen)
		},
	}

	cmd.Flags().StringVar(&dumpStart, "dump-start", "0x200", "first address of the memory dump")
	cmd.Flags().IntVar(&dumpLen, "dump-len", 0, "number of bytes to dump (0 disassembles instead)")
	return cmd
}

// dumpROM loads rom into a fresh machine and dumps the requested memory range,
// so the font area and load offset show up as they would at run time.
func dumpROM(w io.Writer, rom []byte, start, length int) error {
	machine := vm.New(vm.Config{})
	if err := machine.LoadProgram(rom); err != nil {
		return err
	}

	return asm.DumpMemory(w, machine.Memory(), start, length)
}

func writeROM(path string, rom []byte) error {
	if len(rom) > vm.MaxProgramSize {
		slog.Warn("rom does not fit into program memory", "n", len(rom), "max", vm.MaxProgramSize)
	}

	if err := os.WriteFile(path, rom, 0o644); err != nil {
		return fmt.Errorf("unable to write file %q: %w", path, err)
	}

	slog.Info("rom written", "path", path, "n", len(rom))
	return nil
}
