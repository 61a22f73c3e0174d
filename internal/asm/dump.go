package asm

import (
	"fmt"
	"io"
	"strings"
)

const dumpRowSize = 16

// DumpMemory writes mem[start:start+length] as rows of 16 hex bytes, each
// prefixed with its address. The range is clipped to the end of mem.
func DumpMemory(w io.Writer, mem []byte, start, length int) error {
	if start < 0 || start >= len(mem) {
		return fmt.Errorf("start address 0x%03x out of bounds", start)
	}

	end := min(start+length, len(mem))

	var sb strings.Builder
	for row := start; row < end; row += dumpRowSize {
		fmt.Fprintf(&sb, "0x%03x:", row)
		for addr := row; addr < min(row+dumpRowSize, end); addr++ {
			fmt.Fprintf(&sb, " %02x", mem[addr])
		}
		sb.WriteByte('\n')
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
