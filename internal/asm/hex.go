package asm

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// DecodeHex turns a hex listing such as "6005 7003 1204" into raw bytes.
// Whitespace anywhere in the listing is ignored.
func DecodeHex(r io.Reader) ([]byte, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read hex listing: %w", err)
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(text))

	rom, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("invalid hex listing: %w", err)
	}
	return rom, nil
}
