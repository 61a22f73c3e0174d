package asm

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func toHex(bs []byte) string {
	var r []string
	for _, b := range bs {
		r = append(r, fmt.Sprintf("%02x", b))
	}
	return strings.Join(r, " ")
}

func testSnippet(t *testing.T, src string, want []byte) {
	t.Helper()

	got, err := Assemble(strings.NewReader(src))
	if err != nil {
		t.Errorf("%q: assembler produced error: %v", src, err)
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%q: assembled\ngot:\n%s\nwant:\n%s", src, toHex(got), toHex(want))
	}
}

func testFailureSnippet(t *testing.T, src string, mustContain string) {
	t.Helper()

	_, err := Assemble(strings.NewReader(src))
	if err == nil {
		t.Errorf("%q: assembler succeeded, expected match %q", src, mustContain)
		return
	}
	if !strings.Contains(err.Error(), mustContain) {
		t.Errorf("%q: failure %q does not match %q", src, err.Error(), mustContain)
	}
}

func TestAsmSnippets(t *testing.T) {
	testcases := []struct {
		src  string
		want []byte
	}{
		{"CLR", []byte{0x00, 0xE0}},
		{"RET", []byte{0x00, 0xEE}},
		{"JMP 0x200", []byte{0x12, 0x00}},
		{"CAL 2a0", []byte{0x22, 0xA0}},
		{"SEB V1 0x3A", []byte{0x31, 0x3A}},
		{"SNE V1 0x3A", []byte{0x41, 0x3A}},
		{"SEV V1 V2", []byte{0x51, 0x20}},
		{"LD V1 0x3A", []byte{0x61, 0x3A}},
		{"ADD V1 0x05", []byte{0x71, 0x05}},
		{"SET V1 V2", []byte{0x81, 0x20}},
		{"OR V1 V2", []byte{0x81, 0x21}},
		{"AND V1 V2", []byte{0x81, 0x22}},
		{"XOR V1 V2", []byte{0x81, 0x23}},
		{"ADDV V1 V2", []byte{0x81, 0x24}},
		{"SUB V1 V2", []byte{0x81, 0x25}},
		{"SHR VA", []byte{0x8A, 0x06}},
		{"SUBN V1 V2", []byte{0x81, 0x27}},
		{"SHL VA", []byte{0x8A, 0x0E}},
		{"SNEV V1 V2", []byte{0x91, 0x20}},
		{"LDI 0x250", []byte{0xA2, 0x50}},
		{"JMPV 0x300", []byte{0xB3, 0x00}},
		{"RAN V3 0x0F", []byte{0xC3, 0x0F}},
		{"DIS V0 0x15", []byte{0xD0, 0x15}},
		{"DIS V0 V1 5", []byte{0xD0, 0x15}},
		{"SKP V4", []byte{0xE4, 0x9E}},
		{"SKNP V4", []byte{0xE4, 0xA1}},
		{"GDT V5", []byte{0xF5, 0x07}},
		{"LDK V5", []byte{0xF5, 0x0A}},
		{"LDT V5", []byte{0xF5, 0x15}},
		{"LDS V5", []byte{0xF5, 0x18}},
		{"ADDI V5", []byte{0xF5, 0x1E}},
		{"LDF V5", []byte{0xF5, 0x29}},
		{"BCD V5", []byte{0xF5, 0x33}},
		{"RTM V5", []byte{0xF5, 0x55}},
		{"MTR V5", []byte{0xF5, 0x65}},
		{"ld v1, 0x3a", []byte{0x61, 0x3A}},
		{"; comment only\n\nLD V1 0x3A ; trailing\nADD V1 0x05\nJMP 0x200\n", []byte{0x61, 0x3A, 0x71, 0x05, 0x12, 0x00}},
		{"", nil},
	}

	for _, tc := range testcases {
		testSnippet(t, tc.src, tc.want)
	}
}

func TestAsmFailures(t *testing.T) {
	testcases := []struct {
		src         string
		mustContain string
	}{
		{"NOP", "unknown instruction"},
		{"CLR\nJMP", "line 2"},
		{"JMP 0x1000", "exceeds 0xfff"},
		{"LD V1 0x100", "exceeds 0xff"},
		{"LD VG 0x10", "not a register"},
		{"LD 1 0x10", "not a register"},
		{"LD V1 zz", "not a hex number"},
		{"RET V1", "want 0, have 1"},
		{"DIS V0 V1 0x10", "exceeds 0xf"},
	}

	for _, tc := range testcases {
		testFailureSnippet(t, tc.src, tc.mustContain)
	}
}

func TestAsmErrorDetails(t *testing.T) {
	_, err := Assemble(strings.NewReader("CLR\n\nFOO V1\n"))

	var asmErr *Error
	if !errors.As(err, &asmErr) {
		t.Fatalf("want *Error, have %T", err)
	}
	if asmErr.Line != 3 {
		t.Errorf("line\nwant:3\nhave:%d", asmErr.Line)
	}
	if !errors.Is(err, ErrUnknownMnemonic) {
		t.Errorf("want ErrUnknownMnemonic, have %v", err)
	}
}

func TestDecodeHex(t *testing.T) {
	got, err := DecodeHex(strings.NewReader("6005 7003\n12 04\n"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x60, 0x05, 0x70, 0x03, 0x12, 0x04}; !bytes.Equal(got, want) {
		t.Errorf("got:\n%s\nwant:\n%s", toHex(got), toHex(want))
	}

	if _, err := DecodeHex(strings.NewReader("600")); err == nil {
		t.Errorf("odd digit count accepted")
	}
	if _, err := DecodeHex(strings.NewReader("60zz")); err == nil {
		t.Errorf("non-hex digits accepted")
	}
}

func TestDisassemble(t *testing.T) {
	var buf bytes.Buffer
	if err := Disassemble(&buf, []byte{0x60, 0x05, 0xD0, 0x15, 0x12, 0x04, 0xAB}, 0x200); err != nil {
		t.Fatal(err)
	}

	want := "" +
		"0x0200  60 05  LD V0, 0x05\n" +
		"0x0202  d0 15  DRW V0, V1, 5\n" +
		"0x0204  12 04  JP 0x204\n" +
		"0x0206  ab     DB 0xab\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestAssembleDisassembleAgree(t *testing.T) {
	rom, err := Assemble(strings.NewReader("LDI 0x000\nDIS V0 V1 5\nBCD V2\n"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Disassemble(&buf, rom, 0x200); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"LD I, 0x000", "DRW V0, V1, 5", "LD B, V2"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("disassembly lacks %q:\n%s", want, buf.String())
		}
	}
}

func TestDumpMemory(t *testing.T) {
	mem := make([]byte, 0x40)
	for i := range mem {
		mem[i] = byte(i)
	}

	var buf bytes.Buffer
	if err := DumpMemory(&buf, mem, 0x1c, 0x100); err != nil {
		t.Fatal(err)
	}

	want := "" +
		"0x01c: 1c 1d 1e 1f 20 21 22 23 24 25 26 27 28 29 2a 2b\n" +
		"0x02c: 2c 2d 2e 2f 30 31 32 33 34 35 36 37 38 39 3a 3b\n" +
		"0x03c: 3c 3d 3e 3f\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}

	if err := DumpMemory(&buf, mem, 0x40, 1); err == nil {
		t.Errorf("out of bounds start accepted")
	}
}
