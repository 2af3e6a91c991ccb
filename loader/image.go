package loader

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Format names a program file format.
type Format string

// Supported program formats.
const (
	FormatELF    Format = "elf"
	FormatBinary Format = "bin"
	FormatHex    Format = "hex"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatELF, FormatBinary, FormatHex:
		return f, nil
	}
	return "", errors.Errorf("unknown program format %q", name)
}

// LoadFile loads path in the given format. entry is the load address of
// flat binary and hex images and is ignored for ELF files.
func LoadFile(path string, format Format, entry uint32) (*Program, error) {
	switch format {
	case FormatELF:
		return Load(path)
	case FormatBinary:
		return LoadBinary(path, entry)
	case FormatHex:
		return LoadHex(path, entry)
	}
	return nil, errors.Errorf("unknown program format %q", format)
}

// LoadBinary reads a flat little-endian image that is loaded at entry.
func LoadBinary(path string, entry uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading binary image")
	}

	return imageProgram(entry, data), nil
}

// LoadHex reads a text image with one 32-bit instruction word per line,
// written in hexadecimal with an optional 0x prefix. Blank lines and text
// after '#' are ignored.
func LoadHex(path string, entry uint32) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening hex image")
	}
	defer func() { _ = f.Close() }()

	words, err := ParseHex(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[4*i:], w)
	}

	return imageProgram(entry, data), nil
}

// ParseHex parses hex image text into instruction words.
func ParseHex(r io.Reader) ([]uint32, error) {
	var words []uint32

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		line = strings.TrimPrefix(strings.TrimPrefix(line, "0x"), "0X")
		w, err := strconv.ParseUint(line, 16, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		words = append(words, uint32(w))
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading hex image")
	}

	return words, nil
}

func imageProgram(entry uint32, data []byte) *Program {
	return &Program{
		EntryPoint: entry,
		Segments: []Segment{{
			VirtAddr: entry,
			Data:     data,
			MemSize:  uint32(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}},
	}
}
