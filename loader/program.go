// Package loader provides ACC program image loading.
//
// An ACC image is a small container around the raw guest code bytes:
//
//	offset 0: magic "ACCP"
//	offset 4: format version (1)
//	offset 5: initial ACC (int32, little endian)
//	offset 9: initial LC (int32, little endian)
//	offset 13: entry point (uint32, little endian)
//	offset 17: guest code bytes
//
// The initial register values come from the image because generated
// scenarios pair a code stream with the register state it was derived for.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Magic identifies an ACC program image.
const Magic = "ACCP"

// FormatVersion is the current image format version.
const FormatVersion = 1

// headerSize is the byte offset of the code section.
const headerSize = 17

// ErrBadImage is returned for images that fail validation.
var ErrBadImage = errors.New("malformed ACC program image")

// Program represents a loaded ACC program ready for execution.
type Program struct {
	// Code contains the guest instruction bytes, loaded at address zero.
	Code []byte
	// InitialAcc is the accumulator value at execution start.
	InitialAcc int32
	// InitialLC is the loop counter value at execution start.
	InitialLC int32
	// EntryPoint is the guest address where execution begins.
	EntryPoint uint64
}

// New creates a program from raw code bytes and initial register values,
// entering at address zero.
func New(code []byte, initialAcc, initialLC int32) *Program {
	return &Program{
		Code:       code,
		InitialAcc: initialAcc,
		InitialLC:  initialLC,
	}
}

// Load reads and parses an ACC image file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return Parse(data)
}

// Parse parses an ACC image from memory.
func Parse(data []byte) (*Program, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrBadImage, len(data))
	}
	if string(data[:4]) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadImage, data[:4])
	}
	if data[4] != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrBadImage, data[4])
	}

	p := &Program{
		InitialAcc: int32(binary.LittleEndian.Uint32(data[5:9])),
		InitialLC:  int32(binary.LittleEndian.Uint32(data[9:13])),
		EntryPoint: uint64(binary.LittleEndian.Uint32(data[13:17])),
		Code:       data[headerSize:],
	}

	if p.EntryPoint >= uint64(len(p.Code)) && len(p.Code) > 0 {
		return nil, fmt.Errorf("%w: entry point %#x beyond code of %d bytes",
			ErrBadImage, p.EntryPoint, len(p.Code))
	}
	if len(p.Code) == 0 {
		return nil, fmt.Errorf("%w: empty code section", ErrBadImage)
	}

	return p, nil
}

// Encode serializes a program into the image format.
func Encode(p *Program) []byte {
	out := make([]byte, headerSize+len(p.Code))
	copy(out, Magic)
	out[4] = FormatVersion
	binary.LittleEndian.PutUint32(out[5:9], uint32(p.InitialAcc))
	binary.LittleEndian.PutUint32(out[9:13], uint32(p.InitialLC))
	binary.LittleEndian.PutUint32(out[13:17], uint32(p.EntryPoint))
	copy(out[headerSize:], p.Code)
	return out
}
