// Package insts provides ACC instruction definitions and decoding.
package insts

import "fmt"

// DecodeErrorKind distinguishes the ways an instruction fetch can fail.
type DecodeErrorKind uint8

// Decode error kinds.
const (
	// DecodeInvalidEncoding means the byte at the address is not a known
	// instruction form.
	DecodeInvalidEncoding DecodeErrorKind = iota
	// DecodeOutOfBounds means the address falls outside mapped guest memory.
	DecodeOutOfBounds
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeInvalidEncoding:
		return "invalid encoding"
	case DecodeOutOfBounds:
		return "out of bounds"
	}
	return "unknown"
}

// DecodeError reports a failed instruction fetch or decode at a guest
// address.
type DecodeError struct {
	// Addr is the guest address that failed to decode.
	Addr uint64
	// Kind classifies the failure.
	Kind DecodeErrorKind
	// Byte is the offending byte for invalid encodings.
	Byte uint8
}

func (e *DecodeError) Error() string {
	if e.Kind == DecodeInvalidEncoding {
		return fmt.Sprintf("decode at %#04x: invalid encoding %#02x", e.Addr, e.Byte)
	}
	return fmt.Sprintf("decode at %#04x: %v", e.Addr, e.Kind)
}

// CodeReader provides read access to guest code bytes.
// Reads beyond mapped memory must return an error.
type CodeReader interface {
	ReadBytes(addr uint64, n int) ([]byte, error)
}

// Decoder decodes guest memory bytes into ACC instructions.
// Decoding is a pure function of memory contents and address.
type Decoder struct {
	mem CodeReader
}

// NewDecoder creates a decoder reading code from mem.
func NewDecoder(mem CodeReader) *Decoder {
	return &Decoder{mem: mem}
}

// Decode decodes the instruction at addr.
// It returns a *DecodeError if the address is unmapped or the byte is not a
// valid opcode. Successful decodes always report Size >= 1 so callers make
// forward progress.
func (d *Decoder) Decode(addr uint64) (Instruction, error) {
	b, err := d.mem.ReadBytes(addr, 1)
	if err != nil {
		return Instruction{}, &DecodeError{Addr: addr, Kind: DecodeOutOfBounds}
	}

	if b[0] >= numOps {
		return Instruction{}, &DecodeError{Addr: addr, Kind: DecodeInvalidEncoding, Byte: b[0]}
	}

	return Instruction{
		Op:   Op(b[0]),
		Addr: addr,
		Size: 1,
	}, nil
}
