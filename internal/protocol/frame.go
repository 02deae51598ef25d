package protocol

import (
	"encoding/hex"
	"strings"
)

const (
	// FrameSize is the fixed length of every command frame.
	FrameSize = 8

	// CommandByteIndex is the only byte that differs between frames.
	CommandByteIndex = 2
)

// Frame is the payload written to the control characteristic.
type Frame [FrameSize]byte

var frameTemplate = Frame{0x00, 0x00, 0x00, 0x01, 0x01, 0x01, 0x00, 0x00}

// Encode builds a frame carrying the given command code.
func Encode(code byte) Frame {
	f := frameTemplate
	f[CommandByteIndex] = code
	return f
}

// Template returns the constant frame layout with a zero command byte.
func Template() Frame {
	return frameTemplate
}

// Code returns the command code carried by the frame.
func (f Frame) Code() byte {
	return f[CommandByteIndex]
}

// Bytes returns a fresh slice with the frame content.
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameSize)
	copy(b, f[:])
	return b
}

// String renders the frame as space separated hex, e.g. "00 00 07 01 01 01 00 00".
func (f Frame) String() string {
	parts := make([]string, FrameSize)
	for i, b := range f {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, " ")
}
