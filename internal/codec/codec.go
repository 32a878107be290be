// Package codec converts actuation commands to and from radio frames.
//
// A frame is the ASCII code digits ("11" start, "0" stop) immediately
// followed by the ASCII digits of a counter, with no separator. Receivers
// only look at the first byte: a zero byte or the digit '0' disengages,
// anything else engages.
package codec

import (
	"errors"
	"strconv"

	"github.com/radio-control/lorabridge/internal/actuator"
	"github.com/radio-control/lorabridge/internal/command"
)

// Frame codes.
const (
	StartCode = "11"
	StopCode  = "0"
)

var (
	// ErrNoRadioEncoding is returned for commands that never leave the chat.
	ErrNoRadioEncoding = errors.New("command has no radio encoding")

	// ErrEmptyFrame is returned when a frame carries no bytes.
	ErrEmptyFrame = errors.New("empty frame")
)

// Encode builds the frame for cmd.
func Encode(cmd command.Command, counter uint32) ([]byte, error) {
	var code string
	switch cmd {
	case command.StartActuation:
		code = StartCode
	case command.StopActuation:
		code = StopCode
	default:
		return nil, ErrNoRadioEncoding
	}
	frame := make([]byte, 0, len(code)+10)
	frame = append(frame, code...)
	return strconv.AppendUint(frame, uint64(counter), 10), nil
}

// Decode returns the actuator state carried by frame. Only the first byte
// counts: 0x00 and the ASCII digit '0' disengage, so the Stop frame "0<n>"
// decodes to Disengaged; any other byte engages.
func Decode(frame []byte) (actuator.State, error) {
	if len(frame) == 0 {
		return actuator.Disengaged, ErrEmptyFrame
	}
	switch frame[0] {
	case 0x00, StopCode[0]:
		return actuator.Disengaged, nil
	default:
		return actuator.Engaged, nil
	}
}
