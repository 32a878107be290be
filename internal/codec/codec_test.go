package codec

import (
	"errors"
	"math"
	"testing"

	"github.com/radio-control/lorabridge/internal/actuator"
	"github.com/radio-control/lorabridge/internal/command"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		cmd     command.Command
		counter uint32
		want    string
	}{
		{"start zero", command.StartActuation, 0, "110"},
		{"start counter", command.StartActuation, 42, "1142"},
		{"stop zero", command.StopActuation, 0, "00"},
		{"stop counter", command.StopActuation, 7, "07"},
		{"stop max", command.StopActuation, math.MaxUint32, "04294967295"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.cmd, tt.counter)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeHelpHasNoFrame(t *testing.T) {
	if _, err := Encode(command.Help, 1); !errors.Is(err, ErrNoRadioEncoding) {
		t.Errorf("Expected ErrNoRadioEncoding, got %v", err)
	}
	if _, err := Encode(command.None, 1); !errors.Is(err, ErrNoRadioEncoding) {
		t.Errorf("Expected ErrNoRadioEncoding for None, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  actuator.State
	}{
		{"zero byte leads", []byte{0x00, 0x31}, actuator.Disengaged},
		{"ascii one leads", []byte{0x31, 0x31}, actuator.Engaged},
		{"ascii zero leads", []byte("05"), actuator.Disengaged},
		{"foreign frame", []byte("hello"), actuator.Engaged},
		{"single high byte", []byte{0xff}, actuator.Engaged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.frame)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode(%v) = %s, want %s", tt.frame, got, tt.want)
			}
		})
	}
}

func TestDecodeEmptyFrame(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	counters := []uint32{0, 1, 9, 10, 99, 1000, 65535, math.MaxUint32}
	for _, n := range counters {
		start, _ := Encode(command.StartActuation, n)
		if got, _ := Decode(start); got != actuator.Engaged {
			t.Errorf("Decode(Encode(Start, %d)) = %s", n, got)
		}
		stop, _ := Encode(command.StopActuation, n)
		if got, _ := Decode(stop); got != actuator.Disengaged {
			t.Errorf("Decode(Encode(Stop, %d)) = %s", n, got)
		}
	}
}
