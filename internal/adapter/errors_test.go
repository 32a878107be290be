package adapter

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeVendorError(t *testing.T) {
	tests := []struct {
		name         string
		vendorErr    error
		expectedCode error
		expectedMsg  string
	}{
		{
			name:         "nil error returns nil",
			vendorErr:    nil,
			expectedCode: nil,
		},
		{
			name:         "unknown error maps to INTERNAL",
			vendorErr:    errors.New("SOMETHING_ODD"),
			expectedCode: ErrInternal,
			expectedMsg:  "INTERNAL (vendor: SOMETHING_ODD)",
		},
		{
			name:         "generic range error maps to INVALID_RANGE",
			vendorErr:    errors.New("payload too_long"),
			expectedCode: ErrInvalidRange,
			expectedMsg:  "INVALID_RANGE (vendor: payload too_long)",
		},
		{
			name:         "generic busy error maps to BUSY",
			vendorErr:    errors.New("BUSY"),
			expectedCode: ErrBusy,
			expectedMsg:  "BUSY (vendor: BUSY)",
		},
		{
			name:         "generic unavailable error maps to UNAVAILABLE",
			vendorErr:    errors.New("port closed"),
			expectedCode: ErrUnavailable,
			expectedMsg:  "UNAVAILABLE (vendor: port closed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVendorError(tt.vendorErr, nil)

			if tt.expectedCode == nil {
				if result != nil {
					t.Errorf("Expected nil, got %v", result)
				}
				return
			}

			vendorErr, ok := result.(*VendorError)
			if !ok {
				t.Fatalf("Expected VendorError, got %T", result)
			}
			if vendorErr.Code != tt.expectedCode {
				t.Errorf("Expected code %v, got %v", tt.expectedCode, vendorErr.Code)
			}
			if vendorErr.Error() != tt.expectedMsg {
				t.Errorf("Expected message %q, got %q", tt.expectedMsg, vendorErr.Error())
			}
			if !errors.Is(result, tt.expectedCode) {
				t.Errorf("errors.Is(%v, %v) = false", result, tt.expectedCode)
			}
		})
	}
}

func TestNormalizeVendorErrorWithVendor(t *testing.T) {
	tests := []struct {
		vendor   string
		msg      string
		expected error
	}{
		{"rylr", "TX_NOT_COMPLETE", ErrBusy},
		{"rylr", "TX_OVERTIME", ErrBusy},
		{"rylr", "PAYLOAD_TOO_LONG", ErrInvalidRange},
		{"rylr", "NO_RESPONSE to AT", ErrUnavailable},
		{"rylr", "CRC_ERROR", ErrInternal},
		{"nats", "nats: connection closed", ErrUnavailable},
		{"nats", "nats: maximum payload exceeded", ErrInvalidRange},
		{"nats", "nats: slow consumer, messages dropped", ErrBusy},
		{"unknown-vendor", "BUSY", ErrBusy},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.vendor, tt.msg), func(t *testing.T) {
			err := NormalizeVendorErrorWithVendor(errors.New(tt.msg), nil, tt.vendor)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestNormalizeVendorErrorIsIdempotent(t *testing.T) {
	first := NormalizeVendorErrorWithVendor(errors.New("TX_NOT_COMPLETE"), "payload", "rylr")
	second := NormalizeVendorError(fmt.Errorf("send: %w", first), nil)

	var ve *VendorError
	if !errors.As(second, &ve) {
		t.Fatalf("Expected VendorError, got %T", second)
	}
	if ve.Code != ErrBusy {
		t.Errorf("Expected BUSY to survive renormalization, got %v", ve.Code)
	}
}

func TestInitError(t *testing.T) {
	cause := errors.New("no +OK")
	err := fmt.Errorf("open: %w", &InitError{Stage: "AT+BAND", Err: cause})

	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Fatal("Expected InitError in chain")
	}
	if initErr.Stage != "AT+BAND" {
		t.Errorf("Expected stage AT+BAND, got %s", initErr.Stage)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable")
	}
}
