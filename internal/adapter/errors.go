package adapter

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized transport errors.
var (
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrBusy         = errors.New("BUSY")
	ErrUnavailable  = errors.New("UNAVAILABLE")
	ErrInternal     = errors.New("INTERNAL")
)

// VendorMap defines the error token mapping for a specific modem family.
type VendorMap struct {
	Range       []string // Tokens that map to INVALID_RANGE
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
}

// VendorErrorMappings contains the deterministic error mapping tables.
//
// RYLR tokens are the names the rylr adapter assigns to +ERR=<n> codes.
// Unknown tokens map to INTERNAL. Vendors without an entry fall back to
// "generic".
var VendorErrorMappings = map[string]VendorMap{
	"rylr": {
		Range: []string{
			"LENGTH_MISMATCH",
			"PAYLOAD_TOO_LONG",
			"PREAMBLE_NOT_ALLOWED",
		},
		Busy: []string{
			"TX_NOT_COMPLETE",
			"TX_OVERTIME",
		},
		Unavailable: []string{
			"FLASH_WRITE_FAILED",
			"NO_RESPONSE",
			"PORT_CLOSED",
		},
	},
	"nats": {
		Range: []string{
			"MAXIMUM PAYLOAD",
			"INVALID SUBJECT",
		},
		Busy: []string{
			"SLOW CONSUMER",
			"TIMEOUT",
		},
		Unavailable: []string{
			"CONNECTION CLOSED",
			"NO SERVERS",
			"CONNECTION DRAINING",
			"RECONNECTING",
		},
	},
	"generic": {
		Range: []string{
			"OUT_OF_RANGE",
			"INVALID_PARAMETER",
			"INVALID_RANGE",
			"TOO_LONG",
		},
		Busy: []string{
			"BUSY",
			"RETRY",
			"TIMEOUT",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"OFFLINE",
			"NOT_READY",
			"CLOSED",
		},
	},
}

// VendorError wraps a vendor error with its normalized code.
type VendorError struct {
	Code     error       // Normalized code
	Original error       // Vendor error
	Details  interface{} // Vendor payload (opaque)
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%v (vendor: %v)", e.Code, e.Original)
}

func (e *VendorError) Unwrap() error {
	return e.Code
}

// NormalizeVendorError maps err using the generic table.
func NormalizeVendorError(vendorErr error, vendorPayload interface{}) error {
	return NormalizeVendorErrorWithVendor(vendorErr, vendorPayload, "generic")
}

// NormalizeVendorErrorWithVendor maps err using the table for vendorID.
func NormalizeVendorErrorWithVendor(vendorErr error, vendorPayload interface{}, vendorID string) error {
	if vendorErr == nil {
		return nil
	}

	var already *VendorError
	if errors.As(vendorErr, &already) {
		return already
	}

	return &VendorError{
		Code:     mapVendorErrorToCode(vendorErr.Error(), vendorID),
		Original: vendorErr,
		Details:  vendorPayload,
	}
}

// mapVendorErrorToCode checks range tokens before busy before unavailable.
func mapVendorErrorToCode(msg string, vendorID string) error {
	vm, ok := VendorErrorMappings[vendorID]
	if !ok {
		vm = VendorErrorMappings["generic"]
	}

	upper := strings.ToUpper(msg)
	for _, class := range []struct {
		tokens []string
		code   error
	}{
		{vm.Range, ErrInvalidRange},
		{vm.Busy, ErrBusy},
		{vm.Unavailable, ErrUnavailable},
	} {
		for _, token := range class.tokens {
			if strings.Contains(upper, strings.ToUpper(token)) {
				return class.code
			}
		}
	}
	return ErrInternal
}
