// Package sdp implements the Serial Download Protocol client: the
// half-duplex USB-HID command/response state machine the SoC ROM speaks
// while its application RAM is still empty (spec §3.8, §4.3).
package sdp

import "fmt"

// Kind is the closed set of SDP error conditions (spec §4.3).
type Kind int

const (
	_ Kind = iota
	KindTransportError
	KindUnexpectedReport
	KindStatusError
	KindUnsupportedOpcode
	KindShortWrite
	// KindHabStatusError is a non-standard HAB status word on ReportHAB
	// (spec §7 "Protocol errors": HabStatusError(code)).
	KindHabStatusError
	// KindDeviceError is a non-success completion code on ReportStatus
	// (spec §7 "Protocol errors": DeviceError(code)).
	KindDeviceError
)

func (k Kind) String() string {
	switch k {
	case KindTransportError:
		return "TransportError"
	case KindUnexpectedReport:
		return "UnexpectedReport"
	case KindStatusError:
		return "StatusError"
	case KindUnsupportedOpcode:
		return "UnsupportedOpcode"
	case KindShortWrite:
		return "ShortWrite"
	case KindHabStatusError:
		return "HabStatusError"
	case KindDeviceError:
		return "DeviceError"
	default:
		return "Unknown"
	}
}

// Error is the sdp package's error type: a closed Kind plus free-form
// context. Code carries the device-reported word for KindHabStatusError
// and KindDeviceError (spec §7: "a device-reported HAB code rendered in
// hex").
type Error struct {
	Kind Kind
	Msg  string
	Code uint32
}

func (e *Error) Error() string {
	if e.Kind == KindHabStatusError || e.Kind == KindDeviceError {
		if e.Msg == "" {
			return fmt.Sprintf("%s: 0x%08x", e.Kind, e.Code)
		}
		return fmt.Sprintf("%s: 0x%08x: %s", e.Kind, e.Code, e.Msg)
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind
}

func newErr(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func newCodeErr(k Kind, code uint32) *Error {
	return &Error{Kind: k, Code: code}
}

var (
	ErrTransportError    = &Error{Kind: KindTransportError}
	ErrUnexpectedReport  = &Error{Kind: KindUnexpectedReport}
	ErrStatusError       = &Error{Kind: KindStatusError}
	ErrUnsupportedOpcode = &Error{Kind: KindUnsupportedOpcode}
	ErrShortWrite        = &Error{Kind: KindShortWrite}
	ErrHabStatusError    = &Error{Kind: KindHabStatusError}
	ErrDeviceError       = &Error{Kind: KindDeviceError}
)
