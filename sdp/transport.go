package sdp

import "context"

// Transport is the caller-supplied USB-HID channel. Raw HID enumeration and
// transport are out of scope for this codec (spec §1); callers bring their
// own (e.g. a libusb or hidapi binding) and hand Client an implementation of
// this interface.
type Transport interface {
	// SendReport writes one HID output report: reportID followed by data,
	// padded or truncated to the device's report size by the implementation.
	SendReport(ctx context.Context, reportID byte, data []byte) error
	// ReceiveReport reads one HID input report, returning its report ID and
	// payload (without the report ID byte).
	ReceiveReport(ctx context.Context) (reportID byte, data []byte, err error)
}
