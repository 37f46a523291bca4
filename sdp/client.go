package sdp

import (
	"context"
	"encoding/binary"

	"github.com/molejar/goimx"
	"github.com/molejar/goimx/dcd"
)

// Client drives the SDP state machine over a caller-supplied Transport
// (spec §3.8, §4.3): every exchange is a single command report followed by
// zero or more data reports and a closing status report.
type Client struct {
	Transport Transport
	Profile   Profile
}

// New constructs a Client bound to an already-open Transport.
func New(t Transport, p Profile) *Client {
	return &Client{Transport: t, Profile: p}
}

func widthOf(f Format) int {
	switch f {
	case Format8:
		return 1
	case Format16:
		return 2
	default:
		return 4
	}
}

func (c *Client) sendCommand(ctx context.Context, cmd CommandReport) error {
	if err := c.Transport.SendReport(ctx, ReportCommand, cmd.Bytes()); err != nil {
		return newErr(KindTransportError, "%v", err)
	}
	return nil
}

func (c *Client) recvData(ctx context.Context) ([]byte, error) {
	id, data, err := c.Transport.ReceiveReport(ctx)
	if err != nil {
		return nil, newErr(KindTransportError, "%v", err)
	}
	if id != ReportStatus {
		return nil, newErr(KindUnexpectedReport, "expected data on status report, got id %d", id)
	}
	return data, nil
}

// recvHAB consumes the ReportHAB interim status every command precedes its
// final response with (spec §4.3), failing with HabStatusError if the
// device reports a non-standard HAB word.
func (c *Client) recvHAB(ctx context.Context) (uint32, error) {
	id, data, err := c.Transport.ReceiveReport(ctx)
	if err != nil {
		return 0, newErr(KindTransportError, "%v", err)
	}
	if id != ReportHAB {
		return 0, newErr(KindUnexpectedReport, "expected hab status report, got id %d", id)
	}
	hr, err := ParseHABReport(data)
	if err != nil {
		return 0, err
	}
	if !habStatusOK(hr.Value) {
		return 0, newCodeErr(KindHabStatusError, hr.Value)
	}
	return hr.Value, nil
}

// recvStatus consumes the ReportStatus completion code that the ROM sends
// on its own at the end of a command exchange (spec §4.3) — unlike
// Status, it does not itself send a Read Status command.
func (c *Client) recvStatus(ctx context.Context) (uint32, error) {
	id, data, err := c.Transport.ReceiveReport(ctx)
	if err != nil {
		return 0, newErr(KindTransportError, "%v", err)
	}
	if id != ReportStatus {
		return 0, newErr(KindUnexpectedReport, "expected status report, got id %d", id)
	}
	sr, err := ParseStatusReport(data)
	if err != nil {
		return 0, err
	}
	return sr.Value, nil
}

// awaitSuccess consumes the HAB interim report and the final status report
// every Write Register / Write File / Write DCD / Write CSF exchange ends
// with, failing the call unless both are standard (spec §4.3, §8
// scenario 4): "exactly one Report-3 and one Report-4 are consumed."
func (c *Client) awaitSuccess(ctx context.Context) error {
	if _, err := c.recvHAB(ctx); err != nil {
		return err
	}
	code, err := c.recvStatus(ctx)
	if err != nil {
		return err
	}
	if code != WriteSuccessCode {
		return newCodeErr(KindDeviceError, code)
	}
	return nil
}

// Status issues a Read Status command and returns its 4-byte completion
// code, pass-through to the caller (spec §4.3).
func (c *Client) Status(ctx context.Context) (uint32, error) {
	if err := c.sendCommand(ctx, CommandReport{Opcode: OpReadStatus}); err != nil {
		return 0, err
	}
	if _, err := c.recvHAB(ctx); err != nil {
		return 0, err
	}
	return c.recvStatus(ctx)
}

// ReadRegister issues a Read Register command and returns the count words
// read, each format/8 bytes wide and little-endian on the wire (spec
// §4.3, §6.2). It consumes the HAB interim report that precedes the data
// payload.
func (c *Client) ReadRegister(ctx context.Context, addr uint32, format Format, count int) ([]uint32, error) {
	width := widthOf(format)
	cmd := CommandReport{Opcode: OpReadRegister, Addr: addr, Format: format, DataCount: uint32(count * width)}
	if err := c.sendCommand(ctx, cmd); err != nil {
		return nil, err
	}
	if _, err := c.recvHAB(ctx); err != nil {
		return nil, err
	}
	data, err := c.recvData(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) < count*width {
		return nil, newErr(KindUnexpectedReport, "register read too short: got %d bytes, want %d", len(data), count*width)
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		chunk := data[i*width : i*width+width]
		var v uint32
		switch width {
		case 1:
			v = uint32(chunk[0])
		case 2:
			v = uint32(binary.LittleEndian.Uint16(chunk))
		default:
			v = binary.LittleEndian.Uint32(chunk)
		}
		out[i] = v
	}
	return out, nil
}

// WriteRegister issues a Write Register command and waits for the ROM's
// interim HAB status and final completion code (spec §4.3, §8 scenario 4).
func (c *Client) WriteRegister(ctx context.Context, addr uint32, value uint32, format Format) error {
	cmd := CommandReport{Opcode: OpWriteRegister, Addr: addr, Format: format, DataCount: uint32(widthOf(format)), DataParam: value}
	if err := c.sendCommand(ctx, cmd); err != nil {
		return err
	}
	return c.awaitSuccess(ctx)
}

// writeBulk issues a command carrying a byte count followed by the data
// reports needed to transfer payload, chunked to the profile's
// MaxTransfer, then waits for the ROM's interim HAB status and final
// completion code (spec §4.3, §8 "exactly one Report-3 and one Report-4
// are consumed").
func (c *Client) writeBulk(ctx context.Context, opcode Opcode, addr uint32, payload []byte) error {
	cmd := CommandReport{Opcode: opcode, Addr: addr, DataCount: uint32(len(payload))}
	if err := c.sendCommand(ctx, cmd); err != nil {
		return err
	}
	chunk := c.Profile.MaxTransfer
	if chunk <= 0 {
		chunk = len(payload)
		if chunk == 0 {
			chunk = 1
		}
	}
	for off := 0; off < len(payload); off += chunk {
		end := off + chunk
		if end > len(payload) {
			end = len(payload)
		}
		if err := c.Transport.SendReport(ctx, ReportData, payload[off:end]); err != nil {
			return newErr(KindTransportError, "%v", err)
		}
	}
	return c.awaitSuccess(ctx)
}

// WriteFile transfers an arbitrary file (e.g. a standalone application
// image) to the target address (spec §4.3).
func (c *Client) WriteFile(ctx context.Context, addr uint32, data []byte) error {
	return c.writeBulk(ctx, OpWriteFile, addr, data)
}

// WriteDCD transfers a DCD program to addr for the ROM to execute
// immediately (spec §4.3).
func (c *Client) WriteDCD(ctx context.Context, prog dcd.Program, addr uint32) error {
	bin, err := prog.ExportBinary()
	if err != nil {
		return newErr(KindTransportError, "%v", err)
	}
	return c.writeBulk(ctx, OpWriteDCD, addr, bin)
}

// WriteCSF transfers a CSF for the ROM's HAB engine to authenticate
// (spec §4.3).
func (c *Client) WriteCSF(ctx context.Context, csf goimx.CSF) error {
	return c.writeBulk(ctx, OpWriteCSF, 0, csf.Bytes())
}

// WriteImageOptions configures the write_image composite operation
// (spec §4.3 "Write image").
type WriteImageOptions struct {
	// InitDDR uploads img.DCD to DDRInitAddr (an OCRAM scratch address)
	// before the image transfer, so the ROM can bring up DDR first.
	InitDDR     bool
	DDRInitAddr uint32
	// SkipDCD strips the DCD from the bytes actually transferred — a
	// working copy of img is exported with DCD cleared — and tells the
	// ROM (Skip DCD Header) not to re-run the DCD it already applied via
	// InitDDR.
	SkipDCD bool
	// Run issues Jump to img.IVT.Self once the transfer completes.
	Run bool
}

// WriteImage transfers a built Image per opts (spec §4.3, §8 scenario 5):
// optionally initializes DDR by uploading the DCD to an OCRAM address,
// optionally strips the DCD from the transferred copy, writes the image to
// its declared start address, then optionally jumps to it.
func (c *Client) WriteImage(ctx context.Context, img *goimx.Image, opts WriteImageOptions) error {
	if opts.InitDDR {
		if img.DCD == nil {
			return newErr(KindTransportError, "init_ddr requested but image has no DCD")
		}
		if err := c.WriteDCD(ctx, *img.DCD, opts.DDRInitAddr); err != nil {
			return err
		}
	}

	working := img
	if opts.SkipDCD && img.DCD != nil {
		strippedImg := *img
		strippedImg.DCD = nil
		working = &strippedImg
		if err := c.SkipDCDHeader(ctx, img.IVT.Self); err != nil {
			return err
		}
	}

	buf, err := working.Export()
	if err != nil {
		return newErr(KindTransportError, "%v", err)
	}
	if err := c.WriteFile(ctx, working.BDT.Start, buf); err != nil {
		return err
	}

	if opts.Run {
		return c.Jump(ctx, img.IVT.Self)
	}
	return nil
}

// SkipDCDHeader tells the ROM that the DCD at addr was already applied via
// WriteDCD and should not be re-executed when the image file is transferred
// (spec §4.3, §8 scenario 5).
func (c *Client) SkipDCDHeader(ctx context.Context, addr uint32) error {
	if err := c.sendCommand(ctx, CommandReport{Opcode: OpSkipDCDHeader, Addr: addr}); err != nil {
		return err
	}
	return c.awaitSuccess(ctx)
}

// Jump issues a Jump Address command, transferring execution to addr
// (spec §4.3). Only the HAB interim report is consumed — the ROM may have
// already left the protocol by jumping, so a final status report is not
// guaranteed.
func (c *Client) Jump(ctx context.Context, addr uint32) error {
	if err := c.sendCommand(ctx, CommandReport{Opcode: OpJumpAddress, Addr: addr}); err != nil {
		return err
	}
	_, err := c.recvHAB(ctx)
	return err
}
