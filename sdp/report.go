package sdp

import "encoding/binary"

// HID report IDs (spec §4.3): 1 carries the 16-byte command, 2 carries
// outgoing file/DCD/CSF data, 3 carries the 4-byte HAB security
// configuration word, 4 carries status words and the Read Register payload.
const (
	ReportCommand byte = 1
	ReportData    byte = 2
	ReportHAB     byte = 3
	ReportStatus  byte = 4
)

// Opcode is the closed set of SDP command codes, pinned by spec §4.3.
type Opcode uint16

const (
	OpReadRegister  Opcode = 0x0101
	OpWriteRegister Opcode = 0x0202
	OpWriteFile     Opcode = 0x0404
	OpReadStatus    Opcode = 0x0505
	OpWriteDCD      Opcode = 0x0606
	OpWriteCSF      Opcode = 0x0A0A
	OpSkipDCDHeader Opcode = 0x0B0B
	OpJumpAddress   Opcode = 0x0F0F
)

func (o Opcode) String() string {
	switch o {
	case OpReadRegister:
		return "ReadRegister"
	case OpWriteRegister:
		return "WriteRegister"
	case OpWriteFile:
		return "WriteFile"
	case OpWriteDCD:
		return "WriteDCD"
	case OpWriteCSF:
		return "WriteCSF"
	case OpSkipDCDHeader:
		return "SkipDCDHeader"
	case OpReadStatus:
		return "ReadStatus"
	case OpJumpAddress:
		return "JumpAddress"
	default:
		return "UnknownOpcode"
	}
}

// Format is the access width a Read/Write Register command applies to.
type Format uint8

const (
	Format8  Format = 0x08
	Format16 Format = 0x10
	Format32 Format = 0x20
)

// CommandReport is the fixed 16-byte command payload carried by
// ReportCommand (spec §4.3): opcode, target address, access format,
// byte count and an opcode-specific data parameter.
type CommandReport struct {
	Opcode    Opcode
	Addr      uint32
	Format    Format
	DataCount uint32
	DataParam uint32
}

const commandReportSize = 16

// Bytes encodes the command to its 16-byte wire form, big-endian throughout
// (spec §4.3, inherited from the same tag-length-param convention as the
// DCD/CSF headers).
func (c CommandReport) Bytes() []byte {
	buf := make([]byte, commandReportSize)
	be := binary.BigEndian
	be.PutUint16(buf[0:2], uint16(c.Opcode))
	be.PutUint32(buf[2:6], c.Addr)
	buf[6] = byte(c.Format)
	be.PutUint32(buf[7:11], c.DataCount)
	be.PutUint32(buf[11:15], c.DataParam)
	return buf
}

// ParseCommandReport decodes a 16-byte command payload.
func ParseCommandReport(buf []byte) (CommandReport, error) {
	if len(buf) < commandReportSize {
		return CommandReport{}, newErr(KindUnexpectedReport, "command report needs %d bytes, got %d", commandReportSize, len(buf))
	}
	be := binary.BigEndian
	return CommandReport{
		Opcode:    Opcode(be.Uint16(buf[0:2])),
		Addr:      be.Uint32(buf[2:6]),
		Format:    Format(buf[6]),
		DataCount: be.Uint32(buf[7:11]),
		DataParam: be.Uint32(buf[11:15]),
	}, nil
}

// StatusReport is the 4-byte completion code carried on ReportStatus
// (spec §4.3, §6.2: little-endian data payload).
type StatusReport struct {
	Value uint32
}

func ParseStatusReport(buf []byte) (StatusReport, error) {
	if len(buf) < 4 {
		return StatusReport{}, newErr(KindUnexpectedReport, "status report needs 4 bytes, got %d", len(buf))
	}
	return StatusReport{Value: binary.LittleEndian.Uint32(buf[0:4])}, nil
}

// HABReport is the 4-byte HAB security-configuration word carried on
// ReportHAB ahead of every command's final status (spec §4.3).
type HABReport struct {
	Value uint32
}

func ParseHABReport(buf []byte) (HABReport, error) {
	if len(buf) < 4 {
		return HABReport{}, newErr(KindUnexpectedReport, "hab report needs 4 bytes, got %d", len(buf))
	}
	return HABReport{Value: binary.LittleEndian.Uint32(buf[0:4])}, nil
}

// Known HAB status words reported on ReportHAB (spec §4.3): one for a
// secure-fused device, one for a non-secure/engineering-fuse device.
// Anything else is a device-level error.
const (
	HABStatusSecure    uint32 = 0x12343412
	HABStatusNonsecure uint32 = 0x56787856
)

func habStatusOK(v uint32) bool {
	return v == HABStatusSecure || v == HABStatusNonsecure
}

// WriteSuccessCode is the Report-4 completion code that signals a
// successful Write Register / Write File / Write DCD / Write CSF
// (spec §4.3, §8 scenario 4).
const WriteSuccessCode uint32 = 0x128A8A12
