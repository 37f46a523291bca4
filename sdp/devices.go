package sdp

// DeviceID identifies a ROM-loader USB device by VID/PID.
type DeviceID struct {
	VID uint16
	PID uint16
}

// Profile describes the HID report sizing and byte order quirks of one
// chip family's SDP implementation (spec §4.3: "chip-specific HID
// profiles"). Every profile in this codec uses big-endian command fields;
// ReportSize varies because some ROMs pad the command report to a longer
// fixed HID report length.
type Profile struct {
	Name        string
	ReportSize  int // full HID report length, including the report ID byte
	MaxTransfer int // largest single ReportData payload the ROM accepts
}

var knownDevices = map[DeviceID]Profile{
	{VID: 0x15A2, PID: 0x0054}: {Name: "imx6", ReportSize: 1025, MaxTransfer: 1024},
	{VID: 0x15A2, PID: 0x0061}: {Name: "imx6sl", ReportSize: 1025, MaxTransfer: 1024},
	{VID: 0x15A2, PID: 0x0052}: {Name: "imx7d", ReportSize: 1025, MaxTransfer: 1024},
	{VID: 0x1FC9, PID: 0x0130}: {Name: "imx8qxp", ReportSize: 1025, MaxTransfer: 1024},
	{VID: 0x1FC9, PID: 0x0129}: {Name: "imx8qm", ReportSize: 1025, MaxTransfer: 1024},
	{VID: 0x1FC9, PID: 0x0135}: {Name: "vybrid", ReportSize: 65, MaxTransfer: 64},
}

// LookupProfile resolves a device's HID profile by its enumerated VID/PID.
func LookupProfile(id DeviceID) (Profile, bool) {
	p, ok := knownDevices[id]
	return p, ok
}

// TargetSelector picks a Profile either by known device identity or by an
// explicit profile override, for boards whose ROM isn't in knownDevices.
type TargetSelector struct {
	Device  *DeviceID
	Profile *Profile
}

// ByDevice selects a profile by VID/PID.
func ByDevice(id DeviceID) TargetSelector { return TargetSelector{Device: &id} }

// ByProfile pins an explicit profile, bypassing the known-device table.
func ByProfile(p Profile) TargetSelector { return TargetSelector{Profile: &p} }

// Resolve returns the selected profile.
func (s TargetSelector) Resolve() (Profile, error) {
	if s.Profile != nil {
		return *s.Profile, nil
	}
	if s.Device != nil {
		if p, ok := LookupProfile(*s.Device); ok {
			return p, nil
		}
		return Profile{}, newErr(KindUnsupportedOpcode, "no known profile for vid=0x%04x pid=0x%04x", s.Device.VID, s.Device.PID)
	}
	return Profile{}, newErr(KindUnsupportedOpcode, "empty target selector")
}
