package sdp_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/molejar/goimx/sdp"
	"github.com/molejar/goimx/sdp/sdptest"
)

func statusWords(tp *sdptest.Transport) {
	tp.Reply(sdp.ReportHAB, leWord(0x56787856))
	tp.Reply(sdp.ReportStatus, leWord(sdp.WriteSuccessCode))
}

func leWord(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// TestReadRegister is spec §8 scenario 4: a mocked HID transport answers a
// Read Register command with an interim HAB report then a little-endian
// Report-4 payload, and Client decodes the word.
func TestReadRegister(t *testing.T) {
	tp := &sdptest.Transport{}
	tp.Reply(sdp.ReportHAB, leWord(0x56787856))
	tp.Reply(sdp.ReportStatus, leWord(0xdeadbeef))

	c := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 65, MaxTransfer: 64})
	got, err := c.ReadRegister(context.Background(), 0x30340004, sdp.Format32, 1)
	if err != nil {
		t.Fatalf("ReadRegister: %v", err)
	}
	if len(got) != 1 || got[0] != 0xdeadbeef {
		t.Fatalf("ReadRegister = %#v, want [0xdeadbeef]", got)
	}
	if len(tp.Sent) != 1 || tp.Sent[0].ID != sdp.ReportCommand {
		t.Fatalf("expected exactly one command report sent")
	}
}

// TestReadRegisterHabStatusError is spec §4.3: a non-standard HAB word fails
// the call with HabStatusError.
func TestReadRegisterHabStatusError(t *testing.T) {
	tp := &sdptest.Transport{}
	tp.Reply(sdp.ReportHAB, leWord(0xdeadbeef))

	c := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 65, MaxTransfer: 64})
	if _, err := c.ReadRegister(context.Background(), 0x30340004, sdp.Format32, 1); err == nil {
		t.Fatal("expected HabStatusError")
	} else if err.(*sdp.Error).Kind != sdp.KindHabStatusError {
		t.Fatalf("unexpected kind: %v", err)
	}
}

// TestWriteRegister is spec §8 scenario 4: write_register(0x00900000,
// 0x55555555) emits the documented command, and the mocked interim
// (0x56787856) plus final (0x128A8A12) reports make the call succeed.
func TestWriteRegister(t *testing.T) {
	tp := &sdptest.Transport{}
	statusWords(tp)

	c := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 65, MaxTransfer: 64})
	if err := c.WriteRegister(context.Background(), 0x00900000, 0x55555555, sdp.Format32); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	cmd, err := sdp.ParseCommandReport(tp.Sent[0].Data)
	if err != nil {
		t.Fatalf("ParseCommandReport: %v", err)
	}
	if cmd.Opcode != sdp.OpWriteRegister || cmd.Addr != 0x00900000 || cmd.DataParam != 0x55555555 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

// TestWriteRegisterDeviceError: a non-success completion code fails the
// call with DeviceError (spec §4.3).
func TestWriteRegisterDeviceError(t *testing.T) {
	tp := &sdptest.Transport{}
	tp.Reply(sdp.ReportHAB, leWord(0x56787856))
	tp.Reply(sdp.ReportStatus, leWord(0xDEADBEEF))

	c := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 65, MaxTransfer: 64})
	if err := c.WriteRegister(context.Background(), 0x30340004, 0x1, sdp.Format32); err == nil {
		t.Fatal("expected DeviceError")
	} else if err.(*sdp.Error).Kind != sdp.KindDeviceError {
		t.Fatalf("unexpected kind: %v", err)
	}
}

func TestWriteFileChunksAndConsumesHabAndStatus(t *testing.T) {
	tp := &sdptest.Transport{}
	statusWords(tp)

	c := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 9, MaxTransfer: 8})
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := c.WriteFile(context.Background(), 0x87800000, payload); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// command report + 3 data chunks (8, 8, 4); exactly one HAB report and
	// one status report are consumed by awaitSuccess, leaving no replies
	// unread.
	dataReports := 0
	for _, r := range tp.Sent {
		if r.ID == sdp.ReportData {
			dataReports++
		}
	}
	if dataReports != 3 {
		t.Fatalf("expected 3 data reports, got %d", dataReports)
	}
	if len(tp.Replies) != 0 {
		t.Fatalf("expected all queued replies consumed, %d left", len(tp.Replies))
	}
}

func TestReceiveReportErrorSurfacesAsTransportError(t *testing.T) {
	tp := &sdptest.Transport{}
	c := sdp.New(tp, sdp.Profile{})
	if _, err := c.ReadRegister(context.Background(), 0, sdp.Format32, 1); err == nil {
		t.Fatal("expected an error when no reply is queued")
	} else if !(err.(*sdp.Error).Kind == sdp.KindTransportError) {
		t.Fatalf("expected KindTransportError, got %v", err)
	}
}

func TestJumpOnlyConsumesInterimReport(t *testing.T) {
	tp := &sdptest.Transport{}
	tp.Reply(sdp.ReportHAB, leWord(0x56787856))

	c := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 65, MaxTransfer: 64})
	if err := c.Jump(context.Background(), 0x87800000); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	cmd, err := sdp.ParseCommandReport(tp.Sent[0].Data)
	if err != nil {
		t.Fatalf("ParseCommandReport: %v", err)
	}
	if cmd.Opcode != sdp.OpJumpAddress {
		t.Fatalf("unexpected opcode: %v", cmd.Opcode)
	}
}
