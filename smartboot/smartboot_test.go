package smartboot_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/molejar/goimx/dcd"
	"github.com/molejar/goimx/sdp"
	"github.com/molejar/goimx/sdp/sdptest"
	"github.com/molejar/goimx/smartboot"
)

const sampleRecipe = `
HEAD:
  NAME: evk
  CHIP: imx8mq
VARS:
  LOAD_ADDR: "0x87800000"
DATA:
  app:
    TYPE: BIN
    ADDR: "{{ LOAD_ADDR }}"
    FILE: "build/u-boot.bin"
BODY:
  CMDS: |
    WREG 4 0x30340004 0x4F400005
    WIMG app {{ LOAD_ADDR }}
    JRUN {{ LOAD_ADDR }}
`

func statusWords(tp *sdptest.Transport) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, sdp.HABStatusNonsecure)
	tp.Reply(sdp.ReportHAB, b)
	binary.LittleEndian.PutUint32(b, sdp.WriteSuccessCode)
	tp.Reply(sdp.ReportStatus, b)
}

func noopReadFile(segs map[string][]byte) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if b, ok := segs[path]; ok {
			return b, nil
		}
		return nil, fmt.Errorf("no such file: %s", path)
	}
}

func TestParseRecipeSubstitutesVars(t *testing.T) {
	r, err := smartboot.ParseRecipe(sampleRecipe)
	if err != nil {
		t.Fatalf("ParseRecipe: %v", err)
	}
	seg, ok := r.Data["app"]
	if !ok || seg.Addr != "0x87800000" {
		t.Fatalf("DATA substitution failed: %+v", seg)
	}

	prog, err := smartboot.ParseCmds(r.Body.Cmds)
	if err != nil {
		t.Fatalf("ParseCmds: %v", err)
	}
	if len(prog.Instructions) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(prog.Instructions))
	}
	jrun, ok := prog.Instructions[2].(smartboot.JRun)
	if !ok || jrun.Addr == nil || *jrun.Addr != 0x87800000 {
		t.Fatalf("expected JRUN 0x87800000, got %+v", prog.Instructions[2])
	}
}

func TestUnresolvedVariableFailsClosed(t *testing.T) {
	_, err := smartboot.Substitute("WREG 4 {{ MISSING }} 0x1", nil)
	if err == nil {
		t.Fatal("expected UnresolvedVariable error")
	}
	if err.(*smartboot.Error).Kind != smartboot.KindUnresolvedVariable {
		t.Fatalf("unexpected kind: %v", err)
	}
}

func TestParseCmdsWregNeedsByteWidth(t *testing.T) {
	if _, err := smartboot.ParseCmds("WREG 0x30340004 0x4F400005\n"); err == nil {
		t.Fatal("expected MalformedRecipe for 2-argument WREG")
	}
	prog, err := smartboot.ParseCmds("WREG 4 0x30340004 0x4F400005\n")
	if err != nil {
		t.Fatalf("ParseCmds: %v", err)
	}
	wreg, ok := prog.Instructions[0].(smartboot.WReg)
	if !ok || wreg.Format != sdp.Format32 || wreg.Addr != 0x30340004 || wreg.Value != 0x4F400005 {
		t.Fatalf("unexpected WREG: %+v", prog.Instructions[0])
	}
}

func TestParseCmdsSdcdTakesNoArgument(t *testing.T) {
	if _, err := smartboot.ParseCmds("SDCD 0x87800000\n"); err == nil {
		t.Fatal("expected MalformedRecipe for SDCD with an argument")
	}
	prog, err := smartboot.ParseCmds("SDCD\n")
	if err != nil {
		t.Fatalf("ParseCmds: %v", err)
	}
	if _, ok := prog.Instructions[0].(smartboot.SDcd); !ok {
		t.Fatalf("expected SDcd, got %+v", prog.Instructions[0])
	}
}

func TestParseCmdsWdcdAndWimgAddressOptional(t *testing.T) {
	prog, err := smartboot.ParseCmds("WDCD dcd\nWIMG app\n")
	if err != nil {
		t.Fatalf("ParseCmds: %v", err)
	}
	wdcd, ok := prog.Instructions[0].(smartboot.WDcd)
	if !ok || wdcd.DataKey != "dcd" || wdcd.Addr != nil {
		t.Fatalf("unexpected WDCD: %+v", prog.Instructions[0])
	}
	wimg, ok := prog.Instructions[1].(smartboot.WImg)
	if !ok || wimg.DataKey != "app" || wimg.Addr != nil {
		t.Fatalf("unexpected WIMG: %+v", prog.Instructions[1])
	}
}

func TestParseCmdsJrunAcceptsDataName(t *testing.T) {
	prog, err := smartboot.ParseCmds("JRUN app\n")
	if err != nil {
		t.Fatalf("ParseCmds: %v", err)
	}
	jrun, ok := prog.Instructions[0].(smartboot.JRun)
	if !ok || jrun.Addr != nil || jrun.DataKey != "app" {
		t.Fatalf("unexpected JRUN: %+v", prog.Instructions[0])
	}
}

func TestInterpreterRunsProgram(t *testing.T) {
	prog, err := smartboot.ParseCmds("WREG 4 0x30340004 0x4F400005\nWIMG app 0x87800000\nJRUN 0x87800000\n")
	if err != nil {
		t.Fatalf("ParseCmds: %v", err)
	}

	tp := &sdptest.Transport{}
	statusWords(tp) // WREG
	statusWords(tp) // WIMG
	tp.Reply(sdp.ReportHAB, func() []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, sdp.HABStatusNonsecure)
		return b
	}()) // JRUN only consumes the interim report
	client := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 65, MaxTransfer: 64})

	resolver := smartboot.NewResolver(map[string]smartboot.DataSegment{
		"app": {Type: smartboot.SegBIN, Addr: "0x87800000", Inline: "66616b6520752d626f6f74206279746573"},
	}, noopReadFile(nil))

	in := &smartboot.Interpreter{Client: client, Resolver: resolver}
	if err := in.Run(context.Background(), prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestInterpreterWriteDCD(t *testing.T) {
	progBin, err := dcd.Program{Commands: []dcd.Command{
		dcd.WriteData{Op: dcd.WriteValue, Width: 4, Entries: []dcd.Entry{{Addr: 0x30340004, Value: 0x4F400005}}},
	}}.ExportBinary()
	if err != nil {
		t.Fatalf("ExportBinary: %v", err)
	}

	tp := &sdptest.Transport{}
	statusWords(tp)
	client := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 65, MaxTransfer: 64})

	resolver := smartboot.NewResolver(map[string]smartboot.DataSegment{
		"dcd": {Type: smartboot.SegDCD, Addr: "0x00910000", Inline: fmt.Sprintf("%x", progBin)},
	}, noopReadFile(nil))
	in := &smartboot.Interpreter{Client: client, Resolver: resolver}

	if err := in.Run(context.Background(), smartboot.Program{Instructions: []smartboot.Instruction{smartboot.WDcd{DataKey: "dcd"}}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestInterpreterSdcdNeedsPriorImage(t *testing.T) {
	tp := &sdptest.Transport{}
	client := sdp.New(tp, sdp.Profile{Name: "test", ReportSize: 65, MaxTransfer: 64})
	resolver := smartboot.NewResolver(nil, noopReadFile(nil))
	in := &smartboot.Interpreter{Client: client, Resolver: resolver}

	err := in.Run(context.Background(), smartboot.Program{Instructions: []smartboot.Instruction{smartboot.SDcd{}}})
	if err == nil {
		t.Fatal("expected MalformedRecipe: no IMX image written yet")
	}
	if err.(*smartboot.Error).Kind != smartboot.KindMalformedRecipe {
		t.Fatalf("unexpected kind: %v", err)
	}
}

func TestResolverAddrUnknownSegment(t *testing.T) {
	resolver := smartboot.NewResolver(nil, noopReadFile(nil))
	if _, err := resolver.Addr("missing"); err == nil {
		t.Fatal("expected UnknownSegmentRef")
	} else if err.(*smartboot.Error).Kind != smartboot.KindUnknownSegmentRef {
		t.Fatalf("unexpected kind: %v", err)
	}
}

func TestResolverBlobCachesAndDecodesInline(t *testing.T) {
	resolver := smartboot.NewResolver(map[string]smartboot.DataSegment{
		"bin": {Type: smartboot.SegBIN, Inline: "cafe"},
	}, noopReadFile(nil))
	b, err := resolver.Blob("bin")
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	if len(b) != 2 || b[0] != 0xca || b[1] != 0xfe {
		t.Fatalf("unexpected blob: %x", b)
	}
	b2, err := resolver.Blob("bin")
	if err != nil || &b2[0] != &b[0] {
		t.Fatalf("expected cached blob on second call")
	}
}

func TestApplyEnvPatchMergePreservesUnlistedKeys(t *testing.T) {
	buf := []byte("prefix\x00bootdelay=3\x00baudrate=115200\x00" + string(make([]byte, 20)))
	for i := range buf[len("prefix\x00bootdelay=3\x00baudrate=115200\x00"):] {
		buf[len("prefix\x00bootdelay=3\x00baudrate=115200\x00")+i] = 0xFF
	}
	spec := smartboot.PatchSpec{Mode: smartboot.PatchMerge, Eval: "bootdelay = 0"}
	if err := smartboot.ApplyEnvPatch(buf, spec); err != nil {
		t.Fatalf("ApplyEnvPatch: %v", err)
	}
	s := string(buf)
	if !contains(s, "bootdelay=0\x00") {
		t.Fatalf("bootdelay not overridden: %q", s)
	}
	if !contains(s, "baudrate=115200\x00") {
		t.Fatalf("baudrate dropped by merge: %q", s)
	}
}

func TestApplyEnvPatchReplaceDropsExistingEntries(t *testing.T) {
	region := "bootdelay=3\x00baudrate=115200\x00"
	buf := append([]byte(region), make([]byte, 20)...)
	for i := len(region); i < len(buf); i++ {
		buf[i] = 0xFF
	}
	spec := smartboot.PatchSpec{Mode: smartboot.PatchReplace, Eval: "bootdelay = 1"}
	if err := smartboot.ApplyEnvPatch(buf, spec); err != nil {
		t.Fatalf("ApplyEnvPatch: %v", err)
	}
	s := string(buf)
	if contains(s, "baudrate") {
		t.Fatalf("replace should have dropped baudrate: %q", s)
	}
	if !contains(s, "bootdelay=1\x00") {
		t.Fatalf("bootdelay missing: %q", s)
	}
}

func TestApplyEnvPatchMarkNotFound(t *testing.T) {
	buf := []byte("no env region here")
	err := smartboot.ApplyEnvPatch(buf, smartboot.PatchSpec{Mode: smartboot.PatchMerge, Eval: "x=1"})
	if err == nil {
		t.Fatal("expected MalformedRecipe for missing mark")
	}
	if err.(*smartboot.Error).Kind != smartboot.KindMalformedRecipe {
		t.Fatalf("unexpected kind: %v", err)
	}
}

func TestApplyEnvPatchRejectsOversizedRegion(t *testing.T) {
	buf := []byte("bootdelay=3\xFF\xFF\xFF\xFF")
	spec := smartboot.PatchSpec{Mode: smartboot.PatchReplace, Eval: "bootdelay = 999999999999999999999"}
	if err := smartboot.ApplyEnvPatch(buf, spec); err == nil {
		t.Fatal("expected MalformedRecipe for an oversized rendered region")
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
