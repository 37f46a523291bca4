package smartboot

import (
	"context"

	"github.com/molejar/goimx/dcd"
	"github.com/molejar/goimx/sdp"
)

// Interpreter executes a Program against a live SDP session. Resolver
// materializes the DATA segments a recipe's WDCD/WIMG/JRUN instructions
// reference by name.
type Interpreter struct {
	Client   *sdp.Client
	Resolver *Resolver

	lastIMXSelf     uint32
	haveLastIMXSelf bool
}

// Run executes every instruction in order, stopping at the first error
// (spec §4.4: "aborts the recipe").
func (in *Interpreter) Run(ctx context.Context, p Program) error {
	for _, instr := range p.Instructions {
		if err := in.step(ctx, instr); err != nil {
			return err
		}
	}
	return nil
}

// resolveAddr returns explicit if non-nil, else the named segment's own
// ADDR (spec §4.4: "if both present, the command argument wins").
func (in *Interpreter) resolveAddr(explicit *uint32, dataKey string) (uint32, error) {
	if explicit != nil {
		return *explicit, nil
	}
	return in.Resolver.Addr(dataKey)
}

func (in *Interpreter) step(ctx context.Context, instr Instruction) error {
	switch cmd := instr.(type) {
	case WReg:
		return in.Client.WriteRegister(ctx, cmd.Addr, cmd.Value, cmd.Format)

	case WDcd:
		raw, err := in.Resolver.Blob(cmd.DataKey)
		if err != nil {
			return err
		}
		addr, err := in.resolveAddr(cmd.Addr, cmd.DataKey)
		if err != nil {
			return err
		}
		prog, err := dcd.ParseBinary(raw)
		if err != nil {
			return newErr(KindMalformedRecipe, "WDCD %s: %v", cmd.DataKey, err)
		}
		return in.Client.WriteDCD(ctx, prog, addr)

	case WImg:
		raw, err := in.Resolver.Blob(cmd.DataKey)
		if err != nil {
			return err
		}
		addr, err := in.resolveAddr(cmd.Addr, cmd.DataKey)
		if err != nil {
			return err
		}
		if err := in.Client.WriteFile(ctx, addr, raw); err != nil {
			return err
		}
		if self, err := in.Resolver.ImageSelf(cmd.DataKey); err == nil {
			in.lastIMXSelf = self
			in.haveLastIMXSelf = true
		}
		return nil

	case SDcd:
		if !in.haveLastIMXSelf {
			return newErr(KindMalformedRecipe, "SDCD: no IMX image has been written yet")
		}
		return in.Client.SkipDCDHeader(ctx, in.lastIMXSelf)

	case JRun:
		if cmd.Addr != nil {
			return in.Client.Jump(ctx, *cmd.Addr)
		}
		self, err := in.Resolver.ImageSelf(cmd.DataKey)
		if err != nil {
			return err
		}
		return in.Client.Jump(ctx, self)

	default:
		return newErr(KindUnknownInstruction, "%T", instr)
	}
}
