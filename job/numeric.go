package job

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
)

// handleConst pushes a const opcode's already-decoded immediate
// verbatim: Prepare stores it pre-packed into the value stack's bit
// layout (low 32 bits for i32/f32, full 64 bits for i64/f64).
func (j *Job) handleConst(op jit.PreparedOp) *api.Error {
	if err := j.Values.Push(op.Immediates[0]); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

// handlePure dispatches every opcode whose Descriptor carries a pure
// Handler (comparison/arithmetic/conversion/sign-extension) or a memarg
// (load/store, handled by handleMemArg since those need live memory
// access a pure function signature can't express).
func (j *Job) handlePure(op jit.PreparedOp) *api.Error {
	d := op.Descriptor
	if d == nil {
		return api.NewError(api.UnimplementedOpcode, "opcode 0x%02x has no descriptor", op.Opcode)
	}
	if d.HasMemArg {
		return j.handleMemArg(op)
	}
	if d.Handler == nil {
		return api.NewError(api.UnimplementedOpcode, "opcode 0x%02x has no pure handler", op.Opcode)
	}
	args, err := j.Values.PopN(d.NumPull)
	if err != nil {
		return err.(*api.Error)
	}
	result, herr := d.Handler(args)
	if herr != nil {
		return herr
	}
	if err := j.Values.Push(result); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}
