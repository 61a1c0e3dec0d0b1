package runtime

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// Global is one live global slot: its declared type plus current raw
// value, stored the same way the value stack does (low bits hold
// i32/f32, full 64 bits hold i64/f64/reference).
type Global struct {
	Type  module.GlobalType
	Value uint64
}

func (g *Global) Set(v uint64) *api.Error {
	if !g.Type.Mutable {
		return api.NewError(api.InvalidArgument, "global is immutable")
	}
	g.Value = v
	return nil
}
