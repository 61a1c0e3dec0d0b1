package runtime

import "github.com/Geckos-Ink/fayasm-sub000/internal/buildoptions"

// RuntimeConfig is an immutable, fluently-built configuration for a
// Runtime. Each With* method returns a modified copy, so a base config
// can be shared and specialized without aliasing surprises.
type RuntimeConfig struct {
	maxCallDepth              int
	valueStackSize            int
	memoryLimitPages          uint32
	allowImportedMemoryGrowth bool

	// microcodeEnable overrides the default pure-handler dispatch path
	// when non-nil: true forces every pure opcode through its
	// Descriptor.Handler, false forces the job package's general
	// fallback path instead. Left nil, the job package decides.
	microcodeEnable *bool
	jitPrescan      bool
	jitPrescanForce bool
}

// NewRuntimeConfig returns the default configuration: the buildoptions
// ceilings, a 4 GiB memory limit (65536 pages, the core spec's own
// address-space ceiling for 32-bit memories), and imported memories
// refusing to grow.
func NewRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		maxCallDepth:     buildoptions.CallStackCeiling,
		valueStackSize:   buildoptions.ValueStackSizeCeiling,
		memoryLimitPages: 65536,
	}
}

func (c RuntimeConfig) WithMaxCallDepth(n int) RuntimeConfig {
	c.maxCallDepth = n
	return c
}

func (c RuntimeConfig) MaxCallDepth() int { return c.maxCallDepth }

func (c RuntimeConfig) WithValueStackSize(n int) RuntimeConfig {
	c.valueStackSize = n
	return c
}

func (c RuntimeConfig) ValueStackSize() int { return c.valueStackSize }

func (c RuntimeConfig) WithMemoryLimitPages(n uint32) RuntimeConfig {
	c.memoryLimitPages = n
	return c
}

// WithMicrocodeEnable forces the pure-handler dispatch path on or off,
// overriding whatever the job package would otherwise decide.
func (c RuntimeConfig) WithMicrocodeEnable(enable bool) RuntimeConfig {
	c.microcodeEnable = &enable
	return c
}

// MicrocodeEnable reports the override and whether one was set.
func (c RuntimeConfig) MicrocodeEnable() (enable bool, overridden bool) {
	if c.microcodeEnable == nil {
		return false, false
	}
	return *c.microcodeEnable, true
}

// WithJitPrescan requests every defined function body be prepared (and,
// per WithJitPrescanForce, spilled) eagerly at Attach rather than on
// first call.
func (c RuntimeConfig) WithJitPrescan(enable bool) RuntimeConfig {
	c.jitPrescan = enable
	return c
}

func (c RuntimeConfig) JitPrescan() bool { return c.jitPrescan }

// WithJitPrescanForce requests prescan run even if the advantage score
// would otherwise keep the tier off.
func (c RuntimeConfig) WithJitPrescanForce(enable bool) RuntimeConfig {
	c.jitPrescanForce = enable
	return c
}

func (c RuntimeConfig) JitPrescanForce() bool { return c.jitPrescanForce }

// WithAllowImportedMemoryGrowth lets memory.grow succeed against an
// imported memory. By default it is refused, since growing a memory
// another module instance may also be addressing could invalidate that
// instance's own bounds assumptions out from under it.
func (c RuntimeConfig) WithAllowImportedMemoryGrowth(allow bool) RuntimeConfig {
	c.allowImportedMemoryGrowth = allow
	return c
}

func (c RuntimeConfig) AllowImportedMemoryGrowth() bool { return c.allowImportedMemoryGrowth }
