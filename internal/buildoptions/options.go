// Package buildoptions holds compile-time constants that user-facing
// configuration defaults to, kept in their own package so they can be
// overridden by a build tag without touching call sites.
package buildoptions

// CallStackCeiling is the default maximum call stack depth before a job
// traps with err-call-depth-exceeded. RuntimeConfig.WithMaxCallDepth
// overrides this per Runtime.
const CallStackCeiling = 2000

// ValueStackSizeCeiling is the default bound on the value stack depth, at
// least the 256 entries spec.md §4.2 requires as a floor.
const ValueStackSizeCeiling = 8192

// IsTest is a constant false; no file in this module redefines it under
// a build tag, and no code in the module reads it.
const IsTest = false
