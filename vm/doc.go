// Package vm implements the Pica dispatch runtime.
//
// This package contains:
//   - Value classification into numeric kinds, null and object classes
//   - The numeric promotion lattice and binary arithmetic
//   - Per-class method tables and the registry that owns them
//   - Multi-method resolution by receiver and argument classes
//   - Call sites with guarded inline caches and a shared megamorphic cache
package vm
