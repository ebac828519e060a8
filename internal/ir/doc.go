// Package ir provides the canonical intermediate representation types for the
// behavior engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps IR the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Values are a sealed set: IRInt, IRFloat, IRBool, IRString
//   - Floats serialize through a single deterministic formatter so journals
//     compare byte-for-byte across runs
//   - All JSON tags use snake_case
//   - Logical sequence numbers only, never wall-clock timestamps
package ir
