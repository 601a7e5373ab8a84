// Package hostfuncs implements the host side of the guest callback ABI:
// the per-invocation Binding that turns target text into guest-owned
// RawBox<RawVec<u16>> records, the randomness source behind js.random, and
// middleware for target generators.
//
// Nothing here talks to a runtime directly. infrastructure/wazero exports
// these functions to guests.
package hostfuncs
