// Package host runs guest artifacts.
//
// An Executor owns a wazero runtime with the js and target host modules
// registered once. Each Run compiles the artifact (cached by digest),
// checks it against the allocator ABI, instantiates a fresh anonymous
// instance, calls main, decodes the returned fragment list, and hands every
// record it read back to the guest's deallocation exports before closing the
// instance.
package host
