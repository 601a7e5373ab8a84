// Package entities provides the core domain types shared across divine:
// artifacts and their hex chunks, the persisted store record, invocation
// results, and the caller-facing request/response pair.
package entities
