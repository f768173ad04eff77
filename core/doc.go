// Package core defines the contracts that cross the engine boundary of ifai:
// the inbound command family, the outbound message family (including the
// recursive Batch), the opaque game state snapshot, role-tagged chat messages
// and the sentinel errors shared by every other package.
//
// The package performs no I/O. Concrete behavior lives in the eventbus,
// engine, dispatch and conversation packages, all of which depend on core and
// never on each other's internals.
package core
