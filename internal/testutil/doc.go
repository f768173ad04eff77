// Package testutil contains helpers shared by tests: fluent builders for
// game state and nested batches, an observer that records what an event bus
// delivered and a scripted model provider. They are not intended for
// production usage.
package testutil
