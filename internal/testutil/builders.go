package testutil

import (
	"github.com/hupe1980/ifai/core"
)

// StateBuilder helps construct game states with fluent chaining.
// Example:
//
//	st := NewStateBuilder("cellar").Describe("A damp cellar.").Carry("lamp").Turn(3).Build()
type StateBuilder struct {
	state core.GameState
}

// NewStateBuilder starts a state in the given room.
func NewStateBuilder(roomID string) *StateBuilder {
	return &StateBuilder{state: core.GameState{RoomID: roomID}}
}

// Describe sets the room description (chainable).
func (b *StateBuilder) Describe(text string) *StateBuilder { b.state.RoomDescription = text; return b }

// Carry appends inventory items (chainable).
func (b *StateBuilder) Carry(items ...string) *StateBuilder {
	b.state.Inventory = append(b.state.Inventory, items...)
	return b
}

// Turn sets the turn counter (chainable).
func (b *StateBuilder) Turn(n int) *StateBuilder { b.state.Turn = n; return b }

// Build returns a copy of the accumulated state.
func (b *StateBuilder) Build() core.GameState { return b.state.Clone() }

// BatchBuilder assembles possibly nested batches.
// Example:
//
//	b := NewBatchBuilder().Say("a").Nest(NewBatchBuilder().Say("b")).Clear().Build()
type BatchBuilder struct {
	msgs []core.Message
}

// NewBatchBuilder creates an empty builder.
func NewBatchBuilder() *BatchBuilder { return &BatchBuilder{} }

// Say appends a narrator history item (chainable).
func (b *BatchBuilder) Say(text string) *BatchBuilder {
	return b.Add(core.NewHistory(core.SourceNarrator, text))
}

// Echo appends a player history item (chainable).
func (b *BatchBuilder) Echo(text string) *BatchBuilder {
	return b.Add(core.NewHistory(core.SourcePlayer, text))
}

// Debug appends a diagnostic line (chainable).
func (b *BatchBuilder) Debug(text string) *BatchBuilder {
	return b.Add(core.DebugOutputMessage{Message: text})
}

// Clear appends a ClearScreen message (chainable).
func (b *BatchBuilder) Clear() *BatchBuilder { return b.Add(core.ClearScreen{}) }

// Nest appends the batch built by inner (chainable).
func (b *BatchBuilder) Nest(inner *BatchBuilder) *BatchBuilder { return b.Add(inner.Build()) }

// Add appends arbitrary messages (chainable).
func (b *BatchBuilder) Add(msgs ...core.Message) *BatchBuilder {
	b.msgs = append(b.msgs, msgs...)
	return b
}

// Build returns the batch.
func (b *BatchBuilder) Build() core.Batch { return core.NewBatch(b.msgs...) }
