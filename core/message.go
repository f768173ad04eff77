package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageKind names a variant of the outbound message family.
type MessageKind string

const (
	MessageKindUpdatedGameState   MessageKind = "updated_game_state"
	MessageKindNewHistoryItem     MessageKind = "new_history_item"
	MessageKindClearScreen        MessageKind = "clear_screen"
	MessageKindDebugOutputResult  MessageKind = "debug_output_result"
	MessageKindDebugOutputMessage MessageKind = "debug_output_message"
	MessageKindRequestQuit        MessageKind = "request_quit"
	MessageKindBatch              MessageKind = "batch"
)

// Message is the outbound event family published by the engine.
//
// The set of variants is closed: the unexported marker keeps other packages
// from adding variants, and every variant except Batch is a Leaf that knows
// how to dispatch itself to a Handler. Adding a leaf therefore means adding a
// method to Handler, which fails compilation at every dispatch site that has
// not been updated.
type Message interface {
	Kind() MessageKind
	message()
}

// Leaf is any non-batch Message.
type Leaf interface {
	Message
	Dispatch(h Handler)
}

// Handler receives flattened leaf messages, one method per variant.
type Handler interface {
	OnUpdatedGameState(m UpdatedGameState)
	OnNewHistoryItem(m NewHistoryItem)
	OnClearScreen(m ClearScreen)
	OnDebugOutputResult(m DebugOutputResult)
	OnDebugOutputMessage(m DebugOutputMessage)
	OnRequestQuit(m RequestQuit)
}

// UpdatedGameState carries a new authoritative state snapshot.
type UpdatedGameState struct {
	State GameState `json:"state"`
}

func (UpdatedGameState) Kind() MessageKind    { return MessageKindUpdatedGameState }
func (UpdatedGameState) message()             {}
func (m UpdatedGameState) Dispatch(h Handler) { h.OnUpdatedGameState(m) }

// HistorySource tells a front-end who produced a narrative line.
type HistorySource string

const (
	SourcePlayer   HistorySource = "player"
	SourceNarrator HistorySource = "narrator"
	SourceSystem   HistorySource = "system"
)

// NewHistoryItem is one line appended to the narrative log.
type NewHistoryItem struct {
	ID        string        `json:"id"`
	Source    HistorySource `json:"source"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewHistory builds a history item with a fresh id and a UTC timestamp.
func NewHistory(source HistorySource, text string) NewHistoryItem {
	return NewHistoryItem{ID: uuid.NewString(), Source: source, Text: text, Timestamp: time.Now().UTC()}
}

func (NewHistoryItem) Kind() MessageKind    { return MessageKindNewHistoryItem }
func (NewHistoryItem) message()             {}
func (m NewHistoryItem) Dispatch(h Handler) { h.OnNewHistoryItem(m) }

// ClearScreen instructs front-ends to reset all transient display state.
type ClearScreen struct{}

func (ClearScreen) Kind() MessageKind    { return MessageKindClearScreen }
func (ClearScreen) message()             {}
func (m ClearScreen) Dispatch(h Handler) { h.OnClearScreen(m) }

// DebugOutputResult carries an internal value for tracing. Front-ends only
// stringify it.
type DebugOutputResult struct {
	Value any `json:"value"`
}

// String renders the carried value the way a debug log shows it.
func (m DebugOutputResult) String() string { return fmt.Sprintf("%v", m.Value) }

func (DebugOutputResult) Kind() MessageKind    { return MessageKindDebugOutputResult }
func (DebugOutputResult) message()             {}
func (m DebugOutputResult) Dispatch(h Handler) { h.OnDebugOutputResult(m) }

// DebugOutputMessage is a human readable trace line.
type DebugOutputMessage struct {
	Message string `json:"message"`
}

func (DebugOutputMessage) Kind() MessageKind    { return MessageKindDebugOutputMessage }
func (DebugOutputMessage) message()             {}
func (m DebugOutputMessage) Dispatch(h Handler) { h.OnDebugOutputMessage(m) }

// RequestQuit asks the host to terminate.
type RequestQuit struct{}

func (RequestQuit) Kind() MessageKind    { return MessageKindRequestQuit }
func (RequestQuit) message()             {}
func (m RequestQuit) Dispatch(h Handler) { h.OnRequestQuit(m) }

// Batch groups messages that must be perceived as one update. Members may be
// batches themselves.
type Batch struct {
	Messages []Message `json:"messages"`
}

// NewBatch is shorthand for Batch{Messages: msgs}.
func NewBatch(msgs ...Message) Batch { return Batch{Messages: msgs} }

func (Batch) Kind() MessageKind { return MessageKindBatch }
func (Batch) message()          {}
