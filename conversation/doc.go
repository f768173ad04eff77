// Package conversation keeps dialogue history for AI-assisted narration.
//
// A Session owns one dialogue: an optional system directive plus the
// ordered user and assistant turns. Prompt appends the user turn, sends
// the system directive followed by the full history to a model.Provider
// and records the joined reply as one assistant turn.
//
// Prompt calls on one Session are serialized internally, so a front-end may
// fire them from any goroutine without corrupting the history order. A
// Store indexes independent sessions by id.
package conversation
