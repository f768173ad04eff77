// Package dispatch is the front-end side of the engine boundary.
//
// A Dispatcher subscribes to an engine's output, flattens batches and
// routes every leaf message to exactly one handler method, maintaining a
// view state (room description, latest game state, narrative history and
// debug lines) that a GUI or TUI renders. It also forwards player input to
// the engine and runs the orderly shutdown a RequestQuit message asks for.
package dispatch
