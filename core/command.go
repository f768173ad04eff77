package core

// CommandKind identifies the route a command takes through the engine handler.
type CommandKind string

const (
	// CommandKindUserInput carries free text typed by the player.
	CommandKindUserInput CommandKind = "user_input"
	// CommandKindQuit asks the engine to request host termination.
	CommandKindQuit CommandKind = "quit"
	// CommandKindSystem carries a named out-of-band instruction (clear, new, ...).
	CommandKindSystem CommandKind = "system"
)

// Command is the inbound message family accepted by the engine's input queue.
//
// The set is open: any package may declare its own command type by
// implementing Kind. Handlers switch on the concrete type and report kinds
// they do not understand as diagnostics instead of failing.
type Command interface {
	Kind() CommandKind
}

// UserInput is a line of text submitted by the player.
type UserInput struct {
	Text string `json:"text"`
}

// Kind implements Command.
func (UserInput) Kind() CommandKind { return CommandKindUserInput }

// Quit asks the engine to emit RequestQuit so the host can shut down.
type Quit struct{}

// Kind implements Command.
func (Quit) Kind() CommandKind { return CommandKindQuit }

// SystemCommand is a named instruction with optional arguments.
type SystemCommand struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// Kind implements Command.
func (SystemCommand) Kind() CommandKind { return CommandKindSystem }
