package dialog

import (
	"context"
	"encoding/json"
)

// Status classifies the result of one dialog step. Dialogs report
// authorization problems through the status instead of error values so the
// dispatcher can react without unwinding the turn.
type Status int

const (
	// StatusDone ends the dialog; any stored state is cleared.
	StatusDone Status = iota
	// StatusWaiting suspends the dialog until the next user turn.
	StatusWaiting
	// StatusUnhandled means the dialog produced no response and the
	// dispatcher should keep looking for a handler.
	StatusUnhandled
	// StatusNeedsAuth redirects the user to the connect prompt.
	StatusNeedsAuth
	// StatusForbidden surfaces Message verbatim and ends the dialog.
	StatusForbidden
)

// Outcome is the tagged result of a Begin or Resume call.
type Outcome struct {
	Status  Status
	Message string
	Next    State
}

// Done reports a completed dialog step.
func Done() Outcome { return Outcome{Status: StatusDone} }

// Wait suspends the dialog at the given step with a JSON payload carried to
// the next turn.
func Wait(dialog, step string, payload any) (Outcome, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Status: StatusWaiting,
		Next:   State{Dialog: dialog, Step: step, Payload: raw},
	}, nil
}

// NeedsAuth reports that the user must connect to Jira first.
func NeedsAuth() Outcome { return Outcome{Status: StatusNeedsAuth} }

// Forbidden reports a permission failure with a user-facing message.
func Forbidden(message string) Outcome {
	return Outcome{Status: StatusForbidden, Message: message}
}

// State is the persisted position of a suspended dialog within one
// conversation.
type State struct {
	Dialog  string          `json:"dialog"`
	Step    string          `json:"step"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Turn is one inbound chat message plus the channel to answer on.
type Turn struct {
	ConversationID string
	UserID         string
	UserName       string
	Text           string
	IsGroup        bool
	// FromCard is set for messages sourced from HTML or card attachments
	// rather than typed text.
	FromCard  bool
	Responder Responder
}

// Responder sends replies back into the conversation the turn came from.
type Responder interface {
	SendText(ctx context.Context, text string) error
	SendCard(ctx context.Context, card json.RawMessage) error
}

// Dialog is one conversational flow. Begin starts it for a matched turn;
// Resume continues a suspended flow from its stored state.
type Dialog interface {
	Name() string
	Begin(ctx context.Context, turn *Turn, options any) (Outcome, error)
	Resume(ctx context.Context, turn *Turn, state State) (Outcome, error)
}

// Registry maps dialog names to constructors. Route tables resolve every
// route through it once, at construction.
type Registry map[string]func() Dialog
