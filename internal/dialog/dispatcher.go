package dialog

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
)

const (
	unknownNotice      = "Sorry, I didn't understand that. Type **help** to see what I can do."
	apologyNotice      = "Something went wrong on my side. Please try again."
	personalOnlyNotice = "That command only works in a personal chat with me."
	connectNotice      = "You need to connect me to Jira first."
)

var (
	cancelIntent = regexp.MustCompile(`(?i)^\s*(cancel|back|undo|reset)\s*$`)
	issueURL     = regexp.MustCompile(`(?i)https?://\S+/browse/[a-z][a-z0-9]*-\d+`)
)

// StateStore persists the suspended-dialog position per conversation.
type StateStore interface {
	LookupDialogState(ctx context.Context, conversationID string) (State, bool, error)
	SaveDialogState(ctx context.Context, conversationID string, state State) error
	ClearDialogState(ctx context.Context, conversationID string) error
}

// Connections answers whether a user has an established Jira connection.
type Connections interface {
	Connected(ctx context.Context, userID string) (bool, error)
}

// CardSource supplies the connect prompt card.
type CardSource interface {
	ConnectPrompt() json.RawMessage
}

// Dispatcher is the per-turn state machine: cancel intent first, then
// continuation of any suspended dialog, then route matching for a fresh one.
type Dispatcher struct {
	service     *RouteService
	states      StateStore
	connections Connections
	cards       CardSource
	logger      *slog.Logger
	// IssueDialog, when set, names the route that handles card-sourced
	// messages and pasted Jira issue links directly.
	IssueDialog string
}

func NewDispatcher(service *RouteService, states StateStore, connections Connections, cards CardSource, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service:     service,
		states:      states,
		connections: connections,
		cards:       cards,
		logger:      logger,
	}
}

// OnTurn handles one inbound turn. Dialog and infrastructure failures are
// answered with an apology and swallowed; only reply-delivery failures are
// returned.
func (d *Dispatcher) OnTurn(ctx context.Context, turn *Turn) error {
	if cancelIntent.MatchString(turn.Text) {
		return d.cancel(ctx, turn)
	}

	if handled, err := d.resume(ctx, turn); handled || err != nil {
		return err
	}

	route := d.shortcutRoute(turn)
	if route == nil {
		route = d.service.FindBestMatch(turn.Text)
	}
	if route == nil {
		return turn.Responder.SendText(ctx, unknownNotice)
	}

	if route.RequiresAuth {
		connected, err := d.connections.Connected(ctx, turn.UserID)
		if err != nil {
			d.logger.Error("connection lookup failed", "user_id", turn.UserID, "error", err)
			return turn.Responder.SendText(ctx, apologyNotice)
		}
		if !connected {
			return d.sendConnectPrompt(ctx, turn)
		}
	}
	if route.PersonalOnly && turn.IsGroup {
		return turn.Responder.SendText(ctx, personalOnlyNotice)
	}

	outcome, err := route.Instance().Begin(ctx, turn, route.Options)
	_, sendErr := d.finish(ctx, turn, route.Dialog, outcome, err)
	return sendErr
}

// cancel pre-empts whatever dialog is in flight: transient state is cleared
// before the cancel dialog acknowledges.
func (d *Dispatcher) cancel(ctx context.Context, turn *Turn) error {
	if err := d.states.ClearDialogState(ctx, turn.ConversationID); err != nil {
		d.logger.Error("clear dialog state failed", "conversation_id", turn.ConversationID, "error", err)
	}
	route, ok := d.service.Table().Lookup(DialogCancel)
	if !ok {
		return turn.Responder.SendText(ctx, cancelNotice)
	}
	outcome, err := route.Instance().Begin(ctx, turn, nil)
	_, sendErr := d.finish(ctx, turn, route.Dialog, outcome, err)
	return sendErr
}

func (d *Dispatcher) resume(ctx context.Context, turn *Turn) (bool, error) {
	state, active, err := d.states.LookupDialogState(ctx, turn.ConversationID)
	if err != nil {
		d.logger.Error("dialog state lookup failed", "conversation_id", turn.ConversationID, "error", err)
		return true, turn.Responder.SendText(ctx, apologyNotice)
	}
	if !active {
		return false, nil
	}

	route, ok := d.service.Table().Lookup(state.Dialog)
	if !ok {
		// Stale state from a route that no longer exists.
		d.logger.Warn("dropping state for unknown dialog", "dialog", state.Dialog)
		if err := d.states.ClearDialogState(ctx, turn.ConversationID); err != nil {
			d.logger.Error("clear dialog state failed", "conversation_id", turn.ConversationID, "error", err)
		}
		return false, nil
	}

	outcome, err := route.Instance().Resume(ctx, turn, state)
	return d.finish(ctx, turn, state.Dialog, outcome, err)
}

// finish applies a dialog outcome: persists or clears state and sends the
// auth, forbidden, or apology replies. It reports whether the turn was
// handled.
func (d *Dispatcher) finish(ctx context.Context, turn *Turn, dialogName string, outcome Outcome, err error) (bool, error) {
	if err != nil {
		d.logger.Error("dialog failed", "dialog", dialogName, "conversation_id", turn.ConversationID, "error", err)
		d.clearState(ctx, turn)
		return true, turn.Responder.SendText(ctx, apologyNotice)
	}

	switch outcome.Status {
	case StatusUnhandled:
		return false, nil
	case StatusWaiting:
		if err := d.states.SaveDialogState(ctx, turn.ConversationID, outcome.Next); err != nil {
			d.logger.Error("save dialog state failed", "dialog", dialogName, "error", err)
			return true, turn.Responder.SendText(ctx, apologyNotice)
		}
		return true, nil
	case StatusNeedsAuth:
		d.clearState(ctx, turn)
		return true, d.sendConnectPrompt(ctx, turn)
	case StatusForbidden:
		d.clearState(ctx, turn)
		return true, turn.Responder.SendText(ctx, outcome.Message)
	default:
		d.clearState(ctx, turn)
		return true, nil
	}
}

func (d *Dispatcher) shortcutRoute(turn *Turn) *Route {
	if d.IssueDialog == "" {
		return nil
	}
	if !turn.FromCard && !issueURL.MatchString(turn.Text) {
		return nil
	}
	route, ok := d.service.Table().Lookup(d.IssueDialog)
	if !ok {
		return nil
	}
	return &route
}

func (d *Dispatcher) sendConnectPrompt(ctx context.Context, turn *Turn) error {
	if card := d.cards.ConnectPrompt(); len(card) > 0 {
		if err := turn.Responder.SendCard(ctx, card); err == nil {
			return nil
		} else {
			d.logger.Warn("connect card send failed, falling back to text", "error", err)
		}
	}
	return turn.Responder.SendText(ctx, connectNotice)
}

func (d *Dispatcher) clearState(ctx context.Context, turn *Turn) {
	if err := d.states.ClearDialogState(ctx, turn.ConversationID); err != nil {
		d.logger.Error("clear dialog state failed", "conversation_id", turn.ConversationID, "error", err)
	}
}
