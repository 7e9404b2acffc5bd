package dialogs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/store"
)

const (
	stepConnectURL      = "url"
	stepConnectUsername = "username"
	stepConnectToken    = "token"
	stepConnectPeer     = "peer"
)

// connectState is the payload carried between connect steps. Credentials
// ride in it until the final step validates and persists them.
type connectState struct {
	BaseURL  string `json:"baseUrl"`
	Kind     string `json:"kind"`
	Username string `json:"username,omitempty"`
}

// connectDialog walks the user through linking a Jira site. Cloud sites take
// an email plus API token; server sites take the add-on key their instance
// was registered with.
type connectDialog struct {
	deps *Deps
}

func (d *connectDialog) Name() string { return DialogConnect }

func (d *connectDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	if err := turn.Responder.SendText(ctx, "Let's get you connected. What is your Jira site URL? (for example `https://yourteam.atlassian.net`)"); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Wait(DialogConnect, stepConnectURL, connectState{})
}

func (d *connectDialog) Resume(ctx context.Context, turn *dialog.Turn, state dialog.State) (dialog.Outcome, error) {
	var carried connectState
	if len(state.Payload) > 0 {
		if err := json.Unmarshal(state.Payload, &carried); err != nil {
			return dialog.Outcome{}, fmt.Errorf("decode connect state: %w", err)
		}
	}

	switch state.Step {
	case stepConnectURL:
		return d.resumeURL(ctx, turn)
	case stepConnectUsername:
		return d.resumeUsername(ctx, turn, carried)
	case stepConnectToken:
		return d.resumeToken(ctx, turn, carried)
	case stepConnectPeer:
		return d.resumePeer(ctx, turn, carried)
	default:
		return dialog.Outcome{}, fmt.Errorf("unknown connect step %q", state.Step)
	}
}

func (d *connectDialog) resumeURL(ctx context.Context, turn *dialog.Turn) (dialog.Outcome, error) {
	raw := strings.TrimSpace(turn.Text)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		if err := turn.Responder.SendText(ctx, "That doesn't look like a URL I can use. Please send the full site address, like `https://yourteam.atlassian.net`."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogConnect, stepConnectURL, connectState{})
	}

	carried := connectState{BaseURL: parsed.Scheme + "://" + parsed.Host}
	if strings.HasSuffix(strings.ToLower(parsed.Host), ".atlassian.net") {
		carried.Kind = store.ConnectionKindCloud
		if err := turn.Responder.SendText(ctx, "Got it, that's a Jira Cloud site. What email address do you sign in with?"); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogConnect, stepConnectUsername, carried)
	}

	carried.Kind = store.ConnectionKindServer
	if err := turn.Responder.SendText(ctx, "That looks like a Jira Server instance. What is the add-on key your administrator registered for it?"); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Wait(DialogConnect, stepConnectPeer, carried)
}

func (d *connectDialog) resumeUsername(ctx context.Context, turn *dialog.Turn, carried connectState) (dialog.Outcome, error) {
	carried.Username = strings.TrimSpace(turn.Text)
	if carried.Username == "" {
		if err := turn.Responder.SendText(ctx, "I need the email address you sign in to Jira with."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogConnect, stepConnectUsername, carried)
	}
	if err := turn.Responder.SendText(ctx, "Thanks. Now paste an API token for that account (create one at https://id.atlassian.com/manage-profile/security/api-tokens)."); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Wait(DialogConnect, stepConnectToken, carried)
}

func (d *connectDialog) resumeToken(ctx context.Context, turn *dialog.Turn, carried connectState) (dialog.Outcome, error) {
	token := strings.TrimSpace(turn.Text)
	if token == "" {
		if err := turn.Responder.SendText(ctx, "I need the API token to finish connecting."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogConnect, stepConnectToken, carried)
	}

	candidate := store.Connection{
		UserID:   turn.UserID,
		BaseURL:  carried.BaseURL,
		Kind:     carried.Kind,
		Username: carried.Username,
		Token:    token,
	}
	return d.verifyAndSave(ctx, turn, candidate)
}

func (d *connectDialog) resumePeer(ctx context.Context, turn *dialog.Turn, carried connectState) (dialog.Outcome, error) {
	peerID := strings.TrimSpace(turn.Text)
	if peerID == "" {
		if err := turn.Responder.SendText(ctx, "I need the add-on key to finish connecting."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Wait(DialogConnect, stepConnectPeer, carried)
	}

	candidate := store.Connection{
		UserID:  turn.UserID,
		BaseURL: carried.BaseURL,
		Kind:    carried.Kind,
		PeerID:  peerID,
	}
	return d.verifyAndSave(ctx, turn, candidate)
}

func (d *connectDialog) verifyAndSave(ctx context.Context, turn *dialog.Turn, candidate store.Connection) (dialog.Outcome, error) {
	me, err := d.deps.Jira.Myself(ctx, candidate)
	if err != nil {
		d.deps.Logger.Warn("connect verification failed", "user_id", turn.UserID, "error", err)
		if err := turn.Responder.SendText(ctx, "Jira rejected those details: "+verificationFailure(err)+" Type **connect** to start over."); err != nil {
			return dialog.Outcome{}, err
		}
		return dialog.Done(), nil
	}

	account := me.AccountID
	if account == "" {
		account = me.Name
	}
	err = d.deps.Connections.SaveConnection(ctx, store.SaveConnectionInput{
		UserID:      turn.UserID,
		DisplayName: me.DisplayName,
		BaseURL:     candidate.BaseURL,
		Kind:        candidate.Kind,
		Username:    candidate.Username,
		Token:       candidate.Token,
		PeerID:      candidate.PeerID,
		JiraAccount: account,
	})
	if err != nil {
		return dialog.Outcome{}, err
	}

	if d.deps.Mail.Enabled() && me.Email != "" {
		subject := "Your Jira account is now connected"
		body := fmt.Sprintf("Hi %s,\n\nYour Jira account at %s was just linked to the Teams bot. If this wasn't you, type \"disconnect\" in a chat with the bot.\n", me.DisplayName, candidate.BaseURL)
		if err := d.deps.Mail.Send(ctx, me.Email, subject, body); err != nil {
			d.deps.Logger.Warn("connect confirmation mail failed", "user_id", turn.UserID, "error", err)
		}
	}

	if err := turn.Responder.SendText(ctx, fmt.Sprintf("All set, %s! You're connected to %s. Try **show issue DEMO-1** or **help**.", me.DisplayName, candidate.BaseURL)); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}

func verificationFailure(err error) string {
	if outcome, ok := outcomeFromError(err); ok && outcome.Message != "" {
		return outcome.Message
	}
	return "the credentials were not accepted."
}

// disconnectDialog removes the stored connection and its cached lookups.
type disconnectDialog struct {
	deps *Deps
}

func (d *disconnectDialog) Name() string { return DialogDisconnect }

func (d *disconnectDialog) Begin(ctx context.Context, turn *dialog.Turn, _ any) (dialog.Outcome, error) {
	if err := d.deps.Connections.DeleteConnection(ctx, turn.UserID); err != nil {
		return dialog.Outcome{}, err
	}
	d.deps.Cache.Delete(connectedCacheKey(turn.UserID))
	if err := turn.Responder.SendText(ctx, "Done. Your Jira connection has been removed."); err != nil {
		return dialog.Outcome{}, err
	}
	return dialog.Done(), nil
}

func (d *disconnectDialog) Resume(ctx context.Context, turn *dialog.Turn, _ dialog.State) (dialog.Outcome, error) {
	return d.Begin(ctx, turn, nil)
}

func connectedCacheKey(userID string) string { return "connected:" + userID }
