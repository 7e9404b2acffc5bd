package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/teams"
)

// ReplyClient posts reply activities back to the connector service.
type ReplyClient interface {
	SendActivity(ctx context.Context, activity teams.Activity) error
}

// handleMessages is the Bot Framework inbound endpoint. Non-message
// activities (conversation updates, typing) are acknowledged and dropped.
func (r *router) handleMessages(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var activity teams.Activity
	if err := json.NewDecoder(req.Body).Decode(&activity); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid activity"})
		return
	}
	if activity.Type != teams.ActivityMessage {
		w.WriteHeader(http.StatusOK)
		return
	}
	if activity.Conversation.ID == "" || activity.From.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "activity is missing conversation or sender"})
		return
	}

	turn := &dialog.Turn{
		ConversationID: activity.Conversation.ID,
		UserID:         activity.From.ID,
		UserName:       activity.From.Name,
		Text:           activity.CleanText(),
		IsGroup:        activity.Conversation.IsGroup,
		FromCard:       activity.FromCard(),
		Responder:      newActivityResponder(r.deps.Teams, activity),
	}
	if turn.Text == "" && len(activity.Value) > 0 {
		// Card submits carry their payload in Value, not Text.
		turn.Text = string(activity.Value)
	}

	if err := r.deps.Dispatcher.OnTurn(req.Context(), turn); err != nil {
		r.deps.Logger.Error("turn delivery failed",
			"conversation_id", turn.ConversationID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "reply delivery failed"})
		return
	}
	w.WriteHeader(http.StatusOK)
}

type activityResponder struct {
	client   ReplyClient
	incoming teams.Activity
}

func newActivityResponder(client ReplyClient, incoming teams.Activity) *activityResponder {
	return &activityResponder{client: client, incoming: incoming}
}

func (r *activityResponder) SendText(ctx context.Context, text string) error {
	reply := r.incoming.NewReply()
	reply.Text = text
	reply.TextFormat = "markdown"
	return r.client.SendActivity(ctx, reply)
}

func (r *activityResponder) SendCard(ctx context.Context, card json.RawMessage) error {
	reply := r.incoming.NewReply()
	reply.Attachments = []teams.Attachment{teams.NewCardAttachment(card)}
	return r.client.SendActivity(ctx, reply)
}
