// Package teams holds the Bot Framework activity DTOs and the reply client.
// The shapes are the connector service's; nothing here interprets them
// beyond what the dispatcher needs.
package teams

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	ActivityMessage = "message"

	cardContentTypePrefix = "application/vnd.microsoft.card"
	adaptiveCardType      = "application/vnd.microsoft.card.adaptive"
	htmlContentType       = "text/html"
)

type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ConversationAccount struct {
	ID      string `json:"id"`
	IsGroup bool   `json:"isGroup,omitempty"`
	Name    string `json:"name,omitempty"`
}

type Attachment struct {
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content,omitempty"`
	ContentURL  string          `json:"contentUrl,omitempty"`
}

type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient,omitempty"`
	Conversation ConversationAccount `json:"conversation"`
	ReplyToID    string              `json:"replyToId,omitempty"`
	Text         string              `json:"text,omitempty"`
	TextFormat   string              `json:"textFormat,omitempty"`
	Value        json.RawMessage     `json:"value,omitempty"`
	Attachments  []Attachment        `json:"attachments,omitempty"`
}

var mentionTag = regexp.MustCompile(`<at>[^<]*</at>`)

// CleanText strips bot mentions and surrounding whitespace from the
// activity text.
func (a *Activity) CleanText() string {
	return strings.TrimSpace(mentionTag.ReplaceAllString(a.Text, ""))
}

// FromCard reports whether the message was produced by a card or HTML
// content rather than typed by the user.
func (a *Activity) FromCard() bool {
	if len(a.Value) > 0 && string(a.Value) != "null" {
		return true
	}
	for _, attachment := range a.Attachments {
		contentType := strings.ToLower(attachment.ContentType)
		if strings.HasPrefix(contentType, cardContentTypePrefix) || contentType == htmlContentType {
			return true
		}
	}
	return false
}

// NewReply builds a message activity addressed back to the sender of this
// one.
func (a *Activity) NewReply() Activity {
	return Activity{
		Type:         ActivityMessage,
		ServiceURL:   a.ServiceURL,
		ChannelID:    a.ChannelID,
		From:         a.Recipient,
		Recipient:    a.From,
		Conversation: a.Conversation,
		ReplyToID:    a.ID,
	}
}

// NewCardAttachment wraps adaptive-card JSON for an outgoing activity.
func NewCardAttachment(card json.RawMessage) Attachment {
	return Attachment{ContentType: adaptiveCardType, Content: card}
}
