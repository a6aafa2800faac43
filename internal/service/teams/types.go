package teams

import (
	"regexp"
	"strings"
)

// graphResponse is the Microsoft Graph list envelope.
type graphResponse[T any] struct {
	Value []T `json:"value"`
}

type chat struct {
	ID       string `json:"id"`
	Topic    string `json:"topic"`
	ChatType string `json:"chatType"` // "oneOnOne", "group", "meeting"
}

// displayTopic falls back to the chat kind when the chat is unnamed.
func (c chat) displayTopic() string {
	if c.Topic != "" {
		return c.Topic
	}
	if c.ChatType == "oneOnOne" {
		return "Direct Message"
	}
	return "Group Chat"
}

type chatMessage struct {
	ID              string       `json:"id"`
	CreatedDateTime string       `json:"createdDateTime"`
	MessageType     string       `json:"messageType"`
	Body            *messageBody `json:"body"`
	From            *messageFrom `json:"from"`
	WebURL          string       `json:"webUrl"`
}

type messageBody struct {
	ContentType string `json:"contentType"` // "text" or "html"
	Content     string `json:"content"`
}

type messageFrom struct {
	User *messageUser `json:"user"`
}

type messageUser struct {
	DisplayName string `json:"displayName"`
	ID          string `json:"id"`
}

func (m chatMessage) senderName() string {
	if m.From != nil && m.From.User != nil && m.From.User.DisplayName != "" {
		return m.From.User.DisplayName
	}
	return "Unknown"
}

var htmlTags = regexp.MustCompile(`<[^>]+>`)

// plainTextBody strips HTML markup for the message preview.
func (m chatMessage) plainTextBody() string {
	if m.Body == nil {
		return ""
	}
	content := m.Body.Content
	if m.Body.ContentType == "html" {
		content = htmlTags.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(content)
}
