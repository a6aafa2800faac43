// Package teams surfaces the latest message of the user's most recent
// Microsoft Teams chats via the Graph API.
package teams

import (
	"context"
	"log"
	"net/url"
	"sort"
	"time"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/httpx"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service"
)

const maxChats = 7

// timeNow is the timestamp fallback for unparseable dates; stubbed in
// tests.
var timeNow = time.Now

// Adapter implements service.Service for Microsoft Teams.
type Adapter struct {
	engine *oauth.Engine
	client *httpx.Client
	cfg    config.Provider

	// BaseURL is the Graph API root; overridden in tests.
	BaseURL string
}

// NewAdapter creates a Teams adapter.
func NewAdapter(engine *oauth.Engine, cfg config.Provider) *Adapter {
	return &Adapter{
		engine:  engine,
		client:  httpx.NewClient(),
		cfg:     cfg,
		BaseURL: "https://graph.microsoft.com/v1.0",
	}
}

// Type returns the service identity.
func (a *Adapter) Type() model.ServiceType {
	return model.ServiceTeams
}

// Fetch lists recent chats and pulls the last message from each. Chats
// whose messages cannot be read are skipped; system event messages are
// filtered out.
func (a *Adapter) Fetch(ctx context.Context) ([]model.Notification, error) {
	token, err := a.engine.ValidAccessToken(ctx, model.ServiceTeams, "", a.cfg)
	if err != nil {
		if err == oauth.ErrNotAuthenticated {
			return nil, &service.NotAuthenticatedError{Service: model.ServiceTeams}
		}
		return nil, err
	}

	params := url.Values{}
	params.Set("$top", "10")
	params.Set("$orderby", "lastMessagePreview/createdDateTime desc")

	var chats graphResponse[chat]
	chatsURL := a.BaseURL + "/me/chats?" + params.Encode()
	if err := a.client.Get(ctx, chatsURL, token, nil, &chats); err != nil {
		return nil, &service.UpstreamError{Service: model.ServiceTeams, Err: err}
	}

	var notifications []model.Notification
	for i, c := range chats.Value {
		if i == maxChats {
			break
		}

		message, err := a.fetchLastMessage(ctx, token, c.ID)
		if err != nil {
			// Skip chats whose messages we cannot read.
			log.Printf("teams: messages for chat %s: %v", c.ID, err)
			continue
		}
		if message == nil || message.MessageType == "systemEventMessage" {
			continue
		}

		body := message.plainTextBody()
		if runes := []rune(body); len(runes) > 100 {
			body = string(runes[:100])
		}

		notifications = append(notifications, model.Notification{
			ID:        "teams-" + c.ID + "-" + message.ID,
			Service:   model.ServiceTeams,
			Title:     c.displayTopic(),
			Subtitle:  message.senderName(),
			Body:      body,
			Timestamp: service.ParseTime(message.CreatedDateTime, timeNow()),
			URL:       message.WebURL,
			Icon:      "chat",
			Priority:  model.PriorityNormal,
		})
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].Timestamp.After(notifications[j].Timestamp)
	})
	return notifications, nil
}

func (a *Adapter) fetchLastMessage(ctx context.Context, token, chatID string) (*chatMessage, error) {
	params := url.Values{}
	params.Set("$top", "1")
	params.Set("$orderby", "createdDateTime desc")

	var messages graphResponse[chatMessage]
	messagesURL := a.BaseURL + "/me/chats/" + url.PathEscape(chatID) + "/messages?" + params.Encode()
	if err := a.client.Get(ctx, messagesURL, token, nil, &messages); err != nil {
		return nil, err
	}
	if len(messages.Value) == 0 {
		return nil, nil
	}
	return &messages.Value[0], nil
}
