// Package notion surfaces recently edited Notion pages via the search
// API.
package notion

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/httpx"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service"
)

const (
	maxPages      = 10
	notionVersion = "2022-06-28"
)

// timeNow is the timestamp fallback for unparseable dates; stubbed in
// tests.
var timeNow = time.Now

// Adapter implements service.Service for Notion.
type Adapter struct {
	engine *oauth.Engine
	client *httpx.Client
	cfg    config.Provider

	// BaseURL is the API root; overridden in tests.
	BaseURL string
}

// NewAdapter creates a Notion adapter.
func NewAdapter(engine *oauth.Engine, cfg config.Provider) *Adapter {
	return &Adapter{
		engine:  engine,
		client:  httpx.NewClient(),
		cfg:     cfg,
		BaseURL: "https://api.notion.com/v1",
	}
}

// Type returns the service identity.
func (a *Adapter) Type() model.ServiceType {
	return model.ServiceNotion
}

// Fetch searches for the most recently edited pages.
func (a *Adapter) Fetch(ctx context.Context) ([]model.Notification, error) {
	token, err := a.engine.ValidAccessToken(ctx, model.ServiceNotion, "", a.cfg)
	if err != nil {
		if err == oauth.ErrNotAuthenticated {
			return nil, &service.NotAuthenticatedError{Service: model.ServiceNotion}
		}
		return nil, err
	}

	body := searchRequest{
		Sort:     searchSort{Direction: "descending", Timestamp: "last_edited_time"},
		PageSize: maxPages,
	}
	headers := map[string]string{"Notion-Version": notionVersion}

	var resp searchResponse
	if err := a.client.Post(ctx, a.BaseURL+"/search", token, headers, body, &resp); err != nil {
		return nil, &service.UpstreamError{Service: model.ServiceNotion, Err: err}
	}

	now := timeNow()
	var notifications []model.Notification
	for _, obj := range resp.Results {
		if obj.Object != "page" {
			continue
		}
		if len(notifications) == maxPages {
			break
		}

		edited := service.ParseTime(obj.LastEditedTime, now)
		notifications = append(notifications, model.Notification{
			ID:        "notion-" + obj.ID,
			Service:   model.ServiceNotion,
			Title:     obj.displayTitle(),
			Subtitle:  "Updated " + relativeTime(edited, now),
			Timestamp: edited,
			URL:       obj.URL,
			Icon:      obj.icon(),
			Priority:  model.PriorityNormal,
		})
	}
	return notifications, nil
}

// relativeTime renders a short "time ago" label for the subtitle.
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hr ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}
