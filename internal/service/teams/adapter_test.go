package teams_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service"
	"github.com/nhle/workfeed/internal/service/teams"
	"github.com/nhle/workfeed/tests/testutil"
)

type graphFixture struct {
	chats    []map[string]any
	messages map[string][]map[string]any // chat id -> last messages
	fail     map[string]bool             // chat ids whose messages 403
}

func (f *graphFixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/me/chats", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"value": f.chats})
	})
	mux.HandleFunc("/me/chats/", func(w http.ResponseWriter, r *http.Request) {
		// /me/chats/{id}/messages
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/me/chats/"), "/")
		chatID := parts[0]
		if f.fail[chatID] {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"value": f.messages[chatID]})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newAdapter(t *testing.T, fixture *graphFixture) *teams.Adapter {
	t.Helper()
	creds := testutil.NewMemoryCredentials()
	creds.PutBundle(model.ServiceTeams, "", credential.Bundle{AccessToken: "token"})

	adapter := teams.NewAdapter(oauth.NewEngine(creds, nil), config.Microsoft("id", "secret"))
	adapter.BaseURL = fixture.server(t).URL
	return adapter
}

func message(id, sender, contentType, content, created string) map[string]any {
	return map[string]any{
		"id":              id,
		"createdDateTime": created,
		"messageType":     "message",
		"body":            map[string]any{"contentType": contentType, "content": content},
		"from":            map[string]any{"user": map[string]any{"displayName": sender}},
		"webUrl":          "https://teams.microsoft.com/l/message/" + id,
	}
}

func TestFetchNotAuthenticated(t *testing.T) {
	adapter := teams.NewAdapter(oauth.NewEngine(testutil.NewMemoryCredentials(), nil), config.Microsoft("id", "secret"))
	_, err := adapter.Fetch(context.Background())
	if !service.IsNotAuthenticated(err) {
		t.Fatalf("err = %v, want NotAuthenticatedError", err)
	}
}

func TestFetchMapsChats(t *testing.T) {
	fixture := &graphFixture{
		chats: []map[string]any{
			{"id": "chat1", "topic": "Sprint Planning", "chatType": "group"},
			{"id": "chat2", "chatType": "oneOnOne"},
		},
		messages: map[string][]map[string]any{
			"chat1": {message("m1", "John Doe", "html", "<p>Let&#39;s sync <b>today</b></p>", "2026-08-30T10:00:00Z")},
			"chat2": {message("m2", "", "text", "ping", "2026-08-30T11:00:00Z")},
		},
	}
	adapter := newAdapter(t, fixture)

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}

	// Newest first.
	if got[0].ID != "teams-chat2-m2" || got[1].ID != "teams-chat1-m1" {
		t.Errorf("order = [%s %s]", got[0].ID, got[1].ID)
	}

	unnamed := got[0]
	if unnamed.Title != "Direct Message" {
		t.Errorf("unnamed oneOnOne title = %q", unnamed.Title)
	}
	if unnamed.Subtitle != "Unknown" {
		t.Errorf("sender fallback = %q", unnamed.Subtitle)
	}

	named := got[1]
	if named.Title != "Sprint Planning" {
		t.Errorf("title = %q", named.Title)
	}
	if strings.Contains(named.Body, "<") {
		t.Errorf("body %q still contains HTML markup", named.Body)
	}
	if named.Subtitle != "John Doe" {
		t.Errorf("sender = %q", named.Subtitle)
	}
}

func TestFetchSkipsUnreadableAndSystemChats(t *testing.T) {
	fixture := &graphFixture{
		chats: []map[string]any{
			{"id": "ok", "topic": "Works", "chatType": "group"},
			{"id": "forbidden", "topic": "No access", "chatType": "group"},
			{"id": "system", "topic": "Member added", "chatType": "group"},
			{"id": "empty", "topic": "Quiet", "chatType": "group"},
		},
		messages: map[string][]map[string]any{
			"ok": {message("m1", "A", "text", "hi", "2026-08-30T10:00:00Z")},
			"system": {{
				"id": "m2", "createdDateTime": "2026-08-30T10:01:00Z",
				"messageType": "systemEventMessage",
				"body":        map[string]any{"contentType": "text", "content": "x added y"},
			}},
			"empty": {},
		},
		fail: map[string]bool{"forbidden": true},
	}
	adapter := newAdapter(t, fixture)

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "teams-ok-m1" {
		t.Errorf("got %+v, want only the readable chat", got)
	}
}

func TestFetchTruncatesLongBodies(t *testing.T) {
	long := strings.Repeat("a", 250)
	fixture := &graphFixture{
		chats: []map[string]any{{"id": "c", "topic": "T", "chatType": "group"}},
		messages: map[string][]map[string]any{
			"c": {message("m", "A", "text", long, "2026-08-30T10:00:00Z")},
		},
	}
	adapter := newAdapter(t, fixture)

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got[0].Body) != 100 {
		t.Errorf("body length = %d, want capped at 100", len(got[0].Body))
	}
}

func TestFetchChatCap(t *testing.T) {
	fixture := &graphFixture{messages: map[string][]map[string]any{}}
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		fixture.chats = append(fixture.chats, map[string]any{"id": id, "topic": "T", "chatType": "group"})
		fixture.messages[id] = []map[string]any{message("m"+id, "A", "text", "hi", "2026-08-30T10:00:00Z")}
	}
	adapter := newAdapter(t, fixture)

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 7 {
		t.Errorf("got %d notifications, want the cap of 7", len(got))
	}
}
