package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service"
	"github.com/nhle/workfeed/internal/service/github"
	"github.com/nhle/workfeed/internal/settings"
	"github.com/nhle/workfeed/internal/store"
	"github.com/nhle/workfeed/tests/testutil"
)

// apiFixture is a scriptable fake of the GitHub REST API.
type apiFixture struct {
	threads []map[string]any
	prs     []map[string]any
	issues  []map[string]any
	repos   []map[string]any
	commits map[string]map[string]any // repo full name -> commit payload
}

func (f *apiFixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(f.threads)
	})
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		items := f.issues
		if strings.Contains(r.URL.Query().Get("q"), "is:pr") {
			items = f.prs
		}
		json.NewEncoder(w).Encode(map[string]any{"total_count": len(items), "items": items})
	})
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		json.NewEncoder(w).Encode(f.repos)
	})
	mux.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		for repo, commit := range f.commits {
			if strings.HasPrefix(r.URL.Path, "/repos/"+repo+"/commits/") {
				json.NewEncoder(w).Encode(commit)
				return
			}
		}
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func thread(id, title, repo, reason, updatedAt string) map[string]any {
	return map[string]any{
		"id":         id,
		"reason":     reason,
		"updated_at": updatedAt,
		"subject":    map[string]any{"title": title, "type": "PullRequest", "url": "https://api.github.com/repos/" + repo + "/pulls/1"},
		"repository": map[string]any{"full_name": repo},
	}
}

func newAdapter(t *testing.T, fixture *apiFixture, st store.Store) (*github.Adapter, *settings.Settings) {
	t.Helper()
	ctx := context.Background()

	creds := testutil.NewMemoryCredentials()
	creds.PutBundle(model.ServiceGitHub, "octocat", credential.Bundle{AccessToken: "token"})
	creds.AddAccount(model.ServiceGitHub, "octocat")

	cfg, err := settings.Load(ctx, st)
	if err != nil {
		t.Fatalf("loading settings: %v", err)
	}
	if err := cfg.SetActiveAccount(ctx, "octocat"); err != nil {
		t.Fatal(err)
	}

	engine := oauth.NewEngine(creds, nil)
	adapter := github.NewAdapter(engine, creds, cfg, st, config.GitHub("id", "secret"))
	adapter.BaseURL = fixture.server(t).URL
	return adapter, cfg
}

func TestFetchNotAuthenticated(t *testing.T) {
	st := testutil.NewTestStore(t)
	cfg, err := settings.Load(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}

	engine := oauth.NewEngine(testutil.NewMemoryCredentials(), nil)
	adapter := github.NewAdapter(engine, testutil.NewMemoryCredentials(), cfg, st, config.GitHub("id", "secret"))

	_, err = adapter.Fetch(context.Background())
	if !service.IsNotAuthenticated(err) {
		t.Fatalf("err = %v, want NotAuthenticatedError", err)
	}
}

func TestFetchMapsThreads(t *testing.T) {
	fixture := &apiFixture{
		threads: []map[string]any{
			thread("1", "Fix the flaky test", "octo/widgets", "review_requested", "2026-08-30T10:00:00Z"),
		},
	}
	adapter, _ := newAdapter(t, fixture, testutil.NewTestStore(t))

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}

	n := got[0]
	if n.ID != "gh-thread-1" {
		t.Errorf("ID = %q", n.ID)
	}
	if n.Subtitle != "octo/widgets" {
		t.Errorf("Subtitle = %q", n.Subtitle)
	}
	if n.Body != "Review requested" {
		t.Errorf("Body = %q", n.Body)
	}
	if n.URL != "https://github.com/octo/widgets/pull/1" {
		t.Errorf("URL = %q, want browser URL", n.URL)
	}
	if n.Priority != model.PriorityHigh {
		t.Errorf("Priority = %v, want high for review_requested", n.Priority)
	}
	if n.Icon != "pull-request" {
		t.Errorf("Icon = %q", n.Icon)
	}
}

func TestFetchThreadCap(t *testing.T) {
	fixture := &apiFixture{}
	for i := 0; i < 12; i++ {
		fixture.threads = append(fixture.threads, map[string]any{
			"id":         fmt.Sprintf("%d", i),
			"reason":     "subscribed",
			"updated_at": fmt.Sprintf("2026-08-30T10:%02d:00Z", i),
			"subject": map[string]any{
				"title": "t", "type": "Issue",
				"url": fmt.Sprintf("https://api.github.com/repos/octo/widgets/issues/%d", i),
			},
			"repository": map[string]any{"full_name": "octo/widgets"},
		})
	}
	adapter, _ := newAdapter(t, fixture, testutil.NewTestStore(t))

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 8 {
		t.Errorf("got %d thread notifications, want the cap of 8", len(got))
	}
}

func TestFetchDedupAcrossSubSources(t *testing.T) {
	// The thread and the PR search hit resolve to the same browser URL;
	// only the first-encountered survives.
	fixture := &apiFixture{
		threads: []map[string]any{
			thread("1", "Same change", "octo/widgets", "review_requested", "2026-08-30T10:00:00Z"),
		},
		prs: []map[string]any{{
			"node_id":        "PR_1",
			"number":         1,
			"title":          "Same change",
			"html_url":       "https://github.com/octo/widgets/pull/1",
			"repository_url": "https://api.github.com/repos/octo/widgets",
			"updated_at":     "2026-08-30T09:00:00Z",
			"pull_request":   map[string]any{},
		}},
	}
	adapter, _ := newAdapter(t, fixture, testutil.NewTestStore(t))

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 {
		ids := make([]string, 0, len(got))
		for _, n := range got {
			ids = append(ids, n.ID)
		}
		t.Fatalf("got %v, want exactly one (deduplicated by URL)", ids)
	}
	if got[0].ID != "gh-thread-1" {
		t.Errorf("survivor = %q, want the newer thread entry", got[0].ID)
	}
}

func TestFetchRepoFilter(t *testing.T) {
	fixture := &apiFixture{
		threads: []map[string]any{
			thread("1", "keep", "octo/widgets", "mention", "2026-08-30T10:00:00Z"),
			thread("2", "drop", "octo/other", "mention", "2026-08-30T11:00:00Z"),
		},
	}
	st := testutil.NewTestStore(t)
	adapter, cfg := newAdapter(t, fixture, st)
	if err := cfg.SetRepoSelected(context.Background(), "octo/widgets", true); err != nil {
		t.Fatal(err)
	}

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "gh-thread-1" {
		t.Errorf("got %+v, want only the octo/widgets thread", got)
	}
}

func TestCommitBaselineLifecycle(t *testing.T) {
	commit := func(sha string) map[string]any {
		return map[string]any{
			"sha":      sha,
			"html_url": "https://github.com/octo/widgets/commit/" + sha,
			"commit": map[string]any{
				"message": "feat: new thing\n\nlong body",
				"author":  map[string]any{"date": "2026-08-30T10:00:00Z"},
			},
		}
	}

	fixture := &apiFixture{
		repos:   []map[string]any{{"full_name": "octo/widgets", "default_branch": "main"}},
		commits: map[string]map[string]any{"octo/widgets": commit("aaa111")},
	}
	st := testutil.NewTestStore(t)
	adapter, _ := newAdapter(t, fixture, st)
	ctx := context.Background()

	// First observation records the baseline silently.
	got, err := adapter.Fetch(ctx)
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("first run emitted %+v, want nothing", got)
	}
	baseline, err := st.Baseline(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if baseline["octo/widgets"] != "aaa111" {
		t.Errorf("baseline = %v, want octo/widgets -> aaa111", baseline)
	}

	// Unchanged HEAD stays silent.
	got, _ = adapter.Fetch(ctx)
	if len(got) != 0 {
		t.Errorf("unchanged HEAD emitted %+v", got)
	}

	// Moved HEAD emits exactly one update and advances the baseline.
	fixture.commits["octo/widgets"] = commit("bbb222")
	got, err = adapter.Fetch(ctx)
	if err != nil {
		t.Fatalf("third Fetch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("moved HEAD emitted %d notifications, want 1", len(got))
	}
	n := got[0]
	if n.ID != "gh-commit-octo/widgets-bbb222" {
		t.Errorf("ID = %q", n.ID)
	}
	if n.Body != "feat: new thing" {
		t.Errorf("Body = %q, want the commit subject line", n.Body)
	}
	baseline, _ = st.Baseline(ctx)
	if baseline["octo/widgets"] != "bbb222" {
		t.Errorf("baseline = %v, want advanced to bbb222", baseline)
	}
}

func TestCommitBaselinePrunesUntracked(t *testing.T) {
	fixture := &apiFixture{
		repos: []map[string]any{
			{"full_name": "octo/widgets", "default_branch": "main"},
		},
		commits: map[string]map[string]any{
			"octo/widgets": {"sha": "aaa111", "commit": map[string]any{"author": map[string]any{"date": "2026-08-30T10:00:00Z"}}},
		},
	}
	st := testutil.NewTestStore(t)
	adapter, _ := newAdapter(t, fixture, st)
	ctx := context.Background()

	// Seed a baseline entry for a repository that no longer appears.
	if err := st.ReplaceBaseline(ctx, map[string]string{"octo/gone": "zzz999"}); err != nil {
		t.Fatal(err)
	}

	if _, err := adapter.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	baseline, _ := st.Baseline(ctx)
	if _, ok := baseline["octo/gone"]; ok {
		t.Error("untracked repository survived baseline pruning")
	}
	if baseline["octo/widgets"] != "aaa111" {
		t.Errorf("baseline = %v, want octo/widgets -> aaa111", baseline)
	}
}
