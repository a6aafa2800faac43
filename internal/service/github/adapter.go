// Package github fetches work notifications from the GitHub REST API:
// participating thread notifications, open pull requests and issues
// involving the user, and default-branch commit updates on tracked
// repositories.
package github

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/httpx"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service"
	"github.com/nhle/workfeed/internal/settings"
	"github.com/nhle/workfeed/internal/store"
)

// Per-source caps keep the merged feed bounded.
const (
	maxThreadItems  = 8
	maxPullRequests = 6
	maxIssues       = 6
	maxCombined     = 15
	maxWatchedRepos = 8
	maxRepoPages    = 5
	repoPageSize    = 100
)

// timeNow is the timestamp fallback for unparseable dates; stubbed in
// tests.
var timeNow = time.Now

// Adapter implements service.Service for GitHub.
type Adapter struct {
	engine   *oauth.Engine
	creds    credential.Store
	settings *settings.Settings
	st       store.Store
	client   *httpx.Client
	cfg      config.Provider

	// BaseURL is the API root; overridden in tests.
	BaseURL string
}

// NewAdapter creates a GitHub adapter.
func NewAdapter(engine *oauth.Engine, creds credential.Store, s *settings.Settings, st store.Store, cfg config.Provider) *Adapter {
	return &Adapter{
		engine:   engine,
		creds:    creds,
		settings: s,
		st:       st,
		client:   httpx.NewClient(),
		cfg:      cfg,
		BaseURL:  "https://api.github.com",
	}
}

// Type returns the service identity.
func (a *Adapter) Type() model.ServiceType {
	return model.ServiceGitHub
}

// Fetch retrieves notifications from all four GitHub sub-sources,
// merges them newest-first, deduplicates, and caps the result. Each
// sub-source is best-effort: one failing does not lose the others.
func (a *Adapter) Fetch(ctx context.Context) ([]model.Notification, error) {
	token, err := a.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	selected := a.settings.SelectedRepos()

	threads, err := a.fetchThreads(ctx, token, selected)
	if err != nil {
		log.Printf("github: thread notifications: %v", err)
	}
	prs, err := a.fetchPullRequests(ctx, token, selected)
	if err != nil {
		log.Printf("github: pull requests: %v", err)
	}
	issues, err := a.fetchIssues(ctx, token, selected)
	if err != nil {
		log.Printf("github: issues: %v", err)
	}
	commits, err := a.fetchCommitUpdates(ctx, token, selected)
	if err != nil {
		log.Printf("github: commit watch: %v", err)
	}

	combined := make([]model.Notification, 0, len(threads)+len(prs)+len(issues)+len(commits))
	combined = append(combined, threads...)
	combined = append(combined, prs...)
	combined = append(combined, issues...)
	combined = append(combined, commits...)

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Timestamp.After(combined[j].Timestamp)
	})

	combined = service.Dedup(combined)
	if len(combined) > maxCombined {
		combined = combined[:maxCombined]
	}
	return combined, nil
}

// resolveToken returns the access token for the active account,
// falling back to the first registered account.
func (a *Adapter) resolveToken(ctx context.Context) (string, error) {
	account := a.settings.ActiveAccount()
	if account == "" {
		accounts, err := a.creds.ListAccounts(model.ServiceGitHub)
		if err != nil {
			return "", err
		}
		if len(accounts) == 0 {
			return "", &service.NotAuthenticatedError{Service: model.ServiceGitHub}
		}
		account = accounts[0]
	}

	token, err := a.engine.ValidAccessToken(ctx, model.ServiceGitHub, account, a.cfg)
	if err == oauth.ErrNotAuthenticated {
		return "", &service.NotAuthenticatedError{Service: model.ServiceGitHub}
	}
	return token, err
}

func (a *Adapter) fetchThreads(ctx context.Context, token string, selected map[string]bool) ([]model.Notification, error) {
	var threads []threadNotification
	apiURL := a.BaseURL + "/notifications?participating=true&per_page=20"
	if err := a.client.Get(ctx, apiURL, token, ghHeaders(), &threads); err != nil {
		return nil, err
	}

	var result []model.Notification
	for _, t := range threads {
		if len(selected) > 0 && !selected[t.Repository.FullName] {
			continue
		}
		if len(result) == maxThreadItems {
			break
		}
		result = append(result, model.Notification{
			ID:        "gh-thread-" + t.ID,
			Service:   model.ServiceGitHub,
			Title:     t.Subject.Title,
			Subtitle:  t.Repository.FullName,
			Body:      t.reasonText(),
			Timestamp: service.ParseTime(t.UpdatedAt, timeNow()),
			URL:       t.htmlURL(),
			Icon:      t.icon(),
			Priority:  t.priority(),
		})
	}
	return result, nil
}

func (a *Adapter) fetchPullRequests(ctx context.Context, token string, selected map[string]bool) ([]model.Notification, error) {
	items, err := a.searchIssues(ctx, token, "is:pr is:open involves:@me", maxPullRequests)
	if err != nil {
		return nil, err
	}

	var result []model.Notification
	for _, item := range items {
		if item.PullRequest == nil {
			continue
		}
		if len(selected) > 0 && !selected[item.repoFullName()] {
			continue
		}
		result = append(result, model.Notification{
			ID:        "gh-pr-" + item.NodeID,
			Service:   model.ServiceGitHub,
			Title:     fmt.Sprintf("PR #%d: %s", item.Number, item.Title),
			Subtitle:  item.repoFullName(),
			Body:      "Open pull request involving you",
			Timestamp: service.ParseTime(item.UpdatedAt, timeNow()),
			URL:       item.HTMLURL,
			Icon:      "pull-request",
			Priority:  model.PriorityHigh,
		})
	}
	return result, nil
}

func (a *Adapter) fetchIssues(ctx context.Context, token string, selected map[string]bool) ([]model.Notification, error) {
	items, err := a.searchIssues(ctx, token, "is:issue is:open involves:@me", maxIssues)
	if err != nil {
		return nil, err
	}

	var result []model.Notification
	for _, item := range items {
		if item.PullRequest != nil {
			continue
		}
		if len(selected) > 0 && !selected[item.repoFullName()] {
			continue
		}
		result = append(result, model.Notification{
			ID:        "gh-issue-" + item.NodeID,
			Service:   model.ServiceGitHub,
			Title:     fmt.Sprintf("Issue #%d: %s", item.Number, item.Title),
			Subtitle:  item.repoFullName(),
			Body:      "Open issue involving you",
			Timestamp: service.ParseTime(item.UpdatedAt, timeNow()),
			URL:       item.HTMLURL,
			Icon:      "issue",
			Priority:  model.PriorityNormal,
		})
	}
	return result, nil
}

// fetchCommitUpdates watches the default branch of tracked
// repositories. A repository's first observation only records its
// baseline; later cycles emit one notification when the HEAD sha moves
// and advance the baseline. Repositories no longer tracked are pruned.
func (a *Adapter) fetchCommitUpdates(ctx context.Context, token string, selected map[string]bool) ([]model.Notification, error) {
	repos, err := a.fetchParticipatingRepos(ctx, token)
	if err != nil {
		return nil, err
	}

	if len(selected) == 0 {
		if len(repos) > maxWatchedRepos {
			repos = repos[:maxWatchedRepos]
		}
	} else {
		kept := repos[:0]
		for _, r := range repos {
			if selected[r.FullName] {
				kept = append(kept, r)
			}
		}
		repos = kept
	}
	if len(repos) == 0 {
		return nil, nil
	}

	baseline, err := a.st.Baseline(ctx)
	if err != nil {
		// Best effort: a missing baseline degrades to first-run behavior.
		log.Printf("github: loading commit baseline: %v", err)
		baseline = make(map[string]string)
	}
	hasBaseline := len(baseline) > 0

	var result []model.Notification
	for _, repo := range repos {
		commit, err := a.fetchLatestCommit(ctx, token, repo)
		if err != nil {
			log.Printf("github: latest commit for %s: %v", repo.FullName, err)
			continue
		}

		previous := baseline[repo.FullName]
		baseline[repo.FullName] = commit.SHA

		// First run, and first sight of a repository, set the baseline
		// without alerting.
		if !hasBaseline || previous == "" || previous == commit.SHA {
			continue
		}

		result = append(result, model.Notification{
			ID:        "gh-commit-" + repo.FullName + "-" + commit.SHA,
			Service:   model.ServiceGitHub,
			Title:     repo.FullName + " default branch updated",
			Subtitle:  "Latest on " + repo.DefaultBranch,
			Body:      commit.shortMessage(),
			Timestamp: service.ParseTime(commit.Commit.Author.Date, timeNow()),
			URL:       commit.HTMLURL,
			Icon:      "commit",
			Priority:  model.PriorityNormal,
		})
	}

	active := make(map[string]string, len(repos))
	for _, repo := range repos {
		if sha, ok := baseline[repo.FullName]; ok {
			active[repo.FullName] = sha
		}
	}
	if err := a.st.ReplaceBaseline(ctx, active); err != nil {
		log.Printf("github: saving commit baseline: %v", err)
	}

	return result, nil
}

func (a *Adapter) searchIssues(ctx context.Context, token, query string, perPage int) ([]searchItem, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "updated")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(perPage))

	var resp searchResponse
	apiURL := a.BaseURL + "/search/issues?" + params.Encode()
	if err := a.client.Get(ctx, apiURL, token, ghHeaders(), &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// fetchParticipatingRepos pages through the user's repositories,
// most recently updated first, capped at 5 pages of 100.
func (a *Adapter) fetchParticipatingRepos(ctx context.Context, token string) ([]repoSummary, error) {
	var repos []repoSummary

	for page := 1; page <= maxRepoPages; page++ {
		params := url.Values{}
		params.Set("type", "all")
		params.Set("sort", "updated")
		params.Set("direction", "desc")
		params.Set("per_page", strconv.Itoa(repoPageSize))
		params.Set("page", strconv.Itoa(page))

		var chunk []repoSummary
		apiURL := a.BaseURL + "/user/repos?" + params.Encode()
		if err := a.client.Get(ctx, apiURL, token, ghHeaders(), &chunk); err != nil {
			return nil, err
		}

		repos = append(repos, chunk...)
		if len(chunk) < repoPageSize {
			break
		}
	}
	return repos, nil
}

func (a *Adapter) fetchLatestCommit(ctx context.Context, token string, repo repoSummary) (commitResponse, error) {
	var commit commitResponse
	apiURL := a.BaseURL + "/repos/" + repo.FullName + "/commits/" + url.PathEscape(repo.DefaultBranch)
	if err := a.client.Get(ctx, apiURL, token, ghHeaders(), &commit); err != nil {
		return commitResponse{}, err
	}
	return commit, nil
}

func ghHeaders() map[string]string {
	return map[string]string{"Accept": "application/vnd.github+json"}
}
