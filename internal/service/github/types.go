package github

import (
	"strings"

	"github.com/nhle/workfeed/internal/model"
)

// threadNotification is one entry from GET /notifications.
type threadNotification struct {
	ID         string `json:"id"`
	Unread     bool   `json:"unread"`
	Reason     string `json:"reason"`
	UpdatedAt  string `json:"updated_at"`
	Subject    subject
	Repository repoRef `json:"repository"`
}

type subject struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"` // "PullRequest", "Issue", "Release", "Discussion", ...
}

type repoRef struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

// htmlURL converts the subject's API URL to a browser URL:
// api.github.com/repos/owner/repo/pulls/42 -> github.com/owner/repo/pull/42.
func (n threadNotification) htmlURL() string {
	if n.Subject.URL == "" {
		return ""
	}
	u := strings.Replace(n.Subject.URL, "api.github.com/repos", "github.com", 1)
	return strings.Replace(u, "/pulls/", "/pull/", 1)
}

// icon picks the icon hint by subject type.
func (n threadNotification) icon() string {
	switch n.Subject.Type {
	case "PullRequest":
		return "pull-request"
	case "Issue":
		return "issue"
	case "Release":
		return "tag"
	case "Discussion":
		return "chat"
	default:
		return "branch"
	}
}

// priority maps the notification reason to urgency.
func (n threadNotification) priority() model.Priority {
	switch n.Reason {
	case "review_requested", "assign", "security_alert", "mention", "team_mention":
		return model.PriorityHigh
	case "ci_activity":
		return model.PriorityLow
	default:
		return model.PriorityNormal
	}
}

// reasonText renders the machine reason for display
// ("review_requested" -> "Review requested").
func (n threadNotification) reasonText() string {
	text := strings.ReplaceAll(n.Reason, "_", " ")
	if text == "" {
		return ""
	}
	return strings.ToUpper(text[:1]) + text[1:]
}

// searchResponse is the GET /search/issues payload.
type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []searchItem `json:"items"`
}

type searchItem struct {
	NodeID        string          `json:"node_id"`
	Number        int             `json:"number"`
	Title         string          `json:"title"`
	HTMLURL       string          `json:"html_url"`
	RepositoryURL string          `json:"repository_url"`
	UpdatedAt     string          `json:"updated_at"`
	PullRequest   *map[string]any `json:"pull_request,omitempty"`
}

// repoFullName derives "owner/repo" from the repository API URL.
func (i searchItem) repoFullName() string {
	const marker = "/repos/"
	idx := strings.Index(i.RepositoryURL, marker)
	if idx < 0 {
		return ""
	}
	return i.RepositoryURL[idx+len(marker):]
}

// repoSummary is one entry from GET /user/repos.
type repoSummary struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

// commitResponse is GET /repos/{repo}/commits/{ref}.
type commitResponse struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// shortMessage returns the commit subject line.
func (c commitResponse) shortMessage() string {
	if idx := strings.IndexByte(c.Commit.Message, '\n'); idx >= 0 {
		return c.Commit.Message[:idx]
	}
	return c.Commit.Message
}
