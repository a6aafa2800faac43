package oauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/credential"
)

// githubTokenResponse is GitHub's token-endpoint payload. GitHub
// reports errors with a 200 status and an error field.
type githubTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// standardTokenResponse is the RFC 6749 token payload used by
// Microsoft and Google.
type standardTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// notionTokenResponse is Notion's token payload. Tokens are durable;
// no refresh token or lifetime is issued.
type notionTokenResponse struct {
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
}

// githubProfile is the subset of GET /user needed to identify an
// account.
type githubProfile struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// parseTokenResponse decodes a token-endpoint response into a bundle.
// Expiry, when the provider reports a lifetime in seconds, is computed
// as now + lifetime.
func parseTokenResponse(style config.ExchangeStyle, body []byte) (credential.Bundle, error) {
	switch style {
	case config.ExchangeJSON:
		var resp githubTokenResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return credential.Bundle{}, fmt.Errorf("decoding token response: %w", err)
		}
		if resp.AccessToken == "" {
			detail := resp.Error
			if resp.ErrorDescription != "" {
				detail = resp.ErrorDescription
			}
			if detail == "" {
				detail = "empty access token"
			}
			return credential.Bundle{}, &ExchangeError{Detail: detail}
		}
		return credential.Bundle{AccessToken: resp.AccessToken}, nil

	case config.ExchangeBasicJSON:
		var resp notionTokenResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return credential.Bundle{}, fmt.Errorf("decoding token response: %w", err)
		}
		if resp.AccessToken == "" {
			return credential.Bundle{}, &ExchangeError{Detail: "empty access token"}
		}
		return credential.Bundle{AccessToken: resp.AccessToken}, nil

	default:
		var resp standardTokenResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return credential.Bundle{}, fmt.Errorf("decoding token response: %w", err)
		}
		if resp.AccessToken == "" {
			return credential.Bundle{}, &ExchangeError{Detail: "empty access token"}
		}

		bundle := credential.Bundle{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
		}
		if resp.ExpiresIn > 0 {
			expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
			bundle.ExpiresAt = &expiresAt
		}
		return bundle, nil
	}
}

func parseGitHubProfile(body []byte) (githubProfile, error) {
	var profile githubProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return githubProfile{}, fmt.Errorf("decoding profile response: %w", err)
	}
	return profile, nil
}

// encodeJSON marshals a body into a reader for a request.
func encodeJSON(body any) (io.Reader, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return bytes.NewReader(data), nil
}
