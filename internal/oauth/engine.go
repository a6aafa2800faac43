// Package oauth implements the authorization-code flow, token
// refresh, and multi-account credential lifecycle for every OAuth
// provider.
package oauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/httpx"
	"github.com/nhle/workfeed/internal/model"
)

var (
	// ErrCancelled means the user dismissed the consent flow. It is
	// filtered out before display; cancellation is not a failure.
	ErrCancelled = errors.New("authorization cancelled by user")

	// ErrNoAuthorizationCode means the redirect carried no code.
	ErrNoAuthorizationCode = errors.New("no authorization code in callback")

	// ErrStateMismatch means the echoed state did not exactly equal the
	// nonce sent. Treated as a CSRF attempt and fatal to the flow.
	ErrStateMismatch = errors.New("state mismatch in authorization callback")

	// ErrUnsupportedService means the service does not use OAuth.
	ErrUnsupportedService = errors.New("service does not use OAuth")

	// ErrAuthorizationInFlight means an authorize attempt for the same
	// service has not settled yet. The engine does not queue attempts.
	ErrAuthorizationInFlight = errors.New("an authorization attempt is already in flight for this service")

	// ErrNotAuthenticated means no bundle is stored for the service.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoRefreshToken means the stored bundle expired and cannot be
	// refreshed.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// ExchangeError is a failed token exchange or refresh, carrying a
// truncated copy of the provider's response for diagnosability.
type ExchangeError struct {
	Detail string
}

func (e *ExchangeError) Error() string {
	return "token exchange failed: " + e.Detail
}

// refreshBuffer guards against using a token that expires mid-request:
// anything expiring within this window is refreshed up front.
const refreshBuffer = 5 * time.Minute

// Presenter runs the external interactive consent flow. Given the
// authorize URL and the redirect scheme to watch for, it returns the
// full redirect URL the provider sent the browser to, or ErrCancelled.
type Presenter interface {
	Present(ctx context.Context, authURL, callbackScheme string) (string, error)
}

// Account identifies one authorized account on a multi-account service.
type Account struct {
	Login       string
	DisplayName string
}

// Engine drives OAuth flows and token lifecycle. At most one authorize
// attempt per service may be in flight; a second concurrent attempt
// fails with ErrAuthorizationInFlight.
type Engine struct {
	creds     credential.Store
	presenter Presenter
	client    *http.Client

	// GitHubAPIBaseURL is the API root used for the profile lookup that
	// resolves a stable account login. Overridden in tests.
	GitHubAPIBaseURL string

	mu       sync.Mutex
	inFlight map[model.ServiceType]bool
}

// NewEngine creates an engine over the given credential store and
// consent presenter.
func NewEngine(creds credential.Store, presenter Presenter) *Engine {
	return &Engine{
		creds:            creds,
		presenter:        presenter,
		client:           &http.Client{Timeout: 30 * time.Second},
		GitHubAPIBaseURL: "https://api.github.com",
		inFlight:         make(map[model.ServiceType]bool),
	}
}

// Authorize runs the full authorization-code flow for a single-account
// service and persists the resulting bundle.
func (e *Engine) Authorize(ctx context.Context, service model.ServiceType, cfg config.Provider) (credential.Bundle, error) {
	if err := e.begin(service); err != nil {
		return credential.Bundle{}, err
	}
	defer e.end(service)

	bundle, err := e.runFlow(ctx, cfg)
	if err != nil {
		return credential.Bundle{}, err
	}

	if err := e.creds.PutBundle(service, "", bundle); err != nil {
		return credential.Bundle{}, fmt.Errorf("persisting bundle for %s: %w", service, err)
	}
	return bundle, nil
}

// AuthorizeAccount runs the flow for a multi-account service (GitHub),
// resolves a stable account login with one authenticated profile call,
// and persists the bundle under that login.
func (e *Engine) AuthorizeAccount(ctx context.Context, service model.ServiceType, cfg config.Provider) (Account, error) {
	if service != model.ServiceGitHub {
		return Account{}, ErrUnsupportedService
	}

	if err := e.begin(service); err != nil {
		return Account{}, err
	}
	defer e.end(service)

	bundle, err := e.runFlow(ctx, cfg)
	if err != nil {
		return Account{}, err
	}

	account, err := e.fetchGitHubProfile(ctx, bundle.AccessToken)
	if err != nil {
		return Account{}, err
	}

	if err := e.creds.PutBundle(service, account.Login, bundle); err != nil {
		return Account{}, fmt.Errorf("persisting bundle for %s/%s: %w", service, account.Login, err)
	}
	if err := e.creds.AddAccount(service, account.Login); err != nil {
		return Account{}, fmt.Errorf("registering account %s/%s: %w", service, account.Login, err)
	}
	return account, nil
}

// ValidAccessToken returns an access token safe to use for at least the
// refresh buffer. Expiring bundles are refreshed and re-persisted; the
// old refresh token is carried over when the provider does not reissue
// one.
func (e *Engine) ValidAccessToken(ctx context.Context, service model.ServiceType, account string, cfg config.Provider) (string, error) {
	bundle, err := e.creds.GetBundle(service, account)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", err
	}

	if !cfg.TokensExpire {
		return bundle.AccessToken, nil
	}
	if bundle.ExpiresAt == nil || time.Until(*bundle.ExpiresAt) > refreshBuffer {
		return bundle.AccessToken, nil
	}

	if bundle.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	refreshed, err := e.refresh(ctx, cfg, bundle.RefreshToken)
	if err != nil {
		return "", err
	}
	if err := e.creds.PutBundle(service, account, refreshed); err != nil {
		return "", fmt.Errorf("persisting refreshed bundle for %s: %w", service, err)
	}
	return refreshed.AccessToken, nil
}

// Disconnect deletes the single-slot credential for a service.
// Idempotent.
func (e *Engine) Disconnect(service model.ServiceType) error {
	return e.creds.DeleteBundle(service, "")
}

// DisconnectAccount deletes one account's credential and unregisters
// it. Idempotent.
func (e *Engine) DisconnectAccount(service model.ServiceType, account string) error {
	if err := e.creds.DeleteBundle(service, account); err != nil {
		return err
	}
	return e.creds.RemoveAccount(service, account)
}

// DisconnectAll deletes every stored credential for a service: all
// account slots, the registry, and the single slot.
func (e *Engine) DisconnectAll(service model.ServiceType) error {
	accounts, err := e.creds.ListAccounts(service)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if err := e.creds.DeleteBundle(service, account); err != nil {
			return err
		}
	}
	if err := e.creds.ClearAccounts(service); err != nil {
		return err
	}
	return e.creds.DeleteBundle(service, "")
}

// MigrateLegacyAccount moves a single-slot GitHub bundle left by older
// releases into the per-account scheme. Runs once at startup; does
// nothing when accounts are already registered or no legacy bundle
// exists. Returns the resolved login, or "" when nothing was migrated.
func (e *Engine) MigrateLegacyAccount(ctx context.Context, service model.ServiceType) (string, error) {
	if service != model.ServiceGitHub {
		return "", nil
	}

	accounts, err := e.creds.ListAccounts(service)
	if err != nil {
		return "", err
	}
	if len(accounts) > 0 {
		return "", nil
	}

	bundle, err := e.creds.GetBundle(service, "")
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	account, err := e.fetchGitHubProfile(ctx, bundle.AccessToken)
	if err != nil {
		return "", fmt.Errorf("resolving legacy account login: %w", err)
	}

	if err := e.creds.PutBundle(service, account.Login, bundle); err != nil {
		return "", err
	}
	if err := e.creds.AddAccount(service, account.Login); err != nil {
		return "", err
	}
	if err := e.creds.DeleteBundle(service, ""); err != nil {
		// Best effort; the account slot is already authoritative.
		log.Printf("oauth: removing legacy %s bundle: %v", service, err)
	}
	return account.Login, nil
}

// runFlow builds the authorize URL, waits for the consent redirect,
// verifies the echoed state, and exchanges the code for a bundle.
func (e *Engine) runFlow(ctx context.Context, cfg config.Provider) (credential.Bundle, error) {
	state := uuid.NewString()

	query := url.Values{}
	query.Set("client_id", cfg.ClientID)
	query.Set("redirect_uri", cfg.RedirectURI())
	query.Set("response_type", "code")
	query.Set("state", state)
	if cfg.Scopes != "" {
		query.Set("scope", cfg.Scopes)
	}
	for k, v := range cfg.ExtraAuthParams {
		query.Set(k, v)
	}

	verifier := ""
	if cfg.UsePKCE {
		v, err := generateVerifier()
		if err != nil {
			return credential.Bundle{}, err
		}
		verifier = v
		query.Set("code_challenge", challengeS256(verifier))
		query.Set("code_challenge_method", "S256")
	}

	authURL := cfg.AuthorizeURL + "?" + query.Encode()

	redirectURL, err := e.presenter.Present(ctx, authURL, cfg.CallbackScheme)
	if err != nil {
		return credential.Bundle{}, err
	}

	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return credential.Bundle{}, fmt.Errorf("parsing callback URL: %w", err)
	}

	params := parsed.Query()
	if params.Get("state") != state {
		return credential.Bundle{}, ErrStateMismatch
	}
	code := params.Get("code")
	if code == "" {
		return credential.Bundle{}, ErrNoAuthorizationCode
	}

	return e.exchange(ctx, cfg, code, verifier)
}

// exchange trades an authorization code for tokens, using the request
// shape the provider requires.
func (e *Engine) exchange(ctx context.Context, cfg config.Provider, code, verifier string) (credential.Bundle, error) {
	var req *http.Request
	var err error

	switch cfg.Exchange {
	case config.ExchangeJSON:
		body := map[string]string{
			"client_id":     cfg.ClientID,
			"client_secret": cfg.ClientSecret,
			"code":          code,
			"redirect_uri":  cfg.RedirectURI(),
		}
		req, err = jsonRequest(ctx, cfg.TokenURL, body)
		if err == nil {
			req.Header.Set("Accept", "application/json")
		}

	case config.ExchangeBasicJSON:
		body := map[string]string{
			"grant_type":   "authorization_code",
			"code":         code,
			"redirect_uri": cfg.RedirectURI(),
		}
		req, err = jsonRequest(ctx, cfg.TokenURL, body)
		if err == nil {
			basic := base64.StdEncoding.EncodeToString([]byte(cfg.ClientID + ":" + cfg.ClientSecret))
			req.Header.Set("Authorization", "Basic "+basic)
		}

	case config.ExchangeForm:
		form := url.Values{}
		form.Set("client_id", cfg.ClientID)
		form.Set("code", code)
		form.Set("redirect_uri", cfg.RedirectURI())
		form.Set("grant_type", "authorization_code")
		if cfg.ClientSecret != "" {
			form.Set("client_secret", cfg.ClientSecret)
		}
		if verifier != "" {
			form.Set("code_verifier", verifier)
		}
		req, err = formRequest(ctx, cfg.TokenURL, form)

	default:
		return credential.Bundle{}, fmt.Errorf("unknown exchange style %d", cfg.Exchange)
	}
	if err != nil {
		return credential.Bundle{}, err
	}

	body, err := e.send(req)
	if err != nil {
		return credential.Bundle{}, err
	}
	return parseTokenResponse(cfg.Exchange, body)
}

// refresh performs a refresh-token grant and returns the new bundle,
// carrying over the old refresh token when none is reissued.
func (e *Engine) refresh(ctx context.Context, cfg config.Provider, refreshToken string) (credential.Bundle, error) {
	form := url.Values{}
	form.Set("client_id", cfg.ClientID)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}

	req, err := formRequest(ctx, cfg.TokenURL, form)
	if err != nil {
		return credential.Bundle{}, err
	}

	body, err := e.send(req)
	if err != nil {
		return credential.Bundle{}, err
	}

	bundle, err := parseTokenResponse(config.ExchangeForm, body)
	if err != nil {
		return credential.Bundle{}, err
	}
	if bundle.RefreshToken == "" {
		bundle.RefreshToken = refreshToken
	}
	return bundle, nil
}

// send executes a token-endpoint request and returns the response body,
// converting non-2xx responses into ExchangeError with a truncated
// body.
func (e *Engine) send(req *http.Request) ([]byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExchangeError{Detail: httpx.Snippet(string(body))}
	}
	return body, nil
}

// fetchGitHubProfile resolves the authenticated user's login with one
// profile call. The login is the stable multi-account identifier.
func (e *Engine) fetchGitHubProfile(ctx context.Context, token string) (Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.GitHubAPIBaseURL+"/user", nil)
	if err != nil {
		return Account{}, fmt.Errorf("creating profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	body, err := e.send(req)
	if err != nil {
		return Account{}, err
	}

	profile, err := parseGitHubProfile(body)
	if err != nil {
		return Account{}, err
	}
	if profile.Login == "" {
		return Account{}, &ExchangeError{Detail: "profile lookup returned no login"}
	}

	account := Account{
		Login:       credential.NormalizeAccount(profile.Login),
		DisplayName: profile.Name,
	}
	if account.DisplayName == "" {
		account.DisplayName = profile.Login
	}
	return account, nil
}

func (e *Engine) begin(service model.ServiceType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[service] {
		return ErrAuthorizationInFlight
	}
	e.inFlight[service] = true
	return nil
}

func (e *Engine) end(service model.ServiceType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, service)
}

func jsonRequest(ctx context.Context, tokenURL string, body map[string]string) (*http.Request, error) {
	payload, err := encodeJSON(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, payload)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func formRequest(ctx context.Context, tokenURL string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}
