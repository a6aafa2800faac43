package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/nhle/workfeed/internal/model"
)

// ExchangeStyle selects the request shape used for the token-endpoint
// exchange. Providers disagree on how the client secret travels.
type ExchangeStyle int

const (
	// ExchangeJSON sends a JSON body with the client secret in the body
	// (GitHub).
	ExchangeJSON ExchangeStyle = iota

	// ExchangeForm sends an application/x-www-form-urlencoded body
	// (Microsoft, Google).
	ExchangeForm

	// ExchangeBasicJSON sends HTTP Basic client credentials with a JSON
	// body (Notion).
	ExchangeBasicJSON
)

// Provider holds the immutable OAuth parameters for one service.
// Supplied at startup from the environment; never persisted.
type Provider struct {
	AuthorizeURL   string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	Scopes         string
	CallbackScheme string

	// Exchange selects the token-endpoint request shape.
	Exchange ExchangeStyle

	// UsePKCE enables the S256 code challenge on the authorize request.
	UsePKCE bool

	// TokensExpire is false for providers that issue durable tokens
	// (GitHub, Notion); their bundles are never refreshed.
	TokensExpire bool

	// ExtraAuthParams are appended verbatim to the authorize URL query.
	ExtraAuthParams map[string]string
}

// RedirectURI returns the callback URI registered with the provider.
func (p Provider) RedirectURI() string {
	return p.CallbackScheme + "://oauth/callback"
}

const callbackScheme = "workwidget"

// GitHub returns the OAuth parameters for GitHub.
func GitHub(clientID, clientSecret string) Provider {
	return Provider{
		AuthorizeURL:   "https://github.com/login/oauth/authorize",
		TokenURL:       "https://github.com/login/oauth/access_token",
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Scopes:         "notifications,read:user",
		CallbackScheme: callbackScheme,
		Exchange:       ExchangeJSON,
	}
}

// Microsoft returns the OAuth parameters for the Microsoft identity
// platform (Teams via the Graph API).
func Microsoft(clientID, clientSecret string) Provider {
	return Provider{
		AuthorizeURL:   "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL:       "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Scopes:         "Chat.Read ChannelMessage.Read.All offline_access",
		CallbackScheme: callbackScheme,
		Exchange:       ExchangeForm,
		UsePKCE:        true,
		TokensExpire:   true,
	}
}

// Notion returns the OAuth parameters for Notion. Notion requires the
// owner=user hint on the authorize request and Basic client auth on
// the token exchange.
func Notion(clientID, clientSecret string) Provider {
	return Provider{
		AuthorizeURL:    "https://api.notion.com/v1/oauth/authorize",
		TokenURL:        "https://api.notion.com/v1/oauth/token",
		ClientID:        clientID,
		ClientSecret:    clientSecret,
		CallbackScheme:  callbackScheme,
		Exchange:        ExchangeBasicJSON,
		ExtraAuthParams: map[string]string{"owner": "user"},
	}
}

// Google returns the OAuth parameters for Google Calendar.
func Google(clientID, clientSecret string) Provider {
	return Provider{
		AuthorizeURL:   "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:       "https://oauth2.googleapis.com/token",
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Scopes:         "https://www.googleapis.com/auth/calendar.readonly",
		CallbackScheme: callbackScheme,
		Exchange:       ExchangeForm,
		UsePKCE:        true,
		TokensExpire:   true,
	}
}

// Env supplies client credentials loaded from an env-format file with
// the process environment as fallback. The file is consulted first for
// every key; a key absent from the file falls through to os.Getenv.
type Env struct {
	file *viper.Viper
}

// LoadEnv reads the first existing file from paths as env-format
// configuration. A missing file is not an error; lookups then resolve
// from the process environment only.
func LoadEnv(paths ...string) (*Env, error) {
	if len(paths) == 0 {
		paths = DefaultEnvPaths()
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", path, err)
		}
		return &Env{file: v}, nil
	}

	return &Env{}, nil
}

// DefaultEnvPaths returns the search locations for the .env file:
// the working directory, then the user config directory.
func DefaultEnvPaths() []string {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "workfeed", ".env"))
	}
	return paths
}

// Get returns the value for key, preferring the loaded file over the
// process environment.
func (e *Env) Get(key string) string {
	if e.file != nil {
		if v := e.file.GetString(key); v != "" {
			return v
		}
	}
	return os.Getenv(key)
}

// ProviderFor builds the OAuth parameters for service from the loaded
// environment. Returns false when the service does not use OAuth.
func (e *Env) ProviderFor(service model.ServiceType) (Provider, bool) {
	switch service {
	case model.ServiceGitHub:
		return GitHub(e.Get("GITHUB_CLIENT_ID"), e.Get("GITHUB_CLIENT_SECRET")), true
	case model.ServiceTeams:
		return Microsoft(e.Get("MICROSOFT_CLIENT_ID"), e.Get("MICROSOFT_CLIENT_SECRET")), true
	case model.ServiceNotion:
		return Notion(e.Get("NOTION_CLIENT_ID"), e.Get("NOTION_CLIENT_SECRET")), true
	case model.ServiceGoogleCalendar:
		return Google(e.Get("GOOGLE_CLIENT_ID"), e.Get("GOOGLE_CLIENT_SECRET")), true
	default:
		return Provider{}, false
	}
}
