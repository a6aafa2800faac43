package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/workfeed/internal/aggregate"
	"github.com/nhle/workfeed/internal/app"
	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service"
	"github.com/nhle/workfeed/internal/service/gcal"
	"github.com/nhle/workfeed/internal/service/github"
	"github.com/nhle/workfeed/internal/service/notion"
	"github.com/nhle/workfeed/internal/service/syscal"
	"github.com/nhle/workfeed/internal/service/teams"
	"github.com/nhle/workfeed/internal/settings"
	"github.com/nhle/workfeed/internal/store"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "workfeed",
	Short: "Aggregate work notifications into one terminal panel",
	Long: `workfeed pulls notifications from GitHub, Microsoft Teams, Notion,
Google Calendar, and the system calendar into a single polling feed
with pinning and per-repository grouping.

Quick start:
  workfeed connect github     # authorize GitHub
  workfeed run                # open the panel`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPanel(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the state database (defaults to the user config dir)")
}

// runtime is everything a command needs, wired once at startup.
type runtime struct {
	env      *config.Env
	creds    credential.Store
	store    *store.SQLiteStore
	settings *settings.Settings
	engine   *oauth.Engine
}

func newRuntime(ctx context.Context) (*runtime, error) {
	env, err := config.LoadEnv(config.DefaultEnvPaths()...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	creds, err := credential.OpenKeyring()
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}

	path := dbPath
	if path == "" {
		path = store.DefaultDBPath()
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	cfg, err := settings.Load(ctx, st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	engine := oauth.NewEngine(creds, &terminalPresenter{})

	if login, err := engine.MigrateLegacyAccount(ctx, model.ServiceGitHub); err != nil {
		log.Printf("legacy account migration: %v", err)
	} else if login != "" {
		log.Printf("migrated legacy GitHub credentials to account %s", login)
		if cfg.ActiveAccount() == "" {
			if err := cfg.SetActiveAccount(ctx, login); err != nil {
				log.Printf("recording active account: %v", err)
			}
		}
	}

	return &runtime{env: env, creds: creds, store: st, settings: cfg, engine: engine}, nil
}

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		log.Printf("closing state database: %v", err)
	}
}

// services builds the adapter list from provider configuration. A
// service with no configured client credentials is skipped.
func (r *runtime) services() []service.Service {
	var list []service.Service

	if cfg, ok := r.env.ProviderFor(model.ServiceGitHub); ok {
		list = append(list, github.NewAdapter(r.engine, r.creds, r.settings, r.store, cfg))
	}
	if cfg, ok := r.env.ProviderFor(model.ServiceTeams); ok {
		list = append(list, teams.NewAdapter(r.engine, cfg))
	}
	if cfg, ok := r.env.ProviderFor(model.ServiceNotion); ok {
		list = append(list, notion.NewAdapter(r.engine, cfg))
	}
	if cfg, ok := r.env.ProviderFor(model.ServiceGoogleCalendar); ok {
		list = append(list, gcal.NewAdapter(r.engine, r.settings, cfg))
	}
	list = append(list, syscal.NewAdapter(systemEventSource(), r.settings))

	return list
}

func runPanel(ctx context.Context) error {
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	agg, err := aggregate.New(ctx, rt.services(), rt.settings, rt.store)
	if err != nil {
		return fmt.Errorf("loading pinned notifications: %w", err)
	}

	agg.StartPolling(ctx)
	defer agg.StopPolling()

	program := tea.NewProgram(app.New(agg), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
