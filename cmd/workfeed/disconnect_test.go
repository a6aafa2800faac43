package main

import (
	"context"
	"testing"

	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/settings"
	"github.com/nhle/workfeed/tests/testutil"
)

func newTestRuntime(t *testing.T) *runtime {
	t.Helper()
	creds := testutil.NewMemoryCredentials()
	st := testutil.NewTestStore(t)
	cfg, err := settings.Load(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	return &runtime{
		creds:    creds,
		store:    st,
		settings: cfg,
		engine:   oauth.NewEngine(creds, nil),
	}
}

func addGitHubAccount(t *testing.T, rt *runtime, login string) {
	t.Helper()
	if err := rt.creds.PutBundle(model.ServiceGitHub, login, credential.Bundle{AccessToken: "token-" + login}); err != nil {
		t.Fatal(err)
	}
	if err := rt.creds.AddAccount(model.ServiceGitHub, login); err != nil {
		t.Fatal(err)
	}
}

func TestDisconnectAllResetsGitHubState(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	addGitHubAccount(t, rt, "octocat")
	addGitHubAccount(t, rt, "hubber")
	if err := rt.settings.SetActiveAccount(ctx, "octocat"); err != nil {
		t.Fatal(err)
	}
	if err := rt.settings.MarkAuthenticated(ctx, model.ServiceGitHub, true); err != nil {
		t.Fatal(err)
	}
	if err := rt.store.ReplaceBaseline(ctx, map[string]string{"octo/widgets": "aaa111"}); err != nil {
		t.Fatal(err)
	}

	if err := rt.disconnect(ctx, model.ServiceGitHub, "", true); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	accounts, err := rt.creds.ListAccounts(model.ServiceGitHub)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 0 {
		t.Errorf("registry still holds %v", accounts)
	}
	if rt.creds.HasBundle(model.ServiceGitHub, "octocat") || rt.creds.HasBundle(model.ServiceGitHub, "hubber") {
		t.Error("account bundles survived a full disconnect")
	}
	if active := rt.settings.ActiveAccount(); active != "" {
		t.Errorf("active account = %q, want cleared", active)
	}
	if rt.settings.IsAuthenticated(model.ServiceGitHub) {
		t.Error("service still marked authenticated")
	}

	baseline, err := rt.store.Baseline(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(baseline) != 0 {
		t.Errorf("commit baseline survived: %v", baseline)
	}
}

func TestDisconnectGitHubDefaultRemovesEveryAccount(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	addGitHubAccount(t, rt, "octocat")
	addGitHubAccount(t, rt, "hubber")
	if err := rt.settings.SetActiveAccount(ctx, "octocat"); err != nil {
		t.Fatal(err)
	}

	if err := rt.disconnect(ctx, model.ServiceGitHub, "", false); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	if rt.creds.HasBundle(model.ServiceGitHub, "octocat") || rt.creds.HasBundle(model.ServiceGitHub, "hubber") {
		t.Error("flag-less GitHub disconnect left account bundles behind")
	}
	if active := rt.settings.ActiveAccount(); active != "" {
		t.Errorf("active account = %q, want cleared", active)
	}
}

func TestDisconnectAccountRepointsActive(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	addGitHubAccount(t, rt, "octocat")
	addGitHubAccount(t, rt, "hubber")
	if err := rt.settings.SetActiveAccount(ctx, "octocat"); err != nil {
		t.Fatal(err)
	}
	if err := rt.settings.MarkAuthenticated(ctx, model.ServiceGitHub, true); err != nil {
		t.Fatal(err)
	}

	// Mixed case on the flag still matches the normalized pointer.
	if err := rt.disconnect(ctx, model.ServiceGitHub, "OctoCat", false); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	if active := rt.settings.ActiveAccount(); active != "hubber" {
		t.Errorf("active account = %q, want hubber", active)
	}
	if !rt.settings.IsAuthenticated(model.ServiceGitHub) {
		t.Error("service lost authentication while an account remains")
	}
}

func TestDisconnectLastAccountClearsBaseline(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	addGitHubAccount(t, rt, "octocat")
	if err := rt.settings.SetActiveAccount(ctx, "octocat"); err != nil {
		t.Fatal(err)
	}
	if err := rt.store.ReplaceBaseline(ctx, map[string]string{"octo/widgets": "aaa111"}); err != nil {
		t.Fatal(err)
	}

	if err := rt.disconnect(ctx, model.ServiceGitHub, "octocat", false); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	if active := rt.settings.ActiveAccount(); active != "" {
		t.Errorf("active account = %q, want cleared", active)
	}
	baseline, err := rt.store.Baseline(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(baseline) != 0 {
		t.Errorf("commit baseline survived: %v", baseline)
	}
}

func TestDisconnectOtherService(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	if err := rt.creds.PutBundle(model.ServiceNotion, "", credential.Bundle{AccessToken: "token"}); err != nil {
		t.Fatal(err)
	}
	if err := rt.settings.MarkAuthenticated(ctx, model.ServiceNotion, true); err != nil {
		t.Fatal(err)
	}

	if err := rt.disconnect(ctx, model.ServiceNotion, "", false); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	if rt.creds.HasBundle(model.ServiceNotion, "") {
		t.Error("bundle survived disconnect")
	}
	if rt.settings.IsAuthenticated(model.ServiceNotion) {
		t.Error("service still marked authenticated")
	}
}
