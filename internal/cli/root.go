// Package cli implements the shiksha command line interface: authentication,
// session management, chatting, and knowledge-base ingestion against a
// remote ShikshaSetu service.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/ag-tej/shiksha-setu/internal/api"
	"github.com/ag-tej/shiksha-setu/internal/config"
	"github.com/ag-tej/shiksha-setu/internal/crypto"
	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
	"github.com/ag-tej/shiksha-setu/internal/identity"
	"github.com/ag-tej/shiksha-setu/internal/logging"
	"github.com/ag-tej/shiksha-setu/internal/platform/version"
	"github.com/ag-tej/shiksha-setu/internal/store"
)

// App holds the wired dependency graph shared by all commands. It is built
// once in the root command's PersistentPreRunE.
type App struct {
	Config   *config.Config
	Identity *identity.Provider
	Store    *store.Store
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+apperrors.UserMessage(err)))
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Dependencies are wired lazily so that
// help and version work without a valid configuration.
func NewRootCmd() *cobra.Command {
	app := &App{}
	var configPath string

	info := version.Get()
	root := &cobra.Command{
		Use:   "shiksha",
		Short: "Chat with the ShikshaSetu learning assistant",
		Long: `shiksha is a client for the ShikshaSetu retrieval-augmented learning
assistant. It keeps chat sessions on the server, lets you feed documents and
websites into a session's knowledge base, and asks questions against it.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s, %s)", info.Version, info.Commit, info.BuildTime, info.GoVersion),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.bootstrap(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: "+config.DefaultPath()+")")

	root.AddCommand(
		newLoginCmd(app),
		newSignupCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newSessionsCmd(app),
		newChatCmd(app),
		newUploadCmd(app),
		newWebsiteCmd(app),
	)
	return root
}

func (a *App) bootstrap(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	cipher := crypto.Cipher(crypto.Noop{})
	if cfg.TokenEncryptionKey != "" {
		cipher, err = crypto.NewAESGCM(cfg.TokenEncryptionKey)
		if err != nil {
			return err
		}
	}
	var cache *identity.TokenCache
	if cfg.TokenCachePath != "" {
		cache = identity.NewTokenCache(cfg.TokenCachePath, cipher)
	}

	cred := identity.NewCredential()
	client := api.NewClient(cfg.ServerURL, cred, cfg.RequestTimeout.Std())
	provider := identity.NewProvider(client, cred, cache)

	a.Config = cfg
	a.Identity = provider
	a.Store = store.New(client, provider, clockwork.NewRealClock(), store.Options{
		PollInterval: cfg.IngestPollInterval.Std(),
		PollTimeout:  cfg.IngestPollTimeout.Std(),
	})
	return nil
}

// requireIdentity restores a cached token when present and fails with an
// unauthenticated error when no identity results.
func (a *App) requireIdentity(ctx context.Context) error {
	if _, ok := a.Identity.Current(); ok {
		return nil
	}
	_, restored, err := a.Identity.Restore(ctx)
	if err != nil {
		return err
	}
	if !restored {
		return apperrors.Unauthenticated("not logged in, run: shiksha login")
	}
	return nil
}

// activeSession refreshes the mapping and selects the requested session, the
// most recent one when id is empty.
func (a *App) activeSession(ctx context.Context, id string) error {
	if err := a.Store.Refresh(ctx); err != nil {
		return err
	}
	sessions := a.Store.Sessions()
	if len(sessions) == 0 {
		return apperrors.Precondition("no sessions yet, run: shiksha sessions new")
	}
	if id == "" {
		id = sessions[0].ID
	}
	a.Store.Select(id)
	if _, ok := a.Store.Active(); !ok {
		return apperrors.Precondition(fmt.Sprintf("no session with ID %q", id))
	}
	return nil
}
