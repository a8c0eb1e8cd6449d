// Package app wires config, storage, the drafting backend and the engine
// together for the CLI and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xumezzan/marketplace-project/internal/config"
	"github.com/xumezzan/marketplace-project/internal/db"
	"github.com/xumezzan/marketplace-project/internal/drafting"
	"github.com/xumezzan/marketplace-project/internal/drafting/gemini"
	"github.com/xumezzan/marketplace-project/internal/drafting/remote"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/inflight"
	"github.com/xumezzan/marketplace-project/internal/logging"
	"github.com/xumezzan/marketplace-project/internal/migrate"
	"github.com/xumezzan/marketplace-project/internal/secrets"
)

type Options struct {
	Workspace string
	// Config overrides the workspace config file.
	Config *config.Config
	// LogLevel overrides log.level when set.
	LogLevel  string
	LogWriter io.Writer
	// Secrets replaces the AWS client used for generation.api_key_secret.
	Secrets secrets.Getter
}

// App holds everything a command needs. Close releases it.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Engine *engine.Engine
	Guard  inflight.Guard
	Log    zerolog.Logger

	closers []func()
}

// Open loads config, opens and migrates the workspace database, builds the
// engine and restores deals left open by a previous run.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.Workspace)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	log := logging.New(level, cfg.Log.Pretty, opts.LogWriter)

	a := &App{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	a.DB = conn
	a.closers = append(a.closers, func() { conn.Close() })
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	backend, err := BuildBackend(ctx, cfg.Generation, opts.Secrets, log)
	if err != nil {
		return nil, err
	}
	drafts := drafting.New(backend, drafting.WithCategories(cfg.Categories), drafting.WithLogger(log))
	a.Engine = engine.New(conn, cfg, engine.WithLogger(log), engine.WithDrafts(drafts))
	a.closers = append(a.closers, a.Engine.Close)

	restored, err := a.Engine.Rehydrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore deals: %w", err)
	}
	if restored > 0 {
		log.Info().Int("deals", restored).Msg("restored open deals")
	}

	if cfg.Redis.Address != "" {
		guard, err := inflight.NewRedis(ctx, inflight.RedisOptions{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
		}, log)
		if err != nil {
			return nil, err
		}
		a.Guard = guard
		a.closers = append(a.closers, guard.Close)
	} else {
		a.Guard = inflight.NewMemory()
	}

	ok = true
	return a, nil
}

// Close runs the closers in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// BuildBackend returns the configured generation backend. A missing
// credential is not fatal: the backend is left nil and draft calls fail with
// a configuration error until one is provided.
func BuildBackend(ctx context.Context, gen config.Generation, getter secrets.Getter, log zerolog.Logger) (drafting.Backend, error) {
	if gen.Backend == config.BackendNone {
		return nil, nil
	}
	key, err := resolveAPIKey(ctx, gen, getter)
	if err != nil {
		return nil, err
	}
	switch gen.Backend {
	case config.BackendRemote:
		client, err := remote.New(gen.Endpoint, key, gen.Timeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendGemini:
		if key == "" {
			log.Warn().Msg("generation.api_key is not set; drafting is disabled")
			return nil, nil
		}
		backend, err := gemini.New(ctx, gemini.Config{APIKey: key, Model: gen.Model, Endpoint: gen.Endpoint})
		if err != nil {
			return nil, err
		}
		return backend, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", drafting.ErrConfiguration, gen.Backend)
}

func resolveAPIKey(ctx context.Context, gen config.Generation, getter secrets.Getter) (string, error) {
	if key := strings.TrimSpace(gen.APIKey); key != "" || gen.APIKeySecret == "" {
		return key, nil
	}
	resolver := &secrets.Resolver{Client: getter}
	if getter == nil {
		r, err := secrets.NewResolver(ctx, gen.SecretRegion)
		if err != nil {
			return "", err
		}
		resolver = r
	}
	return resolver.APIKey(ctx, gen.APIKeySecret)
}
