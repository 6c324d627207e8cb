// Package app assembles the service from configuration. The server, the
// worker and the CLI commands all start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/suPer8Hu/helpdesk-triage/internal/ai"
	"github.com/suPer8Hu/helpdesk-triage/internal/chat"
	"github.com/suPer8Hu/helpdesk-triage/internal/config"
	"github.com/suPer8Hu/helpdesk-triage/internal/db"
	"github.com/suPer8Hu/helpdesk-triage/internal/kb"
	"github.com/suPer8Hu/helpdesk-triage/internal/messaging"
	"github.com/suPer8Hu/helpdesk-triage/internal/notify"
	"github.com/suPer8Hu/helpdesk-triage/internal/resolver"
	"github.com/suPer8Hu/helpdesk-triage/internal/store"
	"github.com/suPer8Hu/helpdesk-triage/internal/store/redisstore"
	"github.com/suPer8Hu/helpdesk-triage/internal/ticketing"
	"github.com/suPer8Hu/helpdesk-triage/internal/ticketmap"
)

const redisKeyPrefix = "helpdesk:"

type App struct {
	Cfg config.Config
	Log *slog.Logger

	Store     store.Store
	Index     *kb.Index
	Resolver  *resolver.Chain
	Tickets   *ticketing.Client
	Mappings  *ticketmap.Store
	Messenger messaging.Messenger
	Chat      *chat.Service
	Notify    *notify.Handler

	mem   *store.MemoryStore
	redis *redis.Client
	db    *gorm.DB
	cron  *cron.Cron
}

// New wires every component. The caller owns the result and must Close it.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Cfg: cfg, Log: log}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openMappings(ctx); err != nil {
		a.Close()
		return nil, err
	}

	articles, err := kb.LoadDir(cfg.KB.Dir, log.With("component", "kb"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	a.Index = kb.NewIndex(articles, Weights(cfg.KB.Weights))

	a.Resolver = resolver.NewChainFromRegistry(ctx, ai.NewRegistryFromConfig(cfg), cfg.AI.Priority, resolver.Options{
		RemoteTimeout: cfg.AI.RemoteTimeout,
		LocalTimeout:  cfg.AI.LocalTimeout,
	}, log.With("component", "resolver"))
	log.Info("resolver ready", "backends", a.Resolver.Backends())

	a.Tickets = ticketing.NewClient(cfg.Freshservice.Domain, cfg.Freshservice.APIKey, log.With("component", "freshservice"))
	if a.Tickets.Mock() {
		log.Warn("freshservice not configured, tickets are mocked")
	}

	if cfg.Slack.BotToken != "" {
		a.Messenger = messaging.NewSlack(cfg.Slack.BotToken, cfg.Slack.APIBaseURL, log.With("component", "slack"))
	} else {
		log.Warn("slack bot token missing, replies are only logged")
		a.Messenger = messaging.LogMessenger{Log: log.With("component", "messenger")}
	}

	a.Chat = chat.NewService(
		chat.NewRepo(a.Store, cfg.Chat.SessionTTL, cfg.Chat.HistoryLimit),
		chat.Deps{
			Resolver:  a.Resolver,
			Articles:  a.Index,
			Tickets:   a.Tickets,
			Mappings:  a.Mappings,
			Messenger: a.Messenger,
			Log:       log.With("component", "chat"),
		},
		chat.Options{
			MaxAttempts:      cfg.Chat.MaxAttempts,
			StepsTimeout:     cfg.AI.StepsTimeout,
			HistoryLimit:     cfg.Chat.HistoryLimit,
			SerializePerUser: cfg.Chat.SerializePerUser,
		},
	)
	a.Notify = notify.NewHandler(a.Mappings, a.Tickets, a.Messenger, log.With("component", "notify"))
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch strings.ToLower(a.Cfg.Store.Backend) {
	case "", "memory":
		a.mem = store.NewMemoryStore()
		a.Store = a.mem
	case "redis":
		client, err := redisstore.Connect(ctx, a.Cfg.Redis.Addr, a.Cfg.Redis.Password, a.Cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.redis = client
		a.Store = redisstore.New(client, redisKeyPrefix)
	default:
		return fmt.Errorf("unknown store backend %q", a.Cfg.Store.Backend)
	}
	a.Log.Info("session store ready", "backend", a.Cfg.Store.Backend)
	return nil
}

func (a *App) openMappings(ctx context.Context) error {
	var mirror ticketmap.Mirror
	switch strings.ToLower(a.Cfg.Mapping.Mirror) {
	case "", "file":
		mirror = ticketmap.NewFileMirror(a.Cfg.Mapping.File)
	case "database", "db":
		gdb, err := db.Connect(a.Cfg.DB, a.Log.With("component", "db"))
		if err != nil {
			return err
		}
		a.db = gdb
		m := ticketmap.NewDBMirror(gdb)
		if err := m.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate ticket mappings: %w", err)
		}
		mirror = m
	case "none":
	default:
		return fmt.Errorf("unknown mapping mirror %q", a.Cfg.Mapping.Mirror)
	}

	a.Mappings = ticketmap.NewStore(a.Store, mirror, a.Cfg.Mapping.TTL, a.Log.With("component", "ticketmap"))
	if _, err := a.Mappings.Load(ctx); err != nil {
		a.Log.Error("ticket mappings not restored, starting empty", "error", err)
	}
	return nil
}

// StartHousekeeping schedules expiry sweeps and mirror flushes.
func (a *App) StartHousekeeping() error {
	c := cron.New()
	if a.mem != nil {
		if _, err := c.AddFunc("@every 1m", func() {
			if n := a.mem.Sweep(); n > 0 {
				a.Log.Debug("expired entries swept", "count", n)
			}
		}); err != nil {
			return err
		}
	}
	if _, err := c.AddFunc("@every 5m", func() {
		if err := a.Mappings.Flush(context.Background()); err != nil {
			a.Log.Error("periodic mapping flush failed", "error", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	a.cron = c
	return nil
}

// Close stops housekeeping, flushes mappings and releases connections.
func (a *App) Close() error {
	var errs []error
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.Mappings != nil {
		a.Mappings.Wait()
		if err := a.Mappings.Flush(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := db.Close(a.db); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Weights converts the configured matcher weights.
func Weights(w config.KBWeights) kb.Weights {
	return kb.Weights{
		KeywordExact:     w.KeywordExact,
		KeywordInQuery:   w.KeywordInQuery,
		QueryInKeyword:   w.QueryInKeyword,
		TitleExact:       w.TitleExact,
		TitleWordInQuery: w.TitleWordInText,
		QueryWordInTitle: w.QueryWordInText,
		Threshold:        w.Threshold,
	}
}
