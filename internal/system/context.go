package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"storefront/internal/appstate"
	"storefront/internal/assistant"
	"storefront/internal/auth"
	"storefront/internal/backup"
	"storefront/internal/capacity"
	"storefront/internal/collections"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/kvstore"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/reconcile"
)

// Options adjusts how a context is built.
type Options struct {
	// Hub is shared with other contexts of the process. When nil the context
	// opens and owns its own.
	Hub *Hub
	// Generator replaces the configured assistant provider.
	Generator assistant.Generator
	Now       func() time.Time
}

// Context is one running instance of the storefront over shared storage.
type Context struct {
	ID     string
	Config *config.Config

	Store       *kvstore.Store
	Notifier    *notify.Notifier
	Collections *collections.Collections
	State       *appstate.State
	Loop        *reconcile.Loop
	Advisor     *capacity.Advisor
	Backup      *backup.Service
	Scheduler   *backup.Scheduler // nil without a backup schedule
	Assistant   *assistant.Assistant
	Auth        *auth.Service

	hub     *Hub
	ownsHub bool

	unsubscribe func()
	durable     bool
	started     bool
	closed      bool
}

// New builds a context. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Context, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	hub, owns := opts.Hub, false
	if hub == nil {
		h, err := OpenHub(cfg)
		if err != nil {
			return nil, err
		}
		hub, owns = h, true
	}

	c := &Context{ID: uuid.NewString(), Config: cfg, hub: hub, ownsHub: owns}
	c.Store = kvstore.New(hub.Backend())
	c.Notifier = notify.New(hub.Bus(), c.ID)
	c.Store.SetPublisher(c.Notifier)
	c.Collections = collections.New(c.Store)
	c.State = appstate.New(c.Collections, appstate.Options{
		NotifyFlash:    cfg.GetNotifyFlash(),
		ReconcileFlash: cfg.GetReconcileFlash(),
		Now:            opts.Now,
	})
	c.Store.SetWarner(c.State)

	c.Loop = reconcile.New(c.State, reconcile.Options{
		Interval: cfg.GetReconcileInterval(),
		Jitter:   cfg.GetReconcileJitter(),
	})
	c.Advisor = capacity.New(hub.Backend(), cfg.Storage.QuotaBytes)
	c.Backup = backup.New(c.Store, cfg.Backup)

	sched, err := backup.NewScheduler(c.Backup, cfg.Backup)
	if err != nil {
		c.release()
		return nil, err
	}
	c.Scheduler = sched

	if opts.Generator != nil {
		c.Assistant = assistant.New(opts.Generator, cfg.GetAssistantTimeout())
	} else {
		c.Assistant = assistant.FromConfig(ctx, cfg.Assistant, cfg.GetAssistantTimeout())
	}
	c.Auth = auth.New(c.Collections, cfg.Auth)

	logging.Get(logging.CategoryBoot).Infow("context created", "id", c.ID, "backend", cfg.Storage.Backend, "shared_hub", !owns)
	return c, nil
}

// Start subscribes to changes and starts the background work: the
// cross-process bridge, the reconcile loop and scheduled backups.
func (c *Context) Start(ctx context.Context) error {
	if c.closed {
		return kvstore.ErrClosed
	}
	if c.started {
		return nil
	}
	log := logging.Get(logging.CategoryBoot)

	// subscribe first; the initial reconcile covers anything written before
	c.unsubscribe = c.Notifier.Subscribe(c.State.HandleChange)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.durable = c.Advisor.RequestDurability(gctx)
		return nil
	})
	g.Go(func() error {
		_, err := c.Loop.Trigger(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.unsubscribe()
		return fmt.Errorf("initial reconcile: %w", err)
	}

	if err := c.hub.StartBridge(ctx); err != nil {
		c.unsubscribe()
		return err
	}
	if err := c.Loop.Start(ctx); err != nil {
		c.unsubscribe()
		return err
	}
	if c.Scheduler != nil {
		c.Scheduler.Start()
	}
	c.started = true
	log.Infow("context started", "id", c.ID, "durable", c.durable)
	return nil
}

// Durable reports whether the backend agreed to keep data durable.
func (c *Context) Durable() bool { return c.durable }

// Restore imports a backup and re-reads every collection from storage.
func (c *Context) Restore(ctx context.Context, r io.Reader) (*backup.Result, error) {
	res, err := c.Backup.Import(ctx, r)
	if err != nil {
		return res, err
	}
	c.State.Reload()
	return res, nil
}

// Chat records a shopper message and the assistant's reply. ok is false
// when the store has the assistant turned off.
func (c *Context) Chat(ctx context.Context, text string) (reply domain.ChatMessage, ok bool) {
	settings := c.State.Settings()
	if !settings.AIAssistantEnabled {
		return domain.ChatMessage{}, false
	}
	c.State.AddMessage(domain.SenderUser, text)
	out, _ := c.Assistant.Reply(ctx, settings, c.chatLanguage(), text)
	return c.State.AddMessage(domain.SenderSupport, out), true
}

// chatLanguage is the shopper's chosen language, or the configured
// assistant language when they never chose one.
func (c *Context) chatLanguage() domain.Language {
	if _, chosen := c.Store.LoadRaw(collections.KeyLang); chosen {
		return c.State.Language()
	}
	if domain.Language(c.Config.Assistant.Language) == domain.LangEnglish {
		return domain.LangEnglish
	}
	return domain.LangBengali
}

// Close tears the context down in reverse order of Start.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.Notifier.Close()
	c.Loop.Stop()
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	err := c.release()
	logging.Get(logging.CategoryBoot).Infow("context closed", "id", c.ID)
	return err
}

func (c *Context) release() error {
	c.Store.SetPublisher(nil)
	c.Store.SetWarner(nil)
	if !c.ownsHub {
		return nil
	}
	if err := c.hub.Close(); err != nil && !errors.Is(err, kvstore.ErrClosed) {
		return err
	}
	return nil
}
