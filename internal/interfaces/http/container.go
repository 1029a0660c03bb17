package http

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/icubam/icubam/internal/application/aggregation"
	"github.com/icubam/icubam/internal/application/authenticator"
	"github.com/icubam/icubam/internal/application/export"
	"github.com/icubam/icubam/internal/application/ingest"
	"github.com/icubam/icubam/internal/application/messaging"
	"github.com/icubam/icubam/internal/infrastructure/auth"
	"github.com/icubam/icubam/internal/infrastructure/cache"
	"github.com/icubam/icubam/internal/infrastructure/config"
	"github.com/icubam/icubam/internal/infrastructure/email"
	"github.com/icubam/icubam/internal/infrastructure/metrics"
	"github.com/icubam/icubam/internal/infrastructure/permission"
	"github.com/icubam/icubam/internal/infrastructure/ratelimit"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/infrastructure/scheduler"
	"github.com/icubam/icubam/internal/infrastructure/sms"
	"github.com/icubam/icubam/internal/infrastructure/telegram"
	pagetmpl "github.com/icubam/icubam/internal/infrastructure/template"
	"github.com/icubam/icubam/internal/infrastructure/token"
	"github.com/icubam/icubam/internal/interfaces/http/handlers"
	"github.com/icubam/icubam/internal/shared/biztime"
	"github.com/icubam/icubam/internal/shared/goroutine"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/queue"
	"github.com/icubam/icubam/internal/shared/services/markdown"
)

const (
	gaugeRefreshInterval = 5 * time.Minute
	webhookMaxTries      = 5
)

// Components selects the servers one process runs.
type Components struct {
	WWW       bool
	Messaging bool
}

// Container holds the infrastructure, services and handlers of the enabled
// components. Build it with NewContainer and release it with Shutdown.
type Container struct {
	cfg *config.Config
	log logger.Interface

	// Core infrastructure
	db      *gorm.DB
	redis   *redis.Client
	metrics *metrics.Metrics
	limiter ratelimit.Limiter

	// Store and authentication
	store *repository.Store
	auth  *authenticator.Authenticator

	// www
	markdown markdown.Renderer
	pages    *pagetmpl.PageLoader
	writer   *ingest.Writer
	exporter *export.Exporter
	maps     *aggregation.MapBuilder

	// messaging
	timers     *scheduler.Manager
	outbox     *queue.Queue[*messaging.Message]
	reports    *messaging.Scheduler
	dispatcher *messaging.Dispatcher
	bot        *telegram.BotService
	updates    *telegram.TextHandler
	polling    *telegram.PollingService

	// Handlers
	homeHandler          *handlers.HomeHandler
	updateHandler        *handlers.UpdateHandler
	externalHandler      *handlers.ExternalHandler
	messagingHomeHandler *handlers.HomeHandler
	scheduleHandler      *handlers.ScheduleHandler
	telegramHandler      *handlers.TelegramHandler
}

// NewContainer wires every dependency of the selected components on top of
// an open database connection. biztime must be initialised beforehand.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, components Components, log logger.Interface) (*Container, error) {
	c := &Container{
		cfg: cfg,
		log: log,
		db:  db,
	}

	// Section 1: Infrastructure - Redis, metrics, store, authenticator
	if err := c.initInfrastructure(ctx); err != nil {
		return nil, err
	}

	// Section 2: www - update form, external API
	if components.WWW {
		if err := c.initWWW(); err != nil {
			c.Shutdown(ctx)
			return nil, err
		}
	}

	// Section 3: messaging - report scheduler, dispatcher, chat bot
	if components.Messaging {
		if err := c.initMessaging(); err != nil {
			c.Shutdown(ctx)
			return nil, err
		}
	}

	return c, nil
}

func (c *Container) initInfrastructure(ctx context.Context) error {
	cfg := c.cfg

	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		c.redis = client
		c.limiter = ratelimit.NewRedisLimiter(client)
		c.log.Infow("redis connection established", "addr", cfg.Redis.GetAddr())
	} else {
		c.limiter = ratelimit.NewMemoryLimiter()
	}

	c.metrics = metrics.New()

	policy, err := permission.NewEnforcer(c.db, logger.WithComponent("permission"))
	if err != nil {
		return fmt.Errorf("failed to load role policy: %w", err)
	}
	c.store = repository.NewStore(c.db, policy, logger.WithComponent("store"))

	signer, err := auth.NewSessionSigner(cfg.Auth.JWT.Secret)
	if err != nil {
		return err
	}
	keys, err := token.NewAccessKeyHasher(cfg.Auth.AccessKeySalt)
	if err != nil {
		return err
	}
	c.auth = authenticator.New(
		c.store,
		token.NewTokenGenerator(),
		signer,
		keys,
		cfg.Auth.TokenValidityDays,
		logger.WithComponent("authenticator"),
	)
	return nil
}

func (c *Container) initWWW() error {
	cfg := c.cfg

	c.markdown = markdown.NewRenderer()
	c.pages = pagetmpl.NewPageLoader(cfg.Server.DisclaimerPath, c.markdown, logger.WithComponent("pages"))
	if err := c.pages.Load(); err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}

	c.writer = ingest.NewWriter(c.store, logger.WithComponent("ingest"))
	c.exporter = export.NewExporter(c.store, logger.WithComponent("export"))
	c.maps = aggregation.NewMapBuilder(c.store, cfg.Server.NumDaysForStale, logger.WithComponent("map"))

	c.homeHandler = handlers.NewHomeHandler("www", c.pages, c.healthChecks(), c.log)
	c.updateHandler = handlers.NewUpdateHandler(
		c.auth,
		c.store,
		c.writer,
		c.pages,
		c.markdown,
		cfg.Auth.Cookie,
		cfg.Server.NumDaysForStale,
		logger.WithComponent("update"),
	)
	c.externalHandler = handlers.NewExternalHandler(
		c.auth,
		c.exporter,
		c.maps,
		aggregation.MapOptions{
			MaxNodes:  cfg.Server.MaxClusterSize,
			KeepEmpty: cfg.Server.DisplayEmptyICU,
		},
		logger.WithComponent("external"),
	)
	return nil
}

func (c *Container) initMessaging() error {
	cfg := c.cfg

	moments, err := biztime.ParseMoments(cfg.Scheduler.DailyMoments)
	if err != nil {
		return err
	}

	c.timers, err = scheduler.NewManager(logger.WithComponent("timers"))
	if err != nil {
		return fmt.Errorf("failed to create timer scheduler: %w", err)
	}

	c.outbox = queue.New[*messaging.Message]()
	c.reports = messaging.NewScheduler(
		messaging.SchedulerConfig{
			Moments:       moments,
			Location:      biztime.Location(),
			ReminderDelay: cfg.Scheduler.ReminderInterval(),
			MaxRetries:    cfg.Scheduler.MaxRetries,
			BaseURL:       cfg.Server.BaseURL,
		},
		c.store,
		c.auth,
		c.timers,
		c.outbox,
		c.metrics,
		logger.WithComponent("scheduler"),
	)
	if err := c.timers.Every("pending-timers-gauge", gaugeRefreshInterval, messaging.GaugeJob{Scheduler: c.reports}); err != nil {
		return err
	}

	// Unconfigured channels stay nil interfaces.
	var tg, mail messaging.Sender
	if cfg.Telegram.Enabled() {
		c.bot = telegram.NewBotService(cfg.Telegram, logger.WithComponent("telegram"))
		tg = c.bot
	}
	if cfg.Email.Enabled() {
		mail = email.NewSMTPSender(cfg.Email, logger.WithComponent("email"))
	}
	text, err := sms.New(cfg.SMS, logger.WithComponent("sms"))
	if err != nil {
		return err
	}
	c.dispatcher = messaging.NewDispatcher(c.store, c.outbox, tg, mail, text, c.metrics, logger.WithComponent("dispatcher"))
	c.log.Infow("delivery channels configured",
		"telegram", tg != nil,
		"email", mail != nil,
		"sms_carrier", text.Carrier())

	if c.bot != nil {
		registrar := messaging.NewRegistrar(
			c.auth,
			c.store,
			c.bot,
			c.reports,
			time.Duration(cfg.Scheduler.PingDelay)*time.Second,
			logger.WithComponent("registrar"),
		)
		c.updates = telegram.NewTextHandler(registrar)
		c.telegramHandler = handlers.NewTelegramHandler(c.updates, cfg.Telegram.WebhookSecret, logger.WithComponent("telegram.webhook"))
		if cfg.Telegram.Mode == "polling" {
			var offsets telegram.OffsetStore
			if c.redis != nil {
				offsets = cache.NewPollingOffsetStore(c.redis, cfg.Telegram.BotName)
			}
			c.polling = telegram.NewPollingService(c.bot, c.updates, logger.WithComponent("telegram.polling"), offsets)
		}
	}

	c.messagingHomeHandler = handlers.NewHomeHandler("messaging", nil, c.healthChecks(), c.log)
	c.scheduleHandler = handlers.NewScheduleHandler(c.reports, c.store, logger.WithComponent("schedule"))
	return nil
}

func (c *Container) healthChecks() map[string]handlers.HealthChecker {
	checks := map[string]handlers.HealthChecker{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if c.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return c.redis.Ping(ctx).Err()
		}
	}
	return checks
}

// RunWriter drains the bed-count write queue until ctx is done.
func (c *Container) RunWriter(ctx context.Context) error {
	if c.writer == nil {
		return nil
	}
	return c.writer.Run(ctx)
}

// RunMessaging arms the report timers, connects the chat bot and delivers
// messages until ctx is done.
func (c *Container) RunMessaging(ctx context.Context) error {
	if c.reports == nil {
		return nil
	}

	c.timers.Start()
	if _, err := c.reports.ScheduleAll(ctx); err != nil {
		return fmt.Errorf("failed to schedule assignments: %w", err)
	}

	if c.bot != nil {
		switch {
		case c.polling != nil:
			if err := c.polling.Start(ctx); err != nil {
				return fmt.Errorf("failed to start telegram polling: %w", err)
			}
		case c.cfg.Telegram.WebhookURL != "":
			url := c.cfg.Telegram.WebhookURL
			goroutine.SafeGo(c.log, "telegram-webhook-registration", func() {
				if err := c.bot.RegisterWebhook(ctx, url, webhookMaxTries); err != nil {
					c.log.Errorw("telegram webhook not registered", "error", err)
					return
				}
				c.log.Infow("telegram webhook registered")
			})
		default:
			c.log.Warnw("telegram enabled without webhook url, updates will not be received")
		}
	}

	return c.dispatcher.Run(ctx)
}

// Shutdown stops background services and releases connections. The
// database connection belongs to the caller.
func (c *Container) Shutdown(ctx context.Context) {
	if c.polling != nil {
		c.polling.Stop()
	}
	if c.reports != nil {
		c.reports.Stop()
	}
	if c.timers != nil {
		if err := c.timers.Stop(); err != nil {
			c.log.Errorw("failed to stop timers", "error", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Errorw("failed to close redis client", "error", err)
		}
	}
}

// Store exposes the store to the command-line tools.
func (c *Container) Store() *repository.Store {
	return c.store
}

// Authenticator exposes token and key issuing to the command-line tools.
func (c *Container) Authenticator() *authenticator.Authenticator {
	return c.auth
}
