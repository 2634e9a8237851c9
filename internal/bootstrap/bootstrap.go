// Package bootstrap wires configuration, storage, delivery and services into one graph shared
// by the HTTP server and the lessonctl commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/handler"
	"github.com/noah-isme/lessonsync-api/internal/repository"
	"github.com/noah-isme/lessonsync-api/internal/service"
	"github.com/noah-isme/lessonsync-api/pkg/cache"
	"github.com/noah-isme/lessonsync-api/pkg/config"
	"github.com/noah-isme/lessonsync-api/pkg/database"
	"github.com/noah-isme/lessonsync-api/pkg/notify"
	"github.com/noah-isme/lessonsync-api/pkg/signing"
)

const tokenIssuer = "lessonsync-api"

// Dependencies is the assembled application graph.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	Redis *redis.Client
	NATS  *nats.Conn

	Clock      service.Clock
	Metrics    *service.MetricsService
	Catalog    *repository.SeriesCatalog
	Dispatcher *notify.Dispatcher

	Members      *repository.MemberRepository
	Resolver     *service.ScheduleResolver
	Participants *service.ParticipantService
	Availability *service.AvailabilityService
	Engine       *service.VotingEngine
	Changes      *service.LessonChangeService
	Weekly       *service.WeeklyScheduleService
	Trigger      *service.LessonTriggerService
	Auth         *service.AuthService
}

// Build connects to Postgres (and Redis/NATS when configured) and constructs every service.
// The dispatcher is not started; call Start.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Dependencies, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			deps.Close()
		}
	}()

	catalog, err := repository.LoadSeriesCatalog(cfg.Lessons.SeriesFile)
	if err != nil {
		return nil, fmt.Errorf("load series catalog: %w", err)
	}
	deps.Catalog = catalog

	deps.DB, err = database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	deps.Clock = service.NewClock(cfg.Lessons.Location)
	deps.Metrics = service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Schedule.CacheEnabled {
		deps.Redis, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		cacheRepo = repository.NewCacheRepository(deps.Redis, "lessonsync")
	}
	scheduleCache := service.NewCacheService(cacheRepo, deps.Metrics, cfg.Schedule.CacheTTL, logger.Named("cache"), cfg.Schedule.CacheEnabled)

	var sink notify.Notifier
	if cfg.Notify.NATSURL != "" {
		deps.NATS, err = notify.Connect(cfg.Notify.NATSURL)
		if err != nil {
			return nil, err
		}
		sink = notify.NewNATSNotifier(deps.NATS, cfg.Notify.SubjectPrefix)
	} else {
		logger.Info("NATS_URL not set, notifications are only logged")
		sink = notify.NewLogNotifier(logger.Named("notify"))
	}
	deps.Dispatcher = notify.NewDispatcher(sink, notify.DispatcherConfig{
		Workers:       cfg.Notify.Workers,
		Retries:       cfg.Notify.Retries,
		RetryDelay:    time.Second,
		RatePerSecond: cfg.Notify.RatePerSecond,
		Logger:        logger.Named("dispatcher"),
		OnResult:      deps.Metrics.RecordNotification,
	})

	var notifications *service.NotificationService
	var changeDeps service.LessonChangeDeps
	if cfg.VoteLink.Secret != "" {
		signer := signing.NewVoteLinkSigner(cfg.VoteLink.Secret, cfg.VoteLink.BaseURL)
		notifications = service.NewNotificationService(deps.Dispatcher, signer, logger.Named("notifications"))
		changeDeps.Links = signer
	} else {
		notifications = service.NewNotificationService(deps.Dispatcher, nil, logger.Named("notifications"))
	}

	overrides := repository.NewLessonOverrideRepository(deps.DB)
	deps.Members = repository.NewMemberRepository(deps.DB)
	validate := validator.New()

	deps.Resolver = service.NewScheduleResolver(overrides, catalog, logger.Named("resolver"))
	deps.Participants = service.NewParticipantService(deps.Members)
	deps.Availability = service.NewAvailabilityService(
		repository.NewTeacherAvailabilityRepository(deps.DB),
		overrides,
		catalog,
		deps.Clock,
		service.SlotConfig{
			Granularity: cfg.Lessons.SlotGranularity,
			Limit:       cfg.Lessons.SlotLimit,
			MinLead:     cfg.Lessons.MinChangeLeadTime,
		},
		validate,
		logger.Named("availability"),
	)
	deps.Engine = service.NewVotingEngine(
		deps.DB,
		repository.NewChangeRequestRepository(deps.DB),
		repository.NewApprovalRepository(deps.DB),
		overrides,
		deps.Clock,
		deps.Metrics,
		logger.Named("voting"),
	)
	deps.Weekly = service.NewWeeklyScheduleService(deps.Resolver, catalog, deps.Participants, scheduleCache, cfg.Schedule.CacheTTL, deps.Clock, logger.Named("schedule"))

	changeDeps.Resolver = deps.Resolver
	changeDeps.Eligibility = service.NewEligibilityChecker(cfg.Lessons.MinChangeLeadTime)
	changeDeps.Slots = deps.Availability
	changeDeps.Participants = deps.Participants
	changeDeps.Engine = deps.Engine
	changeDeps.Notifier = notifications
	changeDeps.Schedule = deps.Weekly
	changeDeps.Clock = deps.Clock
	changeDeps.HorizonDays = cfg.Lessons.RescheduleHorizon
	changeDeps.Validator = validate
	changeDeps.Logger = logger.Named("changes")
	deps.Changes = service.NewLessonChangeService(changeDeps)

	deps.Trigger = service.NewLessonTriggerService(deps.Resolver, catalog, deps.Participants, notifications, deps.Clock, logger.Named("trigger"))
	deps.Auth = service.NewAuthService(deps.Members, logger.Named("auth"), service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: tokenIssuer,
	})

	return deps, nil
}

// Migrate applies pending schema migrations.
func (d *Dependencies) Migrate(ctx context.Context) (int, error) {
	return database.Migrate(ctx, d.DB, d.Logger.Named("migrate"))
}

// Start launches the notification workers.
func (d *Dependencies) Start(ctx context.Context) {
	d.Dispatcher.Start(ctx)
}

// Router builds the HTTP surface over the graph.
func (d *Dependencies) Router() *gin.Engine {
	checks := map[string]handler.Pinger{"postgres": d.DB}
	if d.Redis != nil {
		checks["redis"] = redisPinger{client: d.Redis}
	}
	if d.NATS != nil {
		checks["nats"] = natsPinger{conn: d.NATS}
	}

	return handler.NewRouter(handler.RouterDeps{
		Config:        d.Config,
		Logger:        d.Logger,
		Tokens:        d.Auth,
		RequestMetric: d.Metrics,
		Auth:          handler.NewAuthHandler(d.Auth),
		Series:        handler.NewSeriesHandler(d.Weekly, d.Resolver, d.Changes, d.Clock, d.Config.Lessons.UpcomingHorizon),
		Changes:       handler.NewChangeHandler(d.Changes, d.Engine, d.Clock.Now),
		Availability:  handler.NewAvailabilityHandler(d.Availability),
		Schedule:      handler.NewScheduleHandler(d.Weekly),
		Metrics:       handler.NewMetricsHandler(d.Metrics, checks),
	})
}

// Close drains queued notifications and releases connections. Safe on a partial graph.
func (d *Dependencies) Close() {
	if d.Dispatcher != nil {
		d.Dispatcher.Stop()
	}
	if d.NATS != nil {
		if err := d.NATS.Drain(); err != nil {
			d.Logger.Warn("nats drain failed", zap.Error(err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Warn("postgres close failed", zap.Error(err))
		}
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

type natsPinger struct {
	conn *nats.Conn
}

func (p natsPinger) PingContext(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return errors.New("nats " + p.conn.Status().String())
	}
	return p.conn.FlushWithContext(ctx)
}

