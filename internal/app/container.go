// Package app wires configuration, storage, calendar backends and the
// scheduling engine into a runnable application.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"

	"github.com/chiefhq/chief/internal/calendar"
	"github.com/chiefhq/chief/internal/calendar/caldav"
	"github.com/chiefhq/chief/internal/calendar/google"
	"github.com/chiefhq/chief/internal/prefs"
	"github.com/chiefhq/chief/internal/scheduling/application/services"
	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/chiefhq/chief/internal/scheduling/infrastructure/persistence"
	"github.com/chiefhq/chief/internal/scheduling/infrastructure/state"
	"github.com/chiefhq/chief/internal/shared/infrastructure/eventbus"
	"github.com/chiefhq/chief/pkg/config"
)

// Container holds the wired application dependencies.
type Container struct {
	SessionID uuid.UUID

	Tasks     domain.TaskRepository
	Decisions domain.DecisionLogRepository
	Calendar  calendar.Store
	States    services.SessionStateStore
	Publisher eventbus.Publisher
	Extractor prefs.Extractor
	Replanner *services.Replanner

	// Bus is set in local mode so frontends can register in-process
	// consumers; nil when RabbitMQ carries the events.
	Bus *eventbus.InProcessEventBus

	db         *sql.DB
	pool       *pgxpool.Pool
	redisStore *state.RedisStateStore
	rabbit     *eventbus.RabbitMQPublisher
}

// NewContainer builds the dependency graph from configuration. Postgres is
// used when DATABASE_URL is set, the local SQLite file otherwise; Redis and
// RabbitMQ are optional and fall back to in-process implementations.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	sessionID, err := uuid.Parse(cfg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid CHIEF_SESSION_ID: %w", err)
	}

	c := &Container{SessionID: sessionID}

	if cfg.DatabaseURL != "" {
		pool, err := persistence.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.pool = pool
		c.Tasks = persistence.NewPostgresTaskRepository(pool)
		c.Decisions = persistence.NewPostgresDecisionLogRepository(pool)
	} else {
		db, err := persistence.OpenSQLite(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.Tasks = persistence.NewSQLiteTaskRepository(db)
		c.Decisions = persistence.NewSQLiteDecisionLogRepository(db)
	}

	if cfg.RedisURL != "" {
		redisStore, err := state.NewRedisStateStoreFromURL(ctx, cfg.RedisURL)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.redisStore = redisStore
		c.States = redisStore
	} else {
		c.States = state.NewMemoryStateStore()
	}

	if cfg.RabbitMQURL != "" {
		rabbit, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, err
			}
			logger.Warn("RabbitMQ not available, using in-process bus", "error", err)
			c.Bus = eventbus.NewInProcessEventBus(logger)
			c.Publisher = c.Bus
		} else {
			c.rabbit = rabbit
			c.Publisher = rabbit
		}
	} else {
		c.Bus = eventbus.NewInProcessEventBus(logger)
		c.Publisher = c.Bus
	}

	store, err := buildCalendarStore(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Calendar = calendar.NewBreakerStore(store, logger, calendar.DefaultBreakerConfig())

	c.Extractor = prefs.NewRuleBasedExtractor()

	recorder := services.NewDecisionRecorder(c.Decisions, c.Publisher, logger, cfg.StoreRetries, cfg.StoreBackoff)
	replannerCfg := services.DefaultReplannerConfig()
	replannerCfg.Cadence = cfg.Cadence
	replannerCfg.IdleCadence = cfg.IdleCadence
	replannerCfg.WorkDayStartHour = cfg.WorkDayStartHour
	replannerCfg.WorkDayEndHour = cfg.WorkDayEndHour
	replannerCfg.StoreRetries = cfg.StoreRetries
	replannerCfg.StoreBackoff = cfg.StoreBackoff

	c.Replanner = services.NewReplanner(
		sessionID,
		c.Tasks,
		c.Calendar,
		recorder,
		services.NewConflictDetector(),
		services.NewSlotAllocator(services.NewUrgencyScorer()),
		c.States,
		c.Publisher,
		logger,
		replannerCfg,
	)

	return c, nil
}

// Ping verifies the storage backend is reachable.
func (c *Container) Ping(ctx context.Context) error {
	if c.pool != nil {
		return c.pool.Ping(ctx)
	}
	if c.db != nil {
		return c.db.PingContext(ctx)
	}
	return nil
}

// Close releases every held connection.
func (c *Container) Close() {
	if c.rabbit != nil {
		c.rabbit.Close()
	}
	if c.redisStore != nil {
		_ = c.redisStore.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}

func buildCalendarStore(cfg *config.Config, logger *slog.Logger) (calendar.Store, error) {
	switch cfg.CalendarBackend {
	case "", "memory":
		return calendar.NewMemoryStore(), nil
	case "caldav":
		if cfg.CalDAVURL == "" {
			return nil, fmt.Errorf("CALDAV_URL is required for the caldav backend")
		}
		store := caldav.NewStore(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, logger)
		if cfg.CalendarID != "" && cfg.CalendarID != "primary" {
			store = store.WithCalendarPath(cfg.CalendarID)
		}
		return store, nil
	case "google":
		if cfg.GoogleToken == "" {
			return nil, fmt.Errorf("GOOGLE_ACCESS_TOKEN is required for the google backend")
		}
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GoogleToken})
		return google.NewStore(source, logger).WithCalendarID(cfg.CalendarID), nil
	default:
		return nil, fmt.Errorf("unknown calendar backend %q", cfg.CalendarBackend)
	}
}
