package cli

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/chiefhq/chief/internal/calendar"
	"github.com/chiefhq/chief/internal/prefs"
	"github.com/chiefhq/chief/internal/scheduling/application/services"
	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/chiefhq/chief/pkg/config"
)

// App holds the CLI application dependencies.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Repositories
	Tasks     domain.TaskRepository
	Decisions domain.DecisionLogRepository

	// Calendar backend
	Calendar calendar.Store

	// Engine
	Replanner *services.Replanner
	States    services.SessionStateStore

	// Preference parsing
	Extractor prefs.Extractor

	// Current session (configured per environment)
	SessionID uuid.UUID
}

var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
