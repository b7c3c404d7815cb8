package server

import (
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"

	"github.com/roofdocs/nexus/internal/agnes"
	"github.com/roofdocs/nexus/internal/ai"
	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/documents"
	"github.com/roofdocs/nexus/internal/emailgen"
	"github.com/roofdocs/nexus/internal/rag"
	"github.com/roofdocs/nexus/internal/susan"
	"github.com/roofdocs/nexus/internal/weather"
	"github.com/roofdocs/nexus/pkg/kv"
)

// App carries the shared state every handler needs.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	AI        *ai.Manager
	RAG       *rag.System
	Susan     *susan.Service
	Training  *agnes.Engine
	Emails    *emailgen.Generator
	Docs      *documents.Processor
	Weather   *weather.Client
	Limiter   *kv.StarskeyWindowStore // nil when the persistent store is unavailable
	StartTime time.Time

	sessionCleanerStop chan struct{}
}

// NewApp builds the application: opens the database, wires the AI manager
// and the feature services. The caller seeds content and starts the router.
func NewApp(cfg *config.Config) (*App, error) {
	a := &App{
		Config:    cfg,
		StartTime: time.Now(),
	}

	if _, err := InitializeDB(a); err != nil {
		return nil, err
	}

	a.AI = ai.NewManager(cfg, a.DB)
	a.RAG = rag.NewSystem(cfg, a.DB)
	a.Susan = susan.NewService(cfg, a.DB, a.AI, a.RAG)
	a.Training = agnes.NewEngine(cfg, a.DB, a.AI)
	a.Emails = emailgen.NewGenerator(cfg, a.AI)
	a.Docs = documents.NewProcessor(cfg)
	a.Weather = weather.NewClient(cfg)

	limiter, err := kv.NewStarskeyWindowStore(cfg.RateLimit.StoreDir,
		cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour)
	if err != nil {
		log.Error("Failed to create persistent rate limiter store, falling back to memory", "error", err)
	} else {
		a.Limiter = limiter
	}

	return a, nil
}

// GetConfig returns the configuration
func (a *App) GetConfig() *config.Config {
	return a.Config
}

// GetDB returns the database connection
func (a *App) GetDB() *sql.DB {
	return a.DB
}

func (a *App) GetUptime() string {
	return time.Since(a.StartTime).String()
}

func (a *App) GetVersionstring() string {
	return a.Config.App.Version
}

// Shutdown performs a clean shutdown of the application
func (a *App) Shutdown() error {
	log.Info("Initiating application shutdown")

	a.StopSessionCleaner()

	if a.Limiter != nil {
		if err := a.Limiter.Close(); err != nil {
			log.Error("Error closing rate limiter store", "error", err)
		}
	}

	if err := CloseDB(a); err != nil {
		log.Error("Error during database shutdown", "error", err)
		return err
	}

	log.Info("Application shutdown completed successfully")
	return nil
}
