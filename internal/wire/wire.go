// Package wire provides dependency injection for apm.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/example/apm/internal/adapters/catalog"
	cliadapter "github.com/example/apm/internal/adapters/cli"
	"github.com/example/apm/internal/adapters/filesystem"
	"github.com/example/apm/internal/adapters/sqlite"
	"github.com/example/apm/internal/app"
	"github.com/example/apm/internal/cache"
	"github.com/example/apm/internal/config"
	"github.com/example/apm/internal/db"
	"github.com/example/apm/internal/events"
	"github.com/example/apm/internal/logging"
	"github.com/example/apm/internal/ports/primary"
)

// Options select the workspace the services are built for. They must be
// set with Configure before the first accessor call.
type Options struct {
	Dir    string         // workspace directory; empty means the working directory
	Fs     afero.Fs       // config and catalog filesystem; nil means the OS
	Config *config.Config // skips loading .apm/config.yaml when set
	Logger *zap.Logger    // skips building a logger from config when set
}

var (
	opts    Options
	once    sync.Once
	initErr error

	cfg             *config.Config
	logger          *zap.Logger
	database        *sql.DB
	sink            *events.Sink
	contextCache    *cache.Tiered
	contextService  *app.ContextServiceImpl
	entityService   primary.EntityService
	workflowService primary.WorkflowService
)

// Configure records the options used by Init. Calls after Init has run
// have no effect.
func Configure(o Options) {
	opts = o
}

// Init builds every service once. Later calls return the first result.
func Init(ctx context.Context) error {
	once.Do(func() {
		initErr = initServices(ctx)
	})
	return initErr
}

func mustInit() {
	if err := Init(context.Background()); err != nil {
		log.Fatalf("failed to initialize apm: %v", err)
	}
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices(ctx context.Context) error {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = wd
	}

	cfg = opts.Config
	if cfg == nil {
		loaded, err := config.Load(fs, dir)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger = opts.Logger
	if logger == nil {
		built, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		logger = built
	}

	var err error
	database, err = db.Open(ctx, cfg.Database.Driver, cfg.DatabasePath(dir), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Secondary adapters, all sharing the injected DB.
	entities := sqlite.NewEntityRepository(database)
	facts := sqlite.NewPluginFactsRepository(database)
	sessions := sqlite.NewSessionRepository(database)
	codeRefs := sqlite.NewCodeRefRepository(database)
	eventRepo := sqlite.NewEventRepository(database)

	contextCache = cache.NewTiered(sqlite.NewCacheRepository(database), logger.Named("cache"),
		cache.WithMaxEntries(cfg.Cache.MaxEntries))
	sink = events.NewSink(eventRepo, cfg.Events.QueueSize, logger.Named("events"))
	cat := catalog.New(fs, cfg.ResolvePath(dir, cfg.Catalog.Procedures), cfg.ResolvePath(dir, cfg.Catalog.Rules))

	contextService = app.NewContextService(app.ContextDeps{
		Entities:   entities,
		SixW:       sqlite.NewSixWRepository(database),
		Facts:      facts,
		CodeRefs:   codeRefs,
		Resolver:   filesystem.NewResolver(fs),
		Procedures: cat,
		Sessions:   sessions,
		Rules:      cat,
		Cache:      contextCache,
		Logger:     logger.Named("context"),
	}, app.ContextOptions{
		TTL:        cfg.Cache.TTL,
		StepBudget: cfg.Assembly.StepBudget,
	})
	entityService = app.NewEntityService(entities, sessions, codeRefs, facts, contextService, logger.Named("entity"))
	workflowService = app.NewWorkflowService(entities, contextService, sink, eventRepo, logger.Named("workflow"))
	return nil
}

// Shutdown drains the event sink within the configured timeout, then closes
// the database. It is safe to call when Init never ran or failed.
func Shutdown(ctx context.Context) error {
	var errList []error
	if sink != nil {
		drainCtx, cancel := context.WithTimeout(ctx, cfg.Events.DrainTimeout)
		if err := sink.Close(drainCtx); err != nil {
			errList = append(errList, fmt.Errorf("event sink: %w", err))
		}
		cancel()
	}
	if database != nil {
		if err := database.Close(); err != nil {
			errList = append(errList, fmt.Errorf("database: %w", err))
		}
	}
	if logger != nil {
		_ = logger.Sync()
	}
	return errors.Join(errList...)
}

// Config returns the loaded workspace configuration.
func Config() *config.Config {
	mustInit()
	return cfg
}

// Logger returns the process logger.
func Logger() *zap.Logger {
	mustInit()
	return logger
}

// Database returns the shared database handle.
func Database() *sql.DB {
	mustInit()
	return database
}

// EventSink returns the workflow event sink.
func EventSink() *events.Sink {
	mustInit()
	return sink
}

// ContextCache returns the tiered context cache.
func ContextCache() *cache.Tiered {
	mustInit()
	return contextCache
}

// ContextService returns the singleton ContextService instance.
func ContextService() primary.ContextService {
	mustInit()
	return contextService
}

// EntityService returns the singleton EntityService instance.
func EntityService() primary.EntityService {
	mustInit()
	return entityService
}

// WorkflowService returns the singleton WorkflowService instance.
func WorkflowService() primary.WorkflowService {
	mustInit()
	return workflowService
}

// EntityAdapterWithOutput returns a new EntityAdapter writing to the given output.
// Each call creates a new adapter (adapters are stateless translators).
func EntityAdapterWithOutput(out io.Writer) *cliadapter.EntityAdapter {
	return cliadapter.NewEntityAdapter(EntityService(), out)
}

// ContextAdapterWithOutput returns a new ContextAdapter writing to the given output.
func ContextAdapterWithOutput(out io.Writer) *cliadapter.ContextAdapter {
	return cliadapter.NewContextAdapter(ContextService(), out)
}

// WorkflowAdapterWithOutput returns a new WorkflowAdapter writing to the given output.
func WorkflowAdapterWithOutput(out io.Writer) *cliadapter.WorkflowAdapter {
	return cliadapter.NewWorkflowAdapter(WorkflowService(), out)
}
