package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/spaproxy/internal/adapter/fsadapter"
	"github.com/jgivc/spaproxy/internal/config"
	httphandler "github.com/jgivc/spaproxy/internal/handler/http"
	"github.com/jgivc/spaproxy/internal/repository/deploy"
	"github.com/jgivc/spaproxy/internal/service/resolver"
	"github.com/jgivc/spaproxy/internal/service/static"
	"github.com/jgivc/spaproxy/internal/service/watch"
	"github.com/jgivc/spaproxy/internal/storage/index"
	"github.com/redis/go-redis/v9"
)

const (
	scanTimeout = 30 * time.Second
)

type watcher interface {
	Start(ctx context.Context) error
	Stop()
}

type App struct {
	cfgPath  string
	cfg      *config.Config
	srv      *http.Server
	resolver *resolver.ResolverService
	watcher  watcher
	rdb      *redis.Client
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

// Start wires everything together: config, logger, optional redis, the
// scanner, the resolver, the watcher and the HTTP listener. A failing bind
// is fatal; an empty or failing initial scan is not, the proxy starts and
// answers 404 until a scan succeeds.
func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	var (
		repo    resolver.DeployRepository
		history httphandler.HistoryService
	)
	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			panic(err)
		}

		a.rdb = redis.NewClient(opt)
		if _, err := a.rdb.Ping(context.Background()).Result(); err != nil {
			panic(fmt.Errorf("cannot connect to redis: %w", err))
		}

		dr := deploy.NewDeployRepository(a.rdb, log)
		repo = dr
		history = dr
	}

	fsa := fsadapter.NewFSAdapter(&a.cfg.ScannerConfig, log)
	store := index.NewIndexStorage(fsa, &a.cfg.ScannerConfig, log)
	a.resolver = resolver.NewResolverService(store, repo, log)
	staticSrv := static.NewStaticService(&a.cfg.ScannerConfig, log)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	scanCtx, scanCancel := context.WithTimeout(ctx, scanTimeout)
	if err := a.resolver.Reload(scanCtx); err != nil {
		log.Error("Initial scan failed, starting with an empty index", slog.Any("error", err))
	}
	scanCancel()

	if !a.cfg.WatchConfig.Disabled {
		w := watch.NewWatchService(&a.cfg.ScannerConfig, a.cfg.WatchConfig.Debounce(), a.resolver, log)
		if err := w.Start(ctx); err != nil {
			panic(fmt.Errorf("cannot start deployment watch: %w", err))
		}
		a.watcher = w
	}

	router := httphandler.NewRouter(&a.cfg.ServerConfig, a.resolver, staticSrv,
		a.resolver, a.resolver, history, log)

	ln, err := net.Listen("tcp", a.cfg.ServerConfig.Listen)
	if err != nil {
		panic(fmt.Errorf("cannot bind %s: %w", a.cfg.ServerConfig.Listen, err))
	}

	a.srv = &http.Server{
		Handler: router,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.ServerConfig.Listen))

		if err := a.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.ServerConfig.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// Index triggers a manual rescan, used by the SIGUSR1 handler.
func (a *App) Index() {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	if err := a.resolver.TryReload(ctx); err != nil {
		a.log.Error("Cannot rebuild index", slog.Any("error", err))

		return
	}

	a.log.Info("Index rebuilt", slog.Int("properties", a.resolver.Size()))
}

// Stop drains in-flight requests within the configured grace period, then
// tears the rest down. A termination signal can land before Start has
// finished wiring, so every component is checked before use.
func (a *App) Stop() {
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ServerConfig.DrainTimeout())
		defer cancel()

		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Error("Shutdown did not drain in time, closing", slog.Any("error", err))
			a.srv.Close()
		}
	}

	if a.watcher != nil {
		a.watcher.Stop()
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.rdb != nil {
		a.rdb.Close()
	}
}
