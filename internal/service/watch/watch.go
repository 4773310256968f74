package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/jgivc/spaproxy/internal/config"
)

const (
	serviceName = "watch"

	reloadTimeout = 30 * time.Second
)

type Reloader interface {
	Reload(ctx context.Context) error
}

// watchService monitors the work dir for deployments: new property folders,
// manifest writes, removals. Change bursts are debounced into a single
// reload, so at most one rescan is triggered per quiet period.
type watchService struct {
	cfg              *config.ScannerConfig
	debounceInterval time.Duration
	reloader         Reloader
	watcher          *fsnotify.Watcher
	done             chan struct{}
	log              *slog.Logger
}

func NewWatchService(cfg *config.ScannerConfig, debounceInterval time.Duration, reloader Reloader, log *slog.Logger) *watchService {
	return &watchService{
		cfg:              cfg,
		debounceInterval: debounceInterval,
		reloader:         reloader,
		log:              log.With(slog.String("service", serviceName)),
	}
}

// Start begins watching. It fails when the work dir itself cannot be
// watched; per-property watches are best effort.
func (s *watchService) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}

	if err := watcher.Add(s.cfg.WorkDir); err != nil {
		watcher.Close()

		return fmt.Errorf("cannot watch %s: %w", s.cfg.WorkDir, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	s.addPropertyDirs()

	go s.loop(ctx)

	s.log.Info("Watching for deployments", slog.String("work_dir", s.cfg.WorkDir))

	return nil
}

// Stop ends the watch. An in-flight reload is left to finish on its own.
func (s *watchService) Stop() {
	if s.watcher == nil {
		return
	}

	s.watcher.Close()
	<-s.done
}

func (s *watchService) loop(ctx context.Context) {
	defer close(s.done)

	debounced := debounce.New(s.debounceInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if s.relevant(event) {
				s.log.Debug("Deployment change detected",
					slog.String("op", event.Op.String()), slog.String("path", event.Name))
				debounced(s.onChange)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			s.log.Error("Watch error", slog.Any("error", err))
		}
	}
}

// relevant filters events down to ones that can change the resolution
// index: anything happening directly in the work dir (property folders
// appearing or disappearing) and any change to a manifest file. Plain asset
// writes inside a property do not trigger a rescan.
func (s *watchService) relevant(event fsnotify.Event) bool {
	if filepath.Dir(event.Name) == filepath.Clean(s.cfg.WorkDir) {
		return true
	}

	return filepath.Base(event.Name) == s.cfg.ManifestFileName
}

func (s *watchService) onChange() {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	s.log.Info("Deployment change detected, reloading index")

	if err := s.reloader.Reload(ctx); err != nil {
		s.log.Error("Cannot reload index", slog.Any("error", err))

		return
	}

	// New property folders need their own watch for manifest updates.
	s.addPropertyDirs()
}

func (s *watchService) addPropertyDirs() {
	entries, err := os.ReadDir(s.cfg.WorkDir)
	if err != nil {
		s.log.Error("Cannot list work dir", slog.String("work_dir", s.cfg.WorkDir), slog.Any("error", err))

		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(s.cfg.WorkDir, entry.Name())
		if err := s.watcher.Add(dir); err != nil {
			s.log.Error("Cannot watch property dir", slog.String("dir", dir), slog.Any("error", err))
		}
	}
}
