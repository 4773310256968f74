package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/config"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/spf13/afero"
)

const (
	maxDirs = 1000
)

type FSAdapter interface {
	ToProperty(folderPath string) (*entity.Property, error)
}

type indexStorage struct {
	running atomic.Bool
	fs      afero.Fs
	adapter FSAdapter
	cfg     *config.ScannerConfig
	log     *slog.Logger
}

func NewIndexStorage(adapter FSAdapter, cfg *config.ScannerConfig, log *slog.Logger) *indexStorage {
	return NewIndexStorageWithFS(afero.NewOsFs(), adapter, cfg, log)
}

func NewIndexStorageWithFS(fs afero.Fs, adapter FSAdapter, cfg *config.ScannerConfig, log *slog.Logger) *indexStorage {
	return &indexStorage{
		fs:      fs,
		adapter: adapter,
		cfg:     cfg,
		log:     log.With(slog.String("item", "IndexStorage")),
	}
}

// Scan walks the work dir and turns every property folder with a readable
// manifest into a Property. Folders with malformed manifests are logged and
// skipped, they never abort the scan. The result is sorted by RootDir so
// duplicate-path precedence downstream is deterministic. Only one scan may
// run at a time.
func (i *indexStorage) Scan(ctx context.Context) ([]*entity.Property, error) {
	if !i.running.CompareAndSwap(false, true) {
		return nil, common.ErrScanProcessHasAlreadyStarted
	}
	defer i.running.Store(false)

	entries, err := afero.ReadDir(i.fs, i.cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(i.cfg.WorkDir, entry.Name()))
		}

		if len(dirs) >= maxDirs {
			break
		}
	}

	if len(dirs) == 0 {
		return []*entity.Property{}, nil
	}

	in := make(chan string, len(dirs))
	out := make(chan *entity.Property, len(dirs))

	for _, dir := range dirs {
		in <- dir
	}
	close(in)

	var wg sync.WaitGroup
	wg.Add(i.cfg.Workers)
	for n := 0; n < i.cfg.Workers; n++ {
		go i.worker(ctx, n, in, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var props []*entity.Property
	for prop := range out {
		i.log.Info("Found property",
			slog.String("name", prop.Name), slog.String("path", prop.Path),
			slog.String("ref", prop.Ref), slog.String("root_dir", prop.RootDir))
		props = append(props, prop)
	}

	sort.Slice(props, func(a, b int) bool {
		return props[a].RootDir < props[b].RootDir
	})

	return props, nil
}

func (i *indexStorage) worker(ctx context.Context, n int, in chan string, out chan *entity.Property, wg *sync.WaitGroup) {
	defer wg.Done()

	log := i.log.With(slog.Int("worker_id", n))
	log.Debug("Started")

	for folderPath := range in {
		prop, err := i.adapter.ToProperty(folderPath)
		if err != nil {
			log.Error("Cannot scan folder", slog.String("folder_path", folderPath), slog.Any("error", err))

			continue
		}

		select {
		case <-ctx.Done():
			log.Info("Interrupted")

			return
		case out <- prop:
		}
	}

	log.Debug("Done")
}
