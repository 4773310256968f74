package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/jgivc/spaproxy/internal/metrics"
)

const (
	serviceName = "resolver"
)

type PropertyStorage interface {
	Scan(ctx context.Context) ([]*entity.Property, error)
}

type DeployRepository interface {
	Record(ctx context.Context, records []entity.DeployRecord) error
}

// ResolverService owns the active ResolutionIndex. The index is replaced,
// never mutated: Reload publishes a brand-new snapshot atomically, so
// requests either see the fully-old or the fully-new index. Reload is the
// only writer and is serialized against itself.
type ResolverService struct {
	store    PropertyStorage
	repo     DeployRepository // optional, may be nil
	idx      atomic.Pointer[Index]
	reloadMu sync.Mutex
	log      *slog.Logger
}

func NewResolverService(store PropertyStorage, repo DeployRepository, log *slog.Logger) *ResolverService {
	return &ResolverService{
		store: store,
		repo:  repo,
		log:   log.With(slog.String("service", serviceName)),
	}
}

// Resolve matches requestPath against the active index snapshot.
func (s *ResolverService) Resolve(requestPath string) (*entity.Property, string, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, "", common.ErrIndexNotReadyError
	}

	prop, remainder, err := idx.Resolve(requestPath)
	if err != nil {
		metrics.ResolveMisses.Inc()

		return nil, "", err
	}

	metrics.ResolveHits.WithLabelValues(prop.Path).Inc()

	return prop, remainder, nil
}

// Reload rescans the property store and atomically swaps in the new index.
// Concurrent Reload calls queue up behind each other.
func (s *ResolverService) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	return s.reload(ctx)
}

// TryReload is Reload for interactive callers: instead of queueing behind a
// running reload it reports that one is already in flight.
func (s *ResolverService) TryReload(ctx context.Context) error {
	if !s.reloadMu.TryLock() {
		return common.ErrScanProcessHasAlreadyStarted
	}
	defer s.reloadMu.Unlock()

	return s.reload(ctx)
}

func (s *ResolverService) reload(ctx context.Context) error {
	props, err := s.store.Scan(ctx)
	if err != nil {
		s.log.Error("Cannot scan properties", slog.Any("error", err))

		return fmt.Errorf("cannot scan property store: %w", err)
	}

	next := BuildIndex(props)
	if dups := len(props) - next.Size(); dups > 0 {
		s.log.Warn("Duplicate property paths, last scanned wins", slog.Int("collisions", dups))
	}

	prev := s.idx.Swap(next)

	metrics.IndexRebuilds.Inc()
	metrics.IndexProperties.Set(float64(next.Size()))
	s.log.Info("Published new resolution index", slog.Int("properties", next.Size()))

	if s.repo != nil {
		if records := diffIndexes(prev, next); len(records) > 0 {
			if err := s.repo.Record(ctx, records); err != nil {
				// History is best effort, routing already switched.
				s.log.Error("Cannot record deployments", slog.Any("error", err))
			}
		}
	}

	return nil
}

// Properties returns the active snapshot's entries, ordered by path.
func (s *ResolverService) Properties() []*entity.Property {
	idx := s.idx.Load()
	if idx == nil {
		return nil
	}

	return idx.Properties()
}

// Size returns the number of properties in the active snapshot, or -1 when
// no index has been published yet.
func (s *ResolverService) Size() int {
	idx := s.idx.Load()
	if idx == nil {
		return -1
	}

	return idx.Size()
}

// diffIndexes lists entries of next whose path→ref mapping is new or
// changed relative to prev.
func diffIndexes(prev, next *Index) []entity.DeployRecord {
	var records []entity.DeployRecord

	for path, prop := range next.byPath {
		if prev != nil {
			if old, exists := prev.byPath[path]; exists && old.Ref == prop.Ref {
				continue
			}
		}

		records = append(records, entity.DeployRecord{
			Path: path,
			Ref:  prop.Ref,
			At:   prop.ScannedAt,
		})
	}

	return records
}
