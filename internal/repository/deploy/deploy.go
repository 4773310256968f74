package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyCurrentRefs = "spaproxy:deploy:refs" // HASH. path -> currently served ref
	KeyHistory     = "spaproxy:deploy:log"  // LIST. newest deployment first

	historyLimit = 100
)

// deployRepository keeps a capped log of observed deployments in redis so
// operators can see what went live and when. It is advisory only: routing
// never depends on it.
type deployRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewDeployRepository(cl *redis.Client, log *slog.Logger) *deployRepository {
	return &deployRepository{
		cl:  cl,
		log: log.With(slog.String("item", "DeployRepository")),
	}
}

func (r *deployRepository) Record(ctx context.Context, records []entity.DeployRecord) error {
	if len(records) < 1 {
		return nil
	}

	pipe := r.cl.Pipeline()
	for _, rec := range records {
		pipe.HSet(ctx, KeyCurrentRefs, rec.Path, rec.Ref)
		pipe.LPush(ctx, KeyHistory, formatRecord(rec))
	}
	pipe.LTrim(ctx, KeyHistory, 0, historyLimit-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot record deployments: %w", err)
	}

	r.log.Info("Recorded deployments", slog.Int("count", len(records)))

	return nil
}

// History returns the most recent deployments, newest first.
func (r *deployRepository) History(ctx context.Context) ([]string, error) {
	lines, err := r.cl.LRange(ctx, KeyHistory, 0, historyLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get deploy history: %w", err)
	}

	if len(lines) < 1 {
		return nil, common.ErrNoDeploymentsFoundError
	}

	return lines, nil
}

// CurrentRefs returns the path -> ref mapping of the last recorded state.
func (r *deployRepository) CurrentRefs(ctx context.Context) (map[string]string, error) {
	refs, err := r.cl.HGetAll(ctx, KeyCurrentRefs).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get current refs: %w", err)
	}

	return refs, nil
}

func formatRecord(rec entity.DeployRecord) string {
	return fmt.Sprintf("%s %s -> %s", rec.At.UTC().Format(time.RFC3339), rec.Path, rec.Ref)
}
