package omr

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"examflow-workers/internal/common/logger"
)

var ErrDuplicateSheet = errors.New("DUPLICATE_SHEET")

const guardKeyPrefix = "omr:sheet:"

// SheetGuard remembers digests of recently processed sheet images in redis
// so a re-submitted scan is caught before the decoder service is called
// again. Entries expire after the configured TTL.
type SheetGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewSheetGuard(client *redis.Client, ttl time.Duration, log logger.Logger) *SheetGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SheetGuard{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "sheet-guard"}),
	}
}

// Reserve claims a sheet digest. ErrDuplicateSheet when an earlier run
// already claimed it; redis transport failures are returned as-is so the
// caller can retry.
func (g *SheetGuard) Reserve(ctx context.Context, digest string) error {
	ok, err := g.client.SetNX(ctx, guardKeyPrefix+digest, 1, g.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Warn("sheet image already processed", map[string]interface{}{
			"digest": digest,
		})
		return ErrDuplicateSheet
	}
	return nil
}

// Release frees a reservation after a failed run so a retry of the same
// sheet is not mistaken for a duplicate. Best effort.
func (g *SheetGuard) Release(ctx context.Context, digest string) {
	if err := g.client.Del(ctx, guardKeyPrefix+digest).Err(); err != nil {
		g.logger.Warn("failed to release sheet reservation", map[string]interface{}{
			"digest": digest,
			"error":  err.Error(),
		})
	}
}
