package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ProcessedSet remembers message ids that were already applied by a service.
type ProcessedSet struct {
	rdb     redis.Cmdable
	service string
}

func NewProcessedSet(rdb redis.Cmdable, service string) *ProcessedSet {
	return &ProcessedSet{rdb: rdb, service: service}
}

func (s *ProcessedSet) key(id string) string { return fmt.Sprintf(KeyDedup, s.service, id) }

func (s *ProcessedSet) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, s.rdb, s.key(id))
}

func (s *ProcessedSet) Mark(ctx context.Context, id string) error {
	return s.rdb.Set(ctx, s.key(id), "1", TTLDedup).Err()
}
