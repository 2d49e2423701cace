// internal/store/cached.go
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore reads through Redis in front of a backing store. Cache
// failures are logged and never fail the operation.
type CachedStore struct {
	backing Store
	cache   *redis.Client
	ttl     time.Duration
	logger  Logger
}

func NewCachedStore(backing Store, cache *redis.Client, ttl time.Duration, log Logger) *CachedStore {
	return &CachedStore{backing: backing, cache: cache, ttl: ttl, logger: log}
}

func (s *CachedStore) Put(ctx context.Context, record *Record) error {
	if err := s.backing.Put(ctx, record); err != nil {
		return err
	}
	s.fill(ctx, record)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, consultationID string) (*Record, error) {
	if val, err := s.cache.Get(ctx, redisKey(consultationID)).Bytes(); err == nil {
		var record Record
		if err := json.Unmarshal(val, &record); err == nil {
			return &record, nil
		}
	} else if err != redis.Nil {
		s.warn("cache read failed", consultationID, err)
	}

	record, err := s.backing.Get(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, record)
	return record, nil
}

func (s *CachedStore) fill(ctx context.Context, record *Record) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, redisKey(record.ConsultationID), data, s.ttl).Err(); err != nil {
		s.warn("cache write failed", record.ConsultationID, err)
	}
}

func (s *CachedStore) warn(msg, consultationID string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, map[string]interface{}{
		"consultationId": consultationID,
		"error":          err.Error(),
	})
}
