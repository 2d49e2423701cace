// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"visa-guru/internal/common/config"
	"visa-guru/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("consultation not found")

// Record is everything kept about one consultation between preview,
// payment and delivery.
type Record struct {
	ConsultationID   string                      `json:"consultation_id"`
	Status           models.ConsultationStatus   `json:"status"`
	Request          *models.ConsultationRequest `json:"request"`
	Result           *models.ConsultationResult  `json:"result,omitempty"`
	PaymentSessionID string                      `json:"payment_session_id,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// Store keeps consultation records by id. Get returns ErrNotFound for
// unknown ids.
type Store interface {
	Put(ctx context.Context, record *Record) error
	Get(ctx context.Context, consultationID string) (*Record, error)
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

type Dependencies struct {
	DB     *sql.DB
	Redis  *redis.Client
	Logger Logger
}

// New selects the implementation named by cfg.Driver. The postgres driver
// gets a Redis read-through cache when a Redis client is supplied.
func New(cfg config.StoreConfig, deps Dependencies) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("store driver redis requires a redis client")
		}
		return NewRedisStore(deps.Redis, time.Duration(cfg.TTL)*time.Second), nil
	case "postgres":
		if deps.DB == nil {
			return nil, fmt.Errorf("store driver postgres requires a database")
		}
		pg := NewPostgresStore(deps.DB)
		if deps.Redis == nil {
			return pg, nil
		}
		return NewCachedStore(pg, deps.Redis, time.Duration(cfg.CacheTTL)*time.Second, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// touch stamps the record before a write.
func touch(record *Record) {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}
