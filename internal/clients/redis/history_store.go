package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/messmate/pgmess-backend/internal/logger"
)

// HistoryStore keeps a rolling window of conversation lines per
// WhatsApp sender so the extractor can resolve follow-up messages
// ("make that two", "cancel it").
type HistoryStore interface {
	Append(ctx context.Context, whatsappID string, line string) error
	Recent(ctx context.Context, whatsappID string) ([]string, error)
	Clear(ctx context.Context, whatsappID string) error
	Close() error
}

type historyStore struct {
	log      *logger.Logger
	rdb      *goredis.Client
	prefix   string
	maxLines int
	ttl      time.Duration
}

func NewHistoryStore(log *logger.Logger, maxLines int, ttl time.Duration) (HistoryStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_HISTORY_PREFIX"))
	if prefix == "" {
		prefix = "chat_history"
	}
	if maxLines <= 0 {
		maxLines = 20
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &historyStore{
		log:      log.With("service", "RedisHistoryStore"),
		rdb:      rdb,
		prefix:   prefix,
		maxLines: maxLines,
		ttl:      ttl,
	}, nil
}

func (s *historyStore) key(whatsappID string) string {
	return s.prefix + ":" + whatsappID
}

func (s *historyStore) Append(ctx context.Context, whatsappID string, line string) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("history store not initialized")
	}
	key := s.key(whatsappID)

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, line)
	pipe.LTrim(ctx, key, int64(-s.maxLines), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	return nil
}

func (s *historyStore) Recent(ctx context.Context, whatsappID string) ([]string, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("history store not initialized")
	}
	lines, err := s.rdb.LRange(ctx, s.key(whatsappID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history read: %w", err)
	}
	return lines, nil
}

func (s *historyStore) Clear(ctx context.Context, whatsappID string) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("history store not initialized")
	}
	return s.rdb.Del(ctx, s.key(whatsappID)).Err()
}

func (s *historyStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
