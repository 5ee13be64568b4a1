package services

import (
	"context"
	"sync"
	"time"

	"github.com/messmate/pgmess-backend/internal/logger"
)

// ConversationStore is the history window the extractor reads before
// each call. The redis client satisfies this; MemoryHistoryStore is
// the single-process fallback.
type ConversationStore interface {
	Append(ctx context.Context, whatsappID string, line string) error
	Recent(ctx context.Context, whatsappID string) ([]string, error)
	Clear(ctx context.Context, whatsappID string) error
	Close() error
}

type historyEntry struct {
	lines     []string
	expiresAt time.Time
}

type memoryHistoryStore struct {
	log      *logger.Logger
	mu       sync.Mutex
	entries  map[string]*historyEntry
	maxLines int
	ttl      time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryHistoryStore(log *logger.Logger, maxLines int, ttl time.Duration) ConversationStore {
	if maxLines <= 0 {
		maxLines = 20
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &memoryHistoryStore{
		log:      log.With("service", "MemoryHistoryStore"),
		entries:  make(map[string]*historyEntry),
		maxLines: maxLines,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *memoryHistoryStore) janitor() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *memoryHistoryStore) Append(_ context.Context, whatsappID string, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[whatsappID]
	if entry == nil || time.Now().After(entry.expiresAt) {
		entry = &historyEntry{}
		s.entries[whatsappID] = entry
	}
	entry.lines = append(entry.lines, line)
	if len(entry.lines) > s.maxLines {
		entry.lines = entry.lines[len(entry.lines)-s.maxLines:]
	}
	entry.expiresAt = time.Now().Add(s.ttl)
	return nil
}

func (s *memoryHistoryStore) Recent(_ context.Context, whatsappID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[whatsappID]
	if entry == nil || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	out := make([]string, len(entry.lines))
	copy(out, entry.lines)
	return out, nil
}

func (s *memoryHistoryStore) Clear(_ context.Context, whatsappID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, whatsappID)
	return nil
}

func (s *memoryHistoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
