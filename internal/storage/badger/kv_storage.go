package badger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jobforge/orchestrator/internal/store"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// kvRecord is the badgerhold-persisted shape of one Store entry. Badger
// itself supports native TTL via badger.Entry.WithTTL, but badgerhold
// doesn't expose that path, so expiry here is explicit: every record carries
// its own ExpiresAt and both Get and the background sweeper enforce it.
type kvRecord struct {
	Key       string `badgerholdKey:"Key"`
	Value     []byte
	ExpiresAt time.Time
}

func (r kvRecord) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Store implements store.Store over a Badger/badgerhold database, playing
// the role spec §9 assigns to "any store with atomic increment + TTL"
// (the source assumes Redis).
type Store struct {
	db     *BadgerDB
	logger arbor.ILogger
	// incrMu serializes Incr so read-modify-write stays atomic; badgerhold
	// has no native atomic counter primitive.
	incrMu sync.Mutex
}

// NewStore wraps an open BadgerDB as a store.Store. The concrete *Store is
// returned (rather than the store.Store interface) so callers can also use
// it as a backup.KVDumper.
func NewStore(db *BadgerDB, logger arbor.ILogger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var rec kvRecord
	err := s.db.Store().Get(key, &rec)
	if err == badgerhold.ErrNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %q: %w", key, err)
	}
	if rec.expired(time.Now()) {
		_ = s.db.Store().Delete(key, &kvRecord{})
		return nil, store.ErrNotFound
	}
	return rec.Value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec := kvRecord{Key: key, Value: value}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl)
	}
	if err := s.db.Store().Upsert(key, &rec); err != nil {
		return fmt.Errorf("badger set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.incrMu.Lock()
	defer s.incrMu.Unlock()

	now := time.Now()
	var rec kvRecord
	err := s.db.Store().Get(key, &rec)
	isNew := err == badgerhold.ErrNotFound || (err == nil && rec.expired(now))
	if err != nil && err != badgerhold.ErrNotFound {
		return 0, fmt.Errorf("badger incr %q: %w", key, err)
	}

	var current int64
	if !isNew {
		current, _ = strconv.ParseInt(string(rec.Value), 10, 64)
	}
	current += delta

	newRec := kvRecord{Key: key, Value: []byte(strconv.FormatInt(current, 10))}
	if isNew {
		if ttl > 0 {
			newRec.ExpiresAt = now.Add(ttl)
		}
	} else {
		newRec.ExpiresAt = rec.ExpiresAt
	}

	if err := s.db.Store().Upsert(key, &newRec); err != nil {
		return 0, fmt.Errorf("badger incr upsert %q: %w", key, err)
	}
	return current, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(key, &kvRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("badger delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	var recs []kvRecord
	if err := s.db.Store().Find(&recs, nil); err != nil {
		return nil, fmt.Errorf("badger scan %q: %w", prefix, err)
	}
	now := time.Now()
	result := make(map[string][]byte)
	for _, rec := range recs {
		if !strings.HasPrefix(rec.Key, prefix) {
			continue
		}
		if rec.expired(now) {
			continue
		}
		result[rec.Key] = rec.Value
	}
	return result, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DumpAll returns every non-expired record, satisfying backup.KVDumper — the
// "database" backup family for this module is an export of its own KV store.
func (s *Store) DumpAll(ctx context.Context) (map[string][]byte, error) {
	return s.Scan(ctx, "")
}

// StartExpirySweeper runs a background goroutine that periodically deletes
// expired records, so storage isn't held by dead rate-limit/reservation
// counters between reads.
func (s *Store) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepExpired()
			}
		}
	}()
}

func (s *Store) sweepExpired() {
	var recs []kvRecord
	if err := s.db.Store().Find(&recs, nil); err != nil {
		s.logger.Warn().Err(err).Msg("expiry sweep: failed to list records")
		return
	}
	now := time.Now()
	removed := 0
	for _, rec := range recs {
		if rec.expired(now) {
			if err := s.db.Store().Delete(rec.Key, &kvRecord{}); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("expiry sweep removed stale records")
	}
}
