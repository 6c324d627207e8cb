// Package ticketmap keeps ticket id -> requester associations in a TTL cache
// mirrored to durable storage.
package ticketmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/helpdesk-triage/internal/common"
	"github.com/suPer8Hu/helpdesk-triage/internal/store"
)

const keyPrefix = "ticket:"

var ErrPersist = errors.New("persist ticket mappings")

// Mirror is the durable copy: a flat ticket id -> mapping map. Save
// replaces the whole map; Store merges before calling it.
type Mirror interface {
	Save(ctx context.Context, all map[string]Mapping) error
	Load(ctx context.Context) (map[string]Mapping, error)
}

type Store struct {
	cache  store.Store
	mirror Mirror
	ttl    time.Duration
	log    *slog.Logger
	now    func() time.Time

	persistMu sync.Mutex
	inflight  sync.WaitGroup

	// ids this process deleted; other entries already in the mirror are kept
	removedMu sync.Mutex
	removed   map[string]struct{}
}

func NewStore(cache store.Store, mirror Mirror, ttl time.Duration, log *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{cache: cache, mirror: mirror, ttl: ttl, log: log, now: time.Now, removed: map[string]struct{}{}}
}

// Put records the mapping for a freshly created ticket. The cache is updated
// synchronously; the mirror is rewritten in the background.
func (s *Store) Put(ctx context.Context, ticketID, requesterID, channelID, ticketType string) (Mapping, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return Mapping{}, errors.New("ticket id is required")
	}
	m := Mapping{
		TicketID:      ticketID,
		RequesterID:   requesterID,
		OriginChannel: channelID,
		TicketType:    ticketType,
		CreatedAt:     s.now().UTC(),
	}.normalize()

	if err := s.cache.Set(ctx, keyPrefix+ticketID, m, s.ttl); err != nil {
		return Mapping{}, fmt.Errorf("cache mapping %s: %w", ticketID, err)
	}
	s.removedMu.Lock()
	delete(s.removed, ticketID)
	s.removedMu.Unlock()
	s.log.Info("stored ticket mapping",
		"ticket_id", ticketID, "user_id", requesterID, "ticket_type", m.TicketType, "sensitive", m.IsSensitive)
	s.persistAsync()
	return m, nil
}

// Get returns the mapping for ticketID, or false when unknown or expired.
// A cache miss is retried against the mirror, which another process may
// have written since Load.
func (s *Store) Get(ctx context.Context, ticketID string) (Mapping, bool, error) {
	ticketID = strings.TrimSpace(ticketID)
	var m Mapping
	found, err := s.cache.Get(ctx, keyPrefix+ticketID, &m)
	if err != nil {
		return Mapping{}, false, err
	}
	if !found {
		return s.getFromMirror(ctx, ticketID)
	}
	if m.TicketID == "" {
		m.TicketID = ticketID
	}
	return m.normalize(), true, nil
}

func (s *Store) getFromMirror(ctx context.Context, ticketID string) (Mapping, bool, error) {
	if s.mirror == nil {
		return Mapping{}, false, nil
	}
	s.removedMu.Lock()
	_, removed := s.removed[ticketID]
	s.removedMu.Unlock()
	if removed {
		return Mapping{}, false, nil
	}

	all, err := s.mirror.Load(ctx)
	if err != nil {
		return Mapping{}, false, fmt.Errorf("load ticket mappings: %w", err)
	}
	m, ok := all[ticketID]
	if !ok {
		return Mapping{}, false, nil
	}
	remaining := s.ttl
	if !m.CreatedAt.IsZero() {
		remaining = m.CreatedAt.Add(s.ttl).Sub(s.now())
	}
	if remaining <= 0 {
		return Mapping{}, false, nil
	}
	m.TicketID = ticketID
	m = m.normalize()
	if err := s.cache.Set(ctx, keyPrefix+ticketID, m, remaining); err != nil {
		s.log.Warn("cache mirrored mapping failed", "ticket_id", ticketID, "error", err)
	}
	s.log.Debug("ticket mapping found in mirror", "ticket_id", ticketID)
	return m, true, nil
}

func (s *Store) Remove(ctx context.Context, ticketID string) error {
	ticketID = strings.TrimSpace(ticketID)
	if err := s.cache.Delete(ctx, keyPrefix+ticketID); err != nil {
		return err
	}
	s.removedMu.Lock()
	s.removed[ticketID] = struct{}{}
	s.removedMu.Unlock()
	s.persistAsync()
	return nil
}

// Load seeds the cache from the mirror, skipping entries past their TTL.
func (s *Store) Load(ctx context.Context) (int, error) {
	if s.mirror == nil {
		return 0, nil
	}
	all, err := s.mirror.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load ticket mappings: %w", err)
	}
	n := 0
	now := s.now()
	for id, m := range all {
		remaining := s.ttl
		if !m.CreatedAt.IsZero() {
			remaining = m.CreatedAt.Add(s.ttl).Sub(now)
		}
		if remaining <= 0 {
			continue
		}
		m.TicketID = id
		if err := s.cache.Set(ctx, keyPrefix+id, m.normalize(), remaining); err != nil {
			return n, err
		}
		n++
	}
	s.log.Info("loaded ticket mappings", "count", n, "skipped_expired", len(all)-n)
	return n, nil
}

// Flush merges the cache contents into the mirror and waits for the write.
// Entries another process stored in the mirror survive unless this store
// removed them or they are past their TTL.
func (s *Store) Flush(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	all, err := s.mirror.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: reload mirror: %v", ErrPersist, err)
	}
	now := s.now()
	for id, m := range all {
		if !m.CreatedAt.IsZero() && !m.CreatedAt.Add(s.ttl).After(now) {
			delete(all, id)
		}
	}
	s.removedMu.Lock()
	for id := range s.removed {
		delete(all, id)
	}
	s.removedMu.Unlock()

	own, err := s.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	for id, m := range own {
		all[id] = m
	}
	if err := s.mirror.Save(ctx, all); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Wait blocks until background mirror writes started so far are done.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// persistAsync snapshots under persistMu, so the last write always carries
// the newest state even if goroutines run out of order.
func (s *Store) persistAsync() {
	if s.mirror == nil {
		return
	}
	s.inflight.Add(1)
	common.SafeGo(s.log, "ticketmap.persist", func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			s.log.Error("ticket mapping persistence failed", "error", err)
		}
	})
}

func (s *Store) snapshot(ctx context.Context) (map[string]Mapping, error) {
	keys, err := s.cache.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Mapping, len(keys))
	for _, k := range keys {
		var m Mapping
		found, err := s.cache.Get(ctx, k, &m)
		if err != nil {
			return nil, err
		}
		if found {
			out[strings.TrimPrefix(k, keyPrefix)] = m.normalize()
		}
	}
	return out, nil
}
