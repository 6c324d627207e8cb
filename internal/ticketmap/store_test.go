package ticketmap

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suPer8Hu/helpdesk-triage/internal/logger"
	"github.com/suPer8Hu/helpdesk-triage/internal/store"
)

type failingMirror struct {
	mu    sync.Mutex
	calls int
}

func (f *failingMirror) Save(context.Context, map[string]Mapping) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("disk full")
}

func (f *failingMirror) Load(context.Context) (map[string]Mapping, error) {
	return map[string]Mapping{}, nil
}

func TestStore_SensitivityDerivedFromType(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryStore(), nil, 0, logger.Discard())

	_, err := s.Put(ctx, "101", "U1", "D1", "password_reset")
	require.NoError(t, err)
	_, err = s.Put(ctx, "102", "U2", "C2", "vpn_issue")
	require.NoError(t, err)

	m, found, err := s.Get(ctx, "101")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, m.IsSensitive)
	assert.Equal(t, "U1", m.RequesterID)

	m, found, _ = s.Get(ctx, "102")
	require.True(t, found)
	assert.False(t, m.IsSensitive)

	_, found, _ = s.Get(ctx, "999")
	assert.False(t, found)
}

func TestStore_RecomputesSensitivityOnRead(t *testing.T) {
	ctx := context.Background()
	cache := store.NewMemoryStore()
	s := NewStore(cache, nil, 0, logger.Discard())

	// a tampered cache entry claiming a domain lock is not sensitive
	require.NoError(t, cache.Set(ctx, "ticket:7", Mapping{RequesterID: "U7", TicketType: "domain_lock", IsSensitive: false}, time.Hour))

	m, found, err := s.Get(ctx, "7")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, m.IsSensitive)
	assert.Equal(t, "7", m.TicketID)
}

func TestStore_FileMirrorRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ticket_user_mappings.json")

	s := NewStore(store.NewMemoryStore(), NewFileMirror(path), time.Hour, logger.Discard())
	_, err := s.Put(ctx, "201", "U1", "D1", "domain_lock")
	require.NoError(t, err)
	_, err = s.Put(ctx, "202", "U2", "C2", "general")
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, "202"))
	s.Wait()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, "U1", onDisk["201"]["userId"])
	assert.Equal(t, true, onDisk["201"]["isSensitive"])

	// a new process sees the mapping after Load
	restarted := NewStore(store.NewMemoryStore(), NewFileMirror(path), time.Hour, logger.Discard())
	n, err := restarted.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, found, err := restarted.Get(ctx, "201")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "D1", m.OriginChannel)
}

func TestStore_LoadSkipsExpired(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.json")
	old := time.Now().Add(-31 * 24 * time.Hour)
	require.NoError(t, NewFileMirror(path).Save(ctx, map[string]Mapping{
		"1": {RequesterID: "U1", TicketType: "general", CreatedAt: old},
		"2": {RequesterID: "U2", TicketType: "general", CreatedAt: time.Now()},
	}))

	s := NewStore(store.NewMemoryStore(), NewFileMirror(path), 30*24*time.Hour, logger.Discard())
	n, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, found, _ := s.Get(ctx, "1")
	assert.False(t, found)
}

func TestStore_PersistFailureDoesNotSurface(t *testing.T) {
	ctx := context.Background()
	mirror := &failingMirror{}
	s := NewStore(store.NewMemoryStore(), mirror, time.Hour, logger.Discard())

	_, err := s.Put(ctx, "301", "U1", "C1", "general")
	require.NoError(t, err)
	s.Wait()

	// cache stays authoritative
	_, found, _ := s.Get(ctx, "301")
	assert.True(t, found)
	assert.Equal(t, 1, mirror.calls)
	assert.ErrorIs(t, s.Flush(ctx), ErrPersist)
}

func TestDBMirror(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	mirror := NewDBMirror(db)
	require.NoError(t, mirror.AutoMigrate())

	s := NewStore(store.NewMemoryStore(), mirror, time.Hour, logger.Discard())
	_, err = s.Put(ctx, "401", "U1", "C1", "password_reset")
	require.NoError(t, err)
	_, err = s.Put(ctx, "402", "U2", "C2", "printer")
	require.NoError(t, err)
	s.Wait()
	require.NoError(t, s.Flush(ctx))

	all, err := mirror.Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all["401"].IsSensitive)
	assert.Equal(t, "printer", all["402"].TicketType)

	require.NoError(t, s.Remove(ctx, "401"))
	s.Wait()
	all, err = mirror.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_FlushKeepsEntriesFromOtherProcesses(t *testing.T) {
	mirrors := map[string]func(t *testing.T) Mirror{
		"file": func(t *testing.T) Mirror {
			return NewFileMirror(filepath.Join(t.TempDir(), "ticket_user_mappings.json"))
		},
		"database": func(t *testing.T) Mirror {
			db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "mappings.db")), &gorm.Config{})
			require.NoError(t, err)
			m := NewDBMirror(db)
			require.NoError(t, m.AutoMigrate())
			return m
		},
	}
	for name, open := range mirrors {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mirror := open(t)

			server := NewStore(store.NewMemoryStore(), mirror, time.Hour, logger.Discard())
			worker := NewStore(store.NewMemoryStore(), mirror, time.Hour, logger.Discard())
			_, err := worker.Load(ctx)
			require.NoError(t, err)

			_, err = server.Put(ctx, "42", "U1", "D1", "password_reset")
			require.NoError(t, err)
			server.Wait()

			// the worker never saw 42 and shuts down with its own entry
			_, err = worker.Put(ctx, "43", "U2", "C2", "printer")
			require.NoError(t, err)
			worker.Wait()
			require.NoError(t, worker.Flush(ctx))

			restarted := NewStore(store.NewMemoryStore(), mirror, time.Hour, logger.Discard())
			n, err := restarted.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			m, found, err := restarted.Get(ctx, "42")
			require.NoError(t, err)
			require.True(t, found)
			assert.True(t, m.IsSensitive)
			_, found, _ = restarted.Get(ctx, "43")
			assert.True(t, found)

			// a cache miss in the worker falls back to the mirror
			m, found, err = worker.Get(ctx, "42")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "U1", m.RequesterID)

			// removals are still written through
			require.NoError(t, worker.Remove(ctx, "42"))
			worker.Wait()
			all, err := mirror.Load(ctx)
			require.NoError(t, err)
			assert.NotContains(t, all, "42")
			assert.Contains(t, all, "43")
			_, found, _ = worker.Get(ctx, "42")
			assert.False(t, found)
		})
	}
}
