package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/suPer8Hu/helpdesk-triage/internal/store"
)

const sessionKeyPrefix = "session:"

// Repo keeps sessions in a TTL store. Every save refreshes the TTL, so a
// session expires after ttl of inactivity.
type Repo struct {
	st           store.Store
	ttl          time.Duration
	historyLimit int
	now          func() time.Time
}

func NewRepo(st store.Store, ttl time.Duration, historyLimit int) *Repo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Repo{st: st, ttl: ttl, historyLimit: historyLimit, now: time.Now}
}

// Get returns the user's session, or a fresh IDLE one if none exists.
func (r *Repo) Get(ctx context.Context, userID string) (*Session, error) {
	var s Session
	ok, err := r.st.Get(ctx, sessionKeyPrefix+userID, &s)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", userID, err)
	}
	if !ok {
		return newSession(userID), nil
	}
	if s.State == "" {
		s.State = StateIdle
	}
	s.UserID = userID
	return &s, nil
}

func (r *Repo) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = r.now()
	if len(s.History) > r.historyLimit {
		s.History = s.History[len(s.History)-r.historyLimit:]
	}
	if err := r.st.Set(ctx, sessionKeyPrefix+s.UserID, s, r.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", s.UserID, err)
	}
	return nil
}

func (r *Repo) Clear(ctx context.Context, userID string) error {
	if err := r.st.Delete(ctx, sessionKeyPrefix+userID); err != nil {
		return fmt.Errorf("clear session %s: %w", userID, err)
	}
	return nil
}
