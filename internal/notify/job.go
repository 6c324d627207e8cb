package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/helpdesk-triage/internal/common"
)

// Job is the queued form of an Update.
type Job struct {
	ID         string    `json:"job_id"` // ULID
	Update     Update    `json:"update"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func NewJob(u Update, now time.Time) Job {
	return Job{ID: common.NewULID(now), Update: u, EnqueuedAt: now.UTC()}
}

func (j Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

func DecodeJob(b []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if j.ID == "" || j.Update.TicketID == "" {
		return Job{}, errors.New("decode job: missing job or ticket id")
	}
	return j, nil
}
