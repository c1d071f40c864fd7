package audit

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event is one append-only audit record. Admin-surface mutations, logins, and
// tenant provisioning all land here.
type Event struct {
	ID        string         `json:"id"`
	At        time.Time      `json:"at"`
	ActorID   string         `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	Target    string         `json:"target,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type ListFilter struct {
	ActorID string
	Action  string
	Offset  int
	Limit   int
}

type Repo interface {
	Append(event *Event) error
	List(filter ListFilter) ([]*Event, int, error)
}

// Recorder writes audit events to the repo and mirrors them to the log so the
// trail survives even when the repo write fails.
type Recorder struct {
	repo    Repo
	nowFunc func() time.Time
}

type RecorderOption func(*Recorder)

func WithNowFunc(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.nowFunc = now
	}
}

func NewRecorder(repo Repo, options ...RecorderOption) *Recorder {
	r := &Recorder{repo: repo, nowFunc: time.Now}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *Recorder) Record(actorID, action, target string, fields map[string]any) {
	event := &Event{
		ID:      uuid.New().String(),
		At:      r.nowFunc(),
		ActorID: actorID,
		Action:  action,
		Target:  target,
		Fields:  fields,
	}

	logEvent := log.Info().
		Str("audit", action).
		Str("actor", actorID).
		Str("target", target)
	logEvent.Msg("audit event")

	if err := r.repo.Append(event); err != nil {
		log.Err(err).Str("action", action).Msg("audit append failed")
	}
}

func (r *Recorder) List(filter ListFilter) ([]*Event, int, error) {
	return r.repo.List(filter)
}

// MemoryRepo is the in-process audit store used in tests and single-node runs.
type MemoryRepo struct {
	events []*Event
	lock   sync.RWMutex
}

var _ Repo = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) Append(event *Event) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryRepo) List(filter ListFilter) ([]*Event, int, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var matched []*Event
	for _, e := range m.events {
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		matched = append(matched, e)
	}

	// Newest first, the order the admin panel shows them.
	sort.Slice(matched, func(i, j int) bool { return matched[i].At.After(matched[j].At) })

	total := len(matched)
	if filter.Offset > total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}
