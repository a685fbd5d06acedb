package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/locks"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrSessionNotFound is returned for unknown or discarded session ids.
var ErrSessionNotFound = errors.New("editing session not found")

const DefaultIdleTimeout = 2 * time.Hour

// Registry keeps the open editing sessions of this process. Dropping a session
// drops its unsaved working copy.
type Registry struct {
	store  core.PageStore
	locker locks.Locker
	notify SaveListener

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

func NewRegistry(store core.PageStore, locker locks.Locker, notify SaveListener) *Registry {
	if locker == nil {
		locker = locks.NewMemoryLocker()
	}
	return &Registry{
		store:    store,
		locker:   locker,
		notify:   notify,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for pageID and loads the page into it.
func (r *Registry) Open(ctx context.Context, pageID string) (*Session, error) {
	s := NewSession(ulid.Make().String(), r.store, r.locker, r.notify)
	if err := s.Load(ctx, pageID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{"session_id": s.ID(), "page_id": pageID}).Info("Editing session opened")
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Discard forgets a session. An in-flight save still completes.
func (r *Registry) Discard(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	logrus.WithField("session_id", id).Info("Editing session discarded")
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep discards sessions idle for longer than maxIdle that are not saving.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.sessions {
		if s.State() == StateSaving || s.IdleSince().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		n++
	}
	if n > 0 {
		logrus.WithField("discarded", n).Info("Swept idle editing sessions")
	}
	return n
}

// StartSweeper runs Sweep on a cron schedule until Stop is called.
func (r *Registry) StartSweeper(schedule string, maxIdle time.Duration) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Sweep(maxIdle) }); err != nil {
		return fmt.Errorf("schedule session sweeper: %w", err)
	}
	c.Start()
	r.cron = c
	logrus.WithFields(logrus.Fields{"schedule": schedule, "max_idle": maxIdle}).Info("Session sweeper started")
	return nil
}

func (r *Registry) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// IdleTimeout reads SESSION_IDLE_TIMEOUT, falling back to DefaultIdleTimeout.
func IdleTimeout() time.Duration {
	raw := os.Getenv("SESSION_IDLE_TIMEOUT")
	if raw == "" {
		return DefaultIdleTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logrus.WithField("value", raw).Warn("Invalid SESSION_IDLE_TIMEOUT, using default")
		return DefaultIdleTimeout
	}
	return d
}
