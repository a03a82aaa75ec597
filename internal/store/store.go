package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/ag-tej/shiksha-setu/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 2 * time.Minute
)

// Busy reports which operation kinds are currently in flight.
type Busy struct {
	// Responding is true while an assistant reply is pending.
	Responding bool
	// IngestingFiles / IngestingWebsites are true for the whole span of the
	// corresponding ingestion operation; Processing is true only after the
	// service accepted the batch and before the follow-up fetch settles.
	IngestingFiles    bool
	IngestingWebsites bool
	Processing        bool
}

// Options tunes the ingestion completion poll.
type Options struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Store is the session-state synchronizer. Safe for concurrent use; remote
// round trips happen outside the lock so reads never block on the network.
type Store struct {
	remote   domain.RemoteService
	identity domain.IdentityProvider
	clock    clockwork.Clock
	opts     Options

	refreshGroup singleflight.Group

	mu                sync.Mutex
	sessions          []*domain.Session // display order, newest first
	active            string            // session ID, "" when none
	responding        bool
	ingestingFiles    bool
	ingestingWebsites bool
	processing        bool
	epoch             uint64 // bumped on every identity change

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// New creates the store. It holds no state until the identity activates and
// Refresh populates the mapping.
func New(remote domain.RemoteService, identity domain.IdentityProvider, clock clockwork.Clock, opts Options) *Store {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	return &Store{
		remote:   remote,
		identity: identity,
		clock:    clock,
		opts:     opts,
		subs:     make(map[int]chan struct{}),
	}
}

// Watch reacts to identity changes until ctx is done: it synchronizes once
// immediately, then re-synchronizes on every provider notification. Populates
// the mapping on login, discards everything on logout.
func (s *Store) Watch(ctx context.Context) {
	changes, cancel := s.identity.Subscribe()
	defer cancel()

	s.syncIdentity(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			s.syncIdentity(ctx)
		}
	}
}

// syncIdentity clears all state under a new epoch, then repopulates when an
// identity is present. The clear is unconditional so no session outlives the
// identity it was fetched under.
func (s *Store) syncIdentity(ctx context.Context) {
	s.mu.Lock()
	s.epoch++
	s.clearLocked()
	s.mu.Unlock()
	s.notify()

	if _, ok := s.identity.Current(); !ok {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		slog.Error("Failed to load sessions after identity change", "error", err)
	}
}

// Sessions returns the mapping in display order. Entries are deep copies.
func (s *Store) Sessions() []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Session, len(s.sessions))
	for i, session := range s.sessions {
		out[i] = session.Clone()
	}
	return out
}

// Active returns a copy of the active session, or (nil, false) when none.
func (s *Store) Active() (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.findLocked(s.active)
	if session == nil {
		return nil, false
	}
	return session.Clone(), true
}

// Busy returns the current busy flags.
func (s *Store) Busy() Busy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Busy{
		Responding:        s.responding,
		IngestingFiles:    s.ingestingFiles,
		IngestingWebsites: s.ingestingWebsites,
		Processing:        s.processing,
	}
}

// Subscribe returns a coalescing change-notification channel and a cancel
// func. A receive means state may have changed; observers re-read the
// snapshot accessors.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	cancel := func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// --- locked helpers ---

func (s *Store) findLocked(id string) *domain.Session {
	if id == "" {
		return nil
	}
	for _, session := range s.sessions {
		if session.ID == id {
			return session
		}
	}
	return nil
}

// replaceLocked swaps the entry with the snapshot's ID for the snapshot,
// keeping its display position. Returns false when the entry is gone (for
// example removed while the request was in flight); the snapshot is then
// dropped rather than resurrected.
func (s *Store) replaceLocked(snapshot *domain.Session) bool {
	for i, session := range s.sessions {
		if session.ID == snapshot.ID {
			s.sessions[i] = snapshot
			return true
		}
	}
	return false
}

func (s *Store) clearLocked() {
	s.sessions = nil
	s.active = ""
	s.responding = false
	s.ingestingFiles = false
	s.ingestingWebsites = false
	s.processing = false
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}
