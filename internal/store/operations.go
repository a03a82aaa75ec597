package store

import (
	"context"
	"strings"

	"github.com/ag-tej/shiksha-setu/internal/domain"
	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
	"github.com/ag-tej/shiksha-setu/internal/logging"
	"github.com/ag-tej/shiksha-setu/internal/metrics"
	"github.com/ag-tej/shiksha-setu/internal/platform/correlation"
)

// Refresh replaces the whole mapping with the server's session list.
// Concurrent calls collapse into one flight.
func (s *Store) Refresh(ctx context.Context) error {
	ctx = correlation.Ensure(ctx)
	err := s.refresh(ctx)
	metrics.ObserveOperation("refresh", err)
	return err
}

func (s *Store) refresh(ctx context.Context) error {
	if _, ok := s.identity.Current(); !ok {
		return apperrors.Unauthenticated("no identity")
	}

	_, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		epoch := s.currentEpoch()

		sessions, err := s.remote.ListSessions(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.epoch != epoch {
			s.mu.Unlock()
			logging.WithOperation("refresh").DebugContext(ctx, "Discarding stale session list after identity change")
			return nil, nil
		}
		s.sessions = sessions
		if s.findLocked(s.active) == nil {
			s.active = ""
		}
		s.mu.Unlock()
		s.notify()
		return nil, nil
	})
	return err
}

// Create makes a new session with the default title, inserts it at the front
// of the mapping, and makes it active.
func (s *Store) Create(ctx context.Context) (*domain.Session, error) {
	ctx = correlation.Ensure(ctx)
	session, err := s.create(ctx)
	metrics.ObserveOperation("create", err)
	return session, err
}

func (s *Store) create(ctx context.Context) (*domain.Session, error) {
	if _, ok := s.identity.Current(); !ok {
		return nil, apperrors.Unauthenticated("no identity")
	}
	epoch := s.currentEpoch()

	created, err := s.remote.CreateSession(ctx, domain.DefaultTitle)
	if err != nil {
		logging.WithOperation("create").ErrorContext(ctx, "Failed to create session", "error", err)
		return nil, err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil, apperrors.Unauthenticated("identity changed during request")
	}
	s.sessions = append([]*domain.Session{created}, s.sessions...)
	s.active = created.ID
	s.mu.Unlock()
	s.notify()

	logging.WithSession(created.ID).InfoContext(ctx, "Session created")
	return created.Clone(), nil
}

// Select sets the active reference to an existing entry. Pure local
// mutation; an unknown ID is a no-op.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if s.findLocked(id) == nil || s.active == id {
		s.mu.Unlock()
		return
	}
	s.active = id
	s.mu.Unlock()
	s.notify()
}

// Rename updates a session's title. An empty or whitespace title is rejected
// locally; on failure the prior title is retained.
func (s *Store) Rename(ctx context.Context, id, title string) error {
	ctx = correlation.Ensure(ctx)
	err := s.rename(ctx, id, title)
	metrics.ObserveOperation("rename", err)
	return err
}

func (s *Store) rename(ctx context.Context, id, title string) error {
	if _, ok := s.identity.Current(); !ok {
		return apperrors.Unauthenticated("no identity")
	}
	if strings.TrimSpace(title) == "" {
		return apperrors.Precondition("title must not be empty").WithContext("session_id", id)
	}
	epoch := s.currentEpoch()

	updated, err := s.remote.UpdateSession(ctx, id, title)
	if err != nil {
		logging.WithSession(id).ErrorContext(ctx, "Failed to rename session", "error", err)
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return apperrors.Unauthenticated("identity changed during request")
	}
	replaced := s.replaceLocked(updated)
	s.mu.Unlock()
	s.notify()

	if !replaced {
		logging.WithSession(id).DebugContext(ctx, "Dropped rename snapshot for a session no longer present")
	}
	return nil
}

// Remove deletes a session. If the removed session was active, the first
// remaining entry in display order becomes active, or none.
func (s *Store) Remove(ctx context.Context, id string) error {
	ctx = correlation.Ensure(ctx)
	err := s.remove(ctx, id)
	metrics.ObserveOperation("remove", err)
	return err
}

func (s *Store) remove(ctx context.Context, id string) error {
	if _, ok := s.identity.Current(); !ok {
		return apperrors.Unauthenticated("no identity")
	}
	epoch := s.currentEpoch()

	if err := s.remote.DeleteSession(ctx, id); err != nil {
		logging.WithSession(id).ErrorContext(ctx, "Failed to delete session", "error", err)
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return apperrors.Unauthenticated("identity changed during request")
	}
	for i, session := range s.sessions {
		if session.ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	if s.active == id {
		s.active = ""
		if len(s.sessions) > 0 {
			s.active = s.sessions[0].ID
		}
	}
	s.mu.Unlock()
	s.notify()

	logging.WithSession(id).InfoContext(ctx, "Session deleted")
	return nil
}
