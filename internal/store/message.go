package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ag-tej/shiksha-setu/internal/domain"
	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
	"github.com/ag-tej/shiksha-setu/internal/logging"
	"github.com/ag-tej/shiksha-setu/internal/metrics"
	"github.com/ag-tej/shiksha-setu/internal/platform/correlation"
)

// SendMessage appends text to the active session and waits for the
// assistant's reply.
//
// The user's message is echoed into the transcript immediately with a
// locally generated identifier and Pending set; the success response is the
// authoritative full session snapshot, which replaces the stored session
// wholesale and thereby discards the provisional message. On failure the
// provisional message stays visible, marked Failed, so the caller can badge
// it; it is never rolled back.
func (s *Store) SendMessage(ctx context.Context, text string) (*domain.Session, error) {
	ctx = correlation.Ensure(ctx)
	session, err := s.sendMessage(ctx, text)
	metrics.ObserveOperation("send_message", err)
	return session, err
}

func (s *Store) sendMessage(ctx context.Context, text string) (*domain.Session, error) {
	if _, ok := s.identity.Current(); !ok {
		return nil, apperrors.Unauthenticated("no identity")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.Precondition("message must not be empty")
	}

	s.mu.Lock()
	active := s.findLocked(s.active)
	if active == nil {
		s.mu.Unlock()
		return nil, apperrors.Precondition("no active session")
	}
	if s.responding {
		s.mu.Unlock()
		return nil, apperrors.Precondition("a reply is already pending")
	}

	now := s.clock.Now().UTC()
	provisional := domain.Message{
		ID:        "local-" + uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: now,
		Pending:   true,
	}
	active.Messages = append(active.Messages, provisional)
	active.UpdatedAt = now
	s.responding = true
	epoch := s.epoch
	sessionID := active.ID
	s.mu.Unlock()
	s.notify()

	// Busy flag clears on every exit path.
	defer func() {
		s.mu.Lock()
		s.responding = false
		s.mu.Unlock()
		s.notify()
	}()

	snapshot, err := s.remote.SendMessage(ctx, sessionID, text)
	if err != nil {
		s.markFailed(sessionID, provisional.ID, epoch)
		logging.WithSession(sessionID).ErrorContext(ctx, "Failed to send message", "error", err)
		return nil, err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		logging.WithSession(sessionID).DebugContext(ctx, "Discarding message snapshot after identity change")
		return nil, apperrors.Unauthenticated("identity changed during request")
	}
	s.replaceLocked(snapshot)
	s.mu.Unlock()
	s.notify()

	return snapshot.Clone(), nil
}

// markFailed flags the provisional message after a failed send. The message
// may already be gone when another reconciliation replaced the session.
func (s *Store) markFailed(sessionID, messageID string, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return
	}
	session := s.findLocked(sessionID)
	if session == nil {
		return
	}
	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			session.Messages[i].Pending = false
			session.Messages[i].Failed = true
			return
		}
	}
}
