package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ag-tej/shiksha-setu/internal/domain"
	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
	"github.com/ag-tej/shiksha-setu/internal/logging"
	"github.com/ag-tej/shiksha-setu/internal/metrics"
	"github.com/ag-tej/shiksha-setu/internal/platform/correlation"
	"github.com/ag-tej/shiksha-setu/internal/platform/retry"
)

// errIngestPending signals that the session snapshot does not yet reflect
// the accepted batch.
var errIngestPending = errors.New("ingestion still processing")

// IngestDocuments uploads files to the active session and waits until the
// session reflects the processed batch. The service answers with an
// acceptance payload; completion is observed by polling the session resource
// until its update timestamp advances past the pre-upload value, bounded by
// the configured poll timeout.
func (s *Store) IngestDocuments(ctx context.Context, files []domain.FileUpload) error {
	ctx = correlation.Ensure(ctx)
	err := s.ingestDocuments(ctx, files)
	metrics.ObserveOperation("ingest_documents", err)
	return err
}

func (s *Store) ingestDocuments(ctx context.Context, files []domain.FileUpload) error {
	if _, ok := s.identity.Current(); !ok {
		return apperrors.Unauthenticated("no identity")
	}
	if len(files) == 0 {
		return apperrors.Precondition("no files to upload")
	}
	for _, file := range files {
		if file.Name == "" {
			return apperrors.Precondition("file name must not be empty")
		}
	}

	s.mu.Lock()
	active := s.findLocked(s.active)
	if active == nil {
		s.mu.Unlock()
		return apperrors.Precondition("no active session")
	}
	if s.ingestingFiles {
		s.mu.Unlock()
		return apperrors.Precondition("a document upload is already in progress")
	}
	s.ingestingFiles = true
	baseline := active.UpdatedAt
	epoch := s.epoch
	sessionID := active.ID
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.ingestingFiles = false
		s.processing = false
		s.mu.Unlock()
		s.notify()
	}()

	receipt, err := s.remote.UploadDocuments(ctx, sessionID, files)
	if err != nil {
		logging.WithSession(sessionID).ErrorContext(ctx, "Document upload failed", "error", err)
		return err
	}
	logging.WithSession(sessionID).InfoContext(ctx, "Document upload accepted", "files", len(receipt.Files))

	return s.settleIngest(ctx, sessionID, baseline, epoch, "documents")
}

// IngestWebsites submits URLs to the active session with the same
// acceptance-then-poll contract as IngestDocuments. Every URL must be a
// well-formed absolute http(s) URL; a malformed entry rejects the whole
// batch locally and nothing is sent.
func (s *Store) IngestWebsites(ctx context.Context, urls []string) error {
	ctx = correlation.Ensure(ctx)
	err := s.ingestWebsites(ctx, urls)
	metrics.ObserveOperation("ingest_websites", err)
	return err
}

func (s *Store) ingestWebsites(ctx context.Context, urls []string) error {
	if _, ok := s.identity.Current(); !ok {
		return apperrors.Unauthenticated("no identity")
	}
	if len(urls) == 0 {
		return apperrors.Precondition("no URLs to add")
	}
	for _, raw := range urls {
		if err := validateURL(raw); err != nil {
			return err
		}
	}

	s.mu.Lock()
	active := s.findLocked(s.active)
	if active == nil {
		s.mu.Unlock()
		return apperrors.Precondition("no active session")
	}
	if s.ingestingWebsites {
		s.mu.Unlock()
		return apperrors.Precondition("a website batch is already in progress")
	}
	s.ingestingWebsites = true
	baseline := active.UpdatedAt
	epoch := s.epoch
	sessionID := active.ID
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.ingestingWebsites = false
		s.processing = false
		s.mu.Unlock()
		s.notify()
	}()

	receipt, err := s.remote.AddWebsites(ctx, sessionID, urls)
	if err != nil {
		logging.WithSession(sessionID).ErrorContext(ctx, "Website batch failed", "error", err)
		return err
	}
	logging.WithSession(sessionID).InfoContext(ctx, "Website batch accepted", "urls", len(receipt.URLs))

	return s.settleIngest(ctx, sessionID, baseline, epoch, "websites")
}

// settleIngest marks the processing phase, polls the session until its
// snapshot moves past baseline, and reconciles the result.
func (s *Store) settleIngest(ctx context.Context, sessionID string, baseline time.Time, epoch uint64, kind string) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return apperrors.Unauthenticated("identity changed during request")
	}
	s.processing = true
	s.mu.Unlock()
	s.notify()

	snapshot, err := s.awaitSettled(ctx, sessionID, baseline, kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		logging.WithSession(sessionID).DebugContext(ctx, "Discarding ingest snapshot after identity change")
		return apperrors.Unauthenticated("identity changed during request")
	}
	s.replaceLocked(snapshot)
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) awaitSettled(ctx context.Context, sessionID string, baseline time.Time, kind string) (*domain.Session, error) {
	policy := retry.Policy{
		MaxAttempts:    pollAttempts(s.opts.PollInterval, s.opts.PollTimeout),
		InitialBackoff: s.opts.PollInterval,
		MaxBackoff:     8 * s.opts.PollInterval,
		OnRetry: func(attempt int, _ error, backoff time.Duration) {
			logging.WithSession(sessionID).DebugContext(ctx, "Ingestion not settled yet", "attempt", attempt, "backoff", backoff)
		},
	}

	classify := func(err error) retry.Action {
		if errors.Is(err, errIngestPending) || apperrors.IsType(err, apperrors.TypeRemoteUnreachable) {
			return retry.Retry
		}
		return retry.Stop
	}

	snapshot, err := retry.Do(ctx, s.clock, policy, classify, func() (*domain.Session, error) {
		snap, err := s.remote.GetSession(ctx, sessionID)
		if err != nil {
			metrics.IngestPollsTotal.WithLabelValues(kind, "error").Inc()
			return nil, err
		}
		if !snap.UpdatedAt.After(baseline) {
			metrics.IngestPollsTotal.WithLabelValues(kind, "pending").Inc()
			return nil, errIngestPending
		}
		metrics.IngestPollsTotal.WithLabelValues(kind, "settled").Inc()
		return snap, nil
	})
	if err != nil {
		if errors.Is(err, errIngestPending) {
			return nil, apperrors.RemoteUnreachable(
				fmt.Sprintf("ingestion did not complete within %s", s.opts.PollTimeout), err)
		}
		return nil, err
	}
	return snapshot, nil
}

// pollAttempts sizes the retry loop so the cumulative backoff (doubling,
// capped at 8x the interval) covers at least the configured timeout.
func pollAttempts(interval, timeout time.Duration) int {
	maxBackoff := 8 * interval
	attempts := 1
	backoff := interval
	var elapsed time.Duration
	for elapsed < timeout && attempts < 1000 {
		elapsed += backoff
		attempts++
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return attempts
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return apperrors.Precondition(fmt.Sprintf("invalid URL %q: must be an absolute http(s) URL", raw))
	}
	return nil
}
