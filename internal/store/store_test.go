package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-tej/shiksha-setu/internal/domain"
	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
)

// --- Mock implementations ---

type mockRemote struct {
	mu    sync.Mutex
	calls map[string]int

	listSessionsFn    func(ctx context.Context) ([]*domain.Session, error)
	createSessionFn   func(ctx context.Context, title string) (*domain.Session, error)
	getSessionFn      func(ctx context.Context, id string) (*domain.Session, error)
	updateSessionFn   func(ctx context.Context, id, title string) (*domain.Session, error)
	deleteSessionFn   func(ctx context.Context, id string) error
	sendMessageFn     func(ctx context.Context, id, content string) (*domain.Session, error)
	uploadDocumentsFn func(ctx context.Context, id string, files []domain.FileUpload) (*domain.DocumentReceipt, error)
	addWebsitesFn     func(ctx context.Context, id string, urls []string) (*domain.WebsiteReceipt, error)
}

func (m *mockRemote) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockRemote) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockRemote) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	m.count("list")
	if m.listSessionsFn != nil {
		return m.listSessionsFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockRemote) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	m.count("create")
	if m.createSessionFn != nil {
		return m.createSessionFn(ctx, title)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockRemote) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	m.count("get")
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockRemote) UpdateSession(ctx context.Context, id, title string) (*domain.Session, error) {
	m.count("update")
	if m.updateSessionFn != nil {
		return m.updateSessionFn(ctx, id, title)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockRemote) DeleteSession(ctx context.Context, id string) error {
	m.count("delete")
	if m.deleteSessionFn != nil {
		return m.deleteSessionFn(ctx, id)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockRemote) SendMessage(ctx context.Context, id, content string) (*domain.Session, error) {
	m.count("send")
	if m.sendMessageFn != nil {
		return m.sendMessageFn(ctx, id, content)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockRemote) UploadDocuments(ctx context.Context, id string, files []domain.FileUpload) (*domain.DocumentReceipt, error) {
	m.count("upload")
	if m.uploadDocumentsFn != nil {
		return m.uploadDocumentsFn(ctx, id, files)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockRemote) AddWebsites(ctx context.Context, id string, urls []string) (*domain.WebsiteReceipt, error) {
	m.count("websites")
	if m.addWebsitesFn != nil {
		return m.addWebsitesFn(ctx, id, urls)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockIdentity struct {
	mu   sync.Mutex
	user *domain.User
	subs []chan struct{}
}

func (m *mockIdentity) Current() (*domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, false
	}
	user := *m.user
	return &user, true
}

func (m *mockIdentity) Subscribe() (<-chan struct{}, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{}, 1)
	m.subs = append(m.subs, ch)
	return ch, func() {}
}

func (m *mockIdentity) set(user *domain.User) {
	m.mu.Lock()
	m.user = user
	subs := append([]chan struct{}(nil), m.subs...)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func loggedIn() *mockIdentity {
	return &mockIdentity{user: &domain.User{ID: "u1", Email: "alice@example.com", Name: "Alice"}}
}

// --- Fixtures ---

func session(id, title string, updatedAt time.Time, messages ...domain.Message) *domain.Session {
	return &domain.Session{
		ID:        id,
		Title:     title,
		Messages:  messages,
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
	}
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(remote *mockRemote, identity *mockIdentity) (*Store, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(t0)
	s := New(remote, identity, clock, Options{PollInterval: time.Second, PollTimeout: 3 * time.Second})
	return s, clock
}

// populate seeds the store through a Refresh against the given sessions.
func populate(t *testing.T, s *Store, remote *mockRemote, sessions ...*domain.Session) {
	t.Helper()
	remote.listSessionsFn = func(context.Context) ([]*domain.Session, error) {
		return sessions, nil
	}
	require.NoError(t, s.Refresh(context.Background()))
}

func sessionIDs(s *Store) []string {
	ids := []string{}
	for _, session := range s.Sessions() {
		ids = append(ids, session.ID)
	}
	return ids
}

// requireActiveInvariant asserts the active reference, when set, names an
// entry present in the mapping.
func requireActiveInvariant(t *testing.T, s *Store) {
	t.Helper()
	active, ok := s.Active()
	if !ok {
		return
	}
	assert.Contains(t, sessionIDs(s), active.ID)
}

// --- Refresh ---

func TestRefresh_PopulatesMappingInServerOrder(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, loggedIn())

	populate(t, s, remote,
		session("s2", "Newer", t0),
		session("s1", "Older", t0.Add(-time.Hour)),
	)

	assert.Equal(t, []string{"s2", "s1"}, sessionIDs(s))
	_, ok := s.Active()
	assert.False(t, ok)
}

func TestRefresh_RequiresIdentity(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, &mockIdentity{})

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeUnauthenticated))
	assert.Zero(t, remote.callCount("list"))
}

func TestRefresh_KeepsActiveWhenStillPresent(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0))
	s.Select("s1")

	populate(t, s, remote, session("s2", "Two", t0), session("s1", "One", t0))

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "s1", active.ID)
}

func TestRefresh_ClearsActiveWhenGone(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0))
	s.Select("s1")

	populate(t, s, remote, session("s2", "Two", t0))

	_, ok := s.Active()
	assert.False(t, ok)
	requireActiveInvariant(t, s)
}

// --- Create / Select ---

func TestCreate_InsertsAtFrontAndActivates(t *testing.T) {
	remote := &mockRemote{
		createSessionFn: func(_ context.Context, title string) (*domain.Session, error) {
			assert.Equal(t, domain.DefaultTitle, title)
			return session("s-new", title, t0), nil
		},
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0.Add(-time.Hour)))

	created, err := s.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s-new", created.ID)

	assert.Equal(t, []string{"s-new", "s1"}, sessionIDs(s))
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "s-new", active.ID)
	requireActiveInvariant(t, s)
}

func TestCreate_FailureLeavesMappingUnchanged(t *testing.T) {
	remote := &mockRemote{
		createSessionFn: func(context.Context, string) (*domain.Session, error) {
			return nil, apperrors.RemoteUnreachable("request failed", nil)
		},
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0))

	_, err := s.Create(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"s1"}, sessionIDs(s))
}

func TestCreate_RequiresIdentity(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, &mockIdentity{})

	_, err := s.Create(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.TypeUnauthenticated))
	assert.Zero(t, remote.callCount("create"))
}

func TestSelect(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0), session("s2", "Two", t0))

	t.Run("known id becomes active", func(t *testing.T) {
		s.Select("s2")
		active, ok := s.Active()
		require.True(t, ok)
		assert.Equal(t, "s2", active.ID)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		s.Select("nope")
		active, ok := s.Active()
		require.True(t, ok)
		assert.Equal(t, "s2", active.ID)
	})
}

// --- Rename ---

func TestRename_ReplacesWithServerRepresentation(t *testing.T) {
	renamed := session("s1", "Renamed", t0.Add(time.Minute))
	remote := &mockRemote{
		updateSessionFn: func(_ context.Context, id, title string) (*domain.Session, error) {
			assert.Equal(t, "s1", id)
			assert.Equal(t, "Renamed", title)
			return renamed, nil
		},
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0))
	s.Select("s1")

	require.NoError(t, s.Rename(context.Background(), "s1", "Renamed"))

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "Renamed", active.Title)
	assert.Equal(t, t0.Add(time.Minute), active.UpdatedAt)
}

func TestRename_EmptyTitleRejectedLocally(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0))

	for _, title := range []string{"", "   ", "\t\n"} {
		err := s.Rename(context.Background(), "s1", title)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.TypePrecondition))
	}
	assert.Zero(t, remote.callCount("update"))
}

func TestRename_FailureRetainsPriorTitle(t *testing.T) {
	remote := &mockRemote{
		updateSessionFn: func(context.Context, string, string) (*domain.Session, error) {
			return nil, apperrors.RemoteRejected("Chat not found", nil)
		},
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "Original", t0))

	err := s.Rename(context.Background(), "s1", "Doomed")
	require.Error(t, err)
	assert.Equal(t, "Original", s.Sessions()[0].Title)
}

// --- Remove ---

func TestRemove_DeletesEntry(t *testing.T) {
	remote := &mockRemote{
		deleteSessionFn: func(context.Context, string) error { return nil },
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0), session("s2", "Two", t0))

	require.NoError(t, s.Remove(context.Background(), "s2"))
	assert.Equal(t, []string{"s1"}, sessionIDs(s))
}

func TestRemove_ActiveFallsBackToFirstRemaining(t *testing.T) {
	remote := &mockRemote{
		deleteSessionFn: func(context.Context, string) error { return nil },
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0), session("s2", "Two", t0), session("s3", "Three", t0))
	s.Select("s2")

	require.NoError(t, s.Remove(context.Background(), "s2"))

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "s1", active.ID)
	requireActiveInvariant(t, s)
}

func TestRemove_LastSessionLeavesNoActive(t *testing.T) {
	remote := &mockRemote{
		deleteSessionFn: func(context.Context, string) error { return nil },
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0))
	s.Select("s1")

	require.NoError(t, s.Remove(context.Background(), "s1"))

	assert.Empty(t, s.Sessions())
	_, ok := s.Active()
	assert.False(t, ok)
}

func TestRemove_FailureRetainsEntry(t *testing.T) {
	remote := &mockRemote{
		deleteSessionFn: func(context.Context, string) error {
			return apperrors.RemoteUnreachable("request failed", nil)
		},
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0))

	require.Error(t, s.Remove(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, sessionIDs(s))
}

// --- Mapping key-set property ---

func TestCreateRenameRemove_KeySetMatchesHistory(t *testing.T) {
	var nextID int
	remote := &mockRemote{
		createSessionFn: func(_ context.Context, title string) (*domain.Session, error) {
			nextID++
			return session(fmt.Sprintf("s%d", nextID), title, t0), nil
		},
		updateSessionFn: func(_ context.Context, id, title string) (*domain.Session, error) {
			return session(id, title, t0.Add(time.Minute)), nil
		},
		deleteSessionFn: func(context.Context, string) error { return nil },
	}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := s.Create(ctx)
		require.NoError(t, err)
		requireActiveInvariant(t, s)
	}
	require.NoError(t, s.Rename(ctx, "s2", "Kept"))
	require.NoError(t, s.Remove(ctx, "s3"))
	requireActiveInvariant(t, s)
	require.NoError(t, s.Remove(ctx, "s1"))
	requireActiveInvariant(t, s)

	assert.ElementsMatch(t, []string{"s4", "s2"}, sessionIDs(s))
}

// --- Observers and snapshots ---

func TestSessions_ReturnsDeepCopies(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, loggedIn())
	populate(t, s, remote, session("s1", "One", t0, domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hi"}))

	snapshot := s.Sessions()
	snapshot[0].Title = "mutated"
	snapshot[0].Messages[0].Content = "mutated"

	fresh := s.Sessions()
	assert.Equal(t, "One", fresh[0].Title)
	assert.Equal(t, "hi", fresh[0].Messages[0].Content)
}

func TestSubscribe_NotifiedOnMutation(t *testing.T) {
	remote := &mockRemote{}
	s, _ := newTestStore(remote, loggedIn())

	ch, cancel := s.Subscribe()
	defer cancel()

	populate(t, s, remote, session("s1", "One", t0))

	select {
	case <-ch:
	default:
		t.Fatal("expected a change notification after refresh")
	}
}

// --- Identity lifecycle ---

func TestLogout_ClearsEverything(t *testing.T) {
	remote := &mockRemote{}
	identity := loggedIn()
	s, _ := newTestStore(remote, identity)
	populate(t, s, remote, session("s1", "One", t0))
	s.Select("s1")

	identity.set(nil)
	s.syncIdentity(context.Background())

	assert.Empty(t, s.Sessions())
	_, ok := s.Active()
	assert.False(t, ok)
	assert.Equal(t, Busy{}, s.Busy())
}

func TestWatch_LoginPopulatesAndLogoutClears(t *testing.T) {
	remote := &mockRemote{
		listSessionsFn: func(context.Context) ([]*domain.Session, error) {
			return []*domain.Session{session("s1", "One", t0)}, nil
		},
	}
	identity := &mockIdentity{}
	s, _ := newTestStore(remote, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Watch(ctx)
	}()

	identity.set(&domain.User{ID: "u1"})
	require.Eventually(t, func() bool {
		return len(s.Sessions()) == 1
	}, time.Second, 5*time.Millisecond)

	identity.set(nil)
	require.Eventually(t, func() bool {
		return len(s.Sessions()) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
