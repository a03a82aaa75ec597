package domain

import "context"

// FileUpload is one document handed to the ingestion endpoint.
type FileUpload struct {
	Name    string
	Content []byte
}

// ProcessedFile identifies a document the service accepted for ingestion.
type ProcessedFile struct {
	Name string
	ID   string
}

// ProcessedURL identifies a website the service accepted for ingestion.
type ProcessedURL struct {
	URL string
	ID  string
}

// DocumentReceipt is the acceptance payload of a document upload. Acceptance
// means the service has queued processing; the session transcript reflects
// the result only after a later fetch.
type DocumentReceipt struct {
	Files []ProcessedFile
}

// WebsiteReceipt is the acceptance payload of a website batch.
type WebsiteReceipt struct {
	URLs []ProcessedURL
}

// RemoteService is the session CRUD, message exchange, and ingestion surface
// of the backend. Implementations return structured errors from
// internal/errors so callers can distinguish rejection from unreachability.
type RemoteService interface {
	ListSessions(ctx context.Context) ([]*Session, error)
	CreateSession(ctx context.Context, title string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, id, title string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error

	// SendMessage appends a user message and returns the authoritative full
	// session snapshot, assistant reply included.
	SendMessage(ctx context.Context, id, content string) (*Session, error)

	UploadDocuments(ctx context.Context, id string, files []FileUpload) (*DocumentReceipt, error)
	AddWebsites(ctx context.Context, id string, urls []string) (*WebsiteReceipt, error)
}

// AuthService is the authentication surface of the backend.
type AuthService interface {
	// Login exchanges form credentials for a bearer token. The username is
	// the account email.
	Login(ctx context.Context, username, password string) (Token, error)
	Signup(ctx context.Context, email, password, name string) (Token, error)

	// CurrentUser resolves the bearer credential to an account.
	CurrentUser(ctx context.Context) (*User, error)
}

// TokenSource supplies the current bearer credential synchronously before
// each authenticated request.
type TokenSource interface {
	BearerToken() (string, bool)
}

// IdentityProvider exposes the authenticated user and a change subscription.
// The store clears all session state whenever the identity becomes absent.
type IdentityProvider interface {
	Current() (*User, bool)

	// Subscribe returns a coalescing notification channel and a cancel func.
	// A receive means the identity may have changed; consumers re-read
	// Current.
	Subscribe() (<-chan struct{}, func())
}
