package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ag-tej/shiksha-setu/internal/domain"
	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
	"github.com/ag-tej/shiksha-setu/internal/metrics"
)

// Client talks to the remote service. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	source  domain.TokenSource
}

var (
	_ domain.RemoteService = (*Client)(nil)
	_ domain.AuthService   = (*Client)(nil)
)

// NewClient creates a client against baseURL (scheme, host, and API prefix,
// no trailing slash required). source supplies the bearer credential for
// authenticated calls.
func NewClient(baseURL string, source domain.TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		source:  source,
	}
}

func (c *Client) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	var payload []sessionPayload
	if err := c.doJSON(ctx, "list_sessions", http.MethodGet, "/sessions", nil, true, &payload); err != nil {
		return nil, err
	}

	sessions := make([]*domain.Session, len(payload))
	for i, p := range payload {
		sessions[i] = p.toDomain()
	}
	return sessions, nil
}

func (c *Client) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	var payload sessionPayload
	if err := c.doJSON(ctx, "create_session", http.MethodPost, "/sessions", titlePayload{Title: title}, true, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var payload sessionPayload
	if err := c.doJSON(ctx, "get_session", http.MethodGet, "/sessions/"+url.PathEscape(id), nil, true, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *Client) UpdateSession(ctx context.Context, id, title string) (*domain.Session, error) {
	var payload sessionPayload
	if err := c.doJSON(ctx, "update_session", http.MethodPatch, "/sessions/"+url.PathEscape(id), titlePayload{Title: title}, true, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete_session", http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, true, nil)
}

func (c *Client) SendMessage(ctx context.Context, id, content string) (*domain.Session, error) {
	var payload sessionPayload
	if err := c.doJSON(ctx, "send_message", http.MethodPost, "/sessions/"+url.PathEscape(id)+"/messages", contentPayload{Content: content}, true, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *Client) UploadDocuments(ctx context.Context, id string, files []domain.FileUpload) (*domain.DocumentReceipt, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			return nil, apperrors.RemoteUnreachable("failed to build upload request", err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, apperrors.RemoteUnreachable("failed to build upload request", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.RemoteUnreachable("failed to build upload request", err)
	}

	var payload documentReceiptPayload
	err := c.do(ctx, "upload_documents", http.MethodPost, "/sessions/"+url.PathEscape(id)+"/documents",
		&body, writer.FormDataContentType(), true, &payload)
	if err != nil {
		return nil, err
	}

	receipt := &domain.DocumentReceipt{Files: make([]domain.ProcessedFile, len(payload.ProcessedFiles))}
	for i, f := range payload.ProcessedFiles {
		receipt.Files[i] = domain.ProcessedFile{Name: f.Name, ID: f.ID}
	}
	return receipt, nil
}

func (c *Client) AddWebsites(ctx context.Context, id string, urls []string) (*domain.WebsiteReceipt, error) {
	var payload websiteReceiptPayload
	if err := c.doJSON(ctx, "add_websites", http.MethodPost, "/sessions/"+url.PathEscape(id)+"/websites", urlsPayload{URLs: urls}, true, &payload); err != nil {
		return nil, err
	}

	receipt := &domain.WebsiteReceipt{URLs: make([]domain.ProcessedURL, len(payload.ProcessedURLs))}
	for i, u := range payload.ProcessedURLs {
		receipt.URLs[i] = domain.ProcessedURL{URL: u.URL, ID: u.ID}
	}
	return receipt, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (domain.Token, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var payload tokenPayload
	err := c.do(ctx, "login", http.MethodPost, "/auth/login",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", false, &payload)
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{AccessToken: payload.AccessToken, TokenType: payload.TokenType}, nil
}

func (c *Client) Signup(ctx context.Context, email, password, name string) (domain.Token, error) {
	var payload tokenPayload
	err := c.doJSON(ctx, "signup", http.MethodPost, "/auth/signup", signupPayload{Email: email, Password: password, Name: name}, false, &payload)
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{AccessToken: payload.AccessToken, TokenType: payload.TokenType}, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var payload userPayload
	if err := c.doJSON(ctx, "current_user", http.MethodGet, "/auth/me", nil, true, &payload); err != nil {
		return nil, err
	}
	return &domain.User{ID: payload.ID, Email: payload.Email, Name: payload.Name}, nil
}

// doJSON marshals body (when non-nil) as JSON and delegates to do.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, body any, authed bool, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperrors.RemoteUnreachable("failed to encode request", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.do(ctx, operation, method, path, reader, contentType, authed, out)
}

// do issues one request and decodes the response into out (when non-nil).
// Failure classification: missing credential is unauthenticated and never
// leaves the process; transport errors are remote_unreachable; non-2xx
// responses are remote_rejected (or unauthenticated for 401) carrying the
// service's detail string when the body has one.
func (c *Client) do(ctx context.Context, operation, method, path string, body io.Reader, contentType string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.RemoteUnreachable("failed to build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if authed {
		token, ok := c.source.BearerToken()
		if !ok {
			return apperrors.Unauthenticated("no bearer credential")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		return apperrors.RemoteUnreachable("request failed", err).WithContext("operation", operation)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.RemoteUnreachable("failed to read response", err).WithContext("operation", operation)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := fmt.Sprintf("service returned status %d", resp.StatusCode)
		var failure errorPayload
		if json.Unmarshal(raw, &failure) == nil && failure.Detail != "" {
			detail = failure.Detail
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return apperrors.Unauthenticated(detail).WithContext("operation", operation)
		}
		return apperrors.RemoteRejected(detail, nil).
			WithContext("operation", operation).
			WithContext("status", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperrors.RemoteRejected("invalid response from service", err).WithContext("operation", operation)
		}
	}
	return nil
}
