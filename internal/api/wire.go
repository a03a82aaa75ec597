package api

import (
	"time"

	"github.com/ag-tej/shiksha-setu/internal/domain"
)

// Wire representations. Timestamps are millisecond integers.

type messagePayload struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type sessionPayload struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Messages  []messagePayload `json:"messages"`
	CreatedAt int64            `json:"createdAt"`
	UpdatedAt int64            `json:"updatedAt"`
}

func (p sessionPayload) toDomain() *domain.Session {
	messages := make([]domain.Message, len(p.Messages))
	for i, m := range p.Messages {
		messages[i] = domain.Message{
			ID:        m.ID,
			Role:      domain.Role(m.Role),
			Content:   m.Content,
			Timestamp: time.UnixMilli(m.Timestamp).UTC(),
		}
	}
	return &domain.Session{
		ID:        p.ID,
		Title:     p.Title,
		Messages:  messages,
		CreatedAt: time.UnixMilli(p.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(p.UpdatedAt).UTC(),
	}
}

type titlePayload struct {
	Title string `json:"title"`
}

type contentPayload struct {
	Content string `json:"content"`
}

type urlsPayload struct {
	URLs []string `json:"urls"`
}

type signupPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type processedFilePayload struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type processedURLPayload struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

type documentReceiptPayload struct {
	Success        bool                   `json:"success"`
	ProcessedFiles []processedFilePayload `json:"processed_files"`
}

type websiteReceiptPayload struct {
	Success       bool                  `json:"success"`
	ProcessedURLs []processedURLPayload `json:"processed_urls"`
}

type errorPayload struct {
	Detail string `json:"detail"`
}
