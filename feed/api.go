package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API talks to the REST endpoints the feed needs.
type API struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feed: server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets callers match credential failures with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrSessionRevoked:
		return e.Status == http.StatusUnauthorized && e.Code == "token_revoked"
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (a *API) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	err := a.do(ctx, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password}, &s)
	return s, err
}

func (a *API) Logout(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPost, "/logout", token, nil, nil)
}

func (a *API) Notifications(ctx context.Context, token string) ([]Notification, error) {
	var items []Notification
	err := a.do(ctx, http.MethodGet, "/notifications", token, nil, &items)
	return items, err
}

func (a *API) Pending(ctx context.Context, token string) (bool, error) {
	var out struct {
		Pending bool `json:"pending"`
	}
	err := a.do(ctx, http.MethodGet, "/notifications/pending", token, nil, &out)
	return out.Pending, err
}

func (a *API) MarkAllRead(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPut, "/notifications/read-all", token, nil, nil)
}

func (a *API) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return fmt.Errorf("feed: decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("feed: decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}
