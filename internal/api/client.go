// Package api talks to the case API over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pders01/casedesk/internal/debuglog"
	"github.com/pders01/casedesk/internal/feed"
	"github.com/pders01/casedesk/internal/storage"
	"github.com/pders01/casedesk/internal/validation"
)

// RequestIDHeader correlates client and server log lines.
const RequestIDHeader = "X-Request-ID"

// ErrUnauthorized is returned for 401 responses.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is an unexpected HTTP status with the server's message.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, whose timeout is 15 seconds.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "casedesk/1.0",
		http:      &http.Client{Timeout: 15 * time.Second},
		token:     token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login exchanges credentials for a bearer token and keeps it for later
// requests.
func (c *Client) Login(ctx context.Context, gmail, password string) (*LoginResponse, error) {
	body, err := json.Marshal(LoginRequest{Gmail: gmail, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", bytes.NewReader(body), &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login: empty token in response")
	}
	c.SetToken(out.Token)
	return &out, nil
}

// LoadApplications fetches one page of applications matching search.
func (c *Client) LoadApplications(ctx context.Context, search string, page int) (ApplicationsResponse, error) {
	q := make(url.Values)
	if search != "" {
		q.Set("search", search)
	}
	q.Set("page", strconv.Itoa(page))

	var out ApplicationsResponse
	if err := c.do(ctx, http.MethodGet, "/application/loadApplications?"+q.Encode(), nil, &out); err != nil {
		return ApplicationsResponse{}, fmt.Errorf("load applications: %w", err)
	}
	return out, nil
}

// FetchPage implements feed.Fetcher. Envelopes that break the page contract
// come back as feed.ErrMalformedPage.
func (c *Client) FetchPage(ctx context.Context, query string, page int) (feed.Page[storage.Application], error) {
	resp, err := c.LoadApplications(ctx, query, page)
	if err != nil {
		return feed.Page[storage.Application]{}, err
	}
	p, err := resp.Page()
	if err != nil {
		return feed.Page[storage.Application]{}, fmt.Errorf("load applications: %w", err)
	}
	if p.Number != page {
		return feed.Page[storage.Application]{}, fmt.Errorf("load applications: %w: asked for page %d, got %d", feed.ErrMalformedPage, page, p.Number)
	}
	return p, nil
}

// GetApplication returns storage.ErrNotFound for unknown or deleted ids.
func (c *Client) GetApplication(ctx context.Context, id uint64) (*storage.Application, error) {
	var out ApplicationResponse
	if err := c.do(ctx, http.MethodGet, "/application/getApplication/"+strconv.FormatUint(id, 10), nil, &out); err != nil {
		return nil, fmt.Errorf("get application %d: %w", id, err)
	}
	if out.Application == nil {
		return nil, fmt.Errorf("get application %d: missing application", id)
	}
	return out.Application, nil
}

// StoreApplication creates an application and returns it as saved. Records
// the server rejects come back wrapping validation.ErrInvalidRecord.
func (c *Client) StoreApplication(ctx context.Context, app *storage.Application) (*storage.Application, error) {
	body, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("encode application: %w", err)
	}
	var out ApplicationResponse
	if err := c.do(ctx, http.MethodPost, "/application/storeApplication", bytes.NewReader(body), &out); err != nil {
		return nil, fmt.Errorf("store application: %w", err)
	}
	if out.Application == nil {
		return nil, fmt.Errorf("store application: missing application")
	}
	return out.Application, nil
}

// UpdateApplication replaces the fields of application id.
func (c *Client) UpdateApplication(ctx context.Context, id uint64, app *storage.Application) (*storage.Application, error) {
	body, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("encode application: %w", err)
	}
	var out ApplicationResponse
	if err := c.do(ctx, http.MethodPost, "/application/updateApplication/"+strconv.FormatUint(id, 10), bytes.NewReader(body), &out); err != nil {
		return nil, fmt.Errorf("update application %d: %w", id, err)
	}
	if out.Application == nil {
		return nil, fmt.Errorf("update application %d: missing application", id)
	}
	return out.Application, nil
}

// DestroyApplication soft-deletes an application on the server.
func (c *Client) DestroyApplication(ctx context.Context, id uint64) error {
	var out MessageResponse
	if err := c.do(ctx, http.MethodPut, "/application/destroyApplication/"+strconv.FormatUint(id, 10), nil, &out); err != nil {
		return fmt.Errorf("destroy application %d: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	debuglog.WithFields(map[string]interface{}{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": req.Header.Get(RequestIDHeader),
		"elapsed":    time.Since(start).Round(time.Millisecond),
	}).Debugf("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var m MessageResponse
	if json.Unmarshal(raw, &m) == nil && m.Message != "" {
		msg = m.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if msg == "" {
			return ErrUnauthorized
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusNotFound:
		return storage.ErrNotFound
	case http.StatusUnprocessableEntity:
		msg = strings.TrimPrefix(msg, validation.ErrInvalidRecord.Error()+": ")
		return fmt.Errorf("%w: %s", validation.ErrInvalidRecord, msg)
	default:
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
}
