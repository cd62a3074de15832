package taskdecksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Client is a minimal taskdeck HTTP API client. BaseURL includes the API
// base path, e.g. http://127.0.0.1:4000/api.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	// Breaker, when set, wraps every request. Client errors (4xx) do not
	// count as failures.
	Breaker *gobreaker.CircuitBreaker

	mu    sync.RWMutex
	token string
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// NewBreaker returns a breaker that opens after more than three consecutive
// server or transport failures and probes again after timeout.
func NewBreaker(name string, timeout time.Duration, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: onChange,
	})
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Task mirrors the API task model.
type Task struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	User        string     `json:"user"`
	IsDeleted   bool       `json:"isDeleted"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Notification struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	TaskID    string    `json:"taskId,omitempty"`
	Points    *int      `json:"points,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskInput is the create payload. DueDate accepts RFC3339 or YYYY-MM-DD.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
}

// TaskUpdate is sent as-is; the server rejects keys outside title,
// description, status, priority and dueDate.
type TaskUpdate map[string]any

type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

type NotificationInput struct {
	UserID  string `json:"userId"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	TaskID  string `json:"taskId,omitempty"`
	Points  *int   `json:"points,omitempty"`
}

type AuthResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

type NotificationList struct {
	Count         int            `json:"count"`
	UnreadCount   int            `json:"unreadCount"`
	Notifications []Notification `json:"notifications"`
}

// APIError wraps non-2xx responses. Message comes from the error envelope
// when the server sent one.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	var resp AuthResult
	if err := c.do(ctx, http.MethodPost, "auth/register", in, &resp); err != nil {
		return AuthResult{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

// Login exchanges credentials for a token and keeps it.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var resp AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return AuthResult{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

// Logout tells the server to clear its cookie and forgets the token even
// when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "auth/logout", nil, nil)
	c.SetToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "auth/me", nil, &resp)
	return resp.User, err
}

func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, "tasks/all", nil, &resp)
	return resp.Tasks, err
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp.Task, err
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, "tasks/add", in, &resp)
	return resp.Task, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, update TaskUpdate) (Task, error) {
	var resp struct {
		Task Task `json:"task"`
	}
	if update == nil {
		update = TaskUpdate{}
	}
	err := c.do(ctx, http.MethodPut, "tasks/update/"+url.PathEscape(id), update, &resp)
	return resp.Task, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/delete/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListNotifications(ctx context.Context, userID string) (NotificationList, error) {
	var resp NotificationList
	err := c.do(ctx, http.MethodGet, "notifications/user/"+url.PathEscape(userID), nil, &resp)
	return resp, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) (Notification, error) {
	var resp struct {
		Notification Notification `json:"notification"`
	}
	err := c.do(ctx, http.MethodPatch, "notifications/"+url.PathEscape(id)+"/read", nil, &resp)
	return resp.Notification, err
}

// MarkAllNotificationsRead returns how many notifications changed.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	err := c.do(ctx, http.MethodPatch, "notifications/user/"+url.PathEscape(userID)+"/read-all", nil, &resp)
	return resp.Updated, err
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "notifications/"+url.PathEscape(id), nil, nil)
}

func (c *Client) CreateNotification(ctx context.Context, in NotificationInput) (Notification, error) {
	var resp struct {
		Notification Notification `json:"notification"`
	}
	err := c.do(ctx, http.MethodPost, "notifications", in, &resp)
	return resp.Notification, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.Breaker == nil {
		return c.roundTrip(ctx, method, endpoint, body, out)
	}
	_, err := c.Breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, endpoint, body, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Message = envelope.Message
			apiErr.Detail = envelope.Error
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
