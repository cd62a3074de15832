package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/engine/auth"
	"taskdeck/internal/logging"
	"taskdeck/internal/migrate"
	"taskdeck/internal/repo"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := logging.Discard()
	e := engine.New(repo.Repo{DB: conn}, auth.Tokens{Secret: "server-test-secret", TTL: time.Hour}, log)
	e.Hasher = auth.PasswordHasher{Cost: bcrypt.MinCost}
	handler, err := New(Config{Engine: e, BasePath: "/api", Logger: log})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return out
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// registerUser creates an account and returns its id and bearer headers.
func registerUser(t *testing.T, srv *testServer, name, email string) (string, map[string]string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/register", map[string]any{
		"name":     name,
		"email":    email,
		"password": "correct-horse",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, data)
	}
	sess := decode[SessionEnvelope](t, data)
	if sess.Token == "" || sess.User.ID == "" {
		t.Fatalf("register returned no session: %s", data)
	}
	return sess.User.ID, map[string]string{"Authorization": "Bearer " + sess.Token}
}

func TestBuyMilkScenario(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, alice := registerUser(t, srv, "Alice", "alice@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/add", map[string]any{
		"title":    "Buy milk",
		"priority": "high",
	}, alice)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, data)
	}
	created := decode[TaskEnvelope](t, data)
	if !created.Success || created.Message != "Task created successfully" {
		t.Fatalf("unexpected create envelope %s", data)
	}
	task := created.Task
	if task.Status != domain.StatusTodo || task.Priority != domain.PriorityHigh || task.IsDeleted {
		t.Fatalf("unexpected created task %+v", task)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/all", nil, alice)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, data)
	}
	if list := decode[TaskListEnvelope](t, data); list.Count != 1 || list.Tasks[0].ID != task.ID {
		t.Fatalf("unexpected list %s", data)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/update/"+task.ID, map[string]any{"status": "in-progress"}, alice)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, data)
	}
	updated := decode[TaskEnvelope](t, data)
	if updated.Message != "Task updated successfully" || updated.Task.Status != domain.StatusInProgress {
		t.Fatalf("unexpected update %s", data)
	}
	if updated.Task.Title != "Buy milk" || updated.Task.Priority != domain.PriorityHigh {
		t.Fatalf("status-only update changed other fields: %+v", updated.Task)
	}
	if !updated.Task.UpdatedAt.After(task.UpdatedAt) {
		t.Fatalf("updatedAt did not advance: %s -> %s", task.UpdatedAt, updated.Task.UpdatedAt)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/"+task.ID, nil, alice)
	if res.StatusCode != http.StatusOK || decode[TaskEnvelope](t, data).Task.Status != domain.StatusInProgress {
		t.Fatalf("get after update %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/tasks/delete/"+task.ID, nil, alice)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", res.StatusCode, data)
	}
	if msg := decode[MessageEnvelope](t, data); msg.Message != "Task deleted successfully" {
		t.Fatalf("unexpected delete body %s", data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/"+task.ID, nil, alice)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status %d: %s", res.StatusCode, data)
	}
	if e := decode[errorBody](t, data); e.Success || e.Message != "Task not found" {
		t.Fatalf("unexpected not-found envelope %s", data)
	}
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/tasks/delete/"+task.ID, nil, alice)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status %d: %s", res.StatusCode, data)
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/all", nil, alice)
	if list := decode[TaskListEnvelope](t, data); list.Count != 0 || len(list.Tasks) != 0 {
		t.Fatalf("deleted task still listed: %s", data)
	}
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, tc := range []struct {
		method, path string
		headers      map[string]string
	}{
		{http.MethodGet, "/api/tasks/all", nil},
		{http.MethodPost, "/api/tasks/add", nil},
		{http.MethodGet, "/api/auth/me", nil},
		{http.MethodGet, "/api/tasks/all", map[string]string{"Authorization": "Bearer not-a-jwt"}},
		{http.MethodGet, "/api/tasks/all", map[string]string{"Authorization": "Basic abc"}},
	} {
		res, data := doJSON(t, client, tc.method, srv.URL+tc.path, nil, tc.headers)
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d: %s", tc.method, tc.path, res.StatusCode, data)
		}
		if e := decode[errorBody](t, data); e.Success || e.Message == "" {
			t.Fatalf("unexpected 401 envelope %s", data)
		}
	}

	// Sibling paths sharing the base prefix are outside the API.
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/apix/tasks/all", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("/apix: expected 404 from the router, got %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
}

func TestCreateWithoutTitleIsRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, alice := registerUser(t, srv, "Alice", "alice@example.com")

	for _, body := range []any{nil, map[string]any{}, map[string]any{"title": "   ", "priority": "low"}} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/add", body, alice)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", res.StatusCode, data)
		}
		if e := decode[errorBody](t, data); e.Message != "Title is required" {
			t.Fatalf("unexpected message %s", data)
		}
	}
	_, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/all", nil, alice)
	if list := decode[TaskListEnvelope](t, data); list.Count != 0 {
		t.Fatalf("rejected create persisted a task: %s", data)
	}
}

func TestUpdateRejectsFieldsOutsideAllowList(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, alice := registerUser(t, srv, "Alice", "alice@example.com")
	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/add", map[string]any{"title": "Write report"}, alice)
	task := decode[TaskEnvelope](t, data).Task

	for _, body := range []string{
		`{"title":"Hijacked","user":"someone-else"}`,
		`{"isDeleted":true}`,
		`{"_id":"x"}`,
		`["title"]`,
	} {
		res, data := doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/update/"+task.ID, body, alice)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", body, res.StatusCode, data)
		}
		if e := decode[errorBody](t, data); e.Message != "Invalid updates" {
			t.Fatalf("%s: unexpected message %s", body, data)
		}
	}

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/update/"+task.ID, `{"priority":"urgent"}`, alice)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad enum: expected 400, got %d: %s", res.StatusCode, data)
	}

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/"+task.ID, nil, alice)
	got := decode[TaskEnvelope](t, data).Task
	if got.Title != "Write report" || !got.UpdatedAt.Equal(task.UpdatedAt) {
		t.Fatalf("rejected update was applied: %+v", got)
	}
}

func TestTasksAreIsolatedPerUser(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, alice := registerUser(t, srv, "Alice", "alice@example.com")
	_, bob := registerUser(t, srv, "Bob", "bob@example.com")

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/add", map[string]any{"title": "Private"}, alice)
	task := decode[TaskEnvelope](t, data).Task

	checks := []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/tasks/" + task.ID, nil},
		{http.MethodPut, "/api/tasks/update/" + task.ID, map[string]any{"title": "Mine now"}},
		{http.MethodPut, "/api/tasks/update/" + task.ID, map[string]any{"owner": "bob"}},
		{http.MethodDelete, "/api/tasks/delete/" + task.ID, nil},
	}
	for _, c := range checks {
		res, data := doJSON(t, client, c.method, srv.URL+c.path, c.body, bob)
		if res.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s as bob: expected 404, got %d: %s", c.method, c.path, res.StatusCode, data)
		}
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/all", nil, bob)
	if list := decode[TaskListEnvelope](t, data); list.Count != 0 {
		t.Fatalf("bob sees alice's tasks: %s", data)
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/"+task.ID, nil, alice)
	if got := decode[TaskEnvelope](t, data).Task; got.Title != "Private" {
		t.Fatalf("task changed by another user: %+v", got)
	}
}

func TestLoginSetsCookieAccepted(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	userID, _ := registerUser(t, srv, "Alice", "alice@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/login", map[string]any{
		"email": "alice@example.com", "password": "wrong-password",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d: %s", res.StatusCode, data)
	}
	if e := decode[errorBody](t, data); e.Message != "Invalid credentials" {
		t.Fatalf("unexpected message %s", data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/login", map[string]any{
		"email": "ALICE@example.com", "password": "correct-horse",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, data)
	}
	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == tokenCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("expected http-only token cookie, got %v", res.Cookies())
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	req.AddCookie(cookie)
	meRes, err := client.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer meRes.Body.Close()
	meData, _ := io.ReadAll(meRes.Body)
	if meRes.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", meRes.StatusCode, meData)
	}
	if me := decode[UserEnvelope](t, meData); me.User.ID != userID || me.User.Email != "alice@example.com" {
		t.Fatalf("unexpected me %s", meData)
	}
	if bytes.Contains(meData, []byte("password")) {
		t.Fatalf("password hash leaked: %s", meData)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/register", map[string]any{
		"name": "Again", "email": "alice@example.com", "password": "correct-horse",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d: %s", res.StatusCode, data)
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/logout", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("logout status %d", res.StatusCode)
	}
	for _, c := range res.Cookies() {
		if c.Name == tokenCookie && c.MaxAge >= 0 {
			t.Fatalf("logout did not expire cookie: %+v", c)
		}
	}
}

func TestNotificationsEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	aliceID, alice := registerUser(t, srv, "Alice", "alice@example.com")
	bobID, bob := registerUser(t, srv, "Bob", "bob@example.com")

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/add", map[string]any{"title": "Ship it"}, alice)
	task := decode[TaskEnvelope](t, data).Task
	doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/update/"+task.ID, map[string]any{"status": "done"}, alice)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/notifications", map[string]any{
		"userId": aliceID, "type": "points_earned", "title": "Points", "message": "+5", "points": 5,
	}, alice)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create notification status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/notifications", map[string]any{
		"userId": bobID, "type": "reminder", "title": "Hi", "message": "from alice",
	}, alice)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-user create: expected 403, got %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/notifications/user/"+aliceID, nil, alice)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, data)
	}
	list := decode[NotificationListEnvelope](t, data)
	if list.Count != 2 || list.UnreadCount != 2 {
		t.Fatalf("expected two unread notifications, got %s", data)
	}
	var completed domain.Notification
	for _, n := range list.Notifications {
		if n.Type == domain.NotificationTaskCompleted {
			completed = n
		}
	}
	if completed.TaskID != task.ID {
		t.Fatalf("missing task_completed notification: %s", data)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/notifications/user/"+aliceID, nil, bob)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("bob listing alice: expected 403, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodPatch, srv.URL+"/api/notifications/"+completed.ID+"/read", nil, bob)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("bob marking alice's notification: expected 404, got %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/notifications/"+completed.ID+"/read", nil, alice)
	if res.StatusCode != http.StatusOK || !decode[NotificationEnvelope](t, data).Notification.Read {
		t.Fatalf("mark read failed %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/notifications/user/"+aliceID+"/read-all", nil, alice)
	if res.StatusCode != http.StatusOK || decode[ReadAllEnvelope](t, data).Updated != 1 {
		t.Fatalf("read-all failed %d: %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/api/notifications/"+completed.ID, nil, alice)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", res.StatusCode)
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/notifications/user/"+aliceID, nil, alice)
	if list := decode[NotificationListEnvelope](t, data); list.Count != 1 || list.UnreadCount != 0 {
		t.Fatalf("unexpected list after delete: %s", data)
	}
}

func TestReminderSweeperRecordsAndStops(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	aliceID, alice := registerUser(t, srv, "Alice", "alice@example.com")
	today := time.Now().UTC().Format("2006-01-02")
	doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/add", map[string]any{"title": "Pay rent", "dueDate": today}, alice)

	ctx, cancel := context.WithCancel(context.Background())
	sweeper := NewReminderSweeper(srv.Engine, time.Hour, logging.Discard())
	sweeper.Start(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/notifications/user/"+aliceID, nil, alice)
		list := decode[NotificationListEnvelope](t, data)
		if list.Count == 1 && list.Notifications[0].Type == domain.NotificationDueDate {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no due date reminder recorded: %s", data)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	stopped := make(chan struct{})
	go func() {
		sweeper.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
}
