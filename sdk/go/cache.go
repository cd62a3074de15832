package taskdecksdk

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TaskCache mirrors the session user's live tasks. Every mutation goes to
// the server and is followed by a full re-fetch; failures record a single
// last-error message and keep the previous list.
type TaskCache struct {
	session *Session
	group   singleflight.Group

	mu      sync.RWMutex
	tasks   []Task
	lastErr string
	loading bool
	// started numbers fetches; applied is the newest one stored.
	started uint64
	applied uint64
}

// NewTaskCache returns a cache bound to s. It is emptied when s logs out.
func NewTaskCache(s *Session) *TaskCache {
	tc := &TaskCache{session: s}
	s.OnLogout(tc.Reset)
	return tc
}

// Tasks returns a copy of the cached list, newest first as served.
func (tc *TaskCache) Tasks() []Task {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	out := make([]Task, len(tc.tasks))
	copy(out, tc.tasks)
	return out
}

// Find looks id up in the cached list without touching the network.
func (tc *TaskCache) Find(id string) (Task, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	for _, t := range tc.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Err is the last failure message, empty after a successful operation.
func (tc *TaskCache) Err() string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.lastErr
}

func (tc *TaskCache) Loading() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.loading
}

// Reset drops the cached list and error. Fetches still in flight are
// discarded.
func (tc *TaskCache) Reset() {
	tc.mu.Lock()
	tc.tasks = nil
	tc.lastErr = ""
	tc.applied = tc.started
	tc.mu.Unlock()
}

// Refresh replaces the list with the server's. Concurrent callers share
// one request.
func (tc *TaskCache) Refresh(ctx context.Context) error {
	return tc.refresh(ctx, false)
}

// refresh with fresh set never joins a fetch that started earlier, so the
// result reflects every mutation made before the call.
func (tc *TaskCache) refresh(ctx context.Context, fresh bool) error {
	if _, err := tc.session.RequireUser(); err != nil {
		return tc.fail(err)
	}
	if fresh {
		tc.group.Forget("tasks")
	}
	_, err, _ := tc.group.Do("tasks", func() (interface{}, error) {
		tc.mu.Lock()
		tc.started++
		seq := tc.started
		tc.loading = true
		tc.mu.Unlock()
		tasks, err := tc.session.Client().ListTasks(ctx)

		tc.mu.Lock()
		defer tc.mu.Unlock()
		if seq == tc.started {
			tc.loading = false
		}
		if err != nil {
			return nil, err
		}
		// An older fetch finishing late must not overwrite a newer list.
		if seq > tc.applied {
			tc.tasks = tasks
			tc.lastErr = ""
			tc.applied = seq
		}
		return nil, nil
	})
	if err != nil {
		return tc.fail(err)
	}
	return nil
}

func (tc *TaskCache) Create(ctx context.Context, in TaskInput) (Task, error) {
	if _, err := tc.session.RequireUser(); err != nil {
		return Task{}, tc.fail(err)
	}
	task, err := tc.session.Client().CreateTask(ctx, in)
	if err != nil {
		return Task{}, tc.fail(err)
	}
	return task, tc.refresh(ctx, true)
}

func (tc *TaskCache) Update(ctx context.Context, id string, update TaskUpdate) (Task, error) {
	if _, err := tc.session.RequireUser(); err != nil {
		return Task{}, tc.fail(err)
	}
	task, err := tc.session.Client().UpdateTask(ctx, id, update)
	if err != nil {
		return Task{}, tc.fail(err)
	}
	return task, tc.refresh(ctx, true)
}

func (tc *TaskCache) Delete(ctx context.Context, id string) error {
	if _, err := tc.session.RequireUser(); err != nil {
		return tc.fail(err)
	}
	if err := tc.session.Client().DeleteTask(ctx, id); err != nil {
		return tc.fail(err)
	}
	return tc.refresh(ctx, true)
}

func (tc *TaskCache) fail(err error) error {
	tc.mu.Lock()
	tc.lastErr = err.Error()
	tc.mu.Unlock()
	return err
}
