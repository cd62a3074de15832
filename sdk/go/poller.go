package taskdecksdk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultPollInterval = 30 * time.Second

// Snapshot is the latest notification listing seen by a Poller.
type Snapshot struct {
	Notifications []Notification
	Unread        int
	FetchedAt     time.Time
}

// Poller re-fetches the session user's notifications on a fixed interval.
// A fetch never overlaps another; callers arriving mid-fetch share its
// result. There is no backoff.
type Poller struct {
	session  *Session
	interval time.Duration
	// OnChange, if set, receives every successful snapshot.
	OnChange func(Snapshot)

	group singleflight.Group

	mu      sync.RWMutex
	snap    Snapshot
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
	started uint64
	applied uint64
}

// NewPoller returns a poller for s. Its snapshot is cleared when s logs out.
func NewPoller(s *Session, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{session: s, interval: interval}
	s.OnLogout(p.Reset)
	return p
}

// Reset clears the snapshot and error and discards fetches in flight.
func (p *Poller) Reset() {
	p.mu.Lock()
	p.snap = Snapshot{}
	p.lastErr = nil
	p.applied = p.started
	p.mu.Unlock()
}

// Start fetches once and then every interval until ctx ends or Stop is
// called. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		_ = p.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh fetches now, or joins the fetch already in flight.
func (p *Poller) Refresh(ctx context.Context) error {
	return p.refresh(ctx, false)
}

type pollResult struct {
	snap Snapshot
	seq  uint64
}

// refresh with fresh set starts a new fetch instead of joining an older one.
func (p *Poller) refresh(ctx context.Context, fresh bool) error {
	user, err := p.session.RequireUser()
	if err != nil {
		return p.record(err)
	}
	if fresh {
		p.group.Forget("notifications")
	}
	v, err, _ := p.group.Do("notifications", func() (interface{}, error) {
		p.mu.Lock()
		p.started++
		seq := p.started
		p.mu.Unlock()
		list, err := p.session.Client().ListNotifications(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return pollResult{
			snap: Snapshot{Notifications: list.Notifications, Unread: list.UnreadCount, FetchedAt: time.Now()},
			seq:  seq,
		}, nil
	})
	if err != nil {
		return p.record(err)
	}
	res := v.(pollResult)
	p.mu.Lock()
	if res.seq <= p.applied {
		p.mu.Unlock()
		return nil
	}
	p.snap = res.snap
	p.applied = res.seq
	p.lastErr = nil
	onChange := p.OnChange
	p.mu.Unlock()
	if onChange != nil {
		onChange(res.snap)
	}
	return nil
}

func (p *Poller) record(err error) error {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := p.snap
	snap.Notifications = append([]Notification(nil), p.snap.Notifications...)
	return snap
}

func (p *Poller) Unread() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.Unread
}

// Err is the error from the most recent fetch, nil after a success.
func (p *Poller) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Poller) MarkRead(ctx context.Context, id string) error {
	if _, err := p.session.Client().MarkNotificationRead(ctx, id); err != nil {
		return p.record(err)
	}
	return p.refresh(ctx, true)
}

func (p *Poller) MarkAllRead(ctx context.Context) error {
	user, err := p.session.RequireUser()
	if err != nil {
		return p.record(err)
	}
	if _, err := p.session.Client().MarkAllNotificationsRead(ctx, user.ID); err != nil {
		return p.record(err)
	}
	return p.refresh(ctx, true)
}

func (p *Poller) Delete(ctx context.Context, id string) error {
	if err := p.session.Client().DeleteNotification(ctx, id); err != nil {
		return p.record(err)
	}
	return p.refresh(ctx, true)
}

// DueToday returns the reminder line for tasks due on now's calendar day
// that are not done, or "" when there are none.
func DueToday(tasks []Task, now time.Time) string {
	y, m, d := now.Date()
	var due []Task
	for _, t := range tasks {
		if t.DueDate == nil || t.Status == "done" || t.IsDeleted {
			continue
		}
		ty, tm, td := t.DueDate.In(now.Location()).Date()
		if ty == y && tm == m && td == d {
			due = append(due, t)
		}
	}
	switch len(due) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%q is due today!", due[0].Title)
	default:
		return fmt.Sprintf("You have %d tasks due today!", len(due))
	}
}
