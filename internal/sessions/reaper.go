package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Reaper drops expired sessions on a fixed schedule so idle conversations
// do not pin memory between requests.
type Reaper struct {
	store    *Store
	schedule cron.Schedule
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// NewReaper builds a reaper that runs store.ReapExpired every interval.
func NewReaper(store *Store, interval time.Duration, logger *slog.Logger) (*Reaper, error) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	sched, err := cronParser.Parse(fmt.Sprintf("@every %s", interval))
	if err != nil {
		return nil, fmt.Errorf("parse reap schedule: %w", err)
	}
	if logger == nil {
		logger = slog.Default().With("component", "session-reaper")
	}
	return &Reaper{store: store, schedule: sched, logger: logger}, nil
}

// Start begins the reap loop. Calling Start on a running reaper is a no-op.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()

	// Reap immediately on start, then follow the schedule.
	r.reap()

	timer := time.NewTimer(time.Until(r.schedule.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.reap()
			timer.Reset(time.Until(r.schedule.Next(time.Now())))
		}
	}
}

func (r *Reaper) reap() {
	if n := r.store.ReapExpired(); n > 0 {
		r.logger.Debug("reaped expired sessions", "count", n)
	}
}

// Stop halts the loop and waits for an in-flight reap to finish. Safe to
// call more than once.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}
