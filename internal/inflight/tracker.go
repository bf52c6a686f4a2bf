// Package inflight tracks scheduled build tasks until a worker reports on
// them.
//
// The monitor feeds the tracker from the bus: crater.task.scheduled starts
// tracking a task and any of completed, failed or exception finishes it. A
// background reaper marks tasks that pass their deadline as lost so they
// can be reported instead of silently never producing a result.
package inflight

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/crater/internal/model"
)

// ReasonDeadlineExceeded is the exception reason announced for lost tasks.
const ReasonDeadlineExceeded = "deadline exceeded"

// Entry is a snapshot of one tracked task.
type Entry struct {
	TaskID    string    `json:"task_id"`
	Toolchain string    `json:"toolchain"`
	CrateName string    `json:"crate_name"`
	CrateVers string    `json:"crate_vers"`
	Scheduled time.Time `json:"scheduled"`
	Deadline  time.Time `json:"deadline"`
	AgeSecs   float64   `json:"age_secs"`
	Lost      bool      `json:"lost,omitempty"`
	LostAt    time.Time `json:"lost_at,omitempty"`
}

// ReaperConfig configures the background deadline reaper.
type ReaperConfig struct {
	// SweepInterval is how often the reaper scans for overdue tasks.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// EvictAfter is how long a lost task stays visible before it is
	// dropped. Default: 6 hours.
	EvictAfter time.Duration

	// OnLost is called for each task newly marked as lost, outside the lock.
	OnLost func(Entry)
}

// Tracker holds the tasks that have been scheduled but not finished.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*taskState
	now   func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type taskState struct {
	task      model.BuildTask
	scheduled time.Time
	lost      bool
	lostAt    time.Time
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		tasks: make(map[string]*taskState),
		now:   time.Now,
	}
}

// Track starts tracking a scheduled task. Tracking the same task again
// refreshes it.
func (t *Tracker) Track(task *model.BuildTask) {
	if task == nil || task.TaskID == "" {
		return
	}
	scheduled := task.Created
	if scheduled.IsZero() {
		scheduled = t.now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[task.TaskID] = &taskState{task: *task, scheduled: scheduled}
}

// Finish stops tracking a task. It reports whether the task was tracked.
func (t *Tracker) Finish(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[taskID]
	delete(t.tasks, taskID)
	return ok
}

// Len returns the number of tracked tasks, lost ones included.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// Snapshot returns every tracked task ordered by deadline, earliest first.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.tasks))
	for _, st := range t.tasks {
		entries = append(entries, st.entry(now))
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Deadline.Equal(entries[j].Deadline) {
			return entries[i].Deadline.Before(entries[j].Deadline)
		}
		return entries[i].TaskID < entries[j].TaskID
	})
	return entries
}

func (st *taskState) entry(now time.Time) Entry {
	return Entry{
		TaskID:    st.task.TaskID,
		Toolchain: st.task.Toolchain,
		CrateName: st.task.CrateName,
		CrateVers: st.task.CrateVers,
		Scheduled: st.scheduled,
		Deadline:  st.task.Deadline,
		AgeSecs:   now.Sub(st.scheduled).Seconds(),
		Lost:      st.lost,
		LostAt:    st.lostAt,
	}
}

// StartReaper launches a background goroutine that periodically marks
// overdue tasks as lost. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 6 * time.Hour
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("inflight: reaper started", "sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

// sweep marks tasks past their deadline as lost and evicts tasks that have
// been lost for longer than cfg.EvictAfter. Tasks without a deadline are
// never reaped.
func (t *Tracker) sweep(cfg *ReaperConfig) []Entry {
	now := t.now()
	var newlyLost []Entry

	t.mu.Lock()
	for id, st := range t.tasks {
		if st.lost {
			if now.Sub(st.lostAt) > cfg.EvictAfter {
				delete(t.tasks, id)
			}
			continue
		}
		if !st.task.Deadline.IsZero() && now.After(st.task.Deadline) {
			st.lost = true
			st.lostAt = now
			newlyLost = append(newlyLost, st.entry(now))
		}
	}
	t.mu.Unlock()

	for _, e := range newlyLost {
		slog.Warn("inflight: task passed its deadline",
			"task_id", e.TaskID,
			"toolchain", e.Toolchain,
			"crate", e.CrateName,
			"vers", e.CrateVers)
		if cfg.OnLost != nil {
			cfg.OnLost(e)
		}
	}
	return newlyLost
}
