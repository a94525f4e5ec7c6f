package search

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/models"
)

// DefaultDebounce is the quiet period before a submitted query runs.
const DefaultDebounce = 300 * time.Millisecond

// State is where a search task is in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateSearching  State = "searching"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// Done reports whether the state is final.
func (s State) Done() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// SearchFunc runs one search.
type SearchFunc func(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error)

// Task is a handle on one submitted query.
type Task struct {
	ID    string
	Query models.SearchQuery

	mu        sync.Mutex
	state     State
	timer     *time.Timer
	done      chan struct{}
	response  *models.SearchResponse
	err       error
	createdAt time.Time
}

// State returns the task's current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cancel stops a task that has not started searching. A running search is
// left to finish; Cancel then returns false.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateDebouncing && t.state != StateIdle {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.state = StateCancelled
	close(t.done)
	return true
}

// Done is closed when the task reaches a final state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends. A cancelled task returns
// an error of kind Cancelled.
func (t *Task) Wait(ctx context.Context) (*models.SearchResponse, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return t.Result()
}

// Result returns the outcome of a finished task, or nil, nil while it is pending.
func (t *Task) Result() (*models.SearchResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateCompleted, StateFailed:
		return t.response, t.err
	case StateCancelled:
		if t.err != nil {
			return nil, t.err
		}
		return nil, apperr.New(apperr.KindCancelled, "search", "", nil)
	}
	return nil, nil
}

func (t *Task) run(ctx context.Context, search SearchFunc, logger *zap.Logger) {
	t.mu.Lock()
	if t.state != StateDebouncing {
		t.mu.Unlock()
		return
	}
	t.state = StateSearching
	query := t.Query
	t.mu.Unlock()

	resp, err := search(ctx, &query)

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case err == nil:
		t.state = StateCompleted
		t.response = resp
	case apperr.KindOf(err) == apperr.KindCancelled || ctx.Err() != nil:
		t.state = StateCancelled
		t.err = apperr.New(apperr.KindCancelled, "search", "", err)
	default:
		t.state = StateFailed
		t.response = &models.SearchResponse{Query: query.Query, Status: models.StatusFailed}
		t.err = err
		logger.Warn("search task failed", zap.String("task", t.ID), zap.String("query", query.Query), zap.Error(err))
	}
	close(t.done)
}

// Debouncer delays queries so that only the last of a quick burst runs.
//
// Submitting while a task is still debouncing cancels that task. A task that
// is already searching is never interrupted; it finishes and its result is
// simply superseded.
type Debouncer struct {
	delay    time.Duration
	search   SearchFunc
	logger   *zap.Logger
	maxTasks int

	mu      sync.Mutex
	pending *Task
	tasks   map[string]*Task
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithDebounceLogger sets the debouncer's logger.
func WithDebounceLogger(l *zap.Logger) DebouncerOption {
	return func(d *Debouncer) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMaxTasks bounds how many tasks are remembered for lookup by ID.
func WithMaxTasks(n int) DebouncerOption {
	return func(d *Debouncer) {
		if n > 0 {
			d.maxTasks = n
		}
	}
}

// NewDebouncer creates a debouncer that runs search after delay.
func NewDebouncer(delay time.Duration, search SearchFunc, opts ...DebouncerOption) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	d := &Debouncer{
		delay:    delay,
		search:   search,
		logger:   zap.NewNop(),
		maxTasks: 256,
		tasks:    make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit schedules query to run after the debounce delay under ctx and
// returns its task. A task still debouncing from an earlier Submit is cancelled.
func (d *Debouncer) Submit(ctx context.Context, query models.SearchQuery) *Task {
	task := &Task{
		ID:        uuid.NewString(),
		Query:     query,
		state:     StateDebouncing,
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil && d.pending.Cancel() {
		d.logger.Debug("superseded pending search", zap.String("task", d.pending.ID))
	}
	d.pending = task
	d.remember(task)

	task.mu.Lock()
	task.timer = time.AfterFunc(d.delay, func() { task.run(ctx, d.search, d.logger) })
	task.mu.Unlock()
	return task
}

// Task returns a remembered task by ID.
func (d *Debouncer) Task(id string) (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tasks[id]
	return t, ok
}

// remember stores task, forgetting the oldest finished tasks beyond maxTasks.
func (d *Debouncer) remember(task *Task) {
	d.tasks[task.ID] = task
	for len(d.tasks) > d.maxTasks {
		var oldest *Task
		for _, t := range d.tasks {
			if t.State().Done() && (oldest == nil || t.createdAt.Before(oldest.createdAt)) {
				oldest = t
			}
		}
		if oldest == nil {
			return
		}
		delete(d.tasks, oldest.ID)
	}
}
