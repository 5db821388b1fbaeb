// Package orchestrator runs batches of viewing sessions with a hard ceiling on how many
// browsers are open at once.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/browserbase-fleet/internal/ratelimit"
	"github.com/shehryarbajwa/browserbase-fleet/internal/session"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

var (
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
	ErrBusy            = errors.New("a batch is already running")
	ErrNotStarted      = errors.New("no batch has been submitted")
)

// SessionRunner executes a single session and always reports an outcome
type SessionRunner interface {
	Run(ctx context.Context, cfg models.SessionConfig, hooks session.Hooks) models.SessionOutcome
}

// Recorder receives the report of every drained batch
type Recorder interface {
	Record(ctx context.Context, report models.BatchReport) error
}

// ConfigStore persists batches
type ConfigStore interface {
	Save(batch models.Batch) error
	Load() (models.Batch, error)
}

// InFlightSession is a running session as seen from outside the orchestrator
type InFlightSession struct {
	Name      string            `json:"name"`
	Kind      models.DriverKind `json:"driverKind"`
	StartedAt time.Time         `json:"startedAt"`
	Endpoint  string            `json:"-"`
}

// Progress counts sessions of the current batch
type Progress struct {
	Total      int `json:"total"`
	Dispatched int `json:"dispatched"`
	Finished   int `json:"finished"`
}

type Option func(*Orchestrator)

// WithLaunchLimiter paces session starts
func WithLaunchLimiter(l *ratelimit.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithRecorder stores each batch report once the batch drains
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// Orchestrator owns the worker pool, the in-flight registry, and the batch lifecycle.
// One Orchestrator runs one batch at a time and may be reused for the next.
type Orchestrator struct {
	runner   SessionRunner
	limiter  *ratelimit.Limiter
	recorder Recorder

	mu         sync.Mutex
	running    bool
	stopped    bool
	batch      models.Batch
	capacity   int
	runID      string
	startedAt  time.Time
	endedAt    time.Time
	outcomes   []*models.SessionOutcome
	inFlight   map[int]*session.Lease
	dispatched int
	finished   int
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates an orchestrator around runner
func New(runner SessionRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:   runner,
		inFlight: make(map[int]*session.Lease),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit starts executing batch with at most capacity sessions open at a time. It returns
// once dispatching has begun; use AwaitCompletion to collect the outcomes.
func (o *Orchestrator) Submit(ctx context.Context, batch models.Batch, capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("%w (got %d)", ErrInvalidCapacity, capacity)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return ErrBusy
	}

	o.batch = append(models.Batch(nil), batch...)
	o.capacity = capacity
	o.runID = uuid.New().String()
	o.startedAt = time.Now()
	o.endedAt = time.Time{}
	o.outcomes = make([]*models.SessionOutcome, len(batch))
	o.inFlight = make(map[int]*session.Lease)
	o.dispatched = 0
	o.finished = 0
	o.stopped = false
	o.done = make(chan struct{})

	if len(batch) == 0 {
		log.Printf("⚠️ Batch %s is empty, nothing to run", o.runID[:8])
		o.endedAt = o.startedAt
		close(o.done)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true

	log.Printf("🚀 Batch %s: %d sessions, capacity %d", o.runID[:8], len(batch), capacity)

	go o.dispatch(runCtx, o.batch, capacity, o.done)

	return nil
}

// dispatch hands configs to runners in submission order. The semaphore queues waiters
// FIFO, so a freed slot always goes to the oldest undispatched config.
func (o *Orchestrator) dispatch(ctx context.Context, batch models.Batch, capacity int, done chan struct{}) {
	sem := semaphore.NewWeighted(int64(capacity))
	var wg sync.WaitGroup

	for i, cfg := range batch {
		if err := o.limiter.Wait(ctx); err != nil {
			o.skipFrom(i)
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			o.skipFrom(i)
			break
		}
		// Acquire may succeed on an already cancelled context
		if ctx.Err() != nil {
			sem.Release(1)
			o.skipFrom(i)
			break
		}

		o.mu.Lock()
		o.dispatched++
		o.mu.Unlock()

		wg.Add(1)
		go func(i int, cfg models.SessionConfig) {
			defer wg.Done()
			defer sem.Release(1)

			out := o.runOne(ctx, i, cfg)
			o.record(i, out)
		}(i, cfg)
	}

	wg.Wait()
	o.finish(done)
}

// runOne shields the batch from a runner that panics instead of returning an outcome
func (o *Orchestrator) runOne(ctx context.Context, i int, cfg models.SessionConfig) (out models.SessionOutcome) {
	started := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.Printf("❌ %s: runner fault: %v", cfg.Name, p)
			if lease := o.untrack(i); lease != nil {
				lease.Release()
			}
			out = models.SessionOutcome{
				Name:      cfg.Name,
				Status:    models.OutcomeDriverError,
				Error:     fmt.Sprintf("runner fault: %v", p),
				StartedAt: started,
				EndedAt:   time.Now(),
			}
		}
	}()

	return o.runner.Run(ctx, cfg, session.Hooks{
		OnOpen:  func(l *session.Lease) { o.track(i, l) },
		OnClose: func(l *session.Lease) { o.untrack(i) },
	})
}

func (o *Orchestrator) track(i int, l *session.Lease) {
	o.mu.Lock()
	stopped := o.stopped
	if !stopped {
		o.inFlight[i] = l
	}
	o.mu.Unlock()

	if stopped {
		l.Release()
	}
}

func (o *Orchestrator) untrack(i int) *session.Lease {
	o.mu.Lock()
	defer o.mu.Unlock()

	l := o.inFlight[i]
	delete(o.inFlight, i)
	return l
}

func (o *Orchestrator) record(i int, out models.SessionOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.outcomes[i] != nil {
		log.Printf("⚠️ %s: outcome already recorded, ignoring %s", out.Name, out.Status)
		return
	}
	o.outcomes[i] = &out
	o.finished++
}

// skipFrom records every config from index i on as cancelled without starting it
func (o *Orchestrator) skipFrom(i int) {
	now := time.Now()

	o.mu.Lock()
	defer o.mu.Unlock()

	skipped := 0
	for j := i; j < len(o.batch); j++ {
		if o.outcomes[j] != nil {
			continue
		}
		o.outcomes[j] = &models.SessionOutcome{
			Name:    o.batch[j].Name,
			Status:  models.OutcomeCancelled,
			Error:   "not started: batch stopped",
			EndedAt: now,
		}
		o.finished++
		skipped++
	}
	if skipped > 0 {
		log.Printf("⏹️ Batch %s: %d sessions never started", o.runID[:8], skipped)
	}
}

func (o *Orchestrator) finish(done chan struct{}) {
	o.mu.Lock()
	o.running = false
	o.endedAt = time.Now()
	if o.cancel != nil {
		o.cancel()
	}
	report := o.reportLocked()
	o.mu.Unlock()

	counts := report.Counts()
	log.Printf("🎉 Batch %s finished: %d completed, %d auth failed, %d driver errors, %d cancelled",
		report.RunID[:8], counts[models.OutcomeCompleted], counts[models.OutcomeAuthFailed],
		counts[models.OutcomeDriverError], counts[models.OutcomeCancelled])

	if o.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := o.recorder.Record(ctx, report); err != nil {
			log.Printf("⚠️ Failed to record batch %s: %v", report.RunID[:8], err)
		}
		cancel()
	}

	close(done)
}

// AwaitCompletion blocks until every session of the current batch has an outcome and
// returns them in submission order.
func (o *Orchestrator) AwaitCompletion(ctx context.Context) ([]models.SessionOutcome, error) {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()

	if done == nil {
		return nil, ErrNotStarted
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return o.Outcomes(), nil
}

// RequestStop cancels the running batch: undispatched sessions never start and in-flight
// drivers are torn down. Calling it again, or after the batch drained, does nothing.
func (o *Orchestrator) RequestStop() {
	o.mu.Lock()
	if !o.running || o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	cancel := o.cancel
	leases := make([]*session.Lease, 0, len(o.inFlight))
	for _, l := range o.inFlight {
		leases = append(leases, l)
	}
	runID := o.runID
	o.mu.Unlock()

	log.Printf("🛑 Batch %s: stop requested, closing %d open sessions", runID[:8], len(leases))

	cancel()
	for _, l := range leases {
		go l.Release()
	}
}

// Running reports whether a batch is executing
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Outcomes returns the outcomes recorded so far in submission order
func (o *Orchestrator) Outcomes() []models.SessionOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomesLocked()
}

func (o *Orchestrator) outcomesLocked() []models.SessionOutcome {
	out := make([]models.SessionOutcome, 0, len(o.outcomes))
	for _, oc := range o.outcomes {
		if oc != nil {
			out = append(out, *oc)
		}
	}
	return out
}

// Report returns the current batch report
func (o *Orchestrator) Report() models.BatchReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reportLocked()
}

func (o *Orchestrator) reportLocked() models.BatchReport {
	return models.BatchReport{
		RunID:     o.runID,
		Capacity:  o.capacity,
		StartedAt: o.startedAt,
		EndedAt:   o.endedAt,
		Outcomes:  o.outcomesLocked(),
	}
}

// Progress returns counters for the current batch
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Progress{
		Total:      len(o.batch),
		Dispatched: o.dispatched,
		Finished:   o.finished,
	}
}

// InFlight lists open sessions in submission order
func (o *Orchestrator) InFlight() []InFlightSession {
	o.mu.Lock()
	defer o.mu.Unlock()

	idx := make([]int, 0, len(o.inFlight))
	for i := range o.inFlight {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	sessions := make([]InFlightSession, 0, len(idx))
	for _, i := range idx {
		l := o.inFlight[i]
		sessions = append(sessions, InFlightSession{
			Name:      l.Name,
			Kind:      l.Kind,
			StartedAt: l.StartedAt,
			Endpoint:  l.Endpoint(),
		})
	}
	return sessions
}

// Lookup finds an in-flight session by name
func (o *Orchestrator) Lookup(name string) (InFlightSession, bool) {
	for _, s := range o.InFlight() {
		if s.Name == name {
			return s, true
		}
	}
	return InFlightSession{}, false
}

// Save persists the most recently submitted batch
func (o *Orchestrator) Save(store ConfigStore) error {
	o.mu.Lock()
	batch := append(models.Batch(nil), o.batch...)
	o.mu.Unlock()

	return store.Save(batch)
}

// Load reads a batch from store
func (o *Orchestrator) Load(store ConfigStore) (models.Batch, error) {
	return store.Load()
}
