package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manav03panchal/timely/internal/config"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
)

// CorrectionFunc pushes noRepeat=true for alarm id to the server.
type CorrectionFunc func(ctx context.Context, id int64) error

// Correction is one queued noRepeat fix.
type Correction struct {
	ID        string    `json:"id"`
	AlarmID   int64     `json:"alarm_id"`
	CreatedAt time.Time `json:"created_at"`
	NextRetry time.Time `json:"next_retry"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// CorrectionQueue sends noRepeat corrections in the background. At most one
// correction per alarm is queued; failures are retried with backoff and then
// dropped. Nothing here ever fails the operation that queued it.
type CorrectionQueue struct {
	mu       sync.Mutex
	pending  map[int64]*Correction
	send     CorrectionFunc
	now      func() time.Time
	observer Observer

	interval    time.Duration
	backoff     []time.Duration
	maxAttempts int

	wake    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	totalQueued  int
	totalSent    int
	totalFailed  int
	totalDropped int
}

// NewCorrectionQueue creates a queue that delivers through send.
func NewCorrectionQueue(send CorrectionFunc) *CorrectionQueue {
	cfg := config.Global.Corrections
	return &CorrectionQueue{
		pending:     make(map[int64]*Correction),
		send:        send,
		now:         time.Now,
		observer:    nopObserver{},
		interval:    cfg.CheckInterval,
		backoff:     cfg.BackoffSchedule,
		maxAttempts: cfg.MaxAttempts,
		wake:        make(chan struct{}, 1),
	}
}

// SetObserver reports delivery outcomes to o.
func (q *CorrectionQueue) SetObserver(o Observer) {
	q.mu.Lock()
	q.observer = o
	q.mu.Unlock()
}

// Start begins processing in the background until Stop or ctx ends.
func (q *CorrectionQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	ctx, q.cancel = context.WithCancel(ctx)
	q.mu.Unlock()

	q.wg.Add(1)
	go q.processLoop(ctx)
}

// Stop halts background processing. Queued corrections are kept.
func (q *CorrectionQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	q.wg.Wait()
}

// Enqueue queues a correction for alarm id, due immediately. It reports
// false when one is already queued.
func (q *CorrectionQueue) Enqueue(id int64) bool {
	q.mu.Lock()
	if _, ok := q.pending[id]; ok {
		q.mu.Unlock()
		return false
	}
	now := q.now()
	q.pending[id] = &Correction{
		ID:        uuid.NewString(),
		AlarmID:   id,
		CreatedAt: now,
		NextRetry: now,
	}
	q.totalQueued++
	size := len(q.pending)
	q.mu.Unlock()

	logging.DebugLog("noRepeat correction queued", logging.KeyAlarmID, id, "queue_size", size)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *CorrectionQueue) processLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.processDue(ctx)
		case <-q.wake:
			q.processDue(ctx)
		}
	}
}

// processDue sends every correction whose retry time has come.
func (q *CorrectionQueue) processDue(ctx context.Context) int {
	now := q.now()
	return q.process(ctx, func(c *Correction) bool { return !c.NextRetry.After(now) })
}

// Drain sends every queued correction once, ignoring backoff, and returns
// how many were attempted.
func (q *CorrectionQueue) Drain(ctx context.Context) int {
	return q.process(ctx, func(*Correction) bool { return true })
}

func (q *CorrectionQueue) process(ctx context.Context, ready func(*Correction) bool) int {
	q.mu.Lock()
	var batch []*Correction
	for id, c := range q.pending {
		if ready(c) {
			batch = append(batch, c)
			delete(q.pending, id)
		}
	}
	q.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].CreatedAt.Before(batch[j].CreatedAt) })
	for _, c := range batch {
		if ctx.Err() != nil {
			q.requeue(c)
			continue
		}
		q.attempt(ctx, c)
	}
	return len(batch)
}

func (q *CorrectionQueue) attempt(ctx context.Context, c *Correction) {
	c.Attempts++
	logger := logging.Component("corrections").With(logging.KeyAlarmID, c.AlarmID, logging.KeyAttempt, c.Attempts)

	err := q.send(ctx, c.AlarmID)
	if err == nil {
		q.mu.Lock()
		q.totalSent++
		obs := q.observer
		q.mu.Unlock()
		obs.ObserveCorrection("sent")
		logger.Info("noRepeat correction applied")
		return
	}
	c.LastError = err.Error()

	// A deleted alarm needs no correction.
	if errors.Is(err, timelyerrors.ErrAlarmNotFound) {
		q.mu.Lock()
		q.totalDropped++
		obs := q.observer
		q.mu.Unlock()
		obs.ObserveCorrection("dropped")
		logger.Debug("alarm gone, dropping correction")
		return
	}

	rerr := timelyerrors.NewRecoverableError("noRepeat correction failed", err, c.Attempts, q.maxAttempts)
	if rerr.Exhausted() {
		q.mu.Lock()
		q.totalFailed++
		obs := q.observer
		q.mu.Unlock()
		obs.ObserveCorrection("failed")
		logger.Warn("giving up on noRepeat correction", logging.KeyError, rerr)
		return
	}

	c.NextRetry = q.now().Add(q.backoffFor(c.Attempts - 1))
	q.requeue(c)
	logger.Debug("noRepeat correction re-queued", "next_retry", c.NextRetry, logging.KeyError, err)
}

// requeue puts c back unless a fresh correction for the alarm was queued
// meanwhile.
func (q *CorrectionQueue) requeue(c *Correction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[c.AlarmID]; !ok {
		q.pending[c.AlarmID] = c
	}
}

func (q *CorrectionQueue) backoffFor(attempt int) time.Duration {
	if len(q.backoff) == 0 {
		return q.interval
	}
	if attempt >= len(q.backoff) {
		return q.backoff[len(q.backoff)-1]
	}
	return q.backoff[attempt]
}

// QueueStats reports queue activity.
type QueueStats struct {
	QueueSize    int `json:"queue_size"`
	TotalQueued  int `json:"total_queued"`
	TotalSent    int `json:"total_sent"`
	TotalFailed  int `json:"total_failed"`
	TotalDropped int `json:"total_dropped"`
}

// Stats returns current queue statistics.
func (q *CorrectionQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		QueueSize:    len(q.pending),
		TotalQueued:  q.totalQueued,
		TotalSent:    q.totalSent,
		TotalFailed:  q.totalFailed,
		TotalDropped: q.totalDropped,
	}
}

// Pending returns the queued corrections ordered by creation.
func (q *CorrectionQueue) Pending() []Correction {
	q.mu.Lock()
	out := make([]Correction, 0, len(q.pending))
	for _, c := range q.pending {
		out = append(out, *c)
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Clear drops every queued correction.
func (q *CorrectionQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = make(map[int64]*Correction)
}
