package notify

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manav03panchal/timely/internal/config"
	"github.com/manav03panchal/timely/internal/logging"
)

// Delivery is one formatted payload bound for one webhook.
type Delivery struct {
	Webhook     string
	URL         string
	ContentType string
	Body        []byte
}

// QueuedNotification is a webhook delivery waiting to be retried.
type QueuedNotification struct {
	ID          string          `json:"id"`
	WebhookName string          `json:"webhook_name"`
	URL         string          `json:"url"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
	CreatedAt   time.Time       `json:"created_at"`
	NextRetry   time.Time       `json:"next_retry"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
}

// RetryQueue re-sends ring notifications whose delivery failed. A ring is
// only worth announcing for a while, so deliveries older than MaxAge are
// given up.
type RetryQueue struct {
	mu       sync.Mutex
	pending  []*QueuedNotification // ordered by NextRetry
	client   *HTTPClient
	now      func() time.Time
	cfg      config.WebhookConfig
	onResult func(webhook string, err error)
	keep     func(webhook string) bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	stats QueueStats
}

// QueueStats returns statistics about the retry queue.
type QueueStats struct {
	QueueSize   int `json:"queue_size"`
	TotalQueued int `json:"total_queued"`
	TotalSent   int `json:"total_sent"`
	TotalFailed int `json:"total_failed"`
	// TotalDropped counts deliveries abandoned unsent: stale, or their
	// webhook was disabled or removed meanwhile.
	TotalDropped int `json:"total_dropped"`
}

// NewRetryQueue creates a retry queue that delivers with client.
func NewRetryQueue(client *HTTPClient) *RetryQueue {
	return &RetryQueue{
		client: client,
		now:    time.Now,
		cfg:    config.Global.Webhooks,
	}
}

// OnResult registers a callback for every queued delivery outcome.
func (q *RetryQueue) OnResult(fn func(webhook string, err error)) {
	q.mu.Lock()
	q.onResult = fn
	q.mu.Unlock()
}

// Keep registers a check run before each retry; deliveries to webhooks it
// rejects are dropped.
func (q *RetryQueue) Keep(fn func(webhook string) bool) {
	q.mu.Lock()
	q.keep = fn
	q.mu.Unlock()
}

// Start begins processing the queue until Stop or ctx ends.
func (q *RetryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	ctx, q.cancel = context.WithCancel(ctx)

	q.wg.Add(1)
	go q.loop(ctx)
}

// Stop stops the processor. Queued notifications are kept.
func (q *RetryQueue) Stop() {
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

// Enqueue schedules a failed delivery for its first retry.
func (q *RetryQueue) Enqueue(d Delivery, cause error) {
	now := q.now()
	n := &QueuedNotification{
		ID:          uuid.NewString(),
		WebhookName: d.Webhook,
		URL:         d.URL,
		ContentType: d.ContentType,
		Body:        d.Body,
		CreatedAt:   now,
		NextRetry:   now.Add(q.cfg.BackoffFor(0)),
	}
	if cause != nil {
		n.LastError = cause.Error()
	}

	q.mu.Lock()
	q.insert(n)
	q.stats.TotalQueued++
	size := len(q.pending)
	q.mu.Unlock()

	logging.Info("notification queued for retry",
		logging.KeyWebhook, d.Webhook,
		"queue_size", size,
		logging.KeyError, cause)
}

// insert places n by NextRetry. Callers hold mu.
func (q *RetryQueue) insert(n *QueuedNotification) {
	i := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].NextRetry.After(n.NextRetry)
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = n
}

func (q *RetryQueue) loop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.processQueue(ctx)
		}
	}
}

// processQueue handles every delivery that is due and returns how many
// were taken off the queue.
func (q *RetryQueue) processQueue(ctx context.Context) int {
	q.mu.Lock()
	now := q.now()
	due := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].NextRetry.After(now)
	})
	ready := q.pending[:due:due]
	q.pending = append([]*QueuedNotification(nil), q.pending[due:]...)
	keep := q.keep
	q.mu.Unlock()

	for _, n := range ready {
		if q.stale(n, now) || (keep != nil && !keep(n.WebhookName)) {
			q.drop(n, now)
			continue
		}
		q.retry(ctx, n)
	}
	return len(ready)
}

func (q *RetryQueue) stale(n *QueuedNotification, now time.Time) bool {
	return q.cfg.MaxAge > 0 && now.Sub(n.CreatedAt) > q.cfg.MaxAge
}

func (q *RetryQueue) drop(n *QueuedNotification, now time.Time) {
	q.mu.Lock()
	q.stats.TotalDropped++
	q.mu.Unlock()
	logging.Info("queued notification dropped unsent",
		logging.KeyWebhook, n.WebhookName,
		"age", now.Sub(n.CreatedAt).Round(time.Second))
}

func (q *RetryQueue) retry(ctx context.Context, n *QueuedNotification) {
	n.Attempts++
	logger := logging.Component("webhooks").With(logging.KeyWebhook, n.WebhookName, logging.KeyAttempt, n.Attempts)
	logger.Debug("retrying notification")

	result := q.client.Send(ctx, n.URL, n.ContentType, n.Body)

	q.mu.Lock()
	onResult := q.onResult
	q.mu.Unlock()
	if onResult != nil {
		onResult(n.WebhookName, result.Error)
	}

	switch {
	case result.Error == nil:
		q.mu.Lock()
		q.stats.TotalSent++
		q.mu.Unlock()
		logger.Info("queued notification sent", logging.KeyDuration, result.Duration.Milliseconds())

	case n.Attempts >= q.cfg.MaxRetries || !result.Retryable():
		q.mu.Lock()
		q.stats.TotalFailed++
		q.mu.Unlock()
		logger.Warn("notification dropped", logging.KeyError, result.Error)

	default:
		n.LastError = result.Error.Error()
		n.NextRetry = q.now().Add(q.cfg.BackoffFor(n.Attempts))
		q.mu.Lock()
		q.insert(n)
		q.mu.Unlock()
		logger.Debug("notification re-queued", "next_retry", n.NextRetry)
	}
}

// Stats returns current queue statistics.
func (q *RetryQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.QueueSize = len(q.pending)
	return s
}

// Pending returns the number of queued notifications.
func (q *RetryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
