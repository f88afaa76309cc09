package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/storage"
)

// Dispatcher sends notifications to all enabled webhooks.
type Dispatcher struct {
	webhookRepo *storage.WebhookRepo
	httpClient  *HTTPClient
	queue       *RetryQueue
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(webhookRepo *storage.WebhookRepo) *Dispatcher {
	return &Dispatcher{
		webhookRepo: webhookRepo,
		httpClient:  NewHTTPClient(),
	}
}

// SetHTTPClient replaces the delivery client.
func (d *Dispatcher) SetHTTPClient(c *HTTPClient) {
	d.httpClient = c
}

// SetRetryQueue makes retryable failures go to q instead of being dropped.
// Queued outcomes are recorded on the webhook, and retries stop once the
// webhook is disabled or removed.
func (d *Dispatcher) SetRetryQueue(q *RetryQueue) {
	d.queue = q
	q.OnResult(d.updateWebhookStatus)
	q.Keep(d.stillEnabled)
}

func (d *Dispatcher) stillEnabled(name string) bool {
	wh, err := d.webhookRepo.Get(name)
	return err == nil && wh.Enabled
}

// DispatchResult contains the result of dispatching to a single webhook.
type DispatchResult struct {
	WebhookName string
	Success     bool
	Queued      bool
	StatusCode  int
	Duration    time.Duration
	Error       error
}

// SendNotification sends n concurrently to the enabled webhooks subscribed
// to its type.
func (d *Dispatcher) SendNotification(ctx context.Context, n *model.Notification) []DispatchResult {
	webhooks, err := d.webhookRepo.ListFor(n.Type)
	if err != nil {
		return []DispatchResult{{
			WebhookName: "all",
			Error:       fmt.Errorf("failed to list webhooks: %w", err),
		}}
	}
	if len(webhooks) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	results := make([]DispatchResult, len(webhooks))
	for i, webhook := range webhooks {
		wg.Add(1)
		go func(idx int, wh *model.Webhook) {
			defer wg.Done()
			results[idx] = d.sendToWebhook(ctx, n, wh)
		}(i, webhook)
	}
	wg.Wait()
	return results
}

// NotifyRing fans out a ring notification for ev and logs failures.
func (d *Dispatcher) NotifyRing(ctx context.Context, ev model.NativeEvent) {
	for _, r := range d.SendNotification(ctx, model.NewRingNotification(ev)) {
		if r.Error != nil && !r.Queued {
			logging.Warn("ring notification failed",
				logging.KeyWebhook, r.WebhookName,
				logging.KeyNativeID, ev.AlarmID,
				logging.KeyError, r.Error)
		}
	}
}

func (d *Dispatcher) formatterFor(webhook *model.Webhook) Formatter {
	if webhook.Type == model.WebhookTypeGeneric && webhook.Template != "" {
		return NewGenericFormatter(webhook.Template)
	}
	return GetFormatter(webhook.Type)
}

func (d *Dispatcher) sendToWebhook(ctx context.Context, n *model.Notification, webhook *model.Webhook) DispatchResult {
	result := DispatchResult{WebhookName: webhook.Name}

	formatter := d.formatterFor(webhook)
	payload, err := formatter.Format(n)
	if err != nil {
		result.Error = fmt.Errorf("failed to format notification: %w", err)
		d.updateWebhookStatus(webhook.Name, result.Error)
		return result
	}

	sent := d.httpClient.Send(ctx, webhook.URL, formatter.ContentType(), payload)
	result.StatusCode = sent.StatusCode
	result.Duration = sent.Duration
	result.Error = sent.Error
	result.Success = sent.Error == nil

	if d.queue != nil && sent.Retryable() && n.Type != model.NotifyTest {
		d.queue.Enqueue(Delivery{
			Webhook:     webhook.Name,
			URL:         webhook.URL,
			ContentType: formatter.ContentType(),
			Body:        payload,
		}, sent.Error)
		result.Queued = true
	}

	d.updateWebhookStatus(webhook.Name, sent.Error)
	return result
}

// updateWebhookStatus records the last delivery on the webhook. Failures to
// record are ignored.
func (d *Dispatcher) updateWebhookStatus(name string, err error) {
	_ = d.webhookRepo.RecordDelivery(name, err)
}

// SendToSingle sends a notification to a single webhook by name.
func (d *Dispatcher) SendToSingle(ctx context.Context, n *model.Notification, webhookName string) DispatchResult {
	webhook, err := d.webhookRepo.Get(webhookName)
	if err != nil {
		return DispatchResult{
			WebhookName: webhookName,
			Error:       fmt.Errorf("webhook not found: %w", err),
		}
	}
	return d.sendToWebhook(ctx, n, webhook)
}

// TestWebhook sends a test notification to a specific webhook.
func (d *Dispatcher) TestWebhook(ctx context.Context, webhookName string) DispatchResult {
	n := model.NewNotification(
		model.NotifyTest,
		"Timely Test",
		"This is a test notification from timely. If you see this, your webhook is configured correctly!",
	).WithField("Webhook", webhookName).WithField("Time", time.Now().Format("15:04"))

	return d.SendToSingle(ctx, n, webhookName)
}

// CountEnabledWebhooks returns the number of enabled webhooks.
func (d *Dispatcher) CountEnabledWebhooks() int {
	webhooks, err := d.webhookRepo.ListEnabled()
	if err != nil {
		return 0
	}
	return len(webhooks)
}
