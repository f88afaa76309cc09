package storage

import (
	"time"

	"github.com/manav03panchal/timely/internal/model"
)

// WebhookRepo stores the ring notification destinations.
type WebhookRepo struct {
	db *DB
}

// NewWebhookRepo creates a new webhook repository.
func NewWebhookRepo(db *DB) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// Create stores a new webhook.
func (r *WebhookRepo) Create(webhook *model.Webhook) error {
	if webhook.Key == "" {
		webhook.Key = model.GenerateWebhookKey(webhook.Name)
	}
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = time.Now()
	}
	return r.db.Set(webhook)
}

// Get retrieves a webhook by name.
func (r *WebhookRepo) Get(name string) (*model.Webhook, error) {
	webhook := &model.Webhook{}
	if err := r.db.Get(model.GenerateWebhookKey(name), webhook); err != nil {
		return nil, err
	}
	return webhook, nil
}

// List retrieves all webhooks.
func (r *WebhookRepo) List() ([]*model.Webhook, error) {
	return GetAllByPrefix(r.db, model.PrefixWebhook+":", func() *model.Webhook {
		return &model.Webhook{}
	})
}

// ListEnabled retrieves all enabled webhooks.
func (r *WebhookRepo) ListEnabled() ([]*model.Webhook, error) {
	return r.filter(func(wh *model.Webhook) bool { return wh.Enabled })
}

// ListFor retrieves the enabled webhooks subscribed to notifications of
// type t.
func (r *WebhookRepo) ListFor(t model.NotificationType) ([]*model.Webhook, error) {
	return r.filter(func(wh *model.Webhook) bool { return wh.Enabled && wh.Receives(t) })
}

func (r *WebhookRepo) filter(keep func(*model.Webhook) bool) ([]*model.Webhook, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	var out []*model.Webhook
	for _, wh := range all {
		if keep(wh) {
			out = append(out, wh)
		}
	}
	return out, nil
}

// Delete removes a webhook by name.
func (r *WebhookRepo) Delete(name string) error {
	return r.db.Delete(model.GenerateWebhookKey(name))
}

// modify applies fn to the stored webhook inside one transaction.
func (r *WebhookRepo) modify(name string, fn func(*model.Webhook)) error {
	webhook := &model.Webhook{}
	return r.db.Modify(model.GenerateWebhookKey(name), webhook, func() error {
		fn(webhook)
		return nil
	})
}

// SetEnabled toggles a webhook. Enabling clears the failure streak.
func (r *WebhookRepo) SetEnabled(name string, enabled bool) error {
	return r.modify(name, func(wh *model.Webhook) {
		wh.Enabled = enabled
		if enabled {
			wh.Failures = 0
		}
	})
}

// RecordDelivery stores the outcome of a delivery attempt. Consecutive
// failures are counted; a success resets the count. Retries from the
// queue and fresh rings may record concurrently.
func (r *WebhookRepo) RecordDelivery(name string, lastErr error) error {
	now := time.Now()
	return r.modify(name, func(wh *model.Webhook) {
		wh.LastUsed = now
		if lastErr != nil {
			wh.LastError = lastErr.Error()
			wh.Failures++
			return
		}
		wh.LastError = ""
		wh.Failures = 0
	})
}

// Exists checks if a webhook with the given name exists.
func (r *WebhookRepo) Exists(name string) (bool, error) {
	return r.db.Exists(model.GenerateWebhookKey(name))
}
