package reconcile

import "github.com/manav03panchal/timely/internal/model"

// MarkPending flags the stored alarm id as pending while a local change is
// in flight and returns the status it had before.
func (e *Engine) MarkPending(id int64) (model.SyncStatus, bool) {
	var prev model.SyncStatus
	_, ok := e.store.Update(id, func(a *model.Alarm) {
		prev = a.SyncStatus
		a.SyncStatus = model.SyncPending
	})
	return prev, ok
}

// restore puts back the status saved by MarkPending when the change it
// covered did not reach the server. A status already resolved by a
// concurrent reconcile is left alone.
func (e *Engine) restore(id int64, prev model.SyncStatus) {
	e.store.Update(id, func(a *model.Alarm) {
		if a.SyncStatus == model.SyncPending {
			a.SyncStatus = prev
		}
	})
}

// StatusCounts tallies alarms by sync status.
type StatusCounts struct {
	Synced   int `json:"synced"`
	Pending  int `json:"pending"`
	Conflict int `json:"conflict"`
	Unknown  int `json:"unknown"`
}

// Total returns the number of alarms counted.
func (c StatusCounts) Total() int {
	return c.Synced + c.Pending + c.Conflict + c.Unknown
}

// CountStatuses tallies alarms by sync status.
func CountStatuses(alarms []model.Alarm) StatusCounts {
	var c StatusCounts
	for _, a := range alarms {
		switch a.SyncStatus {
		case model.SyncSynced:
			c.Synced++
		case model.SyncPending:
			c.Pending++
		case model.SyncConflict:
			c.Conflict++
		default:
			c.Unknown++
		}
	}
	return c
}

// Conflicts returns the alarms whose native schedule failed.
func Conflicts(alarms []model.Alarm) []model.Alarm {
	var out []model.Alarm
	for _, a := range alarms {
		if a.SyncStatus == model.SyncConflict {
			out = append(out, a)
		}
	}
	return out
}
