// Package store holds the in-memory alarm list. Every mutation replaces the
// whole list so readers always see a consistent snapshot.
package store

import (
	"context"
	"sync"

	"github.com/manav03panchal/timely/internal/model"
)

// Store is the copy-on-write alarm cache.
type Store struct {
	mu     sync.Mutex
	alarms []model.Alarm
	subs   map[uint64]chan []model.Alarm
	nextID uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{subs: make(map[uint64]chan []model.Alarm)}
}

// Snapshot returns the current list. The caller owns the returned slice.
func (s *Store) Snapshot() []model.Alarm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneList(s.alarms)
}

// Len returns the number of alarms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alarms)
}

// Get returns the alarm with id.
func (s *Store) Get(id int64) (model.Alarm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.alarms, id); i >= 0 {
		return s.alarms[i].Clone(), true
	}
	return model.Alarm{}, false
}

// Upsert appends a, or merges it into the alarm with the same id, and
// returns the stored value. Alarms without an id are not stored.
func (s *Store) Upsert(a model.Alarm) model.Alarm {
	if !a.HasID() {
		return a
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Alarm, len(s.alarms), len(s.alarms)+1)
	copy(next, s.alarms)
	var stored model.Alarm
	if i := indexOf(next, a.ID); i >= 0 {
		stored = model.MergeAlarm(next[i], a)
		next[i] = stored
	} else {
		stored = a.Clone()
		next = append(next, stored)
	}
	s.publish(next)
	return stored.Clone()
}

// Update applies fn to the alarm with id and stores the result.
func (s *Store) Update(id int64, fn func(*model.Alarm)) (model.Alarm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.alarms, id)
	if i < 0 {
		return model.Alarm{}, false
	}
	next := make([]model.Alarm, len(s.alarms))
	copy(next, s.alarms)
	a := next[i].Clone()
	fn(&a)
	a.ID = id
	next[i] = a
	s.publish(next)
	return a.Clone(), true
}

// Replace swaps in a whole new list.
func (s *Store) Replace(alarms []model.Alarm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(cloneList(alarms))
}

// Remove drops the alarm with id, reporting whether it was present.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.alarms, id)
	if i < 0 {
		return false
	}
	next := make([]model.Alarm, 0, len(s.alarms)-1)
	next = append(next, s.alarms[:i]...)
	next = append(next, s.alarms[i+1:]...)
	s.publish(next)
	return true
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish([]model.Alarm{})
}

// Subscribe returns a channel that receives the current list immediately and
// then every replacement. A slow reader only sees the latest list. The
// channel is closed when ctx ends.
func (s *Store) Subscribe(ctx context.Context) <-chan []model.Alarm {
	ch := make(chan []model.Alarm, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- cloneList(s.alarms)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// publish installs next and notifies subscribers. Callers hold s.mu.
func (s *Store) publish(next []model.Alarm) {
	s.alarms = next
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- cloneList(next)
	}
}

func indexOf(alarms []model.Alarm, id int64) int {
	for i := range alarms {
		if alarms[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneList(alarms []model.Alarm) []model.Alarm {
	out := make([]model.Alarm, len(alarms))
	for i := range alarms {
		out[i] = alarms[i].Clone()
	}
	return out
}
