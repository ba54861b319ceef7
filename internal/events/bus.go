// Package events implements the synchronous change-notification bus.
//
// Delivery model: events are delivered in listener registration order,
// inside the same call that performed the mutation. A mutation is
// complete for its caller only after every listener has run. Listener
// panics are recovered and logged, never propagated to the mutation
// caller or to other listeners.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of change an event describes.
type Type string

const (
	TypeCreate     Type = "create"
	TypeUpdate     Type = "update"
	TypeDelete     Type = "delete"
	TypeBulkCreate Type = "bulk_create"
	TypeBulkUpdate Type = "bulk_update"
	TypeBulkDelete Type = "bulk_delete"
)

// Table names a logical collection.
type Table string

const (
	TableNotes       Table = "notes"
	TableFolders     Table = "folders"
	TableRecentNotes Table = "recent_notes"
)

// Source tags where a change originated. The embedded provider only
// produces local events; remote and sync are reserved for a networked
// provider.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceSync   Source = "sync"
)

// Event describes one completed mutation. Data holds the post-mutation
// state (a single record, or a slice for bulk variants); Previous holds
// the pre-mutation snapshot for updates.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Table       Table     `json:"table"`
	Data        any       `json:"data,omitempty"`
	Previous    any       `json:"previous,omitempty"`
	AffectedIDs []string  `json:"affected_ids"`
	Timestamp   time.Time `json:"timestamp"`
	Source      Source    `json:"source"`
	UserID      string    `json:"user_id,omitempty"`
}

// Listener receives change events. Bodies must be synchronous; a
// listener wanting async handling fans out itself.
type Listener func(Event)

type subscription struct {
	id       uint64
	listener Listener
	tables   map[Table]struct{}
	types    map[Type]struct{}
	userID   string
}

func (s *subscription) matches(e Event) bool {
	if s.tables != nil {
		if _, ok := s.tables[e.Table]; !ok {
			return false
		}
	}
	if s.types != nil {
		if _, ok := s.types[e.Type]; !ok {
			return false
		}
	}
	if s.userID != "" && s.userID != e.UserID {
		return false
	}
	return true
}

// SubscribeOption narrows which events a listener receives.
type SubscribeOption func(*subscription)

// ForTables restricts delivery to the given tables.
func ForTables(tables ...Table) SubscribeOption {
	return func(s *subscription) {
		s.tables = make(map[Table]struct{}, len(tables))
		for _, t := range tables {
			s.tables[t] = struct{}{}
		}
	}
}

// ForTypes restricts delivery to the given event types.
func ForTypes(types ...Type) SubscribeOption {
	return func(s *subscription) {
		s.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
}

// ForUser restricts delivery to events owned by one user.
func ForUser(userID string) SubscribeOption {
	return func(s *subscription) { s.userID = userID }
}

// Bus fans completed mutations out to registered listeners.
type Bus struct {
	log *slog.Logger

	mu     sync.Mutex
	subs   []*subscription
	nextID uint64
}

// NewBus creates a bus. A nil logger falls back to slog.Default.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing is idempotent and does not disturb a delivery already
// in flight to other listeners.
func (b *Bus) Subscribe(l Listener, opts ...SubscribeOption) func() {
	sub := &subscription{listener: l}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to every matching listener, in
// registration order, before returning. Missing event ids and
// timestamps are filled in.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Source == "" {
		e.Source = SourceLocal
	}

	b.mu.Lock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if s.matches(e) {
			b.deliver(s, e)
		}
	}
}

// deliver isolates one listener invocation so a panicking listener
// cannot break the mutation path or starve other listeners.
func (b *Bus) deliver(s *subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("change listener panicked",
				slog.Any("panic", r),
				slog.String("event_id", e.ID),
				slog.String("table", string(e.Table)),
				slog.String("type", string(e.Type)))
		}
	}()
	s.listener(e)
}

// Clear drops every registered listener. Used when the owning provider
// shuts down.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
