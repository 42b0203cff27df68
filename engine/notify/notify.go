// Package notify sequences progress announcements so that at most one is
// presented at a time, in arrival order.
package notify

import (
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nathoo/questline/engine/events"
)

// Notification is one queued announcement.
type Notification struct {
	ID      string
	Kind    events.Kind
	Event   events.Event
	Present func(Notification)
}

// Sequencer is a FIFO of announcements with a single active slot.
type Sequencer struct {
	bus     *events.Bus
	logger  *slog.Logger
	queue   []Notification
	active  *Notification
	pumping bool
}

// New creates a sequencer. Notifications enqueued without a Present
// callback are announced on bus as NotificationPresented.
func New(bus *events.Bus, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sequencer{bus: bus, logger: logger}
}

// Enqueue appends an announcement for ev and presents it right away when
// nothing else is active. It returns the notification id.
func (s *Sequencer) Enqueue(ev events.Event, present func(Notification)) string {
	n := Notification{
		ID:      uuid.NewString(),
		Kind:    ev.Kind,
		Event:   ev,
		Present: present,
	}
	if n.Present == nil {
		n.Present = s.announce
	}
	s.queue = append(s.queue, n)
	s.logger.Debug("notification queued", "id", n.ID, "kind", n.Kind, "pending", len(s.queue))
	s.pump()
	return n.ID
}

// NotifyComplete finishes the active announcement and presents the next
// one. It may be called from inside a Present callback. Returns false when
// nothing was active.
func (s *Sequencer) NotifyComplete() bool {
	if s.active == nil {
		return false
	}
	s.logger.Debug("notification done", "id", s.active.ID)
	s.active = nil
	s.pump()
	return true
}

// Active returns the announcement being presented.
func (s *Sequencer) Active() (Notification, bool) {
	if s.active == nil {
		return Notification{}, false
	}
	return *s.active, true
}

// Pending returns the number of queued, not yet presented announcements.
func (s *Sequencer) Pending() int {
	return len(s.queue)
}

// Clear drops the active announcement and everything queued.
func (s *Sequencer) Clear() {
	s.active = nil
	s.queue = nil
}

// pump presents queued announcements while the slot is free. A nested call
// from a Present callback returns at once; the outer loop picks up.
func (s *Sequencer) pump() {
	if s.pumping {
		return
	}
	s.pumping = true
	defer func() { s.pumping = false }()

	for s.active == nil && len(s.queue) > 0 {
		n := s.queue[0]
		s.queue = s.queue[1:]
		s.active = &n
		n.Present(n)
	}
}

func (s *Sequencer) announce(n Notification) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.NotificationPresented{NotificationID: n.ID, Event: n.Event})
}
