// Package events implements the typed publish/subscribe bus that connects
// the progression engines. Events emitted while a dispatch is in progress
// are queued and delivered afterwards, so every subscriber observes the
// same global order and handlers never re-enter each other.
package events

import (
	"sort"
)

// Kind is the enumerated tag of an event.
type Kind int

const (
	KindUnknown Kind = iota
	KindProgressReported

	KindQuestAccepted
	KindQuestProgressUpdated
	KindQuestSubmittable
	KindQuestCompleted
	KindQuestFailed
	KindQuestExpired
	KindQuestAbandoned
	KindQuestReset
	KindRewardGranted

	KindAchievementProgressUpdated
	KindAchievementUnlocked
	KindAchievementStageCompleted
	KindAchievementStageClaimed
	KindAchievementClaimed
	KindTitleUnlocked
	KindTitleEquipped

	KindDialogueStarted
	KindDialogueNodeEntered
	KindDialogueChoiceSelected
	KindDialogueEnded
	KindSceneRequested
	KindBattleRequested
	KindBattleResolved
	KindToastRequested
	KindSoundRequested
	KindRecordWritten

	KindActivityPointsChanged
	KindActivityTierClaimed
	KindActivityReset

	KindNotificationPresented
)

var kindNames = map[Kind]string{
	KindProgressReported:           "progress-reported",
	KindQuestAccepted:              "quest-accepted",
	KindQuestProgressUpdated:       "quest-progress-updated",
	KindQuestSubmittable:           "quest-submittable",
	KindQuestCompleted:             "quest-completed",
	KindQuestFailed:                "quest-failed",
	KindQuestExpired:               "quest-expired",
	KindQuestAbandoned:             "quest-abandoned",
	KindQuestReset:                 "quest-reset",
	KindRewardGranted:              "reward-granted",
	KindAchievementProgressUpdated: "achievement-progress-updated",
	KindAchievementUnlocked:        "achievement-unlocked",
	KindAchievementStageCompleted:  "achievement-stage-completed",
	KindAchievementStageClaimed:    "achievement-stage-claimed",
	KindAchievementClaimed:         "achievement-claimed",
	KindTitleUnlocked:              "title-unlocked",
	KindTitleEquipped:              "title-equipped",
	KindDialogueStarted:            "dialogue-started",
	KindDialogueNodeEntered:        "dialogue-node-entered",
	KindDialogueChoiceSelected:     "dialogue-choice-selected",
	KindDialogueEnded:              "dialogue-end",
	KindSceneRequested:             "scene-requested",
	KindBattleRequested:            "battle-requested",
	KindBattleResolved:             "battle-resolved",
	KindToastRequested:             "toast-requested",
	KindSoundRequested:             "sound-requested",
	KindRecordWritten:              "record-written",
	KindActivityPointsChanged:      "activity-points-changed",
	KindActivityTierClaimed:        "activity-tier-claimed",
	KindActivityReset:              "activity-reset",
	KindNotificationPresented:      "notification-presented",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Payload is implemented by every event payload struct. The Kind method
// ties a payload type to exactly one tag.
type Payload interface {
	Kind() Kind
}

// Event is one delivered message. Seq increases monotonically per bus.
type Event struct {
	Kind    Kind
	Payload Payload
	Seq     uint64
}

// ID identifies a subscription.
type ID uint64

type subscriber struct {
	id   ID
	kind Kind // KindUnknown subscribes to everything
	fn   func(Event)
}

// Bus is a synchronous, single-threaded event bus.
type Bus struct {
	subs        []subscriber
	nextID      ID
	seq         uint64
	queue       []Event
	dispatching bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for events of the given kind.
func (b *Bus) Subscribe(kind Kind, fn func(Event)) ID {
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, kind: kind, fn: fn})
	return b.nextID
}

// SubscribeAll registers fn for every event.
func (b *Bus) SubscribeAll(fn func(Event)) ID {
	return b.Subscribe(KindUnknown, fn)
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (b *Bus) Unsubscribe(id ID) {
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// On subscribes a handler typed by its payload.
func On[P Payload](b *Bus, fn func(P)) ID {
	var zero P
	return b.Subscribe(zero.Kind(), func(e Event) {
		if p, ok := e.Payload.(P); ok {
			fn(p)
		}
	})
}

// Emit publishes a payload. If called from inside a handler, delivery is
// deferred until the current event has reached all subscribers.
func (b *Bus) Emit(p Payload) {
	b.seq++
	b.queue = append(b.queue, Event{Kind: p.Kind(), Payload: p, Seq: b.seq})
	if b.dispatching {
		return
	}

	b.dispatching = true
	defer func() { b.dispatching = false }()

	for len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		// Snapshot so handlers may (un)subscribe during delivery.
		subs := append([]subscriber(nil), b.subs...)
		for _, s := range subs {
			if s.kind == KindUnknown || s.kind == ev.Kind {
				s.fn(ev)
			}
		}
	}
}

// Kinds returns every known kind in tag order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := range kindNames {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
