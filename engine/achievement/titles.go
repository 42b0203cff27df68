package achievement

import (
	"errors"

	"github.com/nathoo/questline/engine/events"
)

// ErrTitleLocked is returned when equipping a title that was never unlocked.
var ErrTitleLocked = errors.New("title not unlocked")

// Titles is the unlock/equip registry of player titles.
type Titles struct {
	bus      *events.Bus
	unlocked []string
	set      map[string]bool
	equipped string
}

func newTitles(bus *events.Bus) *Titles {
	return &Titles{bus: bus, set: map[string]bool{}}
}

// Unlock grants a title. Returns false if it was already unlocked.
func (t *Titles) Unlock(id string) bool {
	if id == "" || t.set[id] {
		return false
	}
	t.set[id] = true
	t.unlocked = append(t.unlocked, id)
	t.bus.Emit(events.TitleUnlocked{TitleID: id})
	return true
}

// Has reports whether a title is unlocked.
func (t *Titles) Has(id string) bool {
	return t.set[id]
}

// Unlocked returns unlocked titles in unlock order.
func (t *Titles) Unlocked() []string {
	return append([]string{}, t.unlocked...)
}

// Equip selects an unlocked title.
func (t *Titles) Equip(id string) error {
	if !t.set[id] {
		return ErrTitleLocked
	}
	if t.equipped == id {
		return nil
	}
	t.equipped = id
	t.bus.Emit(events.TitleEquipped{TitleID: id})
	return nil
}

// Unequip clears the equipped title.
func (t *Titles) Unequip() {
	if t.equipped == "" {
		return
	}
	t.equipped = ""
	t.bus.Emit(events.TitleEquipped{})
}

// Equipped returns the equipped title, or "".
func (t *Titles) Equipped() string {
	return t.equipped
}

func (t *Titles) load(unlocked []string, equipped string) {
	t.unlocked = nil
	t.set = map[string]bool{}
	for _, id := range unlocked {
		if id != "" && !t.set[id] {
			t.set[id] = true
			t.unlocked = append(t.unlocked, id)
		}
	}
	t.equipped = ""
	if t.set[equipped] {
		t.equipped = equipped
	}
}
