package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nathoo/questline/engine/save"
	"github.com/nathoo/questline/store"
)

var errNoStore = errors.New("no store configured")

// Snapshot captures every engine's save shape.
func (e *Engine) Snapshot() *save.Data {
	d := &save.Data{
		Version:      save.Version,
		SavedAt:      save.Millis(e.clock.Now()),
		Quests:       e.Quests.Save(),
		Achievements: e.Achievements.Save(),
		Activity:     e.Activity.Save(),
		Viewed:       e.Dialogue.ViewedList(),
	}
	if p, ok := e.Dialogue.Progress(); ok {
		d.Dialogue = &p
	}
	save.Normalize(d)
	return d
}

// Restore replaces all runtime state with d. Saved state is loaded without
// events; a saved dialogue is then resumed after its checkpoint and
// auto-accept runs for content added since the save.
func (e *Engine) Restore(d *save.Data) error {
	if d.Version != "" && d.Version != save.Version {
		return fmt.Errorf("unsupported save version %q", d.Version)
	}
	save.Normalize(d)

	e.Notices.Clear()
	e.Dialogue.Reset()
	e.Quests.Load(d.Quests)
	e.Achievements.Load(d.Achievements)
	e.Activity.Load(d.Activity)
	e.Dialogue.LoadViewed(d.Viewed)

	e.do(func() {
		if d.Dialogue != nil {
			if err := e.Dialogue.Resume(*d.Dialogue); err != nil {
				e.logger.Warn("saved dialogue not resumed", "dialogue", d.Dialogue.DialogueID, "err", err)
			}
		}
		e.Quests.CheckAutoAccept()
	})
	return nil
}

// SaveTo writes a snapshot to slot of st.
func (e *Engine) SaveTo(ctx context.Context, st store.Store, slot string) error {
	if st == nil {
		return errNoStore
	}
	data, err := save.Marshal(e.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding save: %w", err)
	}
	if err := st.Set(ctx, slot, data); err != nil {
		return fmt.Errorf("saving %s: %w", slot, err)
	}
	return nil
}

// LoadFrom restores the snapshot stored in slot of st.
func (e *Engine) LoadFrom(ctx context.Context, st store.Store, slot string) (*save.Data, error) {
	if st == nil {
		return nil, errNoStore
	}
	raw, err := st.Get(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", slot, err)
	}
	d, err := save.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", slot, err)
	}
	if err := e.Restore(d); err != nil {
		return nil, err
	}
	return d, nil
}
