// Package content is the read-only repository of game definitions: quests,
// achievements, dialogues, actors and the activity tier table. Definitions
// are kept in the order they were added.
package content

import (
	"fmt"
	"sort"

	"github.com/nathoo/questline/types"
	"github.com/sahilm/fuzzy"
)

// Table names a definition table.
type Table string

const (
	TableQuest        Table = "quest"
	TableAchievement  Table = "achievement"
	TableDialogue     Table = "dialogue"
	TableActor        Table = "actor"
	TableActivityTier Table = "activity_tier"
)

// Tables lists every table.
var Tables = []Table{TableQuest, TableAchievement, TableDialogue, TableActor, TableActivityTier}

// Catalog holds every definition, indexed by id and by definition order.
type Catalog struct {
	quests       map[string]*types.QuestDef
	achievements map[string]*types.AchievementDef
	dialogues    map[string]*types.Dialogue
	actors       map[string]*types.Actor
	tiers        map[string]*types.ActivityTier

	order map[Table][]string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		quests:       map[string]*types.QuestDef{},
		achievements: map[string]*types.AchievementDef{},
		dialogues:    map[string]*types.Dialogue{},
		actors:       map[string]*types.Actor{},
		tiers:        map[string]*types.ActivityTier{},
		order:        map[Table][]string{},
	}
}

// DuplicateError reports a second definition with an existing id.
type DuplicateError struct {
	Table Table
	ID    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Table, e.ID)
}

func (c *Catalog) has(table Table, id string) bool {
	_, ok := c.GetByTableAndKey(table, id)
	return ok
}

func (c *Catalog) add(table Table, id string) error {
	if id == "" {
		return fmt.Errorf("%s with empty id", table)
	}
	if c.has(table, id) {
		return &DuplicateError{Table: table, ID: id}
	}
	c.order[table] = append(c.order[table], id)
	return nil
}

// AddQuest registers a quest definition.
func (c *Catalog) AddQuest(def *types.QuestDef) error {
	if err := c.add(TableQuest, def.ID); err != nil {
		return err
	}
	c.quests[def.ID] = def
	return nil
}

// AddAchievement registers an achievement definition.
func (c *Catalog) AddAchievement(def *types.AchievementDef) error {
	if err := c.add(TableAchievement, def.ID); err != nil {
		return err
	}
	c.achievements[def.ID] = def
	return nil
}

// AddDialogue registers a dialogue.
func (c *Catalog) AddDialogue(d *types.Dialogue) error {
	if err := c.add(TableDialogue, d.ID); err != nil {
		return err
	}
	c.dialogues[d.ID] = d
	return nil
}

// AddActor registers an actor.
func (c *Catalog) AddActor(a *types.Actor) error {
	if err := c.add(TableActor, a.ID); err != nil {
		return err
	}
	c.actors[a.ID] = a
	return nil
}

// AddActivityTier registers an activity tier.
func (c *Catalog) AddActivityTier(t *types.ActivityTier) error {
	if err := c.add(TableActivityTier, t.ID); err != nil {
		return err
	}
	c.tiers[t.ID] = t
	return nil
}

// Quest returns a quest definition.
func (c *Catalog) Quest(id string) (*types.QuestDef, bool) {
	q, ok := c.quests[id]
	return q, ok
}

// Quests returns every quest in definition order.
func (c *Catalog) Quests() []*types.QuestDef {
	out := make([]*types.QuestDef, 0, len(c.quests))
	for _, id := range c.order[TableQuest] {
		out = append(out, c.quests[id])
	}
	return out
}

// Achievement returns an achievement definition.
func (c *Catalog) Achievement(id string) (*types.AchievementDef, bool) {
	a, ok := c.achievements[id]
	return a, ok
}

// Achievements returns every achievement in definition order.
func (c *Catalog) Achievements() []*types.AchievementDef {
	out := make([]*types.AchievementDef, 0, len(c.achievements))
	for _, id := range c.order[TableAchievement] {
		out = append(out, c.achievements[id])
	}
	return out
}

// Dialogue returns a dialogue.
func (c *Catalog) Dialogue(id string) (*types.Dialogue, bool) {
	d, ok := c.dialogues[id]
	return d, ok
}

// Dialogues returns every dialogue in definition order.
func (c *Catalog) Dialogues() []*types.Dialogue {
	out := make([]*types.Dialogue, 0, len(c.dialogues))
	for _, id := range c.order[TableDialogue] {
		out = append(out, c.dialogues[id])
	}
	return out
}

// Actor returns an actor.
func (c *Catalog) Actor(id string) (*types.Actor, bool) {
	a, ok := c.actors[id]
	return a, ok
}

// ActivityTiers returns the tier table sorted by required points, ties in
// definition order.
func (c *Catalog) ActivityTiers() []types.ActivityTier {
	out := make([]types.ActivityTier, 0, len(c.tiers))
	for _, id := range c.order[TableActivityTier] {
		out = append(out, *c.tiers[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequiredPoints < out[j].RequiredPoints
	})
	return out
}

// IDs returns the ids of a table in definition order.
func (c *Catalog) IDs(table Table) []string {
	return append([]string(nil), c.order[table]...)
}

// GetByTableAndKey returns the definition pointer stored under table/id.
func (c *Catalog) GetByTableAndKey(table Table, id string) (any, bool) {
	switch table {
	case TableQuest:
		if v, ok := c.quests[id]; ok {
			return v, true
		}
	case TableAchievement:
		if v, ok := c.achievements[id]; ok {
			return v, true
		}
	case TableDialogue:
		if v, ok := c.dialogues[id]; ok {
			return v, true
		}
	case TableActor:
		if v, ok := c.actors[id]; ok {
			return v, true
		}
	case TableActivityTier:
		if v, ok := c.tiers[id]; ok {
			return v, true
		}
	}
	return nil, false
}

// GetAllByTable returns every definition of a table in definition order.
func (c *Catalog) GetAllByTable(table Table) []any {
	ids := c.order[table]
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.GetByTableAndKey(table, id); ok {
			out = append(out, v)
		}
	}
	return out
}

// Unresolved describes a reference Normalize could not resolve.
type Unresolved struct {
	From  string // e.g. "quest q2 prerequisite"
	Table Table
	ID    string
}

func (u Unresolved) String() string {
	return fmt.Sprintf("%s: unknown %s %q", u.From, u.Table, u.ID)
}

// Normalize resolves every cross-table reference it can, in place.
// References to unknown ids stay unresolved and are returned.
func (c *Catalog) Normalize() []Unresolved {
	var missing []Unresolved

	resolveQuests := func(refs []types.Ref[types.QuestDef], from string) {
		for i := range refs {
			if def, ok := c.quests[refs[i].ID]; ok {
				refs[i].Def = def
				continue
			}
			refs[i].Def = nil
			missing = append(missing, Unresolved{From: from, Table: TableQuest, ID: refs[i].ID})
		}
	}
	resolveAchievements := func(refs []types.Ref[types.AchievementDef], from string) {
		for i := range refs {
			if def, ok := c.achievements[refs[i].ID]; ok {
				refs[i].Def = def
				continue
			}
			refs[i].Def = nil
			missing = append(missing, Unresolved{From: from, Table: TableAchievement, ID: refs[i].ID})
		}
	}

	for _, q := range c.Quests() {
		resolveQuests(q.Prerequisites, "quest "+q.ID+" prerequisite")
		resolveQuests(q.FollowUps, "quest "+q.ID+" follow-up")
	}
	for _, a := range c.Achievements() {
		resolveAchievements(a.Prerequisites, "achievement "+a.ID+" prerequisite")
	}
	for _, d := range c.Dialogues() {
		for _, nodeID := range sortedNodeIDs(d) {
			n := d.Nodes[nodeID]
			from := "dialogue " + d.ID + " node " + n.ID
			resolveQuests(n.Quests, from)
			resolveAchievements(n.Achievements, from)
		}
	}
	return missing
}

func sortedNodeIDs(d *types.Dialogue) []string {
	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Suggest returns up to three ids of a table that fuzzily match id, best
// match first.
func (c *Catalog) Suggest(table Table, id string) []string {
	if id == "" {
		return nil
	}
	matches := fuzzy.Find(id, c.order[table])
	var out []string
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}
