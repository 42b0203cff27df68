// Package loader loads Lua game content into a content catalog at startup.
// The Lua VM is discarded after loading.
package loader

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/types"
	lua "github.com/yuin/gopher-lua"
)

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// getDuration reads a number of seconds or a Go duration string.
func getDuration(tbl *lua.LTable, key string) (time.Duration, error) {
	switch v := tbl.RawGetString(key).(type) {
	case lua.LNumber:
		return time.Duration(float64(v) * float64(time.Second)), nil
	case lua.LString:
		return time.ParseDuration(string(v))
	}
	return 0, nil
}

// getStrings reads a string or an array of strings.
func getStrings(tbl *lua.LTable, key string) []string {
	switch v := tbl.RawGetString(key).(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= v.MaxN(); i++ {
			if s, ok := v.RawGetInt(i).(lua.LString); ok {
				out = append(out, string(s))
			}
		}
		return out
	}
	return nil
}

// arrayTables returns the table elements of an array field in order.
func arrayTables(tbl *lua.LTable) []*lua.LTable {
	if tbl == nil {
		return nil
	}
	var out []*lua.LTable
	for i := 1; i <= tbl.MaxN(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			out = append(out, t)
		}
	}
	return out
}

// compile converts all collected Lua data into a catalog. Compilation
// errors are collected rather than returned one at a time.
func compile(coll *collector) (*Game, *ValidationError) {
	ve := &ValidationError{}
	cat := content.New()
	game := &Game{Catalog: cat}

	if coll.game != nil {
		game.Meta = compileMeta(coll.game)
	}

	add := func(what, id string, err error) {
		var dup *content.DuplicateError
		switch {
		case err == nil:
		case errors.As(err, &dup):
			ve.Errors = append(ve.Errors, fmt.Sprintf("duplicate %s ID %q", what, id))
		default:
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s %q: %v", what, id, err))
		}
	}

	for _, raw := range coll.actors {
		add("actor", raw.id, cat.AddActor(compileActor(raw)))
	}
	for _, raw := range coll.quests {
		def, err := compileQuest(raw)
		if err != nil {
			add("quest", raw.id, err)
			continue
		}
		add("quest", raw.id, cat.AddQuest(def))
	}
	for _, raw := range coll.achievements {
		add("achievement", raw.id, cat.AddAchievement(compileAchievement(raw)))
	}
	for _, raw := range coll.dialogues {
		d, err := compileDialogue(raw)
		if err != nil {
			add("dialogue", raw.id, err)
			continue
		}
		add("dialogue", raw.id, cat.AddDialogue(d))
	}
	for _, raw := range coll.tiers {
		add("activity tier", raw.id, cat.AddActivityTier(compileTier(raw)))
	}

	for _, u := range cat.Normalize() {
		ve.Errors = append(ve.Errors, u.String())
	}
	return game, ve
}

func compileMeta(tbl *lua.LTable) Meta {
	return Meta{
		Title:   getString(tbl, "title"),
		Author:  getString(tbl, "author"),
		Version: getString(tbl, "version"),
		Intro:   getString(tbl, "intro"),
	}
}

func compileActor(raw rawDef) *types.Actor {
	tbl := raw.table
	return &types.Actor{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		DisplayName: getString(tbl, "display_name"),
		Description: getString(tbl, "description"),
		Portrait:    getString(tbl, "portrait"),
		Tags:        getStrings(tbl, "tags"),
	}
}

func compileQuest(raw rawDef) (*types.QuestDef, error) {
	tbl := raw.table
	def := &types.QuestDef{
		ID:              raw.id,
		Name:            getString(tbl, "name"),
		Description:     getString(tbl, "description"),
		Type:            types.QuestType(getString(tbl, "type")),
		Objectives:      compileObjectives(getTable(tbl, "objectives")),
		Rewards:         compileRewards(getTable(tbl, "rewards")),
		Prerequisites:   refs[types.QuestDef](getStrings(tbl, "prerequisites")),
		FollowUps:       refs[types.QuestDef](getStrings(tbl, "follow_ups")),
		AutoAccept:      getBool(tbl, "auto_accept", false),
		AcceptCondition: getString(tbl, "accept_condition"),
		AutoComplete:    getBool(tbl, "auto_complete", false),
		Repeatable:      getBool(tbl, "repeatable", false),
		MaxRepeat:       getInt(tbl, "max_repeat"),
		DailyLimit:      getInt(tbl, "daily_limit"),
		BattlePassExp:   getInt(tbl, "battle_pass_exp"),
		ActivityPoints:  getInt(tbl, "activity_points"),
	}
	if def.Type == "" {
		def.Type = types.QuestSide
	}
	limit, err := getDuration(tbl, "time_limit")
	if err != nil {
		return nil, fmt.Errorf("time_limit: %w", err)
	}
	def.TimeLimit = limit
	return def, nil
}

func compileAchievement(raw rawDef) *types.AchievementDef {
	tbl := raw.table
	def := &types.AchievementDef{
		ID:            raw.id,
		Name:          getString(tbl, "name"),
		Description:   getString(tbl, "description"),
		Type:          types.AchievementType(getString(tbl, "type")),
		Category:      getString(tbl, "category"),
		Rarity:        getString(tbl, "rarity"),
		Objectives:    compileObjectives(getTable(tbl, "objectives")),
		Rewards:       compileRewards(getTable(tbl, "rewards")),
		Prerequisites: refs[types.AchievementDef](getStrings(tbl, "prerequisites")),
		Points:        getInt(tbl, "points"),
		Title:         getString(tbl, "title"),
	}
	if def.Type == "" {
		def.Type = types.AchievementOneTime
	}
	if obj := getTable(tbl, "objective"); obj != nil {
		def.StageObjective = compileObjective(obj, 1)
	}
	for i, st := range arrayTables(getTable(tbl, "stages")) {
		stage := types.Stage{
			ID:          getString(st, "id"),
			TargetCount: getInt(st, "count"),
			Rewards:     compileRewards(getTable(st, "rewards")),
			Title:       getString(st, "title"),
		}
		if stage.ID == "" {
			stage.ID = "s" + strconv.Itoa(i+1)
		}
		def.Stages = append(def.Stages, stage)
	}
	return def
}

func refs[T any](ids []string) []types.Ref[T] {
	if len(ids) == 0 {
		return nil
	}
	out := make([]types.Ref[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Ref[T]{ID: id})
	}
	return out
}

// compileObjectives compiles an objective array. Objectives without an id
// are numbered o1, o2, ... by position.
func compileObjectives(tbl *lua.LTable) []types.Objective {
	var out []types.Objective
	for i, t := range arrayTables(tbl) {
		out = append(out, compileObjective(t, i+1))
	}
	return out
}

func compileObjective(tbl *lua.LTable, pos int) types.Objective {
	obj := types.Objective{
		ID:          getString(tbl, "id"),
		Type:        types.ObjectiveType(getString(tbl, "type")),
		TargetID:    getString(tbl, "target"),
		TargetCount: getInt(tbl, "count"),
		Description: getString(tbl, "description"),
	}
	if obj.ID == "" {
		obj.ID = "o" + strconv.Itoa(pos)
	}
	if _, ok := tbl.RawGetString("count").(lua.LNumber); !ok {
		obj.TargetCount = 1
	}
	return obj
}

func compileRewards(tbl *lua.LTable) []types.Reward {
	var out []types.Reward
	for _, t := range arrayTables(tbl) {
		out = append(out, types.Reward{
			Type:  types.RewardType(getString(t, "type")),
			ID:    getInt(t, "id"),
			Count: getInt(t, "count"),
			Title: getString(t, "title"),
		})
	}
	return out
}

func compileTier(raw rawDef) *types.ActivityTier {
	return &types.ActivityTier{
		ID:             raw.id,
		RequiredPoints: getInt(raw.table, "points"),
		Rewards:        compileRewards(getTable(raw.table, "rewards")),
	}
}

// compileDialogue compiles a dialogue. The entry defaults to the first
// node of the nodes array.
func compileDialogue(raw rawDef) (*types.Dialogue, error) {
	tbl := raw.table
	d := &types.Dialogue{
		ID:    raw.id,
		Kind:  types.DialogueKind(getString(tbl, "kind")),
		Entry: getString(tbl, "entry"),
		Nodes: map[string]*types.DialogueNode{},
	}
	if d.Kind == "" {
		d.Kind = types.DialogueMain
	}
	if tr := getTable(tbl, "trigger"); tr != nil {
		d.Trigger = &types.Trigger{
			Scene:     getString(tr, "scene"),
			Timing:    getString(tr, "timing"),
			Condition: getString(tr, "condition"),
			Priority:  getInt(tr, "priority"),
		}
	}

	for i, nt := range arrayTables(getTable(tbl, "nodes")) {
		n, err := compileNode(nt)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i+1, err)
		}
		if _, dup := d.Nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node ID %q", n.ID)
		}
		d.Nodes[n.ID] = n
		if d.Entry == "" {
			d.Entry = n.ID
		}
	}
	return d, nil
}

func compileNode(tbl *lua.LTable) (*types.DialogueNode, error) {
	id := getString(tbl, "__node_id")
	if id == "" {
		return nil, fmt.Errorf("not a node; use a constructor such as Talk \"id\" {...}")
	}
	n := &types.DialogueNode{
		ID:      id,
		Type:    types.NodeType(getString(tbl, "__node_type")),
		ActorID: getString(tbl, "actor"),
		Next:    getString(tbl, "next"),
		Scene:   getString(tbl, "scene"),
		Battle:  getString(tbl, "battle"),
		Sound:   getString(tbl, "sound"),
		Toast:   getString(tbl, "toast"),
		Record:  getString(tbl, "record"),
		Items:   compileRewards(getTable(tbl, "items")),
	}

	text, image, anim := getString(tbl, "text"), getString(tbl, "image"), getString(tbl, "animation")
	if text != "" || image != "" || anim != "" {
		n.Content = &types.NodeContent{Text: text, Image: image, Animation: anim}
	}

	for _, c := range arrayTables(getTable(tbl, "choices")) {
		n.Choices = append(n.Choices, types.Choice{
			Label:  getString(c, "label"),
			Action: types.ChoiceAction(getString(c, "action")),
			Data:   getString(c, "data"),
		})
	}

	quests := append(getStrings(tbl, "quest"), getStrings(tbl, "quests")...)
	n.Quests = refs[types.QuestDef](quests)
	achievements := append(getStrings(tbl, "achievement"), getStrings(tbl, "achievements")...)
	n.Achievements = refs[types.AchievementDef](achievements)

	if getBool(tbl, "auto", false) {
		n.Advance = types.AdvanceAuto
	} else if a := getString(tbl, "advance"); a != "" {
		n.Advance = types.AdvanceMode(a)
	}
	d, err := getDuration(tbl, "duration")
	if err != nil {
		return nil, fmt.Errorf("node %s duration: %w", id, err)
	}
	n.AutoDuration = d
	return n, nil
}

// sortedLuaFiles returns .lua files with game.lua first and the rest
// sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var gameFile string
	var others []string
	for _, f := range files {
		if f == "game.lua" {
			gameFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if gameFile != "" {
		return append([]string{gameFile}, others...)
	}
	return others
}
