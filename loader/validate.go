package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/questline/engine/cond"
	"github.com/nathoo/questline/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

var validObjectiveTypes = map[types.ObjectiveType]bool{
	types.ObjectiveKillMonster:       true,
	types.ObjectiveCollectItem:       true,
	types.ObjectiveWinBattle:         true,
	types.ObjectiveCompleteLevel:     true,
	types.ObjectiveReachLevel:        true,
	types.ObjectiveReachFloor:        true,
	types.ObjectiveFinishDialogue:    true,
	types.ObjectiveUseSkill:          true,
	types.ObjectiveLogin:             true,
	types.ObjectiveCompleteQuest:     true,
	types.ObjectiveUnlockAchievement: true,
	types.ObjectiveCustom:            true,
}

var validRewardTypes = map[types.RewardType]bool{
	types.RewardItem:          true,
	types.RewardCurrency:      true,
	types.RewardExp:           true,
	types.RewardTitle:         true,
	types.RewardBattlePassExp: true,
}

var validQuestTypes = map[types.QuestType]bool{
	types.QuestMain:       true,
	types.QuestSide:       true,
	types.QuestDaily:      true,
	types.QuestWeekly:     true,
	types.QuestMonthly:    true,
	types.QuestHidden:     true,
	types.QuestBattlePass: true,
}

var validAchievementTypes = map[types.AchievementType]bool{
	types.AchievementOneTime:    true,
	types.AchievementCumulative: true,
	types.AchievementStaged:     true,
	types.AchievementHidden:     true,
}

var validChoiceActions = map[types.ChoiceAction]bool{
	types.ChoiceDefault: true,
	types.ChoiceJump:    true,
	types.ChoiceScene:   true,
	types.ChoiceToast:   true,
}

// validate checks the compiled catalog for consistency. Unresolved
// cross-table references were already reported by compile.
func validate(game *Game, ve *ValidationError) {
	cat := game.Catalog
	exprs := cond.New(0, nil)
	checkExpr := func(where, expr string) {
		if err := exprs.Compile(expr); err != nil {
			ve.errorf("%s: invalid condition %q: %v", where, expr, err)
		}
	}

	if game.Meta.Title == "" {
		ve.warnf("Game.title is not set")
	}

	for _, q := range cat.Quests() {
		where := fmt.Sprintf("quest %q", q.ID)
		if !validQuestTypes[q.Type] {
			ve.errorf("%s: unknown quest type %q", where, q.Type)
		}
		if len(q.Objectives) == 0 {
			ve.warnf("%s has no objectives", where)
		}
		validateObjectives(where, q.Objectives, ve)
		validateRewards(where, q.Rewards, ve)
		checkExpr(where, q.AcceptCondition)
		if q.TimeLimit < 0 {
			ve.errorf("%s: negative time_limit", where)
		}
		if q.MaxRepeat < 0 || q.DailyLimit < 0 {
			ve.errorf("%s: max_repeat and daily_limit must not be negative", where)
		}
		if q.ActivityPoints > 0 && q.Type != types.QuestDaily {
			ve.warnf("%s: activity_points only count for daily quests", where)
		}
	}

	for _, a := range cat.Achievements() {
		where := fmt.Sprintf("achievement %q", a.ID)
		if !validAchievementTypes[a.Type] {
			ve.errorf("%s: unknown achievement type %q", where, a.Type)
		}
		validateRewards(where, a.Rewards, ve)
		if a.Type != types.AchievementStaged {
			if len(a.Objectives) == 0 {
				ve.errorf("%s has no objectives", where)
			}
			validateObjectives(where, a.Objectives, ve)
			continue
		}

		if len(a.Stages) == 0 {
			ve.errorf("%s: staged achievement has no stages", where)
		}
		if a.StageObjective.Type == "" {
			ve.errorf("%s: staged achievement needs an objective", where)
		} else {
			validateObjectives(where, []types.Objective{a.StageObjective}, ve)
		}
		prev := 0
		for _, s := range a.Stages {
			if s.TargetCount <= prev {
				ve.errorf("%s: stage %q count %d must exceed the previous stage (%d)",
					where, s.ID, s.TargetCount, prev)
			}
			prev = s.TargetCount
			validateRewards(fmt.Sprintf("%s stage %q", where, s.ID), s.Rewards, ve)
		}
	}

	points := map[int]string{}
	for _, t := range cat.ActivityTiers() {
		where := fmt.Sprintf("activity tier %q", t.ID)
		if t.RequiredPoints <= 0 {
			ve.errorf("%s: points must be positive", where)
		}
		if other, ok := points[t.RequiredPoints]; ok {
			ve.errorf("%s: threshold %d already used by %q", where, t.RequiredPoints, other)
		}
		points[t.RequiredPoints] = t.ID
		validateRewards(where, t.Rewards, ve)
	}

	for _, d := range cat.Dialogues() {
		validateDialogue(d, cat.Actor, checkExpr, ve)
	}
}

func validateObjectives(where string, objs []types.Objective, ve *ValidationError) {
	seen := map[string]bool{}
	for _, o := range objs {
		if !validObjectiveTypes[o.Type] {
			ve.errorf("%s objective %q: unknown type %q", where, o.ID, o.Type)
		}
		if o.TargetCount <= 0 {
			ve.errorf("%s objective %q: count must be positive", where, o.ID)
		}
		if seen[o.ID] {
			ve.errorf("%s: duplicate objective ID %q", where, o.ID)
		}
		seen[o.ID] = true
	}
}

func validateRewards(where string, rewards []types.Reward, ve *ValidationError) {
	for _, r := range rewards {
		if !validRewardTypes[r.Type] {
			ve.errorf("%s: unknown reward type %q", where, r.Type)
			continue
		}
		if r.Type == types.RewardTitle {
			if r.Title == "" {
				ve.errorf("%s: title reward without a title", where)
			}
			continue
		}
		if r.Count <= 0 {
			ve.errorf("%s: %s reward count must be positive", where, r.Type)
		}
	}
}

func validateDialogue(d *types.Dialogue, actor func(string) (*types.Actor, bool),
	checkExpr func(where, expr string), ve *ValidationError) {
	where := fmt.Sprintf("dialogue %q", d.ID)
	if len(d.Nodes) == 0 {
		ve.errorf("%s has no nodes", where)
		return
	}
	if _, ok := d.Nodes[d.Entry]; !ok {
		ve.errorf("%s: entry node %q not found", where, d.Entry)
	}
	if d.Trigger != nil {
		checkExpr(where+" trigger", d.Trigger.Condition)
	}

	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := d.Nodes[id]
		nw := fmt.Sprintf("%s node %q", where, id)
		if _, ok := nodeTypeNames[n.Type]; !ok {
			ve.errorf("%s: unknown node type %q", nw, n.Type)
		}
		if n.Next != "" {
			if _, ok := d.Nodes[n.Next]; !ok {
				ve.errorf("%s: next node %q not found", nw, n.Next)
			}
		}
		if n.ActorID != "" {
			if _, ok := actor(n.ActorID); !ok {
				ve.warnf("%s: undefined actor %q", nw, n.ActorID)
			}
		}
		switch n.Advance {
		case "", types.AdvanceManual, types.AdvanceAuto:
		default:
			ve.errorf("%s: unknown advance mode %q", nw, n.Advance)
		}
		if n.AutoDuration < 0 {
			ve.errorf("%s: negative duration", nw)
		}
		for i, c := range n.Choices {
			if !validChoiceActions[c.Action] {
				ve.errorf("%s choice %d: unknown action %q", nw, i+1, c.Action)
			}
			if c.Action == types.ChoiceJump {
				if _, ok := d.Nodes[c.Data]; !ok {
					ve.errorf("%s choice %d: jump target %q not found", nw, i+1, c.Data)
				}
			}
		}
		validateRewards(nw, n.Items, ve)

		switch n.Type {
		case types.NodeLoadScene:
			if n.Scene == "" {
				ve.errorf("%s: load_scene without a scene", nw)
			}
		case types.NodeLoadBattle:
			if n.Battle == "" {
				ve.errorf("%s: load_battle without a battle", nw)
			}
		case types.NodeGrantQuest, types.NodeCompleteQuest:
			if len(n.Quests) == 0 {
				ve.errorf("%s: %s without a quest", nw, n.Type)
			}
		case types.NodeGrantAchievement:
			if len(n.Achievements) == 0 {
				ve.errorf("%s: grant_achievement without an achievement", nw)
			}
		}
	}

	for _, id := range unreachable(d) {
		ve.warnf("%s: node %q is unreachable", where, id)
	}
}

// nodeTypeNames inverts nodeConstructors.
var nodeTypeNames = func() map[types.NodeType]string {
	m := make(map[types.NodeType]string, len(nodeConstructors))
	for name, t := range nodeConstructors {
		m[t] = name
	}
	return m
}()

// unreachable returns the sorted ids of nodes no path from the entry visits.
func unreachable(d *types.Dialogue) []string {
	seen := map[string]bool{}
	stack := []string{d.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := d.Nodes[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		if n.Next != "" {
			stack = append(stack, n.Next)
		}
		for _, c := range n.Choices {
			if c.Action == types.ChoiceJump {
				stack = append(stack, c.Data)
			}
		}
	}
	var out []string
	for id := range d.Nodes {
		if !seen[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
