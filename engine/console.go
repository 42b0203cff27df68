package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nathoo/questline/engine/achievement"
	"github.com/nathoo/questline/engine/activity"
	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/dialogue"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/engine/parser"
	"github.com/nathoo/questline/engine/quest"
	"github.com/nathoo/questline/types"
	"github.com/sahilm/fuzzy"
)

// Result is what one console step produced.
type Result struct {
	Output []string
	Events []events.Event
}

// Step processes one console command and returns its output followed by
// the narration of every event it caused.
func (e *Engine) Step(input string) Result {
	// 1. Parse input.
	intent := parser.Parse(input)

	// 2. Empty input.
	if intent.Verb == "" {
		return Result{Output: []string{"What do you want to do?"}}
	}

	// 3. Run the command as one top-level operation.
	var out []string
	e.do(func() { out = e.command(intent) })

	// 4. Narrate what happened.
	res := e.Drain()
	res.Output = append(out, res.Output...)
	return res
}

// Drain narrates and clears the events recorded since the last call. Hosts
// call it after timer callbacks have run outside Step.
func (e *Engine) Drain() Result {
	res := Result{Events: e.recent}
	e.recent = nil
	for _, ev := range res.Events {
		res.Output = append(res.Output, e.narrate(ev)...)
	}
	if n := e.Notices.Pending(); n > 0 && len(res.Events) > 0 {
		res.Output = append(res.Output, fmt.Sprintf("(%d more notice(s); type 'ok' to continue)", n))
	}
	return res
}

// Help lists the console commands.
func Help() []string {
	return []string{
		"Quests:       quests, quest <id>, accept <id>, complete <id>, force <id>, abandon <id>, fail <id>",
		"Gameplay:     kill <monster> [n], collect <item> [n], win [battle], clear <level>, level <n>, floor <n>,",
		"              use <skill> [n], login, report <type> [target] [n]",
		"Achievements: achievements, claim <id> [stage], titles, equip <title>, unequip",
		"Dialogue:     talk <dialogue>, next, choose <n> (or just <n>), skip, end, battle win|lose,",
		"              trigger <scene> [timing] [key=value...]",
		"Activity:     activity, tier <id>",
		"Other:        ok (dismiss notice), tick, wait <seconds|duration>, status",
	}
}

var errUsage = errors.New("usage")

// command runs one parsed command and returns its direct output.
func (e *Engine) command(intent types.Intent) []string {
	lines, err := e.dispatch(intent)
	if err != nil {
		if errors.Is(err, errUsage) {
			return append(lines, "Usage: "+usage[intent.Verb])
		}
		return append(lines, err.Error())
	}
	return lines
}

var usage = map[string]string{
	"quest":    "quest <id>",
	"accept":   "accept <id>",
	"complete": "complete <id>",
	"force":    "force <id>",
	"abandon":  "abandon <id>",
	"fail":     "fail <id>",
	"report":   "report <type> [target] [n]",
	"kill":     "kill <monster> [n]",
	"collect":  "collect <item> [n]",
	"clear":    "clear <level>",
	"level":    "level <n>",
	"floor":    "floor <n>",
	"use":      "use <skill> [n]",
	"claim":    "claim <id> [stage]",
	"equip":    "equip <title>",
	"talk":     "talk <dialogue>",
	"choose":   "choose <n>",
	"battle":   "battle win|lose",
	"trigger":  "trigger <scene> [timing] [key=value...]",
	"tier":     "tier <id>",
	"wait":     "wait <seconds|duration>",
}

func (e *Engine) dispatch(intent types.Intent) ([]string, error) {
	args := intent.Args
	switch intent.Verb {
	case "help":
		return Help(), nil
	case "status":
		return e.builtinStatus(), nil

	// Quests
	case "quests":
		return e.builtinQuests(), nil
	case "quest":
		if len(args) == 0 {
			return nil, errUsage
		}
		return e.builtinQuest(args[0])
	case "accept":
		return e.questOp(args, "accept", func(id string) error {
			_, err := e.Quests.Accept(id)
			return err
		})
	case "complete":
		return e.questOp(args, "complete", func(id string) error { return e.Quests.Complete(id, false) })
	case "force":
		return e.questOp(args, "complete", func(id string) error { return e.Quests.Complete(id, true) })
	case "abandon":
		return e.questOp(args, "abandon", e.Quests.Abandon)
	case "fail":
		return e.questOp(args, "fail", e.Quests.Fail)

	// Gameplay events
	case "report":
		return e.builtinReport(args)
	case "kill":
		return e.reportTarget(types.ObjectiveKillMonster, args)
	case "collect":
		return e.reportTarget(types.ObjectiveCollectItem, args)
	case "use":
		return e.reportTarget(types.ObjectiveUseSkill, args)
	case "win":
		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		e.Report(types.Progress{Type: types.ObjectiveWinBattle, TargetID: target, Amount: 1})
		return nil, nil
	case "clear":
		if len(args) == 0 {
			return nil, errUsage
		}
		e.Report(types.Progress{Type: types.ObjectiveCompleteLevel, TargetID: args[0], Amount: 1})
		return nil, nil
	case "level":
		return e.reportAbsolute(types.ObjectiveReachLevel, args)
	case "floor":
		return e.reportAbsolute(types.ObjectiveReachFloor, args)
	case "login":
		e.Report(types.Progress{Type: types.ObjectiveLogin, Amount: 1})
		return nil, nil

	// Achievements and titles
	case "achievements":
		return e.builtinAchievements(), nil
	case "claim":
		return e.builtinClaim(args)
	case "titles":
		return e.builtinTitles(), nil
	case "equip":
		if len(args) == 0 {
			return nil, errUsage
		}
		if args[0] == "none" {
			e.Achievements.Titles().Unequip()
			return nil, nil
		}
		if err := e.Achievements.Titles().Equip(args[0]); err != nil {
			return nil, fmt.Errorf("You have not unlocked the title %q.", args[0])
		}
		return nil, nil
	case "unequip":
		e.Achievements.Titles().Unequip()
		return nil, nil

	// Dialogue
	case "talk":
		if len(args) == 0 {
			return nil, errUsage
		}
		return nil, e.dialogueErr(e.Dialogue.Start(args[0]), args[0])
	case "next":
		return nil, e.dialogueErr(e.Dialogue.Next(), "")
	case "choose":
		if len(args) == 0 {
			return nil, errUsage
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, errUsage
		}
		return nil, e.dialogueErr(e.Dialogue.Choose(n-1), "")
	case "skip":
		return nil, e.dialogueErr(e.Dialogue.Skip(), "")
	case "end":
		return nil, e.dialogueErr(e.Dialogue.End(), "")
	case "battle":
		if len(args) == 0 || (args[0] != "win" && args[0] != "lose") {
			return nil, errUsage
		}
		return nil, e.dialogueErr(e.Dialogue.ResolveBattle(args[0] == "win"), "")
	case "trigger":
		return e.builtinTrigger(args)

	// Activity
	case "activity":
		return e.builtinActivity(), nil
	case "tier":
		if len(args) == 0 {
			return nil, errUsage
		}
		return nil, e.activityErr(e.Activity.Claim(args[0]), args[0])

	// Notifications and time
	case "ok":
		if !e.Notices.NotifyComplete() {
			return []string{"No notice to dismiss."}, nil
		}
		return nil, nil
	case "tick":
		e.Tick()
		return nil, nil
	case "wait":
		return e.builtinWait(args)
	}

	msg := fmt.Sprintf("I don't know how to %q.", intent.Verb)
	if s := suggestVerb(intent.Verb); len(s) > 0 {
		msg += " Did you mean: " + strings.Join(s, ", ") + "?"
	}
	return []string{msg, "Type 'help' for a list of commands."}, nil
}

// verbs are the command words suggestions are drawn from.
var verbs = []string{
	"help", "status", "quests", "quest", "accept", "complete", "force", "abandon", "fail",
	"report", "kill", "collect", "use", "win", "clear", "level", "floor", "login",
	"achievements", "claim", "titles", "equip", "unequip",
	"talk", "next", "choose", "skip", "end", "battle", "trigger",
	"activity", "tier", "ok", "tick", "wait",
}

// Verbs returns the console command words.
func Verbs() []string {
	return append([]string(nil), verbs...)
}

func suggestVerb(verb string) []string {
	var out []string
	for _, m := range fuzzy.Find(verb, verbs) {
		out = append(out, m.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// unknown builds the "not found" message of a table, with suggestions.
func (e *Engine) unknown(table content.Table, id string) error {
	msg := fmt.Sprintf("There is no %s %q.", table, id)
	if s := e.Catalog.Suggest(table, id); len(s) > 0 {
		msg += " Did you mean: " + strings.Join(s, ", ") + "?"
	}
	return errors.New(msg)
}

// --- Quests ---

func (e *Engine) questOp(args []string, what string, fn func(id string) error) ([]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	id := args[0]
	err := fn(id)
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, quest.ErrNotFound):
		return nil, e.unknown(content.TableQuest, id)
	case errors.Is(err, quest.ErrLocked):
		return nil, fmt.Errorf("%s is still locked.", e.questName(id))
	case errors.Is(err, quest.ErrAlreadyAccepted):
		return nil, fmt.Errorf("You are already on %s.", e.questName(id))
	case errors.Is(err, quest.ErrAlreadyCompleted):
		return nil, fmt.Errorf("You have already completed %s.", e.questName(id))
	case errors.Is(err, quest.ErrDailyLimit):
		return nil, fmt.Errorf("%s cannot be repeated again today.", e.questName(id))
	}
	return nil, fmt.Errorf("You can't %s %s right now.", what, e.questName(id))
}

// visibleQuest reports whether a quest belongs in the journal.
func visibleQuest(def *types.QuestDef, q types.Quest) bool {
	if def.Type != types.QuestHidden {
		return true
	}
	return q.State != types.QuestLocked && q.State != types.QuestNotAccepted
}

func (e *Engine) builtinQuests() []string {
	var lines []string
	for _, def := range e.Catalog.Quests() {
		q, _ := e.Quests.Get(def.ID)
		if !visibleQuest(def, q) {
			continue
		}
		line := fmt.Sprintf("%-14s %-16s %s", "["+string(q.State)+"]", def.ID, def.Name)
		if q.State == types.QuestAccepted || q.State == types.QuestSubmittable {
			line += " " + objectiveSummary(def, q)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return []string{"Your journal is empty."}
	}
	return lines
}

func objectiveSummary(def *types.QuestDef, q types.Quest) string {
	parts := make([]string, 0, len(def.Objectives))
	for _, o := range def.Objectives {
		parts = append(parts, fmt.Sprintf("%d/%d", min(q.Progress[o.ID], o.TargetCount), o.TargetCount))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (e *Engine) builtinQuest(id string) ([]string, error) {
	def, ok := e.Catalog.Quest(id)
	if !ok {
		return nil, e.unknown(content.TableQuest, id)
	}
	q, _ := e.Quests.Get(id)
	if !visibleQuest(def, q) {
		return nil, e.unknown(content.TableQuest, id)
	}

	lines := []string{
		fmt.Sprintf("%s [%s, %s]", def.Name, def.Type, q.State),
	}
	if def.Description != "" {
		lines = append(lines, def.Description)
	}
	for _, o := range def.Objectives {
		lines = append(lines, fmt.Sprintf("  - %s %d/%d", objectiveText(o), min(q.Progress[o.ID], o.TargetCount), o.TargetCount))
	}
	if len(def.Rewards) > 0 {
		lines = append(lines, "Rewards: "+formatRewards(def.Rewards))
	}
	if def.TimeLimit > 0 && q.State == types.QuestAccepted {
		left := q.AcceptedAt.Add(def.TimeLimit).Sub(e.clock.Now()).Round(time.Second)
		lines = append(lines, fmt.Sprintf("Time left: %s", max(left, 0)))
	}
	if q.RepeatCount > 0 {
		lines = append(lines, fmt.Sprintf("Completed %d time(s).", q.RepeatCount))
	}
	return lines, nil
}

// --- Gameplay events ---

func (e *Engine) builtinReport(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	p := types.Progress{Type: types.ObjectiveType(args[0]), Amount: 1}
	if !knownObjective(p.Type) {
		return nil, fmt.Errorf("Unknown event type %q.", args[0])
	}
	rest := args[1:]
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[len(rest)-1]); err == nil {
			p.Amount = n
			rest = rest[:len(rest)-1]
		}
	}
	if len(rest) > 0 {
		p.TargetID = rest[0]
	}
	p.Absolute = p.Type == types.ObjectiveReachLevel || p.Type == types.ObjectiveReachFloor
	e.Report(p)
	return nil, nil
}

var objectiveTypes = []types.ObjectiveType{
	types.ObjectiveKillMonster, types.ObjectiveCollectItem, types.ObjectiveWinBattle,
	types.ObjectiveCompleteLevel, types.ObjectiveReachLevel, types.ObjectiveReachFloor,
	types.ObjectiveFinishDialogue, types.ObjectiveUseSkill, types.ObjectiveLogin,
	types.ObjectiveCompleteQuest, types.ObjectiveUnlockAchievement, types.ObjectiveCustom,
}

func knownObjective(t types.ObjectiveType) bool {
	for _, k := range objectiveTypes {
		if k == t {
			return true
		}
	}
	return false
}

func (e *Engine) reportTarget(t types.ObjectiveType, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	p := types.Progress{Type: t, TargetID: args[0], Amount: 1}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return nil, errUsage
		}
		p.Amount = n
	}
	e.Report(p)
	return nil, nil
}

func (e *Engine) reportAbsolute(t types.ObjectiveType, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, errUsage
	}
	e.Report(types.Progress{Type: t, Amount: n, Absolute: true})
	return nil, nil
}

// --- Achievements ---

func (e *Engine) builtinAchievements() []string {
	var lines []string
	for _, a := range e.Achievements.Visible() {
		def, ok := e.Catalog.Achievement(a.ID)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%-14s %-16s %s", "["+string(a.State)+"]", def.ID, def.Name)
		switch def.Type {
		case types.AchievementStaged:
			line += " " + e.stageSummary(def, a)
		default:
			if a.State == types.AchievementInProgress {
				parts := make([]string, 0, len(def.Objectives))
				for _, o := range def.Objectives {
					parts = append(parts, fmt.Sprintf("%d/%d", min(a.Progress[o.ID], o.TargetCount), o.TargetCount))
				}
				line += " (" + strings.Join(parts, ", ") + ")"
			}
		}
		if def.Points > 0 {
			line += fmt.Sprintf(" %dpt", def.Points)
		}
		lines = append(lines, line)
	}
	lines = append(lines, fmt.Sprintf("Total points: %d", e.Achievements.TotalPoints()))
	return lines
}

func (e *Engine) stageSummary(def *types.AchievementDef, a types.Achievement) string {
	progress := e.Achievements.StageProgress(def.ID)
	parts := make([]string, 0, len(def.Stages))
	for _, st := range def.Stages {
		mark := " "
		switch {
		case a.ClaimedStages[st.ID]:
			mark = "x"
		case progress >= st.TargetCount:
			mark = "!"
		}
		parts = append(parts, fmt.Sprintf("[%s]%s:%d", mark, st.ID, st.TargetCount))
	}
	return fmt.Sprintf("%d %s", progress, strings.Join(parts, " "))
}

func (e *Engine) builtinClaim(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	id := args[0]
	var err error
	if len(args) > 1 {
		_, err = e.Achievements.ClaimStage(id, args[1])
	} else if def, ok := e.Catalog.Achievement(id); ok && def.Type == types.AchievementStaged {
		err = e.claimNextStage(def)
	} else {
		_, err = e.Achievements.Claim(id)
	}
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, achievement.ErrNotFound):
		return nil, e.unknown(content.TableAchievement, id)
	case errors.Is(err, achievement.ErrAlreadyClaimed):
		return nil, errors.New("Already claimed.")
	case errors.Is(err, achievement.ErrStageNotFound):
		return nil, fmt.Errorf("%s has no stage %q.", e.achievementName(id), args[1])
	case errors.Is(err, achievement.ErrStageNotReached):
		return nil, fmt.Errorf("That stage of %s is not reached yet.", e.achievementName(id))
	}
	return nil, fmt.Errorf("%s cannot be claimed yet.", e.achievementName(id))
}

// claimNextStage claims the lowest reached, unclaimed stage.
func (e *Engine) claimNextStage(def *types.AchievementDef) error {
	a, _ := e.Achievements.Get(def.ID)
	progress := e.Achievements.StageProgress(def.ID)
	for _, st := range def.Stages {
		if a.ClaimedStages[st.ID] {
			continue
		}
		if progress < st.TargetCount {
			return achievement.ErrStageNotReached
		}
		_, err := e.Achievements.ClaimStage(def.ID, st.ID)
		return err
	}
	return achievement.ErrAlreadyClaimed
}

func (e *Engine) builtinTitles() []string {
	titles := e.Achievements.Titles()
	unlocked := titles.Unlocked()
	if len(unlocked) == 0 {
		return []string{"You have no titles yet."}
	}
	lines := make([]string, 0, len(unlocked))
	for _, t := range unlocked {
		if t == titles.Equipped() {
			lines = append(lines, "* "+t+" (equipped)")
			continue
		}
		lines = append(lines, "  "+t)
	}
	return lines
}

// --- Dialogue ---

func (e *Engine) dialogueErr(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dialogue.ErrNotFound):
		return e.unknown(content.TableDialogue, id)
	case errors.Is(err, dialogue.ErrNotActive):
		return errors.New("Nobody is talking to you.")
	case errors.Is(err, dialogue.ErrSuspended):
		return errors.New("Finish the battle first ('battle win' or 'battle lose').")
	case errors.Is(err, dialogue.ErrNotSuspended):
		return errors.New("There is no battle to resolve.")
	case errors.Is(err, dialogue.ErrChoiceRequired):
		return errors.New("Pick a choice by number.")
	case errors.Is(err, dialogue.ErrNoChoices):
		return errors.New("There is nothing to choose here; type 'next'.")
	case errors.Is(err, dialogue.ErrInvalidChoice):
		return errors.New("There is no such choice.")
	}
	return err
}

func (e *Engine) builtinTrigger(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	scene, timing := args[0], ""
	vars := map[string]any{}
	for _, a := range args[1:] {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			timing = a
			continue
		}
		vars[k] = parseVar(v)
	}
	if _, ok := e.Triggers.Dispatch(scene, timing, vars); !ok {
		return []string{"Nothing happens."}, nil
	}
	return nil, nil
}

// parseVar reads a trigger variable as an int, float, bool or string.
func parseVar(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// --- Activity ---

func (e *Engine) builtinActivity() []string {
	lines := []string{fmt.Sprintf("Activity today: %d", e.Activity.Points())}
	for _, t := range e.Activity.Tiers() {
		mark := " "
		switch {
		case e.Activity.Claimed(t.ID):
			mark = "x"
		case e.Activity.Points() >= t.RequiredPoints:
			mark = "!"
		}
		line := fmt.Sprintf("  [%s] %-10s %3d", mark, t.ID, t.RequiredPoints)
		if len(t.Rewards) > 0 {
			line += "  " + formatRewards(t.Rewards)
		}
		lines = append(lines, line)
	}
	return lines
}

func (e *Engine) activityErr(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, activity.ErrUnknownTier):
		return e.unknown(content.TableActivityTier, id)
	case errors.Is(err, activity.ErrNotEnough):
		return fmt.Errorf("Not enough activity for %s yet.", id)
	case errors.Is(err, activity.ErrAlreadyClaimed):
		return fmt.Errorf("Tier %s is already claimed.", id)
	}
	return err
}

// --- Time and status ---

func (e *Engine) builtinWait(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		n, nerr := strconv.Atoi(args[0])
		if nerr != nil {
			return nil, errUsage
		}
		d = time.Duration(n) * time.Second
	}
	m, ok := e.clock.(*clock.Manual)
	if !ok {
		return []string{"Time only passes on its own here."}, nil
	}
	m.Advance(d)
	e.Tick()
	return []string{fmt.Sprintf("Time passes (%s).", d)}, nil
}

func (e *Engine) builtinStatus() []string {
	s := e.Status()
	lines := []string{
		fmt.Sprintf("Time: %s", e.clock.Now().Format(time.DateTime)),
		fmt.Sprintf("Active quests: %d  Points: %d  Activity: %d", s.ActiveQuests, s.Points, s.Activity),
	}
	if s.Title != "" {
		lines = append(lines, "Title: "+s.Title)
	}
	if s.Dialogue != "" {
		line := "Dialogue: " + s.Dialogue
		if s.BattlePending {
			line += " (battle pending)"
		}
		lines = append(lines, line)
	}
	if s.Notices > 0 {
		lines = append(lines, fmt.Sprintf("Notices: %d", s.Notices))
	}
	return lines
}
