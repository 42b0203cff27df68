package engine

import (
	"fmt"
	"strings"

	"github.com/nathoo/questline/engine/dialogue"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/types"
)

// narrate turns one event into console lines. Events the console has
// nothing to say about return nil. Announcement kinds are narrated when the
// sequencer presents them, not when they happen.
func (e *Engine) narrate(ev events.Event) []string {
	switch p := ev.Payload.(type) {
	case events.NotificationPresented:
		return []string{"[!] " + e.announcement(p.Event)}

	case events.QuestProgressUpdated:
		return []string{fmt.Sprintf("  %s: %s %d/%d", e.questName(p.QuestID), e.objectiveLabel(p.QuestID, p.ObjectiveID), p.Progress, p.Target)}
	case events.QuestSubmittable:
		return []string{fmt.Sprintf("Quest ready to turn in: %s (complete %s).", e.questName(p.QuestID), p.QuestID)}
	case events.QuestFailed:
		return []string{fmt.Sprintf("Quest failed: %s.", e.questName(p.QuestID))}
	case events.QuestExpired:
		return []string{fmt.Sprintf("Quest expired: %s.", e.questName(p.QuestID))}
	case events.QuestAbandoned:
		return []string{fmt.Sprintf("Quest abandoned: %s.", e.questName(p.QuestID))}
	case events.QuestReset:
		return []string{fmt.Sprintf("The %s reset has run.", p.Period)}
	case events.RewardGranted:
		if len(p.Rewards) == 0 {
			return nil
		}
		return []string{"Received: " + formatRewards(p.Rewards) + "."}

	case events.AchievementStageClaimed:
		return []string{fmt.Sprintf("Claimed stage %s of %s.", p.StageID, e.achievementName(p.AchievementID))}
	case events.AchievementClaimed:
		return []string{fmt.Sprintf("Claimed %s.", e.achievementName(p.AchievementID))}
	case events.TitleEquipped:
		if p.TitleID == "" {
			return []string{"Title removed."}
		}
		return []string{fmt.Sprintf("Title equipped: %s.", p.TitleID)}

	case events.DialogueNodeEntered:
		return narrateNode(p)
	case events.DialogueChoiceSelected:
		return []string{"> " + p.Choice.Label}
	case events.DialogueEnded:
		return []string{"(end of dialogue)"}
	case events.SceneRequested:
		return []string{fmt.Sprintf("[scene: %s]", p.Scene)}
	case events.BattleRequested:
		return []string{fmt.Sprintf("[battle: %s] Type 'battle win' or 'battle lose' when it is over.", p.Battle)}
	case events.BattleResolved:
		if p.Won {
			return []string{"You won the battle."}
		}
		return []string{"You lost the battle."}
	case events.ToastRequested:
		return []string{"[toast] " + p.Text}

	case events.ActivityPointsChanged:
		return []string{fmt.Sprintf("Activity +%d (%d today).", p.Delta, p.Points)}
	case events.ActivityReset:
		return []string{"Daily activity has reset."}
	}
	return nil
}

func narrateNode(p events.DialogueNodeEntered) []string {
	n := p.Node
	if dialogue.IsBackground(n.Type) {
		return nil
	}
	switch n.Type {
	case types.NodeLoadScene, types.NodeLoadBattle, types.NodeEnd, types.NodeHideAll:
		return nil
	}

	var text string
	if n.Content != nil {
		text = n.Content.Text
	}
	var lines []string
	switch {
	case n.Type == types.NodeSystemBlack || n.Type == types.NodeSystemTransparent:
		lines = append(lines, "* "+text+" *")
	case p.Speaker != "":
		lines = append(lines, p.Speaker+": "+text)
	default:
		lines = append(lines, text)
	}
	for i, c := range n.Choices {
		lines = append(lines, fmt.Sprintf("  %d) %s", i+1, c.Label))
	}
	return lines
}

// announcement is the popup text of an announced event.
func (e *Engine) announcement(ev events.Event) string {
	switch p := ev.Payload.(type) {
	case events.QuestAccepted:
		return "New quest: " + e.questName(p.QuestID)
	case events.QuestCompleted:
		return "Quest complete: " + e.questName(p.QuestID)
	case events.AchievementUnlocked:
		if p.Points > 0 {
			return fmt.Sprintf("Achievement unlocked: %s (+%d)", e.achievementName(p.AchievementID), p.Points)
		}
		return "Achievement unlocked: " + e.achievementName(p.AchievementID)
	case events.AchievementStageCompleted:
		return fmt.Sprintf("Achievement stage reached: %s (%s)", e.achievementName(p.AchievementID), p.StageID)
	case events.TitleUnlocked:
		return "Title unlocked: " + p.TitleID
	case events.ActivityTierClaimed:
		return "Activity reward claimed: " + p.TierID
	}
	return ev.Kind.String()
}

func (e *Engine) questName(id string) string {
	if def, ok := e.Catalog.Quest(id); ok && def.Name != "" {
		return def.Name
	}
	return id
}

func (e *Engine) achievementName(id string) string {
	if def, ok := e.Catalog.Achievement(id); ok && def.Name != "" {
		return def.Name
	}
	return id
}

func (e *Engine) objectiveLabel(questID, objectiveID string) string {
	def, ok := e.Catalog.Quest(questID)
	if !ok {
		return objectiveID
	}
	for _, o := range def.Objectives {
		if o.ID == objectiveID {
			return objectiveText(o)
		}
	}
	return objectiveID
}

func objectiveText(o types.Objective) string {
	if o.Description != "" {
		return o.Description
	}
	if o.TargetID != "" {
		return fmt.Sprintf("%s %s", o.Type, o.TargetID)
	}
	return string(o.Type)
}

func formatRewards(rewards []types.Reward) string {
	parts := make([]string, 0, len(rewards))
	for _, r := range rewards {
		parts = append(parts, formatReward(r))
	}
	return strings.Join(parts, ", ")
}

func formatReward(r types.Reward) string {
	switch r.Type {
	case types.RewardItem:
		return fmt.Sprintf("item #%d x%d", r.ID, r.Count)
	case types.RewardCurrency:
		return fmt.Sprintf("%d currency #%d", r.Count, r.ID)
	case types.RewardExp:
		return fmt.Sprintf("%d exp", r.Count)
	case types.RewardTitle:
		return fmt.Sprintf("title %q", r.Title)
	case types.RewardBattlePassExp:
		return fmt.Sprintf("%d battle pass exp", r.Count)
	}
	return fmt.Sprintf("%s x%d", r.Type, r.Count)
}
