// Package save defines the JSON save-data shape of every engine and the
// envelope written to the key-value store.
package save

import (
	"encoding/json"
	"time"
)

// Version is the current envelope version.
const Version = "1"

// QuestSave is one quest's runtime state.
type QuestSave struct {
	ID                  string         `json:"id"`
	State               string         `json:"state"`
	Progress            map[string]int `json:"progress"`
	AcceptedAt          int64          `json:"acceptedAt"`
	CompletedAt         int64          `json:"completedAt"`
	RepeatCount         int            `json:"repeatCount"`
	DailyCompletedCount int            `json:"dailyCompletedCount"`
}

// QuestManager is the quest engine's save shape.
type QuestManager struct {
	Quests           []QuestSave `json:"quests"`
	LastDailyReset   int64       `json:"lastDailyReset"`
	LastWeeklyReset  int64       `json:"lastWeeklyReset"`
	LastMonthlyReset int64       `json:"lastMonthlyReset"`
}

// AchievementSave is one achievement's runtime state.
type AchievementSave struct {
	ID                string         `json:"id"`
	State             string         `json:"state"`
	Progress          map[string]int `json:"progress"`
	CurrentStageIndex int            `json:"currentStageIndex"`
	ClaimedStages     []string       `json:"claimedStages"`
	UnlockedAt        int64          `json:"unlockedAt"`
	ClaimedAt         int64          `json:"claimedAt"`
}

// AchievementManager is the achievement engine's save shape.
type AchievementManager struct {
	Achievements    []AchievementSave `json:"achievements"`
	TotalPoints     int               `json:"totalPoints"`
	UnlockedTitles  []string          `json:"unlockedTitles"`
	EquippedTitleID string            `json:"equippedTitleId,omitempty"`
}

// DialogueProgress is the last checkpointed dialogue position.
type DialogueProgress struct {
	DialogueID string `json:"dialogueId"`
	NodeID     string `json:"nodeId"`
}

// ActivitySave is the daily activity accumulator's save shape.
type ActivitySave struct {
	Points       int      `json:"points"`
	ClaimedTiers []string `json:"claimedTiers"`
	LastReset    int64    `json:"lastReset"`
}

// Data is the envelope persisted per save slot.
type Data struct {
	Version      string             `json:"version"`
	SavedAt      int64              `json:"savedAt"`
	Quests       QuestManager       `json:"quests"`
	Achievements AchievementManager `json:"achievements"`
	Activity     ActivitySave       `json:"activity"`
	Dialogue     *DialogueProgress  `json:"dialogue,omitempty"`
	Viewed       []string           `json:"viewedDialogues"`
}

// Marshal serializes save data to indented JSON.
func Marshal(d *Data) ([]byte, error) {
	if d.Version == "" {
		d.Version = Version
	}
	return json.MarshalIndent(d, "", "  ")
}

// Unmarshal deserializes save data. Maps and slices are never nil after
// load.
func Unmarshal(data []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	Normalize(&d)
	return &d, nil
}

// Normalize replaces nil maps and slices with empty ones.
func Normalize(d *Data) {
	if d.Quests.Quests == nil {
		d.Quests.Quests = []QuestSave{}
	}
	for i := range d.Quests.Quests {
		if d.Quests.Quests[i].Progress == nil {
			d.Quests.Quests[i].Progress = map[string]int{}
		}
	}
	if d.Achievements.Achievements == nil {
		d.Achievements.Achievements = []AchievementSave{}
	}
	for i := range d.Achievements.Achievements {
		a := &d.Achievements.Achievements[i]
		if a.Progress == nil {
			a.Progress = map[string]int{}
		}
		if a.ClaimedStages == nil {
			a.ClaimedStages = []string{}
		}
	}
	if d.Achievements.UnlockedTitles == nil {
		d.Achievements.UnlockedTitles = []string{}
	}
	if d.Activity.ClaimedTiers == nil {
		d.Activity.ClaimedTiers = []string{}
	}
	if d.Viewed == nil {
		d.Viewed = []string{}
	}
}

// Millis converts a time to unix milliseconds; the zero time is 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Time converts unix milliseconds back to a time; 0 is the zero time.
func Time(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
