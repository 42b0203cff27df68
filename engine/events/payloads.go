package events

import "github.com/nathoo/questline/types"

// ProgressReported is a gameplay event entering the objective ledgers.
type ProgressReported struct {
	Progress types.Progress
}

// QuestAccepted is emitted when a quest moves to accepted.
type QuestAccepted struct {
	QuestID string
	Auto    bool
}

// QuestProgressUpdated is emitted per changed quest objective.
type QuestProgressUpdated struct {
	QuestID     string
	ObjectiveID string
	Progress    int
	Target      int
}

// QuestSubmittable is emitted when every objective of a quest is met.
type QuestSubmittable struct {
	QuestID string
}

// QuestCompleted is emitted when a quest is completed.
type QuestCompleted struct {
	QuestID        string
	Type           types.QuestType
	Forced         bool
	RepeatCount    int
	ActivityPoints int
	BattlePassExp  int
}

// QuestFailed is emitted when a quest fails.
type QuestFailed struct {
	QuestID string
}

// QuestExpired is emitted when a time-limited quest runs out.
type QuestExpired struct {
	QuestID string
}

// QuestAbandoned is emitted when the player drops an accepted quest.
type QuestAbandoned struct {
	QuestID string
}

// QuestReset is emitted once per periodic reset.
type QuestReset struct {
	Period   string
	QuestIDs []string
}

// RewardSource names what produced a reward.
type RewardSource string

const (
	SourceQuest            RewardSource = "quest"
	SourceAchievement      RewardSource = "achievement"
	SourceAchievementStage RewardSource = "achievement_stage"
	SourceDialogue         RewardSource = "dialogue"
	SourceActivity         RewardSource = "activity"
)

// RewardGranted carries rewards for the host to hand out.
type RewardGranted struct {
	Source   RewardSource
	SourceID string
	Rewards  []types.Reward
}

// AchievementProgressUpdated is emitted per changed achievement objective.
type AchievementProgressUpdated struct {
	AchievementID string
	ObjectiveID   string
	Progress      int
	Target        int
}

// AchievementUnlocked is emitted when a non-staged achievement unlocks.
type AchievementUnlocked struct {
	AchievementID string
	Points        int
	Forced        bool
}

// AchievementStageCompleted is emitted when a stage becomes claimable.
type AchievementStageCompleted struct {
	AchievementID string
	StageID       string
	StageIndex    int
}

// AchievementStageClaimed is emitted when a stage is claimed.
type AchievementStageClaimed struct {
	AchievementID string
	StageID       string
	StageIndex    int
}

// AchievementClaimed is emitted when an achievement is fully claimed.
type AchievementClaimed struct {
	AchievementID string
}

// TitleUnlocked is emitted the first time a title is granted.
type TitleUnlocked struct {
	TitleID string
}

// TitleEquipped is emitted when the equipped title changes.
// An empty TitleID means the title was unequipped.
type TitleEquipped struct {
	TitleID string
}

// DialogueStarted is emitted when a dialogue begins or resumes.
type DialogueStarted struct {
	DialogueID string
	Resumed    bool
}

// DialogueNodeEntered is emitted for every node the interpreter enters,
// including background nodes.
type DialogueNodeEntered struct {
	DialogueID string
	Node       *types.DialogueNode
	Speaker    string
	Portrait   string
}

// DialogueChoiceSelected is emitted when the player picks a choice.
type DialogueChoiceSelected struct {
	DialogueID string
	NodeID     string
	Index      int
	Choice     types.Choice
}

// DialogueEnded is emitted exactly once per dialogue run.
type DialogueEnded struct {
	DialogueID string
	NodeID     string
}

// SceneRequested asks the host to load a scene.
type SceneRequested struct {
	DialogueID string
	Scene      string
}

// BattleRequested asks the host to start a battle.
type BattleRequested struct {
	DialogueID string
	Battle     string
}

// BattleResolved is emitted when the host reports a battle outcome.
type BattleResolved struct {
	DialogueID string
	Battle     string
	Won        bool
}

// ToastRequested asks the host to show a toast message.
type ToastRequested struct {
	Text string
}

// SoundRequested asks the host to play a sound.
type SoundRequested struct {
	Sound string
}

// RecordWritten is emitted when a record node stores a checkpoint.
type RecordWritten struct {
	DialogueID string
	NodeID     string
	Key        string
}

// ActivityPointsChanged is emitted when daily activity points change.
type ActivityPointsChanged struct {
	Points int
	Delta  int
	Source string
}

// ActivityTierClaimed is emitted when an activity tier is claimed.
type ActivityTierClaimed struct {
	TierID string
}

// ActivityReset is emitted when the daily activity table is reset.
type ActivityReset struct{}

// NotificationPresented is emitted when the sequencer presents an
// announcement and no custom presenter is installed.
type NotificationPresented struct {
	NotificationID string
	Event          Event
}

func (ProgressReported) Kind() Kind           { return KindProgressReported }
func (QuestAccepted) Kind() Kind              { return KindQuestAccepted }
func (QuestProgressUpdated) Kind() Kind       { return KindQuestProgressUpdated }
func (QuestSubmittable) Kind() Kind           { return KindQuestSubmittable }
func (QuestCompleted) Kind() Kind             { return KindQuestCompleted }
func (QuestFailed) Kind() Kind                { return KindQuestFailed }
func (QuestExpired) Kind() Kind               { return KindQuestExpired }
func (QuestAbandoned) Kind() Kind             { return KindQuestAbandoned }
func (QuestReset) Kind() Kind                 { return KindQuestReset }
func (RewardGranted) Kind() Kind              { return KindRewardGranted }
func (AchievementProgressUpdated) Kind() Kind { return KindAchievementProgressUpdated }
func (AchievementUnlocked) Kind() Kind        { return KindAchievementUnlocked }
func (AchievementStageCompleted) Kind() Kind  { return KindAchievementStageCompleted }
func (AchievementStageClaimed) Kind() Kind    { return KindAchievementStageClaimed }
func (AchievementClaimed) Kind() Kind         { return KindAchievementClaimed }
func (TitleUnlocked) Kind() Kind              { return KindTitleUnlocked }
func (TitleEquipped) Kind() Kind              { return KindTitleEquipped }
func (DialogueStarted) Kind() Kind            { return KindDialogueStarted }
func (DialogueNodeEntered) Kind() Kind        { return KindDialogueNodeEntered }
func (DialogueChoiceSelected) Kind() Kind     { return KindDialogueChoiceSelected }
func (DialogueEnded) Kind() Kind              { return KindDialogueEnded }
func (SceneRequested) Kind() Kind             { return KindSceneRequested }
func (BattleRequested) Kind() Kind            { return KindBattleRequested }
func (BattleResolved) Kind() Kind             { return KindBattleResolved }
func (ToastRequested) Kind() Kind             { return KindToastRequested }
func (SoundRequested) Kind() Kind             { return KindSoundRequested }
func (RecordWritten) Kind() Kind              { return KindRecordWritten }
func (ActivityPointsChanged) Kind() Kind      { return KindActivityPointsChanged }
func (ActivityTierClaimed) Kind() Kind        { return KindActivityTierClaimed }
func (ActivityReset) Kind() Kind              { return KindActivityReset }
func (NotificationPresented) Kind() Kind      { return KindNotificationPresented }
