// Package types defines the shared data structures for the questline engine.
// This package contains only type definitions: no logic, no methods.
package types

import "time"

// ObjectiveType identifies the kind of gameplay event an objective counts.
type ObjectiveType string

const (
	ObjectiveKillMonster       ObjectiveType = "kill_monster"
	ObjectiveCollectItem       ObjectiveType = "collect_item"
	ObjectiveWinBattle         ObjectiveType = "win_battle"
	ObjectiveCompleteLevel     ObjectiveType = "complete_level"
	ObjectiveReachLevel        ObjectiveType = "reach_level"
	ObjectiveReachFloor        ObjectiveType = "reach_floor"
	ObjectiveFinishDialogue    ObjectiveType = "finish_dialogue"
	ObjectiveUseSkill          ObjectiveType = "use_skill"
	ObjectiveLogin             ObjectiveType = "login"
	ObjectiveCompleteQuest     ObjectiveType = "complete_quest"
	ObjectiveUnlockAchievement ObjectiveType = "unlock_achievement"
	ObjectiveCustom            ObjectiveType = "custom"
)

// Objective is a single measurable condition of a quest or achievement.
type Objective struct {
	ID          string
	Type        ObjectiveType
	TargetID    string // empty: any target
	TargetCount int
	Description string
}

// Progress is a gameplay event fed to the objective ledgers.
// Absolute events set progress to Amount (levels, floors); others add it.
type Progress struct {
	Type     ObjectiveType
	TargetID string
	Amount   int
	Absolute bool
}

// RewardType identifies what a reward grants.
type RewardType string

const (
	RewardItem          RewardType = "item"
	RewardCurrency      RewardType = "currency"
	RewardExp           RewardType = "exp"
	RewardTitle         RewardType = "title"
	RewardBattlePassExp RewardType = "battle_pass_exp"
)

// Reward is one granted item, currency amount, title, etc.
type Reward struct {
	Type  RewardType `json:"type"`
	ID    int        `json:"id,omitempty"`
	Count int        `json:"count"`
	Title string     `json:"title,omitempty"`
}

// Ref is a cross-table reference: resolved when Def is non-nil,
// otherwise only the raw ID is known.
type Ref[T any] struct {
	ID  string
	Def *T
}

// QuestType classifies quests; periodic types are reset on schedule.
type QuestType string

const (
	QuestMain       QuestType = "main"
	QuestSide       QuestType = "side"
	QuestDaily      QuestType = "daily"
	QuestWeekly     QuestType = "weekly"
	QuestMonthly    QuestType = "monthly"
	QuestHidden     QuestType = "hidden"
	QuestBattlePass QuestType = "battle_pass"
)

// QuestState is the lifecycle state of a quest instance.
type QuestState string

const (
	QuestLocked      QuestState = "locked"
	QuestNotAccepted QuestState = "not_accepted"
	QuestAccepted    QuestState = "accepted"
	QuestSubmittable QuestState = "submittable"
	QuestCompleted   QuestState = "completed"
	QuestFailed      QuestState = "failed"
	QuestExpired     QuestState = "expired"
)

// QuestDef is the immutable definition of a quest.
type QuestDef struct {
	ID              string
	Name            string
	Description     string
	Type            QuestType
	Objectives      []Objective
	Rewards         []Reward
	Prerequisites   []Ref[QuestDef]
	FollowUps       []Ref[QuestDef]
	AutoAccept      bool
	AcceptCondition string // condition expression; empty is always true
	AutoComplete    bool
	Repeatable      bool
	MaxRepeat       int // 0 = unlimited
	DailyLimit      int // 0 = unlimited
	BattlePassExp   int
	ActivityPoints  int
	TimeLimit       time.Duration // 0 = never expires
}

// Quest is the mutable runtime state of a quest.
type Quest struct {
	ID                  string
	State               QuestState
	Progress            map[string]int // objective ID → count
	AcceptedAt          time.Time
	CompletedAt         time.Time
	RepeatCount         int
	DailyCompletedCount int
}

// AchievementType selects how an achievement evaluates progress.
type AchievementType string

const (
	AchievementOneTime    AchievementType = "one_time"
	AchievementCumulative AchievementType = "cumulative"
	AchievementStaged     AchievementType = "staged"
	AchievementHidden     AchievementType = "hidden"
)

// AchievementState is the lifecycle state of an achievement instance.
type AchievementState string

const (
	AchievementLocked     AchievementState = "locked"
	AchievementInProgress AchievementState = "in_progress"
	AchievementUnlocked   AchievementState = "unlocked"
	AchievementClaimed    AchievementState = "claimed"
)

// Stage is one threshold of a staged achievement.
type Stage struct {
	ID          string
	TargetCount int
	Rewards     []Reward
	Title       string
}

// AchievementDef is the immutable definition of an achievement.
type AchievementDef struct {
	ID             string
	Name           string
	Description    string
	Type           AchievementType
	Category       string
	Rarity         string
	Objectives     []Objective // one_time, cumulative, hidden
	StageObjective Objective   // staged: the counter every stage compares against
	Stages         []Stage     // staged, ascending TargetCount
	Rewards        []Reward
	Prerequisites  []Ref[AchievementDef]
	Points         int
	Title          string
}

// Achievement is the mutable runtime state of an achievement.
type Achievement struct {
	ID                string
	State             AchievementState
	Progress          map[string]int
	CurrentStageIndex int
	ClaimedStages     map[string]bool
	UnlockedAt        time.Time
	ClaimedAt         time.Time
}

// NodeType is the kind of a dialogue node.
type NodeType string

const (
	NodeTalk              NodeType = "talk"
	NodeSystemBlack       NodeType = "system_black"
	NodeSystemTransparent NodeType = "system_transparent"
	NodeGrantQuest        NodeType = "grant_quest"
	NodeGrantAchievement  NodeType = "grant_achievement"
	NodeGrantItems        NodeType = "grant_items"
	NodeRecord            NodeType = "record"
	NodeSoundEffect       NodeType = "sound_effect"
	NodeShowToast         NodeType = "show_toast"
	NodeCompleteQuest     NodeType = "complete_quest"
	NodeLoadScene         NodeType = "load_scene"
	NodeLoadBattle        NodeType = "load_battle"
	NodeHideAll           NodeType = "hide_all"
	NodeEnd               NodeType = "end"
)

// ChoiceAction is what selecting a dialogue choice does.
type ChoiceAction string

const (
	ChoiceDefault ChoiceAction = "default"
	ChoiceJump    ChoiceAction = "jump"
	ChoiceScene   ChoiceAction = "scene"
	ChoiceToast   ChoiceAction = "toast"
)

// AdvanceMode controls whether a visible node waits for the player.
type AdvanceMode string

const (
	AdvanceManual AdvanceMode = "manual"
	AdvanceAuto   AdvanceMode = "auto"
)

// NodeContent is the presentable part of a dialogue node.
type NodeContent struct {
	Text      string
	Image     string
	Animation string
}

// Choice is one player response option.
type Choice struct {
	Label  string
	Action ChoiceAction
	Data   string // node ID, scene name or toast text depending on Action
}

// DialogueNode is one immutable node of a dialogue graph.
type DialogueNode struct {
	ID           string
	Type         NodeType
	ActorID      string
	Content      *NodeContent
	Choices      []Choice
	Quests       []Ref[QuestDef]
	Achievements []Ref[AchievementDef]
	Items        []Reward
	Next         string
	Advance      AdvanceMode
	AutoDuration time.Duration
	Scene        string
	Battle       string
	Sound        string
	Toast        string
	Record       string
}

// DialogueKind separates story dialogues from optional side dialogues.
type DialogueKind string

const (
	DialogueMain DialogueKind = "main"
	DialogueSide DialogueKind = "side"
)

// Trigger declares when a dialogue may start on its own.
type Trigger struct {
	Scene     string // empty: any scene
	Timing    string // empty: any timing
	Condition string
	Priority  int
}

// Dialogue is a node arena plus its entry point.
type Dialogue struct {
	ID      string
	Kind    DialogueKind
	Entry   string
	Trigger *Trigger
	Nodes   map[string]*DialogueNode
}

// Actor is a speaker in dialogues.
type Actor struct {
	ID          string
	Name        string
	DisplayName string
	Description string
	Portrait    string
	Tags        []string
}

// ActivityTier is one claimable tier of the daily activity table.
type ActivityTier struct {
	ID             string
	RequiredPoints int
	Rewards        []Reward
}

// Intent is the parsed representation of a console command.
type Intent struct {
	Verb string
	Args []string
}
