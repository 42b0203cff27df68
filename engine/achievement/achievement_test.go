package achievement

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/types"
)

type harness struct {
	eng *Engine
	bus *events.Bus
	log []events.Event
}

func (h *harness) report(typ types.ObjectiveType, target string, n int) {
	h.bus.Emit(events.ProgressReported{Progress: types.Progress{Type: typ, TargetID: target, Amount: n}})
}

func (h *harness) payloads(k events.Kind) []events.Payload {
	var out []events.Payload
	for _, e := range h.log {
		if e.Kind == k {
			out = append(out, e.Payload)
		}
	}
	return out
}

func newHarness(t *testing.T, defs ...*types.AchievementDef) *harness {
	t.Helper()
	cat := content.New()
	for _, d := range defs {
		if err := cat.AddAchievement(d); err != nil {
			t.Fatal(err)
		}
	}
	cat.Normalize()
	h := &harness{bus: events.NewBus()}
	h.bus.SubscribeAll(func(e events.Event) { h.log = append(h.log, e) })
	h.eng = New(cat, h.bus, Options{Clock: clock.NewManual(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC))})
	return h
}

func slayer() *types.AchievementDef {
	return &types.AchievementDef{
		ID:   "slayer",
		Type: types.AchievementStaged,
		StageObjective: types.Objective{
			ID: "kills", Type: types.ObjectiveKillMonster,
		},
		Stages: []types.Stage{
			{ID: "s10", TargetCount: 10, Rewards: []types.Reward{{Type: types.RewardCurrency, ID: 1, Count: 100}}},
			{ID: "s50", TargetCount: 50, Title: "veteran"},
			{ID: "s100", TargetCount: 100, Rewards: []types.Reward{{Type: types.RewardItem, ID: 7, Count: 1}}},
		},
		Points: 30,
		Title:  "slayer",
	}
}

func TestOneTime_KeepsLargestSingleEvent(t *testing.T) {
	h := newHarness(t, &types.AchievementDef{
		ID:         "big_hit",
		Type:       types.AchievementOneTime,
		Objectives: []types.Objective{{ID: "dmg", Type: types.ObjectiveUseSkill, TargetCount: 1000}},
		Points:     10,
	})

	h.report(types.ObjectiveUseSkill, "", 400)
	h.report(types.ObjectiveUseSkill, "", 300)
	h.report(types.ObjectiveUseSkill, "", 500)
	a, _ := h.eng.Get("big_hit")
	if a.Progress["dmg"] != 500 || a.State != types.AchievementInProgress {
		t.Fatalf("after small hits: %+v", a)
	}

	h.report(types.ObjectiveUseSkill, "", 1200)
	a, _ = h.eng.Get("big_hit")
	if a.State != types.AchievementUnlocked || a.Progress["dmg"] != 1000 {
		t.Errorf("after big hit: %+v", a)
	}
	if h.eng.TotalPoints() != 10 {
		t.Errorf("TotalPoints = %d, want 10", h.eng.TotalPoints())
	}
}

func TestCumulative_SumsAndUnlocksOnce(t *testing.T) {
	h := newHarness(t, &types.AchievementDef{
		ID:         "gatherer",
		Type:       types.AchievementCumulative,
		Objectives: []types.Objective{{ID: "herbs", Type: types.ObjectiveCollectItem, TargetID: "herb", TargetCount: 5}},
		Title:      "herbalist",
	})
	for i := 0; i < 8; i++ {
		h.report(types.ObjectiveCollectItem, "herb", 1)
	}
	h.report(types.ObjectiveCollectItem, "stone", 10)

	a, _ := h.eng.Get("gatherer")
	if a.State != types.AchievementUnlocked || a.Progress["herbs"] != 5 {
		t.Errorf("achievement = %+v", a)
	}
	if n := len(h.payloads(events.KindAchievementUnlocked)); n != 1 {
		t.Errorf("unlocked emitted %d times", n)
	}
	if !h.eng.Titles().Has("herbalist") {
		t.Error("title not unlocked")
	}
}

func TestStaged_StageEventsWithoutStateChange(t *testing.T) {
	h := newHarness(t, slayer())

	h.report(types.ObjectiveKillMonster, "slime", 9)
	if h.eng.HasNewStageCompleted("slayer") {
		t.Error("no stage should be reached at 9")
	}
	h.report(types.ObjectiveKillMonster, "slime", 45)

	var stages []string
	for _, p := range h.payloads(events.KindAchievementStageCompleted) {
		stages = append(stages, p.(events.AchievementStageCompleted).StageID)
	}
	if !reflect.DeepEqual(stages, []string{"s10", "s50"}) {
		t.Errorf("stage events = %v, want [s10 s50]", stages)
	}
	a, _ := h.eng.Get("slayer")
	if a.State != types.AchievementInProgress {
		t.Errorf("state = %s, want in_progress", a.State)
	}
	if !h.eng.HasNewStageCompleted("slayer") {
		t.Error("HasNewStageCompleted should be true at 54")
	}

	// Progress is clamped to the final stage target.
	h.report(types.ObjectiveKillMonster, "", 500)
	a, _ = h.eng.Get("slayer")
	if a.Progress["kills"] != 100 {
		t.Errorf("progress = %d, want 100", a.Progress["kills"])
	}
	if got := h.eng.StageProgress("slayer"); got != 100 {
		t.Errorf("StageProgress = %d, want 100", got)
	}
}

func TestClaimStage_ThresholdOrderAndIndex(t *testing.T) {
	h := newHarness(t, slayer())
	h.report(types.ObjectiveKillMonster, "", 60)

	if _, err := h.eng.ClaimStage("slayer", "s100"); !errors.Is(err, ErrStageNotReached) {
		t.Errorf("s100 at 60: err = %v", err)
	}

	// Claiming s50 before s10 is allowed; the index stays at the lowest
	// unclaimed stage.
	if _, err := h.eng.ClaimStage("slayer", "s50"); err != nil {
		t.Fatalf("claim s50: %v", err)
	}
	a, _ := h.eng.Get("slayer")
	if a.CurrentStageIndex != 0 {
		t.Errorf("index = %d, want 0", a.CurrentStageIndex)
	}
	if !h.eng.Titles().Has("veteran") {
		t.Error("stage title not unlocked")
	}

	rewards, err := h.eng.ClaimStage("slayer", "s10")
	if err != nil {
		t.Fatalf("claim s10: %v", err)
	}
	if len(rewards) != 1 || rewards[0].Count != 100 {
		t.Errorf("s10 rewards = %+v", rewards)
	}
	a, _ = h.eng.Get("slayer")
	if a.CurrentStageIndex != 2 {
		t.Errorf("index = %d, want 2", a.CurrentStageIndex)
	}
	if _, err := h.eng.ClaimStage("slayer", "s10"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("double claim: err = %v", err)
	}
	if h.eng.HasNewStageCompleted("slayer") {
		t.Error("nothing claimable at 60 after claiming s10 and s50")
	}

	h.report(types.ObjectiveKillMonster, "", 40)
	if _, err := h.eng.ClaimStage("slayer", "s100"); err != nil {
		t.Fatalf("claim s100: %v", err)
	}
	a, _ = h.eng.Get("slayer")
	if a.State != types.AchievementClaimed || a.CurrentStageIndex != 3 {
		t.Errorf("after all stages: %+v", a)
	}
	if h.eng.TotalPoints() != 30 {
		t.Errorf("TotalPoints = %d, want 30", h.eng.TotalPoints())
	}
	if len(h.payloads(events.KindAchievementClaimed)) != 1 {
		t.Error("achievement-claimed not emitted exactly once")
	}
}

func TestClaimStage_IndexNeverDecreases(t *testing.T) {
	h := newHarness(t, slayer())
	h.report(types.ObjectiveKillMonster, "", 100)
	last := 0
	for _, st := range []string{"s100", "s10", "s50"} {
		if _, err := h.eng.ClaimStage("slayer", st); err != nil {
			t.Fatalf("claim %s: %v", st, err)
		}
		a, _ := h.eng.Get("slayer")
		if a.CurrentStageIndex < last {
			t.Fatalf("index decreased from %d to %d", last, a.CurrentStageIndex)
		}
		last = a.CurrentStageIndex
	}
}

func TestClaimStage_Errors(t *testing.T) {
	plain := &types.AchievementDef{ID: "plain", Type: types.AchievementCumulative}
	h := newHarness(t, slayer(), plain)

	tests := []struct {
		id, stage string
		want      error
	}{
		{"nope", "s10", ErrNotFound},
		{"plain", "s10", ErrNotStaged},
		{"slayer", "s999", ErrStageNotFound},
		{"slayer", "s10", ErrStageNotReached},
	}
	for _, tt := range tests {
		t.Run(tt.id+"/"+tt.stage, func(t *testing.T) {
			if _, err := h.eng.ClaimStage(tt.id, tt.stage); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClaim_NonStaged(t *testing.T) {
	def := &types.AchievementDef{
		ID:         "first_login",
		Type:       types.AchievementOneTime,
		Objectives: []types.Objective{{ID: "o", Type: types.ObjectiveLogin, TargetCount: 1}},
		Rewards:    []types.Reward{{Type: types.RewardExp, Count: 50}},
	}
	h := newHarness(t, def, slayer())

	if _, err := h.eng.Claim("first_login"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("claim before unlock: err = %v", err)
	}
	h.report(types.ObjectiveLogin, "", 1)
	rewards, err := h.eng.Claim("first_login")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(rewards) != 1 || rewards[0].Count != 50 {
		t.Errorf("rewards = %+v", rewards)
	}
	if _, err := h.eng.Claim("first_login"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("double claim: err = %v", err)
	}
	if _, err := h.eng.Claim("slayer"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("claim staged: err = %v", err)
	}
}

func TestForceUnlock(t *testing.T) {
	def := &types.AchievementDef{
		ID:         "met_elder",
		Type:       types.AchievementOneTime,
		Objectives: []types.Objective{{ID: "talk", Type: types.ObjectiveFinishDialogue, TargetID: "d_elder", TargetCount: 1}},
		Points:     5,
	}
	h := newHarness(t, def, slayer())

	if err := h.eng.ForceUnlock("met_elder"); err != nil {
		t.Fatal(err)
	}
	if err := h.eng.ForceUnlock("met_elder"); err != nil {
		t.Fatal(err)
	}
	a, _ := h.eng.Get("met_elder")
	if a.State != types.AchievementUnlocked || a.Progress["talk"] != 1 {
		t.Errorf("after force: %+v", a)
	}
	unlocked := h.payloads(events.KindAchievementUnlocked)
	if len(unlocked) != 1 || !unlocked[0].(events.AchievementUnlocked).Forced {
		t.Errorf("unlocked events = %+v", unlocked)
	}
	if h.eng.TotalPoints() != 5 {
		t.Errorf("points = %d, want 5 (no double count)", h.eng.TotalPoints())
	}

	if err := h.eng.ForceUnlock("slayer"); err != nil {
		t.Fatal(err)
	}
	if !h.eng.HasNewStageCompleted("slayer") {
		t.Error("forced staged achievement should have claimable stages")
	}
	if err := h.eng.ForceUnlock("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown: err = %v", err)
	}
}

func TestPrerequisitesAndHidden(t *testing.T) {
	first := &types.AchievementDef{
		ID:         "first",
		Type:       types.AchievementCumulative,
		Objectives: []types.Objective{{ID: "o", Type: types.ObjectiveLogin, TargetCount: 1}},
	}
	second := &types.AchievementDef{
		ID:            "second",
		Type:          types.AchievementHidden,
		Objectives:    []types.Objective{{ID: "gem", Type: types.ObjectiveCollectItem, TargetID: "gem", TargetCount: 1}},
		Prerequisites: []types.Ref[types.AchievementDef]{{ID: "first"}},
	}
	h := newHarness(t, first, second)

	if vis := h.eng.Visible(); len(vis) != 1 || vis[0].ID != "first" {
		t.Errorf("Visible() = %+v, want only first", vis)
	}
	if st, _ := h.eng.AchievementState("second"); st != types.AchievementLocked {
		t.Errorf("second state = %s, want locked", st)
	}

	// Progress toward a locked achievement is ignored.
	h.report(types.ObjectiveCollectItem, "gem", 1)
	if a, _ := h.eng.Get("second"); a.State != types.AchievementLocked || a.Progress["gem"] != 0 {
		t.Errorf("locked second advanced: %+v", a)
	}
	h.report(types.ObjectiveLogin, "", 1)
	if a, _ := h.eng.Get("second"); a.State != types.AchievementInProgress {
		t.Errorf("second after prerequisite = %+v", a)
	}
	h.report(types.ObjectiveCollectItem, "gem", 1)
	if a, _ := h.eng.Get("second"); a.State != types.AchievementUnlocked {
		t.Errorf("second = %+v", a)
	}
	if vis := h.eng.Visible(); len(vis) != 2 {
		t.Errorf("Visible() after unlock has %d entries", len(vis))
	}
}

func TestPrerequisite_DependantWaitsForNextEvent(t *testing.T) {
	kill := types.Objective{ID: "o", Type: types.ObjectiveKillMonster, TargetCount: 1}
	h := newHarness(t,
		&types.AchievementDef{ID: "a", Type: types.AchievementCumulative, Objectives: []types.Objective{kill}},
		&types.AchievementDef{
			ID:            "b",
			Type:          types.AchievementCumulative,
			Objectives:    []types.Objective{kill},
			Prerequisites: []types.Ref[types.AchievementDef]{{ID: "a"}},
		},
	)

	h.report(types.ObjectiveKillMonster, "", 1)
	if st, _ := h.eng.AchievementState("a"); st != types.AchievementUnlocked {
		t.Fatalf("a state = %s, want unlocked", st)
	}
	b, _ := h.eng.Get("b")
	if b.State != types.AchievementInProgress || b.Progress["o"] != 0 {
		t.Errorf("dependant counted the unlocking kill: state=%s progress=%v", b.State, b.Progress)
	}

	h.report(types.ObjectiveKillMonster, "", 1)
	if st, _ := h.eng.AchievementState("b"); st != types.AchievementUnlocked {
		t.Errorf("b state after its own kill = %s, want unlocked", st)
	}
}

func TestTitles(t *testing.T) {
	h := newHarness(t)
	titles := h.eng.Titles()

	if err := titles.Equip("hero"); !errors.Is(err, ErrTitleLocked) {
		t.Errorf("equip locked: err = %v", err)
	}
	if !titles.Unlock("hero") || titles.Unlock("hero") {
		t.Error("Unlock should succeed once")
	}
	if err := titles.Equip("hero"); err != nil {
		t.Fatal(err)
	}
	if titles.Equipped() != "hero" {
		t.Errorf("Equipped() = %q", titles.Equipped())
	}
	titles.Unequip()
	if titles.Equipped() != "" {
		t.Error("Unequip did not clear")
	}
	if len(h.payloads(events.KindTitleEquipped)) != 2 {
		t.Errorf("title-equipped events = %d, want 2", len(h.payloads(events.KindTitleEquipped)))
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	h := newHarness(t, slayer())
	h.report(types.ObjectiveKillMonster, "", 60)
	h.eng.ClaimStage("slayer", "s50")
	h.eng.Titles().Equip("veteran")
	saved := h.eng.Save()

	h2 := newHarness(t, slayer())
	h2.eng.Load(saved)
	if len(h2.log) != 0 {
		t.Errorf("Load emitted %d events", len(h2.log))
	}
	if !reflect.DeepEqual(h2.eng.Save(), saved) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", h2.eng.Save(), saved)
	}
	if h2.eng.Titles().Equipped() != "veteran" {
		t.Error("equipped title lost")
	}
	// A claimed stage stays claimed after load.
	if _, err := h2.eng.ClaimStage("slayer", "s50"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("claim after load: err = %v", err)
	}
}
