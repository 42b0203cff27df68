package dialogue

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/engine/save"
	"github.com/nathoo/questline/types"
)

type fakeEffects struct {
	calls []string
}

func (f *fakeEffects) GrantQuest(id string) error {
	f.calls = append(f.calls, "grant_quest:"+id)
	return nil
}

func (f *fakeEffects) CompleteQuest(id string) error {
	f.calls = append(f.calls, "complete_quest:"+id)
	return nil
}

func (f *fakeEffects) GrantAchievement(id string) error {
	f.calls = append(f.calls, "grant_achievement:"+id)
	return nil
}

type harness struct {
	in    *Interpreter
	fx    *fakeEffects
	clock *clock.Manual
	log   []events.Event
}

func (h *harness) entered() []string {
	var out []string
	for _, e := range h.log {
		if p, ok := e.Payload.(events.DialogueNodeEntered); ok {
			out = append(out, p.Node.ID)
		}
	}
	return out
}

func (h *harness) count(k events.Kind) int {
	n := 0
	for _, e := range h.log {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func (h *harness) node() string {
	_, n := h.in.Current()
	if n == nil {
		return ""
	}
	return n.ID
}

func quest(id string) []types.Ref[types.QuestDef] {
	return []types.Ref[types.QuestDef]{{ID: id}}
}

func talk(id, actor, text, next string) *types.DialogueNode {
	return &types.DialogueNode{ID: id, Type: types.NodeTalk, ActorID: actor, Content: &types.NodeContent{Text: text}, Next: next}
}

func testDialogues() []*types.Dialogue {
	intro := &types.Dialogue{
		ID:    "d1",
		Kind:  types.DialogueMain,
		Entry: "greet",
		Nodes: map[string]*types.DialogueNode{
			"greet":       talk("greet", "elder", "Welcome.", "grant_sword"),
			"grant_sword": {ID: "grant_sword", Type: types.NodeGrantQuest, Quests: quest("q_sword"), Next: "toast"},
			"toast":       {ID: "toast", Type: types.NodeShowToast, Toast: "Quest accepted", Next: "ask"},
			"ask": {
				ID: "ask", Type: types.NodeTalk, ActorID: "elder",
				Content: &types.NodeContent{Text: "Ready?"},
				Choices: []types.Choice{
					{Label: "Yes", Action: types.ChoiceDefault},
					{Label: "Again", Action: types.ChoiceJump, Data: "greet"},
					{Label: "Leave", Action: types.ChoiceScene, Data: "town"},
					{Label: "Hint", Action: types.ChoiceToast, Data: "Try the cave"},
					{Label: "Broken", Action: types.ChoiceJump, Data: "nowhere"},
				},
				Next: "fight",
			},
			"fight": {ID: "fight", Type: types.NodeLoadBattle, Battle: "slime_king", Next: "after"},
			"after": talk("after", "elder", "Well done.", "items"),
			"items": {ID: "items", Type: types.NodeGrantItems, Items: []types.Reward{{Type: types.RewardItem, ID: 42, Count: 1}}, Next: "done"},
			"done":  {ID: "done", Type: types.NodeEnd},
		},
	}
	auto := &types.Dialogue{
		ID:    "d_auto",
		Entry: "a1",
		Nodes: map[string]*types.DialogueNode{
			"a1": {ID: "a1", Type: types.NodeSystemBlack, Advance: types.AdvanceAuto, AutoDuration: time.Second, Next: "a2"},
			"a2": {ID: "a2", Type: types.NodeSystemTransparent, Advance: types.AdvanceAuto, AutoDuration: time.Second, Next: "a3"},
			"a3": {ID: "a3", Type: types.NodeHideAll},
		},
	}
	loop := &types.Dialogue{
		ID:    "d_loop",
		Entry: "l1",
		Nodes: map[string]*types.DialogueNode{
			"l1": {ID: "l1", Type: types.NodeSoundEffect, Sound: "ping", Next: "l2"},
			"l2": {ID: "l2", Type: types.NodeRecord, Record: "loop", Next: "l1"},
		},
	}
	scene := &types.Dialogue{
		ID:    "d_scene",
		Entry: "s1",
		Nodes: map[string]*types.DialogueNode{
			"s1": {ID: "s1", Type: types.NodeCompleteQuest, Quests: quest("q_sword"), Next: "s2"},
			"s2": {ID: "s2", Type: types.NodeGrantAchievement, Achievements: []types.Ref[types.AchievementDef]{{ID: "a_hero"}}, Next: "s3"},
			"s3": {ID: "s3", Type: types.NodeLoadScene, Scene: "castle"},
		},
	}
	return []*types.Dialogue{intro, auto, loop, scene}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat := content.New()
	for _, d := range testDialogues() {
		if err := cat.AddDialogue(d); err != nil {
			t.Fatal(err)
		}
	}
	if err := cat.AddActor(&types.Actor{ID: "elder", DisplayName: "Village Elder", Portrait: "elder.png"}); err != nil {
		t.Fatal(err)
	}
	h := &harness{fx: &fakeEffects{}, clock: clock.NewManual(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC))}
	bus := events.NewBus()
	bus.SubscribeAll(func(e events.Event) { h.log = append(h.log, e) })
	h.in = New(cat, bus, h.fx, Options{Scheduler: h.clock, MaxSteps: 50})
	return h
}

func TestStart_StopsAtFirstVisibleNode(t *testing.T) {
	h := newHarness(t)
	if err := h.in.Start("d1"); err != nil {
		t.Fatal(err)
	}
	if h.node() != "greet" {
		t.Fatalf("current = %q, want greet", h.node())
	}
	for _, e := range h.log {
		if p, ok := e.Payload.(events.DialogueNodeEntered); ok {
			if p.Speaker != "Village Elder" || p.Portrait != "elder.png" {
				t.Errorf("speaker = %q/%q", p.Speaker, p.Portrait)
			}
		}
	}
	if err := h.in.Start("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown dialogue: err = %v", err)
	}
}

func TestNext_RunsBackgroundNodes(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d1")
	if err := h.in.Next(); err != nil {
		t.Fatal(err)
	}
	if h.node() != "ask" {
		t.Fatalf("current = %q, want ask", h.node())
	}
	want := []string{"greet", "grant_sword", "toast", "ask"}
	if !reflect.DeepEqual(h.entered(), want) {
		t.Errorf("entered = %v, want %v", h.entered(), want)
	}
	if !reflect.DeepEqual(h.fx.calls, []string{"grant_quest:q_sword"}) {
		t.Errorf("effects = %v", h.fx.calls)
	}
	if h.count(events.KindToastRequested) != 1 {
		t.Error("toast not requested")
	}
	if err := h.in.Next(); !errors.Is(err, ErrChoiceRequired) {
		t.Errorf("Next on choice node: err = %v", err)
	}
}

func TestChoose_Actions(t *testing.T) {
	tests := []struct {
		name       string
		choice     int
		wantNode   string
		wantActive bool
		wantKind   events.Kind
	}{
		{"default advances to next", 0, "fight", true, events.KindBattleRequested},
		{"jump re-enters", 1, "greet", true, events.KindDialogueChoiceSelected},
		{"scene ends", 2, "", false, events.KindSceneRequested},
		{"toast advances", 3, "fight", true, events.KindToastRequested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.in.Start("d1")
			h.in.Next()
			if err := h.in.Choose(tt.choice); err != nil {
				t.Fatalf("Choose(%d): %v", tt.choice, err)
			}
			if h.node() != tt.wantNode || h.in.Active() != tt.wantActive {
				t.Errorf("node = %q active = %v, want %q %v", h.node(), h.in.Active(), tt.wantNode, tt.wantActive)
			}
			if h.count(tt.wantKind) == 0 {
				t.Errorf("no %s event", tt.wantKind)
			}
		})
	}
}

func TestChoose_Errors(t *testing.T) {
	h := newHarness(t)
	if err := h.in.Choose(0); !errors.Is(err, ErrNotActive) {
		t.Errorf("idle: err = %v", err)
	}
	h.in.Start("d1")
	if err := h.in.Choose(0); !errors.Is(err, ErrNoChoices) {
		t.Errorf("no choices: err = %v", err)
	}
	h.in.Next()
	if err := h.in.Choose(9); !errors.Is(err, ErrInvalidChoice) {
		t.Errorf("out of range: err = %v", err)
	}
	if err := h.in.Choose(4); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("jump to missing node: err = %v", err)
	}
	if h.node() != "ask" {
		t.Errorf("failed choice moved to %q", h.node())
	}
}

func TestBattleSuspension(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d1")
	h.in.Next()
	h.in.Choose(0)

	if !h.in.Suspended() {
		t.Fatal("should be suspended on battle")
	}
	if err := h.in.Next(); !errors.Is(err, ErrSuspended) {
		t.Errorf("Next while suspended: err = %v", err)
	}
	if err := h.in.Start("d_auto"); !errors.Is(err, ErrSuspended) {
		t.Errorf("Start while suspended: err = %v", err)
	}

	if err := h.in.ResolveBattle(true); err != nil {
		t.Fatal(err)
	}
	if h.in.Suspended() || h.node() != "after" {
		t.Errorf("after battle: suspended=%v node=%q", h.in.Suspended(), h.node())
	}
	if err := h.in.ResolveBattle(true); !errors.Is(err, ErrNotSuspended) {
		t.Errorf("second resolve: err = %v", err)
	}

	h.in.Next()
	if h.in.Active() {
		t.Error("dialogue should have ended")
	}
	if h.count(events.KindRewardGranted) != 1 {
		t.Error("items not granted")
	}
}

func TestEnd_EmitsOnceAndMarksViewed(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d1")
	if err := h.in.End(); err != nil {
		t.Fatal(err)
	}
	if err := h.in.End(); !errors.Is(err, ErrNotActive) {
		t.Errorf("second End: err = %v", err)
	}
	if h.count(events.KindDialogueEnded) != 1 {
		t.Errorf("dialogue-end emitted %d times", h.count(events.KindDialogueEnded))
	}
	if !h.in.Viewed("d1") {
		t.Error("d1 not marked viewed")
	}

	var finished []types.Progress
	for _, e := range h.log {
		if p, ok := e.Payload.(events.ProgressReported); ok {
			finished = append(finished, p.Progress)
		}
	}
	want := []types.Progress{{Type: types.ObjectiveFinishDialogue, TargetID: "d1", Amount: 1}}
	if !reflect.DeepEqual(finished, want) {
		t.Errorf("progress = %+v, want %+v", finished, want)
	}
}

func TestTerminalNodeThenEnd(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d_scene")
	if h.in.Active() {
		t.Fatal("scene node should end the dialogue")
	}
	if !reflect.DeepEqual(h.fx.calls, []string{"complete_quest:q_sword", "grant_achievement:a_hero"}) {
		t.Errorf("effects = %v", h.fx.calls)
	}
	h.in.End()
	if h.count(events.KindDialogueEnded) != 1 {
		t.Errorf("dialogue-end emitted %d times", h.count(events.KindDialogueEnded))
	}
}

func TestAutoAdvance(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d_auto")
	if h.node() != "a1" {
		t.Fatalf("current = %q", h.node())
	}
	h.clock.Advance(time.Second)
	if h.node() != "a2" {
		t.Fatalf("after 1s current = %q, want a2", h.node())
	}
	h.clock.Advance(time.Second)
	if h.in.Active() {
		t.Error("dialogue should have ended at hide_all")
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d", h.clock.Pending())
	}
}

func TestAutoAdvance_CancelledByManualNext(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d_auto")
	h.in.Next() // a1 -> a2 by hand, cancelling a1's timer
	if h.node() != "a2" {
		t.Fatalf("current = %q", h.node())
	}
	h.clock.Advance(999 * time.Millisecond)
	if h.node() != "a2" {
		t.Errorf("stale timer advanced to %q", h.node())
	}
	if h.clock.Pending() != 1 {
		t.Errorf("pending timers = %d, want 1", h.clock.Pending())
	}
}

func TestAutoAdvance_CancelledByStart(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d_auto")
	h.in.Start("d1")
	h.clock.Advance(time.Minute)
	if h.node() != "greet" {
		t.Errorf("stale timer moved the new dialogue to %q", h.node())
	}
}

func TestCycleIsBounded(t *testing.T) {
	h := newHarness(t)
	if err := h.in.Start("d_loop"); err != nil {
		t.Fatal(err)
	}
	if h.in.Active() {
		t.Error("cyclic background dialogue should stop at the step limit")
	}
	if n := len(h.entered()); n != 50 {
		t.Errorf("entered %d nodes, want 50", n)
	}
	if h.count(events.KindDialogueEnded) != 1 {
		t.Error("dialogue-end not emitted once")
	}
}

func TestSkip(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d1")
	if err := h.in.Skip(); err != nil {
		t.Fatal(err)
	}
	if h.node() != "ask" {
		t.Fatalf("skip stopped at %q, want ask", h.node())
	}
	h.in.Choose(0)
	h.in.ResolveBattle(false)
	h.in.Skip()
	if h.in.Active() {
		t.Error("skip should run to the end")
	}
}

func TestResume_DoesNotReapplyEffects(t *testing.T) {
	h := newHarness(t)
	if err := h.in.Resume(save.DialogueProgress{DialogueID: "d1", NodeID: "grant_sword"}); err != nil {
		t.Fatal(err)
	}
	if len(h.fx.calls) != 0 {
		t.Errorf("effects re-applied: %v", h.fx.calls)
	}
	// The successor (a toast) runs, then the choice node is shown.
	if h.node() != "ask" {
		t.Errorf("resumed at %q, want ask", h.node())
	}
	if !h.log[0].Payload.(events.DialogueStarted).Resumed {
		t.Error("DialogueStarted should be flagged resumed")
	}
}

func TestResume_RoundTrip(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d1")
	h.in.Next()
	p, ok := h.in.Progress()
	if !ok || p != (save.DialogueProgress{DialogueID: "d1", NodeID: "ask"}) {
		t.Fatalf("Progress() = %+v, %v", p, ok)
	}

	h2 := newHarness(t)
	h2.in.Resume(p)
	if h2.node() != "ask" {
		t.Errorf("choice node not re-presented: %q", h2.node())
	}
	if len(h2.fx.calls) != 0 {
		t.Errorf("effects re-applied: %v", h2.fx.calls)
	}
	if got, _ := h2.in.Progress(); got != p {
		t.Errorf("Progress after resume = %+v, want %+v", got, p)
	}
}

func TestResume_BattleCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.in.Start("d1")
	h.in.Next()
	h.in.Choose(0)
	p, _ := h.in.Progress()
	if p.NodeID != "ask" {
		t.Fatalf("checkpoint during battle = %q, want ask", p.NodeID)
	}

	// A checkpoint on the battle node itself means it was resolved.
	h2 := newHarness(t)
	h2.in.Resume(save.DialogueProgress{DialogueID: "d1", NodeID: "fight"})
	if h2.node() != "after" {
		t.Errorf("resume after resolved battle at %q, want after", h2.node())
	}
}

func TestViewed(t *testing.T) {
	h := newHarness(t)
	h.in.LoadViewed([]string{"d_b", "d_a"})
	if !h.in.Viewed("d_a") || h.in.Viewed("d1") {
		t.Error("LoadViewed wrong")
	}
	h.in.Start("d_scene")
	if got := h.in.ViewedList(); !reflect.DeepEqual(got, []string{"d_a", "d_b", "d_scene"}) {
		t.Errorf("ViewedList() = %v", got)
	}
}
