package loader

import (
	"testing"
	"time"

	"github.com/nathoo/questline/types"
	lua "github.com/yuin/gopher-lua"
)

// newTestVM creates a sandboxed Lua VM with the API registered and a fresh collector.
func newTestVM() (*lua.LState, *collector) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	coll := &collector{}
	registerAPI(L, coll)
	return L, coll
}

func TestCompileMeta(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Game {
			title = "Test Game",
			author = "Author",
			version = "1.0",
			intro = "Welcome!"
		}
	`); err != nil {
		t.Fatal(err)
	}

	meta := compileMeta(coll.game)
	want := Meta{Title: "Test Game", Author: "Author", Version: "1.0", Intro: "Welcome!"}
	if meta != want {
		t.Errorf("Meta = %+v, want %+v", meta, want)
	}
}

func TestObjectiveHelpers(t *testing.T) {
	tests := []struct {
		src  string
		want types.Objective
	}{
		{`return Kill("slime", 3)`, types.Objective{ID: "o1", Type: types.ObjectiveKillMonster, TargetID: "slime", TargetCount: 3}},
		{`return Kill("slime")`, types.Objective{ID: "o1", Type: types.ObjectiveKillMonster, TargetID: "slime", TargetCount: 1}},
		{`return Collect("herb", 5)`, types.Objective{ID: "o1", Type: types.ObjectiveCollectItem, TargetID: "herb", TargetCount: 5}},
		{`return WinBattle(2)`, types.Objective{ID: "o1", Type: types.ObjectiveWinBattle, TargetCount: 2}},
		{`return WinBattle("boss", 1)`, types.Objective{ID: "o1", Type: types.ObjectiveWinBattle, TargetID: "boss", TargetCount: 1}},
		{`return ReachLevel(10)`, types.Objective{ID: "o1", Type: types.ObjectiveReachLevel, TargetCount: 10}},
		{`return ReachFloor(4)`, types.Objective{ID: "o1", Type: types.ObjectiveReachFloor, TargetCount: 4}},
		{`return Login(7)`, types.Objective{ID: "o1", Type: types.ObjectiveLogin, TargetCount: 7}},
		{`return UseSkill("fireball", 2)`, types.Objective{ID: "o1", Type: types.ObjectiveUseSkill, TargetID: "fireball", TargetCount: 2}},
		{`return Objective { id = "talk", type = "custom", target = "elder", description = "Talk" }`,
			types.Objective{ID: "talk", Type: types.ObjectiveCustom, TargetID: "elder", TargetCount: 1, Description: "Talk"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			L, _ := newTestVM()
			defer L.Close()
			if err := L.DoString(tt.src); err != nil {
				t.Fatal(err)
			}
			got := compileObjective(L.CheckTable(-1), 1)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRewardHelpers(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		return { Item(42), Item(7, 3), Currency(1, 100), Exp(250), BattlePassExp(50), Title("Hero") }
	`); err != nil {
		t.Fatal(err)
	}

	got := compileRewards(L.CheckTable(-1))
	want := []types.Reward{
		{Type: types.RewardItem, ID: 42, Count: 1},
		{Type: types.RewardItem, ID: 7, Count: 3},
		{Type: types.RewardCurrency, ID: 1, Count: 100},
		{Type: types.RewardExp, Count: 250},
		{Type: types.RewardBattlePassExp, Count: 50},
		{Type: types.RewardTitle, Count: 1, Title: "Hero"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rewards, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reward %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCompileQuest_Defaults(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Quest "q1" {
			objectives = { Kill("slime"), Collect("gel", 2) },
			prerequisites = "q0",
			time_limit = 90,
		}
	`); err != nil {
		t.Fatal(err)
	}

	def, err := compileQuest(coll.quests[0])
	if err != nil {
		t.Fatal(err)
	}
	if def.ID != "q1" || def.Type != types.QuestSide {
		t.Errorf("ID/Type = %q/%q", def.ID, def.Type)
	}
	if def.Objectives[0].ID != "o1" || def.Objectives[1].ID != "o2" {
		t.Errorf("objective IDs = %q, %q", def.Objectives[0].ID, def.Objectives[1].ID)
	}
	if len(def.Prerequisites) != 1 || def.Prerequisites[0].ID != "q0" || def.Prerequisites[0].Def != nil {
		t.Errorf("prerequisites = %+v", def.Prerequisites)
	}
	if def.TimeLimit != 90*time.Second {
		t.Errorf("TimeLimit = %v, want 90s", def.TimeLimit)
	}
	if def.AutoAccept || def.Repeatable {
		t.Error("flags should default to false")
	}
}

func TestCompileQuest_BadTimeLimit(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`Quest "q1" { time_limit = "soon" }`); err != nil {
		t.Fatal(err)
	}
	if _, err := compileQuest(coll.quests[0]); err == nil {
		t.Error("expected error for unparseable time_limit")
	}
}

func TestCompileDialogue_EntryDefaultsToFirstNode(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Dialogue "d" {
			nodes = {
				Talk "a" { actor = "npc", text = "Hello", image = "npc.png", next = "b" },
				ShowToast "b" { toast = "Saved", advance = "manual" },
				LoadScene "c" { scene = "town" },
			}
		}
	`); err != nil {
		t.Fatal(err)
	}

	d, err := compileDialogue(coll.dialogues[0])
	if err != nil {
		t.Fatal(err)
	}
	if d.Entry != "a" {
		t.Errorf("Entry = %q, want a", d.Entry)
	}
	if d.Kind != types.DialogueMain {
		t.Errorf("Kind = %q, want main", d.Kind)
	}
	a := d.Nodes["a"]
	if a.Type != types.NodeTalk || a.ActorID != "npc" || a.Content == nil || a.Content.Image != "npc.png" {
		t.Errorf("node a = %+v", a)
	}
	if d.Nodes["b"].Content != nil {
		t.Error("node b should have no content")
	}
	if d.Nodes["b"].Advance != types.AdvanceManual || d.Nodes["b"].Toast != "Saved" {
		t.Errorf("node b = %+v", d.Nodes["b"])
	}
	if d.Nodes["c"].Scene != "town" {
		t.Errorf("node c scene = %q", d.Nodes["c"].Scene)
	}
}

func TestCompileDialogue_DuplicateNode(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Dialogue "d" { nodes = { Talk "a" { text = "1" }, Talk "a" { text = "2" } } }
	`); err != nil {
		t.Fatal(err)
	}
	if _, err := compileDialogue(coll.dialogues[0]); err == nil {
		t.Error("expected duplicate node error")
	}
}

func TestCompileNode_ChoicesAndRefs(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		return GrantQuest "g" {
			quests = { "q1", "q2" },
			achievements = "a1",
			items = { Item(5, 2) },
			choices = { Choice("Sure"), Choice("Go", "scene", "town") },
		}
	`); err != nil {
		t.Fatal(err)
	}

	n, err := compileNode(L.CheckTable(-1))
	if err != nil {
		t.Fatal(err)
	}
	if len(n.Quests) != 2 || n.Quests[1].ID != "q2" {
		t.Errorf("quests = %+v", n.Quests)
	}
	if len(n.Achievements) != 1 || n.Achievements[0].ID != "a1" {
		t.Errorf("achievements = %+v", n.Achievements)
	}
	if len(n.Items) != 1 || n.Items[0].Count != 2 {
		t.Errorf("items = %+v", n.Items)
	}
	want := []types.Choice{
		{Label: "Sure", Action: types.ChoiceDefault},
		{Label: "Go", Action: types.ChoiceScene, Data: "town"},
	}
	for i := range want {
		if n.Choices[i] != want[i] {
			t.Errorf("choice %d = %+v, want %+v", i, n.Choices[i], want[i])
		}
	}
}

func TestCompile_CollectsErrors(t *testing.T) {
	L, coll := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		Quest "q1" { objectives = { Login() } }
		Quest "q1" { objectives = { Login() } }
		Quest "q2" { prerequisites = { "ghost" } }
		Actor "npc" { name = "A" }
		Actor "npc" { name = "B" }
	`); err != nil {
		t.Fatal(err)
	}

	_, ve := compile(coll)
	assertContains(t, ve.Errors, `duplicate quest ID "q1"`)
	assertContains(t, ve.Errors, `duplicate actor ID "npc"`)
	assertContains(t, ve.Errors, `unknown quest "ghost"`)
}

func TestSortedLuaFiles(t *testing.T) {
	got := sortedLuaFiles([]string{"quests.lua", "game.lua", "actors.lua"})
	want := []string{"game.lua", "actors.lua", "quests.lua"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	got = sortedLuaFiles([]string{"b.lua", "a.lua"})
	if got[0] != "a.lua" || got[1] != "b.lua" {
		t.Errorf("got %v, want [a.lua b.lua]", got)
	}
}
