package loader

import (
	"github.com/nathoo/questline/types"
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerNodeConstructors(L)
	registerObjectiveHelpers(L)
	registerRewardHelpers(L)
	registerMiscHelpers(L)
}

// curried registers name so that `name "id" { ... }` calls fn(id, table).
func curried(L *lua.LState, name string, fn func(id string, tbl *lua.LTable)) {
	L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			fn(id, L.CheckTable(1))
			return 0
		}))
		return 1
	}))
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", ... }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	// Quest "id" { ... }
	curried(L, "Quest", func(id string, tbl *lua.LTable) {
		coll.quests = append(coll.quests, rawDef{id: id, table: tbl})
	})

	// Achievement "id" { ... }
	curried(L, "Achievement", func(id string, tbl *lua.LTable) {
		coll.achievements = append(coll.achievements, rawDef{id: id, table: tbl})
	})

	// Dialogue "id" { entry = "...", nodes = { Talk "n1" {...}, ... } }
	curried(L, "Dialogue", func(id string, tbl *lua.LTable) {
		coll.dialogues = append(coll.dialogues, rawDef{id: id, table: tbl})
	})

	// Actor "id" { name = "...", ... }
	curried(L, "Actor", func(id string, tbl *lua.LTable) {
		coll.actors = append(coll.actors, rawDef{id: id, table: tbl})
	})

	// ActivityTier "id" { points = 20, rewards = {...} }
	curried(L, "ActivityTier", func(id string, tbl *lua.LTable) {
		coll.tiers = append(coll.tiers, rawDef{id: id, table: tbl})
	})
}

// nodeConstructors maps Lua names to node types.
var nodeConstructors = map[string]types.NodeType{
	"Talk":              types.NodeTalk,
	"SystemBlack":       types.NodeSystemBlack,
	"SystemTransparent": types.NodeSystemTransparent,
	"GrantQuest":        types.NodeGrantQuest,
	"GrantAchievement":  types.NodeGrantAchievement,
	"GrantItems":        types.NodeGrantItems,
	"Record":            types.NodeRecord,
	"SoundEffect":       types.NodeSoundEffect,
	"ShowToast":         types.NodeShowToast,
	"CompleteQuest":     types.NodeCompleteQuest,
	"LoadScene":         types.NodeLoadScene,
	"LoadBattle":        types.NodeLoadBattle,
	"HideAll":           types.NodeHideAll,
	"End":               types.NodeEnd,
}

// registerNodeConstructors installs `Talk "id" { ... }` and friends. Each
// returns its table tagged with the node id and type.
func registerNodeConstructors(L *lua.LState) {
	for name, nodeType := range nodeConstructors {
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			id := L.CheckString(1)
			L.Push(L.NewFunction(func(L *lua.LState) int {
				tbl := L.OptTable(1, L.NewTable())
				tbl.RawSetString("__node_id", lua.LString(id))
				tbl.RawSetString("__node_type", lua.LString(nodeType))
				L.Push(tbl)
				return 1
			}))
			return 1
		}))
	}
}

// objective builds an objective table.
func objective(L *lua.LState, objType types.ObjectiveType, target string, count lua.LNumber) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(objType))
	if target != "" {
		tbl.RawSetString("target", lua.LString(target))
	}
	tbl.RawSetString("count", count)
	return tbl
}

func registerObjectiveHelpers(L *lua.LState) {
	// Objective { type = "...", target = "...", count = n, id = "...", description = "..." }
	L.SetGlobal("Objective", L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}))

	// Kill("slime", 3)
	L.SetGlobal("Kill", L.NewFunction(func(L *lua.LState) int {
		L.Push(objective(L, types.ObjectiveKillMonster, L.CheckString(1), L.OptNumber(2, 1)))
		return 1
	}))

	// Collect("herb", 5)
	L.SetGlobal("Collect", L.NewFunction(func(L *lua.LState) int {
		L.Push(objective(L, types.ObjectiveCollectItem, L.CheckString(1), L.OptNumber(2, 1)))
		return 1
	}))

	// WinBattle(n) or WinBattle("boss", n)
	L.SetGlobal("WinBattle", L.NewFunction(func(L *lua.LState) int {
		if s, ok := L.Get(1).(lua.LString); ok {
			L.Push(objective(L, types.ObjectiveWinBattle, string(s), L.OptNumber(2, 1)))
			return 1
		}
		L.Push(objective(L, types.ObjectiveWinBattle, "", L.OptNumber(1, 1)))
		return 1
	}))

	// ReachLevel(10)
	L.SetGlobal("ReachLevel", L.NewFunction(func(L *lua.LState) int {
		L.Push(objective(L, types.ObjectiveReachLevel, "", L.CheckNumber(1)))
		return 1
	}))

	// ReachFloor(5)
	L.SetGlobal("ReachFloor", L.NewFunction(func(L *lua.LState) int {
		L.Push(objective(L, types.ObjectiveReachFloor, "", L.CheckNumber(1)))
		return 1
	}))

	// Login(7)
	L.SetGlobal("Login", L.NewFunction(func(L *lua.LState) int {
		L.Push(objective(L, types.ObjectiveLogin, "", L.OptNumber(1, 1)))
		return 1
	}))

	// UseSkill("fireball", 3)
	L.SetGlobal("UseSkill", L.NewFunction(func(L *lua.LState) int {
		L.Push(objective(L, types.ObjectiveUseSkill, L.CheckString(1), L.OptNumber(2, 1)))
		return 1
	}))
}

func reward(L *lua.LState, rt types.RewardType, id, count lua.LNumber) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(rt))
	if id != 0 {
		tbl.RawSetString("id", id)
	}
	tbl.RawSetString("count", count)
	return tbl
}

func registerRewardHelpers(L *lua.LState) {
	// Item(42, 1)
	L.SetGlobal("Item", L.NewFunction(func(L *lua.LState) int {
		L.Push(reward(L, types.RewardItem, L.CheckNumber(1), L.OptNumber(2, 1)))
		return 1
	}))

	// Currency(1, 100)
	L.SetGlobal("Currency", L.NewFunction(func(L *lua.LState) int {
		L.Push(reward(L, types.RewardCurrency, L.CheckNumber(1), L.CheckNumber(2)))
		return 1
	}))

	// Exp(100)
	L.SetGlobal("Exp", L.NewFunction(func(L *lua.LState) int {
		L.Push(reward(L, types.RewardExp, 0, L.CheckNumber(1)))
		return 1
	}))

	// BattlePassExp(50)
	L.SetGlobal("BattlePassExp", L.NewFunction(func(L *lua.LState) int {
		L.Push(reward(L, types.RewardBattlePassExp, 0, L.CheckNumber(1)))
		return 1
	}))

	// Title("Slime Slayer")
	L.SetGlobal("Title", L.NewFunction(func(L *lua.LState) int {
		tbl := reward(L, types.RewardTitle, 0, 1)
		tbl.RawSetString("title", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))
}

func registerMiscHelpers(L *lua.LState) {
	// Stage { id = "s1", count = 10, rewards = {...}, title = "..." }
	L.SetGlobal("Stage", L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}))

	// Choice("label") / Choice("label", "jump", "node")
	L.SetGlobal("Choice", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("label", lua.LString(L.CheckString(1)))
		tbl.RawSetString("action", lua.LString(L.OptString(2, string(types.ChoiceDefault))))
		if data := L.OptString(3, ""); data != "" {
			tbl.RawSetString("data", lua.LString(data))
		}
		L.Push(tbl)
		return 1
	}))

	// Trigger { scene = "...", timing = "...", condition = "...", priority = n }
	L.SetGlobal("Trigger", L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}))
}
