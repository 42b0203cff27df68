package loader

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nathoo/questline/engine/content"
	lua "github.com/yuin/gopher-lua"
)

// Game is a loaded content directory.
type Game struct {
	Meta    Meta
	Catalog *content.Catalog
}

// Meta is the optional Game{} block.
type Meta struct {
	Title   string
	Author  string
	Version string
	Intro   string
}

// collector accumulates Lua definitions during file execution.
type collector struct {
	game         *lua.LTable
	quests       []rawDef
	achievements []rawDef
	dialogues    []rawDef
	actors       []rawDef
	tiers        []rawDef
}

// rawDef holds a curried definition table before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// Load reads all .lua files from dir, compiles them into a catalog,
// resolves references and validates them. Warnings are logged to logger
// (nil discards them). The Lua VM is discarded after loading.
func Load(dir string, logger *slog.Logger) (*Game, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Discover .lua files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading game directory %s: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}

	// Sort: game.lua first, rest alphabetical.
	luaFiles = sortedLuaFiles(luaFiles)

	// Create sandboxed VM.
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	// Execute each file.
	for _, f := range luaFiles {
		path := filepath.Join(dir, f)
		if err := L.DoFile(path); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}

	// Compile.
	game, ve := compile(coll)

	// Validate.
	validate(game, ve)
	for _, w := range ve.Warnings {
		logger.Warn("content warning", "dir", dir, "warning", w)
	}
	if len(ve.Errors) > 0 {
		return nil, ve
	}

	logger.Info("content loaded",
		"dir", dir,
		"quests", len(game.Catalog.IDs(content.TableQuest)),
		"achievements", len(game.Catalog.IDs(content.TableAchievement)),
		"dialogues", len(game.Catalog.IDs(content.TableDialogue)),
	)
	return game, nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring", "require",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Content must load the same way every time.
	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("randomseed", lua.LNil)
			tbl.RawSetString("random", lua.LNil)
		}
	}
}
