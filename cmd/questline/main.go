// Questline is a data-driven quest, achievement and dialogue engine with a
// console front end.
// Usage: questline [--version] [--plain] [--script <file>] [--trace] [--config <file>] <game_directory>
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/nathoo/questline/cli"
	"github.com/nathoo/questline/config"
	"github.com/nathoo/questline/engine"
	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/loader"
	"github.com/nathoo/questline/logging"
	"github.com/nathoo/questline/store"
	"github.com/nathoo/questline/store/file"
	"github.com/nathoo/questline/store/sqlite"
	"github.com/nathoo/questline/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: questline [--version] [--plain] [--script <file>] [--trace] [--config <file>] <game_directory>"

// tickInterval is how often resets and quest expiry are checked while the
// console is idle.
const tickInterval = 30 * time.Second

func main() {
	plain := false
	trace := false
	var gameDir, scriptFile, configFile string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("questline %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--script", "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a file path\n", args[i])
				os.Exit(1)
			}
			if args[i] == "--script" {
				scriptFile = args[i+1]
			} else {
				configFile = args[i+1]
			}
			i++
		default:
			if gameDir == "" {
				gameDir = args[i]
			}
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if gameDir == "" {
		gameDir = cfg.GameDir
	}
	if gameDir == "" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	useTUI := scriptFile == "" && !plain && isTerminal()
	logger, closeLog, err := openLogger(cfg, useTUI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	// Load and compile Lua game content.
	game, err := loader.Load(gameDir, logger.With("component", "loader"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading game: %v\n", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}

	loc, _ := cfg.Location()
	serial := clock.NewSerial(16)
	eng, err := engine.New(game.Catalog, engine.Options{
		Clock:          clock.System{Location: loc},
		Scheduler:      serial,
		Logger:         logger,
		Schedules:      cfg.Reset,
		EvalTimeout:    cfg.EvalTimeout,
		ActorCacheSize: cfg.ActorCacheSize,
		Store:          st,
		AutoSaveKey:    cfg.SaveKey(),
	})
	if err != nil {
		_ = st.Close()
		fmt.Fprintf(os.Stderr, "Error starting engine: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("closing engine", "err", err)
		}
	}()

	restore(eng, cfg, logger)
	eng.Tick()
	scheduleTicks(serial, eng)

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		printHeader(game)
		c := cli.New(eng, game)
		c.In = f
		c.EchoInput = true
		c.Meta.Trace = trace
		c.Callbacks = serial.C
		c.Run()
		return
	}

	if !useTUI {
		printHeader(game)
		c := cli.New(eng, game)
		c.Meta.Trace = trace
		c.Callbacks = serial.C
		c.Run()
		return
	}

	if err := tui.Run(eng, game, serial.C, trace); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openLogger logs to stderr, or to a file in the save directory while the
// TUI owns the terminal.
func openLogger(cfg *config.Config, toFile bool) (*slog.Logger, func(), error) {
	if !toFile {
		return logging.New(os.Stderr, cfg.Level()), func() {}, nil
	}
	if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(cfg.SaveDir, "questline.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(f, cfg.Level()), func() { f.Close() }, nil
}

// openStore opens the configured key-value backend.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.BackendSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.BackendMemory:
		return store.NewMemory(), nil
	default:
		return file.Open(cfg.SaveDir)
	}
}

// restore loads the autosave if there is one.
func restore(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) {
	key := cfg.SaveKey()
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := eng.LoadFrom(ctx, eng.Store(), key)
	switch {
	case err == nil:
		logger.Info("autosave restored", "key", key)
	case errors.Is(err, store.ErrNotFound):
	default:
		logger.Warn("autosave not restored", "key", key, "err", err)
	}
}

// scheduleTicks runs Tick every tickInterval on the console goroutine.
func scheduleTicks(s *clock.Serial, eng *engine.Engine) {
	var tick func()
	tick = func() {
		eng.Tick()
		s.AfterFunc(tickInterval, tick)
	}
	s.AfterFunc(tickInterval, tick)
}

func printHeader(game *loader.Game) {
	meta := game.Meta
	if meta.Title == "" {
		return
	}
	header := meta.Title
	if meta.Version != "" {
		header += " v" + meta.Version
	}
	if meta.Author != "" {
		header += " by " + meta.Author
	}
	fmt.Printf("%s\n\n", header)
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
