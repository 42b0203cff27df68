// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for the questline engine.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nathoo/questline/engine"
	"github.com/nathoo/questline/loader"
)

// CLI handles line-oriented interaction with the player.
type CLI struct {
	Engine *engine.Engine
	Game   *loader.Game
	In     io.Reader
	Out    io.Writer
	Meta   *Meta

	// Callbacks delivers timer callbacks (dialogue auto-advance). They run
	// between commands. Nil when the engine has no real-time scheduler.
	Callbacks <-chan func()

	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine, game *loader.Game) *CLI {
	return &CLI{
		Engine: eng,
		Game:   game,
		In:     os.Stdin,
		Out:    os.Stdout,
		Meta:   &Meta{Engine: eng},
	}
}

// Run starts the game loop. It shows the intro and anything pending from
// a restored save, then loops: prompt → input → dispatch → output.
func (c *CLI) Run() {
	if c.Meta == nil {
		c.Meta = &Meta{Engine: c.Engine}
	}

	if c.Game != nil && c.Game.Meta.Intro != "" {
		c.printLine(c.Game.Meta.Intro)
		c.printLine("")
	}
	c.printResult(c.Engine.Drain())

	scanner := bufio.NewScanner(c.In)
	for {
		c.pump()
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			lines, quit := c.Meta.Handle(input)
			for _, l := range lines {
				c.printSystem(l)
			}
			if quit {
				return
			}
			continue
		}

		// "again" / "g" repeats the last game command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		c.printResult(c.Engine.Step(input))
	}
}

// pump runs every timer callback that is already due.
func (c *CLI) pump() {
	if c.Callbacks == nil {
		return
	}
	for {
		select {
		case fn := <-c.Callbacks:
			fn()
			c.printResult(c.Engine.Drain())
		default:
			return
		}
	}
}

func (c *CLI) printResult(result engine.Result) {
	for _, line := range result.Output {
		c.printLine(line)
	}
	if c.Meta != nil && c.Meta.Trace {
		for _, line := range TraceLines(result) {
			c.printSystem(line)
		}
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
