// Package dialogue implements the dialogue interpreter: a state machine that
// walks a dialogue's node arena, applies each node's side effects, and
// checkpoints the last applied node so a saved run can be resumed exactly.
package dialogue

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/engine/save"
	"github.com/nathoo/questline/types"
)

var (
	ErrNotFound       = errors.New("dialogue not found")
	ErrNodeNotFound   = errors.New("dialogue node not found")
	ErrNotActive      = errors.New("no dialogue is active")
	ErrSuspended      = errors.New("dialogue is waiting for a battle")
	ErrNotSuspended   = errors.New("no battle is pending")
	ErrChoiceRequired = errors.New("a choice is required")
	ErrNoChoices      = errors.New("current node has no choices")
	ErrInvalidChoice  = errors.New("invalid choice")
)

// DefaultMaxSteps bounds the nodes entered by one transition.
const DefaultMaxSteps = 1000

// AutoDuration is the delay of auto-advancing nodes that set none.
const AutoDuration = 2 * time.Second

// Effects applies quest and achievement grants requested by nodes.
type Effects interface {
	GrantQuest(id string) error
	CompleteQuest(id string) error
	GrantAchievement(id string) error
}

// Options configures an Interpreter.
type Options struct {
	Scheduler clock.Scheduler
	Actors    *content.Actors
	Logger    *slog.Logger
	MaxSteps  int
}

// Interpreter runs one dialogue at a time.
type Interpreter struct {
	cat      *content.Catalog
	bus      *events.Bus
	effects  Effects
	sched    clock.Scheduler
	actors   *content.Actors
	logger   *slog.Logger
	maxSteps int

	dialogue   *types.Dialogue
	node       *types.DialogueNode
	suspended  bool
	ended      bool
	checkpoint string
	timer      clock.Timer
	gen        uint64

	viewed map[string]bool
}

// New creates an idle interpreter.
func New(cat *content.Catalog, bus *events.Bus, fx Effects, opts Options) *Interpreter {
	in := &Interpreter{
		cat:      cat,
		bus:      bus,
		effects:  fx,
		sched:    opts.Scheduler,
		actors:   opts.Actors,
		logger:   opts.Logger,
		maxSteps: opts.MaxSteps,
		viewed:   map[string]bool{},
	}
	if in.logger == nil {
		in.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if in.maxSteps <= 0 {
		in.maxSteps = DefaultMaxSteps
	}
	if in.actors == nil {
		in.actors, _ = content.NewActors(cat, 0)
	}
	return in
}

// Active reports whether a dialogue is running.
func (in *Interpreter) Active() bool {
	return in.dialogue != nil
}

// Suspended reports whether the running dialogue waits for a battle.
func (in *Interpreter) Suspended() bool {
	return in.suspended
}

// Current returns the running dialogue id and current node.
func (in *Interpreter) Current() (string, *types.DialogueNode) {
	if in.dialogue == nil {
		return "", nil
	}
	return in.dialogue.ID, in.node
}

// Progress returns the checkpoint of the running dialogue. The node id is
// empty when no node has been applied yet.
func (in *Interpreter) Progress() (save.DialogueProgress, bool) {
	if in.dialogue == nil {
		return save.DialogueProgress{}, false
	}
	return save.DialogueProgress{DialogueID: in.dialogue.ID, NodeID: in.checkpoint}, true
}

// Start begins a dialogue at its entry node. A running dialogue is ended
// first. Starting is refused while a battle is pending.
func (in *Interpreter) Start(id string) error {
	if in.suspended {
		return ErrSuspended
	}
	d, ok := in.cat.Dialogue(id)
	if !ok {
		return ErrNotFound
	}
	if in.dialogue != nil {
		in.finish()
	}
	in.begin(d, "")
	in.bus.Emit(events.DialogueStarted{DialogueID: id})
	in.enter(d.Entry)
	return nil
}

// Resume restores a saved run. The checkpointed node's effects are not
// applied again: a choice node is presented again, any other node
// continues at its successor.
func (in *Interpreter) Resume(p save.DialogueProgress) error {
	d, ok := in.cat.Dialogue(p.DialogueID)
	if !ok {
		return ErrNotFound
	}
	if in.dialogue != nil {
		in.cancelTimer()
		in.dialogue = nil
	}
	in.begin(d, p.NodeID)
	in.bus.Emit(events.DialogueStarted{DialogueID: d.ID, Resumed: true})

	if p.NodeID == "" {
		in.enter(d.Entry)
		return nil
	}
	n, ok := d.Nodes[p.NodeID]
	if !ok {
		in.logger.Warn("saved dialogue node missing, restarting", "dialogue", d.ID, "node", p.NodeID)
		in.checkpoint = ""
		in.enter(d.Entry)
		return nil
	}
	if len(n.Choices) > 0 {
		in.present(n)
		return nil
	}
	in.node = n
	in.advance(n.Next)
	return nil
}

func (in *Interpreter) begin(d *types.Dialogue, checkpoint string) {
	in.cancelTimer()
	in.dialogue = d
	in.node = nil
	in.suspended = false
	in.ended = false
	in.checkpoint = checkpoint
}

// Next advances past the current visible node.
func (in *Interpreter) Next() error {
	if err := in.ready(); err != nil {
		return err
	}
	if len(in.node.Choices) > 0 {
		return ErrChoiceRequired
	}
	in.advance(in.node.Next)
	return nil
}

// Choose selects a choice of the current node by zero-based index.
func (in *Interpreter) Choose(i int) error {
	if err := in.ready(); err != nil {
		return err
	}
	n := in.node
	if len(n.Choices) == 0 {
		return ErrNoChoices
	}
	if i < 0 || i >= len(n.Choices) {
		return ErrInvalidChoice
	}
	c := n.Choices[i]
	if c.Action == types.ChoiceJump {
		if _, ok := in.dialogue.Nodes[c.Data]; !ok {
			return ErrNodeNotFound
		}
	}
	in.bus.Emit(events.DialogueChoiceSelected{DialogueID: in.dialogue.ID, NodeID: n.ID, Index: i, Choice: c})

	switch c.Action {
	case types.ChoiceJump:
		in.enter(c.Data)
	case types.ChoiceScene:
		in.bus.Emit(events.SceneRequested{DialogueID: in.dialogue.ID, Scene: c.Data})
		in.finish()
	case types.ChoiceToast:
		in.bus.Emit(events.ToastRequested{Text: c.Data})
		in.advance(n.Next)
	default:
		target := n.Next
		if c.Data != "" {
			target = c.Data
		}
		in.advance(target)
	}
	return nil
}

// Skip fast-forwards through visible nodes without choices until a choice
// node, a battle, or the end of the dialogue.
func (in *Interpreter) Skip() error {
	if err := in.ready(); err != nil {
		return err
	}
	for steps := 0; in.dialogue != nil && !in.suspended && len(in.node.Choices) == 0; steps++ {
		if steps >= in.maxSteps {
			in.logger.Warn("skip step limit reached", "dialogue", in.dialogue.ID)
			in.finish()
			break
		}
		in.advance(in.node.Next)
	}
	return nil
}

// End forces the running dialogue to end.
func (in *Interpreter) End() error {
	if in.dialogue == nil {
		return ErrNotActive
	}
	in.finish()
	return nil
}

// ResolveBattle reports a pending battle's outcome and continues at the
// battle node's successor.
func (in *Interpreter) ResolveBattle(won bool) error {
	if !in.suspended {
		return ErrNotSuspended
	}
	n := in.node
	in.suspended = false
	in.bus.Emit(events.BattleResolved{DialogueID: in.dialogue.ID, Battle: n.Battle, Won: won})
	in.checkpoint = n.ID
	in.advance(n.Next)
	return nil
}

// Viewed reports whether a dialogue has been seen to its end.
func (in *Interpreter) Viewed(id string) bool {
	return in.viewed[id]
}

// ViewedList returns the viewed dialogue ids, sorted.
func (in *Interpreter) ViewedList() []string {
	out := make([]string, 0, len(in.viewed))
	for id := range in.viewed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadViewed replaces the viewed set.
func (in *Interpreter) LoadViewed(ids []string) {
	in.viewed = map[string]bool{}
	for _, id := range ids {
		in.viewed[id] = true
	}
}

// Reset drops the running dialogue without emitting events.
func (in *Interpreter) Reset() {
	in.cancelTimer()
	in.dialogue = nil
	in.node = nil
	in.suspended = false
	in.ended = false
	in.checkpoint = ""
}

func (in *Interpreter) ready() error {
	if in.dialogue == nil || in.node == nil {
		return ErrNotActive
	}
	if in.suspended {
		return ErrSuspended
	}
	return nil
}

func (in *Interpreter) advance(next string) {
	if next == "" {
		in.finish()
		return
	}
	in.enter(next)
}

// enter walks from id until a node needs the player, a battle, or the end.
// Background nodes are applied and passed through iteratively, so cyclic
// graphs cannot grow the stack.
func (in *Interpreter) enter(id string) {
	for steps := 0; ; steps++ {
		if in.dialogue == nil {
			return
		}
		if steps >= in.maxSteps {
			in.logger.Warn("dialogue step limit reached", "dialogue", in.dialogue.ID, "node", id)
			in.finish()
			return
		}
		n, ok := in.dialogue.Nodes[id]
		if !ok {
			in.logger.Warn("dialogue node not found", "dialogue", in.dialogue.ID, "node", id)
			in.finish()
			return
		}

		in.cancelTimer()
		in.node = n
		in.emitEntered(n)

		switch {
		case IsBackground(n.Type):
			in.execute(n)
			in.checkpoint = n.ID
			if n.Next == "" {
				in.finish()
				return
			}
			id = n.Next

		case n.Type == types.NodeLoadScene:
			in.checkpoint = n.ID
			in.bus.Emit(events.SceneRequested{DialogueID: in.dialogue.ID, Scene: n.Scene})
			in.finish()
			return

		case n.Type == types.NodeLoadBattle:
			in.suspended = true
			in.bus.Emit(events.BattleRequested{DialogueID: in.dialogue.ID, Battle: n.Battle})
			return

		case n.Type == types.NodeEnd || n.Type == types.NodeHideAll:
			in.checkpoint = n.ID
			in.finish()
			return

		default:
			in.checkpoint = n.ID
			in.scheduleAuto(n)
			return
		}
	}
}

// present shows a node again without applying anything.
func (in *Interpreter) present(n *types.DialogueNode) {
	in.cancelTimer()
	in.node = n
	in.emitEntered(n)
}

func (in *Interpreter) emitEntered(n *types.DialogueNode) {
	sp := in.actors.Speaker(n.ActorID)
	in.bus.Emit(events.DialogueNodeEntered{
		DialogueID: in.dialogue.ID,
		Node:       n,
		Speaker:    sp.Name,
		Portrait:   sp.Portrait,
	})
}

// execute applies a background node's side effects.
func (in *Interpreter) execute(n *types.DialogueNode) {
	did := in.dialogue.ID
	switch n.Type {
	case types.NodeGrantQuest:
		for _, ref := range n.Quests {
			in.apply("grant quest", ref.ID, in.grantQuest)
		}
	case types.NodeCompleteQuest:
		for _, ref := range n.Quests {
			in.apply("complete quest", ref.ID, in.completeQuest)
		}
	case types.NodeGrantAchievement:
		for _, ref := range n.Achievements {
			in.apply("grant achievement", ref.ID, in.grantAchievement)
		}
	case types.NodeGrantItems:
		if len(n.Items) > 0 {
			in.bus.Emit(events.RewardGranted{
				Source:   events.SourceDialogue,
				SourceID: did + "/" + n.ID,
				Rewards:  append([]types.Reward(nil), n.Items...),
			})
		}
	case types.NodeRecord:
		in.bus.Emit(events.RecordWritten{DialogueID: did, NodeID: n.ID, Key: n.Record})
	case types.NodeSoundEffect:
		in.bus.Emit(events.SoundRequested{Sound: n.Sound})
	case types.NodeShowToast:
		text := n.Toast
		if text == "" && n.Content != nil {
			text = n.Content.Text
		}
		in.bus.Emit(events.ToastRequested{Text: text})
	}
}

func (in *Interpreter) apply(what, id string, fn func(string) error) {
	if err := fn(id); err != nil {
		in.logger.Warn("dialogue effect failed", "effect", what, "id", id, "dialogue", in.dialogue.ID, "err", err)
	}
}

func (in *Interpreter) grantQuest(id string) error {
	if in.effects == nil {
		return nil
	}
	return in.effects.GrantQuest(id)
}

func (in *Interpreter) completeQuest(id string) error {
	if in.effects == nil {
		return nil
	}
	return in.effects.CompleteQuest(id)
}

func (in *Interpreter) grantAchievement(id string) error {
	if in.effects == nil {
		return nil
	}
	return in.effects.GrantAchievement(id)
}

// scheduleAuto arms the auto-advance timer of a visible node.
func (in *Interpreter) scheduleAuto(n *types.DialogueNode) {
	if n.Advance != types.AdvanceAuto || len(n.Choices) > 0 || in.sched == nil {
		return
	}
	gen := in.gen
	d := n.AutoDuration
	if d <= 0 {
		d = AutoDuration
	}
	in.timer = in.sched.AfterFunc(d, func() {
		if in.gen != gen || in.node != n || in.suspended {
			return
		}
		in.timer = nil
		in.advance(n.Next)
	})
}

// cancelTimer stops any pending auto-advance. Every transition calls it.
func (in *Interpreter) cancelTimer() {
	in.gen++
	if in.timer != nil {
		in.timer.Stop()
		in.timer = nil
	}
}

// finish ends the run once: DialogueEnded, viewed mark and the
// finish_dialogue progress event.
func (in *Interpreter) finish() {
	if in.dialogue == nil || in.ended {
		return
	}
	in.ended = true
	in.cancelTimer()

	d := in.dialogue
	nodeID := ""
	if in.node != nil {
		nodeID = in.node.ID
	}
	in.dialogue = nil
	in.node = nil
	in.suspended = false
	in.checkpoint = ""
	in.viewed[d.ID] = true

	in.bus.Emit(events.DialogueEnded{DialogueID: d.ID, NodeID: nodeID})
	in.bus.Emit(events.ProgressReported{Progress: types.Progress{
		Type:     types.ObjectiveFinishDialogue,
		TargetID: d.ID,
		Amount:   1,
	}})
}

// IsBackground reports whether a node type applies effects without any
// player interaction.
func IsBackground(t types.NodeType) bool {
	switch t {
	case types.NodeGrantQuest, types.NodeGrantAchievement, types.NodeGrantItems,
		types.NodeRecord, types.NodeSoundEffect, types.NodeShowToast, types.NodeCompleteQuest:
		return true
	}
	return false
}
