package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorioagent/internal/game"
	"factorioagent/internal/llm"
	"factorioagent/internal/tool"
)

// fakeCatalog plays both the planner's catalog and the state reader's tool
// runner, answering executions with canned replies per tool name.
type fakeCatalog struct {
	tools      []tool.Descriptor
	replies    map[string]tool.ExecutionResult
	created    []string
	createDesc tool.Descriptor
	executed   []string
}

func (f *fakeCatalog) CreateTool(ctx context.Context, toolType, requirement, details, name string) (tool.Descriptor, error) {
	f.created = append(f.created, name)
	return f.createDesc, nil
}

func (f *fakeCatalog) ExecuteTool(ctx context.Context, name string, params map[string]any) (tool.ExecutionResult, error) {
	f.executed = append(f.executed, name)
	return f.replies[name], nil
}

func (f *fakeCatalog) ListTools(typeFilter string) ([]tool.Descriptor, error) {
	return f.tools, nil
}

// fakePlanner returns scripted JSON plans and records the prompts it saw.
type fakePlanner struct {
	plans   []string
	prompts []string
}

func (f *fakePlanner) CompleteJSON(ctx context.Context, req llm.JSONCompletionRequest) (string, error) {
	f.prompts = append(f.prompts, req.UserPrompt)
	i := len(f.prompts) - 1
	if i < len(f.plans) {
		return f.plans[i], nil
	}
	return `{"thought": "nothing to do", "actions": []}`, nil
}

func stateReplies() map[string]tool.ExecutionResult {
	return map[string]tool.ExecutionResult{
		"get_player_position": {Output: "{x = 0, y = 0}"},
		"scan_area":           {Output: "[]"},
		"get_inventory":       {Output: "{}"},
	}
}

func TestLoopExecutesPlannedActions(t *testing.T) {
	catalog := &fakeCatalog{
		tools: []tool.Descriptor{
			{Name: "move_player", Type: tool.BuiltinType, Status: tool.StatusValid, Source: "/c teleport({x}, {y})"},
		},
		replies: stateReplies(),
	}
	catalog.replies["move_player"] = tool.ExecutionResult{Output: "Moved player to (5, 5)"}
	planner := &fakePlanner{plans: []string{
		`{"thought": "head to the ore", "actions": [{"tool": "move_player", "args": {"x": 5, "y": 5}}]}`,
	}}

	loop := NewLoop(catalog, game.NewStateReader(catalog, nil), planner, nil, Config{
		Goal:     "mine iron",
		MaxSteps: 2,
	})
	require.NoError(t, loop.Run(context.Background()))

	assert.Contains(t, catalog.executed, "move_player")

	// The second step's prompt carries the first step's outcome.
	require.Len(t, planner.prompts, 2)
	assert.Contains(t, planner.prompts[1], "RECENT RESULTS")
	assert.Contains(t, planner.prompts[1], "step 1: move_player: Moved player to (5, 5)")
}

func TestLoopRequestsNewTool(t *testing.T) {
	catalog := &fakeCatalog{
		replies: stateReplies(),
		createDesc: tool.Descriptor{
			Name:   "teleport_iron_ore",
			Type:   tool.ScriptType,
			Status: tool.StatusValid,
			Source: "/c teleport({x}, {y})",
		},
	}
	planner := &fakePlanner{plans: []string{
		`{"thought": "need a teleport tool", "actions": [], "new_tool": {"name": "teleport_iron_ore", "requirement": "teleport to the nearest iron ore patch"}}`,
	}}

	loop := NewLoop(catalog, game.NewStateReader(catalog, nil), planner, nil, Config{MaxSteps: 1})
	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, []string{"teleport_iron_ore"}, catalog.created)
}

func TestLoopStopsOnCancelledContext(t *testing.T) {
	catalog := &fakeCatalog{replies: stateReplies()}
	planner := &fakePlanner{}
	loop := NewLoop(catalog, game.NewStateReader(catalog, nil), planner, nil, Config{
		MaxSteps:  100,
		StepDelay: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildTurnPromptListsOnlyExecutableTools(t *testing.T) {
	catalog := []tool.Descriptor{
		{Name: "move_player", Type: tool.BuiltinType, Status: tool.StatusValid, Source: "/c teleport({x}, {y})"},
		{Name: "broken", Type: tool.ScriptType, Status: tool.StatusInvalid},
		{Name: "old", Type: tool.ScriptType, Status: tool.StatusRetired},
	}

	prompt, err := buildTurnPrompt("mine iron", game.Snapshot{}, catalog, nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "GOAL: mine iron")
	assert.Contains(t, prompt, "move_player")
	assert.Contains(t, prompt, "parameters: x, y")
	assert.NotContains(t, prompt, "broken")
	assert.NotContains(t, prompt, "old")
}

func TestHistoryBounded(t *testing.T) {
	history := NewHistory(3)
	for i := 1; i <= 5; i++ {
		history.AddResult(i, fmt.Sprintf("result %d", i))
	}

	entries := history.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "step 3: result 3", entries[0])
	assert.Equal(t, "step 5: result 5", entries[2])
}

func TestHistoryEntriesIsACopy(t *testing.T) {
	history := NewHistory(4)
	history.AddResult(1, "first")

	entries := history.Entries()
	entries[0] = "mutated"
	assert.Equal(t, []string{"step 1: first"}, history.Entries())
}

func TestRunActionFormatsOutcomes(t *testing.T) {
	catalog := &fakeCatalog{replies: map[string]tool.ExecutionResult{
		"ok":       {Output: "done it"},
		"silent":   {},
		"rejected": {CommandError: "No burner mining drill found at position (0, 0)"},
	}}
	loop := NewLoop(catalog, game.NewStateReader(catalog, nil), &fakePlanner{}, nil, Config{})

	assert.Equal(t, "ok: done it", loop.runAction(context.Background(), "ok", nil))
	assert.Equal(t, "silent: done", loop.runAction(context.Background(), "silent", nil))
	assert.True(t, strings.HasPrefix(
		loop.runAction(context.Background(), "rejected", nil),
		"rejected rejected by game:"))
}
