package game

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"factorioagent/internal/debug"
	"factorioagent/internal/tool"
)

// ToolRunner is the slice of the tool manager the state reader needs.
type ToolRunner interface {
	ExecuteTool(ctx context.Context, name string, params map[string]any) (tool.ExecutionResult, error)
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Entity struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// Snapshot is the agent's view of the game at the start of a step.
type Snapshot struct {
	Position  Position       `json:"player_position"`
	Entities  []Entity       `json:"nearby_entities"`
	Inventory map[string]int `json:"inventory"`
}

// StateReader reads the current game state through the builtin tools, so
// state observation goes through the same catalog and audit trail as every
// other action.
type StateReader struct {
	tools ToolRunner
	debug *debug.Logger
}

func NewStateReader(tools ToolRunner, debugLogger *debug.Logger) *StateReader {
	return &StateReader{tools: tools, debug: debugLogger}
}

// Read captures the player position, entities within the given radius, and
// the main inventory.
func (r *StateReader) Read(ctx context.Context, radius float64) (Snapshot, error) {
	var snap Snapshot

	result, err := r.tools.ExecuteTool(ctx, "get_player_position", nil)
	if err != nil {
		return snap, fmt.Errorf("read player position: %w", err)
	}
	if result.OK() {
		pos, err := ParsePosition(result.Output)
		if err != nil && r.debug != nil {
			r.debug.Printf("unparseable position reply %q: %v", result.Output, err)
		}
		snap.Position = pos
	}

	result, err = r.tools.ExecuteTool(ctx, "scan_area", map[string]any{"radius": radius})
	if err != nil {
		return snap, fmt.Errorf("scan entities: %w", err)
	}
	if result.OK() {
		if err := json.Unmarshal([]byte(result.Output), &snap.Entities); err != nil && r.debug != nil {
			r.debug.Printf("unparseable entity reply: %v", err)
		}
	}

	result, err = r.tools.ExecuteTool(ctx, "get_inventory", nil)
	if err != nil {
		return snap, fmt.Errorf("read inventory: %w", err)
	}
	if result.OK() {
		snap.Inventory = parseInventory(result.Output)
	}

	return snap, nil
}

// ParsePosition decodes Factorio's position print form, e.g.
// "{x = 12.5, y = -3.0}".
func ParsePosition(reply string) (Position, error) {
	var pos Position
	body := strings.TrimSpace(reply)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")

	for _, part := range strings.Split(body, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return pos, fmt.Errorf("malformed position component %q", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return pos, fmt.Errorf("malformed position value %q", value)
		}
		switch strings.TrimSpace(key) {
		case "x":
			pos.X = f
		case "y":
			pos.Y = f
		}
	}
	return pos, nil
}

// parseInventory accepts both shapes Factorio emits for inventory contents:
// a name-to-count object, or a list of {name, count} stacks.
func parseInventory(reply string) map[string]int {
	counts := make(map[string]int)
	if err := json.Unmarshal([]byte(reply), &counts); err == nil {
		return counts
	}

	var stacks []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(reply), &stacks); err == nil {
		for _, stack := range stacks {
			counts[stack.Name] += stack.Count
		}
	}
	return counts
}
