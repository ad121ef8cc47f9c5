package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorioagent/internal/config"
	"factorioagent/internal/tool"
)

type fakeCatalog struct {
	created  []commandMessage
	executed []string
	removed  []string
	result   tool.ExecutionResult
}

func (f *fakeCatalog) CreateTool(ctx context.Context, toolType, requirement, details, name string) (tool.Descriptor, error) {
	f.created = append(f.created, commandMessage{ToolType: toolType, Requirement: requirement, Details: details, Name: name})
	return tool.Descriptor{Name: name, Type: toolType, Status: tool.StatusValid}, nil
}

func (f *fakeCatalog) ExecuteTool(ctx context.Context, name string, params map[string]any) (tool.ExecutionResult, error) {
	f.executed = append(f.executed, name)
	return f.result, nil
}

func (f *fakeCatalog) ListTools(typeFilter string) ([]tool.Descriptor, error) {
	return []tool.Descriptor{{Name: "move_player"}}, nil
}

func (f *fakeCatalog) RemoveTool(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeCatalog) GetStatistics() (tool.Statistics, error) {
	return tool.Statistics{Total: 1}, nil
}

func newTestBridge(catalog Catalog) *Bridge {
	return NewBridge(config.MQTTConfig{}, catalog, nil)
}

func TestDispatchCreateToolDefaultsToScript(t *testing.T) {
	catalog := &fakeCatalog{}
	bridge := newTestBridge(catalog)

	resp := bridge.dispatch(context.Background(), commandMessage{
		Command:     "create_tool",
		Name:        "teleport_iron_ore",
		Requirement: "teleport to the nearest iron ore patch",
	})
	assert.True(t, resp.Success)
	require.Len(t, catalog.created, 1)
	assert.Equal(t, tool.ScriptType, catalog.created[0].ToolType)
}

func TestDispatchExecutesUnknownCommandAsTool(t *testing.T) {
	catalog := &fakeCatalog{result: tool.ExecutionResult{Output: "Moved player to (5, 5)"}}
	bridge := newTestBridge(catalog)

	resp := bridge.dispatch(context.Background(), commandMessage{
		Command: "move_player",
		Params:  map[string]any{"x": 5, "y": 5},
	})
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"move_player"}, catalog.executed)
}

func TestDispatchReportsCommandFailure(t *testing.T) {
	catalog := &fakeCatalog{result: tool.ExecutionResult{CommandError: "No burner mining drill found at position (0, 0)"}}
	bridge := newTestBridge(catalog)

	resp := bridge.dispatch(context.Background(), commandMessage{Command: "check_drill"})
	assert.False(t, resp.Success)
}

func TestDispatchManagementVerbs(t *testing.T) {
	catalog := &fakeCatalog{}
	bridge := newTestBridge(catalog)

	resp := bridge.dispatch(context.Background(), commandMessage{Command: "list_tools"})
	assert.True(t, resp.Success)

	resp = bridge.dispatch(context.Background(), commandMessage{Command: "remove_tool", Name: "old"})
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"old"}, catalog.removed)

	resp = bridge.dispatch(context.Background(), commandMessage{Command: "get_statistics"})
	assert.True(t, resp.Success)
}
