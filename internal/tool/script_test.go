package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorioagent/internal/llm"
)

// fakeCompleter returns scripted completions in order.
type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeCompleter) CompleteText(ctx context.Context, req llm.TextCompletionRequest) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func TestScriptProviderGenerate(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		"Here is the script:\n```lua\n/c rcon.print(game.get_player(1).position)\n```",
	}}
	provider := NewScriptProvider(completer, nil)

	artifact, err := provider.Generate(context.Background(), GenerateRequest{
		Requirement: "print the player position",
		Name:        "where_am_i",
	})
	require.NoError(t, err)
	assert.Equal(t, "/c rcon.print(game.get_player(1).position)", artifact.Source)
	assert.Equal(t, "print the player position", artifact.Description)
}

func TestScriptProviderRetriesThenSucceeds(t *testing.T) {
	completer := &fakeCompleter{
		errs: []error{errors.New("rate limited"), nil},
		responses: []string{
			"",
			"```\n/c rcon.print(1)\n```",
		},
	}
	provider := NewScriptProvider(completer, nil)

	artifact, err := provider.Generate(context.Background(), GenerateRequest{Requirement: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "/c rcon.print(1)", artifact.Source)
	assert.Equal(t, 2, completer.calls)
}

func TestScriptProviderGivesUpAfterRetries(t *testing.T) {
	boom := errors.New("model unavailable")
	completer := &fakeCompleter{errs: []error{boom, boom, boom}}
	provider := NewScriptProvider(completer, nil)

	_, err := provider.Generate(context.Background(), GenerateRequest{Requirement: "anything"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 3, completer.calls)
}

func TestScriptProviderStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	completer := &fakeCompleter{errs: []error{errors.New("canceled")}}
	provider := NewScriptProvider(completer, nil)

	_, err := provider.Generate(ctx, GenerateRequest{Requirement: "anything"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, completer.calls)
}

func TestExtractScript(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     string
		ok       bool
	}{
		{
			name:     "fenced lua block",
			response: "```lua\n/c rcon.print(1)\n```",
			want:     "/c rcon.print(1)",
			ok:       true,
		},
		{
			name:     "fenced block with prose around it",
			response: "Sure thing.\n```\n/c rcon.print(1)\n```\nLet me know.",
			want:     "/c rcon.print(1)",
			ok:       true,
		},
		{
			name:     "bare command",
			response: "  /c rcon.print(1)  ",
			want:     "/c rcon.print(1)",
			ok:       true,
		},
		{
			name:     "prose only",
			response: "I cannot write that script.",
			ok:       false,
		},
		{
			name:     "empty fenced block",
			response: "```\n```",
			ok:       false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractScript(tc.response)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateLuaCommand(t *testing.T) {
	cases := []struct {
		name   string
		source string
		valid  bool
	}{
		{
			name:   "minimal valid command",
			source: "/c rcon.print(1)",
			valid:  true,
		},
		{
			name: "valid command with blocks and placeholders",
			source: `/c local drills = game.surfaces[1].find_entities_filtered{name = "{entity_name}", radius = {radius}}
if #drills > 0 then
  rcon.print(#drills)
else
  rcon.print("Error: no {entity_name} found")
end`,
			valid: true,
		},
		{
			name:   "missing console prefix",
			source: `rcon.print(1)`,
			valid:  false,
		},
		{
			name:   "empty",
			source: "   ",
			valid:  false,
		},
		{
			name:   "unclosed parenthesis",
			source: "/c rcon.print(game.get_player(1).position",
			valid:  false,
		},
		{
			name:   "mismatched bracket",
			source: "/c local t = {1, 2)",
			valid:  false,
		},
		{
			name:   "if without end",
			source: "/c if game.get_player(1) then rcon.print(1)",
			valid:  false,
		},
		{
			name:   "repeat without until",
			source: "/c repeat rcon.print(1)",
			valid:  false,
		},
		{
			name:   "unterminated string",
			source: `/c rcon.print("oops`,
			valid:  false,
		},
		{
			name:   "brackets inside strings are ignored",
			source: `/c rcon.print("unmatched ( and { inside")`,
			valid:  true,
		},
		{
			name:   "brackets inside comments are ignored",
			source: "/c rcon.print(1) -- trailing ( comment",
			valid:  true,
		},
		{
			name:   "malformed placeholder",
			source: "/c rcon.print({1radius})",
			valid:  false,
		},
		{
			name:   "keywords inside strings do not count",
			source: `/c rcon.print("if only")`,
			valid:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			diags := validateLuaCommand(tc.source)
			if tc.valid {
				assert.Empty(t, diags, fmt.Sprintf("unexpected diagnostics: %v", diags))
			} else {
				assert.NotEmpty(t, diags)
			}
		})
	}
}

func TestScriptProviderValidate(t *testing.T) {
	provider := NewScriptProvider(nil, nil)

	result := provider.Validate(Artifact{Source: "/c rcon.print(1)"})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Diagnostics)

	result = provider.Validate(Artifact{Source: "/c if true then"})
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Diagnostics)
}
