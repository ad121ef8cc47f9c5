package tool

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"factorioagent/internal/debug"
	"factorioagent/internal/llm"
)

// ScriptType is the tool type handled by ScriptProvider.
const ScriptType = "script"

// Completer is the completion surface the script provider needs from the LLM
// service.
type Completer interface {
	CompleteText(ctx context.Context, req llm.TextCompletionRequest) (string, error)
}

// ScriptProvider drafts parameterized Factorio Lua console commands from
// natural-language requirements. Generated artifacts are untrusted until
// they pass Validate.
type ScriptProvider struct {
	llm         Completer
	debug       *debug.Logger
	maxAttempts int
}

func NewScriptProvider(completer Completer, debugLogger *debug.Logger) *ScriptProvider {
	return &ScriptProvider{
		llm:         completer,
		debug:       debugLogger,
		maxAttempts: 3,
	}
}

const scriptSystemPrompt = `You are a Factorio Lua scripting specialist. Generate a single reusable, parameterized Lua console command.

Rules:
- The script must start with the "/c " console prefix
- Use the Factorio Runtime API (game.*, player.*, surface.*)
- Report outcomes to the caller with rcon.print(); prefix failure messages with "Error: "
- Use {parameter_name} placeholders for every dynamic value, e.g. {entity_name}, {radius}, {x_position}
- Handle edge cases (no player, nothing found) with an Error message rather than crashing

Reply with exactly one fenced code block containing the complete script and nothing else.`

func (p *ScriptProvider) Generate(ctx context.Context, req GenerateRequest) (Artifact, error) {
	userPrompt := fmt.Sprintf(
		"requirement: %s\nfunctionality_details: %s\nsuggested_name: %s",
		req.Requirement, req.Details, req.Name,
	)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		response, err := p.llm.CompleteText(ctx, llm.TextCompletionRequest{
			SystemPrompt: scriptSystemPrompt,
			UserPrompt:   userPrompt,
			MaxTokens:    1200,
		})
		if err != nil {
			if ctx.Err() != nil {
				return Artifact{}, &GenerationError{Requirement: req.Requirement, Err: ctx.Err()}
			}
			lastErr = err
			if p.debug != nil {
				p.debug.Printf("script generation attempt %d/%d failed: %v", attempt, p.maxAttempts, err)
			}
			continue
		}

		source, ok := extractScript(response)
		if !ok {
			lastErr = fmt.Errorf("completion contained no script")
			if p.debug != nil {
				p.debug.Printf("script generation attempt %d/%d returned no code block", attempt, p.maxAttempts)
			}
			continue
		}

		return Artifact{Source: source, Description: req.Requirement}, nil
	}

	return Artifact{}, &GenerationError{Requirement: req.Requirement, Err: lastErr}
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:lua)?\\s*(.*?)```")

// extractScript pulls the Lua command out of a completion: the first fenced
// code block, or the whole reply if it already carries the console prefix.
func extractScript(response string) (string, bool) {
	if m := codeBlockRe.FindStringSubmatch(response); m != nil {
		script := strings.TrimSpace(m[1])
		if script != "" {
			return script, true
		}
	}
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "/c") {
		return trimmed, true
	}
	return "", false
}

func (p *ScriptProvider) Validate(artifact Artifact) ValidationResult {
	diags := validateLuaCommand(artifact.Source)
	return ValidationResult{Valid: len(diags) == 0, Diagnostics: diags}
}

// validateLuaCommand performs structural checks against the console command
// grammar: prefix, bracket balance, block keyword balance, and placeholder
// shape. It cannot prove the script correct, only reject obviously broken
// output before it reaches the game.
func validateLuaCommand(source string) []string {
	var diags []string

	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return []string{"script is empty"}
	}
	if !strings.HasPrefix(trimmed, "/c") {
		diags = append(diags, "script must start with the /c console prefix")
	}

	body := strings.TrimPrefix(trimmed, "/c")
	stripped, terminated := stripLua(body)
	if !terminated {
		diags = append(diags, "unterminated string or comment")
	}

	diags = append(diags, checkBrackets(stripped)...)
	diags = append(diags, checkBlocks(stripped)...)
	diags = append(diags, checkPlaceholders(body)...)
	return diags
}

// stripLua removes string literals and comments so that bracket and keyword
// scans only see code. Returns false if a string or long comment never
// closes.
func stripLua(s string) (string, bool) {
	var b strings.Builder
	terminated := true
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			if strings.HasPrefix(s[i+2:], "[[") {
				end := strings.Index(s[i+4:], "]]")
				if end < 0 {
					return b.String(), false
				}
				i += 4 + end + 2
			} else {
				nl := strings.IndexByte(s[i:], '\n')
				if nl < 0 {
					return b.String(), true
				}
				i += nl
			}
		case c == '"' || c == '\'':
			quote := c
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\\' {
					i += 2
					continue
				}
				if s[i] == quote {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				terminated = false
			}
			b.WriteByte(' ')
		case c == '[' && i+1 < len(s) && s[i+1] == '[':
			end := strings.Index(s[i+2:], "]]")
			if end < 0 {
				return b.String(), false
			}
			i += 2 + end + 2
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), terminated
}

func checkBrackets(stripped string) []string {
	pairs := map[byte]byte{')': '(', '}': '{', ']': '['}
	var stack []byte
	for i := 0; i < len(stripped); i++ {
		switch c := stripped[i]; c {
		case '(', '{', '[':
			stack = append(stack, c)
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return []string{fmt.Sprintf("unbalanced %q", string(c))}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return []string{fmt.Sprintf("unclosed %q", string(stack[len(stack)-1]))}
	}
	return nil
}

var wordRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

func checkBlocks(stripped string) []string {
	opens, closes := 0, 0
	repeats, untils := 0, 0
	for _, word := range wordRe.FindAllString(stripped, -1) {
		switch word {
		case "function", "if", "do":
			opens++
		case "end":
			closes++
		case "repeat":
			repeats++
		case "until":
			untils++
		}
	}
	var diags []string
	if opens != closes {
		diags = append(diags, fmt.Sprintf("unbalanced blocks: %d opened, %d closed with end", opens, closes))
	}
	if repeats != untils {
		diags = append(diags, fmt.Sprintf("unbalanced repeat/until: %d repeat, %d until", repeats, untils))
	}
	return diags
}

var malformedPlaceholderRe = regexp.MustCompile(`\{(\d+[A-Za-z_][A-Za-z0-9_]*)\}`)

func checkPlaceholders(source string) []string {
	var diags []string
	for _, m := range malformedPlaceholderRe.FindAllStringSubmatch(source, -1) {
		diags = append(diags, fmt.Sprintf("placeholder {%s} is not a valid identifier", m[1]))
	}
	return diags
}
