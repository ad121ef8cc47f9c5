package tool

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Executor is the remote command channel: one textual request, one textual
// reply. Transport problems (no reply, connection reset) come back as the
// error; a reply that reports a game-side failure is not a transport error.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// ExecutionResult is the parsed reply from the command channel. CommandError
// is set when the game received the command but reports that the action did
// not succeed, so the caller can re-plan rather than retry the transport.
type ExecutionResult struct {
	Output       string `json:"output,omitempty"`
	CommandError string `json:"command_error,omitempty"`
}

// OK reports whether the command succeeded in the game.
func (r ExecutionResult) OK() bool { return r.CommandError == "" }

// Runner turns a validated artifact plus call-time parameters into a command
// on the remote channel and classifies the reply.
type Runner struct {
	channel Executor
}

func NewRunner(channel Executor) *Runner {
	return &Runner{channel: channel}
}

// Replies carrying these prefixes mean the game rejected the action. The
// builtin templates and the script generation prompt both use "Error: ";
// "Failed: " matches the older scripts still in circulation.
var commandFailurePrefixes = []string{"Error:", "Failed:"}

func (r *Runner) Run(ctx context.Context, artifact Artifact, params map[string]any) (ExecutionResult, error) {
	command, err := Substitute(artifact.Source, params)
	if err != nil {
		return ExecutionResult{}, err
	}

	reply, err := r.channel.Execute(ctx, command)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("command channel: %w", err)
	}

	reply = strings.TrimSpace(reply)
	for _, prefix := range commandFailurePrefixes {
		if strings.HasPrefix(reply, prefix) {
			return ExecutionResult{CommandError: strings.TrimSpace(strings.TrimPrefix(reply, prefix))}, nil
		}
	}
	return ExecutionResult{Output: reply}, nil
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders lists the unique {name} parameters of a source in order of
// first appearance.
func Placeholders(source string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(source, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Substitute fills every placeholder with its parameter value. Every
// placeholder must have a scalar value; templates quote string parameters
// themselves, so values are inserted verbatim.
func Substitute(source string, params map[string]any) (string, error) {
	for _, name := range Placeholders(source) {
		value, ok := params[name]
		if !ok {
			return "", &ParameterError{Placeholder: name, Reason: "no value supplied"}
		}
		formatted, err := formatParam(name, value)
		if err != nil {
			return "", err
		}
		source = strings.ReplaceAll(source, "{"+name+"}", formatted)
	}
	return source, nil
}

func formatParam(name string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	default:
		return "", &ParameterError{Placeholder: name, Reason: fmt.Sprintf("unsupported value type %T", value)}
	}
}
