package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"factorioagent/internal/debug"
	"factorioagent/internal/game"
	"factorioagent/internal/llm"
	"factorioagent/internal/observability"
	"factorioagent/internal/tool"
)

// Catalog is the slice of the tool manager the loop drives.
type Catalog interface {
	CreateTool(ctx context.Context, toolType, requirement, details, name string) (tool.Descriptor, error)
	ExecuteTool(ctx context.Context, name string, params map[string]any) (tool.ExecutionResult, error)
	ListTools(typeFilter string) ([]tool.Descriptor, error)
}

// Completer is the completion surface the planner needs.
type Completer interface {
	CompleteJSON(ctx context.Context, req llm.JSONCompletionRequest) (string, error)
}

// Config bounds a loop run. Tool creation and execution are long blocking
// calls with no implicit timeout of their own; StepTimeout is the deadline
// the loop imposes around each step.
type Config struct {
	Goal        string
	MaxSteps    int
	StepDelay   time.Duration
	StepTimeout time.Duration
	ScanRadius  float64
}

// Loop is the agent decision cycle: observe the game, ask the LLM for a
// plan, run the plan through the tool catalog, and feed the outcomes back.
type Loop struct {
	catalog   Catalog
	state     *game.StateReader
	llm       Completer
	debug     *debug.Logger
	tracer    trace.Tracer
	cfg       Config
	history   *History
	sessionID string
}

func NewLoop(catalog Catalog, state *game.StateReader, completer Completer, debugLogger *debug.Logger, cfg Config) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 100
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 2 * time.Minute
	}
	if cfg.ScanRadius <= 0 {
		cfg.ScanRadius = 20
	}
	return &Loop{
		catalog:   catalog,
		state:     state,
		llm:       completer,
		debug:     debugLogger,
		tracer:    otel.Tracer("agent-loop"),
		cfg:       cfg,
		history:   NewHistory(12),
		sessionID: uuid.NewString(),
	}
}

// actionPlan is the LLM's JSON reply for one turn.
type actionPlan struct {
	Thought string `json:"thought"`
	Actions []struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	} `json:"actions"`
	NewTool *struct {
		Name        string `json:"name"`
		Requirement string `json:"requirement"`
		Details     string `json:"details"`
	} `json:"new_tool"`
}

// Run executes steps until MaxSteps is reached or the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ctx = observability.WithSessionID(ctx, l.sessionID)
	if l.debug != nil {
		l.debug.Printf("agent session %s starting: %s", l.sessionID, l.cfg.Goal)
	}

	for step := 1; step <= l.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.step(ctx, step); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}

		if step < l.cfg.MaxSteps && l.cfg.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.cfg.StepDelay):
			}
		}
	}
	return nil
}

func (l *Loop) step(ctx context.Context, step int) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StepTimeout)
	defer cancel()

	ctx, span := l.tracer.Start(ctx, "agent.step",
		trace.WithAttributes(attribute.Int("step", step)),
	)
	defer span.End()

	snapshot, err := l.state.Read(ctx, l.cfg.ScanRadius)
	if err != nil {
		span.RecordError(err)
		return err
	}

	plan, err := l.plan(ctx, snapshot)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if l.debug != nil && plan.Thought != "" {
		l.debug.Printf("step %d thought: %s", step, plan.Thought)
	}

	var results []string
	if plan.NewTool != nil {
		results = append(results, l.createTool(ctx, plan))
	}
	for _, action := range plan.Actions {
		results = append(results, l.runAction(ctx, action.Tool, action.Args))
	}
	for _, result := range results {
		l.history.AddResult(step, result)
	}

	span.SetAttributes(attribute.StringSlice("results", results))
	return nil
}

func (l *Loop) plan(ctx context.Context, snapshot game.Snapshot) (actionPlan, error) {
	catalog, err := l.catalog.ListTools("")
	if err != nil {
		return actionPlan{}, err
	}

	userPrompt, err := buildTurnPrompt(l.cfg.Goal, snapshot, catalog, l.history.Entries())
	if err != nil {
		return actionPlan{}, err
	}

	reply, err := l.llm.CompleteJSON(llm.WithOperationType(ctx, "agent.plan"), llm.JSONCompletionRequest{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    800,
	})
	if err != nil {
		return actionPlan{}, fmt.Errorf("plan completion: %w", err)
	}

	var plan actionPlan
	if err := json.Unmarshal([]byte(reply), &plan); err != nil {
		return actionPlan{}, fmt.Errorf("unparseable plan %q: %w", reply, err)
	}
	return plan, nil
}

func (l *Loop) createTool(ctx context.Context, plan actionPlan) string {
	desc, err := l.catalog.CreateTool(ctx, tool.ScriptType, plan.NewTool.Requirement, plan.NewTool.Details, plan.NewTool.Name)
	if err != nil {
		return fmt.Sprintf("create_tool %s failed: %v", plan.NewTool.Name, err)
	}
	if desc.Status != tool.StatusValid {
		return fmt.Sprintf("create_tool %s: generated script rejected: %s",
			desc.Name, strings.Join(desc.Diagnostics, "; "))
	}
	params := tool.Placeholders(desc.Source)
	return fmt.Sprintf("create_tool %s: ready, parameters: %s", desc.Name, strings.Join(params, ", "))
}

func (l *Loop) runAction(ctx context.Context, name string, args map[string]any) string {
	result, err := l.catalog.ExecuteTool(ctx, name, args)
	if err != nil {
		return fmt.Sprintf("%s failed: %v", name, err)
	}
	if !result.OK() {
		return fmt.Sprintf("%s rejected by game: %s", name, result.CommandError)
	}
	if result.Output == "" {
		return fmt.Sprintf("%s: done", name)
	}
	return fmt.Sprintf("%s: %s", name, result.Output)
}

func buildTurnPrompt(goal string, snapshot game.Snapshot, catalog []tool.Descriptor, history []string) (string, error) {
	stateJSON, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GOAL: %s\n\nGAME STATE:\n%s\n\nTOOL CATALOG:\n", goal, stateJSON)
	for _, desc := range catalog {
		if !desc.Executable() {
			continue
		}
		params := tool.Placeholders(desc.Source)
		fmt.Fprintf(&b, "- %s (%s)", desc.Name, desc.Type)
		if len(params) > 0 {
			fmt.Fprintf(&b, " parameters: %s", strings.Join(params, ", "))
		}
		if desc.Requirement != "" {
			fmt.Fprintf(&b, ": %s", desc.Requirement)
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("\nRECENT RESULTS:\n")
		for _, entry := range history {
			fmt.Fprintf(&b, "- %s\n", entry)
		}
	}
	return b.String(), nil
}
