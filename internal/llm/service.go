package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"factorioagent/internal/debug"
	"factorioagent/internal/observability"
)

type contextKey string

const operationTypeKey contextKey = "operation_type"

// Service wraps the OpenAI chat completion API behind the two shapes the
// agent needs: plain text and a JSON object.
type Service struct {
	client *openai.Client
	model  string
	debug  *debug.Logger
	tracer trace.Tracer
}

func NewService(apiKey, model string, debugLogger *debug.Logger) *Service {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Service{
		client: &client,
		model:  model,
		debug:  debugLogger,
		tracer: otel.Tracer("llm-service"),
	}
}

type TextCompletionRequest struct {
	SystemPrompt    string
	UserPrompt      string
	MaxTokens       int
	Model           string // optional override
	ReasoningEffort string // optional: minimal, low, medium, high
}

type JSONCompletionRequest struct {
	SystemPrompt    string
	UserPrompt      string
	MaxTokens       int
	Model           string // optional override
	ReasoningEffort string // optional: minimal, low, medium, high
}

func (s *Service) CompleteText(ctx context.Context, req TextCompletionRequest) (string, error) {
	return s.complete(ctx, "llm.complete_text", req.SystemPrompt, req.UserPrompt, req.MaxTokens, req.Model, req.ReasoningEffort, false)
}

func (s *Service) CompleteJSON(ctx context.Context, req JSONCompletionRequest) (string, error) {
	return s.complete(ctx, "llm.complete_json", req.SystemPrompt, req.UserPrompt, req.MaxTokens, req.Model, req.ReasoningEffort, true)
}

func (s *Service) complete(ctx context.Context, spanName, systemPrompt, userPrompt string, maxTokens int, modelOverride, reasoningEffort string, jsonMode bool) (string, error) {
	if opType := getOperationType(ctx); opType != "" {
		spanName = opType
	}

	model := s.model
	if strings.TrimSpace(modelOverride) != "" {
		model = modelOverride
	}

	ctx, span := s.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			observability.CreateGenAIAttributes("openai", model, 0, 0)...,
		),
	)
	defer span.End()

	span.SetAttributes(attribute.Int("gen_ai.request.max_tokens", maxTokens))
	if sessionID := observability.GetSessionIDFromContext(ctx); sessionID != "" {
		span.SetAttributes(attribute.String("session.id", sessionID))
	}

	openaiReq := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if jsonMode {
		openaiReq.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: func() *shared.ResponseFormatJSONObjectParam {
				p := shared.NewResponseFormatJSONObjectParam()
				return &p
			}(),
		}
	}
	if reasoningEffort != "" {
		openaiReq.ReasoningEffort = shared.ReasoningEffort(reasoningEffort)
	}

	if s.debug != nil {
		s.debug.Printf("LLM completion %s - model: %s, max tokens: %d, system prompt length: %d",
			spanName, model, maxTokens, len(systemPrompt))
	}

	startTime := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, openaiReq)
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "llm_completion_error"))
		span.RecordError(err)
		if s.debug != nil {
			s.debug.Printf("LLM completion error: %v", err)
		}
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no completion choices returned")
		span.RecordError(err)
		return "", err
	}

	content := resp.Choices[0].Message.Content
	duration := time.Since(startTime)

	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
		attribute.Int64("response_time_ms", duration.Milliseconds()),
	)

	if s.debug != nil {
		s.debug.Printf("LLM completion response length: %d, tokens: %d/%d, duration: %v",
			len(content), resp.Usage.PromptTokens, resp.Usage.CompletionTokens, duration)
	}

	return content, nil
}

// WithOperationType overrides the span name of the next completion so traces
// read as agent operations rather than raw LLM calls.
func WithOperationType(ctx context.Context, opType string) context.Context {
	return context.WithValue(ctx, operationTypeKey, opType)
}

func getOperationType(ctx context.Context) string {
	if opType, ok := ctx.Value(operationTypeKey).(string); ok {
		return opType
	}
	return ""
}
