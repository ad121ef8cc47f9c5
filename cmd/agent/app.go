package main

import (
	"context"
	"fmt"
	"time"

	"factorioagent/internal/agent"
	"factorioagent/internal/config"
	"factorioagent/internal/debug"
	"factorioagent/internal/game"
	"factorioagent/internal/llm"
	"factorioagent/internal/logging"
	"factorioagent/internal/observability"
	"factorioagent/internal/rcon"
	"factorioagent/internal/tool"
)

func createAgent(configPath, goal string) (*agent.Loop, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.OpenAI.APIKey == "" {
		return nil, nil, fmt.Errorf("no OpenAI API key in config or OPENAI_API_KEY environment")
	}

	debugLogger := debug.NewLogger(cfg.Debug.Enabled, cfg.Debug.LogPath)

	ctx := context.Background()
	tracerProvider, err := observability.InitTracing(ctx, observability.Config{
		ServiceName:    "factorio-agent",
		ServiceVersion: "v1.0.0",
		Environment:    cfg.Tracing.Environment,
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		Headers:        cfg.Tracing.Headers,
	})
	if err != nil {
		debugLogger.Printf("Failed to initialize tracing: %v", err)
	} else if tracerProvider.IsEnabled() {
		debugLogger.Println("OpenTelemetry tracing initialized and enabled")
	}

	audit, err := logging.NewAuditLogger(cfg.Tools.AuditDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	llmService := llm.NewService(cfg.OpenAI.APIKey, cfg.OpenAI.Model, debugLogger)
	channel := rcon.NewClient(cfg.RCON.Host, cfg.RCON.Port, cfg.RCON.Password, debugLogger)

	manager := tool.NewManager(
		tool.NewStore(cfg.Tools.MetadataPath),
		tool.NewRunner(channel),
		debugLogger,
	)
	manager.SetAuditLog(audit)
	manager.RegisterProvider(tool.BuiltinType, tool.NewBuiltinProvider())
	manager.RegisterProvider(tool.ScriptType, tool.NewScriptProvider(llmService, debugLogger))
	if err := manager.LoadAllTools(); err != nil {
		return nil, nil, fmt.Errorf("failed to load tool catalog: %w", err)
	}

	loop := agent.NewLoop(
		manager,
		game.NewStateReader(manager, debugLogger),
		llmService,
		debugLogger,
		agent.Config{
			Goal:        goal,
			MaxSteps:    cfg.Agent.MaxSteps,
			StepDelay:   time.Duration(cfg.Agent.StepDelaySecs) * time.Second,
			StepTimeout: time.Duration(cfg.Agent.StepTimeout) * time.Second,
		},
	)

	cleanup := func() {
		channel.Close()
		audit.Close()
		if tracerProvider != nil {
			tracerProvider.Shutdown(context.Background())
		}
	}
	return loop, cleanup, nil
}
