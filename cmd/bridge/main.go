// MQTT bridge. Subscribes to a command topic and executes the corresponding
// catalog operations against the Factorio server, publishing results back.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"factorioagent/internal/config"
	"factorioagent/internal/debug"
	"factorioagent/internal/llm"
	"factorioagent/internal/logging"
	"factorioagent/internal/mqtt"
	"factorioagent/internal/rcon"
	"factorioagent/internal/tool"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debugLogger := debug.NewLogger(cfg.Debug.Enabled, cfg.Debug.LogPath)

	audit, err := logging.NewAuditLogger(cfg.Tools.AuditDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	defer audit.Close()

	channel := rcon.NewClient(cfg.RCON.Host, cfg.RCON.Port, cfg.RCON.Password, debugLogger)
	defer channel.Close()

	manager := tool.NewManager(
		tool.NewStore(cfg.Tools.MetadataPath),
		tool.NewRunner(channel),
		debugLogger,
	)
	manager.SetAuditLog(audit)
	manager.RegisterProvider(tool.BuiltinType, tool.NewBuiltinProvider())
	if cfg.OpenAI.APIKey != "" {
		llmService := llm.NewService(cfg.OpenAI.APIKey, cfg.OpenAI.Model, debugLogger)
		manager.RegisterProvider(tool.ScriptType, tool.NewScriptProvider(llmService, debugLogger))
	}
	if err := manager.LoadAllTools(); err != nil {
		return fmt.Errorf("failed to load tool catalog: %w", err)
	}

	bridge := mqtt.NewBridge(cfg.MQTT, manager, debugLogger)
	if err := bridge.Connect(); err != nil {
		return err
	}
	defer bridge.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}
