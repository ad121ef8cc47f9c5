package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration, loaded from a TOML file.
type Config struct {
	RCON    RCONConfig    `toml:"rcon"`
	OpenAI  OpenAIConfig  `toml:"openai"`
	Agent   AgentConfig   `toml:"agent"`
	Tools   ToolsConfig   `toml:"tools"`
	MQTT    MQTTConfig    `toml:"mqtt"`
	Tracing TracingConfig `toml:"tracing"`
	Debug   DebugConfig   `toml:"debug"`
}

type RCONConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
}

type OpenAIConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type AgentConfig struct {
	MaxSteps      int `toml:"max_steps"`
	StepDelaySecs int `toml:"step_delay"`
	StepTimeout   int `toml:"step_timeout"`
}

type ToolsConfig struct {
	MetadataPath string `toml:"metadata_path"`
	AuditDBPath  string `toml:"audit_db_path"`
}

type MQTTConfig struct {
	Broker        string `toml:"broker"`
	ClientID      string `toml:"client_id"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	CommandTopic  string `toml:"command_topic"`
	ResponseTopic string `toml:"response_topic"`
}

type TracingConfig struct {
	Enabled     bool              `toml:"enabled"`
	Endpoint    string            `toml:"endpoint"`
	Headers     map[string]string `toml:"headers"`
	Environment string            `toml:"environment"`
}

type DebugConfig struct {
	Enabled bool   `toml:"enabled"`
	LogPath string `toml:"log_path"`
}

// Load reads and decodes a TOML config file, filling defaults for anything
// the file leaves out.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		RCON: RCONConfig{
			Host: "127.0.0.1",
			Port: 27015,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		Agent: AgentConfig{
			MaxSteps:      100,
			StepDelaySecs: 5,
			StepTimeout:   120,
		},
		Tools: ToolsConfig{
			MetadataPath: "tool_metadata.json",
			AuditDBPath:  "audit.db",
		},
		MQTT: MQTTConfig{
			Broker:        "tcp://localhost:1883",
			ClientID:      "factorio_agent",
			CommandTopic:  "Factorio/Commands",
			ResponseTopic: "Factorio/Responses",
		},
		Debug: DebugConfig{
			LogPath: "debug.log",
		},
	}
}
