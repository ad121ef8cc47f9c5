package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"factorioagent/internal/config"
	"factorioagent/internal/debug"
	"factorioagent/internal/tool"
)

// Catalog is the slice of the tool manager the bridge exposes over MQTT.
type Catalog interface {
	CreateTool(ctx context.Context, toolType, requirement, details, name string) (tool.Descriptor, error)
	ExecuteTool(ctx context.Context, name string, params map[string]any) (tool.ExecutionResult, error)
	ListTools(typeFilter string) ([]tool.Descriptor, error)
	RemoveTool(name string) error
	GetStatistics() (tool.Statistics, error)
}

// Bridge subscribes to a command topic and dispatches messages to the tool
// catalog, publishing each outcome on the response topic. It lets an
// external front end (Node-RED dashboards and the like) drive the same
// surface the agent loop uses.
type Bridge struct {
	cfg     config.MQTTConfig
	catalog Catalog
	debug   *debug.Logger
	client  pahomqtt.Client
	timeout time.Duration
}

// commandMessage is the wire format on the command topic. Command is either
// a management verb (create_tool, list_tools, remove_tool, get_statistics)
// or the name of a tool to execute.
type commandMessage struct {
	Command     string         `json:"command"`
	Params      map[string]any `json:"params,omitempty"`
	ToolType    string         `json:"tool_type,omitempty"`
	Requirement string         `json:"requirement,omitempty"`
	Details     string         `json:"details,omitempty"`
	Name        string         `json:"name,omitempty"`
}

type responseMessage struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewBridge(cfg config.MQTTConfig, catalog Catalog, debugLogger *debug.Logger) *Bridge {
	return &Bridge{
		cfg:     cfg,
		catalog: catalog,
		debug:   debugLogger,
		timeout: 2 * time.Minute,
	}
}

// Connect dials the broker and subscribes to the command topic. The
// subscription is re-established on every reconnect.
func (b *Bridge) Connect() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.OnConnect = func(client pahomqtt.Client) {
		if b.debug != nil {
			b.debug.Printf("mqtt connected to %s", b.cfg.Broker)
		}
		token := client.Subscribe(b.cfg.CommandTopic, 1, b.onMessage)
		token.Wait()
		if err := token.Error(); err != nil && b.debug != nil {
			b.debug.Printf("mqtt subscribe failed: %v", err)
		}
	}

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", b.cfg.Broker, err)
	}
	return nil
}

func (b *Bridge) Close() {
	if b.client != nil {
		b.client.Disconnect(250)
	}
}

func (b *Bridge) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	var cmd commandMessage
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		b.publish(responseMessage{Command: "unknown", Error: fmt.Sprintf("malformed payload: %v", err)})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	b.publish(b.dispatch(ctx, cmd))
}

func (b *Bridge) dispatch(ctx context.Context, cmd commandMessage) responseMessage {
	resp := responseMessage{Command: cmd.Command}

	switch cmd.Command {
	case "create_tool":
		toolType := cmd.ToolType
		if toolType == "" {
			toolType = tool.ScriptType
		}
		desc, err := b.catalog.CreateTool(ctx, toolType, cmd.Requirement, cmd.Details, cmd.Name)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Success = true
		resp.Result = desc

	case "list_tools":
		tools, err := b.catalog.ListTools(cmd.ToolType)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Success = true
		resp.Result = tools

	case "remove_tool":
		if err := b.catalog.RemoveTool(cmd.Name); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Success = true

	case "get_statistics":
		stats, err := b.catalog.GetStatistics()
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Success = true
		resp.Result = stats

	default:
		// Anything else is a tool name to execute.
		result, err := b.catalog.ExecuteTool(ctx, cmd.Command, cmd.Params)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Success = result.OK()
		resp.Result = result
	}
	return resp
}

func (b *Bridge) publish(resp responseMessage) {
	payload, err := json.Marshal(resp)
	if err != nil {
		if b.debug != nil {
			b.debug.Printf("mqtt marshal response failed: %v", err)
		}
		return
	}
	token := b.client.Publish(b.cfg.ResponseTopic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil && b.debug != nil {
		b.debug.Printf("mqtt publish failed: %v", err)
	}
}
