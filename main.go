// Interactive console for the tool catalog. Connects to a running Factorio
// server over RCON and lets you create, run, and inspect tools from a
// terminal UI built with Bubble Tea.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"factorioagent/internal/config"
	"factorioagent/internal/debug"
	"factorioagent/internal/llm"
	"factorioagent/internal/logging"
	"factorioagent/internal/rcon"
	"factorioagent/internal/tool"
)

type commandResultMsg struct {
	lines []string
	err   error
}

type animationTickMsg struct{}

type model struct {
	messages       []string
	input          string
	width          int
	height         int
	manager        *tool.Manager
	scriptsEnabled bool
	loading        bool
	animationFrame int
}

func initialModel(manager *tool.Manager, scriptsEnabled bool) model {
	return model{
		messages: []string{
			"Tool catalog console. Type 'help' for commands, 'quit' to exit.",
			"",
		},
		manager:        manager,
		scriptsEnabled: scriptsEnabled,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func animationTimer() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return animationTickMsg{}
	})
}

func getLoadingAnimation(frame int) string {
	arc := []string{"◜", "◠", "◝", "◞", "◡", "◟"}
	return arc[frame%len(arc)]
}

// parseParams turns key=value arguments into tool parameters, preferring
// numeric and boolean forms so placeholders land in Lua with the right type.
func parseParams(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			params[key] = n
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			params[key] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			params[key] = b
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func describeTool(desc tool.Descriptor) string {
	line := fmt.Sprintf("%s [%s, %s]", desc.Name, desc.Type, desc.Status)
	if placeholders := tool.Placeholders(desc.Source); len(placeholders) > 0 {
		line += " params: " + strings.Join(placeholders, ", ")
	}
	if desc.UseCount > 0 {
		line += fmt.Sprintf(" (%d runs)", desc.UseCount)
	}
	return line
}

func (m model) runCommand(line string) tea.Cmd {
	manager := m.manager
	scriptsEnabled := m.scriptsEnabled
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		fields := strings.Fields(line)
		command, args := fields[0], fields[1:]

		switch command {
		case "help":
			return commandResultMsg{lines: []string{
				"create <name> <requirement...>   generate a new script tool",
				"run <name> [key=value...]        execute a tool",
				"show <name>                      show a tool's source",
				"list [type]                      list tools",
				"remove <name>                    retire a tool",
				"stats                            catalog statistics",
				"quit                             exit",
			}}

		case "create":
			if !scriptsEnabled {
				return commandResultMsg{err: fmt.Errorf("script generation disabled: no OpenAI API key configured")}
			}
			if len(args) < 2 {
				return commandResultMsg{err: fmt.Errorf("usage: create <name> <requirement...>")}
			}
			name, requirement := args[0], strings.Join(args[1:], " ")
			desc, err := manager.CreateTool(ctx, tool.ScriptType, requirement, "", name)
			if err != nil {
				return commandResultMsg{err: err}
			}
			lines := []string{fmt.Sprintf("Created %s with status %s", desc.Name, desc.Status)}
			if len(desc.Diagnostics) > 0 {
				lines = append(lines, "Diagnostics: "+strings.Join(desc.Diagnostics, "; "))
			}
			return commandResultMsg{lines: lines}

		case "run":
			if len(args) < 1 {
				return commandResultMsg{err: fmt.Errorf("usage: run <name> [key=value...]")}
			}
			params, err := parseParams(args[1:])
			if err != nil {
				return commandResultMsg{err: err}
			}
			result, err := manager.ExecuteTool(ctx, args[0], params)
			if err != nil {
				return commandResultMsg{err: err}
			}
			if !result.OK() {
				return commandResultMsg{lines: []string{"Game rejected the command: " + result.CommandError}}
			}
			output := result.Output
			if output == "" {
				output = "(no output)"
			}
			return commandResultMsg{lines: []string{output}}

		case "show":
			if len(args) != 1 {
				return commandResultMsg{err: fmt.Errorf("usage: show <name>")}
			}
			desc, err := manager.GetTool(args[0])
			if err != nil {
				return commandResultMsg{err: err}
			}
			lines := []string{describeTool(desc)}
			if desc.Requirement != "" {
				lines = append(lines, "Requirement: "+desc.Requirement)
			}
			lines = append(lines, strings.Split(desc.Source, "\n")...)
			return commandResultMsg{lines: lines}

		case "list":
			typeFilter := ""
			if len(args) > 0 {
				typeFilter = args[0]
			}
			tools, err := manager.ListTools(typeFilter)
			if err != nil {
				return commandResultMsg{err: err}
			}
			if len(tools) == 0 {
				return commandResultMsg{lines: []string{"No tools in the catalog."}}
			}
			lines := make([]string, 0, len(tools))
			for _, desc := range tools {
				lines = append(lines, describeTool(desc))
			}
			return commandResultMsg{lines: lines}

		case "remove":
			if len(args) != 1 {
				return commandResultMsg{err: fmt.Errorf("usage: remove <name>")}
			}
			if err := manager.RemoveTool(args[0]); err != nil {
				return commandResultMsg{err: err}
			}
			return commandResultMsg{lines: []string{"Retired " + args[0]}}

		case "stats":
			stats, err := manager.GetStatistics()
			if err != nil {
				return commandResultMsg{err: err}
			}
			lines := []string{fmt.Sprintf("%d tools total", stats.Total)}
			for status, count := range stats.ByStatus {
				lines = append(lines, fmt.Sprintf("  %s: %d", status, count))
			}
			if stats.MostUsed != "" {
				lines = append(lines, fmt.Sprintf("Most used: %s (%d runs)", stats.MostUsed, stats.MostUsedRuns))
			}
			return commandResultMsg{lines: lines}

		default:
			return commandResultMsg{err: fmt.Errorf("unknown command %q, type 'help'", command)}
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case animationTickMsg:
		if m.loading {
			m.animationFrame++
			return m, animationTimer()
		}
		return m, nil

	case commandResultMsg:
		if m.loading {
			m.messages = m.messages[:len(m.messages)-1]
			m.loading = false
		}
		if msg.err != nil {
			m.messages = append(m.messages, "Error: "+msg.err.Error())
		} else {
			m.messages = append(m.messages, msg.lines...)
		}
		m.messages = append(m.messages, "")
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input)
			if line == "" || m.loading {
				return m, nil
			}
			m.input = ""
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			m.messages = append(m.messages, "> "+line)
			m.loading = true
			m.animationFrame = 0
			m.messages = append(m.messages, "LOADING_ANIMATION")
			return m, tea.Batch(m.runCommand(line), animationTimer())

		case "backspace":
			if len(m.input) > 0 && !m.loading {
				m.input = m.input[:len(m.input)-1]
			}
			return m, nil

		default:
			if len(msg.String()) == 1 && !m.loading {
				m.input += msg.String()
			}
			return m, nil
		}
	}

	return m, nil
}

func wrapAndIndent(text string, width int, indent string) string {
	if len(text) <= width {
		return indent + text
	}

	var result strings.Builder
	words := strings.Fields(text)
	if len(words) == 0 {
		return indent + text
	}

	currentLine := indent + words[0]

	for _, word := range words[1:] {
		if len(currentLine)+1+len(word) <= width {
			currentLine += " " + word
		} else {
			result.WriteString(currentLine + "\n")
			currentLine = indent + word
		}
	}

	result.WriteString(currentLine)
	return result.String()
}

func (m model) View() string {
	inputHeight := 3
	chatHeight := m.height - inputHeight

	messageStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("7"))

	userStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9"))

	loadingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("6"))

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1).
		Width(m.width - 4)

	chatPanel := lipgloss.NewStyle().
		Width(m.width).
		Height(chatHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1)

	var chatContent strings.Builder

	visibleMessages := m.messages
	maxMessages := chatHeight - 2
	if maxMessages < 1 {
		maxMessages = 1
	}

	if len(visibleMessages) > maxMessages {
		visibleMessages = visibleMessages[len(visibleMessages)-maxMessages:]
	}

	paddingLines := maxMessages - len(visibleMessages)
	for i := 0; i < paddingLines; i++ {
		chatContent.WriteString("\n")
	}

	contentWidth := m.width - 4

	for _, message := range visibleMessages {
		switch {
		case message == "":
			chatContent.WriteString("\n")
		case strings.HasPrefix(message, "> "):
			chatContent.WriteString(userStyle.Render(wrapAndIndent(message, contentWidth, " ")) + "\n")
		case strings.HasPrefix(message, "Error: "):
			chatContent.WriteString(errorStyle.Render(wrapAndIndent(message, contentWidth, " ")) + "\n")
		case message == "LOADING_ANIMATION":
			chatContent.WriteString(loadingStyle.Render(wrapAndIndent(getLoadingAnimation(m.animationFrame), contentWidth, " ")) + "\n")
		default:
			chatContent.WriteString(messageStyle.Render(wrapAndIndent(message, contentWidth, " ")) + "\n")
		}
	}

	chat := chatPanel.Render(chatContent.String())
	input := inputStyle.Render(m.input + "│")

	return chat + "\n" + input
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	debugLogger := debug.NewLogger(cfg.Debug.Enabled, cfg.Debug.LogPath)

	audit, err := logging.NewAuditLogger(cfg.Tools.AuditDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize audit logger: %v\n", err)
		os.Exit(1)
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
	scriptsEnabled := cfg.OpenAI.APIKey != ""
	if scriptsEnabled {
		llmService := llm.NewService(cfg.OpenAI.APIKey, cfg.OpenAI.Model, debugLogger)
		manager.RegisterProvider(tool.ScriptType, tool.NewScriptProvider(llmService, debugLogger))
	}
	if err := manager.LoadAllTools(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load tool catalog: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(manager, scriptsEnabled), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v", err)
	}
}
