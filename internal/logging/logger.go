package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// AuditLogger records tool generations and executions in a local SQLite
// database so failed generations and rejected commands stay inspectable
// after the session ends.
type AuditLogger struct {
	db *sql.DB
}

type GenerationRecord struct {
	ID          int       `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	ToolName    string    `json:"tool_name"`
	ToolType    string    `json:"tool_type"`
	Requirement string    `json:"requirement"`
	Source      string    `json:"source"`
	Valid       bool      `json:"valid"`
	Diagnostics string    `json:"diagnostics"`
}

type ExecutionRecord struct {
	ID           int       `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	ToolName     string    `json:"tool_name"`
	Command      string    `json:"command"`
	Output       string    `json:"output"`
	CommandError string    `json:"command_error"`
	TransportErr string    `json:"transport_error"`
}

func NewAuditLogger(path string) (*AuditLogger, error) {
	if path == "" {
		path = "./audit.db"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := &AuditLogger{db: db}
	if err := logger.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return logger, nil
}

func (al *AuditLogger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		tool_name TEXT NOT NULL,
		tool_type TEXT NOT NULL,
		requirement TEXT NOT NULL,
		source TEXT NOT NULL,
		valid INTEGER NOT NULL,
		diagnostics TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		tool_name TEXT NOT NULL,
		command TEXT NOT NULL,
		output TEXT NOT NULL,
		command_error TEXT NOT NULL,
		transport_error TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_tool ON generations(tool_name);
	CREATE INDEX IF NOT EXISTS idx_executions_tool ON executions(tool_name);
	`

	_, err := al.db.Exec(schema)
	return err
}

func (al *AuditLogger) LogGeneration(name, toolType, requirement, source string, valid bool, diagnostics []string) error {
	diagJSON, err := json.Marshal(diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	_, err = al.db.Exec(`
		INSERT INTO generations (tool_name, tool_type, requirement, source, valid, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?)
	`, name, toolType, requirement, source, valid, string(diagJSON))

	return err
}

func (al *AuditLogger) LogExecution(name, command, output, commandError string, transportErr error) error {
	transport := ""
	if transportErr != nil {
		transport = transportErr.Error()
	}

	_, err := al.db.Exec(`
		INSERT INTO executions (tool_name, command, output, command_error, transport_error)
		VALUES (?, ?, ?, ?, ?)
	`, name, command, output, commandError, transport)

	return err
}

func (al *AuditLogger) Close() error {
	return al.db.Close()
}
