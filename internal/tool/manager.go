package tool

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"factorioagent/internal/debug"
)

// AuditLog records generations and executions for later inspection. The
// manager treats it as best effort: audit failures never fail the operation.
type AuditLog interface {
	LogGeneration(name, toolType, requirement, source string, valid bool, diagnostics []string) error
	LogExecution(name, command, output, commandError string, transportErr error) error
}

// Manager owns the tool catalog: the persisted descriptor set plus the
// provider registry. It is the only component that touches the store, and
// every mutation goes through load-modify-atomic-save so the in-memory view
// never drifts from disk.
type Manager struct {
	mu        sync.Mutex
	store     *Store
	runner    *Runner
	providers map[string]Provider
	tools     map[string]Descriptor
	loaded    bool
	debug     *debug.Logger
	audit     AuditLog
	tracer    trace.Tracer
	now       func() time.Time
}

func NewManager(store *Store, runner *Runner, debugLogger *debug.Logger) *Manager {
	return &Manager{
		store:     store,
		runner:    runner,
		providers: make(map[string]Provider),
		tools:     make(map[string]Descriptor),
		debug:     debugLogger,
		tracer:    otel.Tracer("tool-manager"),
		now:       time.Now,
	}
}

// SetAuditLog attaches an audit sink. Safe to leave unset.
func (m *Manager) SetAuditLog(audit AuditLog) {
	m.audit = audit
}

// RegisterProvider makes a tool type creatable. Adding a type is a
// registration, never an edit to the manager.
func (m *Manager) RegisterProvider(toolType string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[toolType] = provider
	if m.debug != nil {
		m.debug.Printf("registered provider for tool type %q", toolType)
	}
}

// LoadAllTools populates the catalog from the store and seeds any builtin
// tools that are not yet present. Idempotent; call once at startup.
func (m *Manager) LoadAllTools() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.reloadLocked(); err != nil {
		return err
	}

	seeded := 0
	for _, provider := range m.providers {
		cataloger, ok := provider.(Cataloger)
		if !ok {
			continue
		}
		for _, desc := range cataloger.CatalogTools() {
			if _, exists := m.tools[desc.Name]; exists {
				continue
			}
			m.tools[desc.Name] = desc
			seeded++
		}
	}
	if seeded > 0 {
		if err := m.saveLocked(); err != nil {
			return err
		}
	}

	m.loaded = true
	if m.debug != nil {
		m.debug.Printf("loaded %d tools (%d seeded)", len(m.tools), seeded)
	}
	return nil
}

// CreateTool generates, validates, and persists a new tool. A failed
// validation is not an error: the descriptor is persisted with status
// invalid and its diagnostics, preserving the audit trail of failed
// generations. Generation is a long-latency call; impose a deadline through
// ctx.
func (m *Manager) CreateTool(ctx context.Context, toolType, requirement, details, name string) (Descriptor, error) {
	ctx, span := m.tracer.Start(ctx, "tool.create",
		trace.WithAttributes(
			attribute.String("tool_type", toolType),
			attribute.String("tool_name", name),
		),
	)
	defer span.End()

	provider, ok := m.providerFor(toolType)
	if !ok {
		err := &UnknownToolTypeError{Type: toolType}
		span.RecordError(err)
		return Descriptor{}, err
	}

	if name == "" {
		name = "tool_" + strings.Split(uuid.NewString(), "-")[0]
		span.SetAttributes(attribute.String("tool_name", name))
	}

	if err := m.checkNameFree(name); err != nil {
		span.RecordError(err)
		return Descriptor{}, err
	}

	artifact, err := provider.Generate(ctx, GenerateRequest{
		Requirement: requirement,
		Details:     details,
		Name:        name,
	})
	if err != nil {
		span.RecordError(err)
		return Descriptor{}, err
	}

	validation := provider.Validate(artifact)
	desc := Descriptor{
		Name:        name,
		Type:        toolType,
		Source:      artifact.Source,
		Status:      StatusValid,
		CreatedAt:   m.now().UTC(),
		Requirement: requirement,
	}
	if !validation.Valid {
		desc.Status = StatusInvalid
		desc.Diagnostics = validation.Diagnostics
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadLocked(); err != nil {
		return Descriptor{}, err
	}
	if _, exists := m.tools[name]; exists {
		err := &DuplicateNameError{Name: name}
		span.RecordError(err)
		return Descriptor{}, err
	}
	m.tools[name] = desc
	if err := m.saveLocked(); err != nil {
		delete(m.tools, name)
		span.RecordError(err)
		return Descriptor{}, err
	}

	span.SetAttributes(attribute.String("status", string(desc.Status)))
	if m.audit != nil {
		if auditErr := m.audit.LogGeneration(name, toolType, requirement, desc.Source, validation.Valid, validation.Diagnostics); auditErr != nil && m.debug != nil {
			m.debug.Printf("audit log generation failed: %v", auditErr)
		}
	}
	return desc, nil
}

// GetTool returns the descriptor for a name.
func (m *Manager) GetTool(name string) (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadLocked(); err != nil {
		return Descriptor{}, err
	}
	desc, ok := m.tools[name]
	if !ok {
		return Descriptor{}, &NotFoundError{Name: name}
	}
	return desc, nil
}

// ExecuteTool runs a valid tool against the command channel. On success the
// usage counters are updated and persisted. A command-level failure is
// reported inside the result, not as an error, so the agent loop can
// distinguish re-planning from transport retry.
func (m *Manager) ExecuteTool(ctx context.Context, name string, params map[string]any) (ExecutionResult, error) {
	ctx, span := m.tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(attribute.String("tool_name", name)),
	)
	defer span.End()

	m.mu.Lock()
	if err := m.reloadLocked(); err != nil {
		m.mu.Unlock()
		return ExecutionResult{}, err
	}
	desc, ok := m.tools[name]
	m.mu.Unlock()
	if !ok {
		err := &NotFoundError{Name: name}
		span.RecordError(err)
		return ExecutionResult{}, err
	}
	if !desc.Executable() {
		err := &InvalidToolError{Name: name, Status: desc.Status}
		span.RecordError(err)
		return ExecutionResult{}, err
	}

	result, err := m.runner.Run(ctx, Artifact{Source: desc.Source}, params)
	if m.audit != nil {
		if auditErr := m.audit.LogExecution(name, desc.Source, result.Output, result.CommandError, err); auditErr != nil && m.debug != nil {
			m.debug.Printf("audit log execution failed: %v", auditErr)
		}
	}
	if err != nil {
		span.RecordError(err)
		return ExecutionResult{}, err
	}
	if !result.OK() {
		span.SetAttributes(attribute.String("command_error", result.CommandError))
		return result, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadLocked(); err != nil {
		return result, err
	}
	if current, ok := m.tools[name]; ok {
		current.UseCount++
		current.LastUsedAt = m.now().UTC()
		m.tools[name] = current
		if err := m.saveLocked(); err != nil {
			return result, err
		}
	}
	span.SetAttributes(attribute.String("result", "success"))
	return result, nil
}

// ListTools returns a snapshot of the catalog ordered by creation time.
// Pass an empty filter for all types.
func (m *Manager) ListTools(typeFilter string) ([]Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadLocked(); err != nil {
		return nil, err
	}

	tools := make([]Descriptor, 0, len(m.tools))
	for _, desc := range m.tools {
		if typeFilter != "" && desc.Type != typeFilter {
			continue
		}
		tools = append(tools, desc)
	}
	sort.Slice(tools, func(i, j int) bool {
		if tools[i].CreatedAt.Equal(tools[j].CreatedAt) {
			return tools[i].Name < tools[j].Name
		}
		return tools[i].CreatedAt.Before(tools[j].CreatedAt)
	})
	return tools, nil
}

// RemoveTool retires a tool. Retired tools stay listed for audit but can no
// longer be executed. Removing an already-retired tool is a no-op.
func (m *Manager) RemoveTool(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadLocked(); err != nil {
		return err
	}
	desc, ok := m.tools[name]
	if !ok {
		return &NotFoundError{Name: name}
	}
	if desc.Status == StatusRetired {
		return nil
	}
	desc.Status = StatusRetired
	m.tools[name] = desc
	return m.saveLocked()
}

// GetStatistics derives aggregate counts from the catalog.
func (m *Manager) GetStatistics() (Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadLocked(); err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		Total:    len(m.tools),
		ByStatus: make(map[Status]int),
	}
	for _, desc := range m.tools {
		stats.ByStatus[desc.Status]++
		if desc.UseCount > stats.MostUsedRuns {
			stats.MostUsed = desc.Name
			stats.MostUsedRuns = desc.UseCount
		}
	}
	return stats, nil
}

func (m *Manager) providerFor(toolType string) (Provider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	provider, ok := m.providers[toolType]
	return provider, ok
}

func (m *Manager) checkNameFree(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadLocked(); err != nil {
		return err
	}
	if _, exists := m.tools[name]; exists {
		return &DuplicateNameError{Name: name}
	}
	return nil
}

// reloadLocked refreshes the in-memory view from disk; the store is the
// single source of truth and may be written by another process between
// operations.
func (m *Manager) reloadLocked() error {
	tools, err := m.store.Load()
	if err != nil {
		return err
	}
	m.tools = make(map[string]Descriptor, len(tools))
	for _, desc := range tools {
		m.tools[desc.Name] = desc
	}
	return nil
}

func (m *Manager) saveLocked() error {
	tools := make([]Descriptor, 0, len(m.tools))
	for _, desc := range m.tools {
		tools = append(tools, desc)
	}
	sort.Slice(tools, func(i, j int) bool {
		if tools[i].CreatedAt.Equal(tools[j].CreatedAt) {
			return tools[i].Name < tools[j].Name
		}
		return tools[i].CreatedAt.Before(tools[j].CreatedAt)
	})
	return m.store.Save(tools)
}
