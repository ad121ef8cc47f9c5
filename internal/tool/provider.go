package tool

import (
	"context"
)

// GenerateRequest describes the tool a caller wants to bring into existence.
type GenerateRequest struct {
	Requirement string
	Details     string
	Name        string
}

// Artifact is the implementation payload a provider produces: the command
// source, possibly containing {placeholder} parameters to be substituted at
// call time.
type Artifact struct {
	Source      string
	Description string
}

// ValidationResult is a data result, never an error: an unusable artifact is
// an expected outcome of generation, and its diagnostics are kept for audit.
type ValidationResult struct {
	Valid       bool
	Diagnostics []string
}

// Provider generates and validates artifacts for one tool type. Providers
// are stateless with respect to the catalog: they never touch the store.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (Artifact, error)
	Validate(artifact Artifact) ValidationResult
}

// Cataloger is implemented by providers that ship a fixed set of tools which
// should always be present in the catalog. The manager seeds any missing
// entries during LoadAllTools.
type Cataloger interface {
	CatalogTools() []Descriptor
}
