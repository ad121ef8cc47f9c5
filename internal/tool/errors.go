package tool

import "fmt"

// UnknownToolTypeError is returned when no provider is registered for the
// requested tool type.
type UnknownToolTypeError struct {
	Type string
}

func (e *UnknownToolTypeError) Error() string {
	return fmt.Sprintf("no provider registered for tool type %q", e.Type)
}

// DuplicateNameError is returned when creating a tool whose name is already
// taken. The existing catalog entry is left untouched.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("tool %q already exists", e.Name)
}

// NotFoundError is returned when a tool name is absent from the catalog.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// InvalidToolError is returned when executing a tool that is not in the
// valid state (invalid or retired).
type InvalidToolError struct {
	Name   string
	Status Status
}

func (e *InvalidToolError) Error() string {
	return fmt.Sprintf("tool %q is %s and cannot be executed", e.Name, e.Status)
}

// GenerationError is returned when a provider could not produce a usable
// artifact for a requirement.
type GenerationError struct {
	Requirement string
	Err         error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate tool for %q: %v", e.Requirement, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ParameterError is returned when call-time parameters do not satisfy the
// artifact's placeholders.
type ParameterError struct {
	Placeholder string
	Reason      string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Placeholder, e.Reason)
}

// CorruptStoreError is returned when the persisted metadata cannot be parsed.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("metadata store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

// PersistenceError is returned when the metadata store cannot be read or
// written. The on-disk store is never left partially written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("metadata store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
