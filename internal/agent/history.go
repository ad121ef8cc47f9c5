package agent

import "fmt"

// History is the bounded record of recent steps fed back to the planner.
// Older entries fall off so the prompt stays a fixed size regardless of how
// long the session runs.
type History struct {
	entries []string
	maxSize int
}

func NewHistory(maxSize int) *History {
	return &History{
		entries: make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

// AddResult records the outcome of one action in a step.
func (h *History) AddResult(step int, result string) {
	h.add(fmt.Sprintf("step %d: %s", step, result))
}

// AddError records a step that failed before producing results.
func (h *History) AddError(step int, err error) {
	h.add(fmt.Sprintf("step %d error: %v", step, err))
}

func (h *History) add(entry string) {
	h.entries = append(h.entries, entry)

	if len(h.entries) > h.maxSize {
		h.entries = h.entries[len(h.entries)-h.maxSize:]
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (h *History) Entries() []string {
	result := make([]string, len(h.entries))
	copy(result, h.entries)
	return result
}
