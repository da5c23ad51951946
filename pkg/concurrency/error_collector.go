package concurrency

import (
	"fmt"
	"strings"
	"sync"
)

// ErrorCollector safely collects keyed errors from concurrent operations,
// remembering the order in which keys first failed.
type ErrorCollector struct {
	mu         sync.RWMutex
	errors     map[string]error
	errorOrder []string
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors:     make(map[string]error),
		errorOrder: make([]string, 0),
	}
}

// Add records err for id. Only the first error per id is kept.
func (ec *ErrorCollector) Add(id string, err error) {
	if err == nil {
		return
	}

	ec.mu.Lock()
	defer ec.mu.Unlock()

	if _, exists := ec.errors[id]; exists {
		return
	}
	ec.errors[id] = err
	ec.errorOrder = append(ec.errorOrder, id)
}

// HasErrors returns true if any errors have been collected
func (ec *ErrorCollector) HasErrors() bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.errors) > 0
}

// Len returns the number of failed ids
func (ec *ErrorCollector) Len() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.errors)
}

// IDs returns failed ids in first-failure order
func (ec *ErrorCollector) IDs() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	ids := make([]string, len(ec.errorOrder))
	copy(ids, ec.errorOrder)
	return ids
}

// Get returns the error recorded for id
func (ec *ErrorCollector) Get(id string) (error, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	err, ok := ec.errors[id]
	return err, ok
}

// Summary builds a one-line description of every collected error.
func (ec *ErrorCollector) Summary() string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	if len(ec.errors) == 0 {
		return ""
	}
	if len(ec.errors) == 1 {
		id := ec.errorOrder[0]
		return fmt.Sprintf("error processing %s: %v", id, ec.errors[id])
	}

	messages := make([]string, 0, len(ec.errorOrder))
	for _, id := range ec.errorOrder {
		messages = append(messages, fmt.Sprintf("%s: %v", id, ec.errors[id]))
	}
	return fmt.Sprintf("%d errors occurred: %s", len(ec.errors), strings.Join(messages, "; "))
}
