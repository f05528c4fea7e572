package vcs

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/govtag/internal/model"
)

// MemoryTag is a tag held by Memory.
type MemoryTag struct {
	Name       string
	Annotation string
	Target     string
}

// Memory is an in-process Backend for tests and dry runs.
//
// Tags are kept in creation order; the most recently created tag not on
// the queried commit is the "most recent reachable tag". Changed paths are
// fixed by the test.
//
// Thread-safety: Memory is safe for concurrent use via internal mutex.
type Memory struct {
	mu      sync.Mutex
	head    string
	changed []string
	tags    []MemoryTag
	writes  int
}

// NewMemory creates a backend whose HEAD is head and whose diff since any
// ref is changed.
func NewMemory(head string, changed ...string) *Memory {
	return &Memory{head: head, changed: changed}
}

// SeedTag adds an existing tag without counting it as a write.
func (m *Memory) SeedTag(name, annotation, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = append(m.tags, MemoryTag{Name: name, Annotation: annotation, Target: target})
}

// SetChanged replaces the changed path set.
func (m *Memory) SetChanged(paths ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = paths
}

// Tags returns a copy of all tags in creation order.
func (m *Memory) Tags() []MemoryTag {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryTag, len(m.tags))
	copy(out, m.tags)
	return out
}

// Writes returns how many tags were created through CreateAnnotatedTag.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// HeadCommit implements Backend.
func (m *Memory) HeadCommit(context.Context) (string, error) {
	return m.head, nil
}

// MostRecentTag implements Backend. Every tag not on ref counts as
// reachable from it.
func (m *Memory) MostRecentTag(_ context.Context, ref string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.tags) - 1; i >= 0; i-- {
		if m.tags[i].Target != ref {
			return m.tags[i].Name, true, nil
		}
	}
	return "", false, nil
}

// ListChangedPaths implements Backend.
func (m *Memory) ListChangedPaths(context.Context, string, string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.changed))
	copy(out, m.changed)
	return out, nil
}

// TagExists implements Backend.
func (m *Memory) TagExists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.find(name)
	return ok, nil
}

// CreateAnnotatedTag implements Backend.
func (m *Memory) CreateAnnotatedTag(_ context.Context, name, annotation, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.find(name); ok {
		return model.NewTagExistsError(name)
	}
	m.tags = append(m.tags, MemoryTag{Name: name, Annotation: annotation, Target: target})
	m.writes++
	return nil
}

// TagAnnotation implements Backend.
func (m *Memory) TagAnnotation(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.find(name)
	if !ok {
		return "", model.NewError(model.ErrCodeVCS, fmt.Sprintf("tag %q not found", name))
	}
	return t.Annotation, nil
}

func (m *Memory) find(name string) (MemoryTag, bool) {
	for _, t := range m.tags {
		if t.Name == name {
			return t, true
		}
	}
	return MemoryTag{}, false
}
