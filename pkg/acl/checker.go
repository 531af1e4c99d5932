package acl

import (
	"sync"

	"github.com/backkem/matter-reporting/pkg/datamodel"
)

// Checker performs access control checks against a list of entries.
// It is safe for concurrent use.
type Checker struct {
	entries []Entry
	mu      sync.RWMutex
}

// NewChecker creates a checker with no entries. Without entries every
// check except PASE commissioning is denied.
func NewChecker() *Checker {
	return &Checker{}
}

// SetEntries replaces all entries. Entries are copied.
func (c *Checker) SetEntries(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make([]Entry, len(entries))
	copy(c.entries, entries)
}

// Entries returns a copy of all entries.
func (c *Checker) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Entry, len(c.entries))
	copy(result, c.entries)
	return result
}

// AddEntry validates and appends an entry.
func (c *Checker) AddEntry(entry Entry) error {
	if err := ValidateEntry(&entry); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, entry)
	return nil
}

// Check evaluates whether the subject has the required privilege on the
// cluster instance.
func (c *Checker) Check(subject SubjectDescriptor, target datamodel.ConcreteClusterPath, required Privilege) Result {
	if subject.AuthMode == AuthModePASE && subject.IsCommissioning {
		return ResultAllowed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.entries {
		entry := &c.entries[i]

		if entry.FabricIndex == 0 || entry.FabricIndex != subject.FabricIndex {
			continue
		}
		if entry.AuthMode != subject.AuthMode {
			continue
		}
		if !entry.Privilege.Grants(required) {
			continue
		}
		if !subjectMatches(entry, subject) {
			continue
		}
		if !targetMatches(entry, target) {
			continue
		}
		return ResultAllowed
	}
	return ResultDenied
}

// CanView reports whether the subject may read the attribute. It is the
// check the reporting engine runs for every path it encodes.
func (c *Checker) CanView(subject SubjectDescriptor, path datamodel.ConcreteAttributePath) bool {
	return c.Check(subject, path.ClusterPath(), PrivilegeView) == ResultAllowed
}

// Empty subjects only match CASE and Group entries.
func subjectMatches(entry *Entry, subject SubjectDescriptor) bool {
	if len(entry.Subjects) == 0 {
		return entry.AuthMode == AuthModeCASE || entry.AuthMode == AuthModeGroup
	}
	for _, s := range entry.Subjects {
		if s == subject.Subject {
			return true
		}
	}
	return false
}

func targetMatches(entry *Entry, path datamodel.ConcreteClusterPath) bool {
	if len(entry.Targets) == 0 {
		return true
	}
	for _, t := range entry.Targets {
		if t.matches(path) {
			return true
		}
	}
	return false
}
