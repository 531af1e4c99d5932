package reporting

import (
	"errors"
	"fmt"

	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/pion/logging"
)

// DefaultDirtySetCapacity is the number of dirty path records the engine
// keeps before it starts collapsing them into wildcards.
const DefaultDirtySetCapacity = 8

// ErrDirtySetExhausted is returned by InsertPath only when the set was
// created with zero capacity. With any positive capacity escalation always
// makes room.
var ErrDirtySetExhausted = errors.New("reporting: dirty set has no capacity")

// DirtyPath is a record of changed attribute data awaiting report.
type DirtyPath struct {
	datamodel.AttributePathParams

	// Generation is the set generation when the record was inserted or
	// last merged.
	Generation uint64
}

// String returns the path with its generation.
func (d DirtyPath) String() string {
	return fmt.Sprintf("%s@%d", d.AttributePathParams, d.Generation)
}

// DirtySet is the fixed-capacity pool of dirty attribute paths shared by
// every subscription of an engine.
//
// Live records never contain one another. When the pool is full, records
// are collapsed into coarser wildcards so an insertion always succeeds and
// no change is lost.
//
// DirtySet is not safe for concurrent use. It is owned by the event loop.
type DirtySet struct {
	slots      []DirtyPath
	used       []bool
	live       int
	generation uint64

	metrics *Metrics
	log     logging.LeveledLogger
}

// DirtySetConfig configures a DirtySet.
type DirtySetConfig struct {
	// Capacity is the number of slots. Defaults to DefaultDirtySetCapacity.
	Capacity int

	// Metrics records occupancy and escalations (optional).
	Metrics *Metrics

	// LoggerFactory for creating loggers (optional).
	LoggerFactory logging.LoggerFactory
}

// NewDirtySet creates an empty set.
func NewDirtySet(config DirtySetConfig) *DirtySet {
	capacity := config.Capacity
	if capacity < 0 {
		capacity = 0
	} else if capacity == 0 {
		capacity = DefaultDirtySetCapacity
	}

	s := &DirtySet{
		slots:   make([]DirtyPath, capacity),
		used:    make([]bool, capacity),
		metrics: config.Metrics,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("dirtyset")
	}
	return s
}

// Capacity returns the number of slots.
func (s *DirtySet) Capacity() int { return len(s.slots) }

// Len returns the number of live records.
func (s *DirtySet) Len() int { return s.live }

// Exhausted reports whether every slot is in use.
func (s *DirtySet) Exhausted() bool { return s.live == len(s.slots) }

// Generation returns the current generation counter.
func (s *DirtySet) Generation() uint64 { return s.generation }

// BumpGeneration advances the generation counter and returns the new value.
// Records inserted afterwards compare newer than every existing record.
func (s *DirtySet) BumpGeneration() uint64 {
	s.generation++
	return s.generation
}

// Paths returns a copy of the live records in slot order.
func (s *DirtySet) Paths() []DirtyPath {
	out := make([]DirtyPath, 0, s.live)
	s.forEach(func(i int) bool {
		out = append(out, s.slots[i])
		return true
	})
	return out
}

// InsertPath records that the data covered by path changed.
//
// A record that already contains path is restamped. A new path that
// contains existing records replaces them. Otherwise the path takes a free
// slot, collapsing existing records first if the pool is full.
func (s *DirtySet) InsertPath(path datamodel.AttributePathParams) error {
	if len(s.slots) == 0 {
		return ErrDirtySetExhausted
	}

	if s.mergeOverlapped(path) {
		s.metrics.dirtyPathInserted(insertResultMerged, s.live)
		return nil
	}

	if s.Exhausted() {
		s.escalate(path)
		if s.mergeOverlapped(path) {
			s.metrics.dirtyPathInserted(insertResultMerged, s.live)
			return nil
		}
	}

	idx := s.allocate()
	if idx < 0 {
		return ErrDirtySetExhausted
	}
	s.slots[idx] = DirtyPath{AttributePathParams: path, Generation: s.generation}
	s.metrics.dirtyPathInserted(insertResultAllocated, s.live)
	return nil
}

// IsDirty reports whether a live record newer than sinceGeneration covers
// the concrete attribute.
func (s *DirtySet) IsDirty(path datamodel.ConcreteAttributePath, sinceGeneration uint64) bool {
	dirty := false
	s.forEach(func(i int) bool {
		rec := &s.slots[i]
		if rec.Generation > sinceGeneration && rec.IncludesConcrete(path) {
			dirty = true
			return false
		}
		return true
	})
	return dirty
}

// Intersects reports whether any live record intersects path.
func (s *DirtySet) Intersects(path datamodel.AttributePathParams) bool {
	found := false
	s.forEach(func(i int) bool {
		if s.slots[i].Intersects(path) {
			found = true
			return false
		}
		return true
	})
	return found
}

// ReleaseAll frees every record.
func (s *DirtySet) ReleaseAll() {
	s.releaseAllSlots()
	s.metrics.setDirtyPaths(s.live)
}

// ReleaseUpTo frees records stamped at or before generation and returns
// how many were freed.
func (s *DirtySet) ReleaseUpTo(generation uint64) int {
	released := 0
	s.forEach(func(i int) bool {
		if s.slots[i].Generation <= generation {
			s.release(i)
			released++
		}
		return true
	})
	s.metrics.setDirtyPaths(s.live)
	return released
}

// mergeOverlapped folds path into the live records without using a new
// slot. Returns false if no record overlaps by containment.
func (s *DirtySet) mergeOverlapped(path datamodel.AttributePathParams) bool {
	widened := -1
	merged := false

	s.forEach(func(i int) bool {
		rec := &s.slots[i]
		if rec.IsAttributePathSupersetOf(path) {
			rec.Generation = s.generation
			merged = true
			return false
		}
		if path.IsAttributePathSupersetOf(rec.AttributePathParams) {
			if widened < 0 {
				rec.AttributePathParams = path
				rec.Generation = s.generation
				widened = i
			} else {
				s.release(i)
			}
			merged = true
		}
		return true
	})
	return merged
}

func (s *DirtySet) allocate() int {
	for i := range s.used {
		if !s.used[i] {
			s.used[i] = true
			s.live++
			return i
		}
	}
	return -1
}

func (s *DirtySet) release(i int) {
	if !s.used[i] {
		return
	}
	s.used[i] = false
	s.slots[i] = DirtyPath{}
	s.live--
}

func (s *DirtySet) releaseAllSlots() {
	for i := range s.slots {
		s.used[i] = false
		s.slots[i] = DirtyPath{}
	}
	s.live = 0
}

// forEach calls fn for each live slot index in order until fn returns false.
// fn may release the slot it is given.
func (s *DirtySet) forEach(fn func(i int) bool) {
	for i := range s.slots {
		if !s.used[i] {
			continue
		}
		if !fn(i) {
			return
		}
	}
}
