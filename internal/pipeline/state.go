package pipeline

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// State holds the latest published snapshot. Readers get an immutable copy;
// the snapshot's table is never mutated after publication.
type State struct {
	mu       sync.RWMutex
	current  *Snapshot
	content  uint64
	versions uint64
}

func NewState() *State {
	return &State{}
}

// Publish stores snap. When its content matches the current snapshot only
// the check time moves forward and the version stays, so consumers keyed on
// the version (rendered charts) are reused. It reports whether the version
// changed.
func (s *State) Publish(snap Snapshot) (Snapshot, bool) {
	key := contentKey(&snap)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.content == key {
		updated := *s.current
		updated.CheckedAt = snap.CheckedAt
		updated.Duration = snap.Duration
		s.current = &updated
		return updated, false
	}

	s.versions++
	snap.Version = s.versions
	s.current = &snap
	s.content = key
	return snap, true
}

// Current returns the latest snapshot, or false before the first run.
func (s *State) Current() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{}, false
	}
	return *s.current, true
}

func contentKey(snap *Snapshot) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(string(snap.Outcome()))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(snap.Err)
	_, _ = h.Write([]byte{0})
	if snap.Halt != nil {
		_, _ = h.WriteString(string(snap.Halt.Level) + ":" + snap.Halt.Message)
	}
	_, _ = h.Write([]byte{0})
	for _, it := range snap.Items {
		_, _ = h.WriteString(it)
		_, _ = h.Write([]byte{0})
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], snap.Table.Fingerprint())
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
