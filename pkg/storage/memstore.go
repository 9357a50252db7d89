package storage

import (
	"sync"

	"github.com/uhyunpark/poolbook/pkg/engine"
)

// InMemoryStore is the Store used by tests and ephemeral nodes.
type InMemoryStore struct {
	mu      sync.Mutex
	state   []byte
	events  map[uint64][]byte
	lastSeq *uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[uint64][]byte)}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) SaveState(st *engine.State) error {
	val, err := encodeGob(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = val
	return nil
}

func (s *InMemoryStore) LoadState() (*engine.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, false, nil
	}
	var st engine.State
	if err := decodeGob(s.state, &st); err != nil {
		return nil, false, err
	}
	return &st, true, nil
}

func (s *InMemoryStore) AppendEvent(rec EventRecord) error {
	val, err := encodeGob(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[rec.Seq] = val
	seq := rec.Seq
	s.lastSeq = &seq
	return nil
}

func (s *InMemoryStore) Events(from uint64) ([]EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSeq == nil {
		return nil, nil
	}
	var out []EventRecord
	for seq := from; seq <= *s.lastSeq; seq++ {
		val, ok := s.events[seq]
		if !ok {
			continue
		}
		var rec EventRecord
		if err := decodeGob(val, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *InMemoryStore) LastSeq() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSeq == nil {
		return 0, false, nil
	}
	return *s.lastSeq, true, nil
}

var _ Store = (*InMemoryStore)(nil)
