// Package storage persists a pair's state and event stream. The state is a
// single gob snapshot rewritten after each call; events are appended under
// monotonically increasing sequence numbers so consumers can resume replay
// from any point.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/poolbook/pkg/engine"
)

// EventRecord is one journaled engine event.
type EventRecord struct {
	Seq     uint64
	Kind    string
	Payload [32]byte
}

// RecordOf packs an engine event for the journal.
func RecordOf(seq uint64, e engine.Event) EventRecord {
	return EventRecord{Seq: seq, Kind: e.Kind(), Payload: e.Payload().Bytes32()}
}

// Store is the persistence surface a node needs: one state snapshot slot
// and an append-only event journal.
type Store interface {
	SaveState(st *engine.State) error
	LoadState() (*engine.State, bool, error)
	AppendEvent(rec EventRecord) error
	Events(from uint64) ([]EventRecord, error)
	LastSeq() (uint64, bool, error)
	Close() error
}

// PebbleStore is the durable Store used by the node.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) SaveState(st *engine.State) error {
	val, err := encodeGob(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.db.Set(keyState, val, pebble.Sync); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *PebbleStore) LoadState() (*engine.State, bool, error) {
	val, closer, err := s.db.Get(keyState)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load state: %w", err)
	}
	defer closer.Close()
	var st engine.State
	if err := decodeGob(val, &st); err != nil {
		return nil, false, fmt.Errorf("decode state: %w", err)
	}
	return &st, true, nil
}

func (s *PebbleStore) AppendEvent(rec EventRecord) error {
	val, err := encodeGob(rec)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(eventKey(rec.Seq), val, nil); err != nil {
		return err
	}
	if err := b.Set(keyLastSeq, seqBytes(rec.Seq), nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("append event %d: %w", rec.Seq, err)
	}
	return nil
}

func (s *PebbleStore) Events(from uint64) ([]EventRecord, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: eventKey(from),
		UpperBound: []byte("e;"), // one past the "e:" prefix
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []EventRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec EventRecord
		if err := decodeGob(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode event %x: %w", iter.Key(), err)
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}

func (s *PebbleStore) LastSeq() (uint64, bool, error) {
	val, closer, err := s.db.Get(keyLastSeq)
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	defer closer.Close()
	return binary.BigEndian.Uint64(val), true, nil
}

var _ Store = (*PebbleStore)(nil)
