package storage

import (
	"fmt"
	"os"
	"sync"
)

// Journal is a human-readable audit tail of emitted events, one line per
// event, independent of the pebble journal. Tools can follow it with tail -f.
type Journal interface {
	Append(line string)
}

type NopJournal struct{}

func NewNopJournal() *NopJournal      { return &NopJournal{} }
func (j *NopJournal) Append(_ string) {}

type FileJournal struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f}, nil
}

func (j *FileJournal) Append(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fmt.Fprintln(j.f, line)
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*FileJournal)(nil)
