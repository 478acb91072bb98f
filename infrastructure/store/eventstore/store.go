// Package eventstore persists one kind of canonical event as a bounded,
// pretty-printed json array file. The file is the interface: external tooling
// reads it directly, so the layout has to stay a plain array.
package eventstore

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Store keeps at most capacity records, evicting the oldest ones first. The
// whole file is reloaded and rewritten on every append. A mutex serializes
// the read-trim-write sequence so concurrent producers cannot lose each
// other's appends.
type Store[T any] struct {
	path     string
	kind     string
	capacity int
	mu       sync.Mutex
	logger   *zap.SugaredLogger
}

func NewStore[T any](path, kind string, capacity int, logger *zap.SugaredLogger) *Store[T] {
	return &Store[T]{
		path:     path,
		kind:     kind,
		capacity: capacity,
		logger:   logger,
	}
}

func (s *Store[T]) Append(record T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return errors.Wrapf(err, "loading %s store", s.kind)
	}

	records = append(records, record)
	if len(records) > s.capacity {
		records = records[len(records)-s.capacity:]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshalling %s store", s.kind)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s store", s.kind)
	}

	s.logger.Infof("Saved %s event data. Store size is [%d].", s.kind, len(records))
	return nil
}

// ReadAll returns the stored records in append order. A store that was never
// written reads as an empty sequence, not an error.
func (s *Store[T]) ReadAll() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store[T]) load() ([]T, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []T{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s store file", s.kind)
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling %s store file", s.kind)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}
