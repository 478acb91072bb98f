package pebbledb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/signumflex/go-event-listener/entities"
)

var ErrNotFound = entities.ErrStoreEntityNotFound

const cursorKeyPrefix = "cursor-"

// Store persists the backfill progress per event kind so a restarted process
// resumes scanning where the previous run stopped instead of re-reading the
// whole block window.
type Store struct {
	db *pebble.DB
}

func NewCursorStore(storeDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "backfill-cursor-store"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}

	return &Store{db: db}, nil
}

func (cs *Store) SetLastScannedBlock(kind string, block uint64) error {
	key := []byte(cursorKeyPrefix + kind)

	var value []byte
	value = binary.BigEndian.AppendUint64(value, block)

	err := cs.db.Set(key, value, pebble.Sync)
	if err != nil {
		return fmt.Errorf("setting last scanned block for [%s]: %v", kind, err)
	}

	return nil
}

func (cs *Store) GetLastScannedBlock(kind string) (uint64, error) {
	key := []byte(cursorKeyPrefix + kind)

	value, closer, err := cs.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("getting last scanned block for [%s]: %v", kind, err)
	}
	defer closer.Close()

	return binary.BigEndian.Uint64(value), nil
}

func (cs *Store) Close() error {
	return cs.db.Close()
}
