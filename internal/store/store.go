// Package store persists the latest snapshot per room on the coordinator,
// so a late joiner gets state immediately instead of waiting out the
// authority's next snapshot period. Only the most recent payload is kept;
// history is never archived.
package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// Store is a bbolt-backed snapshot archive keyed by room id.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the archive at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveSnapshot replaces the archived snapshot for a room.
func (s *Store) SaveSnapshot(roomID string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(roomID), data)
	})
}

// LoadSnapshot returns the archived snapshot for a room, if any. An
// archived zero-length payload is present, not missing.
func (s *Store) LoadSnapshot(roomID string) ([]byte, bool, error) {
	var data []byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSnapshots).Get([]byte(roomID))
		if v == nil {
			return nil
		}
		found = true
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

// DeleteRoom drops a room's archived snapshot.
func (s *Store) DeleteRoom(roomID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete([]byte(roomID))
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
