// Hevysync - Hevy Workout Data Synchronization Agent
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hevysync

package props

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// propKeyPrefix namespaces property entries inside the shared badger DB.
const propKeyPrefix = "prop:"

// BadgerStore implements Store using BadgerDB for durable storage.
// Entries with a TTL use badger's native expiry, so aged-out values
// disappear without a sweeper.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a badger-backed property store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Open opens (or creates) a badger database at path with logging disabled,
// suitable for passing to NewBadgerStore.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open property store: %w", err)
	}
	return db, nil
}

// Get retrieves a property value. Expired entries read as missing.
func (s *BadgerStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(propKeyPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get property %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a property value. A ttl of zero means no expiry.
func (s *BadgerStore) Set(key string, value []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(propKeyPrefix+key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("set property %s: %w", key, err)
	}
	return nil
}

// Delete removes a property. Deleting a missing key is not an error.
func (s *BadgerStore) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(propKeyPrefix + key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete property %s: %w", key, err)
	}
	return nil
}
