// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package legacy wraps the pre-migration flat key-value store (BadgerDB).
//
// Early MaLedger versions persisted whole collections as single JSON
// blobs under flat keys ("profiles", "customers", "payments") plus a few
// singleton settings blobs. The migration engine reads this store once to
// populate the structured record store; afterwards the flat keys are kept
// untouched for a grace period and then purged.
package legacy

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Well-known flat keys.
const (
	KeyProfiles             = "profiles"
	KeyCustomers            = "customers"
	KeyPayments             = "payments"
	KeyAppSettings          = "appSettings"
	KeyCurrentProfile       = "currentProfile"
	KeyNotificationSettings = "notificationSettings"
)

// CollectionKeys are the flat keys holding entity collections. Presence
// of any of them marks the store as containing legacy data.
var CollectionKeys = []string{KeyProfiles, KeyCustomers, KeyPayments}

// ErrKeyNotFound indicates the flat key does not exist in the store.
var ErrKeyNotFound = errors.New("legacy key not found")

// Store is a thin wrapper over the legacy BadgerDB database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the legacy store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open legacy store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw JSON blob stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores a raw JSON blob under key.
func (s *Store) Set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Has reports whether key exists.
func (s *Store) Has(key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return true, nil
}

// HasAnyCollection reports whether any legacy collection key is present.
func (s *Store) HasAnyCollection() (bool, error) {
	for _, key := range CollectionKeys {
		ok, err := s.Has(key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes one flat key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// PurgeCollections deletes every legacy collection and settings key.
// Called after the post-migration grace period has passed.
func (s *Store) PurgeCollections() error {
	keys := append(append([]string{}, CollectionKeys...),
		KeyAppSettings, KeyCurrentProfile, KeyNotificationSettings)
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("purge %s: %w", key, err)
			}
		}
		return nil
	})
}
