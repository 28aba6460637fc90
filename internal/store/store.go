// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package store persists tuner settings in BadgerDB so a restart resumes on
// the last frequency and gain of each source.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/skywave/internal/logging"
)

const tunerKeyPrefix = "tuner:"

// ErrNotFound is returned when no settings are stored for a label.
var ErrNotFound = errors.New("no stored settings")

// TunerSettings is the persisted state of one source.
type TunerSettings struct {
	Label     string    `json:"label"`
	Frequency float64   `json:"frequency"`
	Gain      float64   `json:"gain"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a BadgerDB-backed settings store.
type Store struct {
	db *badger.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	logging.Info().Str("path", path).Msg("Settings store opened")
	return &Store{db: db}, nil
}

// Save stores s, stamping UpdatedAt.
func (s *Store) Save(ctx context.Context, ts TunerSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ts.Label == "" {
		return fmt.Errorf("save tuner settings: empty label")
	}
	ts.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("marshal tuner settings: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(tunerKeyPrefix+ts.Label), data); err != nil {
			return fmt.Errorf("set tuner settings: %w", err)
		}
		return nil
	})
}

// Load returns the settings stored for label.
func (s *Store) Load(ctx context.Context, label string) (TunerSettings, error) {
	var ts TunerSettings
	if err := ctx.Err(); err != nil {
		return ts, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tunerKeyPrefix + label))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, label)
		}
		if err != nil {
			return fmt.Errorf("get tuner settings: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ts)
		})
	})
	return ts, err
}

// List returns every stored entry ordered by label.
func (s *Store) List(ctx context.Context) ([]TunerSettings, error) {
	var out []TunerSettings
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(tunerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ts TunerSettings
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ts)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, ts)
		}
		return nil
	})
	return out, err
}

// Delete removes the entry for label. Missing entries are not an error.
func (s *Store) Delete(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(tunerKeyPrefix + label))
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
