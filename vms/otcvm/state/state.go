// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state provides typed, JSON encoded records on top of a contract's
// key/value store.
//
// An Item is a singleton record stored under a fixed key. A Map is a keyed
// collection whose keys are encoded by a KeyCodec so that iteration returns
// entries in ascending key order.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"
)

// ErrNotFound is returned, wrapped, when a record is missing.
var ErrNotFound = database.ErrNotFound

// Item is a singleton record.
type Item[T any] struct {
	key []byte
}

func NewItem[T any](key string) Item[T] {
	return Item[T]{key: []byte(key)}
}

// Load returns the stored value or an error wrapping ErrNotFound.
func (i Item[T]) Load(db database.Database) (T, error) {
	var v T
	b, err := db.Get(i.key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return v, fmt.Errorf("%s: %w", i.key, ErrNotFound)
		}
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s: %w", i.key, err)
	}
	return v, nil
}

// MayLoad is Load that treats a missing record as (zero, false, nil).
func (i Item[T]) MayLoad(db database.Database) (T, bool, error) {
	v, err := i.Load(db)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	return v, err == nil, err
}

func (i Item[T]) Save(db database.Database, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", i.key, err)
	}
	return db.Put(i.key, b)
}

func (i Item[T]) Remove(db database.Database) error {
	return db.Delete(i.key)
}

// Entry is a decoded key/value pair returned by Map.Range.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Map is a collection of records keyed by K.
type Map[K, V any] struct {
	name   string
	prefix []byte
	codec  KeyCodec[K]
}

// NewMap returns a map stored under [namespace]. The namespace is length
// prefixed so that no namespace can be a prefix of another.
func NewMap[K, V any](namespace string, codec KeyCodec[K]) Map[K, V] {
	prefix := make([]byte, 2, 2+len(namespace))
	binary.BigEndian.PutUint16(prefix, uint16(len(namespace)))
	prefix = append(prefix, namespace...)
	return Map[K, V]{
		name:   namespace,
		prefix: prefix,
		codec:  codec,
	}
}

func (m Map[K, V]) rawKey(k K) []byte {
	enc := m.codec.Encode(k)
	key := make([]byte, 0, len(m.prefix)+len(enc))
	key = append(key, m.prefix...)
	return append(key, enc...)
}

func (m Map[K, V]) Has(db database.Database, k K) (bool, error) {
	return db.Has(m.rawKey(k))
}

// Load returns the value stored for [k] or an error wrapping ErrNotFound.
func (m Map[K, V]) Load(db database.Database, k K) (V, error) {
	var v V
	b, err := db.Get(m.rawKey(k))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return v, fmt.Errorf("%s %v: %w", m.name, k, ErrNotFound)
		}
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s %v: %w", m.name, k, err)
	}
	return v, nil
}

func (m Map[K, V]) MayLoad(db database.Database, k K) (V, bool, error) {
	v, err := m.Load(db, k)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	return v, err == nil, err
}

func (m Map[K, V]) Save(db database.Database, k K, v V) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %v: %w", m.name, k, err)
	}
	return db.Put(m.rawKey(k), b)
}

func (m Map[K, V]) Remove(db database.Database, k K) error {
	return db.Delete(m.rawKey(k))
}

// Range returns every entry in ascending key order.
func (m Map[K, V]) Range(db database.Database) ([]Entry[K, V], error) {
	return m.RangePrefix(db, nil)
}

// RangePrefix returns, in ascending key order, the entries whose encoded key
// starts with [sub]. Key codecs expose helpers building such prefixes.
func (m Map[K, V]) RangePrefix(db database.Database, sub []byte) ([]Entry[K, V], error) {
	prefix := make([]byte, 0, len(m.prefix)+len(sub))
	prefix = append(prefix, m.prefix...)
	prefix = append(prefix, sub...)

	iter := db.NewIteratorWithPrefix(prefix)
	defer iter.Release()

	var entries []Entry[K, V]
	for iter.Next() {
		k, err := m.codec.Decode(iter.Key()[len(m.prefix):])
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s key: %w", m.name, err)
		}
		var v V
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s %v: %w", m.name, k, err)
		}
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
	}
	return entries, iter.Error()
}
