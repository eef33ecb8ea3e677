// Package store persists optimized methods in LevelDB, keyed by signature.
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	dex "github.com/speakeasy-api/simplify"
)

var methodPrefix = []byte("m/")

// Store is a method store. It is safe for concurrent use.
type Store struct {
	db *leveldb.DB
}

// Open opens or creates a store at path. An empty path uses in-memory
// storage.
func Open(path string) (*Store, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open method store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func methodKey(sig string) []byte {
	return append(append([]byte(nil), methodPrefix...), sig...)
}

// WriteMethod stores m under sig, replacing any previous entry.
func (s *Store) WriteMethod(sig string, m *dex.Method) error {
	if sig != m.Signature() {
		return fmt.Errorf("store: method %s written under signature %s", m.Signature(), sig)
	}
	data, err := MarshalMethod(m)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", sig, err)
	}
	return s.db.Put(methodKey(sig), data, nil)
}

// ReadMethod returns the method stored under sig. It returns (nil, false,
// nil) if there is none.
func (s *Store) ReadMethod(sig string) (*dex.Method, bool, error) {
	data, err := s.db.Get(methodKey(sig), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %s: %w", sig, err)
	}
	m, err := UnmarshalMethod(data)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (s *Store) Delete(sig string) error {
	return s.db.Delete(methodKey(sig), nil)
}

// Signatures returns the stored signatures with the given class prefix in
// key order. An empty prefix lists everything.
func (s *Store) Signatures(classPrefix string) ([]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix(methodKey(classPrefix)), nil)
	defer iter.Release()
	var out []string
	for iter.Next() {
		out = append(out, string(bytes.TrimPrefix(iter.Key(), methodPrefix)))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: list %q: %w", classPrefix, err)
	}
	return out, nil
}

// Fingerprint returns the sha256 of the stored encoding of sig, which is
// stable across runs because the encoding is canonical.
func (s *Store) Fingerprint(sig string) (string, error) {
	data, err := s.db.Get(methodKey(sig), nil)
	if err != nil {
		return "", fmt.Errorf("store: get %s: %w", sig, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Import writes every method with a body from the catalog whose
// signature starts with prefix and returns how many were written.
func (s *Store) Import(cat *dex.Catalog, prefix string) (int, error) {
	batch := new(leveldb.Batch)
	for _, c := range cat.Classes() {
		for _, m := range c.SortedMethods() {
			sig := m.Signature()
			if !m.HasBody() || !strings.HasPrefix(sig, prefix) {
				continue
			}
			data, err := MarshalMethod(m)
			if err != nil {
				return 0, fmt.Errorf("store: marshal %s: %w", sig, err)
			}
			batch.Put(methodKey(sig), data)
		}
	}
	if err := s.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("store: import: %w", err)
	}
	return batch.Len(), nil
}
