package findings

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key prefixes for different data types.
const (
	prefixFinding = "f:" // Finding records, keyed by dedup hash
	prefixIndex   = "x:" // Search index: x:<set>:<finding id> -> finding key
)

// ErrNotFound is returned when a finding doesn't exist.
var ErrNotFound = errors.New("finding not found")

// BadgerStore is a findings store backed by Badger.
type BadgerStore struct {
	db *badger.DB
}

// Open opens or creates a findings store at the given path.
func Open(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db}, nil
}

// Close closes the store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// DedupKey returns the storage key for the (file, type, attributes) tuple.
// Attributes are canonicalized first, so attribute order does not matter.
func DedupKey(filePath string, t Type, attrs []Attribute) []byte {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte{0})
	h.Write([]byte(t))
	h.Write([]byte{0})
	h.Write([]byte(attrsFingerprint(attrs)))
	return []byte(prefixFinding + hex.EncodeToString(h.Sum(nil)))
}

// Exists reports whether a finding with the same dedup key is stored.
func (s *BadgerStore) Exists(filePath string, t Type, attrs []Attribute) (bool, error) {
	key := DedupKey(filePath, t, attrs)

	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Insert stores a finding for the tuple unless one already exists. The
// existence check and the write run in a single transaction, so concurrent
// inserts of the same tuple yield exactly one stored finding; the loser
// gets the winner's record back.
func (s *BadgerStore) Insert(jobID int64, filePath string, t Type, attrs []Attribute) (*Finding, error) {
	key := DedupKey(filePath, t, attrs)

	f := &Finding{
		ID:         uuid.New().String(),
		JobID:      jobID,
		FilePath:   filePath,
		Type:       t,
		Attributes: canonicalAttrs(attrs),
		RecordedAt: time.Now().UTC(),
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			// Already recorded: hand back the stored finding.
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, f)
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Index adds the finding to the by-set search index. The index entry maps
// back to the finding's dedup key, so BySet can load full records.
func (s *BadgerStore) Index(f *Finding) error {
	setName := f.SetName()
	if setName == "" {
		setName = string(f.Type)
	}
	key := []byte(prefixIndex + setName + ":" + f.ID)
	value := DedupKey(f.FilePath, f.Type, f.Attributes)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// BySet returns indexed findings for the given rule set name.
func (s *BadgerStore) BySet(setName string) ([]*Finding, error) {
	var results []*Finding

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixIndex + setName + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var findingKey []byte
			if err := it.Item().Value(func(val []byte) error {
				findingKey = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}

			item, err := txn.Get(findingKey)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue // Index entry outlived the finding.
			}
			if err != nil {
				return err
			}

			var f Finding
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &f)
			}); err != nil {
				return err
			}
			results = append(results, &f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// All returns every stored finding.
func (s *BadgerStore) All() ([]*Finding, error) {
	var results []*Finding

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixFinding)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var f Finding
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &f)
			}); err != nil {
				return err
			}
			results = append(results, &f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Ensure BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)
