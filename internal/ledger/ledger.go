// Package ledger remembers which source documents have already been
// processed so a watched inbox never mails the same run sheets twice.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a digest has no entry.
var ErrNotFound = errors.New("ledger entry not found")

const keyPrefix = "doc/"

// Entry records one processed document.
type Entry struct {
	Digest      string    `json:"digest" yaml:"digest"`
	Source      string    `json:"source" yaml:"source"`
	ProcessedAt time.Time `json:"processed_at" yaml:"processed_at"`
	Runs        int       `json:"runs" yaml:"runs"`
	Sent        int       `json:"sent" yaml:"sent"`
	Failed      int       `json:"failed" yaml:"failed"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"` // Set when the document was rejected
}

// Ledger is a badger-backed set of processed documents keyed by content
// digest.
type Ledger struct {
	db *badger.DB
}

// Open opens or creates a ledger at dir.
func Open(dir string) (*Ledger, error) {
	return open(badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenInMemory opens a ledger that is discarded on Close.
func OpenInMemory() (*Ledger, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Ledger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Digest returns the hex SHA-256 of a document.
func Digest(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

func key(digest string) []byte {
	return []byte(keyPrefix + digest)
}

// Seen reports whether digest has been recorded.
func (l *Ledger) Seen(digest string) (bool, error) {
	_, err := l.Get(digest)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Get returns the entry for digest.
func (l *Ledger) Get(digest string) (*Entry, error) {
	var e Entry
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(digest))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Record stores e, replacing any earlier entry for the same digest.
func (l *Ledger) Record(e Entry) error {
	if e.Digest == "" {
		return fmt.Errorf("ledger entry for %q has no digest", e.Source)
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(e.Digest), val)
	})
}

// List returns all entries, oldest first.
func (l *Ledger) List() ([]Entry, error) {
	var entries []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ProcessedAt.Before(entries[j].ProcessedAt)
	})
	return entries, nil
}
