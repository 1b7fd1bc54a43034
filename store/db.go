package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KV is the storage surface contracts and modules work against.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate visits keys with the given prefix in ascending order until fn
	// returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}

// DB is a LevelDB database. All writes go through Update so that a whole
// operation commits or discards as one transaction.
type DB struct {
	db *leveldb.DB
}

// Open creates or opens a LevelDB database at path.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

// OpenMemory opens a LevelDB database backed by memory storage.
func OpenMemory() (*DB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory leveldb: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Update runs fn inside a transaction. The transaction commits when fn
// returns nil and is discarded otherwise. LevelDB allows one open
// transaction at a time, so concurrent callers are serialised.
func (d *DB) Update(fn func(kv KV) error) error {
	tr, err := d.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("failed to open transaction: %w", err)
	}
	if err := fn(&txKV{tr: tr}); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View runs fn against a read-only snapshot.
func (d *DB) View(fn func(kv KV) error) error {
	snap, err := d.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("failed to take snapshot: %w", err)
	}
	defer snap.Release()
	return fn(&snapshotKV{snap: snap})
}

var errReadOnly = errors.New("write on read-only store")

type txKV struct {
	tr *leveldb.Transaction
}

func (t *txKV) Get(key []byte) ([]byte, error) {
	v, err := t.tr.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (t *txKV) Has(key []byte) (bool, error) {
	return t.tr.Has(key, nil)
}

func (t *txKV) Put(key, value []byte) error {
	return t.tr.Put(key, value, nil)
}

func (t *txKV) Delete(key []byte) error {
	return t.tr.Delete(key, nil)
}

func (t *txKV) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return iterate(t.tr.NewIterator(util.BytesPrefix(prefix), nil), fn)
}

type snapshotKV struct {
	snap *leveldb.Snapshot
}

func (s *snapshotKV) Get(key []byte) ([]byte, error) {
	v, err := s.snap.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *snapshotKV) Has(key []byte) (bool, error) {
	return s.snap.Has(key, nil)
}

func (s *snapshotKV) Put(_, _ []byte) error { return errReadOnly }
func (s *snapshotKV) Delete(_ []byte) error { return errReadOnly }

func (s *snapshotKV) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return iterate(s.snap.NewIterator(util.BytesPrefix(prefix), nil), fn)
}

// iterate copies keys and values out because the iterator reuses its buffers.
func iterate(it iterator.Iterator, fn func(key, value []byte) bool) error {
	defer it.Release()
	for it.Next() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		if !fn(k, v) {
			break
		}
	}
	return it.Error()
}
