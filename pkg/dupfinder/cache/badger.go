package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const schemaKey = "m:__schema__"

// Schema records the entry format a store was written with.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Badger is the default on-disk backend.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates a store in dir. A store written with another
// entry Version is wiped.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}

	b := &Badger{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Badger) migrate() error {
	schema, err := b.schema()
	if err != nil || schema == nil || schema.Version != Version {
		if n, _ := b.Len(); n > 0 {
			logger.Warn("cache format changed, dropping entries", "entries", n)
		}
		return b.Reset()
	}
	return nil
}

func (b *Badger) schema() (*Schema, error) {
	var schema *Schema
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})
	return schema, err
}

func (b *Badger) writeSchema() error {
	data, err := json.Marshal(Schema{Version: Version, UpdatedAt: time.Now()})
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

func (b *Badger) Name() string { return BackendBadger }

func (b *Badger) Get(key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

func (b *Badger) Put(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *Badger) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Reset drops every key and stamps the current schema.
func (b *Badger) Reset() error {
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("dropping cache: %w", err)
	}
	return b.writeSchema()
}

// Len counts checksum entries, excluding metadata keys.
func (b *Badger) Len() (int, error) {
	var n int
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if !strings.HasPrefix(string(it.Item().Key()), "m:") {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (b *Badger) Close() error {
	return b.db.Close()
}
