package persist

import (
	"context"
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerProvider persists blocks in an embedded BadgerDB: a thin struct
// wrapping *badger.DB, keys built by a small keyXxx helper, transactions
// via db.View/db.Update, and badger.ErrKeyNotFound translated into a
// typed not-found condition.
type BadgerProvider struct {
	db *badger.DB
}

// OpenBadger opens (creating if absent) a BadgerDB at dir for block storage.
// inMemory runs the store without touching disk, which the ambient CLI and
// tests use to avoid leaving state behind.
func OpenBadger(dir string, inMemory bool) (*BadgerProvider, error) {
	opts := badger.DefaultOptions(dir)
	opts = opts.WithInMemory(inMemory)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persist: open badger: %w", err)
	}
	return &BadgerProvider{db: db}, nil
}

// Close releases the underlying database handle.
func (p *BadgerProvider) Close() error {
	return p.db.Close()
}

func keyBlock(id BlockID) []byte {
	key := make([]byte, 3)
	key[0] = 'b'
	binary.BigEndian.PutUint16(key[1:], uint16(id))
	return key
}

// Load returns the bytes stored under id, or (nil, nil) if nothing has been
// saved there yet — callers treat an empty table as "use built-in defaults"
// rather than an error.
func (p *BadgerProvider) Load(ctx context.Context, id BlockID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBlock(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("persist: load block %d: %w", id, err)
	}
	return out, nil
}

// Save stores data under id. When commit is true the write is flushed to the
// value log synchronously before returning, preserving the distinction
// between a buffered save and one the caller needs durable before acking.
func (p *BadgerProvider) Save(ctx context.Context, id BlockID, data []byte, commit bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := p.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Set(keyBlock(id), data); err != nil {
		return fmt.Errorf("persist: stage block %d: %w", id, err)
	}

	if !commit {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("persist: commit block %d: %w", id, err)
		}
		return nil
	}

	done := make(chan error, 1)
	txn.CommitWith(func(err error) { done <- err })
	if err := <-done; err != nil {
		return fmt.Errorf("persist: sync block %d: %w", id, err)
	}
	return p.db.Sync()
}

var _ Provider = (*BadgerProvider)(nil)
