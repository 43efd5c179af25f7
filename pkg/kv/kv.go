// Package kv defines the transactional key-value store contract used by
// the schema layer (pkg/storage): environment open/close, read-only and
// read-write transactions, simple and DUPSORT tables, and forward/backward
// cursors. The interfaces here are backend-agnostic; pkg/kv/mdbxkv is the
// production implementation on top of libmdbx, the same B-tree engine the
// teacher repo uses for its own chain data.
//
// The contract mirrors erigontech/erigon-lib/kv: many readers, one writer,
// MVCC snapshots, cursors scoped to their owning transaction.
package kv

import "context"

// TableFlags configures a table's duplicate-key behavior.
type TableFlags uint

const (
	// Default is a simple unique-key table.
	Default TableFlags = 0
	// DupSort marks a table as key -> sorted multi-value set.
	DupSort TableFlags = 1 << iota
)

// TableCfgItem describes one table in the schema.
type TableCfgItem struct {
	Flags TableFlags
}

// TableCfg is the full schema: table name -> configuration.
type TableCfg map[string]TableCfgItem

// EnvOptions configures Open. MinSize/MaxSize/GrowthStep follow spec §4.1;
// MaxReaders and NoSubDir supplement it per the original's DbConfig
// (see SPEC_FULL.md "SUPPLEMENTED FEATURES").
type EnvOptions struct {
	Path       string
	ChainID    uint64
	MinSize    uint64
	MaxSize    uint64
	GrowthStep uint64
	MaxReaders uint64
	NoSubDir   bool
	ReadOnly   bool
	Tables     TableCfg
}

// RoDB is the read-only surface of an opened environment.
type RoDB interface {
	BeginRo(ctx context.Context) (Tx, error)
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// RwDB is the full read-write surface. There is exactly one live RwTx at
// any time; BeginRw blocks until any prior writer has committed or aborted.
type RwDB interface {
	RoDB
	BeginRw(ctx context.Context) (RwTx, error)
	Update(ctx context.Context, fn func(RwTx) error) error
}

// Tx is a read-only snapshot. It must not be used from more than one
// goroutine concurrently and must be closed with Rollback (a no-op commit).
type Tx interface {
	Get(table string, key []byte) (val []byte, err error)
	Has(table string, key []byte) (bool, error)
	Cursor(table string) (Cursor, error)
	// CursorDupSort opens a cursor over a DUPSORT table, exposing
	// duplicate-aware positioning.
	CursorDupSort(table string) (DupCursor, error)
	ForEach(table string, from []byte, fn func(k, v []byte) error) error
	Rollback()
}

// RwTx is the single writable transaction. Commit publishes all writes and
// all blob-file offsets recorded on it atomically; Rollback (also called
// implicitly if Commit is never invoked) discards them.
type RwTx interface {
	Tx
	Put(table string, key, val []byte) error
	Delete(table string, key []byte) error
	RwCursor(table string) (RwCursor, error)
	RwCursorDupSort(table string) (RwDupCursor, error)
	Commit() error
}

// Cursor iterates a simple table in key order.
type Cursor interface {
	First() (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Seek(key []byte) (k, v []byte, err error) // lower_bound
	SeekExact(key []byte) (v []byte, err error)
	Close()
}

// RwCursor additionally supports in-place mutation at the cursor position.
type RwCursor interface {
	Cursor
	Put(key, val []byte) error
	Delete() error
}

// DupCursor iterates a DUPSORT table: a key's values are visited in sorted
// order via NextDup/FirstDup before advancing to the next key.
type DupCursor interface {
	Cursor
	SeekBothExact(key, val []byte) (v []byte, err error)
	SeekBothRange(key, val []byte) (v []byte, err error)
	FirstDup() (v []byte, err error)
	NextDup() (k, v []byte, err error)
	LastDup() (v []byte, err error)
	CountDuplicates() (uint64, error)
}

// RwDupCursor is the mutating counterpart of DupCursor.
type RwDupCursor interface {
	DupCursor
	RwCursor
	PutNoDupData(key, val []byte) error
	DeleteCurrentDup() error
	DeleteExact(key, val []byte) error
}
