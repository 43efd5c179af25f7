// Package storage is the typed schema layer on top of pkg/kv: it turns the
// raw table/cursor contract into append/read/revert operations over
// starknet domain objects, matching the teacher's split between a
// low-level kv.RwDB and a higher-level rawdb-style API
// (core/state/history_reader_v3.go reads through exactly this kind of
// seam).
package storage

import (
	"context"
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/blobfile"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
)

// payload kind tags for the versioned value header (wire.Dictionaries.Encode).
const (
	kindHeader byte = iota
	kindBody
	kindTxCount
	kindThinStateDiff
	kindContractClass
	kindDeprecatedContractClass
	kindCompiledClass
)

// Store owns the KV environment, the blob files, and the dictionary set.
// It is the single entry point the sync pipeline and RPC layer use to
// reach persisted chain data.
type Store struct {
	db    kv.RwDB
	dicts *wire.Dictionaries
	blobs map[kv.BlobFileKind]*blobfile.File
}

// Options configures Open.
type Options struct {
	KV           kv.EnvOptions
	BlobDir      string
	BlobGrowthStep uint64
	BlobMaxSize    uint64
	Dictionaries *wire.Dictionaries
}

// Open wraps the already-open KV environment db and opens (creating if
// absent) the four append-only blob files under opts.BlobDir, recovering each
// blob file's write head from the durable FileOffsets table.
func Open(db kv.RwDB, opts Options) (*Store, error) {
	dicts := opts.Dictionaries
	if dicts == nil {
		dicts = wire.Empty()
	}

	s := &Store{db: db, dicts: dicts, blobs: map[kv.BlobFileKind]*blobfile.File{}}

	kinds := []kv.BlobFileKind{kv.BlobThinStateDiff, kv.BlobContractClass, kv.BlobDeprecatedContractClass, kv.BlobCompiledClass}
	for _, k := range kinds {
		committed, err := s.committedOffset(k)
		if err != nil {
			return nil, err
		}
		path := fmt.Sprintf("%s/%s.blob", opts.BlobDir, k.FileName())
		f, err := blobfile.Open(path, opts.BlobGrowthStep, opts.BlobMaxSize, committed)
		if err != nil {
			return nil, fmt.Errorf("storage: opening blob file for %s: %w", k.FileName(), err)
		}
		s.blobs[k] = f
	}
	return s, nil
}

func (s *Store) committedOffset(k kv.BlobFileKind) (uint64, error) {
	var committed uint64
	err := s.db.View(context.Background(), func(tx kv.Tx) error {
		v, err := tx.Get(kv.FileOffsets, []byte{byte(k)})
		if err != nil {
			return err
		}
		if v == nil {
			return nil
		}
		off, err := wire.Uint64(v)
		if err != nil {
			return err
		}
		committed = off
		return nil
	})
	return committed, err
}

// Close flushes and closes every blob file; the KV environment itself is
// owned by the caller (it may be shared with other subsystems).
func (s *Store) Close() error {
	var first error
	for _, f := range s.blobs {
		if err := f.Sync(); err != nil && first == nil {
			first = err
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
