// Package mdbxkv implements the pkg/kv interfaces on top of libmdbx via
// github.com/erigontech/mdbx-go, the same B-tree engine the teacher repo
// uses for its own chain data. It provides MVCC snapshots (many readers,
// one writer) and the DUPSORT tables pkg/kv/tables.go declares.
package mdbxkv

import (
	"context"
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/gofrs/flock"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
)

// Env wraps an opened mdbx.Env plus the resolved DBI handle for every table
// in the schema.
type Env struct {
	env    *mdbx.Env
	opts   kv.EnvOptions
	dbis   map[string]mdbx.DBI
	lock   *flock.Flock
	closed bool
}

// Open creates or opens the environment at opts.Path, verifying the
// on-disk chain_id tag matches opts.ChainID (spec §4.1, §8 "Boundary
// behaviors"). A fresh database is stamped with opts.ChainID on first
// open.
func Open(opts kv.EnvOptions) (_ *Env, err error) {
	var lock *flock.Flock
	if !opts.ReadOnly {
		// Guard against a second writer process opening the same datadir,
		// matching the teacher's single-instance lock on its own datadir
		// (gofrs/flock). MDBX itself only serializes writers within one
		// process; this lock serializes across processes.
		lock = flock.New(opts.Path + ".lock")
		ok, lerr := lock.TryLock()
		if lerr != nil {
			return nil, fmt.Errorf("mdbxkv: acquiring datadir lock: %w", lerr)
		}
		if !ok {
			return nil, fmt.Errorf("mdbxkv: datadir %s is locked by another process", opts.Path)
		}
		defer func() {
			if err != nil {
				lock.Unlock()
			}
		}()
	}

	env, err := mdbx.NewEnv(mdbx.Default)
	if err != nil {
		return nil, fmt.Errorf("mdbxkv: new env: %w", err)
	}

	maxReaders := opts.MaxReaders
	if maxReaders == 0 {
		maxReaders = 4000
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(opts.Tables))+8); err != nil {
		return nil, fmt.Errorf("mdbxkv: set max dbs: %w", err)
	}
	if err := env.SetOption(mdbx.OptMaxReaders, maxReaders); err != nil {
		return nil, fmt.Errorf("mdbxkv: set max readers: %w", err)
	}

	growthStep := opts.GrowthStep
	if growthStep == 0 {
		growthStep = 2 << 30 // 2GiB, matching the teacher's default MDBX growth step
	}
	if err := env.SetGeometry(int(opts.MinSize), -1, int(opts.MaxSize), int(growthStep), -1, -1); err != nil {
		return nil, fmt.Errorf("mdbxkv: set geometry: %w", err)
	}

	flags := uint(mdbx.Coalesce | mdbx.LifoReclaim)
	if opts.NoSubDir {
		flags |= mdbx.NoSubdir
	}
	if opts.ReadOnly {
		flags |= mdbx.Readonly
	}
	if err := env.Open(opts.Path, flags, 0o664); err != nil {
		return nil, fmt.Errorf("mdbxkv: open %s: %w", opts.Path, err)
	}

	e := &Env{env: env, opts: opts, dbis: make(map[string]mdbx.DBI, len(opts.Tables)), lock: lock}

	if err := e.openTablesAndCheckChainID(opts); err != nil {
		env.Close()
		return nil, err
	}
	return e, nil
}

func tableFlags(cfg kv.TableCfgItem) uint {
	f := uint(mdbx.Create)
	if cfg.Flags&kv.DupSort != 0 {
		f |= mdbx.DupSort
	}
	return f
}

func (e *Env) openTablesAndCheckChainID(opts kv.EnvOptions) error {
	rwTxn, err := e.env.BeginTxn(nil, 0)
	if err != nil {
		return fmt.Errorf("mdbxkv: begin setup txn: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rwTxn.Abort()
		}
	}()

	for name, cfg := range opts.Tables {
		dbi, err := rwTxn.OpenDBISimple(name, tableFlags(cfg))
		if err != nil {
			return fmt.Errorf("mdbxkv: open table %s: %w", name, err)
		}
		e.dbis[name] = dbi
	}

	chainIDKey := []byte(kv.DbChainID)
	existing, err := rwTxn.Get(e.dbis[kv.DbChainID], chainIDKey)
	if err != nil && !mdbx.IsNotFound(err) {
		return fmt.Errorf("mdbxkv: read chain id: %w", err)
	}
	if mdbx.IsNotFound(err) {
		val := encodeUint64(opts.ChainID)
		if err := rwTxn.Put(e.dbis[kv.DbChainID], chainIDKey, val, 0); err != nil {
			return fmt.Errorf("mdbxkv: stamp chain id: %w", err)
		}
	} else if decodeUint64(existing) != opts.ChainID {
		return fmt.Errorf("%w: on-disk=%d requested=%d", kv.ErrChainIDMismatch, decodeUint64(existing), opts.ChainID)
	}

	if _, err := rwTxn.Commit(); err != nil {
		return fmt.Errorf("mdbxkv: commit setup txn: %w", err)
	}
	committed = true
	return nil
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func (e *Env) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.env.Close()
	if e.lock != nil {
		e.lock.Unlock()
	}
	return nil
}

func (e *Env) BeginRo(ctx context.Context) (kv.Tx, error) {
	if e.closed {
		return nil, kv.ErrEnvClosed
	}
	txn, err := e.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, fmt.Errorf("mdbxkv: begin ro: %w", err)
	}
	return &tx{env: e, txn: txn, ro: true}, nil
}

func (e *Env) View(ctx context.Context, fn func(kv.Tx) error) error {
	tx, err := e.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

func (e *Env) BeginRw(ctx context.Context) (kv.RwTx, error) {
	if e.closed {
		return nil, kv.ErrEnvClosed
	}
	txn, err := e.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, fmt.Errorf("mdbxkv: begin rw: %w", err)
	}
	return &tx{env: e, txn: txn, ro: false}, nil
}

func (e *Env) Update(ctx context.Context, fn func(kv.RwTx) error) error {
	rw, err := e.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := fn(rw); err != nil {
		rw.Rollback()
		return err
	}
	return rw.Commit()
}
