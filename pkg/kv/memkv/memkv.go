// Package memkv is an in-memory implementation of pkg/kv used by unit
// tests, mirroring the teacher's own practice of testing the schema layer
// against a lightweight in-memory backend (erigon-lib/kv/memdb,
// kv/membatchwithdb) rather than spinning up a real MDBX file per test.
// It honors the same single-writer/many-readers contract as the mdbx
// backend via a RWMutex and copy-on-write snapshots.
package memkv

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
)

type kvPair struct {
	k, v []byte
}

type table struct {
	dup  bool
	rows []kvPair // sorted by k, then v when dup
}

func (t *table) clone() *table {
	nt := &table{dup: t.dup, rows: make([]kvPair, len(t.rows))}
	copy(nt.rows, t.rows)
	return nt
}

func less(a, b kvPair, dup bool) bool {
	if c := bytes.Compare(a.k, b.k); c != 0 {
		return c < 0
	}
	if dup {
		return bytes.Compare(a.v, b.v) < 0
	}
	return false
}

type snapshot struct {
	tables map[string]*table
}

// Env is an in-memory environment implementing kv.RwDB.
type Env struct {
	mu      sync.Mutex   // serializes writers; readers take a snapshot reference
	snapMu  sync.RWMutex // guards current, so readers never wait on an open writer
	current *snapshot
	opts    kv.EnvOptions
}

// Open creates a fresh in-memory environment (chain ID is recorded but
// there is no on-disk state to mismatch against, since nothing persists
// across process restarts).
func Open(opts kv.EnvOptions) *Env {
	snap := &snapshot{tables: make(map[string]*table, len(opts.Tables))}
	for name, cfg := range opts.Tables {
		snap.tables[name] = &table{dup: cfg.Flags&kv.DupSort != 0}
	}
	return &Env{current: snap, opts: opts}
}

func (e *Env) Close() error { return nil }

func (e *Env) snapshotRef() *snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.current
}

func (e *Env) BeginRo(ctx context.Context) (kv.Tx, error) {
	return &tx{env: e, snap: e.snapshotRef(), ro: true}, nil
}

func (e *Env) View(ctx context.Context, fn func(kv.Tx) error) error {
	t, _ := e.BeginRo(ctx)
	defer t.Rollback()
	return fn(t)
}

func (e *Env) BeginRw(ctx context.Context) (kv.RwTx, error) {
	e.mu.Lock() // released on Commit/Rollback
	base := e.current
	cloned := &snapshot{tables: make(map[string]*table, len(base.tables))}
	for name, t := range base.tables {
		cloned.tables[name] = t.clone()
	}
	return &tx{env: e, snap: cloned, ro: false, writer: true}, nil
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

type tx struct {
	env    *Env
	snap   *snapshot
	ro     bool
	writer bool
	done   bool
}

func (t *tx) table(name string) (*table, error) {
	tb, ok := t.snap.tables[name]
	if !ok {
		return nil, fmt.Errorf("memkv: unknown table %q", name)
	}
	return tb, nil
}

func (t *tx) Get(table string, key []byte) ([]byte, error) {
	tb, err := t.table(table)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(tb.rows), func(i int) bool { return bytes.Compare(tb.rows[i].k, key) >= 0 })
	if i < len(tb.rows) && bytes.Equal(tb.rows[i].k, key) {
		return append([]byte(nil), tb.rows[i].v...), nil
	}
	return nil, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.Get(table, key)
	return v != nil, err
}

func (t *tx) ForEach(table string, from []byte, fn func(k, v []byte) error) error {
	c, err := t.Cursor(table)
	if err != nil {
		return err
	}
	defer c.Close()
	var k, v []byte
	if from == nil {
		k, v, err = c.First()
	} else {
		k, v, err = c.Seek(from)
	}
	for ; err == nil && k != nil; k, v, err = c.Next() {
		if ferr := fn(k, v); ferr != nil {
			return ferr
		}
	}
	return err
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	tb, err := t.table(table)
	if err != nil {
		return nil, err
	}
	return &cursor{tb: tb, pos: -1}, nil
}

func (t *tx) CursorDupSort(table string) (kv.DupCursor, error) {
	tb, err := t.table(table)
	if err != nil {
		return nil, err
	}
	return &cursor{tb: tb, pos: -1}, nil
}

func (t *tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	if t.writer {
		t.env.mu.Unlock()
	}
}

func (t *tx) requireRw() error {
	if t.ro {
		return kv.ErrTxReadOnly
	}
	return nil
}

func (t *tx) insert(tableName string, k, v []byte) error {
	tb, err := t.table(tableName)
	if err != nil {
		return err
	}
	p := kvPair{k: append([]byte(nil), k...), v: append([]byte(nil), v...)}
	i := sort.Search(len(tb.rows), func(i int) bool { return !less(tb.rows[i], p, tb.dup) })
	if !tb.dup && i < len(tb.rows) && bytes.Equal(tb.rows[i].k, k) {
		tb.rows[i] = p
		return nil
	}
	if tb.dup && i < len(tb.rows) && bytes.Equal(tb.rows[i].k, k) && bytes.Equal(tb.rows[i].v, v) {
		return nil // duplicate no-op, matches NoDupData semantics for identical entries
	}
	tb.rows = append(tb.rows, kvPair{})
	copy(tb.rows[i+1:], tb.rows[i:])
	tb.rows[i] = p
	return nil
}

func (t *tx) Put(tableName string, key, val []byte) error {
	if err := t.requireRw(); err != nil {
		return err
	}
	return t.insert(tableName, key, val)
}

func (t *tx) Delete(tableName string, key []byte) error {
	if err := t.requireRw(); err != nil {
		return err
	}
	tb, err := t.table(tableName)
	if err != nil {
		return err
	}
	out := tb.rows[:0]
	for _, p := range tb.rows {
		if !bytes.Equal(p.k, key) {
			out = append(out, p)
		}
	}
	tb.rows = out
	return nil
}

func (t *tx) RwCursor(tableName string) (kv.RwCursor, error) {
	if err := t.requireRw(); err != nil {
		return nil, err
	}
	tb, err := t.table(tableName)
	if err != nil {
		return nil, err
	}
	return &cursor{tb: tb, pos: -1, tx: t, tableName: tableName}, nil
}

func (t *tx) RwCursorDupSort(tableName string) (kv.RwDupCursor, error) {
	c, err := t.RwCursor(tableName)
	if err != nil {
		return nil, err
	}
	return c.(*cursor), nil
}

func (t *tx) Commit() error {
	if err := t.requireRw(); err != nil {
		return err
	}
	if t.done {
		return fmt.Errorf("memkv: tx already closed")
	}
	t.done = true
	t.env.snapMu.Lock()
	t.env.current = t.snap
	t.env.snapMu.Unlock()
	t.env.mu.Unlock()
	return nil
}

type cursor struct {
	tb        *table
	pos       int
	tx        *tx
	tableName string
}

func (c *cursor) at(i int) (k, v []byte, err error) {
	if i < 0 || i >= len(c.tb.rows) {
		return nil, nil, nil
	}
	return append([]byte(nil), c.tb.rows[i].k...), append([]byte(nil), c.tb.rows[i].v...), nil
}

func (c *cursor) First() (k, v []byte, err error) {
	c.pos = 0
	return c.at(c.pos)
}

func (c *cursor) Next() (k, v []byte, err error) {
	c.pos++
	return c.at(c.pos)
}

func (c *cursor) Prev() (k, v []byte, err error) {
	c.pos--
	return c.at(c.pos)
}

func (c *cursor) Last() (k, v []byte, err error) {
	c.pos = len(c.tb.rows) - 1
	return c.at(c.pos)
}

func (c *cursor) Seek(key []byte) (k, v []byte, err error) {
	i := sort.Search(len(c.tb.rows), func(i int) bool { return bytes.Compare(c.tb.rows[i].k, key) >= 0 })
	c.pos = i
	return c.at(c.pos)
}

func (c *cursor) SeekExact(key []byte) (v []byte, err error) {
	_, v, err = c.Seek(key)
	if v == nil {
		return nil, err
	}
	k := c.tb.rows[c.pos].k
	if !bytes.Equal(k, key) {
		return nil, nil
	}
	return v, nil
}

func (c *cursor) Close() {}

func (c *cursor) Put(key, val []byte) error {
	return c.tx.insert(c.tableName, key, val)
}

func (c *cursor) Delete() error {
	if c.pos < 0 || c.pos >= len(c.tb.rows) {
		return nil
	}
	c.tb.rows = append(c.tb.rows[:c.pos], c.tb.rows[c.pos+1:]...)
	return nil
}

func (c *cursor) SeekBothExact(key, val []byte) (v []byte, err error) {
	i := sort.Search(len(c.tb.rows), func(i int) bool {
		return !less(c.tb.rows[i], kvPair{k: key, v: val}, true)
	})
	c.pos = i
	if i < len(c.tb.rows) && bytes.Equal(c.tb.rows[i].k, key) && bytes.Equal(c.tb.rows[i].v, val) {
		return append([]byte(nil), c.tb.rows[i].v...), nil
	}
	return nil, nil
}

func (c *cursor) SeekBothRange(key, val []byte) (v []byte, err error) {
	i := sort.Search(len(c.tb.rows), func(i int) bool {
		return !less(c.tb.rows[i], kvPair{k: key, v: val}, true)
	})
	c.pos = i
	if i < len(c.tb.rows) && bytes.Equal(c.tb.rows[i].k, key) {
		return append([]byte(nil), c.tb.rows[i].v...), nil
	}
	return nil, nil
}

func (c *cursor) FirstDup() (v []byte, err error) {
	if c.pos < 0 || c.pos >= len(c.tb.rows) {
		return nil, nil
	}
	key := c.tb.rows[c.pos].k
	i := sort.Search(len(c.tb.rows), func(i int) bool { return bytes.Compare(c.tb.rows[i].k, key) >= 0 })
	c.pos = i
	return c.at2(i)
}

func (c *cursor) at2(i int) ([]byte, error) {
	if i < 0 || i >= len(c.tb.rows) {
		return nil, nil
	}
	return append([]byte(nil), c.tb.rows[i].v...), nil
}

func (c *cursor) NextDup() (k, v []byte, err error) {
	if c.pos < 0 || c.pos+1 >= len(c.tb.rows) {
		return nil, nil, nil
	}
	curKey := c.tb.rows[c.pos].k
	if !bytes.Equal(c.tb.rows[c.pos+1].k, curKey) {
		return nil, nil, nil
	}
	c.pos++
	return c.at(c.pos)
}

func (c *cursor) LastDup() (v []byte, err error) {
	if c.pos < 0 || c.pos >= len(c.tb.rows) {
		return nil, nil
	}
	key := c.tb.rows[c.pos].k
	j := c.pos
	for j+1 < len(c.tb.rows) && bytes.Equal(c.tb.rows[j+1].k, key) {
		j++
	}
	c.pos = j
	return c.at2(j)
}

func (c *cursor) CountDuplicates() (uint64, error) {
	if c.pos < 0 || c.pos >= len(c.tb.rows) {
		return 0, nil
	}
	key := c.tb.rows[c.pos].k
	n := uint64(0)
	start := c.pos
	for start > 0 && bytes.Equal(c.tb.rows[start-1].k, key) {
		start--
	}
	for i := start; i < len(c.tb.rows) && bytes.Equal(c.tb.rows[i].k, key); i++ {
		n++
	}
	return n, nil
}

func (c *cursor) PutNoDupData(key, val []byte) error {
	return c.tx.insert(c.tableName, key, val)
}

func (c *cursor) DeleteCurrentDup() error {
	return c.Delete()
}

func (c *cursor) DeleteExact(key, val []byte) error {
	out := c.tb.rows[:0]
	for _, p := range c.tb.rows {
		if bytes.Equal(p.k, key) && bytes.Equal(p.v, val) {
			continue
		}
		out = append(out, p)
	}
	c.tb.rows = out
	return nil
}
