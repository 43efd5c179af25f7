package mdbxkv

import (
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
)

type tx struct {
	env *Env
	txn *mdbx.Txn
	ro  bool
}

func (t *tx) dbi(table string) (mdbx.DBI, error) {
	d, ok := t.env.dbis[table]
	if !ok {
		return 0, fmt.Errorf("mdbxkv: unknown table %q", table)
	}
	return d, nil
}

func (t *tx) Get(table string, key []byte) ([]byte, error) {
	d, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(d, key)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: table=%s: %v", kv.ErrInnerDeserialization, table, err)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.Get(table, key)
	return v != nil, err
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	d, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(d)
	if err != nil {
		return nil, fmt.Errorf("mdbxkv: open cursor on %s: %w", table, err)
	}
	return &cursor{c: c}, nil
}

func (t *tx) CursorDupSort(table string) (kv.DupCursor, error) {
	d, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(d)
	if err != nil {
		return nil, fmt.Errorf("mdbxkv: open dup cursor on %s: %w", table, err)
	}
	return &dupCursor{cursor{c: c}}, nil
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

func (t *tx) Rollback() {
	t.txn.Abort()
}

func (t *tx) requireRw() error {
	if t.ro {
		return kv.ErrTxReadOnly
	}
	return nil
}

func (t *tx) Put(table string, key, val []byte) error {
	if err := t.requireRw(); err != nil {
		return err
	}
	d, err := t.dbi(table)
	if err != nil {
		return err
	}
	return t.txn.Put(d, key, val, 0)
}

func (t *tx) Delete(table string, key []byte) error {
	if err := t.requireRw(); err != nil {
		return err
	}
	d, err := t.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Del(d, key, nil); err != nil && !mdbx.IsNotFound(err) {
		return err
	}
	return nil
}

func (t *tx) RwCursor(table string) (kv.RwCursor, error) {
	if err := t.requireRw(); err != nil {
		return nil, err
	}
	d, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(d)
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

func (t *tx) RwCursorDupSort(table string) (kv.RwDupCursor, error) {
	if err := t.requireRw(); err != nil {
		return nil, err
	}
	d, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(d)
	if err != nil {
		return nil, err
	}
	return &dupCursor{cursor{c: c}}, nil
}

func (t *tx) Commit() error {
	if err := t.requireRw(); err != nil {
		return err
	}
	_, err := t.txn.Commit()
	return err
}
