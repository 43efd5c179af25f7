package mdbxkv

import (
	"github.com/erigontech/mdbx-go/mdbx"
)

type cursor struct {
	c *mdbx.Cursor
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (cu *cursor) get(op uint) (k, v []byte, err error) {
	k, v, err = cu.c.Get(nil, nil, op)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return copyBytes(k), copyBytes(v), nil
}

func (cu *cursor) First() (k, v []byte, err error) { return cu.get(mdbx.First) }
func (cu *cursor) Next() (k, v []byte, err error)  { return cu.get(mdbx.Next) }
func (cu *cursor) Prev() (k, v []byte, err error)  { return cu.get(mdbx.Prev) }
func (cu *cursor) Last() (k, v []byte, err error)  { return cu.get(mdbx.Last) }

func (cu *cursor) Seek(key []byte) (k, v []byte, err error) {
	k, v, err = cu.c.Get(key, nil, mdbx.SetRange)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return copyBytes(k), copyBytes(v), nil
}

func (cu *cursor) SeekExact(key []byte) (v []byte, err error) {
	_, v, err = cu.c.Get(key, nil, mdbx.Set)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return copyBytes(v), nil
}

func (cu *cursor) Put(key, val []byte) error {
	return cu.c.Put(key, val, 0)
}

func (cu *cursor) Delete() error {
	return cu.c.Del(0)
}

func (cu *cursor) Close() {
	cu.c.Close()
}

type dupCursor struct {
	cursor
}

func (cu *dupCursor) SeekBothExact(key, val []byte) (v []byte, err error) {
	_, v, err = cu.c.Get(key, val, mdbx.GetBoth)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return copyBytes(v), nil
}

func (cu *dupCursor) SeekBothRange(key, val []byte) (v []byte, err error) {
	_, v, err = cu.c.Get(key, val, mdbx.GetBothRange)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return copyBytes(v), nil
}

func (cu *dupCursor) FirstDup() (v []byte, err error) {
	_, v, err = cu.c.Get(nil, nil, mdbx.FirstDup)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return copyBytes(v), nil
}

func (cu *dupCursor) NextDup() (k, v []byte, err error) {
	return cu.get(mdbx.NextDup)
}

func (cu *dupCursor) LastDup() (v []byte, err error) {
	_, v, err = cu.c.Get(nil, nil, mdbx.LastDup)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return copyBytes(v), nil
}

func (cu *dupCursor) CountDuplicates() (uint64, error) {
	n, err := cu.c.Count()
	return n, err
}

func (cu *dupCursor) PutNoDupData(key, val []byte) error {
	return cu.c.Put(key, val, mdbx.NoDupData)
}

func (cu *dupCursor) DeleteCurrentDup() error {
	return cu.c.Del(0)
}

func (cu *dupCursor) DeleteExact(key, val []byte) error {
	if _, _, err := cu.c.Get(key, val, mdbx.GetBoth); err != nil {
		if mdbx.IsNotFound(err) {
			return nil
		}
		return err
	}
	return cu.c.Del(0)
}
