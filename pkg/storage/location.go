package storage

import (
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/blobfile"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
)

// blobLocation is the KV-stored form of blobfile.Location: offset and
// length of a payload inside one of the four append-only blob files.
type blobLocation struct {
	Offset uint64
	Len    uint64
}

func encodeLocation(l blobLocation) []byte {
	return append(wire.PutUint64(l.Offset), wire.PutUint64(l.Len)...)
}

func decodeLocation(b []byte) (blobLocation, error) {
	r := &byteReader{b: b}
	loc := blobLocation{Offset: r.u64(), Len: r.u64()}
	return loc, r.err
}

func locationToBlob(l blobLocation) blobfile.Location {
	return blobfile.Location{Offset: l.Offset, Len: l.Len}
}
