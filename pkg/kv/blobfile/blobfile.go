// Package blobfile implements the append-only memory-mapped payload files
// backing large blob-like records (thin state diffs, contract classes,
// compiled classes) that are too large to store efficiently as plain KV
// values (spec §4.1, §9 "Large blobs").
//
// A File grows in GrowthStep increments up to MaxSize via mmap remapping,
// the same technique the teacher repo uses for its snapshot segment files
// (github.com/edsrzf/mmap-go). A File has a single read-write mapping;
// appends take its lock exclusively and reads share it, so a read waits
// only while an append (or a remap it triggers) is in progress. The
// authoritative "how much of this file is committed" boundary lives in
// the KV store's FileOffsets table, not in the file itself: an append
// past the last committed offset is logically invisible until the owning
// RwTx commits (spec §4.1 "Failure semantics").
package blobfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// Location identifies a payload's position inside a File.
type Location struct {
	Offset uint64
	Len    uint64
}

// File is a single append-only blob file. All writes must be serialized by
// the caller (the single RW transaction owns a File's write path); reads
// may happen concurrently with an in-progress (uncommitted) append because
// the reader never looks past the offset recorded at its transaction's
// start.
type File struct {
	mu         sync.RWMutex
	f          *os.File
	mapping    mmap.MMap
	mappedSize uint64
	growthStep uint64
	maxSize    uint64
	nextOffset uint64 // high water mark of appended (not yet necessarily committed) bytes
}

// Open opens or creates the file at path, growing it to at least
// committedOffset bytes (the durable offset recorded by the KV
// store) before mapping it.
func Open(path string, growthStep, maxSize, committedOffset uint64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blobfile: open %s: %w", path, err)
	}
	bf := &File{f: f, growthStep: growthStep, maxSize: maxSize, nextOffset: committedOffset}
	initial := growthStep
	if committedOffset > initial {
		initial = roundUp(committedOffset, growthStep)
	}
	if err := bf.ensureMapped(initial); err != nil {
		f.Close()
		return nil, err
	}
	return bf, nil
}

func roundUp(v, step uint64) uint64 {
	if step == 0 {
		return v
	}
	if r := v % step; r != 0 {
		return v + (step - r)
	}
	return v
}

func (bf *File) ensureMapped(size uint64) error {
	if size <= bf.mappedSize && bf.mapping != nil {
		return nil
	}
	if bf.maxSize != 0 && size > bf.maxSize {
		return fmt.Errorf("blobfile: growth to %d exceeds max size %d", size, bf.maxSize)
	}
	if bf.mapping != nil {
		if err := bf.mapping.Unmap(); err != nil {
			return fmt.Errorf("blobfile: unmap before grow: %w", err)
		}
		bf.mapping = nil
	}
	if err := bf.f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("blobfile: truncate to %d: %w", size, err)
	}
	m, err := mmap.Map(bf.f, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("blobfile: mmap: %w", err)
	}
	bf.mapping = m
	bf.mappedSize = size
	return nil
}

// Append writes payload at the current write offset and returns its
// Location. It does not fsync; durability is delegated to the owning
// transaction's commit protocol, which must call Sync and then record the
// returned offset in the FileOffsets table before the commit is
// considered successful.
func (bf *File) Append(payload []byte) (Location, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	need := bf.nextOffset + uint64(len(payload))
	if need > bf.mappedSize {
		if err := bf.ensureMapped(roundUp(need, bf.growthStep)); err != nil {
			return Location{}, err
		}
	}
	copy(bf.mapping[bf.nextOffset:need], payload)
	loc := Location{Offset: bf.nextOffset, Len: uint64(len(payload))}
	bf.nextOffset = need
	return loc, nil
}

// Read returns a copy of the bytes at loc. Copying (rather than returning
// a slice into the mapping) keeps callers safe across a concurrent Append
// that might remap the file.
func (bf *File) Read(loc Location) ([]byte, error) {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	end := loc.Offset + loc.Len
	if end > bf.mappedSize {
		return nil, fmt.Errorf("blobfile: location %+v out of bounds (mapped size %d)", loc, bf.mappedSize)
	}
	out := make([]byte, loc.Len)
	copy(out, bf.mapping[loc.Offset:end])
	return out, nil
}

// Sync flushes the mapping to disk.
func (bf *File) Sync() error {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	if bf.mapping == nil {
		return nil
	}
	return bf.mapping.Flush()
}

// NextOffset reports the current write head (including any uncommitted
// appends since the last Truncate).
func (bf *File) NextOffset() uint64 {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.nextOffset
}

// Truncate resets the write head back to a previously committed offset,
// discarding any appends made since (used on transaction abort; crash
// recovery instead passes the committed offset to Open).
func (bf *File) Truncate(committedOffset uint64) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.nextOffset = committedOffset
	return nil
}

// Close unmaps and closes the underlying file.
func (bf *File) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	var err error
	if bf.mapping != nil {
		err = bf.mapping.Unmap()
		bf.mapping = nil
	}
	if cerr := bf.f.Close(); err == nil {
		err = cerr
	}
	return err
}
