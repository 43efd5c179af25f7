package kv

import "errors"

// Storage error taxonomy (spec §7). These are sentinel values; callers use
// errors.Is against them. Wrapped errors carry the offending key/table via
// fmt.Errorf("%w: table=%s key=%x", ...).
var (
	// ErrChainIDMismatch is returned by Open when the on-disk chain_id tag
	// does not match the requested chain.
	ErrChainIDMismatch = errors.New("kv: chain id mismatch")

	// ErrMarkerMismatch means a writer was asked to append at a block
	// number other than the current marker. During normal sync this is a
	// programming bug (spec §7): callers must pre-check against the
	// marker before calling an append_* operation.
	ErrMarkerMismatch = errors.New("kv: marker mismatch")

	// ErrDBInconsistency signals an invariant violation detected while
	// reading back previously committed data (e.g. a dangling class
	// reference with no owning state diff).
	ErrDBInconsistency = errors.New("kv: database inconsistency")

	// ErrKeyAlreadyExists is the generic uniqueness violation for simple
	// tables; more specific variants below carry a friendlier message.
	ErrKeyAlreadyExists = errors.New("kv: key already exists")

	ErrBlockHashAlreadyExists       = errors.New("kv: block hash already exists")
	ErrTransactionHashAlreadyExists = errors.New("kv: transaction hash already exists")
	ErrClassAlreadyExists           = errors.New("kv: class already exists")

	// ErrInnerDeserialization wraps a failure to decode a stored value.
	ErrInnerDeserialization = errors.New("kv: deserialization error")

	// ErrBlockNumberOutOfRange is returned by revert_* when asked to
	// revert anything but the current tip.
	ErrBlockNumberOutOfRange = errors.New("kv: block number out of range")

	// ErrTxReadOnly is returned by any mutating call made on a read-only
	// transaction.
	ErrTxReadOnly = errors.New("kv: transaction is read-only")

	// ErrEnvClosed is returned by any call made after Close.
	ErrEnvClosed = errors.New("kv: environment closed")
)
