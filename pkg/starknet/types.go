// Package starknet defines the wire-independent domain model shared by the
// storage engine and the sync pipeline: blocks, transactions, state diffs
// and contract classes as they exist on the canonical L2 chain.
package starknet

import (
	"fmt"
)

// BlockNumber is a monotonically increasing 64-bit block index.
type BlockNumber uint64

// Next returns the following block number.
func (n BlockNumber) Next() BlockNumber { return n + 1 }

// Prev returns the preceding block number. Calling Prev on 0 is a
// programming error; callers must check n > 0 first.
func (n BlockNumber) Prev() BlockNumber {
	if n == 0 {
		panic("starknet: BlockNumber(0).Prev()")
	}
	return n - 1
}

// Felt is a 252-bit Stark field element, stored big-endian in a 32-byte
// array (top nibble of the first byte is always zero).
type Felt [32]byte

// FeltZero is the additive identity of the Stark field.
var FeltZero = Felt{}

func (f Felt) String() string {
	return fmt.Sprintf("0x%x", [32]byte(f))
}

// IsZero reports whether f is the zero field element.
func (f Felt) IsZero() bool { return f == FeltZero }

// BlockHash identifies a block by its commitment hash.
type BlockHash Felt

// ClassHash identifies a compiled or Sierra contract class.
type ClassHash Felt

// CompiledClassHash identifies a CASM-compiled class body.
type CompiledClassHash Felt

// Address is a contract address (a Felt restricted to the valid address range).
type Address Felt

// StorageKey is a Felt used as a per-contract storage slot key.
type StorageKey Felt

// Nonce is a contract's transaction nonce.
type Nonce Felt

// TransactionHash uniquely identifies a transaction within the whole chain.
type TransactionHash Felt

// L1DAMode selects how a block's data was made available on L1.
type L1DAMode uint8

const (
	L1DACalldata L1DAMode = iota
	L1DABlob
)

// GasPrice is a L1 gas price sample embedded in a block header.
type GasPrice struct {
	PriceInWei Felt
	PriceInFri Felt
}

// BlockCommitments holds the optional per-block commitment hashes. Older
// blocks may be missing some of these; a zero Felt means "not computed".
type BlockCommitments struct {
	TransactionCommitment Felt
	EventCommitment       Felt
	StateDiffCommitment   Felt
	ReceiptCommitment     Felt
}

// BlockHeader is the canonical per-block metadata record.
//
// Invariant: for all present N >= 1, Header(N).ParentHash == Header(N-1).BlockHash.
type BlockHeader struct {
	BlockNumber       BlockNumber
	BlockHash         BlockHash
	ParentHash        BlockHash
	SequencerAddress  Address
	StateRoot         Felt
	Timestamp         uint64
	L1GasPrice        GasPrice
	L1DataGasPrice    GasPrice
	L1DAMode          L1DAMode
	StarknetVersion   string
	Commitments       BlockCommitments
}

// BlockBody is the ordered sequence of transactions and their outputs.
// len(Transactions) must equal len(Outputs).
type BlockBody struct {
	Transactions []Transaction
	Outputs      []TransactionOutput
}

// Event is a single log entry emitted by a transaction.
type Event struct {
	FromAddress Address
	Keys        []Felt
	Data        []Felt
}

// ThinStateDiff is the state mutation applied by a single block.
//
// Invariant: an address never appears in both DeployedContracts and
// ReplacedClasses of the same diff.
type ThinStateDiff struct {
	DeployedContracts          []DeployedContract
	StorageDiffs               []ContractStorageDiff
	DeclaredClasses            []DeclaredClass
	DeprecatedDeclaredClasses  []ClassHash
	Nonces                     []ContractNonce
	ReplacedClasses            []ReplacedClass
}

// DeployedContract associates a newly deployed address with its class.
type DeployedContract struct {
	Address   Address
	ClassHash ClassHash
}

// ReplacedClass records a contract whose class was swapped in place.
type ReplacedClass struct {
	Address   Address
	ClassHash ClassHash
}

// ContractNonce records a contract's nonce after the block.
type ContractNonce struct {
	Address Address
	Nonce   Nonce
}

// DeclaredClass associates a Sierra class hash with its compiled form hash.
type DeclaredClass struct {
	ClassHash         ClassHash
	CompiledClassHash CompiledClassHash
}

// StorageEntry is a single (key, value) write within a contract's storage diff.
type StorageEntry struct {
	Key   StorageKey
	Value Felt
}

// ContractStorageDiff is one contract's ordered storage writes in a block.
// Keys must be strictly increasing with no duplicates.
type ContractStorageDiff struct {
	Address Address
	Entries []StorageEntry
}

// StateNumber is a logical position at a block boundary: either "right
// before block N" or "right after block N" (used for historical reads).
type StateNumber struct {
	Block    BlockNumber
	AfterBlock bool
}

// StateNumberRightBefore returns the state boundary immediately preceding n.
func StateNumberRightBefore(n BlockNumber) StateNumber {
	return StateNumber{Block: n, AfterBlock: false}
}

// StateNumberRightAfter returns the state boundary immediately following n.
func StateNumberRightAfter(n BlockNumber) StateNumber {
	return StateNumber{Block: n, AfterBlock: true}
}

// Visible reports whether a write committed at writtenAt is observable at
// this state boundary.
func (s StateNumber) Visible(writtenAt BlockNumber) bool {
	if s.AfterBlock {
		return writtenAt <= s.Block
	}
	return writtenAt < s.Block
}
