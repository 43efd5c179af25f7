package kv

// Table name constants and the schema map, following the naming and
// commenting style of the teacher's erigon-lib/kv/tables.go: a short
// constant, a comment describing key -> value shape, grouped by domain.

const (
	// DbVersion stores the schema version tag; DbChainID stores the
	// chain this database was created for. Opening against a mismatched
	// ChainID is fatal (spec §4.1, §8).
	DbVersion = "DbInfo.Version"
	DbChainID = "DbInfo.ChainId"

	// Headers: block_number_u64_be -> versioned(BlockHeader)
	Headers = "Headers"
	// HeaderNumberByHash: block_hash -> block_number_u64_be
	HeaderNumberByHash = "HeaderNumberByHash"

	// Markers: marker_kind_u8 -> block_number_u64_be
	Markers = "Markers"

	// BlockBodyTxCount: block_number_u64_be -> tx_count_u32_be, used to
	// size the ordered Transactions/TransactionOutputs scan range for a block.
	BlockBodyTxCount = "BlockBodyTxCount"
	// Transactions: block_number_u64_be + tx_index_u32_be -> versioned(Transaction)
	Transactions = "Transactions"
	// TransactionOutputs: block_number_u64_be + tx_index_u32_be -> versioned(TransactionOutput)
	TransactionOutputs = "TransactionOutputs"
	// TxHashToLocation: tx_hash -> block_number_u64_be + tx_index_u32_be
	TxHashToLocation = "TxHashToLocation"

	// EventIndex (DUPSORT): contract_address + block_number_u64_be -> tx_index_u32_be + event_index_u32_be
	// Used by the event reader to page (from_address, from_block..to_block).
	EventIndex = "EventIndex"

	// ThinStateDiffLocation: block_number_u64_be -> LocationInFile (into the thin_state_diff blob file)
	ThinStateDiffLocation = "ThinStateDiffLocation"

	// ContractClassLocation: class_hash -> LocationInFile (into the contract_class blob file)
	ContractClassLocation = "ContractClassLocation"
	// DeprecatedContractClassLocation: class_hash -> LocationInFile (into the deprecated_contract_class blob file)
	DeprecatedContractClassLocation = "DeprecatedContractClassLocation"
	// CompiledClassLocation: class_hash -> LocationInFile (into the casm blob file)
	CompiledClassLocation = "CompiledClassLocation"

	// ClassDeclarationBlock: class_hash -> block_number_u64_be the class was declared at.
	ClassDeclarationBlock = "ClassDeclarationBlock"
	// DeprecatedClassHashes (DUPSORT marker set): block_number_u64_be -> class_hash
	DeprecatedClassHashes = "DeprecatedClassHashes"

	// ContractClassHistory (DUPSORT): address -> block_number_u64_be + class_hash,
	// sorted ascending by block number, one entry per block the contract's
	// class changed (deploy or replace). Point lookups binary-search this.
	ContractClassHistory = "ContractClassHistory"
	// ContractNonceHistory (DUPSORT): address -> block_number_u64_be + nonce
	ContractNonceHistory = "ContractNonceHistory"
	// ContractStorageHistory (DUPSORT): address + storage_key -> block_number_u64_be + value
	ContractStorageHistory = "ContractStorageHistory"

	// FileOffsets: file_kind_u8 -> next_offset_u64_be. Durable record of
	// how much of each append-only blob file is committed; recovery
	// truncates anything appended beyond this (spec §4.1).
	FileOffsets = "FileOffsets"

	// OmmerHeaders: ommer_block_hash -> versioned(BlockHeader) for blocks
	// removed by a revert (spec §3, §4.5, supplemented retention policy
	// in SPEC_FULL.md).
	OmmerHeaders = "OmmerHeaders"
	// OmmerBodies: ommer_block_hash -> versioned(BlockBody)
	OmmerBodies = "OmmerBodies"
	// OmmerStateDiffs: ommer_block_hash -> versioned(ThinStateDiff)
	OmmerStateDiffs = "OmmerStateDiffs"
	// OmmerOrder (DUPSORT): revert_epoch_u64_be -> ommer_block_hash, used
	// to prune the oldest ommers first once a retention depth is exceeded.
	OmmerOrder = "OmmerOrder"
)

// Schema is the full table configuration for the node's KV environment.
var Schema = TableCfg{
	DbVersion:                        {Flags: Default},
	DbChainID:                        {Flags: Default},
	Headers:                          {Flags: Default},
	HeaderNumberByHash:               {Flags: Default},
	Markers:                          {Flags: Default},
	BlockBodyTxCount:                 {Flags: Default},
	Transactions:                     {Flags: Default},
	TransactionOutputs:               {Flags: Default},
	TxHashToLocation:                 {Flags: Default},
	EventIndex:                       {Flags: DupSort},
	ThinStateDiffLocation:            {Flags: Default},
	ContractClassLocation:            {Flags: Default},
	DeprecatedContractClassLocation:  {Flags: Default},
	CompiledClassLocation:            {Flags: Default},
	ClassDeclarationBlock:            {Flags: Default},
	DeprecatedClassHashes:            {Flags: DupSort},
	ContractClassHistory:             {Flags: DupSort},
	ContractNonceHistory:             {Flags: DupSort},
	ContractStorageHistory:           {Flags: DupSort},
	FileOffsets:                      {Flags: Default},
	OmmerHeaders:                     {Flags: Default},
	OmmerBodies:                      {Flags: Default},
	OmmerStateDiffs:                  {Flags: Default},
	OmmerOrder:                       {Flags: DupSort},
}

// BlobFileKind discriminates the four append-only blob files (spec §4.1, §6).
type BlobFileKind uint8

const (
	BlobThinStateDiff BlobFileKind = iota
	BlobContractClass
	BlobDeprecatedContractClass
	BlobCompiledClass
)

func (k BlobFileKind) FileName() string {
	switch k {
	case BlobThinStateDiff:
		return "thin_state_diff"
	case BlobContractClass:
		return "contract_class"
	case BlobDeprecatedContractClass:
		return "deprecated_contract_class"
	case BlobCompiledClass:
		return "casm"
	default:
		return "unknown"
	}
}
