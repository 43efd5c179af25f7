package starknet

// EntryPointType discriminates a Cairo entry point's role.
type EntryPointType uint8

const (
	EntryPointExternal EntryPointType = iota
	EntryPointL1Handler
	EntryPointConstructor
)

// EntryPoint is a single selector->offset mapping in a contract class.
type EntryPoint struct {
	Selector Felt
	Offset   uint64
}

// ContractClass is a Cairo 1 / Sierra class, declared at a specific block.
// Its Sierra program is the large payload that gets stored in the
// contract_class append-only blob file rather than inline in the KV table.
type ContractClass struct {
	ClassHash       ClassHash
	DeclaredAt      BlockNumber
	SierraProgram   []Felt
	EntryPoints     map[EntryPointType][]EntryPoint
	ContractClassVersion string
	ABI             string
}

// DeprecatedContractClass is a Cairo 0 class.
type DeprecatedContractClass struct {
	ClassHash   ClassHash
	DeclaredAt  BlockNumber
	ProgramJSON []byte
	EntryPoints map[EntryPointType][]DeprecatedEntryPoint
	ABI         string
}

// DeprecatedEntryPoint is a Cairo 0 entry point (no implicit builtins list).
type DeprecatedEntryPoint struct {
	Selector Felt
	Offset   uint64
}

// CompiledClass is the CASM form produced after a class is declared.
type CompiledClass struct {
	ClassHash       ClassHash
	CompiledAt      BlockNumber
	Bytecode        []Felt
	EntryPoints     map[EntryPointType][]CompiledEntryPoint
	Hints           []byte // opaque, sequencer-defined hint encoding
}

// CompiledEntryPoint is a CASM entry point with its builtin list.
type CompiledEntryPoint struct {
	Selector Felt
	Offset   uint64
	Builtins []string
}
