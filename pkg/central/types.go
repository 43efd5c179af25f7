package central

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// The Gateway* types are the feeder gateway's JSON wire shapes, kept
// deliberately minimal (string-hex felts, no nested validation) since
// this client's only job is to get bytes onto the wire accurately; the
// sync pipeline is responsible for turning them into verified domain
// objects.

type GatewayBlock struct {
	BlockNumber      uint64               `json:"block_number"`
	BlockHash        string               `json:"block_hash"`
	ParentBlockHash  string               `json:"parent_block_hash"`
	SequencerAddress string               `json:"sequencer_address"`
	StateRoot        string               `json:"state_root"`
	Timestamp        uint64               `json:"timestamp"`
	StarknetVersion  string               `json:"starknet_version"`
	Transactions     []GatewayTransaction `json:"transactions"`
	Receipts         []GatewayReceipt     `json:"transaction_receipts"`
}

type GatewayTransaction struct {
	TransactionHash     string   `json:"transaction_hash"`
	Type                string   `json:"type"`
	Version             string   `json:"version"`
	SenderAddress        string   `json:"sender_address"`
	Calldata            []string `json:"calldata"`
	Signature           []string `json:"signature"`
	MaxFee              string   `json:"max_fee"`
	Nonce               string   `json:"nonce"`
	ClassHash           string   `json:"class_hash"`
	CompiledClassHash   string   `json:"compiled_class_hash"`
	ContractAddressSalt string   `json:"contract_address_salt"`
	ConstructorCalldata []string `json:"constructor_calldata"`
	EntryPointSelector  string   `json:"entry_point_selector"`
}

type GatewayEvent struct {
	FromAddress string   `json:"from_address"`
	Keys        []string `json:"keys"`
	Data        []string `json:"data"`
}

type GatewayMessage struct {
	FromAddress string   `json:"from_address"`
	ToAddress   string   `json:"to_address"`
	Payload     []string `json:"payload"`
}

type GatewayReceipt struct {
	TransactionHash string           `json:"transaction_hash"`
	ActualFee       string           `json:"actual_fee"`
	ExecutionStatus string           `json:"execution_status"`
	RevertReason    string           `json:"revert_reason"`
	Events          []GatewayEvent   `json:"events"`
	L2ToL1Messages  []GatewayMessage `json:"l2_to_l1_messages"`
}

type GatewayStateUpdate struct {
	BlockHash string              `json:"block_hash"`
	NewRoot   string              `json:"new_root"`
	StateDiff GatewayThinStateDiff `json:"state_diff"`
}

type GatewayThinStateDiff struct {
	DeployedContracts []struct {
		Address   string `json:"address"`
		ClassHash string `json:"class_hash"`
	} `json:"deployed_contracts"`
	ReplacedClasses []struct {
		Address   string `json:"address"`
		ClassHash string `json:"class_hash"`
	} `json:"replaced_classes"`
	DeclaredClasses []struct {
		ClassHash         string `json:"class_hash"`
		CompiledClassHash string `json:"compiled_class_hash"`
	} `json:"declared_classes"`
	OldDeclaredContracts []string `json:"old_declared_contracts"`
	Nonces               map[string]string `json:"nonces"`
	StorageDiffs         map[string][]struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"storage_diffs"`
}

// GatewayEntryPoint is one selector->offset mapping as the gateway
// serializes it (hex strings, no builtins).
type GatewayEntryPoint struct {
	Selector string `json:"selector"`
	Offset   string `json:"offset"`
}

type GatewayEntryPointsByType struct {
	External    []GatewayEntryPoint `json:"EXTERNAL"`
	L1Handler   []GatewayEntryPoint `json:"L1_HANDLER"`
	Constructor []GatewayEntryPoint `json:"CONSTRUCTOR"`
}

// GatewayCompiledEntryPoint additionally carries the CASM builtin list.
type GatewayCompiledEntryPoint struct {
	Selector string   `json:"selector"`
	Offset   string   `json:"offset"`
	Builtins []string `json:"builtins"`
}

type GatewayCompiledEntryPointsByType struct {
	External    []GatewayCompiledEntryPoint `json:"EXTERNAL"`
	L1Handler   []GatewayCompiledEntryPoint `json:"L1_HANDLER"`
	Constructor []GatewayCompiledEntryPoint `json:"CONSTRUCTOR"`
}

// GatewayClass covers both class-by-hash response shapes the gateway
// actually returns (Cairo 0's {program, entry_points_by_type, abi} and
// Cairo 1's {sierra_program, entry_points_by_type, abi,
// contract_class_version}) in one struct; ProgramJSON is kept as raw
// JSON since Cairo 0's "program" is a nested object, not a byte string.
type GatewayClass struct {
	SierraProgram    []string                 `json:"sierra_program"`
	ABI              string                   `json:"abi"`
	ProgramJSON      json.RawMessage          `json:"program"`
	Version          string                   `json:"contract_class_version"`
	EntryPointsByType GatewayEntryPointsByType `json:"entry_points_by_type"`
}

type GatewayCompiledClass struct {
	Bytecode          []string                         `json:"bytecode"`
	Hints             json.RawMessage                  `json:"hints"`
	EntryPointsByType GatewayCompiledEntryPointsByType `json:"entry_points_by_type"`
}

func hexToFelt(s string) starknet.Felt {
	var f starknet.Felt
	if s == "" {
		return f
	}
	s = trimHexPrefix(s)
	b := hexDecodeRightAligned(s)
	copy(f[32-len(b):], b)
	return f
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// hexDecodeRightAligned tolerates odd-length hex strings (the gateway
// omits a leading zero nibble), which encoding/hex rejects outright.
func hexDecodeRightAligned(s string) []byte {
	if len(s)%2 != 0 {
		s = "0" + s
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi := hexNibble(s[2*i])
		lo := hexNibble(s[2*i+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// ToHeader converts the gateway's flat block JSON into a domain header.
// Commitments are left zero: they are recomputed locally by pkg/commitment
// rather than trusted from the wire (spec §5 "never trust the source's
// own commitment claims without recomputing them").
func (b *GatewayBlock) ToHeader() starknet.BlockHeader {
	return starknet.BlockHeader{
		BlockNumber:      starknet.BlockNumber(b.BlockNumber),
		BlockHash:        starknet.BlockHash(hexToFelt(b.BlockHash)),
		ParentHash:       starknet.BlockHash(hexToFelt(b.ParentBlockHash)),
		SequencerAddress: starknet.Address(hexToFelt(b.SequencerAddress)),
		StateRoot:        hexToFelt(b.StateRoot),
		Timestamp:        b.Timestamp,
		StarknetVersion:  b.StarknetVersion,
	}
}

func txTypeFromString(s string) starknet.TransactionType {
	switch s {
	case "DECLARE":
		return starknet.TxDeclare
	case "DEPLOY":
		return starknet.TxDeploy
	case "DEPLOY_ACCOUNT":
		return starknet.TxDeployAccount
	case "L1_HANDLER":
		return starknet.TxL1Handler
	default:
		return starknet.TxInvoke
	}
}

func hexFeltSlice(ss []string) []starknet.Felt {
	out := make([]starknet.Felt, len(ss))
	for i, s := range ss {
		out[i] = hexToFelt(s)
	}
	return out
}

// ToBody converts the gateway's transactions+receipts into a domain body.
func (b *GatewayBlock) ToBody() starknet.BlockBody {
	body := starknet.BlockBody{
		Transactions: make([]starknet.Transaction, len(b.Transactions)),
		Outputs:      make([]starknet.TransactionOutput, len(b.Transactions)),
	}
	for i, t := range b.Transactions {
		body.Transactions[i] = starknet.Transaction{
			Hash:                starknet.TransactionHash(hexToFelt(t.TransactionHash)),
			Type:                txTypeFromString(t.Type),
			SenderAddress:       starknet.Address(hexToFelt(t.SenderAddress)),
			CalldataOrPayload:   hexFeltSlice(t.Calldata),
			Signature:           hexFeltSlice(t.Signature),
			MaxFee:              hexToFelt(t.MaxFee),
			Nonce:               starknet.Nonce(hexToFelt(t.Nonce)),
			ClassHash:           starknet.ClassHash(hexToFelt(t.ClassHash)),
			CompiledClassHash:   starknet.CompiledClassHash(hexToFelt(t.CompiledClassHash)),
			ContractAddressSalt: hexToFelt(t.ContractAddressSalt),
			ConstructorCalldata: hexFeltSlice(t.ConstructorCalldata),
			EntryPointSelector:  hexToFelt(t.EntryPointSelector),
		}
	}
	for i, r := range b.Receipts {
		status := starknet.ExecutionSucceeded
		if r.ExecutionStatus == "REVERTED" {
			status = starknet.ExecutionReverted
		}
		events := make([]starknet.Event, len(r.Events))
		for j, e := range r.Events {
			events[j] = starknet.Event{
				FromAddress: starknet.Address(hexToFelt(e.FromAddress)),
				Keys:        hexFeltSlice(e.Keys),
				Data:        hexFeltSlice(e.Data),
			}
		}
		msgs := make([]starknet.MessageToL1, len(r.L2ToL1Messages))
		for j, m := range r.L2ToL1Messages {
			msgs[j] = starknet.MessageToL1{
				FromAddress: starknet.Address(hexToFelt(m.FromAddress)),
				ToAddress:   hexToFelt(m.ToAddress),
				Payload:     hexFeltSlice(m.Payload),
			}
		}
		body.Outputs[i] = starknet.TransactionOutput{
			ActualFee:      hexToFelt(r.ActualFee),
			Status:         status,
			RevertReason:   r.RevertReason,
			Events:         events,
			MessagesL2ToL1: msgs,
		}
	}
	return body
}

// ToThinStateDiff converts the gateway's state update into a domain diff.
func (s *GatewayStateUpdate) ToThinStateDiff() starknet.ThinStateDiff {
	d := s.StateDiff
	var out starknet.ThinStateDiff

	for _, c := range d.DeployedContracts {
		out.DeployedContracts = append(out.DeployedContracts, starknet.DeployedContract{
			Address:   starknet.Address(hexToFelt(c.Address)),
			ClassHash: starknet.ClassHash(hexToFelt(c.ClassHash)),
		})
	}
	for _, c := range d.ReplacedClasses {
		out.ReplacedClasses = append(out.ReplacedClasses, starknet.ReplacedClass{
			Address:   starknet.Address(hexToFelt(c.Address)),
			ClassHash: starknet.ClassHash(hexToFelt(c.ClassHash)),
		})
	}
	for _, c := range d.DeclaredClasses {
		out.DeclaredClasses = append(out.DeclaredClasses, starknet.DeclaredClass{
			ClassHash:         starknet.ClassHash(hexToFelt(c.ClassHash)),
			CompiledClassHash: starknet.CompiledClassHash(hexToFelt(c.CompiledClassHash)),
		})
	}
	for _, h := range d.OldDeclaredContracts {
		out.DeprecatedDeclaredClasses = append(out.DeprecatedDeclaredClasses, starknet.ClassHash(hexToFelt(h)))
	}
	for addr, nonce := range d.Nonces {
		out.Nonces = append(out.Nonces, starknet.ContractNonce{
			Address: starknet.Address(hexToFelt(addr)),
			Nonce:   starknet.Nonce(hexToFelt(nonce)),
		})
	}
	for addr, entries := range d.StorageDiffs {
		sd := starknet.ContractStorageDiff{Address: starknet.Address(hexToFelt(addr))}
		for _, e := range entries {
			sd.Entries = append(sd.Entries, starknet.StorageEntry{
				Key:   starknet.StorageKey(hexToFelt(e.Key)),
				Value: hexToFelt(e.Value),
			})
		}
		sort.Slice(sd.Entries, func(i, j int) bool {
			return bytes.Compare(sd.Entries[i].Key[:], sd.Entries[j].Key[:]) < 0
		})
		out.StorageDiffs = append(out.StorageDiffs, sd)
	}

	// Map iteration order is random; the gateway's JSON carries no
	// ordering guarantee either, so fix a deterministic address order
	// here (commitment formulas depend on a stable leaf ordering).
	sort.Slice(out.Nonces, func(i, j int) bool {
		return bytes.Compare(out.Nonces[i].Address[:], out.Nonces[j].Address[:]) < 0
	})
	sort.Slice(out.StorageDiffs, func(i, j int) bool {
		return bytes.Compare(out.StorageDiffs[i].Address[:], out.StorageDiffs[j].Address[:]) < 0
	})
	return out
}

func hexToUint64(s string) uint64 {
	s = trimHexPrefix(s)
	var n uint64
	for i := 0; i < len(s); i++ {
		n = n<<4 | uint64(hexNibble(s[i]))
	}
	return n
}

func convertEntryPoints(by GatewayEntryPointsByType) map[starknet.EntryPointType][]starknet.EntryPoint {
	out := map[starknet.EntryPointType][]starknet.EntryPoint{}
	add := func(t starknet.EntryPointType, eps []GatewayEntryPoint) {
		if len(eps) == 0 {
			return
		}
		list := make([]starknet.EntryPoint, len(eps))
		for i, e := range eps {
			list[i] = starknet.EntryPoint{Selector: hexToFelt(e.Selector), Offset: hexToUint64(e.Offset)}
		}
		out[t] = list
	}
	add(starknet.EntryPointExternal, by.External)
	add(starknet.EntryPointL1Handler, by.L1Handler)
	add(starknet.EntryPointConstructor, by.Constructor)
	return out
}

func convertDeprecatedEntryPoints(by GatewayEntryPointsByType) map[starknet.EntryPointType][]starknet.DeprecatedEntryPoint {
	out := map[starknet.EntryPointType][]starknet.DeprecatedEntryPoint{}
	add := func(t starknet.EntryPointType, eps []GatewayEntryPoint) {
		if len(eps) == 0 {
			return
		}
		list := make([]starknet.DeprecatedEntryPoint, len(eps))
		for i, e := range eps {
			list[i] = starknet.DeprecatedEntryPoint{Selector: hexToFelt(e.Selector), Offset: hexToUint64(e.Offset)}
		}
		out[t] = list
	}
	add(starknet.EntryPointExternal, by.External)
	add(starknet.EntryPointL1Handler, by.L1Handler)
	add(starknet.EntryPointConstructor, by.Constructor)
	return out
}

func convertCompiledEntryPoints(by GatewayCompiledEntryPointsByType) map[starknet.EntryPointType][]starknet.CompiledEntryPoint {
	out := map[starknet.EntryPointType][]starknet.CompiledEntryPoint{}
	add := func(t starknet.EntryPointType, eps []GatewayCompiledEntryPoint) {
		if len(eps) == 0 {
			return
		}
		list := make([]starknet.CompiledEntryPoint, len(eps))
		for i, e := range eps {
			list[i] = starknet.CompiledEntryPoint{
				Selector: hexToFelt(e.Selector),
				Offset:   hexToUint64(e.Offset),
				Builtins: e.Builtins,
			}
		}
		out[t] = list
	}
	add(starknet.EntryPointExternal, by.External)
	add(starknet.EntryPointL1Handler, by.L1Handler)
	add(starknet.EntryPointConstructor, by.Constructor)
	return out
}

// ToContractClass converts a Cairo 1 gateway class response into the
// domain type, tagging it with the class hash and declaration block the
// caller already knows (neither travels in this response body).
func (g *GatewayClass) ToContractClass(hash starknet.ClassHash, declaredAt starknet.BlockNumber) starknet.ContractClass {
	return starknet.ContractClass{
		ClassHash:            hash,
		DeclaredAt:           declaredAt,
		SierraProgram:        hexFeltSlice(g.SierraProgram),
		EntryPoints:          convertEntryPoints(g.EntryPointsByType),
		ContractClassVersion: g.Version,
		ABI:                  g.ABI,
	}
}

// ToDeprecatedContractClass converts a Cairo 0 gateway class response.
func (g *GatewayClass) ToDeprecatedContractClass(hash starknet.ClassHash, declaredAt starknet.BlockNumber) starknet.DeprecatedContractClass {
	return starknet.DeprecatedContractClass{
		ClassHash:   hash,
		DeclaredAt:  declaredAt,
		ProgramJSON: []byte(g.ProgramJSON),
		EntryPoints: convertDeprecatedEntryPoints(g.EntryPointsByType),
		ABI:         g.ABI,
	}
}

// ToCompiledClass converts a gateway CASM response.
func (g *GatewayCompiledClass) ToCompiledClass(hash starknet.ClassHash, compiledAt starknet.BlockNumber) starknet.CompiledClass {
	return starknet.CompiledClass{
		ClassHash:   hash,
		CompiledAt:  compiledAt,
		Bytecode:    hexFeltSlice(g.Bytecode),
		EntryPoints: convertCompiledEntryPoints(g.EntryPointsByType),
		Hints:       []byte(g.Hints),
	}
}
