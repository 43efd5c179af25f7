package starknet

// TransactionType discriminates the tagged union of transaction kinds.
type TransactionType uint8

const (
	TxInvoke TransactionType = iota
	TxDeclare
	TxDeploy
	TxDeployAccount
	TxL1Handler
)

func (t TransactionType) String() string {
	switch t {
	case TxInvoke:
		return "INVOKE"
	case TxDeclare:
		return "DECLARE"
	case TxDeploy:
		return "DEPLOY"
	case TxDeployAccount:
		return "DEPLOY_ACCOUNT"
	case TxL1Handler:
		return "L1_HANDLER"
	default:
		return "UNKNOWN"
	}
}

// ResourceBounds bounds a single resource (L1 gas, L2 gas) for a V3 transaction.
type ResourceBounds struct {
	MaxAmount       uint64
	MaxPricePerUnit Felt
}

// Transaction is the tagged union of the five Starknet transaction kinds.
// Only the fields relevant to the active Type are meaningful; the rest are
// zero-valued. This mirrors the teacher's convention of storing an explicit
// discriminant next to a flat payload rather than a deep type hierarchy
// (see core/types for the EVM analogue).
type Transaction struct {
	Hash    TransactionHash
	Type    TransactionType
	Version uint64

	SenderAddress      Address
	CalldataOrPayload  []Felt
	Signature          []Felt
	MaxFee             Felt
	Nonce              Nonce
	ResourceBounds     []ResourceBounds // V3 only
	Tip                uint64           // V3 only

	// DECLARE
	ClassHash         ClassHash
	CompiledClassHash CompiledClassHash

	// DEPLOY / DEPLOY_ACCOUNT
	ContractAddressSalt Felt
	ConstructorCalldata []Felt

	// L1_HANDLER
	EntryPointSelector Felt
}

// ExecutionStatus is the outcome recorded in a transaction's receipt.
type ExecutionStatus uint8

const (
	ExecutionSucceeded ExecutionStatus = iota
	ExecutionReverted
)

// TransactionOutput is the receipt-shaped companion of a Transaction:
// same index in BlockBody.Outputs as the transaction in BlockBody.Transactions.
type TransactionOutput struct {
	ActualFee       Felt
	Status          ExecutionStatus
	RevertReason    string
	Events          []Event
	MessagesL2ToL1  []MessageToL1
}

// MessageToL1 is an outgoing L2->L1 message produced by a transaction.
type MessageToL1 struct {
	FromAddress Address
	ToAddress   Felt
	Payload     []Felt
}
