package storage

import (
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// Every record type is encoded as a flat sequence of fixed-width and
// length-prefixed fields, matching the teacher's hand-rolled table codecs
// (erigon-lib/kv stores most values as packed big-endian structs rather
// than reaching for a generic marshaler). This keeps every persisted
// shape in this package auditable by inspection rather than hidden behind
// reflection.

func encodeHeader(h starknet.BlockHeader) []byte {
	var b []byte
	b = append(b, wire.PutUint64(uint64(h.BlockNumber))...)
	b = append(b, wire.EncodeFelt(h.BlockHash)...)
	b = append(b, wire.EncodeFelt(h.ParentHash)...)
	b = append(b, wire.EncodeFelt(h.SequencerAddress)...)
	b = append(b, wire.EncodeFelt(h.StateRoot)...)
	b = append(b, wire.PutUint64(h.Timestamp)...)
	b = append(b, wire.EncodeFelt(h.L1GasPrice.PriceInWei)...)
	b = append(b, wire.EncodeFelt(h.L1GasPrice.PriceInFri)...)
	b = append(b, wire.EncodeFelt(h.L1DataGasPrice.PriceInWei)...)
	b = append(b, wire.EncodeFelt(h.L1DataGasPrice.PriceInFri)...)
	b = append(b, byte(h.L1DAMode))
	b = append(b, wire.EncodeFelt(h.Commitments.TransactionCommitment)...)
	b = append(b, wire.EncodeFelt(h.Commitments.EventCommitment)...)
	b = append(b, wire.EncodeFelt(h.Commitments.StateDiffCommitment)...)
	b = append(b, wire.EncodeFelt(h.Commitments.ReceiptCommitment)...)
	ver := []byte(h.StarknetVersion)
	b = append(b, wire.PutUint32(uint32(len(ver)))...)
	b = append(b, ver...)
	return b
}

type byteReader struct {
	b   []byte
	err error
}

func (r *byteReader) felt() (f [32]byte) {
	if r.err != nil {
		return
	}
	n := feltEncodedLen(r.b)
	if n < 0 {
		r.err = fmt.Errorf("storage: truncated felt")
		return
	}
	f, r.err = wire.DecodeFelt(r.b[:n])
	r.b = r.b[n:]
	return
}

func feltEncodedLen(b []byte) int {
	if len(b) == 0 {
		return -1
	}
	lead := int(b[0])
	if lead > 32 {
		return -1
	}
	n := 1 + (32 - lead)
	if len(b) < n {
		return -1
	}
	return n
}

func (r *byteReader) u64() (v uint64) {
	if r.err != nil {
		return
	}
	if len(r.b) < 8 {
		r.err = fmt.Errorf("storage: truncated uint64")
		return
	}
	v, r.err = wire.Uint64(r.b[:8])
	r.b = r.b[8:]
	return
}

func (r *byteReader) u32() (v uint32) {
	if r.err != nil {
		return
	}
	if len(r.b) < 4 {
		r.err = fmt.Errorf("storage: truncated uint32")
		return
	}
	v, r.err = wire.Uint32(r.b[:4])
	r.b = r.b[4:]
	return
}

func (r *byteReader) byte() (v byte) {
	if r.err != nil {
		return
	}
	if len(r.b) < 1 {
		r.err = fmt.Errorf("storage: truncated byte")
		return
	}
	v = r.b[0]
	r.b = r.b[1:]
	return
}

func (r *byteReader) bytesN(n uint32) []byte {
	if r.err != nil {
		return nil
	}
	if uint32(len(r.b)) < n {
		r.err = fmt.Errorf("storage: truncated bytes")
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func decodeHeader(data []byte) (starknet.BlockHeader, error) {
	r := &byteReader{b: data}
	var h starknet.BlockHeader
	h.BlockNumber = starknet.BlockNumber(r.u64())
	h.BlockHash = r.felt()
	h.ParentHash = starknet.BlockHash(r.felt())
	h.SequencerAddress = starknet.Address(r.felt())
	h.StateRoot = r.felt()
	h.Timestamp = r.u64()
	h.L1GasPrice.PriceInWei = r.felt()
	h.L1GasPrice.PriceInFri = r.felt()
	h.L1DataGasPrice.PriceInWei = r.felt()
	h.L1DataGasPrice.PriceInFri = r.felt()
	h.L1DAMode = starknet.L1DAMode(r.byte())
	h.Commitments.TransactionCommitment = r.felt()
	h.Commitments.EventCommitment = r.felt()
	h.Commitments.StateDiffCommitment = r.felt()
	h.Commitments.ReceiptCommitment = r.felt()
	verLen := r.u32()
	h.StarknetVersion = string(r.bytesN(verLen))
	if r.err != nil {
		return starknet.BlockHeader{}, r.err
	}
	return h, nil
}

func encodeFelts(fs []starknet.Felt) []byte {
	raw := make([][32]byte, len(fs))
	for i, f := range fs {
		raw[i] = f
	}
	return wire.EncodeFeltSlice(raw)
}

func decodeFelts(b []byte) ([]starknet.Felt, error) {
	raw, err := wire.DecodeFeltSlice(b)
	if err != nil {
		return nil, err
	}
	out := make([]starknet.Felt, len(raw))
	for i, f := range raw {
		out[i] = f
	}
	return out, nil
}

func encodeTransaction(tx starknet.Transaction) []byte {
	var b []byte
	b = append(b, wire.EncodeFelt(tx.Hash)...)
	b = append(b, byte(tx.Type))
	b = append(b, wire.PutUint64(tx.Version)...)
	b = append(b, wire.EncodeFelt(tx.SenderAddress)...)
	calldata := encodeFelts(tx.CalldataOrPayload)
	b = append(b, wire.PutUint32(uint32(len(calldata)))...)
	b = append(b, calldata...)
	sig := encodeFelts(tx.Signature)
	b = append(b, wire.PutUint32(uint32(len(sig)))...)
	b = append(b, sig...)
	b = append(b, wire.EncodeFelt(tx.MaxFee)...)
	b = append(b, wire.EncodeFelt(tx.Nonce)...)
	b = append(b, wire.PutUint32(uint32(len(tx.ResourceBounds)))...)
	for _, rb := range tx.ResourceBounds {
		b = append(b, wire.PutUint64(rb.MaxAmount)...)
		b = append(b, wire.EncodeFelt(rb.MaxPricePerUnit)...)
	}
	b = append(b, wire.PutUint64(tx.Tip)...)
	b = append(b, wire.EncodeFelt(tx.ClassHash)...)
	b = append(b, wire.EncodeFelt(tx.CompiledClassHash)...)
	b = append(b, wire.EncodeFelt(tx.ContractAddressSalt)...)
	ctorCalldata := encodeFelts(tx.ConstructorCalldata)
	b = append(b, wire.PutUint32(uint32(len(ctorCalldata)))...)
	b = append(b, ctorCalldata...)
	b = append(b, wire.EncodeFelt(tx.EntryPointSelector)...)
	return b
}

func decodeTransaction(data []byte) (starknet.Transaction, error) {
	r := &byteReader{b: data}
	var tx starknet.Transaction
	tx.Hash = starknet.TransactionHash(r.felt())
	tx.Type = starknet.TransactionType(r.byte())
	tx.Version = r.u64()
	tx.SenderAddress = starknet.Address(r.felt())
	n := r.u32()
	var err error
	tx.CalldataOrPayload, err = decodeFelts(r.bytesN(n))
	if err != nil {
		return tx, err
	}
	n = r.u32()
	tx.Signature, err = decodeFelts(r.bytesN(n))
	if err != nil {
		return tx, err
	}
	tx.MaxFee = r.felt()
	tx.Nonce = starknet.Nonce(r.felt())
	rbCount := r.u32()
	tx.ResourceBounds = make([]starknet.ResourceBounds, rbCount)
	for i := range tx.ResourceBounds {
		tx.ResourceBounds[i].MaxAmount = r.u64()
		tx.ResourceBounds[i].MaxPricePerUnit = r.felt()
	}
	tx.Tip = r.u64()
	tx.ClassHash = starknet.ClassHash(r.felt())
	tx.CompiledClassHash = starknet.CompiledClassHash(r.felt())
	tx.ContractAddressSalt = r.felt()
	n = r.u32()
	tx.ConstructorCalldata, err = decodeFelts(r.bytesN(n))
	if err != nil {
		return tx, err
	}
	tx.EntryPointSelector = r.felt()
	if r.err != nil {
		return starknet.Transaction{}, r.err
	}
	return tx, nil
}

func encodeEvent(ev starknet.Event) []byte {
	var b []byte
	b = append(b, wire.EncodeFelt(ev.FromAddress)...)
	keys := encodeFelts(ev.Keys)
	b = append(b, wire.PutUint32(uint32(len(keys)))...)
	b = append(b, keys...)
	data := encodeFelts(ev.Data)
	b = append(b, wire.PutUint32(uint32(len(data)))...)
	b = append(b, data...)
	return b
}

func decodeEvent(r *byteReader) (starknet.Event, error) {
	var ev starknet.Event
	ev.FromAddress = starknet.Address(r.felt())
	n := r.u32()
	var err error
	ev.Keys, err = decodeFelts(r.bytesN(n))
	if err != nil {
		return ev, err
	}
	n = r.u32()
	ev.Data, err = decodeFelts(r.bytesN(n))
	return ev, err
}

func encodeOutput(out starknet.TransactionOutput) []byte {
	var b []byte
	b = append(b, wire.EncodeFelt(out.ActualFee)...)
	b = append(b, byte(out.Status))
	reason := []byte(out.RevertReason)
	b = append(b, wire.PutUint32(uint32(len(reason)))...)
	b = append(b, reason...)
	b = append(b, wire.PutUint32(uint32(len(out.Events)))...)
	for _, ev := range out.Events {
		enc := encodeEvent(ev)
		b = append(b, wire.PutUint32(uint32(len(enc)))...)
		b = append(b, enc...)
	}
	b = append(b, wire.PutUint32(uint32(len(out.MessagesL2ToL1)))...)
	for _, m := range out.MessagesL2ToL1 {
		b = append(b, wire.EncodeFelt(m.FromAddress)...)
		b = append(b, wire.EncodeFelt(m.ToAddress)...)
		payload := encodeFelts(m.Payload)
		b = append(b, wire.PutUint32(uint32(len(payload)))...)
		b = append(b, payload...)
	}
	return b
}

func decodeOutput(data []byte) (starknet.TransactionOutput, error) {
	r := &byteReader{b: data}
	var out starknet.TransactionOutput
	out.ActualFee = r.felt()
	out.Status = starknet.ExecutionStatus(r.byte())
	n := r.u32()
	out.RevertReason = string(r.bytesN(n))
	evCount := r.u32()
	out.Events = make([]starknet.Event, evCount)
	for i := range out.Events {
		evLen := r.u32()
		evR := &byteReader{b: r.bytesN(evLen)}
		ev, err := decodeEvent(evR)
		if err != nil {
			return out, err
		}
		out.Events[i] = ev
	}
	msgCount := r.u32()
	out.MessagesL2ToL1 = make([]starknet.MessageToL1, msgCount)
	for i := range out.MessagesL2ToL1 {
		out.MessagesL2ToL1[i].FromAddress = starknet.Address(r.felt())
		out.MessagesL2ToL1[i].ToAddress = r.felt()
		n := r.u32()
		payload, err := decodeFelts(r.bytesN(n))
		if err != nil {
			return out, err
		}
		out.MessagesL2ToL1[i].Payload = payload
	}
	if r.err != nil {
		return starknet.TransactionOutput{}, r.err
	}
	return out, nil
}
