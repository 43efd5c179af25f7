package storage

import (
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

func encodeThinStateDiff(d starknet.ThinStateDiff) []byte {
	var b []byte
	b = append(b, wire.PutUint32(uint32(len(d.DeployedContracts)))...)
	for _, c := range d.DeployedContracts {
		b = append(b, wire.EncodeFelt(c.Address)...)
		b = append(b, wire.EncodeFelt(c.ClassHash)...)
	}
	b = append(b, wire.PutUint32(uint32(len(d.ReplacedClasses)))...)
	for _, c := range d.ReplacedClasses {
		b = append(b, wire.EncodeFelt(c.Address)...)
		b = append(b, wire.EncodeFelt(c.ClassHash)...)
	}
	b = append(b, wire.PutUint32(uint32(len(d.DeclaredClasses)))...)
	for _, c := range d.DeclaredClasses {
		b = append(b, wire.EncodeFelt(c.ClassHash)...)
		b = append(b, wire.EncodeFelt(c.CompiledClassHash)...)
	}
	b = append(b, wire.PutUint32(uint32(len(d.DeprecatedDeclaredClasses)))...)
	for _, h := range d.DeprecatedDeclaredClasses {
		b = append(b, wire.EncodeFelt(h)...)
	}
	b = append(b, wire.PutUint32(uint32(len(d.Nonces)))...)
	for _, n := range d.Nonces {
		b = append(b, wire.EncodeFelt(n.Address)...)
		b = append(b, wire.EncodeFelt(n.Nonce)...)
	}
	b = append(b, wire.PutUint32(uint32(len(d.StorageDiffs)))...)
	for _, sd := range d.StorageDiffs {
		b = append(b, wire.EncodeFelt(sd.Address)...)
		b = append(b, wire.PutUint32(uint32(len(sd.Entries)))...)
		for _, e := range sd.Entries {
			b = append(b, wire.EncodeFelt(e.Key)...)
			b = append(b, wire.EncodeFelt(e.Value)...)
		}
	}
	return b
}

func decodeThinStateDiff(data []byte) (starknet.ThinStateDiff, error) {
	r := &byteReader{b: data}
	var d starknet.ThinStateDiff

	n := r.u32()
	d.DeployedContracts = make([]starknet.DeployedContract, n)
	for i := range d.DeployedContracts {
		d.DeployedContracts[i] = starknet.DeployedContract{
			Address:   starknet.Address(r.felt()),
			ClassHash: starknet.ClassHash(r.felt()),
		}
	}

	n = r.u32()
	d.ReplacedClasses = make([]starknet.ReplacedClass, n)
	for i := range d.ReplacedClasses {
		d.ReplacedClasses[i] = starknet.ReplacedClass{
			Address:   starknet.Address(r.felt()),
			ClassHash: starknet.ClassHash(r.felt()),
		}
	}

	n = r.u32()
	d.DeclaredClasses = make([]starknet.DeclaredClass, n)
	for i := range d.DeclaredClasses {
		d.DeclaredClasses[i] = starknet.DeclaredClass{
			ClassHash:         starknet.ClassHash(r.felt()),
			CompiledClassHash: starknet.CompiledClassHash(r.felt()),
		}
	}

	n = r.u32()
	d.DeprecatedDeclaredClasses = make([]starknet.ClassHash, n)
	for i := range d.DeprecatedDeclaredClasses {
		d.DeprecatedDeclaredClasses[i] = starknet.ClassHash(r.felt())
	}

	n = r.u32()
	d.Nonces = make([]starknet.ContractNonce, n)
	for i := range d.Nonces {
		d.Nonces[i] = starknet.ContractNonce{
			Address: starknet.Address(r.felt()),
			Nonce:   starknet.Nonce(r.felt()),
		}
	}

	n = r.u32()
	d.StorageDiffs = make([]starknet.ContractStorageDiff, n)
	for i := range d.StorageDiffs {
		addr := starknet.Address(r.felt())
		entryCount := r.u32()
		entries := make([]starknet.StorageEntry, entryCount)
		for j := range entries {
			entries[j] = starknet.StorageEntry{
				Key:   starknet.StorageKey(r.felt()),
				Value: r.felt(),
			}
		}
		d.StorageDiffs[i] = starknet.ContractStorageDiff{Address: addr, Entries: entries}
	}

	if r.err != nil {
		return starknet.ThinStateDiff{}, r.err
	}
	return d, nil
}

func encodeEntryPoints(eps map[starknet.EntryPointType][]starknet.EntryPoint) []byte {
	var b []byte
	b = append(b, wire.PutUint32(uint32(len(eps)))...)
	for t, list := range eps {
		b = append(b, byte(t))
		b = append(b, wire.PutUint32(uint32(len(list)))...)
		for _, ep := range list {
			b = append(b, wire.EncodeFelt(ep.Selector)...)
			b = append(b, wire.PutUint64(ep.Offset)...)
		}
	}
	return b
}

func decodeEntryPoints(r *byteReader) map[starknet.EntryPointType][]starknet.EntryPoint {
	n := r.u32()
	out := make(map[starknet.EntryPointType][]starknet.EntryPoint, n)
	for i := uint32(0); i < n; i++ {
		t := starknet.EntryPointType(r.byte())
		count := r.u32()
		list := make([]starknet.EntryPoint, count)
		for j := range list {
			list[j] = starknet.EntryPoint{Selector: r.felt(), Offset: r.u64()}
		}
		out[t] = list
	}
	return out
}

func encodeSierraClass(c starknet.ContractClass) []byte {
	var b []byte
	b = append(b, wire.EncodeFelt(c.ClassHash)...)
	b = append(b, wire.PutUint64(uint64(c.DeclaredAt))...)
	program := encodeFelts(c.SierraProgram)
	b = append(b, wire.PutUint32(uint32(len(program)))...)
	b = append(b, program...)
	eps := encodeEntryPoints(c.EntryPoints)
	b = append(b, wire.PutUint32(uint32(len(eps)))...)
	b = append(b, eps...)
	ver := []byte(c.ContractClassVersion)
	b = append(b, wire.PutUint32(uint32(len(ver)))...)
	b = append(b, ver...)
	abi := []byte(c.ABI)
	b = append(b, wire.PutUint32(uint32(len(abi)))...)
	b = append(b, abi...)
	return b
}

func decodeSierraClass(data []byte) (starknet.ContractClass, error) {
	r := &byteReader{b: data}
	var c starknet.ContractClass
	c.ClassHash = starknet.ClassHash(r.felt())
	c.DeclaredAt = starknet.BlockNumber(r.u64())
	n := r.u32()
	var err error
	c.SierraProgram, err = decodeFelts(r.bytesN(n))
	if err != nil {
		return c, err
	}
	n = r.u32()
	c.EntryPoints = decodeEntryPoints(&byteReader{b: r.bytesN(n)})
	n = r.u32()
	c.ContractClassVersion = string(r.bytesN(n))
	n = r.u32()
	c.ABI = string(r.bytesN(n))
	if r.err != nil {
		return starknet.ContractClass{}, r.err
	}
	return c, nil
}

func encodeDeprecatedClass(c starknet.DeprecatedContractClass) []byte {
	var b []byte
	b = append(b, wire.EncodeFelt(c.ClassHash)...)
	b = append(b, wire.PutUint64(uint64(c.DeclaredAt))...)
	b = append(b, wire.PutUint32(uint32(len(c.ProgramJSON)))...)
	b = append(b, c.ProgramJSON...)
	b = append(b, wire.PutUint32(uint32(len(c.EntryPoints)))...)
	for t, list := range c.EntryPoints {
		b = append(b, byte(t))
		b = append(b, wire.PutUint32(uint32(len(list)))...)
		for _, ep := range list {
			b = append(b, wire.EncodeFelt(ep.Selector)...)
			b = append(b, wire.PutUint64(ep.Offset)...)
		}
	}
	abi := []byte(c.ABI)
	b = append(b, wire.PutUint32(uint32(len(abi)))...)
	b = append(b, abi...)
	return b
}

func decodeDeprecatedClass(data []byte) (starknet.DeprecatedContractClass, error) {
	r := &byteReader{b: data}
	var c starknet.DeprecatedContractClass
	c.ClassHash = starknet.ClassHash(r.felt())
	c.DeclaredAt = starknet.BlockNumber(r.u64())
	n := r.u32()
	c.ProgramJSON = append([]byte{}, r.bytesN(n)...)
	epCount := r.u32()
	c.EntryPoints = make(map[starknet.EntryPointType][]starknet.DeprecatedEntryPoint, epCount)
	for i := uint32(0); i < epCount; i++ {
		t := starknet.EntryPointType(r.byte())
		count := r.u32()
		list := make([]starknet.DeprecatedEntryPoint, count)
		for j := range list {
			list[j] = starknet.DeprecatedEntryPoint{Selector: r.felt(), Offset: r.u64()}
		}
		c.EntryPoints[t] = list
	}
	n = r.u32()
	c.ABI = string(r.bytesN(n))
	if r.err != nil {
		return starknet.DeprecatedContractClass{}, r.err
	}
	return c, nil
}

func encodeCompiledClass(c starknet.CompiledClass) []byte {
	var b []byte
	b = append(b, wire.EncodeFelt(c.ClassHash)...)
	b = append(b, wire.PutUint64(uint64(c.CompiledAt))...)
	bytecode := encodeFelts(c.Bytecode)
	b = append(b, wire.PutUint32(uint32(len(bytecode)))...)
	b = append(b, bytecode...)
	b = append(b, wire.PutUint32(uint32(len(c.EntryPoints)))...)
	for t, list := range c.EntryPoints {
		b = append(b, byte(t))
		b = append(b, wire.PutUint32(uint32(len(list)))...)
		for _, ep := range list {
			b = append(b, wire.EncodeFelt(ep.Selector)...)
			b = append(b, wire.PutUint64(ep.Offset)...)
			b = append(b, wire.PutUint32(uint32(len(ep.Builtins)))...)
			for _, name := range ep.Builtins {
				nb := []byte(name)
				b = append(b, wire.PutUint32(uint32(len(nb)))...)
				b = append(b, nb...)
			}
		}
	}
	b = append(b, wire.PutUint32(uint32(len(c.Hints)))...)
	b = append(b, c.Hints...)
	return b
}

func decodeCompiledClass(data []byte) (starknet.CompiledClass, error) {
	r := &byteReader{b: data}
	var c starknet.CompiledClass
	c.ClassHash = starknet.ClassHash(r.felt())
	c.CompiledAt = starknet.BlockNumber(r.u64())
	n := r.u32()
	var err error
	c.Bytecode, err = decodeFelts(r.bytesN(n))
	if err != nil {
		return c, err
	}
	epCount := r.u32()
	c.EntryPoints = make(map[starknet.EntryPointType][]starknet.CompiledEntryPoint, epCount)
	for i := uint32(0); i < epCount; i++ {
		t := starknet.EntryPointType(r.byte())
		count := r.u32()
		list := make([]starknet.CompiledEntryPoint, count)
		for j := range list {
			selector := r.felt()
			offset := r.u64()
			builtinCount := r.u32()
			builtins := make([]string, builtinCount)
			for k := range builtins {
				bn := r.u32()
				builtins[k] = string(r.bytesN(bn))
			}
			list[j] = starknet.CompiledEntryPoint{Selector: selector, Offset: offset, Builtins: builtins}
		}
		c.EntryPoints[t] = list
	}
	n = r.u32()
	c.Hints = append([]byte{}, r.bytesN(n)...)
	if r.err != nil {
		return starknet.CompiledClass{}, r.err
	}
	return c, nil
}
