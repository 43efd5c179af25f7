package sync

import (
	"context"
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/central"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
	"github.com/starkware-libs/papyrus-sub004/pkg/storage"
)

// commitClasses fetches and writes every class a state diff newly
// declares at block n: Sierra classes and their CASM compilation for
// Cairo 1 declarations, and the class body alone for Cairo 0
// declarations (the original gateway never separately compiles those).
// A class hash the diff only replaces or deploys against (not a fresh
// DeclaredClasses/DeprecatedDeclaredClasses entry) is assumed already
// present from an earlier declaration and is not re-fetched.
func (l *Loop) commitClasses(ctx context.Context, w *storage.Writer, n starknet.BlockNumber, diff starknet.ThinStateDiff) error {
	for _, d := range diff.DeclaredClasses {
		if err := l.declareCairo1(ctx, w, n, d.ClassHash); err != nil {
			return err
		}
	}
	for _, hash := range diff.DeprecatedDeclaredClasses {
		if err := l.declareCairo0(ctx, w, n, hash); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) declareCairo1(ctx context.Context, w *storage.Writer, n starknet.BlockNumber, hash starknet.ClassHash) error {
	gc, err := l.client.GetClassByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("sync: fetching class %x: %w", hash, err)
	}
	if len(gc.SierraProgram) == 0 {
		return l.declareCairo0Body(w, n, hash, gc)
	}
	if err := w.AppendSierraClass(gc.ToContractClass(hash, n)); err != nil {
		return fmt.Errorf("sync: storing class %x: %w", hash, err)
	}

	casm, err := l.client.GetCompiledClassByClassHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("sync: fetching compiled class %x: %w", hash, err)
	}
	if err := w.AppendCompiledClass(casm.ToCompiledClass(hash, n)); err != nil {
		return fmt.Errorf("sync: storing compiled class %x: %w", hash, err)
	}
	return nil
}

func (l *Loop) declareCairo0(ctx context.Context, w *storage.Writer, n starknet.BlockNumber, hash starknet.ClassHash) error {
	gc, err := l.client.GetClassByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("sync: fetching deprecated class %x: %w", hash, err)
	}
	return l.declareCairo0Body(w, n, hash, gc)
}

func (l *Loop) declareCairo0Body(w *storage.Writer, n starknet.BlockNumber, hash starknet.ClassHash, gc interface {
	ToDeprecatedContractClass(starknet.ClassHash, starknet.BlockNumber) starknet.DeprecatedContractClass
}) error {
	if err := w.AppendDeprecatedClass(gc.ToDeprecatedContractClass(hash, n)); err != nil {
		return fmt.Errorf("sync: storing deprecated class %x: %w", hash, err)
	}
	return nil
}
