package state

import (
	"errors"
	"fmt"

	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/pow"
)

// ErrBlockKnown is returned when a block that is already part of the
// adopted chain or a tracked branch is submitted again.
var ErrBlockKnown = errors.New("block already known")

// AppendStatus describes what admitting a block did to the chain.
type AppendStatus int

const (
	// Appended means the block extended the adopted tip.
	Appended AppendStatus = iota + 1

	// Forked means the block was valid but landed on a competing branch
	// that does not carry enough cumulative work to be adopted.
	Forked

	// Reorganized means the block completed a competing branch with
	// strictly greater cumulative work and the chain switched to it.
	Reorganized
)

// String implements the fmt.Stringer interface.
func (as AppendStatus) String() string {
	switch as {
	case Appended:
		return "appended"
	case Forked:
		return "forked"
	case Reorganized:
		return "reorganized"
	}
	return "unknown"
}

// =============================================================================

// AppendBlock takes a sealed block and attempts to admit it to the chain.
// The checks run in order: linkage, proof of work, merkle commitment, then
// transaction validation against the full adopted chain. The first failing
// check determines the error and a rejected block leaves the store in
// exactly its prior state.
func (s *State) AppendBlock(block database.Block) (AppendStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.db.GetBlockByHash(block.BlockHash); exists {
		return 0, ErrBlockKnown
	}
	if _, exists := s.branches[block.BlockHash]; exists {
		return 0, ErrBlockKnown
	}

	latest, hasLatest := s.db.LatestBlock()

	// The common case, the block claims to extend the adopted tip. An
	// empty chain only admits the genesis block this way.
	if !hasLatest || block.Header.PrevBlockHash == latest.BlockHash {
		var prev *database.Block
		if hasLatest {
			prev = &latest
		}

		if err := block.ValidateBlock(prev, s.evHandler); err != nil {
			return 0, err
		}
		if err := s.db.ValidateTransactions(block); err != nil {
			return 0, err
		}
		if err := s.db.ApplyBlock(block); err != nil {
			return 0, err
		}

		s.removeFromMempool(block)
		s.evHandler("state: AppendBlock: blk[%d] %s: appended to tip", block.Number, block.BlockHash)

		return Appended, nil
	}

	return s.appendToBranch(block)
}

// appendToBranch handles a block whose parent is not the adopted tip. The
// block either starts or extends a competing branch, and the branch is
// adopted when its cumulative work strictly exceeds the adopted chain's
// from the fork point forward.
func (s *State) appendToBranch(block database.Block) (AppendStatus, error) {
	prevHash := block.Header.PrevBlockHash

	var branch []database.Block

	switch {
	case len(s.branches[prevHash]) > 0:
		tracked := s.branches[prevHash]
		parent := tracked[len(tracked)-1]
		if err := block.ValidateBlock(&parent, s.evHandler); err != nil {
			return 0, err
		}

		branch = make([]database.Block, 0, len(tracked)+1)
		branch = append(branch, tracked...)
		branch = append(branch, block)
		delete(s.branches, prevHash)

	default:
		parent, exists := s.db.GetBlockByHash(prevHash)
		if !exists {
			return 0, fmt.Errorf("parent block %s is not known: %w", prevHash, database.ErrInvalidLinkage)
		}
		if err := block.ValidateBlock(&parent, s.evHandler); err != nil {
			return 0, err
		}

		branch = []database.Block{block}
	}

	s.branches[block.BlockHash] = branch
	s.evHandler("state: appendToBranch: blk[%d] %s: tracked on branch from height %d", block.Number, block.BlockHash, branch[0].Number)

	// Compare cumulative work from the fork point forward. A tie keeps
	// the currently adopted branch.
	forkPoint := branch[0].Number
	branchWork := pow.CumulativeWork(branch)
	currentWork := pow.CumulativeWork(s.db.Blocks(forkPoint))

	if branchWork.Cmp(currentWork) <= 0 {
		return Forked, nil
	}

	if err := s.reorganize(branch); err != nil {
		delete(s.branches, block.BlockHash)
		return 0, err
	}

	return Reorganized, nil
}

// reorganize replaces the adopted chain's tail with the competing branch.
// The whole resulting chain is revalidated from the fork point (by
// rebuilding from genesis, which proves the fork point context as well)
// before anything is committed. A branch that fails validation aborts the
// switch entirely, the original tip stays adopted.
func (s *State) reorganize(branch []database.Block) error {
	forkPoint := branch[0].Number
	tip := branch[len(branch)-1]

	s.evHandler("state: reorganize: started: fork point[%d] new tip[%s]", forkPoint, tip.BlockHash)
	defer s.evHandler("state: reorganize: completed")

	retained := s.db.Blocks(0)[:forkPoint]

	newChain := make([]database.Block, 0, len(retained)+len(branch))
	newChain = append(newChain, retained...)
	newChain = append(newChain, branch...)

	if _, err := database.Rebuild(s.genesis, newChain, s.evHandler); err != nil {
		return fmt.Errorf("competing branch failed validation: %w", err)
	}

	// Keep the replaced tail as a side branch, it may grow past the new
	// chain later and win the tip back.
	oldTail := s.db.Blocks(forkPoint)
	if len(oldTail) > 0 {
		s.branches[oldTail[len(oldTail)-1].BlockHash] = oldTail
	}
	delete(s.branches, tip.BlockHash)

	if err := s.db.ReplaceChain(newChain); err != nil {
		return err
	}

	for _, block := range branch {
		s.removeFromMempool(block)
	}

	return nil
}

// =============================================================================

// ProcessProposedBlock is the entry point for sealed blocks delivered by
// the feed layer. A competing block must be able to interrupt an in-flight
// local mining attempt, so mining is cancelled before the store mutates
// and signalled to start again afterwards.
func (s *State) ProcessProposedBlock(block database.Block) (AppendStatus, error) {
	s.evHandler("state: ProcessProposedBlock: started: blk[%d] %s", block.Number, block.BlockHash)
	defer s.evHandler("state: ProcessProposedBlock: completed")

	if s.Worker != nil {
		s.Worker.SignalCancelMining()
	}

	status, err := s.AppendBlock(block)
	if err != nil {
		return status, err
	}

	if s.Worker != nil && s.mempool.Count() > 0 {
		s.Worker.SignalStartMining()
	}

	return status, nil
}

// removeFromMempool drops every transaction committed by the block from
// the pending pool.
func (s *State) removeFromMempool(block database.Block) {
	for _, tx := range block.Trans.Values() {
		s.mempool.Delete(tx)
	}
}
