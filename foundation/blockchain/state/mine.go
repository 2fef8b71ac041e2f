package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/pow"
)

// ErrNoTransactions is returned when a mining attempt is requested and the
// mempool has nothing to commit.
var ErrNoTransactions = errors.New("no transactions in mempool")

// MineNewBlock pulls the best transactions out of the mempool, assembles a
// candidate block on the current tip and mines it. The sealed block is run
// through the same admission path as blocks received from peers.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	defer s.evHandler("state: MineNewBlock: completed")

	s.mu.Lock()
	if s.mempool.Count() == 0 {
		s.mu.Unlock()
		return database.Block{}, ErrNoTransactions
	}

	trans := s.mempool.PickBest(int(s.genesis.TransPerBlock))

	latest, hasLatest := s.db.LatestBlock()
	var prev *database.Block
	if hasLatest {
		prev = &latest
	}
	s.mu.Unlock()

	candidate, err := database.NewCandidateBlock(prev, s.genesis.Difficulty, uint64(time.Now().UTC().Unix()), trans)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: mining: blk[%d] txs[%d] difficulty[%d]", candidate.Number, candidate.TransCount, candidate.Header.Difficulty)

	block, err := pow.Mine(ctx, candidate, s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	if _, err := s.AppendBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// MineGenesisBlock mines block zero for an empty chain. The genesis block
// commits no transactions, its previous hash is the zero sentinel and its
// merkle root is the empty root.
func (s *State) MineGenesisBlock(ctx context.Context) (database.Block, error) {
	defer s.evHandler("state: MineGenesisBlock: completed")

	s.mu.Lock()
	if s.db.Height() >= 0 {
		s.mu.Unlock()
		return database.Block{}, errors.New("chain already has a genesis block")
	}
	s.mu.Unlock()

	candidate, err := database.NewCandidateBlock(nil, s.genesis.Difficulty, uint64(time.Now().UTC().Unix()), nil)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineGenesisBlock: mining: difficulty[%d]", candidate.Header.Difficulty)

	block, err := pow.Mine(ctx, candidate, s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	if _, err := s.AppendBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// =============================================================================

// SubmitTransaction accepts a signed transaction into the mempool after
// checking its signature and that the sender's nonce has not already been
// committed. Admission into the pool signals the worker to start mining.
func (s *State) SubmitTransaction(signedTx database.SignedTx) error {
	s.evHandler("state: SubmitTransaction: started: tx[%s]", signedTx)
	defer s.evHandler("state: SubmitTransaction: completed")

	if err := signedTx.Validate(); err != nil {
		return err
	}
	if err := signedTx.VerifySignature(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.db.NonceUsed(signedTx.Sender, signedTx.Nonce) {
		s.mu.Unlock()
		return fmt.Errorf("nonce %d already committed for sender %s: %w", signedTx.Nonce, signedTx.Sender, database.ErrDuplicateTransaction)
	}
	n := s.mempool.Upsert(signedTx)
	s.mu.Unlock()

	s.evHandler("state: SubmitTransaction: mempool[%d]", n)

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}
