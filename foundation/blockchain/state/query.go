package state

import (
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/genesis"
)

// Genesis returns a copy of the genesis configuration.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Height returns the index of the latest adopted block, -1 when the chain
// is empty.
func (s *State) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Height()
}

// LatestBlock returns a copy of the adopted tip.
func (s *State) LatestBlock() (database.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.LatestBlock()
}

// RetrieveBlock returns the adopted block at the specified height.
func (s *State) RetrieveBlock(number uint64) (database.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.GetBlock(number)
}

// RetrieveBlockByHash returns the adopted block with the specified hash.
func (s *State) RetrieveBlockByHash(hash string) (database.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.GetBlockByHash(hash)
}

// RetrieveBlocks returns copies of the adopted blocks from the specified
// height to the tip.
func (s *State) RetrieveBlocks(from uint64) []database.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Blocks(from)
}

// Accounts returns a copy of the account set sorted by account id.
func (s *State) Accounts() []database.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.CopyAccounts()
}

// Balance returns the confirmed balance for the specified account.
func (s *State) Balance(accountID database.AccountID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Balance(accountID)
}

// Mempool returns a copy of the pending transaction pool.
func (s *State) Mempool() []database.SignedTx {
	return s.mempool.Copy()
}

// MempoolCount returns the number of pending transactions.
func (s *State) MempoolCount() int {
	return s.mempool.Count()
}
