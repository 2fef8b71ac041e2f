// Package database handles all the lower level support for maintaining the
// chain of sealed blocks in memory and on storage, and the account view
// derived from it.
package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/forgeledger/forge/foundation/blockchain/genesis"
)

// Storage interface represents the behavior required to be implemented by
// any package providing support for storing and reading the blockchain.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by
// any package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// Database manages the append only sequence of sealed blocks and the
// account information derived from the transactions they carry. All
// mutation flows through validateAndApply so the chain and the account view
// can never drift apart.
type Database struct {
	mu sync.RWMutex

	genesis    genesis.Genesis
	blocks     []Block
	hashIndex  map[string]uint64
	accounts   map[AccountID]Account
	usedNonces map[string]struct{}

	storage Storage
}

// New constructs a new database, applies the genesis balance information
// and replays any blocks found on the storage backend, validating each one.
func New(gen genesis.Genesis, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis:    gen,
		hashIndex:  make(map[string]uint64),
		accounts:   make(map[AccountID]Account),
		usedNonces: make(map[string]struct{}),
		storage:    storage,
	}

	if err := db.seedGenesisBalances(); err != nil {
		return nil, err
	}

	if storage == nil {
		return &db, nil
	}

	iter := storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		if err := db.validateAndApply(block, evHandler); err != nil {
			return nil, fmt.Errorf("stored block %d: %w", block.Number, err)
		}
	}

	return &db, nil
}

// Rebuild constructs a database holding the specified chain of blocks,
// validating every block and transaction from genesis forward. It never
// touches storage, a reorganization uses it to prove a competing branch
// before anything is committed.
func Rebuild(gen genesis.Genesis, blocks []Block, evHandler func(v string, args ...any)) (*Database, error) {
	db, err := New(gen, nil, evHandler)
	if err != nil {
		return nil, err
	}

	for _, block := range blocks {
		if err := db.validateAndApply(block, evHandler); err != nil {
			return nil, fmt.Errorf("block %d: %w", block.Number, err)
		}
	}

	return db, nil
}

// Close closes the underlying storage backend.
func (db *Database) Close() {
	if db.storage != nil {
		db.storage.Close()
	}
}

// =============================================================================

// ValidateTransactions checks every transaction in the block against the
// current adopted chain view: the signature must authenticate the sender,
// the sender/nonce pair must never have been committed before and the
// sender must hold the funds. Nothing is mutated.
func (db *Database) ValidateTransactions(block Block) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	staged := make(map[AccountID]uint64)
	seen := make(map[string]struct{})

	for _, tx := range block.Trans.Values() {
		if err := tx.VerifySignature(); err != nil {
			return err
		}

		key := nonceKey(tx.Sender, tx.Nonce)
		if _, exists := db.usedNonces[key]; exists {
			return fmt.Errorf("transaction %s: %w", tx, ErrDuplicateTransaction)
		}
		if _, exists := seen[key]; exists {
			return fmt.Errorf("transaction %s repeated inside the block: %w", tx, ErrDuplicateTransaction)
		}
		seen[key] = struct{}{}

		// Stage the balance movement so later transactions in the same
		// block see the effect of earlier ones.
		if _, ok := staged[tx.Sender]; !ok {
			staged[tx.Sender] = db.accounts[tx.Sender].Balance
		}
		if _, ok := staged[tx.Recipient]; !ok {
			staged[tx.Recipient] = db.accounts[tx.Recipient].Balance
		}

		if staged[tx.Sender] < tx.Amount {
			return fmt.Errorf("transaction %s: balance %d, needed %d: %w", tx, staged[tx.Sender], tx.Amount, ErrInsufficientFunds)
		}
		staged[tx.Sender] -= tx.Amount
		staged[tx.Recipient] += tx.Amount
	}

	return nil
}

// ApplyBlock commits an already validated block: it is written to storage,
// appended to the chain and its transactions are applied to the accounts.
func (db *Database) ApplyBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.applyBlock(block)
}

// applyBlock expects the caller to hold the write lock.
func (db *Database) applyBlock(block Block) error {
	if db.storage != nil {
		if err := db.storage.Write(NewBlockData(block)); err != nil {
			return err
		}
	}

	for _, tx := range block.Trans.Values() {
		from := db.accounts[tx.Sender]
		to := db.accounts[tx.Recipient]

		from.AccountID = tx.Sender
		to.AccountID = tx.Recipient
		from.Balance -= tx.Amount
		to.Balance += tx.Amount

		db.accounts[tx.Sender] = from
		db.accounts[tx.Recipient] = to

		db.usedNonces[nonceKey(tx.Sender, tx.Nonce)] = struct{}{}
	}

	db.blocks = append(db.blocks, block)
	db.hashIndex[block.BlockHash] = block.Number

	return nil
}

// validateAndApply runs the full admission sequence for the next block.
func (db *Database) validateAndApply(block Block, evHandler func(v string, args ...any)) error {
	var prev *Block
	if latest, ok := db.LatestBlock(); ok {
		prev = &latest
	}

	if err := block.ValidateBlock(prev, evHandler); err != nil {
		return err
	}

	if err := db.ValidateTransactions(block); err != nil {
		return err
	}

	return db.ApplyBlock(block)
}

// ReplaceChain resets the database back to genesis and applies the
// specified blocks as the new adopted chain. The caller must have fully
// validated the blocks, a rebuilt Database does that without touching
// storage.
func (db *Database) ReplaceChain(blocks []Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.storage != nil {
		if err := db.storage.Reset(); err != nil {
			return err
		}
	}

	db.blocks = nil
	db.hashIndex = make(map[string]uint64)
	db.accounts = make(map[AccountID]Account)
	db.usedNonces = make(map[string]struct{})

	if err := db.seedGenesisBalances(); err != nil {
		return err
	}

	for _, block := range blocks {
		if err := db.applyBlock(block); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================

// Height returns the height of the adopted chain, -1 when no genesis block
// was admitted yet.
func (db *Database) Height() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks) - 1
}

// LatestBlock returns the block at the tip of the adopted chain.
func (db *Database) LatestBlock() (Block, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return Block{}, false
	}

	return db.blocks[len(db.blocks)-1], true
}

// GetBlock returns the block at the specified height in the adopted chain.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("block %d does not exist", num)
	}

	return db.blocks[num], nil
}

// GetBlockByHash returns the block with the specified hash if it is part of
// the adopted chain.
func (db *Database) GetBlockByHash(hash string) (Block, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	num, exists := db.hashIndex[hash]
	if !exists {
		return Block{}, false
	}

	return db.blocks[num], true
}

// Blocks returns a copy of the adopted chain from the specified height.
func (db *Database) Blocks(from uint64) []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if from >= uint64(len(db.blocks)) {
		return nil
	}

	blocks := make([]Block, len(db.blocks[from:]))
	copy(blocks, db.blocks[from:])

	return blocks
}

// CopyAccounts makes a copy of the current accounts in the database, sorted
// by account id.
func (db *Database) CopyAccounts() []Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make([]Account, 0, len(db.accounts))
	for _, account := range db.accounts {
		accounts = append(accounts, account)
	}

	sort.Sort(byAccount(accounts))

	return accounts
}

// Balance returns the balance for the specified account.
func (db *Database) Balance(accountID AccountID) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.accounts[accountID].Balance
}

// NonceUsed reports whether the sender/nonce pair was already committed to
// the adopted chain.
func (db *Database) NonceUsed(sender AccountID, nonce uint64) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, exists := db.usedNonces[nonceKey(sender, nonce)]
	return exists
}

// =============================================================================

// seedGenesisBalances credits the accounts funded by the genesis file.
func (db *Database) seedGenesisBalances() error {
	for accountStr, balance := range db.genesis.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return err
		}
		db.accounts[accountID] = newAccount(accountID, balance)
	}

	return nil
}

// nonceKey generates the map key for the committed sender/nonce set.
func nonceKey(sender AccountID, nonce uint64) string {
	return fmt.Sprintf("%s:%d", sender, nonce)
}
