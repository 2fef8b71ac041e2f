// Package mempool maintains the pool of signed transactions waiting to be
// mined into a block.
package mempool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/forgeledger/forge/foundation/blockchain/database"
)

// Mempool represents a cache of transactions organized by sender:nonce.
// Everything in the pool has a verified signature, the chain level checks
// happen at block admission.
type Mempool struct {
	mu   sync.RWMutex
	pool map[string]database.SignedTx
}

// New constructs a new mempool for use.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]database.SignedTx),
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the mempool.
func (mp *Mempool) Upsert(tx database.SignedTx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[mapKey(tx)] = tx

	return len(mp.pool)
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.SignedTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, mapKey(tx))
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.SignedTx)
}

// PickBest returns up to howMany transactions in arrival order, oldest
// first with sender and nonce breaking ties so the selection is
// deterministic. Pass -1 for the whole pool.
func (mp *Mempool) PickBest(howMany int) []database.SignedTx {
	mp.mu.RLock()
	trans := make([]database.SignedTx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		trans = append(trans, tx)
	}
	mp.mu.RUnlock()

	sort.Slice(trans, func(i, j int) bool {
		if trans[i].TimeStamp != trans[j].TimeStamp {
			return trans[i].TimeStamp < trans[j].TimeStamp
		}
		if trans[i].Sender != trans[j].Sender {
			return trans[i].Sender < trans[j].Sender
		}
		return trans[i].Nonce < trans[j].Nonce
	})

	if howMany == -1 || howMany > len(trans) {
		howMany = len(trans)
	}

	return trans[:howMany]
}

// Copy returns a copy of every transaction in the pool in selection order.
func (mp *Mempool) Copy() []database.SignedTx {
	return mp.PickBest(-1)
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(tx database.SignedTx) string {
	return fmt.Sprintf("%s:%d", tx.Sender, tx.Nonce)
}
