// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"sync"

	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/genesis"
	"github.com/forgeledger/forge/foundation/blockchain/mempool"
)

// EventHandler defines a function that is called when events occur in the
// processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
}

// =============================================================================

// Config represents the configuration required to start the chain state.
type Config struct {
	Genesis   genesis.Genesis
	Storage   database.Storage
	EvHandler EventHandler
}

// State manages the blockchain database, the mempool and the competing
// branches observed for the chain. It is the only piece of mutable shared
// state in the system: chain mutation is serialized through its mutex,
// reads go to the database's immutable sealed blocks.
type State struct {
	mu        sync.Mutex
	evHandler EventHandler

	genesis  genesis.Genesis
	mempool  *mempool.Mempool
	db       *database.Database
	branches map[string][]database.Block // competing branches keyed by their tip hash,
	// each holding the blocks from its fork point in height order.

	// Worker is not set here. The call to worker.Run assigns itself and
	// starts the mining goroutine.
	Worker Worker
}

// New constructs the chain state from the genesis configuration and a
// storage backend, replaying and validating any persisted blocks.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	state := State{
		evHandler: ev,
		genesis:   cfg.Genesis,
		mempool:   mempool.New(),
		db:        db,
		branches:  make(map[string][]database.Block),
	}

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {

	// Make sure the database is properly closed.
	defer s.db.Close()

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}
