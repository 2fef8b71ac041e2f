// Package pow implements the proof of work engine: sealing a candidate
// block by finding a nonce whose header hash meets the difficulty target,
// and revalidating sealed blocks.
package pow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"runtime"
	"sync"

	"github.com/forgeledger/forge/foundation/blockchain/database"
)

// ErrCancelled is returned when mining is cooperatively cancelled. It is a
// normal outcome, not a failure: no block was produced and no state was
// left behind.
var ErrCancelled = errors.New("mining cancelled")

// cancelCheckInterval is the number of nonce attempts between checks of the
// cancellation signal.
const cancelCheckInterval = 4096

// =============================================================================

// Mine seals the candidate block by searching for a nonce whose header hash
// meets the block's difficulty. The nonce space is partitioned across one
// worker per CPU and the workers race, first solution wins and the rest are
// told to stop. Cancelling the context aborts the search promptly and
// returns ErrCancelled.
func Mine(ctx context.Context, block database.Block, evHandler func(v string, args ...any)) (database.Block, error) {
	evHandler("pow: Mine: MINING: started: blk[%d] difficulty[%d]", block.Number, block.Header.Difficulty)
	defer evHandler("pow: Mine: MINING: completed")

	workers := runtime.GOMAXPROCS(0)
	span := math.MaxUint64 / uint64(workers)

	found := make(chan database.Block, workers)
	quit := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		minBound := uint64(i) * span
		maxBound := minBound + span - 1
		if i == workers-1 {
			maxBound = math.MaxUint64
		}

		// Each worker owns its copy of the candidate, the caller's block
		// is never touched.
		go func(b database.Block, minBound, maxBound uint64) {
			defer wg.Done()
			search(ctx, quit, b, minBound, maxBound, found, evHandler)
		}(block, minBound, maxBound)
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	sealed, ok := <-found
	if !ok {
		if ctx.Err() != nil {
			evHandler("pow: Mine: MINING: CANCELLED")
			return database.Block{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return database.Block{}, errors.New("nonce space exhausted")
	}

	// Stop the remaining workers and join them before handing the
	// sealed block back.
	close(quit)
	for range found {
	}

	evHandler("pow: Mine: MINING: SOLVED: prevBlk[%s] newBlk[%s] nonce[%d]", sealed.Header.PrevBlockHash, sealed.BlockHash, sealed.Header.Nonce)

	return sealed, nil
}

// search iterates the assigned slice of the nonce space until a solution is
// found, the space is exhausted, or a stop is signalled.
func search(ctx context.Context, quit chan struct{}, b database.Block, minBound, maxBound uint64, found chan<- database.Block, evHandler func(v string, args ...any)) {
	var attempts uint64

	for nonce := minBound; ; nonce++ {
		attempts++
		if attempts%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			default:
			}
		}
		if attempts%1_000_000 == 0 {
			evHandler("pow: search: MINING: attempts[%d]", attempts)
		}

		b.Header.Nonce = nonce
		if database.HashMeetsDifficulty(b.Hash(), b.Header.Difficulty) {
			b.Seal()

			// The channel is buffered one slot per worker so a late
			// second solution never blocks.
			found <- b
			return
		}

		if nonce == maxBound {
			return
		}
	}
}

// =============================================================================

// Validate reports whether the sealed block's claimed hash is the true hash
// of its own header and meets the declared difficulty. Pure and side effect
// free, used by the engine after mining and by the chain store on every
// inbound block.
func Validate(block database.Block) bool {
	hash := block.Hash()
	return hash == block.BlockHash && database.HashMeetsDifficulty(hash, block.Header.Difficulty)
}

// CumulativeWork sums the work represented by each block, 2^difficulty per
// block. Branch choice adopts the branch with strictly greater total.
func CumulativeWork(blocks []database.Block) *big.Int {
	total := big.NewInt(0)
	for _, block := range blocks {
		total.Add(total, database.BlockWork(block.Header.Difficulty))
	}

	return total
}
