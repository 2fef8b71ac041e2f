// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/forgeledger/forge/business/web/errs"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/state"
	"github.com/forgeledger/forge/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var latestHash string
	if latest, ok := h.State.LatestBlock(); ok {
		latestHash = latest.BlockHash
	}

	status := struct {
		LatestBlockHash string `json:"latest_block_hash"`
		Height          int    `json:"height"`
		Uncommitted     int    `json:"uncommitted"`
	}{
		LatestBlockHash: latestHash,
		Height:          h.State.Height(),
		Uncommitted:     h.State.MempoolCount(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// BlocksByNumber returns the blocks in the specified range of heights.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	toStr := web.Param(r, "to")

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid from height %q", fromStr), http.StatusBadRequest)
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid to height %q", toStr), http.StatusBadRequest)
	}

	blocks := h.State.RetrieveBlocks(from)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, 0, len(blocks))
	for _, block := range blocks {
		if block.Number > to {
			break
		}
		blockData = append(blockData, database.NewBlockData(block))
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// ProposeBlock takes a sealed block from another node and attempts to admit
// it to the chain.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	block, err := database.ToBlock(blockData)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	status, err := h.State.ProcessProposedBlock(block)
	if err != nil {
		h.Log.Infow("rejected block", "traceid", v.TraceID, "block", block.BlockHash, "ERROR", err)

		switch {
		case errors.Is(err, state.ErrBlockKnown):
			return errs.NewTrusted(err, http.StatusConflict)
		case errors.Is(err, database.ErrInvalidLinkage),
			errors.Is(err, database.ErrInvalidProofOfWork),
			errors.Is(err, database.ErrInvalidMerkleRoot),
			errors.Is(err, database.ErrInvalidSignature),
			errors.Is(err, database.ErrDuplicateTransaction),
			errors.Is(err, database.ErrInsufficientFunds):
			return errs.NewTrusted(err, http.StatusBadRequest)
		}

		return err
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: status.String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
