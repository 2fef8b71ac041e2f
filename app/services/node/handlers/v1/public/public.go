// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/forgeledger/forge/business/web/errs"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/state"
	"github.com/forgeledger/forge/foundation/events"
	"github.com/forgeledger/forge/foundation/keystore"
	"github.com/forgeledger/forge/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	KS    *keystore.KeyStore
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitWalletTransaction adds a new signed transaction to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var app submitTx
	if err := web.Decode(r, &app); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}
	signedTx := app.toSignedTx()

	h.Log.Infow("add tran", "traceid", v.TraceID, "sender:nonce", signedTx, "recipient", signedTx.Recipient, "amount", signedTx.Amount)
	if err := h.State.SubmitTransaction(signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.Genesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.Mempool()

	trans := make([]tx, len(mempool))
	for i, tran := range mempool {
		trans[i] = tx{
			Sender:        tran.Sender,
			SenderName:    h.KS.Lookup(tran.Sender),
			Recipient:     tran.Recipient,
			RecipientName: h.KS.Lookup(tran.Recipient),
			Amount:        tran.Amount,
			Nonce:         tran.Nonce,
			TimeStamp:     tran.TimeStamp,
			Signature:     tran.Signature,
			Hash:          tran.HashHex(),
		}
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Accounts returns the current balance for all accounts or the one
// specified in the route.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account := web.Param(r, "account")

	var accounts []database.Account
	switch account {
	case "":
		accounts = h.State.Accounts()

	default:
		accountID, err := database.ToAccountID(account)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		accounts = []database.Account{{AccountID: accountID, Balance: h.State.Balance(accountID)}}
	}

	acts := make([]info, len(accounts))
	for i, account := range accounts {
		acts[i] = info{
			Account: account.AccountID,
			Name:    h.KS.Lookup(account.AccountID),
			Balance: account.Balance,
		}
	}

	var latestHash string
	if latest, ok := h.State.LatestBlock(); ok {
		latestHash = latest.BlockHash
	}

	ai := actInfo{
		LatestBlock: latestHash,
		Height:      h.State.Height(),
		Uncommitted: h.State.MempoolCount(),
		Accounts:    acts,
	}

	return web.Respond(ctx, w, ai, http.StatusOK)
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
	if from > to {
		return errs.NewTrusted(errors.New("from height is greater than to height"), http.StatusBadRequest)
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

// TransactionProof returns a merkle proof of inclusion for the specified
// transaction in the specified block.
func (h Handlers) TransactionProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blockHash := web.Param(r, "block")
	txHash := web.Param(r, "tx")

	block, exists := h.State.RetrieveBlockByHash(blockHash)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("block %q not found", blockHash), http.StatusNotFound)
	}

	for _, tran := range block.Trans.Values() {
		if tran.HashHex() != txHash {
			continue
		}

		merkleProof, order, err := block.Trans.Proof(tran)
		if err != nil {
			return err
		}

		hexProof := make([]string, len(merkleProof))
		for i, p := range merkleProof {
			hexProof[i] = hex.EncodeToString(p)
		}

		resp := proof{
			BlockHash:  block.BlockHash,
			MerkleRoot: block.Header.MerkleRoot,
			TxHash:     txHash,
			Proof:      hexProof,
			ProofOrder: order,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}

	return errs.NewTrusted(fmt.Errorf("transaction %q not found in block %q", txHash, blockHash), http.StatusNotFound)
}
