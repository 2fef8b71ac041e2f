package state_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/genesis"
	"github.com/forgeledger/forge/foundation/blockchain/merkle"
	"github.com/forgeledger/forge/foundation/blockchain/pow"
	"github.com/forgeledger/forge/foundation/blockchain/signature"
	"github.com/forgeledger/forge/foundation/blockchain/state"
	"github.com/forgeledger/forge/foundation/blockchain/storage/memory"
)

const (
	senderKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	otherKey  = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
)

const recipient = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func noopEv(v string, args ...any) {}

// newTestState constructs a state over memory storage with the sender
// account funded at block zero and the genesis block already mined.
func newTestState(t *testing.T) *state.State {
	t.Helper()

	strg, err := memory.New()
	ifErrFailNow(t, err)

	key, err := crypto.HexToECDSA(senderKey)
	ifErrFailNow(t, err)
	sender := database.PublicKeyToAccountID(key.PublicKey)

	gen := genesis.Genesis{
		Date:          time.Now().UTC(),
		ChainID:       1,
		TransPerBlock: 10,
		Difficulty:    1,
		Balances: map[string]uint64{
			string(sender): 1000,
		},
	}

	st, err := state.New(state.Config{
		Genesis:   gen,
		Storage:   strg,
		EvHandler: noopEv,
	})
	ifErrFailNow(t, err)
	t.Cleanup(func() { st.Shutdown() })

	_, err = st.MineGenesisBlock(context.Background())
	ifErrFailNow(t, err)

	return st
}

// sign constructs and signs a transaction with the specified key.
func sign(t *testing.T, hexKey string, nonce uint64) database.SignedTx {
	t.Helper()

	key, err := crypto.HexToECDSA(hexKey)
	ifErrFailNow(t, err)

	tx, err := database.NewTx(
		database.PublicKeyToAccountID(key.PublicKey),
		recipient,
		100,
		nonce,
		signature.PublicKeyString(&key.PublicKey),
	)
	ifErrFailNow(t, err)

	signedTx, err := tx.Sign(key)
	ifErrFailNow(t, err)

	return signedTx
}

// mineOn seals a block on the specified parent outside the state API. The
// timestamp is caller controlled so competing blocks hash differently.
func mineOn(t *testing.T, prev *database.Block, timestamp uint64, trans []database.SignedTx) database.Block {
	t.Helper()

	candidate, err := database.NewCandidateBlock(prev, 1, timestamp, trans)
	ifErrFailNow(t, err)

	block, err := pow.Mine(context.Background(), candidate, noopEv)
	ifErrFailNow(t, err)

	return block
}

// =============================================================================

func Test_MineGenesisBlock(t *testing.T) {
	st := newTestState(t)

	if h := st.Height(); h != 0 {
		t.Fatalf("Should have height 0 after mining genesis, got %d.", h)
	}

	block, ok := st.LatestBlock()
	if !ok {
		t.Fatal("Should be able to retrieve the genesis block.")
	}

	if block.Number != 0 {
		t.Fatalf("Should have block number 0, got %d.", block.Number)
	}
	if block.Header.PrevBlockHash != signature.ZeroHash {
		t.Fatalf("Should have the zero hash sentinel as previous hash, got %s.", block.Header.PrevBlockHash)
	}
	if block.TransCount != 0 {
		t.Fatalf("Should commit no transactions in the genesis block, got %d.", block.TransCount)
	}
	if !pow.Validate(block) {
		t.Fatal("Should have a genesis block that passes proof of work validation.")
	}
}

func Test_MineBlockWithTransaction(t *testing.T) {
	st := newTestState(t)

	tx := sign(t, senderKey, 1)
	ifErrFailNow(t, st.SubmitTransaction(tx))

	if n := st.MempoolCount(); n != 1 {
		t.Fatalf("Should have 1 transaction in the mempool, got %d.", n)
	}

	block, err := st.MineNewBlock(context.Background())
	ifErrFailNow(t, err)

	if block.Number != 1 {
		t.Fatalf("Should have mined block 1, got %d.", block.Number)
	}
	if h := st.Height(); h != 1 {
		t.Fatalf("Should have height 1, got %d.", h)
	}
	if n := st.MempoolCount(); n != 0 {
		t.Fatalf("Should have an empty mempool after mining, got %d.", n)
	}

	if bal := st.Balance(recipient); bal != 100 {
		t.Fatalf("Should have moved 100 to the recipient, got %d.", bal)
	}
	if bal := st.Balance(tx.Sender); bal != 900 {
		t.Fatalf("Should have debited the sender to 900, got %d.", bal)
	}
}

func Test_MineNewBlockEmptyMempool(t *testing.T) {
	st := newTestState(t)

	if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoTransactions) {
		t.Fatalf("Should reject mining on an empty mempool, got %v.", err)
	}
}

// =============================================================================

func Test_RejectInvalidLinkage(t *testing.T) {
	st := newTestState(t)

	gen, _ := st.LatestBlock()
	block := mineOn(t, &gen, 100, nil)
	block.Header.PrevBlockHash = signature.Hash("nowhere")

	if _, err := st.AppendBlock(block); !errors.Is(err, database.ErrInvalidLinkage) {
		t.Fatalf("Should reject a block with an unknown parent, got %v.", err)
	}
	if h := st.Height(); h != 0 {
		t.Fatalf("Should leave the chain untouched, got height %d.", h)
	}
}

func Test_RejectTamperedTransaction(t *testing.T) {
	st := newTestState(t)

	gen, _ := st.LatestBlock()
	tx := sign(t, senderKey, 1)
	block := mineOn(t, &gen, 100, []database.SignedTx{tx})

	// Inflate the amount after sealing. The header still carries the
	// original merkle root so the commitment no longer matches.
	tampered := tx
	tampered.Amount = 900
	tree, err := merkle.NewTree([]database.SignedTx{tampered})
	ifErrFailNow(t, err)
	block.Trans = tree

	if _, err := st.AppendBlock(block); !errors.Is(err, database.ErrInvalidMerkleRoot) {
		t.Fatalf("Should reject a block whose transactions do not match the merkle root, got %v.", err)
	}
	if h := st.Height(); h != 0 {
		t.Fatalf("Should leave the chain untouched, got height %d.", h)
	}
}

func Test_RejectBadProofOfWork(t *testing.T) {
	st := newTestState(t)

	gen, _ := st.LatestBlock()
	block := mineOn(t, &gen, 100, nil)
	block.Header.Nonce++

	if _, err := st.AppendBlock(block); !errors.Is(err, database.ErrInvalidProofOfWork) {
		t.Fatalf("Should reject a block whose claimed hash does not verify, got %v.", err)
	}
}

func Test_RejectDuplicateNonce(t *testing.T) {
	st := newTestState(t)

	tx := sign(t, senderKey, 1)
	ifErrFailNow(t, st.SubmitTransaction(tx))
	_, err := st.MineNewBlock(context.Background())
	ifErrFailNow(t, err)

	// Resubmitting the committed nonce is rejected at the mempool door.
	if err := st.SubmitTransaction(tx); !errors.Is(err, database.ErrDuplicateTransaction) {
		t.Fatalf("Should reject a committed nonce on submit, got %v.", err)
	}

	// A proposed block replaying the nonce is rejected as well.
	tip, _ := st.LatestBlock()
	block := mineOn(t, &tip, 200, []database.SignedTx{tx})
	if _, err := st.AppendBlock(block); !errors.Is(err, database.ErrDuplicateTransaction) {
		t.Fatalf("Should reject a block replaying a committed nonce, got %v.", err)
	}
}

func Test_NoPartialCommit(t *testing.T) {
	st := newTestState(t)

	gen, _ := st.LatestBlock()
	good := sign(t, senderKey, 1)
	broke := sign(t, otherKey, 1) // unfunded account
	block := mineOn(t, &gen, 100, []database.SignedTx{good, broke})

	if _, err := st.AppendBlock(block); !errors.Is(err, database.ErrInsufficientFunds) {
		t.Fatalf("Should reject a block with an overdrawing transaction, got %v.", err)
	}

	if h := st.Height(); h != 0 {
		t.Fatalf("Should leave the chain untouched, got height %d.", h)
	}
	if bal := st.Balance(good.Sender); bal != 1000 {
		t.Fatalf("Should leave the sender balance untouched, got %d.", bal)
	}
	if bal := st.Balance(recipient); bal != 0 {
		t.Fatalf("Should leave the recipient balance untouched, got %d.", bal)
	}
}

// =============================================================================

func Test_ForkAndReorganize(t *testing.T) {
	st := newTestState(t)
	gen, _ := st.LatestBlock()

	// Adopt block A1 on the tip.
	blockA1 := mineOn(t, &gen, 100, nil)
	status, err := st.AppendBlock(blockA1)
	ifErrFailNow(t, err)
	if status != state.Appended {
		t.Fatalf("Should append A1 to the tip, got %s.", status)
	}

	// A competing block at the same height carries equal work, the
	// adopted branch keeps the tip.
	blockB1 := mineOn(t, &gen, 200, nil)
	status, err = st.AppendBlock(blockB1)
	ifErrFailNow(t, err)
	if status != state.Forked {
		t.Fatalf("Should track B1 as a fork, got %s.", status)
	}

	tip, _ := st.LatestBlock()
	if tip.BlockHash != blockA1.BlockHash {
		t.Fatal("Should keep A1 as the tip on equal work.")
	}

	// Extending the competing branch gives it strictly more work, the
	// chain switches over.
	blockB2 := mineOn(t, &blockB1, 300, nil)
	status, err = st.AppendBlock(blockB2)
	ifErrFailNow(t, err)
	if status != state.Reorganized {
		t.Fatalf("Should reorganize onto the B branch, got %s.", status)
	}

	tip, _ = st.LatestBlock()
	if tip.BlockHash != blockB2.BlockHash {
		t.Fatal("Should have B2 as the tip after the reorganization.")
	}
	if h := st.Height(); h != 2 {
		t.Fatalf("Should have height 2 after the reorganization, got %d.", h)
	}

	blocks := st.RetrieveBlocks(0)
	if blocks[1].BlockHash != blockB1.BlockHash {
		t.Fatal("Should carry B1 at height 1 after the reorganization.")
	}
}

func Test_ReorgReplaysTransactions(t *testing.T) {
	st := newTestState(t)
	gen, _ := st.LatestBlock()

	// The adopted branch commits nonce 1, the competing branch commits
	// nonce 2. After the switch only the competing branch's transaction
	// counts against the sender.
	txA := sign(t, senderKey, 1)
	txB := sign(t, senderKey, 2)

	blockA1 := mineOn(t, &gen, 100, []database.SignedTx{txA})
	_, err := st.AppendBlock(blockA1)
	ifErrFailNow(t, err)

	blockB1 := mineOn(t, &gen, 200, []database.SignedTx{txB})
	_, err = st.AppendBlock(blockB1)
	ifErrFailNow(t, err)

	blockB2 := mineOn(t, &blockB1, 300, nil)
	status, err := st.AppendBlock(blockB2)
	ifErrFailNow(t, err)
	if status != state.Reorganized {
		t.Fatalf("Should reorganize onto the B branch, got %s.", status)
	}

	if bal := st.Balance(txA.Sender); bal != 900 {
		t.Fatalf("Should reflect only the B branch spend, got %d.", bal)
	}
	if used := mempoolNonceUsed(st, txA.Sender, 1); used {
		t.Fatal("Should have released nonce 1 after abandoning the A branch.")
	}
	if used := mempoolNonceUsed(st, txA.Sender, 2); !used {
		t.Fatal("Should have nonce 2 committed on the B branch.")
	}
}

// mempoolNonceUsed reports whether the nonce is committed on the adopted
// chain by scanning the block transactions.
func mempoolNonceUsed(st *state.State, sender database.AccountID, nonce uint64) bool {
	for _, block := range st.RetrieveBlocks(0) {
		for _, tx := range block.Trans.Values() {
			if tx.Sender == sender && tx.Nonce == nonce {
				return true
			}
		}
	}
	return false
}
