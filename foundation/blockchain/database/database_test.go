package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/genesis"
	"github.com/forgeledger/forge/foundation/blockchain/pow"
	"github.com/forgeledger/forge/foundation/blockchain/signature"
)

const (
	senderKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	otherKey  = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
)

const recipient = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")

func noopEv(v string, args ...any) {}

func sign(t *testing.T, hexKey string, amount uint64, nonce uint64) database.SignedTx {
	t.Helper()

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to parse the private key: %s", err)
	}

	tx, err := database.NewTx(
		database.PublicKeyToAccountID(key.PublicKey),
		recipient,
		amount,
		nonce,
		signature.PublicKeyString(&key.PublicKey),
	)
	if err != nil {
		t.Fatalf("Should be able to construct a transaction: %s", err)
	}

	signedTx, err := tx.Sign(key)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	return signedTx
}

func mine(t *testing.T, prev *database.Block, timestamp uint64, trans []database.SignedTx) database.Block {
	t.Helper()

	candidate, err := database.NewCandidateBlock(prev, 1, timestamp, trans)
	if err != nil {
		t.Fatalf("Should be able to construct a candidate block: %s", err)
	}

	block, err := pow.Mine(context.Background(), candidate, noopEv)
	if err != nil {
		t.Fatalf("Should be able to mine the block: %s", err)
	}

	return block
}

func senderAccount(t *testing.T) database.AccountID {
	t.Helper()

	key, err := crypto.HexToECDSA(senderKey)
	if err != nil {
		t.Fatalf("Should be able to parse the private key: %s", err)
	}

	return database.PublicKeyToAccountID(key.PublicKey)
}

// =============================================================================

func Test_RebuildAppliesBalances(t *testing.T) {
	sender := senderAccount(t)
	gen := genesis.Genesis{
		Difficulty: 1,
		Balances:   map[string]uint64{string(sender): 1000},
	}

	block0 := mine(t, nil, 1, nil)
	block1 := mine(t, &block0, 2, []database.SignedTx{sign(t, senderKey, 300, 1)})

	db, err := database.Rebuild(gen, []database.Block{block0, block1}, noopEv)
	if err != nil {
		t.Fatalf("Should be able to rebuild the chain: %s", err)
	}

	if h := db.Height(); h != 1 {
		t.Fatalf("Should have height 1, got %d.", h)
	}
	if bal := db.Balance(sender); bal != 700 {
		t.Fatalf("Should have debited the sender to 700, got %d.", bal)
	}
	if bal := db.Balance(recipient); bal != 300 {
		t.Fatalf("Should have credited the recipient with 300, got %d.", bal)
	}
	if !db.NonceUsed(sender, 1) {
		t.Fatal("Should have recorded the sender nonce as committed.")
	}
}

func Test_ValidateTransactionsChecks(t *testing.T) {
	sender := senderAccount(t)
	gen := genesis.Genesis{
		Difficulty: 1,
		Balances:   map[string]uint64{string(sender): 1000},
	}

	block0 := mine(t, nil, 1, nil)

	t.Run("duplicate nonce in block", func(t *testing.T) {
		db, err := database.Rebuild(gen, []database.Block{block0}, noopEv)
		if err != nil {
			t.Fatalf("Should be able to rebuild the chain: %s", err)
		}

		tx := sign(t, senderKey, 100, 1)
		block := mine(t, &block0, 2, []database.SignedTx{tx, tx})
		if err := db.ValidateTransactions(block); !errors.Is(err, database.ErrDuplicateTransaction) {
			t.Fatalf("Should reject a repeated nonce inside the block, got %v.", err)
		}
	})

	t.Run("committed nonce", func(t *testing.T) {
		tx := sign(t, senderKey, 100, 1)
		block1 := mine(t, &block0, 2, []database.SignedTx{tx})

		db, err := database.Rebuild(gen, []database.Block{block0, block1}, noopEv)
		if err != nil {
			t.Fatalf("Should be able to rebuild the chain: %s", err)
		}

		replay := mine(t, &block1, 3, []database.SignedTx{tx})
		if err := db.ValidateTransactions(replay); !errors.Is(err, database.ErrDuplicateTransaction) {
			t.Fatalf("Should reject a committed nonce, got %v.", err)
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		db, err := database.Rebuild(gen, []database.Block{block0}, noopEv)
		if err != nil {
			t.Fatalf("Should be able to rebuild the chain: %s", err)
		}

		// The account signing with otherKey is not funded at genesis.
		block := mine(t, &block0, 2, []database.SignedTx{sign(t, otherKey, 100, 1)})
		if err := db.ValidateTransactions(block); !errors.Is(err, database.ErrInsufficientFunds) {
			t.Fatalf("Should reject an overdrawing transaction, got %v.", err)
		}
	})

	t.Run("staged balances within block", func(t *testing.T) {
		db, err := database.Rebuild(gen, []database.Block{block0}, noopEv)
		if err != nil {
			t.Fatalf("Should be able to rebuild the chain: %s", err)
		}

		// Individually affordable, together they overdraw.
		trans := []database.SignedTx{
			sign(t, senderKey, 600, 1),
			sign(t, senderKey, 600, 2),
		}
		block := mine(t, &block0, 2, trans)
		if err := db.ValidateTransactions(block); !errors.Is(err, database.ErrInsufficientFunds) {
			t.Fatalf("Should stage balances across the block, got %v.", err)
		}
	})
}

func Test_ValidateBlockChecks(t *testing.T) {
	block0 := mine(t, nil, 1, nil)

	t.Run("genesis linkage", func(t *testing.T) {
		if err := block0.ValidateBlock(nil, noopEv); err != nil {
			t.Fatalf("Should accept a mined genesis block, got %v.", err)
		}

		bad := block0
		bad.Number = 5
		if err := bad.ValidateBlock(nil, noopEv); !errors.Is(err, database.ErrInvalidLinkage) {
			t.Fatalf("Should reject a genesis block with a non zero height, got %v.", err)
		}
	})

	t.Run("parent hash linkage", func(t *testing.T) {
		block1 := mine(t, &block0, 2, nil)
		if err := block1.ValidateBlock(&block0, noopEv); err != nil {
			t.Fatalf("Should accept a block mined on its parent, got %v.", err)
		}

		bad := block1
		bad.Header.PrevBlockHash = signature.Hash("nowhere")
		if err := bad.ValidateBlock(&block0, noopEv); !errors.Is(err, database.ErrInvalidLinkage) {
			t.Fatalf("Should reject a mismatched parent hash, got %v.", err)
		}
	})

	t.Run("proof of work", func(t *testing.T) {
		block1 := mine(t, &block0, 2, nil)
		bad := block1
		bad.Header.Nonce++
		if err := bad.ValidateBlock(&block0, noopEv); !errors.Is(err, database.ErrInvalidProofOfWork) {
			t.Fatalf("Should reject a block whose claimed hash does not verify, got %v.", err)
		}
	})
}

func Test_BlockDataRoundTrip(t *testing.T) {
	tx := sign(t, senderKey, 100, 1)
	block := mine(t, nil, 1, []database.SignedTx{tx})

	blockData := database.NewBlockData(block)
	back, err := database.ToBlock(blockData)
	if err != nil {
		t.Fatalf("Should be able to convert block data back to a block: %s", err)
	}

	if back.BlockHash != block.BlockHash {
		t.Fatalf("Should preserve the block hash, got %s exp %s.", back.BlockHash, block.BlockHash)
	}
	if back.Header.MerkleRoot != block.Header.MerkleRoot {
		t.Fatalf("Should preserve the merkle root, got %s exp %s.", back.Header.MerkleRoot, block.Header.MerkleRoot)
	}
	if len(back.Trans.Values()) != 1 {
		t.Fatalf("Should carry the transactions, got %d.", len(back.Trans.Values()))
	}
}
