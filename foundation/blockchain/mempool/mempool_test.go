package mempool_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/mempool"
	"github.com/forgeledger/forge/foundation/blockchain/signature"
)

func sign(t *testing.T, hexKey string, recipient database.AccountID, nonce uint64, timestamp uint64) database.SignedTx {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to parse the private key: %s", err)
	}

	tx, err := database.NewTx(
		database.PublicKeyToAccountID(pk.PublicKey),
		recipient,
		100,
		nonce,
		signature.PublicKeyString(&pk.PublicKey),
	)
	if err != nil {
		t.Fatalf("Should be able to construct a transaction: %s", err)
	}
	tx.TimeStamp = timestamp

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	return signedTx
}

// =============================================================================

const (
	key1 = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	key2 = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
)

const recipient = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")

func Test_UpsertDelete(t *testing.T) {
	mp := mempool.New()

	tx1 := sign(t, key1, recipient, 1, 100)
	tx2 := sign(t, key2, recipient, 1, 200)

	if n := mp.Upsert(tx1); n != 1 {
		t.Fatalf("Should have 1 transaction in the pool, got %d.", n)
	}
	if n := mp.Upsert(tx2); n != 2 {
		t.Fatalf("Should have 2 transactions in the pool, got %d.", n)
	}

	// Same sender and nonce replaces the existing entry.
	if n := mp.Upsert(tx1); n != 2 {
		t.Fatalf("Should still have 2 transactions after an upsert, got %d.", n)
	}

	mp.Delete(tx2)
	if n := mp.Count(); n != 1 {
		t.Fatalf("Should have 1 transaction after the delete, got %d.", n)
	}

	mp.Truncate()
	if n := mp.Count(); n != 0 {
		t.Fatalf("Should have 0 transactions after the truncate, got %d.", n)
	}
}

func Test_PickBestOrder(t *testing.T) {
	mp := mempool.New()

	tx1 := sign(t, key1, recipient, 1, 300)
	tx2 := sign(t, key2, recipient, 1, 100)
	tx3 := sign(t, key1, recipient, 2, 200)

	mp.Upsert(tx1)
	mp.Upsert(tx2)
	mp.Upsert(tx3)

	trans := mp.PickBest(-1)
	if len(trans) != 3 {
		t.Fatalf("Should pick all 3 transactions, got %d.", len(trans))
	}

	if trans[0].TimeStamp != 100 || trans[1].TimeStamp != 200 || trans[2].TimeStamp != 300 {
		t.Fatalf("Should pick the transactions oldest first, got [%d %d %d].", trans[0].TimeStamp, trans[1].TimeStamp, trans[2].TimeStamp)
	}

	trans = mp.PickBest(2)
	if len(trans) != 2 {
		t.Fatalf("Should respect the requested count, got %d.", len(trans))
	}
}
