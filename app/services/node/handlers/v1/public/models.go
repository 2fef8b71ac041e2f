package public

import (
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/validate"
)

// submitTx is the request model for submitting a signed transaction.
type submitTx struct {
	Sender    string `json:"sender" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
	Amount    uint64 `json:"amount" validate:"required"`
	Nonce     uint64 `json:"nonce" validate:"required"`
	TimeStamp uint64 `json:"timestamp" validate:"required"`
	PublicKey string `json:"public_key" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Validate checks the request fields against their declared constraints.
func (at submitTx) Validate() error {
	return validate.Check(at)
}

// toSignedTx converts the request model into the database transaction.
func (at submitTx) toSignedTx() database.SignedTx {
	return database.SignedTx{
		Tx: database.Tx{
			Sender:    database.AccountID(at.Sender),
			Recipient: database.AccountID(at.Recipient),
			Amount:    at.Amount,
			Nonce:     at.Nonce,
			TimeStamp: at.TimeStamp,
			PublicKey: at.PublicKey,
		},
		Signature: at.Signature,
	}
}

// tx represents the view model for a transaction in API responses.
type tx struct {
	Sender        database.AccountID `json:"sender"`
	SenderName    string             `json:"sender_name"`
	Recipient     database.AccountID `json:"recipient"`
	RecipientName string             `json:"recipient_name"`
	Amount        uint64             `json:"amount"`
	Nonce         uint64             `json:"nonce"`
	TimeStamp     uint64             `json:"timestamp"`
	Signature     string             `json:"signature"`
	Hash          string             `json:"hash"`
}

// info represents the view model for an account in API responses.
type info struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance uint64             `json:"balance"`
}

// actInfo is the full accounts response.
type actInfo struct {
	LatestBlock string `json:"latest_block"`
	Height      int    `json:"height"`
	Uncommitted int    `json:"uncommitted"`
	Accounts    []info `json:"accounts"`
}

// proof is the response for a merkle proof of inclusion.
type proof struct {
	BlockHash  string   `json:"block_hash"`
	MerkleRoot string   `json:"merkle_root"`
	TxHash     string   `json:"tx_hash"`
	Proof      []string `json:"proof"`
	ProofOrder []int64  `json:"proof_order"`
}
