package database

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/signature"
)

// =============================================================================

// Tx is the transactional information between two parties. A Tx without a
// signature is a draft and is never admissible to a block.
type Tx struct {
	Sender    AccountID `json:"sender"`     // Account sending the value.
	Recipient AccountID `json:"recipient"`  // Account receiving the value.
	Amount    uint64    `json:"amount"`     // Monetary value moved by this transaction.
	Nonce     uint64    `json:"nonce"`      // Per-sender sequence number to prevent replay.
	TimeStamp uint64    `json:"timestamp"`  // Time the transaction was created.
	PublicKey string    `json:"public_key"` // Compressed public key of the sender.
}

// NewTx constructs a new transaction and validates every required field is
// present and well formed.
func NewTx(sender AccountID, recipient AccountID, amount uint64, nonce uint64, publicKey string) (Tx, error) {
	tx := Tx{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Nonce:     nonce,
		TimeStamp: uint64(time.Now().UTC().Unix()),
		PublicKey: publicKey,
	}

	if err := tx.Validate(); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// Validate checks every required field is present and well formed. The
// amount is an unsigned type so a negative value is unrepresentable.
func (tx Tx) Validate() error {
	if !tx.Sender.IsAccountID() {
		return fmt.Errorf("sender is not properly formatted: %w", ErrMalformedTransaction)
	}

	if !tx.Recipient.IsAccountID() {
		return fmt.Errorf("recipient is not properly formatted: %w", ErrMalformedTransaction)
	}

	if tx.TimeStamp == 0 {
		return fmt.Errorf("timestamp is missing: %w", ErrMalformedTransaction)
	}

	if tx.PublicKey == "" {
		return fmt.Errorf("public key is missing: %w", ErrMalformedTransaction)
	}

	if _, err := signature.PublicKeyBytes(tx.PublicKey); err != nil {
		return fmt.Errorf("public key is not properly formatted: %w", ErrMalformedTransaction)
	}

	return nil
}

// Sign uses the specified private key to sign the transaction. The private
// key must match the public key carried by the transaction, which in turn
// must resolve to the sender account.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	if err := tx.Validate(); err != nil {
		return SignedTx{}, err
	}

	if tx.PublicKey != signature.PublicKeyString(&privateKey.PublicKey) {
		return SignedTx{}, fmt.Errorf("public key does not match the signing key: %w", ErrMalformedTransaction)
	}

	if tx.Sender != PublicKeyToAccountID(privateKey.PublicKey) {
		return SignedTx{}, fmt.Errorf("sender does not match the signing key: %w", ErrMalformedTransaction)
	}

	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx:        tx,
		Signature: signature.SignatureString(sig),
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the blockchain.
type SignedTx struct {
	Tx
	Signature string `json:"signature"`
}

// Verify recomputes the canonical serialization of the transaction details
// and checks the signature against the embedded public key and the claimed
// sender. A mismatched signature reports false, not an error. An error is
// returned only for structurally invalid input.
func (tx SignedTx) Verify() (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}

	if tx.Signature == "" {
		return false, fmt.Errorf("signature is missing: %w", ErrMalformedTransaction)
	}

	sig, err := signature.SignatureBytes(tx.Signature)
	if err != nil {
		return false, fmt.Errorf("signature is not properly formatted: %w", ErrMalformedTransaction)
	}

	pub, err := signature.PublicKeyBytes(tx.PublicKey)
	if err != nil {
		return false, fmt.Errorf("public key is not properly formatted: %w", ErrMalformedTransaction)
	}

	// The sender must be the account derived from the public key or the
	// signature authenticates someone else's transfer.
	pubECDSA, err := crypto.DecompressPubkey(pub)
	if err != nil {
		return false, fmt.Errorf("public key is not on the curve: %w", ErrMalformedTransaction)
	}
	if tx.Sender != PublicKeyToAccountID(*pubECDSA) {
		return false, nil
	}

	return signature.Verify(tx.Tx, pub, sig)
}

// VerifySignature is the error form of Verify used at block admission. It
// maps a signature mismatch to ErrInvalidSignature.
func (tx SignedTx) VerifySignature() error {
	ok, err := tx.Verify()
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("transaction %s: %w", tx, ErrInvalidSignature)
	}

	return nil
}

// Hash implements the merkle Hashable interface for providing a hash of a
// signed transaction.
func (tx SignedTx) Hash() ([]byte, error) {
	str := signature.Hash(tx)
	return hex.DecodeString(str)
}

// HashHex returns the transaction hash in its wire form.
func (tx SignedTx) HashHex() string {
	return signature.Hash(tx)
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two signed transactions. If the nonce and signatures are
// the same, the two transactions are the same.
func (tx SignedTx) Equals(otherTx SignedTx) bool {
	return tx.Nonce == otherTx.Nonce && tx.Signature == otherTx.Signature
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%d", tx.Sender, tx.Nonce)
}
