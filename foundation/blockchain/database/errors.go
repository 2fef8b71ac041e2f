package database

import "errors"

// Set of error kinds a block or transaction can be rejected with. Callers
// of the chain store check against these with errors.Is.
var (
	// ErrMalformedTransaction indicates a required transaction field is
	// missing or invalid.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrInvalidSignature indicates the transaction signature does not
	// authenticate the claimed sender.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidLinkage indicates the block's previous hash or number does
	// not link to its parent.
	ErrInvalidLinkage = errors.New("invalid linkage")

	// ErrInvalidProofOfWork indicates the block hash does not meet the
	// declared difficulty or mismatches the claimed hash.
	ErrInvalidProofOfWork = errors.New("invalid proof of work")

	// ErrInvalidMerkleRoot indicates the header merkle root does not match
	// the block's transactions.
	ErrInvalidMerkleRoot = errors.New("invalid merkle root")

	// ErrDuplicateTransaction indicates a sender/nonce pair was already
	// committed to the adopted chain.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrInsufficientFunds indicates the sender does not hold the value a
	// transaction moves.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
