// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros. It is the previous hash
// sentinel carried by the genesis block.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// forgeStamp is mixed into every digest that gets signed so signatures
// produced here can never be replayed against another chain.
var forgeStamp = []byte("\x19Forge Signed Message:\n32")

// =============================================================================

// Hash returns a unique string for the value. The value is marshaled into
// its canonical JSON form first so the hash is reproducible bit-for-bit
// across independent nodes.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Sign uses the specified private key to sign the value. The returned
// signature is in the 65 byte [R|S|V] format.
func Sign(value any, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	data, err := stamp(value)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, err
	}

	// Check the signature can be verified with the public key that matches
	// the private key before handing it back.
	pub := crypto.FromECDSAPub(&privateKey.PublicKey)
	if !crypto.VerifySignature(pub, data, sig[:crypto.RecoveryIDOffset]) {
		return nil, errors.New("invalid signature produced")
	}

	return sig, nil
}

// Verify checks the signature was produced over the canonical serialization
// of the value by the private key matching the specified public key. A
// signature that does not match reports false, not an error. An error is
// returned only when the inputs are structurally invalid.
func Verify(value any, publicKey []byte, sig []byte) (bool, error) {
	if len(sig) != crypto.SignatureLength {
		return false, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	if len(publicKey) != 33 && len(publicKey) != 65 {
		return false, fmt.Errorf("public key must be 33 or 65 bytes, got %d", len(publicKey))
	}

	data, err := stamp(value)
	if err != nil {
		return false, err
	}

	return crypto.VerifySignature(publicKey, data, sig[:crypto.RecoveryIDOffset]), nil
}

// =============================================================================

// SignatureString returns the signature as a hex string.
func SignatureString(sig []byte) string {
	return hexutil.Encode(sig)
}

// SignatureBytes converts a hex representation of the signature back into
// its 65 byte form.
func SignatureBytes(sigStr string) ([]byte, error) {
	sig, err := hexutil.Decode(sigStr)
	if err != nil {
		return nil, err
	}

	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	return sig, nil
}

// PublicKeyString returns the compressed public key as a hex string.
func PublicKeyString(publicKey *ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.CompressPubkey(publicKey))
}

// PublicKeyBytes converts a hex representation of a public key back into
// its compressed byte form.
func PublicKeyBytes(pubStr string) ([]byte, error) {
	pub, err := hexutil.Decode(pubStr)
	if err != nil {
		return nil, err
	}

	if len(pub) != 33 && len(pub) != 65 {
		return nil, fmt.Errorf("public key must be 33 or 65 bytes, got %d", len(pub))
	}

	return pub, nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this value with
// the forge stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array to provide data length
	// consistency with all values being signed.
	txHash := crypto.Keccak256(v)

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the value.
	data := crypto.Keccak256(forgeStamp, txHash)

	return data, nil
}
