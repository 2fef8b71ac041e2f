package signature_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/signature"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

// =============================================================================

func Test_SignVerify(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	pub := crypto.CompressPubkey(&pk.PublicKey)

	ok, err := signature.Verify(value, pub, sig)
	if err != nil {
		t.Fatalf("Should be able to verify the signature: %s", err)
	}
	if !ok {
		t.Fatalf("Should have a valid signature for the signing key.")
	}
}

func Test_VerifyWrongKey(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	otherPK, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a second private key: %s", err)
	}

	pub := crypto.CompressPubkey(&otherPK.PublicKey)

	ok, err := signature.Verify(value, pub, sig)
	if err != nil {
		t.Fatalf("Should be able to run verification: %s", err)
	}
	if ok {
		t.Fatalf("Should not verify against a different key pair.")
	}
}

func Test_VerifyMutatedValue(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	value.Name = "Jill"

	pub := crypto.CompressPubkey(&pk.PublicKey)

	ok, err := signature.Verify(value, pub, sig)
	if err != nil {
		t.Fatalf("Should be able to run verification: %s", err)
	}
	if ok {
		t.Fatalf("Should not verify after the signed value was mutated.")
	}
}

func Test_VerifyMalformed(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	if _, err := signature.Verify(value, []byte{0x01}, make([]byte, 65)); err == nil {
		t.Fatalf("Should get an error for a malformed public key.")
	}

	if _, err := signature.Verify(value, make([]byte, 33), []byte{0x01}); err == nil {
		t.Fatalf("Should get an error for a malformed signature.")
	}
}

func Test_Hash(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	h1 := signature.Hash(value)
	h2 := signature.Hash(value)

	if h1 != h2 {
		t.Logf("got: %s", h2)
		t.Logf("exp: %s", h1)
		t.Fatalf("Should get back the same hash twice.")
	}

	if len(h1) != 64 {
		t.Fatalf("Should get back a 64 character hash, got %d.", len(h1))
	}
}

func Test_SignatureRoundTrip(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	str := signature.SignatureString(sig)
	sig2, err := signature.SignatureBytes(str)
	if err != nil {
		t.Fatalf("Should be able to decode the signature string: %s", err)
	}

	if string(sig) != string(sig2) {
		t.Fatalf("Should get back the same signature bytes after the round trip.")
	}
}
