package merkle_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/forgeledger/forge/foundation/blockchain/merkle"
)

// data represents test content stored in the tree.
type data struct {
	Value string
}

// Hash returns the sha256 hash of the value.
func (d data) Hash() ([]byte, error) {
	hash := sha256.Sum256([]byte(d.Value))
	return hash[:], nil
}

// Equals checks two values for equality.
func (d data) Equals(other data) bool {
	return d.Value == other.Value
}

// =============================================================================

func Test_EmptyTree(t *testing.T) {
	tree, err := merkle.NewTree[data](nil)
	if err != nil {
		t.Fatalf("Should be able to construct an empty tree: %s", err)
	}

	empty := sha256.Sum256(nil)
	if !bytes.Equal(tree.MerkleRoot, empty[:]) {
		t.Logf("got: %s", tree.RootHex())
		t.Logf("exp: %s", hex.EncodeToString(empty[:]))
		t.Fatalf("Should get the hash of the empty byte string for an empty tree.")
	}

	tree2, err := merkle.NewTree[data](nil)
	if err != nil {
		t.Fatalf("Should be able to construct a second empty tree: %s", err)
	}

	if tree.RootHex() != tree2.RootHex() {
		t.Fatalf("Should get the same empty root across runs.")
	}

	if err := tree.Verify(); err != nil {
		t.Fatalf("Should be able to verify an empty tree: %s", err)
	}
}

func Test_SingleValue(t *testing.T) {
	value := data{Value: "a"}

	tree, err := merkle.NewTree([]data{value})
	if err != nil {
		t.Fatalf("Should be able to construct a single value tree: %s", err)
	}

	// A single value is duplicated and paired with itself.
	leaf, _ := value.Hash()
	exp := sha256.Sum256(append(leaf, leaf...))

	if !bytes.Equal(tree.MerkleRoot, exp[:]) {
		t.Logf("got: %s", tree.RootHex())
		t.Logf("exp: %s", hex.EncodeToString(exp[:]))
		t.Fatalf("Should get hash(x||x) for a single value tree.")
	}
}

func Test_OrderSensitive(t *testing.T) {
	a := data{Value: "a"}
	b := data{Value: "b"}

	tree1, err := merkle.NewTree([]data{a, b})
	if err != nil {
		t.Fatalf("Should be able to construct tree [a,b]: %s", err)
	}

	tree2, err := merkle.NewTree([]data{b, a})
	if err != nil {
		t.Fatalf("Should be able to construct tree [b,a]: %s", err)
	}

	if tree1.RootHex() == tree2.RootHex() {
		t.Fatalf("Should get different roots for permuted values.")
	}
}

func Test_OddValues(t *testing.T) {
	values := []data{{Value: "a"}, {Value: "b"}, {Value: "c"}}

	tree, err := merkle.NewTree(values)
	if err != nil {
		t.Fatalf("Should be able to construct a tree with an odd count: %s", err)
	}

	// Recompute the root by hand: level 0 duplicates "c".
	ha, _ := values[0].Hash()
	hb, _ := values[1].Hash()
	hc, _ := values[2].Hash()

	hab := sha256.Sum256(append(ha, hb...))
	hcc := sha256.Sum256(append(hc, hc...))
	root := sha256.Sum256(append(hab[:], hcc[:]...))

	if !bytes.Equal(tree.MerkleRoot, root[:]) {
		t.Logf("got: %s", tree.RootHex())
		t.Logf("exp: %s", hex.EncodeToString(root[:]))
		t.Fatalf("Should duplicate the last value of an odd level.")
	}

	if err := tree.Verify(); err != nil {
		t.Fatalf("Should be able to verify the tree: %s", err)
	}

	vals := tree.Values()
	if len(vals) != 3 {
		t.Fatalf("Should get back the 3 original values, got %d.", len(vals))
	}
}

func Test_Proof(t *testing.T) {
	values := []data{{Value: "a"}, {Value: "b"}, {Value: "c"}, {Value: "d"}}

	tree, err := merkle.NewTree(values)
	if err != nil {
		t.Fatalf("Should be able to construct a tree: %s", err)
	}

	proof, order, err := tree.Proof(values[2])
	if err != nil {
		t.Fatalf("Should be able to generate a proof: %s", err)
	}

	// Replay the proof against the value hash.
	hash, _ := values[2].Hash()
	for i, p := range proof {
		var sum [32]byte
		switch order[i] {
		case 0:
			sum = sha256.Sum256(append(p, hash...))
		case 1:
			sum = sha256.Sum256(append(hash, p...))
		}
		hash = sum[:]
	}

	if !bytes.Equal(hash, tree.MerkleRoot) {
		t.Fatalf("Should be able to replay the proof to the merkle root.")
	}

	if _, _, err := tree.Proof(data{Value: "zz"}); err == nil {
		t.Fatalf("Should get an error proving a value that is not in the tree.")
	}
}
