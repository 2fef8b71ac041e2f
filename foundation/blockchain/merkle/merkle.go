// Package merkle provides a merkle tree implementation to support
// validation of the transactions inside a block.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits
// the behavior defined by the Hashable constraint. The aggregation policy is
// fixed: adjacent pairs are hashed left followed by right and a level with an
// odd count duplicates its last element. Changing the policy changes every
// root hash, so it must never change.
type Tree[T Hashable[T]] struct {
	Root       *Node[T]
	Leafs      []*Node[T]
	MerkleRoot []byte
}

// NewTree constructs a merkle tree from the ordered set of values. An empty
// set is legal and produces the fixed empty root.
func NewTree[T Hashable[T]](values []T) (*Tree[T], error) {
	var t Tree[T]
	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		t.Root = nil
		t.Leafs = nil
		t.MerkleRoot = EmptyRoot()
		return nil
	}

	var leafs []*Node[T]
	for _, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  hash,
			Value: value,
			leaf:  true,
		})
	}

	// A level with an odd count duplicates its last element. This applies
	// at the leaf level as well, so a single value hashes against itself.
	if len(leafs)%2 == 1 {
		duplicate := &Node[T]{
			Hash:  leafs[len(leafs)-1].Hash,
			Value: leafs[len(leafs)-1].Value,
			leaf:  true,
			dup:   true,
		}
		leafs = append(leafs, duplicate)
	}

	root := buildIntermediate(leafs)

	t.Root = root
	t.Leafs = leafs
	t.MerkleRoot = root.Hash

	return nil
}

// EmptyRoot returns the root hash for a tree with no values, the
// sha256 of the empty byte string.
func EmptyRoot() []byte {
	hash := sha256.Sum256(nil)
	return hash[:]
}

// =============================================================================

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a value is in the tree. An order of 0 means the proof
// hash is concatenated before the running hash, 1 means after.
func (t *Tree[T]) Proof(data T) ([][]byte, []int64, error) {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		var merkleProof [][]byte
		var order []int64
		nodeParent := node.Parent

		for nodeParent != nil {
			if bytes.Equal(nodeParent.Left.Hash, node.Hash) {
				merkleProof = append(merkleProof, nodeParent.Right.Hash)
				order = append(order, 1)
			} else {
				merkleProof = append(merkleProof, nodeParent.Left.Hash)
				order = append(order, 0)
			}
			node = nodeParent
			nodeParent = nodeParent.Parent
		}

		return merkleProof, order, nil
	}

	return nil, nil, errors.New("unable to find data in tree")
}

// Verify recomputes the hashes at each level of the tree from the leaf
// values and reports whether the stored merkle root still matches.
func (t *Tree[T]) Verify() error {
	if t.Root == nil {
		if !bytes.Equal(t.MerkleRoot, EmptyRoot()) {
			return errors.New("empty tree root hash invalid")
		}
		return nil
	}

	calculatedRoot, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.MerkleRoot, calculatedRoot) {
		return errors.New("root hash invalid")
	}

	return nil
}

// Values returns the ordered set of values stored in the tree, without the
// odd-level duplicate.
func (t *Tree[T]) Values() []T {
	if len(t.Leafs) == 0 {
		return nil
	}

	var values []T
	for _, node := range t.Leafs {
		if node.dup {
			continue
		}
		values = append(values, node.Value)
	}

	return values
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hex.EncodeToString(t.MerkleRoot)
}

// MarshalText implements the TextMarshaler interface and produces a panic
// if anyone tries to marshal the merkle tree. Use the Values function to
// return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to
// its immediate relationships, a hash, the data if it is a leaf, and other
// metadata.
type Node[T Hashable[T]] struct {
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
	dup    bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	leftBytes, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	rightBytes, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(append(leftBytes, rightBytes...))
	return hash[:], nil
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %v %v", n.leaf, n.dup, n.Hash, n.Value)
}

// =============================================================================

// buildIntermediate constructs, for a given list of leaf nodes, the
// intermediate and root levels of the tree. Returns the resulting root node
// of the tree.
func buildIntermediate[T Hashable[T]](nl []*Node[T]) *Node[T] {
	var nodes []*Node[T]

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		hash := sha256.Sum256(append(nl[left].Hash, nl[right].Hash...))

		n := Node[T]{
			Left:  nl[left],
			Right: nl[right],
			Hash:  hash[:],
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n

		if len(nl) == 2 {
			return &n
		}
	}

	return buildIntermediate(nodes)
}
