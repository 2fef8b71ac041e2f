package database

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/forgeledger/forge/foundation/blockchain/merkle"
	"github.com/forgeledger/forge/foundation/blockchain/signature"
)

// CurrentVersion is the block header version produced by this node.
const CurrentVersion uint32 = 1

// =============================================================================

// BlockHeader represents common information required for each block. The
// JSON field order is the canonical serialization order, it is the wire
// contract for header hashing and must never change.
type BlockHeader struct {
	Version       uint32 `json:"version"`       // Version of the block structure.
	PrevBlockHash string `json:"previous_hash"` // Hash of the previous block in the chain.
	MerkleRoot    string `json:"merkle_root"`   // Merkle tree root hash for the transactions in this block.
	TimeStamp     uint64 `json:"timestamp"`     // Time the block was assembled.
	Difficulty    uint   `json:"difficulty"`    // Number of leading zero bits required of the block hash.
	Nonce         uint64 `json:"nonce"`         // Value identified to solve the hash solution.
}

// Block represents a group of transactions batched together. A block is a
// mutable candidate until it is sealed by mining, immutable after.
type Block struct {
	Number     uint64 // Height of this block in the chain.
	Size       uint64 // Length of the canonical serialization, set when sealed.
	BlockHash  string // Hash of the header, set when sealed.
	TransCount int    // Declared number of transactions.
	Header     BlockHeader
	Trans      *merkle.Tree[SignedTx]
}

// NewCandidateBlock assembles a candidate block on top of the specified
// previous block. A nil previous block assembles the genesis candidate. The
// transactions are committed to the merkle root in the order supplied and
// are not deeply validated here, that is the chain store's job at admission.
func NewCandidateBlock(prevBlock *Block, difficulty uint, timestamp uint64, trans []SignedTx) (Block, error) {
	prevBlockHash := signature.ZeroHash
	number := uint64(0)
	if prevBlock != nil {
		prevBlockHash = prevBlock.BlockHash
		number = prevBlock.Number + 1
	}

	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Number:     number,
		TransCount: len(trans),
		Header: BlockHeader{
			Version:       CurrentVersion,
			PrevBlockHash: prevBlockHash,
			MerkleRoot:    tree.RootHex(),
			TimeStamp:     timestamp,
			Difficulty:    difficulty,
			Nonce:         0, // Will be identified by the POW algorithm.
		},
		Trans: tree,
	}

	return b, nil
}

// Hash computes the unique hash for the block from its header. Hashing the
// header and not the whole block keeps the chain verifiable from headers
// alone, the transactions are committed through the merkle root.
func (b Block) Hash() string {
	return signature.Hash(b.Header)
}

// Seal fixes the block hash and canonical size after a nonce was found.
// The block must not be mutated once sealed.
func (b *Block) Seal() {
	b.BlockHash = b.Hash()
	b.Size = b.canonicalSize()
}

// canonicalSize returns the byte length of the canonical serialization of
// the header and the transaction list.
func (b Block) canonicalSize() uint64 {
	payload := struct {
		Header BlockHeader `json:"header"`
		Trans  []SignedTx  `json:"transactions"`
	}{
		Header: b.Header,
		Trans:  b.Trans.Values(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}

	return uint64(len(data))
}

// =============================================================================

// ValidateBlock runs the header level checks for including this block into
// the chain after the specified previous block: linkage, proof of work and
// the merkle commitment. Transaction level checks need the full chain view
// and live on the Database.
func (b Block) ValidateBlock(prevBlock *Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: blk[%d]: check: block number and parent hash link", b.Number)

	if prevBlock == nil {
		if b.Number != 0 {
			return fmt.Errorf("block %d on an empty chain: %w", b.Number, ErrInvalidLinkage)
		}
		if b.Header.PrevBlockHash != signature.ZeroHash {
			return fmt.Errorf("genesis block must carry the zero hash sentinel: %w", ErrInvalidLinkage)
		}
	} else {
		if b.Number != prevBlock.Number+1 {
			return fmt.Errorf("this block is not the next number, got %d, exp %d: %w", b.Number, prevBlock.Number+1, ErrInvalidLinkage)
		}
		if b.Header.PrevBlockHash != prevBlock.BlockHash {
			return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s: %w", b.Header.PrevBlockHash, prevBlock.BlockHash, ErrInvalidLinkage)
		}
	}

	evHandler("database: ValidateBlock: blk[%d]: check: block hash has been solved", b.Number)

	hash := b.Hash()
	if hash != b.BlockHash {
		return fmt.Errorf("recomputed hash %s doesn't match the claimed hash %s: %w", hash, b.BlockHash, ErrInvalidProofOfWork)
	}
	if !HashMeetsDifficulty(hash, b.Header.Difficulty) {
		return fmt.Errorf("%s does not meet difficulty %d: %w", hash, b.Header.Difficulty, ErrInvalidProofOfWork)
	}

	evHandler("database: ValidateBlock: blk[%d]: check: merkle root does match transactions", b.Number)

	if b.TransCount != len(b.Trans.Values()) {
		return fmt.Errorf("transaction count %d doesn't match the %d transactions: %w", b.TransCount, len(b.Trans.Values()), ErrInvalidMerkleRoot)
	}
	if b.Header.MerkleRoot != b.Trans.RootHex() {
		return fmt.Errorf("merkle root does not match transactions, got %s, exp %s: %w", b.Trans.RootHex(), b.Header.MerkleRoot, ErrInvalidMerkleRoot)
	}

	return nil
}

// =============================================================================

// HashMeetsDifficulty checks the hash complies with the POW rules.
// Interpreted as an unsigned big integer, the hash must be strictly less
// than 2^(256-difficulty), difficulty being the number of leading zero bits
// required. This formula is a compatibility contract between nodes and must
// remain stable.
func HashMeetsDifficulty(hash string, difficulty uint) bool {
	if difficulty > 256 {
		difficulty = 256
	}

	bytes, err := hex.DecodeString(hash)
	if err != nil || len(bytes) != 32 {
		return false
	}

	target := new(big.Int).Lsh(big.NewInt(1), 256-difficulty)
	value := new(big.Int).SetBytes(bytes)

	return value.Cmp(target) < 0
}

// BlockWork returns the amount of work a block at the specified difficulty
// represents, 2^difficulty. Branch choice compares sums of this value.
func BlockWork(difficulty uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), difficulty)
}

// =============================================================================

// BlockData represents what is serialized over the wire and to storage. The
// transaction list appears both as the ordered hash list carried by the
// block contract and as the full transaction data needed for revalidation.
type BlockData struct {
	Number      uint64      `json:"index"`
	Size        uint64      `json:"size"`
	BlockHash   string      `json:"block_hash"`
	Header      BlockHeader `json:"header"`
	TransCount  int         `json:"transaction_count"`
	TransHashes []string    `json:"transactions"`
	Trans       []SignedTx  `json:"transaction_data"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	trans := block.Trans.Values()

	hashes := make([]string, len(trans))
	for i, tx := range trans {
		hashes[i] = tx.HashHex()
	}

	return BlockData{
		Number:      block.Number,
		Size:        block.Size,
		BlockHash:   block.BlockHash,
		Header:      block.Header,
		TransCount:  block.TransCount,
		TransHashes: hashes,
		Trans:       trans,
	}
}

// ToBlock converts a BlockData back into a Block.
func ToBlock(blockData BlockData) (Block, error) {
	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Number:     blockData.Number,
		Size:       blockData.Size,
		BlockHash:  blockData.BlockHash,
		TransCount: blockData.TransCount,
		Header:     blockData.Header,
		Trans:      tree,
	}

	return b, nil
}
