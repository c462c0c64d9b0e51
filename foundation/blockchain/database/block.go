package database

import (
	"fmt"
	"strconv"
	"time"

	"github.com/overlaychain/node/foundation/blockchain/hash"
	"github.com/overlaychain/node/foundation/blockchain/merkle"
)

// Block represents a group of transactions batched together and linked to
// its parent by hash. A block's identity is its own Hash field.
type Block struct {
	IsGenesis    bool          `json:"isGenesis"`
	PreviousHash string        `json:"previousHash"`
	Timestamp    string        `json:"timestamp"`
	Nonce        string        `json:"nonce"`
	Creator      string        `json:"creator"`
	MerkleRoot   string        `json:"merkleRoot"`
	Count        int           `json:"count"`
	Transactions []Transaction `json:"transactions"`
	Hash         string        `json:"hash"`
}

// candidate is the portion of a Block that feeds blockHash. The Hash field
// itself is deliberately excluded: a block's hash can never be a function
// of itself.
type candidate struct {
	IsGenesis    bool          `json:"isGenesis"`
	PreviousHash string        `json:"previousHash"`
	Timestamp    string        `json:"timestamp"`
	Creator      string        `json:"creator"`
	MerkleRoot   string        `json:"merkleRoot"`
	Count        int           `json:"count"`
	Transactions []Transaction `json:"transactions"`
}

// MerkleRootOf computes the merkle root over txs, the empty string if txs
// is empty.
func MerkleRootOf(txs []Transaction) (string, error) {
	if len(txs) == 0 {
		return "", nil
	}

	tree, err := merkle.NewTree(txs)
	if err != nil {
		return "", err
	}

	return tree.RootHex(), nil
}

// BlockHash computes the canonical hash of a block for a given nonce: the
// SHA-256 of the block's canonical JSON (hash field omitted) concatenated
// with the decimal nonce string.
func BlockHash(b Block, nonce string) (string, error) {
	c := candidate{
		IsGenesis:    b.IsGenesis,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Creator:      b.Creator,
		MerkleRoot:   b.MerkleRoot,
		Count:        b.Count,
		Transactions: b.Transactions,
	}

	data, err := hash.CanonicalJSON(c)
	if err != nil {
		return "", err
	}

	data = append(data, []byte(nonce)...)
	return hash.Sum256Hex(data), nil
}

// NewGenesisBlock constructs the single genesis block for a fresh chain.
// Its hash is never checked against a difficulty target.
func NewGenesisBlock(creator string) (Block, error) {
	b := Block{
		IsGenesis:    true,
		PreviousHash: hash.ZeroHash,
		Timestamp:    strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
		Nonce:        "0",
		Creator:      creator,
		Count:        0,
		Transactions: nil,
	}

	root, err := MerkleRootOf(b.Transactions)
	if err != nil {
		return Block{}, fmt.Errorf("genesis merkle root: %w", err)
	}
	b.MerkleRoot = root

	h, err := BlockHash(b, b.Nonce)
	if err != nil {
		return Block{}, fmt.Errorf("genesis hash: %w", err)
	}
	b.Hash = h

	return b, nil
}

// NewCandidateBlock builds an unsolved block ready for a miner's nonce
// search: every field is fixed except Nonce and Hash.
func NewCandidateBlock(creator, previousHash string, txs []Transaction) (Block, error) {
	root, err := MerkleRootOf(txs)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		IsGenesis:    false,
		PreviousHash: previousHash,
		Timestamp:    strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
		Creator:      creator,
		MerkleRoot:   root,
		Count:        len(txs),
		Transactions: txs,
	}

	return b, nil
}

// Recompute recomputes b's hash for its current Nonce, independent of
// whatever Hash value b currently carries.
func Recompute(b Block) (string, error) {
	return BlockHash(b, b.Nonce)
}
