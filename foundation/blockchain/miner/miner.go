// Package miner implements the proof-of-work procedure: fetch pending
// transactions from a node, build a candidate block, search for a nonce
// under the target difficulty, and submit the solved block back.
//
// The procedure is invoked on demand, once per call. Nothing in this
// package runs a background loop; a caller (cmd/miner) decides when and
// how often to mine.
package miner

import (
	"context"
	"errors"
	"fmt"

	"github.com/overlaychain/node/foundation/blockchain/database"
	"github.com/overlaychain/node/foundation/blockchain/hash"
)

// Inventory is what a miner needs to know about a node's current chain
// state before building a candidate block.
type Inventory struct {
	Head          database.Block
	Pending       []database.Transaction
	Difficulty    int
	MaxTxPerBlock int
}

// InventoryFetcher retrieves the inventory a miner mines against. An
// HTTP-backed implementation lives in cmd/miner; tests use a fake.
type InventoryFetcher interface {
	Fetch(ctx context.Context) (Inventory, error)
}

// BlockPoster submits a solved block to a node.
type BlockPoster interface {
	Post(ctx context.Context, b database.Block) error
}

// Result reports the outcome of one Mine call.
type Result struct {
	Block      database.Block
	Attempts   int
	Difficulty int
}

// Mine runs one full cycle: fetch inventory, build a candidate over up to
// MaxTxPerBlock pending transactions, search for a nonce whose block hash
// carries Difficulty leading hex zeros, and submit it.
//
// Returns the solved block and the number of nonce attempts it took. ctx
// cancellation aborts the nonce search and returns ctx.Err().
func Mine(ctx context.Context, creator string, fetcher InventoryFetcher, poster BlockPoster) (Result, error) {
	inv, err := fetcher.Fetch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch inventory: %w", err)
	}

	txs := inv.Pending
	if inv.MaxTxPerBlock > 0 && len(txs) > inv.MaxTxPerBlock {
		txs = txs[:inv.MaxTxPerBlock]
	}

	if len(txs) == 0 {
		return Result{}, errors.New("no pending transactions")
	}

	previousHash := hash.ZeroHash
	if inv.Head.Hash != "" {
		previousHash = inv.Head.Hash
	}

	candidate, err := database.NewCandidateBlock(creator, previousHash, txs)
	if err != nil {
		return Result{}, fmt.Errorf("build candidate: %w", err)
	}

	solved, attempts, err := solve(ctx, candidate, inv.Difficulty)
	if err != nil {
		return Result{}, err
	}

	if err := poster.Post(ctx, solved); err != nil {
		return Result{}, fmt.Errorf("post block: %w", err)
	}

	return Result{Block: solved, Attempts: attempts, Difficulty: inv.Difficulty}, nil
}

// solve brute-forces nonce values, starting from 0, until the block's
// hash carries difficulty leading hex zero characters.
func solve(ctx context.Context, b database.Block, difficulty int) (database.Block, int, error) {
	for nonce := 0; ; nonce++ {
		if nonce%4096 == 0 {
			select {
			case <-ctx.Done():
				return database.Block{}, nonce, ctx.Err()
			default:
			}
		}

		n := fmt.Sprintf("%d", nonce)

		h, err := database.BlockHash(b, n)
		if err != nil {
			return database.Block{}, nonce, err
		}

		if hash.HasLeadingZeros(h, difficulty) {
			b.Nonce = n
			b.Hash = h
			return b, nonce + 1, nil
		}
	}
}
