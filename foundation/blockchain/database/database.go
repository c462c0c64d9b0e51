// Package database holds the in-memory inventory of blocks, pending
// transactions, and balances, plus the consensus rules that pick the chain
// head and reorganize state when a better chain appears.
package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/overlaychain/node/foundation/blockchain/genesis"
	"github.com/overlaychain/node/foundation/blockchain/hash"
)

// AddResult reports what happened to a block or transaction submitted to
// the store.
type AddResult string

// Set of known add results.
const (
	Added         AddResult = "added"
	AlreadyExists AddResult = "already_exists"
)

// Consensus is a snapshot of the chain head and fork bookkeeping, as
// returned by /consensus and embedded in /inventory.
type Consensus struct {
	CurrentHead  string `json:"currentHead"`
	ChainHeight  int    `json:"chainHeight"`
	HeadBlock    Block  `json:"headBlock"`
	TotalBlocks  int    `json:"totalBlocks"`
	ForkedBlocks int    `json:"forkedBlocks"`
}

// Inventory is the full snapshot returned by GetInventory.
type Inventory struct {
	Blocks       []string         `json:"blocks"`
	Transactions []Transaction    `json:"transactions"`
	Balances     map[string]int64 `json:"balances"`
	Consensus    Consensus        `json:"consensus"`
}

// Store is the InventoryStore and ConsensusEngine described by the spec:
// block/transaction storage, the pending pool, the balance ledger, and
// fork-aware chain head selection.
type Store struct {
	mu sync.RWMutex

	genesis genesis.Genesis
	evHandler func(v string, args ...any)

	blocksByHash   map[string]Block
	heightOf       map[string]int
	blockchainHead string

	pending map[string]Transaction
	seen    map[string]bool

	balances map[string]int64

	// pendingOrphans holds blocks whose parent hasn't arrived yet, keyed
	// by the missing parent's hash.
	pendingOrphans map[string][]Block
}

// New constructs an empty Store. No genesis block exists until AddBlock is
// called with a block whose IsGenesis field is true.
func New(gen genesis.Genesis, evHandler func(v string, args ...any)) *Store {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	return &Store{
		genesis:        gen,
		evHandler:      evHandler,
		blocksByHash:   make(map[string]Block),
		heightOf:       make(map[string]int),
		pending:        make(map[string]Transaction),
		seen:           make(map[string]bool),
		balances:       make(map[string]int64),
		pendingOrphans: make(map[string][]Block),
	}
}

// HasGenesis reports whether a genesis block has already been accepted.
func (s *Store) HasGenesis() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.blockchainHead != "" || len(s.blocksByHash) > 0
}

// Difficulty returns the configured proof of work difficulty.
func (s *Store) Difficulty() int {
	return s.genesis.Difficulty
}

// MaxTxPerBlock returns the configured per-block transaction cap.
func (s *Store) MaxTxPerBlock() int {
	return s.genesis.MaxTxPerBlock
}

// =============================================================================

// AddBlock validates and, if valid, inserts b into the store and runs
// consensus. This method only mutates local state; it does not flood the
// block to peers.
func (s *Store) AddBlock(b Block) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addBlockLocked(b)
}

func (s *Store) addBlockLocked(b Block) (AddResult, error) {
	if s.seen[b.Hash] {
		return AlreadyExists, nil
	}

	recomputed, err := Recompute(b)
	if err != nil {
		return "", fmt.Errorf("recompute hash: %w", err)
	}
	if recomputed != b.Hash {
		return "", fmt.Errorf("hash mismatch: declared %s, computed %s", b.Hash, recomputed)
	}

	if b.IsGenesis {
		return s.addGenesisLocked(b)
	}

	return s.addRegularBlockLocked(b)
}

func (s *Store) addGenesisLocked(b Block) (AddResult, error) {
	if s.HasGenesisLocked() {
		return "", fmt.Errorf("genesis block already exists")
	}

	s.blocksByHash[b.Hash] = b
	s.heightOf[b.Hash] = 0
	s.blockchainHead = b.Hash
	s.seen[b.Hash] = true
	s.balances[b.Creator] += s.genesis.Endowment

	s.evHandler("database: addBlock: GENESIS: creator[%s] endowed[%d]", b.Creator, s.genesis.Endowment)

	s.resolveOrphans(b.Hash)

	return Added, nil
}

// HasGenesisLocked is HasGenesis for callers already holding the lock.
func (s *Store) HasGenesisLocked() bool {
	return s.blockchainHead != "" || len(s.blocksByHash) > 0
}

func (s *Store) addRegularBlockLocked(b Block) (AddResult, error) {
	if !hash.HasLeadingZeros(b.Hash, s.genesis.Difficulty) {
		return "", fmt.Errorf("block hash %s does not meet difficulty %d", b.Hash, s.genesis.Difficulty)
	}

	if _, exists := s.blocksByHash[b.PreviousHash]; !exists {
		s.pendingOrphans[b.PreviousHash] = append(s.pendingOrphans[b.PreviousHash], b)
		s.evHandler("database: addBlock: ORPHAN: hash[%s] waiting on parent[%s]", b.Hash, b.PreviousHash)
		return Added, nil
	}

	if err := s.validateTransactionsAgainstShadow(b.Transactions); err != nil {
		return "", fmt.Errorf("block transactions invalid: %w", err)
	}

	s.insertValidatedBlockLocked(b)
	s.resolveOrphans(b.Hash)

	return Added, nil
}

// insertValidatedBlockLocked inserts a block whose parent is known and
// whose transactions have already been validated against the shadow
// balances, then runs consensus. Balances are mutated only for blocks
// that end up on the main chain, decided by runConsensusLocked; a block
// that loses consensus is stored but inert.
func (s *Store) insertValidatedBlockLocked(b Block) {
	s.blocksByHash[b.Hash] = b
	s.seen[b.Hash] = true
	s.heightOf[b.Hash] = s.heightOf[b.PreviousHash] + 1

	s.runConsensusLocked(b)
}

// resolveOrphans retries every block that was waiting on parentHash, now
// that it has arrived.
func (s *Store) resolveOrphans(parentHash string) {
	waiting := s.pendingOrphans[parentHash]
	if len(waiting) == 0 {
		return
	}
	delete(s.pendingOrphans, parentHash)

	for _, orphan := range waiting {
		if err := s.validateTransactionsAgainstShadow(orphan.Transactions); err != nil {
			s.evHandler("database: resolveOrphans: REJECTED: hash[%s] err[%s]", orphan.Hash, err)
			continue
		}
		s.insertValidatedBlockLocked(orphan)
		s.resolveOrphans(orphan.Hash)
	}
}

// validateTransactionsAgainstShadow simulates txs in order against a copy
// of the current balances; every transaction must have positive amount and
// the sender must have sufficient balance at its position.
func (s *Store) validateTransactionsAgainstShadow(txs []Transaction) error {
	shadow := make(map[string]int64, len(s.balances))
	for k, v := range s.balances {
		shadow[k] = v
	}

	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return err
		}
		if shadow[tx.Sender] < tx.Amount {
			return fmt.Errorf("tx[%s] insufficient balance: sender %s has %d, needs %d", tx.ID, tx.Sender, shadow[tx.Sender], tx.Amount)
		}
		shadow[tx.Sender] -= tx.Amount
		shadow[tx.Receiver] += tx.Amount
	}

	return nil
}

// applyTransactionsLocked applies b's transactions to the real balances
// and removes them from the pending pool.
func (s *Store) applyTransactionsLocked(b Block) {
	for _, tx := range b.Transactions {
		s.balances[tx.Sender] -= tx.Amount
		s.balances[tx.Receiver] += tx.Amount
		delete(s.pending, tx.ID)
	}
}

// reverseTransactionsLocked undoes b's transactions against balances and
// restores them to the pending pool, used when a branch is abandoned.
func (s *Store) reverseTransactionsLocked(b Block) {
	for _, tx := range b.Transactions {
		s.balances[tx.Sender] += tx.Amount
		s.balances[tx.Receiver] -= tx.Amount
		s.pending[tx.ID] = tx
	}
}

// =============================================================================

// runConsensusLocked applies the consensus rule for a newly inserted
// block b: become head, reorganize to b, or remain a side branch.
func (s *Store) runConsensusLocked(b Block) {
	if s.blockchainHead == "" {
		s.blockchainHead = b.Hash
		s.applyTransactionsLocked(b)
		s.evHandler("database: consensus: HEAD: first block hash[%s]", b.Hash)
		return
	}

	if b.Hash == s.blockchainHead {
		return
	}

	head := s.blocksByHash[s.blockchainHead]
	switch {
	case s.heightOf[b.Hash] > s.heightOf[head.Hash]:
		s.reorgLocked(head, b)
	case s.heightOf[b.Hash] == s.heightOf[head.Hash] && b.Hash < head.Hash:
		s.reorgLocked(head, b)
	default:
		s.evHandler("database: consensus: SIDE BRANCH: hash[%s] height[%d]", b.Hash, s.heightOf[b.Hash])
	}
}

// reorgLocked reorganizes the chain from oldHead to newHead: rolls back
// balances and restores pending transactions for the abandoned suffix,
// then re-applies the new suffix.
func (s *Store) reorgLocked(oldHead, newHead Block) {
	oldChain := s.chainToLocked(oldHead.Hash)
	newChain := s.chainToLocked(newHead.Hash)

	k := commonPrefixLen(oldChain, newChain)

	for i := len(oldChain) - 1; i >= k; i-- {
		s.reverseTransactionsLocked(oldChain[i])
	}

	for i := k; i < len(newChain); i++ {
		s.applyTransactionsLocked(newChain[i])
	}

	s.blockchainHead = newHead.Hash
	s.evHandler("database: reorg: HEAD: old[%s] new[%s] commonAncestor[%d]", oldHead.Hash, newHead.Hash, k)
}

// chainToLocked walks from tipHash back to genesis via PreviousHash and
// returns the chain in genesis-first order.
func (s *Store) chainToLocked(tipHash string) []Block {
	var chain []Block

	h := tipHash
	for {
		b, exists := s.blocksByHash[h]
		if !exists {
			break
		}
		chain = append(chain, b)
		if b.IsGenesis {
			break
		}
		h = b.PreviousHash
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain
}

// commonPrefixLen returns the length of the longest common prefix shared
// by two genesis-first chains.
func commonPrefixLen(a, b []Block) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	i := 0
	for i < n && a[i].Hash == b[i].Hash {
		i++
	}

	return i
}

// =============================================================================

// AddTransaction validates tx against current chain balances (not pending
// projections), deduplicates via seen, and inserts it into the pending
// pool.
func (s *Store) AddTransaction(tx Transaction) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[tx.ID] {
		return AlreadyExists, nil
	}

	if err := tx.Validate(); err != nil {
		return "", err
	}

	if s.balances[tx.Sender] < tx.Amount {
		return "", fmt.Errorf("tx[%s] insufficient balance: sender %s has %d, needs %d", tx.ID, tx.Sender, s.balances[tx.Sender], tx.Amount)
	}

	s.pending[tx.ID] = tx
	s.seen[tx.ID] = true

	s.evHandler("database: addTransaction: ADDED: id[%s] sender[%s] receiver[%s] amount[%d]", tx.ID, tx.Sender, tx.Receiver, tx.Amount)

	return Added, nil
}

// =============================================================================

// PendingTransactions returns up to limit pending transactions, ordered
// by Timestamp, oldest first (the order the miner takes them in).
// Transactions with equal timestamps have no defined relative order.
func (s *Store) PendingTransactions(limit int) []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]Transaction, 0, len(s.pending))
	for _, tx := range s.pending {
		txs = append(txs, tx)
	}

	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp < txs[j].Timestamp
	})

	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	return txs
}

// Balances returns a copy of the current balance ledger.
func (s *Store) Balances() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.balances))
	for k, v := range s.balances {
		out[k] = v
	}

	return out
}

// GetBlock returns the block with the given hash, querying the full
// inventory including side branches.
func (s *Store) GetBlock(blockHash string) (Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.blocksByHash[blockHash]
	return b, exists
}

// GetBlocks returns every block in the store, in no particular order.
func (s *Store) GetBlocks() []Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := make([]Block, 0, len(s.blocksByHash))
	for _, b := range s.blocksByHash {
		blocks = append(blocks, b)
	}

	return blocks
}

// GetMainChain walks from the current head to genesis via PreviousHash and
// returns the chain in genesis-first order.
func (s *Store) GetMainChain() []Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.blockchainHead == "" {
		return nil
	}

	return s.chainToLocked(s.blockchainHead)
}

// Head returns the current head block and whether one exists yet.
func (s *Store) Head() (Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.blockchainHead == "" {
		return Block{}, false
	}

	b := s.blocksByHash[s.blockchainHead]
	return b, true
}

// GetInventory returns the full snapshot described by spec.md's
// /inventory endpoint.
func (s *Store) GetInventory() Inventory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := make([]string, 0, len(s.blocksByHash))
	for h := range s.blocksByHash {
		blocks = append(blocks, h)
	}
	sort.Strings(blocks)

	txs := make([]Transaction, 0, len(s.pending))
	for _, tx := range s.pending {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Timestamp < txs[j].Timestamp })

	balances := make(map[string]int64, len(s.balances))
	for k, v := range s.balances {
		balances[k] = v
	}

	return Inventory{
		Blocks:       blocks,
		Transactions: txs,
		Balances:     balances,
		Consensus:    s.consensusLocked(),
	}
}

// GetConsensus returns just the consensus summary.
func (s *Store) GetConsensus() Consensus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.consensusLocked()
}

func (s *Store) consensusLocked() Consensus {
	if s.blockchainHead == "" {
		return Consensus{TotalBlocks: len(s.blocksByHash)}
	}

	head := s.blocksByHash[s.blockchainHead]
	height := s.heightOf[s.blockchainHead]

	return Consensus{
		CurrentHead:  s.blockchainHead,
		ChainHeight:  height,
		HeadBlock:    head,
		TotalBlocks:  len(s.blocksByHash),
		ForkedBlocks: len(s.blocksByHash) - (height + 1),
	}
}
