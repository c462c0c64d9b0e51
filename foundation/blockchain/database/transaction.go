package database

import (
	"fmt"
	"time"

	"github.com/overlaychain/node/foundation/blockchain/hash"
	"github.com/overlaychain/node/foundation/blockchain/identity"
)

// Transaction is the unsigned transfer of value from one node identity to
// another. Once accepted into the pending pool it is immutable.
type Transaction struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    int64  `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// NewTransaction constructs a transaction with a fresh id and the current
// timestamp, validating the fields spec.md requires of any transaction.
func NewTransaction(sender, receiver string, amount int64) (Transaction, error) {
	if err := identity.Validate(sender); err != nil {
		return Transaction{}, fmt.Errorf("sender: %w", err)
	}
	if err := identity.Validate(receiver); err != nil {
		return Transaction{}, fmt.Errorf("receiver: %w", err)
	}
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("amount must be positive, got %d", amount)
	}

	tx := Transaction{
		ID:        identity.New(),
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Timestamp: time.Now().UTC().UnixNano(),
	}

	return tx, nil
}

// Validate reports whether the transaction is well formed, independent of
// any balance check against chain state.
func (tx Transaction) Validate() error {
	if tx.ID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if tx.Sender == "" || tx.Receiver == "" {
		return fmt.Errorf("sender and receiver are required")
	}
	if tx.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", tx.Amount)
	}

	return nil
}

// Hash implements merkle.Hashable by hashing the transaction's canonical
// JSON representation.
func (tx Transaction) Hash() ([]byte, error) {
	data, err := hash.CanonicalJSON(tx)
	if err != nil {
		return nil, err
	}

	return hash.Sum256(data), nil
}

// Equals implements merkle.Hashable. Two transactions are the same
// transaction if they share an id.
func (tx Transaction) Equals(other Transaction) bool {
	return tx.ID == other.ID
}
