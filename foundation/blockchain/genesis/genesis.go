// Package genesis maintains the tunable parameters used to size and seed
// a fresh chain.
package genesis

// Default values match spec: 4 leading hex zeros, 10 transactions per
// mined block, a 100 coin genesis endowment for the chain's creator.
const (
	DefaultDifficulty    = 4
	DefaultMaxTxPerBlock = 10
	DefaultEndowment     = 100
)

// Genesis holds the parameters a ConsensusEngine is configured with.
type Genesis struct {
	Difficulty    int   `conf:"default:4"`
	MaxTxPerBlock int   `conf:"default:10"`
	Endowment     int64 `conf:"default:100"`
}

// Default returns the genesis configuration spec.md assumes when no
// overrides are supplied.
func Default() Genesis {
	return Genesis{
		Difficulty:    DefaultDifficulty,
		MaxTxPerBlock: DefaultMaxTxPerBlock,
		Endowment:     DefaultEndowment,
	}
}
