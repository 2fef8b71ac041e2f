// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time         `json:"date"`
	ChainID       uint16            `json:"chain_id"`        // Unique id for this chain.
	TransPerBlock uint16            `json:"trans_per_block"` // Maximum number of transactions that can be in a block.
	Difficulty    uint              `json:"difficulty"`      // Number of leading zero bits required to solve the work problem.
	Balances      map[string]uint64 `json:"balances"`        // Accounts funded at block zero.
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}
