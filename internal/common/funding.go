package common

import (
	"fmt"

	"stream-escrow-go/internal/amount"

	"github.com/shopspring/decimal"
)

// FundingEntry credits one account from outside the ledger.
type FundingEntry struct {
	Account      string `yaml:"account"`
	Asset        string `yaml:"asset"`
	Amount       string `yaml:"amount"`
	ExternalTxId string `yaml:"external_tx_id"`
}

type FundingPlan struct {
	Funding []FundingEntry `yaml:"funding"`
}

// ParsedAmount returns the entry's amount as a whole-unit decimal.
func (f FundingEntry) ParsedAmount() (decimal.Decimal, error) {
	return amount.Parse(f.Amount)
}

// LoadFundingPlan reads the initial balances used by the setup command.
// Amounts are strings so values above 2^53 survive YAML decoding.
func LoadFundingPlan(path string) ([]FundingEntry, error) {
	var plan FundingPlan
	if err := readYaml(path, &plan); err != nil {
		return nil, err
	}

	for i, entry := range plan.Funding {
		if entry.Account == "" {
			return nil, fmt.Errorf("funding entry %d missing account", i)
		}
		value, err := entry.ParsedAmount()
		if err != nil {
			return nil, fmt.Errorf("funding entry %d: %w", i, err)
		}
		if !value.IsPositive() {
			return nil, fmt.Errorf("funding entry %d: amount must be positive", i)
		}
	}

	return plan.Funding, nil
}
