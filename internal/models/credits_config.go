package models

// CreditsConfig tunes the credits ledger. Baseline is the balance every
// account is provisioned with and reset to at each monthly boundary.
type CreditsConfig struct {
	Baseline           int64 `json:"baseline,omitzero" yaml:"baseline"`
	SweepIntervalMin   int   `json:"sweep_interval_minutes,omitzero" yaml:"sweep_interval_minutes"`
	SweepEnabled       bool  `json:"sweep_enabled,omitzero" yaml:"sweep_enabled"`
	UsageHistoryLimit  int   `json:"usage_history_limit,omitzero" yaml:"usage_history_limit"`
	UsageHistoryMaxCap int   `json:"usage_history_max_cap,omitzero" yaml:"usage_history_max_cap"`
}

const (
	// DefaultCreditsBaseline is the monthly free allowance.
	DefaultCreditsBaseline int64 = 100
	// DefaultUsageHistoryLimit caps balance-query ledger pages.
	DefaultUsageHistoryLimit = 10
	// MaxUsageHistoryLimit is the hard cap a client may request.
	MaxUsageHistoryLimit = 100
)

func (c *CreditsConfig) BaselineOrDefault() int64 {
	if c == nil || c.Baseline <= 0 {
		return DefaultCreditsBaseline
	}
	return c.Baseline
}
