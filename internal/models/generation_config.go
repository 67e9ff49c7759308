package models

// GenerationConfig configures the external image-model gateway.
type GenerationConfig struct {
	Endpoint    string           `json:"endpoint" yaml:"endpoint"`
	APIKey      string           `json:"api_key" yaml:"api_key"`
	TimeoutMs   int              `json:"timeout_ms,omitzero" yaml:"timeout_ms"`
	DefaultCost int64            `json:"default_cost,omitzero" yaml:"default_cost"`
	ActionCosts map[string]int64 `json:"action_costs,omitempty" yaml:"action_costs,omitempty"`

	RateLimitPerMinute int `json:"rate_limit_per_minute,omitzero" yaml:"rate_limit_per_minute"`

	WorkerPoolSize   int `json:"worker_pool_size,omitzero" yaml:"worker_pool_size"`
	WorkerBufferSize int `json:"worker_buffer_size,omitzero" yaml:"worker_buffer_size"`
}

// CostFor resolves the credit cost of an action, falling back to the
// default per-image cost.
func (g *GenerationConfig) CostFor(actionType string) int64 {
	if g != nil {
		if cost, ok := g.ActionCosts[actionType]; ok && cost > 0 {
			return cost
		}
		if g.DefaultCost > 0 {
			return g.DefaultCost
		}
	}
	return 1
}
