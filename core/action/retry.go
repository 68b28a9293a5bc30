package action

// RetryConfig bounds the extra attempts made after a non-success status.
type RetryConfig struct {
	Count  int `json:"count"`
	TimeMs int `json:"time_ms"`
}

// Normalize replaces negative values with zero so a missing or invalid
// policy means a single attempt.
func (c RetryConfig) Normalize() RetryConfig {
	if c.Count < 0 {
		c.Count = 0
	}
	if c.TimeMs < 0 {
		c.TimeMs = 0
	}
	return c
}
