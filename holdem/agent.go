package holdem

import "fmt"

// AgentType distinguishes humans from the three bot strategies.
type AgentType string

const (
	AgentHuman AgentType = "human"
	AgentFish  AgentType = "fish"
	AgentTAG   AgentType = "tag"
	AgentLAG   AgentType = "lag"
)

// ParseAgentType reads the wire form of an agent type.
func ParseAgentType(s string) (AgentType, error) {
	switch AgentType(s) {
	case AgentHuman, AgentFish, AgentTAG, AgentLAG:
		return AgentType(s), nil
	}
	return "", fmt.Errorf("invalid agent type: %q", s)
}

// Agent is a player identity. The same agent value is shared between the
// registry and the seat that holds it, so lifetime counters update in place.
// Profit accrues once per completed hand (and on mid-hand departure), never
// from a raw stack-minus-buy-in difference, so persisted and live numbers
// stay additive.
type Agent struct {
	ID            string
	Name          string
	Type          AgentType
	WalletAddress string

	HandsPlayed int64
	HandsWon    int64
	Profit      int64
}

// IsBot reports whether the agent is machine operated.
func (a *Agent) IsBot() bool {
	return a != nil && a.Type != AgentHuman
}
