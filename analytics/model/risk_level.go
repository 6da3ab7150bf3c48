package model

// RiskLevel classifies how urgently a habit needs attention.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskWarning  RiskLevel = "warning"
	RiskGood     RiskLevel = "good"
)

// Rank orders levels for prioritization: critical < warning < good.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskCritical:
		return 0
	case RiskWarning:
		return 1
	default:
		return 2
	}
}
