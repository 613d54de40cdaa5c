package core

import "tripgroups/pkg/domain"

// Compatibility distribution thresholds on the 0..100 scale.
const (
	excellentThreshold = 85
	goodThreshold      = 70
	moderateThreshold  = 50
)

// CompatibilityDistribution counts groups per compatibility band.
type CompatibilityDistribution struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Moderate  int `json:"moderate"`
	Poor      int `json:"poor"`
}

// Statistics summarises the current group arrangement.
type Statistics struct {
	TotalGroups          int                       `json:"total_groups"`
	TotalParticipants    int                       `json:"total_participants"`
	AverageGroupSize     float64                   `json:"average_group_size"`
	AverageCompatibility float64                   `json:"average_compatibility"`
	Distribution         CompatibilityDistribution `json:"distribution"`
	EmptyGroups          int                       `json:"empty_groups"`
	FullGroups           int                       `json:"full_groups"`
}

// Calculate derives aggregate figures from groups. Every group is
// bucketed, including empty ones, which score neutral and land in Poor.
func Calculate(groups []domain.Group) Statistics {
	stats := Statistics{TotalGroups: len(groups)}
	if len(groups) == 0 {
		return stats
	}
	var scoreSum float64
	for _, g := range groups {
		stats.TotalParticipants += len(g.Participants)
		if len(g.Participants) == 0 {
			stats.EmptyGroups++
		}
		if g.IsFull() {
			stats.FullGroups++
		}
		score := g.Compatibility.AverageScore
		scoreSum += score
		switch {
		case score >= excellentThreshold:
			stats.Distribution.Excellent++
		case score >= goodThreshold:
			stats.Distribution.Good++
		case score >= moderateThreshold:
			stats.Distribution.Moderate++
		default:
			stats.Distribution.Poor++
		}
	}
	n := float64(len(groups))
	stats.AverageGroupSize = float64(stats.TotalParticipants) / n
	stats.AverageCompatibility = scoreSum / n
	return stats
}
