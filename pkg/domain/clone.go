package domain

import (
	"encoding/json"
	"sort"
)

// CloneParticipant returns an independent copy of p.
func CloneParticipant(p Participant) Participant { return p }

// CloneParticipants copies a participant slice. A nil input stays nil.
func CloneParticipants(in []Participant) []Participant {
	if in == nil {
		return nil
	}
	out := make([]Participant, len(in))
	copy(out, in)
	return out
}

// CloneCompatibility deep copies pairwise scores and the opaque dynamics blob.
func CloneCompatibility(c Compatibility) Compatibility {
	cp := c
	if c.PairwiseScores != nil {
		cp.PairwiseScores = append([]PairwiseScore(nil), c.PairwiseScores...)
	}
	if c.GroupDynamics != nil {
		cp.GroupDynamics = append(json.RawMessage(nil), c.GroupDynamics...)
	}
	return cp
}

// CloneGroup returns a group that shares no mutable memory with g.
func CloneGroup(g Group) Group {
	cp := g
	cp.Participants = CloneParticipants(g.Participants)
	if cp.Participants == nil {
		cp.Participants = []Participant{}
	}
	cp.Compatibility = CloneCompatibility(g.Compatibility)
	return cp
}

// CloneGroups deep copies an ordered group collection.
func CloneGroups(in []Group) []Group {
	out := make([]Group, len(in))
	for i, g := range in {
		out[i] = CloneGroup(g)
	}
	return out
}

// CloneConfiguration deep copies a configuration including its snapshot.
func CloneConfiguration(c GroupConfiguration) GroupConfiguration {
	cp := c
	cp.Snapshot = CloneGroups(c.Snapshot)
	return cp
}

// CloneConfigurations deep copies a configuration list.
func CloneConfigurations(in []GroupConfiguration) []GroupConfiguration {
	out := make([]GroupConfiguration, len(in))
	for i, c := range in {
		out[i] = CloneConfiguration(c)
	}
	return out
}

// ClonePersistedState deep copies the durable projection.
func ClonePersistedState(s PersistedState) PersistedState {
	return PersistedState{
		SelectedAdventure:   s.SelectedAdventure,
		Groups:              CloneGroups(s.Groups),
		Participants:        CloneParticipants(s.Participants),
		GroupConfigurations: CloneConfigurations(s.GroupConfigurations),
	}
}

// TotalParticipants counts members across all groups.
func TotalParticipants(groups []Group) int {
	total := 0
	for _, g := range groups {
		total += len(g.Participants)
	}
	return total
}

// SortConfigurations orders records newest first, breaking ties by ID.
func SortConfigurations(records []GroupConfiguration) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
