// Package domain defines the participant and group records, the coded error
// taxonomy, rule evaluation primitives, and the collaborator contracts used
// by the tripgroups assignment engine.
package domain

import (
	"encoding/json"
	"time"
)

// EntityType identifies the type of record touched by a change.
type EntityType string

// Supported entity type identifiers used in Change records.
const (
	// EntityGroup identifies a group record.
	EntityGroup EntityType = "group"
	// EntityParticipant identifies a participant record.
	EntityParticipant EntityType = "participant"
	// EntityConfiguration identifies a saved group configuration.
	EntityConfiguration EntityType = "group_configuration"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// ParticipantID identifies a trip participant.
type ParticipantID string

// GroupID identifies a group within an engine session.
type GroupID string

// Participant is a person eligible for group assignment. ProfileRef points
// into an external profile store and is never interpreted by the engine.
type Participant struct {
	ID         ParticipantID `json:"id"`
	ProfileRef string        `json:"profile_ref,omitempty"`
}

// PairwiseScore is the compatibility between two specific participants.
type PairwiseScore struct {
	A     ParticipantID `json:"a"`
	B     ParticipantID `json:"b"`
	Score float64       `json:"score"`
}

// Compatibility summarises how well a group's members fit together.
// AverageScore ranges over 0..100. GroupDynamics is opaque scorer output.
type Compatibility struct {
	AverageScore   float64         `json:"average_score"`
	PairwiseScores []PairwiseScore `json:"pairwise_scores,omitempty"`
	GroupDynamics  json.RawMessage `json:"group_dynamics,omitempty"`
}

// NeutralCompatibility returns the zero compatibility state used for empty
// groups and failed recomputes.
func NeutralCompatibility() Compatibility {
	return Compatibility{}
}

// IsNeutral reports whether c carries no score information.
func (c Compatibility) IsNeutral() bool {
	return c.AverageScore == 0 && len(c.PairwiseScores) == 0 && len(c.GroupDynamics) == 0
}

// Group is a capacity-bounded, ordered collection of participants.
//
// Version changes on every membership mutation and is used to discard
// compatibility results computed against an older membership.
type Group struct {
	ID            GroupID       `json:"id"`
	Name          string        `json:"name"`
	Participants  []Participant `json:"participants"`
	MaxSize       int           `json:"max_size"`
	Compatibility Compatibility `json:"compatibility"`
	Version       uint64        `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
}

// HasMember reports whether the participant belongs to the group.
func (g Group) HasMember(id ParticipantID) bool {
	return g.MemberIndex(id) >= 0
}

// MemberIndex returns the position of the participant in the group or -1.
func (g Group) MemberIndex(id ParticipantID) int {
	for i, p := range g.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// HasCapacity reports whether one more participant fits.
func (g Group) HasCapacity() bool {
	return len(g.Participants) < g.MaxSize
}

// IsFull reports whether the group is at capacity.
func (g Group) IsFull() bool {
	return g.MaxSize > 0 && len(g.Participants) >= g.MaxSize
}

// OptimizeOptions are passed through to the optimizer untouched except for
// GroupSize, which the engine defaults when zero.
type OptimizeOptions struct {
	GroupSize        int               `json:"group_size"`
	MaxGroups        int               `json:"max_groups,omitempty"`
	Strategy         string            `json:"strategy,omitempty"`
	MinCompatibility float64           `json:"min_compatibility,omitempty"`
	Constraints      map[string]string `json:"constraints,omitempty"`
}

// GroupConfiguration is a named, persisted snapshot of a group arrangement.
// Records are created by an explicit save and never mutated afterwards.
type GroupConfiguration struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	AdventureID       string    `json:"adventure_id"`
	VendorID          string    `json:"vendor_id"`
	GroupCount        int       `json:"group_count"`
	TotalParticipants int       `json:"total_participants"`
	Snapshot          []Group   `json:"snapshot"`
	CreatedAt         time.Time `json:"created_at"`
}

// PersistedState is the durable projection of an engine session. Transient
// fields such as history, pending recomputes and warnings are excluded.
type PersistedState struct {
	SelectedAdventure   string               `json:"selected_adventure"`
	Groups              []Group              `json:"groups"`
	Participants        []Participant        `json:"participants"`
	GroupConfigurations []GroupConfiguration `json:"group_configurations"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured for rule evaluation.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
