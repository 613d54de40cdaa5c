package domain

import "context"

// ParticipantSource loads the participants eligible for an adventure.
type ParticipantSource interface {
	FetchParticipants(ctx context.Context, adventureID string) ([]Participant, error)
}

// CompatibilityScorer computes a compatibility summary for a participant set.
// Implementations may be slow; the engine calls them off the mutation path.
type CompatibilityScorer interface {
	ComputeCompatibility(ctx context.Context, participants []Participant) (Compatibility, error)
}

// Optimizer partitions an unassigned pool into candidate groups. Timeouts and
// cancellation are the implementation's responsibility.
type Optimizer interface {
	OptimizePartition(ctx context.Context, participants []Participant, opts OptimizeOptions) ([]Group, error)
}

// ConfigurationStore persists named group arrangements.
type ConfigurationStore interface {
	// CreateConfiguration stores record and returns it with its assigned ID.
	CreateConfiguration(ctx context.Context, record GroupConfiguration) (GroupConfiguration, error)
	// ListConfigurations returns every configuration owned by vendorID, newest first.
	ListConfigurations(ctx context.Context, vendorID string) ([]GroupConfiguration, error)
}

// StateStore persists the durable projection of engine sessions under a key.
type StateStore interface {
	SaveState(ctx context.Context, key string, state PersistedState) error
	// LoadState returns false when no state exists for key.
	LoadState(ctx context.Context, key string) (PersistedState, bool, error)
}
