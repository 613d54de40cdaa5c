package core

import (
	"context"

	"tripgroups/pkg/domain"
)

// Persistable returns the durable projection of the session. History,
// pending recomputes and warnings are not part of it.
func (e *Engine) Persistable() domain.PersistedState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.PersistedState{
		SelectedAdventure:   e.adventureID,
		Groups:              domain.CloneGroups(e.state.groups),
		Participants:        domain.CloneParticipants(e.state.participants),
		GroupConfigurations: domain.CloneConfigurations(e.configs),
	}
}

// Restore replaces the session with a persisted projection. The state is
// checked against the membership rules first; a violating state is rejected
// with CodeInvalidState and nothing changes. The available pool is fetched
// again for the persisted adventure; without a selected adventure or a
// participant source it stays empty. A failed fetch is reported with
// CodeFetch and leaves the session untouched. History restarts from the
// restored groups.
func (e *Engine) Restore(ctx context.Context, state domain.PersistedState) error {
	return e.run(ctx, "restore", func(ctx context.Context) error {
		state = domain.ClonePersistedState(state)
		candidate := groupState{
			participants: dedupeParticipants(state.Participants),
			groups:       state.Groups,
		}
		if e.rules != nil {
			res, err := e.rules.Evaluate(ctx, newStateView(&candidate), nil)
			if err != nil {
				return domain.WrapError(domain.CodeInternal, "evaluate rules", err)
			}
			if v, blocked := res.FirstBlocking(); blocked {
				return domain.WrapError(domain.CodeInvalidState, "persisted state violates "+v.Rule+": "+v.Message, domain.RuleViolationError{Result: res}).
					WithMetadata("rule", v.Rule, "entity_id", v.EntityID)
			}
		}
		if state.SelectedAdventure != "" && e.source != nil {
			fetched, err := e.source.FetchParticipants(ctx, state.SelectedAdventure)
			if err != nil {
				return domain.WrapError(domain.CodeFetch, "fetch participants for adventure "+state.SelectedAdventure, err).
					WithMetadata("adventure_id", state.SelectedAdventure)
			}
			candidate.available = dedupeParticipants(fetched)
			candidate.participants = mergeParticipants(candidate.participants, candidate.available)
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		e.scores = make(map[scoreKey]domain.Compatibility)
		for i := range candidate.groups {
			candidate.groups[i].Version = e.nextVersion()
			candidate.groups[i].Compatibility = normalizeCompatibility(candidate.groups[i].Compatibility)
		}
		e.state = candidate
		e.adventureID = state.SelectedAdventure
		e.configs = sortConfigurations(state.GroupConfigurations)
		e.revision++
		e.cacheScoresLocked(e.state.groups)
		e.history.Reset(e.state.groups, e.clock.Now())
		e.recomputeNeutralLocked()
		e.logger.Info("session restored", "adventure_id", e.adventureID, "groups", len(e.state.groups))
		return nil
	})
}
