package core

import "tripgroups/pkg/domain"

// groupState is the canonical participant/group data owned by an Engine.
// Only transactions replace it; every read hands out clones.
type groupState struct {
	participants []domain.Participant
	available    []domain.Participant
	groups       []domain.Group
}

func (s groupState) clone() groupState {
	return groupState{
		participants: domain.CloneParticipants(s.participants),
		available:    domain.CloneParticipants(s.available),
		groups:       domain.CloneGroups(s.groups),
	}
}

// findGroup returns the index of the group with id.
func (s *groupState) findGroup(id domain.GroupID) (int, bool) {
	for i := range s.groups {
		if s.groups[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// findAvailable returns the participant from the available pool.
func (s *groupState) findAvailable(id domain.ParticipantID) (domain.Participant, bool) {
	for _, p := range s.available {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}

// isAssignedAnywhere reports the group currently holding the participant.
func (s *groupState) isAssignedAnywhere(id domain.ParticipantID) (domain.GroupID, bool) {
	for _, g := range s.groups {
		if g.HasMember(id) {
			return g.ID, true
		}
	}
	return "", false
}

func hasCapacity(g domain.Group) bool {
	return g.HasCapacity()
}

// unassigned returns available participants not held by any group, in pool order.
func (s *groupState) unassigned() []domain.Participant {
	assigned := make(map[domain.ParticipantID]struct{})
	for _, g := range s.groups {
		for _, p := range g.Participants {
			assigned[p.ID] = struct{}{}
		}
	}
	out := make([]domain.Participant, 0, len(s.available))
	for _, p := range s.available {
		if _, ok := assigned[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// mergeParticipants adds fetched participants to the full pool, keeping the
// first occurrence of each id and refreshing profile references.
func mergeParticipants(pool, fetched []domain.Participant) []domain.Participant {
	index := make(map[domain.ParticipantID]int, len(pool))
	out := domain.CloneParticipants(pool)
	for i, p := range out {
		index[p.ID] = i
	}
	for _, p := range fetched {
		if i, ok := index[p.ID]; ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

func dedupeParticipants(in []domain.Participant) []domain.Participant {
	seen := make(map[domain.ParticipantID]struct{}, len(in))
	out := make([]domain.Participant, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// stateView exposes a read-only snapshot of the transactional state to rules.
type stateView struct {
	state *groupState
}

func newStateView(state *groupState) domain.RuleView {
	return stateView{state: state}
}

// ListGroups returns all groups in the snapshot.
func (v stateView) ListGroups() []domain.Group {
	return domain.CloneGroups(v.state.groups)
}

// FindGroup retrieves a group by ID from the snapshot.
func (v stateView) FindGroup(id domain.GroupID) (domain.Group, bool) {
	i, ok := v.state.findGroup(id)
	if !ok {
		return domain.Group{}, false
	}
	return domain.CloneGroup(v.state.groups[i]), true
}

// ListAvailableParticipants returns the fetched pool.
func (v stateView) ListAvailableParticipants() []domain.Participant {
	return domain.CloneParticipants(v.state.available)
}
