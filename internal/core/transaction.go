package core

import (
	"context"
	"time"

	"tripgroups/pkg/domain"
)

// transaction mutates a cloned groupState. Nothing it does is visible until
// runInTransaction commits it.
type transaction struct {
	engine  *Engine
	state   groupState
	changes []domain.Change
	touched []domain.GroupID
	now     time.Time
}

// runInTransaction clones the engine state, applies fn, evaluates the rules
// engine against the result and commits when no blocking violation exists.
// Callers must hold e.mu.
func (e *Engine) runInTransaction(ctx context.Context, fn func(tx *transaction) error) (domain.Result, error) {
	tx := &transaction{
		engine: e,
		state:  e.state.clone(),
		now:    e.clock.Now(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if e.rules != nil {
		res, err := e.rules.Evaluate(ctx, newStateView(&tx.state), tx.changes)
		if err != nil {
			return domain.Result{}, domain.WrapError(domain.CodeInternal, "evaluate rules", err)
		}
		result = res
		if v, blocked := res.FirstBlocking(); blocked {
			return res, domain.WrapError(codeForRule(v.Rule), v.Message, domain.RuleViolationError{Result: res}).
				WithMetadata("rule", v.Rule, "entity_id", v.EntityID)
		}
	}

	e.state = tx.state
	e.revision++
	for _, v := range result.Violations {
		e.logger.Warn("rule violation", "rule", v.Rule, "severity", string(v.Severity), "entity_id", v.EntityID, "message", v.Message)
	}
	for _, id := range tx.touched {
		e.scheduleRecompute(id)
	}
	return result, nil
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// bump assigns a fresh version to the group at index i and marks it for a
// compatibility recompute once committed. Empty groups drop to neutral.
func (tx *transaction) bump(i int) {
	g := &tx.state.groups[i]
	g.Version = tx.engine.nextVersion()
	if len(g.Participants) == 0 {
		g.Compatibility = domain.NeutralCompatibility()
		return
	}
	for _, id := range tx.touched {
		if id == g.ID {
			return
		}
	}
	tx.touched = append(tx.touched, g.ID)
}

func (tx *transaction) createGroup(g domain.Group) (domain.Group, error) {
	if _, exists := tx.state.findGroup(g.ID); exists {
		return domain.Group{}, domain.NewError(domain.CodeInvalidState, "group "+string(g.ID)+" already exists")
	}
	g = domain.CloneGroup(g)
	g.Version = tx.engine.nextVersion()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = tx.now
	}
	tx.state.groups = append(tx.state.groups, g)
	tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionCreate, After: domain.CloneGroup(g)})
	return domain.CloneGroup(g), nil
}

// insertMember places p at position at in the group, appending when at is
// out of range.
func (tx *transaction) insertMember(id domain.GroupID, at int, p domain.Participant) (domain.Group, error) {
	i, ok := tx.state.findGroup(id)
	if !ok {
		return domain.Group{}, domain.ErrNotFound(domain.EntityGroup, string(id))
	}
	before := domain.CloneGroup(tx.state.groups[i])
	members := tx.state.groups[i].Participants
	if at < 0 || at > len(members) {
		at = len(members)
	}
	members = append(members, domain.Participant{})
	copy(members[at+1:], members[at:])
	members[at] = p
	tx.state.groups[i].Participants = members
	tx.bump(i)
	after := domain.CloneGroup(tx.state.groups[i])
	tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionUpdate, Before: before, After: after})
	return after, nil
}

// removeMember drops the participant from the group and reports its former
// position.
func (tx *transaction) removeMember(id domain.GroupID, pid domain.ParticipantID) (domain.Participant, int, error) {
	i, ok := tx.state.findGroup(id)
	if !ok {
		return domain.Participant{}, -1, domain.ErrNotFound(domain.EntityGroup, string(id))
	}
	at := tx.state.groups[i].MemberIndex(pid)
	if at < 0 {
		return domain.Participant{}, -1, domain.ErrNotFound(domain.EntityParticipant, string(pid)).
			WithMetadata("group_id", string(id))
	}
	before := domain.CloneGroup(tx.state.groups[i])
	members := tx.state.groups[i].Participants
	removed := members[at]
	tx.state.groups[i].Participants = append(members[:at:at], members[at+1:]...)
	tx.bump(i)
	tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionUpdate, Before: before, After: domain.CloneGroup(tx.state.groups[i])})
	return removed, at, nil
}

func (tx *transaction) deleteGroup(id domain.GroupID) error {
	i, ok := tx.state.findGroup(id)
	if !ok {
		return domain.ErrNotFound(domain.EntityGroup, string(id))
	}
	before := domain.CloneGroup(tx.state.groups[i])
	tx.state.groups = append(tx.state.groups[:i:i], tx.state.groups[i+1:]...)
	tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionDelete, Before: before})
	return nil
}

// replaceGroups swaps the entire collection. Groups are stored as given;
// versions must already be assigned.
func (tx *transaction) replaceGroups(groups []domain.Group) {
	before := domain.CloneGroups(tx.state.groups)
	tx.state.groups = domain.CloneGroups(groups)
	for _, g := range before {
		tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionDelete, Before: g})
	}
	for _, g := range tx.state.groups {
		tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionCreate, After: domain.CloneGroup(g)})
	}
}
