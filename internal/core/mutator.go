package core

import (
	"context"
	"errors"
	"fmt"

	"tripgroups/pkg/domain"
)

// CreateGroup appends an empty group. An empty name becomes "Group N" and any
// non-positive maxSize, negative included, falls back to the default group
// size so creation never fails on capacity input.
func (e *Engine) CreateGroup(ctx context.Context, name string, maxSize int) (domain.Group, error) {
	var created domain.Group
	err := e.run(ctx, "create_group", func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		if maxSize <= 0 {
			maxSize = e.defaultGroupSize
		}
		if name == "" {
			name = fmt.Sprintf("Group %d", len(e.state.groups)+1)
		}
		group := domain.Group{
			ID:            domain.GroupID(e.newID()),
			Name:          name,
			Participants:  []domain.Participant{},
			MaxSize:       maxSize,
			Compatibility: domain.NeutralCompatibility(),
		}
		_, err := e.runInTransaction(ctx, func(tx *transaction) error {
			g, err := tx.createGroup(group)
			if err != nil {
				return err
			}
			created = g
			return nil
		})
		if err != nil {
			return err
		}
		e.commitHistoryLocked("create_group")
		return nil
	})
	return created, err
}

// AddParticipantToGroup appends an available, unassigned participant to a
// group with spare capacity.
func (e *Engine) AddParticipantToGroup(ctx context.Context, participantID domain.ParticipantID, groupID domain.GroupID) (domain.Group, error) {
	var updated domain.Group
	err := e.run(ctx, "add_participant", func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		g, err := e.addLocked(ctx, participantID, groupID)
		if err != nil {
			return err
		}
		updated = g
		e.commitHistoryLocked("add_participant")
		return nil
	})
	return updated, err
}

// RemoveParticipantFromGroup removes a member from a group. The participant
// becomes unassigned.
func (e *Engine) RemoveParticipantFromGroup(ctx context.Context, participantID domain.ParticipantID, groupID domain.GroupID) (domain.Group, error) {
	var updated domain.Group
	err := e.run(ctx, "remove_participant", func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		if _, _, err := e.removeLocked(ctx, participantID, groupID); err != nil {
			return err
		}
		i, _ := e.state.findGroup(groupID)
		updated = domain.CloneGroup(e.state.groups[i])
		e.commitHistoryLocked("remove_participant")
		return nil
	})
	return updated, err
}

// MoveParticipant removes a participant from one group and adds it to
// another as two committed steps. When the add fails the participant is put
// back at its original position and the add error is returned. If that
// compensation fails too the error carries CodeInternal and the participant
// is left unassigned.
func (e *Engine) MoveParticipant(ctx context.Context, participantID domain.ParticipantID, fromGroupID, toGroupID domain.GroupID) (domain.Group, error) {
	var updated domain.Group
	err := e.run(ctx, "move_participant", func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		revision := e.revision
		removed, at, err := e.removeLocked(ctx, participantID, fromGroupID)
		if err != nil {
			return err
		}
		g, addErr := e.addLocked(ctx, participantID, toGroupID)
		if addErr == nil {
			updated = g
			e.commitHistoryLocked("move_participant")
			return nil
		}

		_, compErr := e.runInTransaction(ctx, func(tx *transaction) error {
			_, err := tx.insertMember(fromGroupID, at, removed)
			return err
		})
		if compErr != nil {
			e.logger.Error("move compensation failed; participant left unassigned",
				"participant_id", string(participantID), "from_group_id", string(fromGroupID),
				"to_group_id", string(toGroupID), "add_error", addErr, "compensation_error", compErr)
			return domain.WrapError(domain.CodeInternal,
				fmt.Sprintf("move of participant %s failed and could not be reverted", participantID),
				errors.Join(addErr, compErr)).
				WithMetadata("participant_id", string(participantID), "from_group_id", string(fromGroupID))
		}
		// The structure is back where it started.
		e.revision = revision
		e.pruneScoresLocked()
		return addErr
	})
	return updated, err
}

// DeleteGroup removes a group; its members become unassigned.
func (e *Engine) DeleteGroup(ctx context.Context, groupID domain.GroupID) error {
	return e.run(ctx, "delete_group", func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		if _, err := e.runInTransaction(ctx, func(tx *transaction) error {
			return tx.deleteGroup(groupID)
		}); err != nil {
			return err
		}
		e.commitHistoryLocked("delete_group")
		return nil
	})
}

// addLocked validates and commits a single add. Checks run in a fixed order
// so the first failing precondition determines the error.
func (e *Engine) addLocked(ctx context.Context, participantID domain.ParticipantID, groupID domain.GroupID) (domain.Group, error) {
	participant, ok := e.state.findAvailable(participantID)
	if !ok {
		return domain.Group{}, domain.ErrNotFound(domain.EntityParticipant, string(participantID))
	}
	i, ok := e.state.findGroup(groupID)
	if !ok {
		return domain.Group{}, domain.ErrNotFound(domain.EntityGroup, string(groupID))
	}
	if holder, assigned := e.state.isAssignedAnywhere(participantID); assigned {
		return domain.Group{}, domain.ErrAlreadyAssigned(participantID, holder)
	}
	if !hasCapacity(e.state.groups[i]) {
		return domain.Group{}, domain.ErrCapacityExceeded(e.state.groups[i])
	}

	var updated domain.Group
	_, err := e.runInTransaction(ctx, func(tx *transaction) error {
		g, err := tx.insertMember(groupID, -1, participant)
		if err != nil {
			return err
		}
		updated = g
		return nil
	})
	if err != nil {
		return domain.Group{}, err
	}
	return updated, nil
}

// removeLocked commits a single removal and returns the removed participant
// with its former position.
func (e *Engine) removeLocked(ctx context.Context, participantID domain.ParticipantID, groupID domain.GroupID) (domain.Participant, int, error) {
	var (
		removed domain.Participant
		at      int
	)
	_, err := e.runInTransaction(ctx, func(tx *transaction) error {
		p, idx, err := tx.removeMember(groupID, participantID)
		if err != nil {
			return err
		}
		removed, at = p, idx
		return nil
	})
	if err != nil {
		return domain.Participant{}, -1, err
	}
	return removed, at, nil
}
