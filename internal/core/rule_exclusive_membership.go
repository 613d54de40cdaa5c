package core

import (
	"context"
	"fmt"

	"tripgroups/pkg/domain"
)

// NewExclusiveMembershipRule returns the rule ensuring a participant belongs
// to at most one group.
func NewExclusiveMembershipRule() domain.Rule {
	return exclusiveMembershipRule{}
}

type exclusiveMembershipRule struct{}

func (exclusiveMembershipRule) Name() string { return ruleExclusiveMembership }

func (exclusiveMembershipRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	owner := make(map[domain.ParticipantID]domain.GroupID)
	res := domain.Result{}
	for _, group := range view.ListGroups() {
		for _, p := range group.Participants {
			prev, seen := owner[p.ID]
			if !seen {
				owner[p.ID] = group.ID
				continue
			}
			where := fmt.Sprintf("groups %s and %s", prev, group.ID)
			if prev == group.ID {
				where = fmt.Sprintf("group %s twice", group.ID)
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     ruleExclusiveMembership,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("participant %s assigned to %s", p.ID, where),
				Entity:   domain.EntityParticipant,
				EntityID: string(p.ID),
			})
		}
	}
	return res, nil
}
