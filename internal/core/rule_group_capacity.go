package core

import (
	"context"
	"fmt"

	"tripgroups/pkg/domain"
)

// NewGroupCapacityRule returns the in-transaction rule enforcing group capacity.
func NewGroupCapacityRule() domain.Rule {
	return groupCapacityRule{}
}

type groupCapacityRule struct{}

func (groupCapacityRule) Name() string { return ruleGroupCapacity }

func (groupCapacityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, group := range view.ListGroups() {
		count := len(group.Participants)
		if count > group.MaxSize {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     ruleGroupCapacity,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("group %s (%s) over capacity: %d/%d participants", group.Name, group.ID, count, group.MaxSize),
				Entity:   domain.EntityGroup,
				EntityID: string(group.ID),
			})
		}
	}
	return res, nil
}
