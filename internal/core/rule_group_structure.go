package core

import (
	"context"
	"fmt"

	"tripgroups/pkg/domain"
)

// NewGroupStructureRule returns the rule rejecting empty or duplicate group
// ids and non-positive capacities.
func NewGroupStructureRule() domain.Rule {
	return groupStructureRule{}
}

type groupStructureRule struct{}

func (groupStructureRule) Name() string { return ruleGroupStructure }

func (groupStructureRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	seen := make(map[domain.GroupID]struct{})
	res := domain.Result{}
	block := func(id domain.GroupID, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     ruleGroupStructure,
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityGroup,
			EntityID: string(id),
		})
	}
	for _, group := range view.ListGroups() {
		if group.ID == "" {
			block(group.ID, fmt.Sprintf("group %q has no id", group.Name))
			continue
		}
		if _, dup := seen[group.ID]; dup {
			block(group.ID, fmt.Sprintf("duplicate group id %s", group.ID))
		}
		seen[group.ID] = struct{}{}
		if group.MaxSize <= 0 {
			block(group.ID, fmt.Sprintf("group %s has non-positive capacity %d", group.ID, group.MaxSize))
		}
	}
	return res, nil
}
