package core

import "tripgroups/pkg/domain"

// Rule names double as error mapping keys when a transaction is blocked.
const (
	ruleGroupCapacity       = "group_capacity"
	ruleExclusiveMembership = "exclusive_membership"
	ruleGroupStructure      = "group_structure"
)

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewGroupStructureRule())
	engine.Register(NewExclusiveMembershipRule())
	engine.Register(NewGroupCapacityRule())
	return engine
}

// codeForRule maps a blocking rule to the error code surfaced to callers.
func codeForRule(rule string) domain.Code {
	switch rule {
	case ruleGroupCapacity:
		return domain.CodeCapacityExceeded
	case ruleExclusiveMembership:
		return domain.CodeAlreadyAssigned
	default:
		return domain.CodeInvalidState
	}
}
