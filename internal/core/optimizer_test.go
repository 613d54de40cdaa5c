package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tripgroups/pkg/domain"
)

func TestGenerateOptimalGroupsReplacesCollection(t *testing.T) {
	ctx := context.Background()
	var (
		gotPool []domain.Participant
		gotOpts domain.OptimizeOptions
	)
	optimizer := optimizerFunc(func(_ context.Context, pool []domain.Participant, opts domain.OptimizeOptions) ([]domain.Group, error) {
		gotPool, gotOpts = pool, opts
		return []domain.Group{
			{Participants: []domain.Participant{{ID: "p2"}, {ID: "p3"}}, Compatibility: domain.Compatibility{AverageScore: 88}},
			{ID: "opt-b", Name: "Evening", MaxSize: 5, Participants: []domain.Participant{{ID: "p4"}}},
		}, nil
	})
	e := newTestEngine(t, WithOptimizer(optimizer), WithDefaultGroupSize(3))
	existing := mustCreate(t, e, "Manual", 2)
	mustAdd(t, e, "p1", existing.ID)
	before := e.Groups()

	groups, err := e.GenerateOptimalGroups(ctx, domain.OptimizeOptions{Strategy: "hybrid", Constraints: map[string]string{"gender": "mixed"}})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if len(gotPool) != 5 || gotPool[0].ID != "p2" {
		t.Fatalf("optimizer should see only unassigned participants, got %+v", gotPool)
	}
	if gotOpts.GroupSize != 3 || gotOpts.Strategy != "hybrid" || gotOpts.Constraints["gender"] != "mixed" {
		t.Fatalf("unexpected options passed through: %+v", gotOpts)
	}
	if len(groups) != 2 {
		t.Fatalf("expected the optimizer result to replace every group, got %d", len(groups))
	}
	first := groups[0]
	if first.ID == "" || first.Name != "Group 1" || first.MaxSize != 3 || first.CreatedAt.IsZero() || first.Version == 0 {
		t.Fatalf("expected defaults on first group: %+v", first)
	}
	if first.Participants[0].ProfileRef != "profiles/p2" {
		t.Fatalf("members should be resolved against the pool, got %+v", first.Participants[0])
	}
	if first.Compatibility.AverageScore != 88 {
		t.Fatalf("optimizer score should be kept, got %v", first.Compatibility.AverageScore)
	}
	if groups[1].ID != "opt-b" || groups[1].Name != "Evening" || groups[1].MaxSize != 5 {
		t.Fatalf("explicit fields must survive normalisation: %+v", groups[1])
	}
	if diff := cmp.Diff(groups, e.Groups()); diff != "" {
		t.Fatalf("returned groups differ from live state (-want +got):\n%s", diff)
	}

	if !e.Undo(ctx) {
		t.Fatalf("undo optimize")
	}
	if diff := cmp.Diff(before, e.Groups()); diff != "" {
		t.Fatalf("undo should restore manual groups (-want +got):\n%s", diff)
	}
}

func TestGenerateOptimalGroupsFailures(t *testing.T) {
	ctx := context.Background()

	e := newTestEngine(t)
	_, err := e.GenerateOptimalGroups(ctx, domain.OptimizeOptions{})
	expectCode(t, err, domain.CodeOptimization)

	failing := newTestEngine(t, WithOptimizer(optimizerFunc(func(context.Context, []domain.Participant, domain.OptimizeOptions) ([]domain.Group, error) {
		return nil, errors.New("solver crashed")
	})))
	_, err = failing.GenerateOptimalGroups(ctx, domain.OptimizeOptions{})
	expectCode(t, err, domain.CodeOptimization)

	outside := newTestEngine(t, WithOptimizer(optimizerFunc(func(context.Context, []domain.Participant, domain.OptimizeOptions) ([]domain.Group, error) {
		return []domain.Group{{Participants: []domain.Participant{{ID: "intruder"}}}}, nil
	})))
	mustCreate(t, outside, "Keep", 2)
	_, err = outside.GenerateOptimalGroups(ctx, domain.OptimizeOptions{})
	expectCode(t, err, domain.CodeOptimization)
	if groups := outside.Groups(); len(groups) != 1 || groups[0].Name != "Keep" {
		t.Fatalf("rejected result must leave groups untouched: %+v", groups)
	}

	duplicated := newTestEngine(t, WithOptimizer(optimizerFunc(func(context.Context, []domain.Participant, domain.OptimizeOptions) ([]domain.Group, error) {
		return []domain.Group{
			{Participants: []domain.Participant{{ID: "p1"}}},
			{Participants: []domain.Participant{{ID: "p1"}}},
		}, nil
	})))
	_, err = duplicated.GenerateOptimalGroups(ctx, domain.OptimizeOptions{})
	expectCode(t, err, domain.CodeOptimization)
	if !errors.As(err, new(domain.RuleViolationError)) {
		t.Fatalf("expected rule violation cause, got %v", err)
	}
	if len(duplicated.Groups()) != 0 {
		t.Fatalf("invalid partition must not be applied")
	}
}

func TestGenerateOptimalGroupsEmptyPool(t *testing.T) {
	called := false
	e := newTestEngine(t, WithOptimizer(optimizerFunc(func(context.Context, []domain.Participant, domain.OptimizeOptions) ([]domain.Group, error) {
		called = true
		return nil, nil
	})))
	g := mustCreate(t, e, "All", 6)
	for _, pid := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		mustAdd(t, e, pid, g.ID)
	}
	_, err := e.GenerateOptimalGroups(context.Background(), domain.OptimizeOptions{})
	expectCode(t, err, domain.CodeOptimization)
	if called {
		t.Fatalf("optimizer must not be called without an unassigned pool")
	}
}

func TestGenerateOptimalGroupsDiscardsStaleResult(t *testing.T) {
	ctx := context.Background()
	var e *Engine
	optimizer := optimizerFunc(func(ctx context.Context, pool []domain.Participant, _ domain.OptimizeOptions) ([]domain.Group, error) {
		if _, err := e.CreateGroup(ctx, "Concurrent", 2); err != nil {
			return nil, err
		}
		return []domain.Group{{Participants: pool[:1]}}, nil
	})
	e = newTestEngine(t, WithOptimizer(optimizer))

	_, err := e.GenerateOptimalGroups(ctx, domain.OptimizeOptions{GroupSize: 2})
	expectCode(t, err, domain.CodeOptimization)
	groups := e.Groups()
	if len(groups) != 1 || groups[0].Name != "Concurrent" {
		t.Fatalf("concurrent mutation must win over the stale result: %+v", groups)
	}
}

func TestGenerateOptimalGroupsAcceptsResultAfterRevertedMove(t *testing.T) {
	ctx := context.Background()
	var (
		e    *Engine
		a, b domain.Group
	)
	optimizer := optimizerFunc(func(ctx context.Context, pool []domain.Participant, _ domain.OptimizeOptions) ([]domain.Group, error) {
		_, err := e.MoveParticipant(ctx, "p1", a.ID, b.ID)
		expectCode(t, err, domain.CodeCapacityExceeded)
		return []domain.Group{{Participants: pool[:2]}}, nil
	})
	e = newTestEngine(t, WithOptimizer(optimizer))
	a = mustCreate(t, e, "A", 2)
	b = mustCreate(t, e, "B", 1)
	mustAdd(t, e, "p1", a.ID)
	mustAdd(t, e, "p2", b.ID)

	groups, err := e.GenerateOptimalGroups(ctx, domain.OptimizeOptions{GroupSize: 2})
	if err != nil {
		t.Fatalf("a reverted move leaves the structure unchanged, got %v", err)
	}
	if len(groups) != 1 || len(groups[0].Participants) != 2 || groups[0].Participants[0].ID != "p3" {
		t.Fatalf("unexpected optimized groups: %+v", groups)
	}
}

func TestGenerateOptimalGroupsSchedulesNeutralRecomputes(t *testing.T) {
	scorer := newGatedScorer()
	optimizer := optimizerFunc(func(_ context.Context, pool []domain.Participant, _ domain.OptimizeOptions) ([]domain.Group, error) {
		return []domain.Group{
			{Participants: pool[:2], Compatibility: domain.Compatibility{AverageScore: 77}},
			{Participants: pool[2:4]},
		}, nil
	})
	e := newTestEngine(t, WithOptimizer(optimizer), WithCompatibilityScorer(scorer))
	groups, err := e.GenerateOptimalGroups(context.Background(), domain.OptimizeOptions{})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	call := scorer.next(t)
	if len(call.members) != 2 || call.members[0].ID != "p3" {
		t.Fatalf("only the unscored group should be recomputed, got %+v", call.members)
	}
	call.answer(64)
	e.Wait()
	scored, _ := e.Group(groups[1].ID)
	if scored.Compatibility.AverageScore != 64 {
		t.Fatalf("expected recomputed score, got %v", scored.Compatibility.AverageScore)
	}
}
