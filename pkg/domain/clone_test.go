package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleGroup() Group {
	return Group{
		ID:           "g1",
		Name:         "Group 1",
		Participants: []Participant{{ID: "p1", ProfileRef: "ref/p1"}, {ID: "p2"}},
		MaxSize:      3,
		Compatibility: Compatibility{
			AverageScore:   72,
			PairwiseScores: []PairwiseScore{{A: "p1", B: "p2", Score: 72}},
			GroupDynamics:  json.RawMessage(`{"energy":"high"}`),
		},
		Version:   4,
		CreatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCloneGroupIsIndependent(t *testing.T) {
	original := sampleGroup()
	cp := CloneGroup(original)
	if diff := cmp.Diff(original, cp); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}
	cp.Participants[0].ID = "x"
	cp.Compatibility.PairwiseScores[0].Score = 1
	cp.Compatibility.GroupDynamics[2] = 'X'
	if original.Participants[0].ID != "p1" || original.Compatibility.PairwiseScores[0].Score != 72 || string(original.Compatibility.GroupDynamics) != `{"energy":"high"}` {
		t.Fatalf("clone shares memory with the original: %+v", original)
	}

	empty := CloneGroup(Group{ID: "e"})
	if empty.Participants == nil || len(empty.Participants) != 0 {
		t.Fatalf("cloned groups always carry a member slice")
	}
}

func TestClonePersistedState(t *testing.T) {
	state := PersistedState{
		SelectedAdventure: "a1",
		Groups:            []Group{sampleGroup()},
		Participants:      []Participant{{ID: "p1"}},
		GroupConfigurations: []GroupConfiguration{{
			ID: "c1", Name: "draft", Snapshot: []Group{sampleGroup()},
		}},
	}
	cp := ClonePersistedState(state)
	if diff := cmp.Diff(state, cp); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}
	cp.GroupConfigurations[0].Snapshot[0].Participants[0].ID = "x"
	cp.Participants[0].ID = "y"
	if state.GroupConfigurations[0].Snapshot[0].Participants[0].ID != "p1" || state.Participants[0].ID != "p1" {
		t.Fatalf("persisted state clone shares memory")
	}
	if CloneParticipants(nil) != nil {
		t.Fatalf("nil participant slices stay nil")
	}
}

func TestSortConfigurationsNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []GroupConfiguration{
		{ID: "b", CreatedAt: base},
		{ID: "c", CreatedAt: base.Add(time.Minute)},
		{ID: "a", CreatedAt: base},
	}
	SortConfigurations(records)
	got := []string{records[0].ID, records[1].ID, records[2].ID}
	if diff := cmp.Diff([]string{"c", "a", "b"}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupMembershipHelpers(t *testing.T) {
	g := sampleGroup()
	if !g.HasMember("p2") || g.HasMember("p9") || g.MemberIndex("p2") != 1 {
		t.Fatalf("unexpected membership lookups")
	}
	if !g.HasCapacity() || g.IsFull() {
		t.Fatalf("group with 2/3 should have capacity")
	}
	g.Participants = append(g.Participants, Participant{ID: "p3"})
	if g.HasCapacity() || !g.IsFull() {
		t.Fatalf("group with 3/3 should be full")
	}
	if TotalParticipants([]Group{g, sampleGroup()}) != 5 {
		t.Fatalf("unexpected participant total")
	}
	if !NeutralCompatibility().IsNeutral() || g.Compatibility.IsNeutral() {
		t.Fatalf("unexpected neutrality")
	}
}
