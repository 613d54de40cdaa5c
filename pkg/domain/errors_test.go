package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodesThroughWrapping(t *testing.T) {
	base := ErrNotFound(EntityGroup, "g1")
	if base.Error() != "group g1 not found" {
		t.Fatalf("unexpected message %q", base.Error())
	}
	if base.Metadata["entity"] != "group" || base.Metadata["id"] != "g1" {
		t.Fatalf("unexpected metadata %v", base.Metadata)
	}

	wrapped := fmt.Errorf("handler: %w", base)
	if CodeOf(wrapped) != CodeNotFound || !IsCode(wrapped, CodeNotFound) {
		t.Fatalf("expected code to survive wrapping")
	}
	if !errors.Is(wrapped, NewError(CodeNotFound, "")) {
		t.Fatalf("errors.Is should match by code")
	}
	if errors.Is(wrapped, NewError(CodeFetch, "")) {
		t.Fatalf("errors.Is must not match a different code")
	}

	if CodeOf(nil) != "" || IsCode(nil, CodeInternal) {
		t.Fatalf("nil errors carry no code")
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Fatalf("uncoded errors map to internal")
	}
}

func TestWrapErrorAndMetadataCopy(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(CodeFetch, "fetch participants", cause)
	if err.Error() != "fetch participants: connection refused" || !errors.Is(err, cause) {
		t.Fatalf("unexpected wrap: %v", err)
	}

	tagged := err.WithMetadata("adventure_id", "a1", "dangling")
	if tagged == err || err.Metadata != nil {
		t.Fatalf("WithMetadata must not mutate the receiver")
	}
	if len(tagged.Metadata) != 1 || tagged.Metadata["adventure_id"] != "a1" {
		t.Fatalf("unexpected metadata %v", tagged.Metadata)
	}
	again := tagged.WithMetadata("attempt", "2")
	if len(tagged.Metadata) != 1 || len(again.Metadata) != 2 {
		t.Fatalf("metadata maps must be independent")
	}
}

func TestConstructorHelpers(t *testing.T) {
	g := Group{ID: "g1", Name: "Kayak", MaxSize: 2, Participants: []Participant{{ID: "p1"}, {ID: "p2"}}}
	full := ErrCapacityExceeded(g)
	if full.Code != CodeCapacityExceeded || full.Message != "group Kayak (g1) is full: 2/2 participants" {
		t.Fatalf("unexpected capacity error %+v", full)
	}
	taken := ErrAlreadyAssigned("p1", "g2")
	if taken.Code != CodeAlreadyAssigned || taken.Metadata["group_id"] != "g2" || taken.Metadata["participant_id"] != "p1" {
		t.Fatalf("unexpected already assigned error %+v", taken)
	}
}
