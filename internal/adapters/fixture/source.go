// Package fixture serves participants from a YAML file, for demos and
// offline use of the CLI.
package fixture

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tripgroups/pkg/domain"
)

var _ domain.ParticipantSource = (*Source)(nil)

type document struct {
	Adventures map[string]adventure `yaml:"adventures"`
}

type adventure struct {
	Participants []participant `yaml:"participants"`
}

type participant struct {
	ID         string `yaml:"id"`
	ProfileRef string `yaml:"profile_ref"`
}

// Source is an immutable ParticipantSource loaded from YAML:
//
//	adventures:
//	  adv-1:
//	    participants:
//	      - id: p1
//	        profile_ref: profiles/p1
type Source struct {
	adventures map[string][]domain.Participant
}

// Load opens and parses path.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()
	src, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return src, nil
}

// Parse decodes a fixture document. Participant ids must be non-empty and
// unique within an adventure.
func Parse(r io.Reader) (*Source, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	out := make(map[string][]domain.Participant, len(doc.Adventures))
	for id, adv := range doc.Adventures {
		seen := make(map[string]struct{}, len(adv.Participants))
		list := make([]domain.Participant, 0, len(adv.Participants))
		for i, p := range adv.Participants {
			pid := strings.TrimSpace(p.ID)
			if pid == "" {
				return nil, fmt.Errorf("adventure %s: participant %d has no id", id, i)
			}
			if _, dup := seen[pid]; dup {
				return nil, fmt.Errorf("adventure %s: duplicate participant %s", id, pid)
			}
			seen[pid] = struct{}{}
			list = append(list, domain.Participant{ID: domain.ParticipantID(pid), ProfileRef: p.ProfileRef})
		}
		out[id] = list
	}
	return &Source{adventures: out}, nil
}

// Adventures lists the adventure ids in the fixture.
func (s *Source) Adventures() []string {
	ids := make([]string, 0, len(s.adventures))
	for id := range s.adventures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FetchParticipants returns a copy of the adventure's participants.
func (s *Source) FetchParticipants(ctx context.Context, adventureID string) ([]domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list, ok := s.adventures[adventureID]
	if !ok {
		return nil, fmt.Errorf("adventure %s not in fixture", adventureID)
	}
	return domain.CloneParticipants(list), nil
}
