package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"tripgroups/internal/core"
	"tripgroups/pkg/domain"
)

// printer renders command results as aligned text or JSON.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, asJSON bool) printer {
	return printer{w: w, json: asJSON}
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) table(header string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (p printer) message(msg string) error {
	if p.json {
		return p.encode(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(p.w, msg)
	return err
}

func (p printer) groups(groups []domain.Group) error {
	if p.json {
		return p.encode(groups)
	}
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		members := make([]string, len(g.Participants))
		for i, m := range g.Participants {
			members[i] = string(m.ID)
		}
		rows = append(rows, []string{
			string(g.ID),
			g.Name,
			fmt.Sprintf("%d/%d", len(g.Participants), g.MaxSize),
			fmt.Sprintf("%.1f", g.Compatibility.AverageScore),
			strings.Join(members, ","),
		})
	}
	return p.table("ID\tNAME\tSIZE\tSCORE\tMEMBERS", rows)
}

func (p printer) participants(participants []domain.Participant) error {
	if p.json {
		return p.encode(participants)
	}
	rows := make([][]string, 0, len(participants))
	for _, pt := range participants {
		rows = append(rows, []string{string(pt.ID), pt.ProfileRef})
	}
	return p.table("ID\tPROFILE", rows)
}

func (p printer) statistics(stats core.Statistics) error {
	if p.json {
		return p.encode(stats)
	}
	d := stats.Distribution
	rows := [][]string{
		{"groups", fmt.Sprint(stats.TotalGroups)},
		{"participants", fmt.Sprint(stats.TotalParticipants)},
		{"average size", fmt.Sprintf("%.2f", stats.AverageGroupSize)},
		{"average compatibility", fmt.Sprintf("%.1f", stats.AverageCompatibility)},
		{"distribution", fmt.Sprintf("excellent=%d good=%d moderate=%d poor=%d", d.Excellent, d.Good, d.Moderate, d.Poor)},
		{"empty groups", fmt.Sprint(stats.EmptyGroups)},
		{"full groups", fmt.Sprint(stats.FullGroups)},
	}
	return p.table("METRIC\tVALUE", rows)
}

func (p printer) configurations(records []domain.GroupConfiguration) error {
	if p.json {
		return p.encode(records)
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.Name,
			r.AdventureID,
			fmt.Sprint(r.GroupCount),
			fmt.Sprint(r.TotalParticipants),
			r.CreatedAt.Format(time.RFC3339),
		})
	}
	return p.table("ID\tNAME\tADVENTURE\tGROUPS\tPARTICIPANTS\tCREATED", rows)
}

func (p printer) warnings(warnings []core.Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	if p.json {
		return p.encode(warnings)
	}
	for _, w := range warnings {
		if _, err := fmt.Fprintf(p.w, "warning [%s] %s\n", w.Code, w.Message); err != nil {
			return err
		}
	}
	return nil
}
