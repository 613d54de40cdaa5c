package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"tripgroups/pkg/domain"
)

// Discard reasons reported for compatibility responses that never reach the
// live group.
const (
	discardStale   = "stale"
	discardDeleted = "deleted"
)

// scoreKey identifies a compatibility result by the membership it was
// computed for.
type scoreKey struct {
	group   domain.GroupID
	version uint64
}

// nextVersion allocates a membership version. Callers must hold e.mu.
func (e *Engine) nextVersion() uint64 {
	e.versionSeq++
	return e.versionSeq
}

// scheduleRecompute starts an asynchronous compatibility computation for the
// group's current membership. Callers must hold e.mu.
func (e *Engine) scheduleRecompute(id domain.GroupID) {
	if e.scorer == nil || e.baseCtx.Err() != nil {
		return
	}
	i, ok := e.state.findGroup(id)
	if !ok || len(e.state.groups[i].Participants) == 0 {
		return
	}
	members := domain.CloneParticipants(e.state.groups[i].Participants)
	version := e.state.groups[i].Version

	e.inflight++
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(e.baseCtx, e.compatTimeout)
		defer cancel()
		ctx, span := e.tracer.Start(ctx, "compute_compatibility")
		start := time.Now()
		compat, err := e.scorer.ComputeCompatibility(ctx, members)
		if err == nil {
			err = checkFinite(compat)
		}
		span.End(err)
		e.metrics.Observe(ctx, "compute_compatibility", err == nil, time.Since(start))
		e.applyCompatibility(id, version, compat, err)
	}()
}

// recomputeNeutralLocked schedules a recompute for every non-empty group
// without a known score.
func (e *Engine) recomputeNeutralLocked() {
	for _, g := range e.state.groups {
		if len(g.Participants) > 0 && g.Compatibility.IsNeutral() {
			e.scheduleRecompute(g.ID)
		}
	}
}

// applyCompatibility writes a scorer response to the live group only when
// the group still exists at the version the request was issued for. Results
// for memberships retained in history are cached for undo and redo.
func (e *Engine) applyCompatibility(id domain.GroupID, version uint64, compat domain.Compatibility, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.finishRecomputeLocked()

	if e.baseCtx.Err() != nil {
		return
	}
	i, live := e.state.findGroup(id)
	current := live && e.state.groups[i].Version == version

	if err != nil {
		if !current {
			e.discardCompatibility(id, version, live)
			return
		}
		e.state.groups[i].Compatibility = domain.NeutralCompatibility()
		e.addWarningLocked(Warning{
			Code:    domain.CodeCompatibilityCompute,
			GroupID: id,
			Message: fmt.Sprintf("compatibility for group %s unavailable: %v", id, err),
		})
		e.logger.Warn("compatibility recompute failed", "group_id", string(id), "version", version, "error", err)
		return
	}

	compat = normalizeCompatibility(compat)
	key := scoreKey{group: id, version: version}
	if current || e.referencedLocked(key) {
		e.scores[key] = domain.CloneCompatibility(compat)
	}
	if !current {
		e.discardCompatibility(id, version, live)
		return
	}
	e.state.groups[i].Compatibility = compat
	e.logger.Debug("compatibility applied", "group_id", string(id), "version", version, "average_score", compat.AverageScore)
}

// finishRecomputeLocked releases Wait callers once no recompute is in flight.
func (e *Engine) finishRecomputeLocked() {
	e.inflight--
	if e.inflight == 0 {
		e.idle.Broadcast()
	}
}

func (e *Engine) discardCompatibility(id domain.GroupID, version uint64, live bool) {
	reason := discardStale
	if !live {
		reason = discardDeleted
	}
	if dr, ok := e.metrics.(DiscardRecorder); ok {
		dr.ObserveDiscard(context.Background(), reason)
	}
	e.logger.Debug("compatibility response discarded", "group_id", string(id), "version", version, "reason", reason)
}

// referencedLocked reports whether any live group or history entry holds the
// membership identified by key.
func (e *Engine) referencedLocked(key scoreKey) bool {
	for _, g := range e.state.groups {
		if g.ID == key.group && g.Version == key.version {
			return true
		}
	}
	found := false
	e.history.groupVersions(func(id domain.GroupID, v uint64) {
		if id == key.group && v == key.version {
			found = true
		}
	})
	return found
}

// applyCachedScores restores the latest known compatibility for each group's
// membership version.
func (e *Engine) applyCachedScores(groups []domain.Group) {
	for i := range groups {
		if c, ok := e.scores[scoreKey{group: groups[i].ID, version: groups[i].Version}]; ok {
			groups[i].Compatibility = domain.CloneCompatibility(c)
		}
	}
}

// cacheScoresLocked records the compatibility currently carried by groups.
func (e *Engine) cacheScoresLocked(groups []domain.Group) {
	for _, g := range groups {
		if len(g.Participants) == 0 || g.Compatibility.IsNeutral() {
			continue
		}
		e.scores[scoreKey{group: g.ID, version: g.Version}] = domain.CloneCompatibility(g.Compatibility)
	}
}

// pruneScoresLocked drops cached results no live group or history entry
// references.
func (e *Engine) pruneScoresLocked() {
	keep := make(map[scoreKey]struct{}, len(e.scores))
	for _, g := range e.state.groups {
		keep[scoreKey{group: g.ID, version: g.Version}] = struct{}{}
	}
	e.history.groupVersions(func(id domain.GroupID, v uint64) {
		keep[scoreKey{group: id, version: v}] = struct{}{}
	})
	for k := range e.scores {
		if _, ok := keep[k]; !ok {
			delete(e.scores, k)
		}
	}
}

// checkFinite rejects scores that cannot be averaged or encoded as JSON.
func checkFinite(c domain.Compatibility) error {
	if !isFinite(c.AverageScore) {
		return fmt.Errorf("scorer returned non-finite average score %v", c.AverageScore)
	}
	for _, p := range c.PairwiseScores {
		if !isFinite(p.Score) {
			return fmt.Errorf("scorer returned non-finite score %v for pair %s/%s", p.Score, p.A, p.B)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// normalizeCompatibility clamps scores into [0, 100]. NaN becomes 0.
func normalizeCompatibility(c domain.Compatibility) domain.Compatibility {
	c = domain.CloneCompatibility(c)
	c.AverageScore = clampScore(c.AverageScore)
	for i := range c.PairwiseScores {
		c.PairwiseScores[i].Score = clampScore(c.PairwiseScores[i].Score)
	}
	return c
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
