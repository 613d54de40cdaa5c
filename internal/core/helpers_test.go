package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tripgroups/pkg/domain"
)

func participants(ids ...string) []domain.Participant {
	out := make([]domain.Participant, len(ids))
	for i, id := range ids {
		out[i] = domain.Participant{ID: domain.ParticipantID(id), ProfileRef: "profiles/" + id}
	}
	return out
}

func memberIDs(g domain.Group) []domain.ParticipantID {
	out := make([]domain.ParticipantID, len(g.Participants))
	for i, p := range g.Participants {
		out[i] = p.ID
	}
	return out
}

type staticSource struct {
	mu         sync.Mutex
	adventures map[string][]domain.Participant
	err        error
	calls      int
}

func (s *staticSource) FetchParticipants(_ context.Context, adventureID string) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	ps, ok := s.adventures[adventureID]
	if !ok {
		return nil, fmt.Errorf("adventure %s unknown", adventureID)
	}
	return domain.CloneParticipants(ps), nil
}

type scorerFunc func(context.Context, []domain.Participant) (domain.Compatibility, error)

func (f scorerFunc) ComputeCompatibility(ctx context.Context, ps []domain.Participant) (domain.Compatibility, error) {
	return f(ctx, ps)
}

// gatedScorer hands every request to the test, which answers it explicitly.
type gatedScorer struct {
	calls chan *scoreCall
}

type scoreCall struct {
	members []domain.Participant
	reply   chan scoreReply
}

type scoreReply struct {
	compat domain.Compatibility
	err    error
}

func newGatedScorer() *gatedScorer {
	return &gatedScorer{calls: make(chan *scoreCall)}
}

func (s *gatedScorer) ComputeCompatibility(ctx context.Context, members []domain.Participant) (domain.Compatibility, error) {
	call := &scoreCall{members: members, reply: make(chan scoreReply, 1)}
	select {
	case s.calls <- call:
	case <-ctx.Done():
		return domain.Compatibility{}, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.compat, r.err
	case <-ctx.Done():
		return domain.Compatibility{}, ctx.Err()
	}
}

func (s *gatedScorer) next(t *testing.T) *scoreCall {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for compatibility request")
		return nil
	}
}

func (c *scoreCall) answer(score float64) {
	c.reply <- scoreReply{compat: domain.Compatibility{AverageScore: score}}
}

func (c *scoreCall) fail(err error) {
	c.reply <- scoreReply{err: err}
}

type optimizerFunc func(context.Context, []domain.Participant, domain.OptimizeOptions) ([]domain.Group, error)

func (f optimizerFunc) OptimizePartition(ctx context.Context, ps []domain.Participant, opts domain.OptimizeOptions) ([]domain.Group, error) {
	return f(ctx, ps, opts)
}

type fakeConfigStore struct {
	mu        sync.Mutex
	records   []domain.GroupConfiguration
	seq       int
	createErr error
	listErr   error
}

func (s *fakeConfigStore) CreateConfiguration(_ context.Context, record domain.GroupConfiguration) (domain.GroupConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return domain.GroupConfiguration{}, s.createErr
	}
	s.seq++
	record = domain.CloneConfiguration(record)
	record.ID = fmt.Sprintf("cfg-%d", s.seq)
	s.records = append(s.records, record)
	return domain.CloneConfiguration(record), nil
}

func (s *fakeConfigStore) ListConfigurations(_ context.Context, vendorID string) ([]domain.GroupConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []domain.GroupConfiguration{}
	for _, r := range s.records {
		if r.VendorID == vendorID {
			out = append(out, domain.CloneConfiguration(r))
		}
	}
	return out, nil
}

type observation struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu       sync.Mutex
	observed []observation
	discards []string
}

func (m *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, observation{op: op, success: success})
}

func (m *captureMetrics) ObserveDiscard(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discards = append(m.discards, reason)
}

func (m *captureMetrics) has(op string, success bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.observed {
		if o.op == op && o.success == success {
			return true
		}
	}
	return false
}

func (m *captureMetrics) discarded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.discards...)
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

// steppingClock advances one second per reading.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("g%d", n)
	}
}

const testAdventure = "adv-1"

// newTestSource serves adv-1 with p1..p6 and adv-2 with q1, q2.
func newTestSource() *staticSource {
	return &staticSource{adventures: map[string][]domain.Participant{
		testAdventure: participants("p1", "p2", "p3", "p4", "p5", "p6"),
		"adv-2":       participants("q1", "q2"),
	}}
}

// newTestEngine returns an engine with adventure adv-1 selected and
// participants p1..p6 available.
func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithParticipantSource(newTestSource()),
		WithVendorID("vendor-1"),
		WithClock(newSteppingClock()),
		WithIDGenerator(sequentialIDs()),
	}
	e := New(append(base, opts...)...)
	t.Cleanup(e.Close)
	if err := e.SelectAdventure(context.Background(), testAdventure); err != nil {
		t.Fatalf("select adventure: %v", err)
	}
	return e
}

func mustCreate(t *testing.T, e *Engine, name string, size int) domain.Group {
	t.Helper()
	g, err := e.CreateGroup(context.Background(), name, size)
	if err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	return g
}

func mustAdd(t *testing.T, e *Engine, pid string, gid domain.GroupID) domain.Group {
	t.Helper()
	g, err := e.AddParticipantToGroup(context.Background(), domain.ParticipantID(pid), gid)
	if err != nil {
		t.Fatalf("add %s to %s: %v", pid, gid, err)
	}
	return g
}

func expectCode(t *testing.T, err error, code domain.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !domain.IsCode(err, code) {
		t.Fatalf("expected %s error, got %s: %v", code, domain.CodeOf(err), err)
	}
	var coded *domain.Error
	if !errors.As(err, &coded) {
		t.Fatalf("expected *domain.Error, got %T", err)
	}
}

// checkInvariants asserts disjoint membership and capacity over groups.
func checkInvariants(t *testing.T, groups []domain.Group) {
	t.Helper()
	owner := make(map[domain.ParticipantID]domain.GroupID)
	for _, g := range groups {
		if len(g.Participants) > g.MaxSize {
			t.Fatalf("group %s over capacity: %d/%d", g.ID, len(g.Participants), g.MaxSize)
		}
		for _, p := range g.Participants {
			if prev, ok := owner[p.ID]; ok {
				t.Fatalf("participant %s in both %s and %s", p.ID, prev, g.ID)
			}
			owner[p.ID] = g.ID
		}
	}
}
