package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tripgroups/pkg/domain"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL+"/", WithHeader("X-Api-Key", "secret"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestFetchParticipants(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.EscapedPath() != "/adventures/adv%201/participants" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.EscapedPath())
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing api key header")
		}
		_ = json.NewEncoder(w).Encode(participantsResponse{Participants: []domain.Participant{{ID: "p1", ProfileRef: "r1"}, {ID: "p2"}}})
	})
	got, err := client.FetchParticipants(context.Background(), "adv 1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := []domain.Participant{{ID: "p1", ProfileRef: "r1"}, {ID: "p2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("participants mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchParticipantsEmptyBody(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	got, err := client.FetchParticipants(context.Background(), "adv")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %#v %v", got, err)
	}
}

func TestComputeCompatibility(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/compatibility" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type")
		}
		var req compatibilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Participants) != 2 {
			t.Errorf("bad request body: %v %+v", err, req)
		}
		_, _ = w.Write([]byte(`{"average_score":81.5,"pairwise_scores":[{"a":"p1","b":"p2","score":81.5}],"group_dynamics":{"energy":"high"}}`))
	})
	got, err := client.ComputeCompatibility(context.Background(), []domain.Participant{{ID: "p1"}, {ID: "p2"}})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got.AverageScore != 81.5 || len(got.PairwiseScores) != 1 || string(got.GroupDynamics) != `{"energy":"high"}` {
		t.Fatalf("unexpected compatibility %+v", got)
	}
}

func TestOptimizePartition(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req optimizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Options.GroupSize != 2 || req.Options.Strategy != "balanced" {
			t.Errorf("options not forwarded: %+v", req.Options)
		}
		_ = json.NewEncoder(w).Encode(optimizeResponse{Groups: []domain.Group{{Name: "A", Participants: req.Participants}}})
	})
	groups, err := client.OptimizePartition(context.Background(), []domain.Participant{{ID: "p1"}}, domain.OptimizeOptions{GroupSize: 2, Strategy: "balanced"})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if len(groups) != 1 || groups[0].Participants[0].ID != "p1" {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

func TestStatusErrors(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "adventure unknown", http.StatusNotFound)
	})
	_, err := client.FetchParticipants(context.Background(), "missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound || statusErr.Body != "adventure unknown" {
		t.Fatalf("expected wrapped status error, got %v", err)
	}
}

func TestDecodeErrorAndTimeout(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/optimize" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`not json`))
	})
	if _, err := client.ComputeCompatibility(context.Background(), nil); err == nil {
		t.Fatalf("expected decode error")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.OptimizePartition(ctx, nil, domain.OptimizeOptions{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "::bad"} {
		if _, err := New(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	c, err := New("http://svc:8080/api/", WithTimeout(time.Second), WithHTTPClient(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL() != "http://svc:8080/api" || c.httpClient.Timeout != time.Second {
		t.Fatalf("unexpected client config %s %v", c.BaseURL(), c.httpClient.Timeout)
	}
}
