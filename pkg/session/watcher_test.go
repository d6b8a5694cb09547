package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/repopulse/repopulse/pkg/api"
)

type fakeArchiver struct {
	mu    sync.Mutex
	saved []api.AnalysisResult
}

func (f *fakeArchiver) Save(ctx context.Context, result api.AnalysisResult, findings []api.Finding, fixes api.FixesResponse, chains []api.VulnerabilityChain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, result)
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]api.AnalysisResult
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]api.AnalysisResult)}
}

func (f *fakeCache) Get(ctx context.Context, id string) (api.AnalysisResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.entries[id]
	return r, ok
}

func (f *fakeCache) Set(ctx context.Context, result api.AnalysisResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[result.AnalysisID] = result
	f.sets++
}

// completedServer serves the REST surface for one already-completed analysis.
func completedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analysis/abc123", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.AnalysisResult{
			AnalysisID:  "abc123",
			Status:      api.StatusCompleted,
			RepoName:    "acme/widgets",
			HealthScore: &api.HealthScore{Overall: 82, LetterGrade: "B"},
			Findings:    api.FindingsSummary{Critical: 1, Total: 3},
		})
	})
	mux.HandleFunc("/api/analysis/abc123/graph", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.GraphResponse{
			Nodes: []api.GraphNode{{ID: "f1"}, {ID: "f2"}},
			Edges: []api.GraphEdge{{ID: "e1", Source: "f1", Target: "f2"}},
		})
	})
	mux.HandleFunc("/api/analysis/abc123/findings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.FindingsPage{
			Items: []api.Finding{{ID: "fnd-1", Severity: api.SeverityCritical, Title: "SQL injection"}},
			Total: 1,
		})
	})
	mux.HandleFunc("/api/analysis/abc123/fixes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.FixesResponse{
			Fixes:   []api.Fix{{ID: "fix-1", Priority: 1}},
			Summary: api.FixSummary{TotalFixes: 1},
		})
	})
	mux.HandleFunc("/api/analysis/abc123/chains", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ChainsResponse{
			Chains: []api.VulnerabilityChain{{ID: "c1", Severity: api.SeverityCritical}},
			Total:  1,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWatcher_AttachToCompletedAnalysis(t *testing.T) {
	srv := completedServer(t)
	client := api.NewClient(srv.URL)
	store := NewStore()
	archiver := &fakeArchiver{}
	snapshots := newFakeCache()

	w := NewWatcher(client, store, srv.URL, snapshots, archiver)
	if err := w.Watch(context.Background(), "abc123"); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if store.Mode() != ModeCompleted {
		t.Errorf("mode = %s; want completed", store.Mode())
	}
	if g := store.Graph(); len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph not backfilled: %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
	if got := store.AllFindings(); len(got) != 1 || got[0].ID != "fnd-1" {
		t.Errorf("findings not fetched: %+v", got)
	}
	if fixes, sum := store.Fixes(); len(fixes) != 1 || sum.TotalFixes != 1 {
		t.Errorf("fixes not fetched: %d, %+v", len(fixes), sum)
	}
	if got := store.Chains(); len(got) != 1 {
		t.Errorf("chains not fetched: %+v", got)
	}

	archiver.mu.Lock()
	saved := len(archiver.saved)
	archiver.mu.Unlock()
	if saved != 1 {
		t.Errorf("archived %d sessions; want 1", saved)
	}
	if _, ok := snapshots.Get(context.Background(), "abc123"); !ok {
		t.Error("snapshot not written back to the cache")
	}
}

func TestWatcher_ReturnsOnCompleteEvent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analysis/abc123", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.AnalysisResult{
			AnalysisID: "abc123",
			Status:     api.StatusAnalyzing,
			RepoName:   "acme/widgets",
		})
	})
	mux.HandleFunc("/api/analysis/abc123/findings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.FindingsPage{
			Items: []api.Finding{{ID: "fnd-1", Severity: api.SeverityCritical}},
			Total: 1,
		})
	})
	mux.HandleFunc("/api/analysis/abc123/fixes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.FixesResponse{Summary: api.FixSummary{TotalFixes: 1}})
	})
	mux.HandleFunc("/api/analysis/abc123/chains", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ChainsResponse{})
	})
	mux.HandleFunc("/ws/analysis/abc123", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		messages := []string{
			`{"type":"agent_status","agent":"mapper","status":"running","progress":0.5}`,
			`{"type":"complete","healthScore":{"overall":82,"letterGrade":"B"},"findingsSummary":{"total":1},"duration":154}`,
		}
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// The client ends the stream once the session is terminal.
		conn.ReadMessage()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewStore()
	archiver := &fakeArchiver{}
	w := NewWatcher(api.NewClient(srv.URL), store, srv.URL, nil, archiver)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Watch(ctx, "abc123"); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Watch only returned because the test timed out")
	}

	if store.Mode() != ModeCompleted {
		t.Errorf("mode = %s; want completed", store.Mode())
	}
	if got := store.AllFindings(); len(got) != 1 {
		t.Errorf("findings not fetched after complete: %+v", got)
	}
	if _, sum := store.Fixes(); sum.TotalFixes != 1 {
		t.Errorf("fixes not fetched after complete: %+v", sum)
	}
	archiver.mu.Lock()
	saved := len(archiver.saved)
	archiver.mu.Unlock()
	if saved != 1 {
		t.Errorf("archived %d sessions; want 1", saved)
	}
}

func TestWatcher_SeedNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewStore()
	w := NewWatcher(api.NewClient(srv.URL), store, srv.URL, nil, nil)
	if err := w.Watch(context.Background(), "missing"); err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}

	if store.Mode() != ModeFailed {
		t.Errorf("mode = %s; want failed", store.Mode())
	}
	if store.ErrorMessage() != "Repository not found or private" {
		t.Errorf("error = %q", store.ErrorMessage())
	}
}

func TestWatcher_SeedRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	store := NewStore()
	w := NewWatcher(api.NewClient(srv.URL), store, srv.URL, nil, nil)
	if err := w.Watch(context.Background(), "abc123"); err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}

	if store.Mode() != ModeFailed {
		t.Errorf("mode = %s; want failed", store.Mode())
	}
	if store.ErrorMessage() != "Rate limited by the analysis service, try again shortly" {
		t.Errorf("error = %q", store.ErrorMessage())
	}
}

func TestWatcher_CacheSkipsSnapshotFetch(t *testing.T) {
	// The analysis endpoint always fails; only the cache can seed the session.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analysis/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/analysis/abc123/graph", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.GraphResponse{})
	})
	mux.HandleFunc("/api/analysis/abc123/findings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.FindingsPage{})
	})
	mux.HandleFunc("/api/analysis/abc123/fixes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.FixesResponse{})
	})
	mux.HandleFunc("/api/analysis/abc123/chains", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ChainsResponse{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	snapshots := newFakeCache()
	snapshots.Set(context.Background(), api.AnalysisResult{
		AnalysisID:  "abc123",
		Status:      api.StatusCompleted,
		HealthScore: &api.HealthScore{Overall: 90},
	})

	store := NewStore()
	w := NewWatcher(api.NewClient(srv.URL), store, srv.URL, snapshots, nil)
	if err := w.Watch(context.Background(), "abc123"); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if store.Mode() != ModeCompleted {
		t.Errorf("mode = %s; want completed from the cached snapshot", store.Mode())
	}
	r := store.Result()
	if r == nil || r.HealthScore == nil || r.HealthScore.Overall != 90 {
		t.Errorf("result = %+v; want the cached snapshot", r)
	}
}
