package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/stream"
)

// SnapshotCache is the optional shared cache consulted before the snapshot
// fetch hits the service. Implementations must degrade, not fail: a miss and
// an unreachable cache look the same.
type SnapshotCache interface {
	Get(ctx context.Context, id string) (api.AnalysisResult, bool)
	Set(ctx context.Context, result api.AnalysisResult)
}

// Archiver records a completed analysis for offline history.
type Archiver interface {
	Save(ctx context.Context, result api.AnalysisResult, findings []api.Finding, fixes api.FixesResponse, chains []api.VulnerabilityChain) error
}

// Watcher wires one analysis id end to end: it seeds the store from the
// snapshot, tails the event stream into it, and runs the authoritative
// fetches once completion is observed. Starting a watch for a new id tears
// the previous subscription down first, so events never leak across sessions.
type Watcher struct {
	client  *api.Client
	store   *Store
	wsBase  string
	cache   SnapshotCache // optional
	archive Archiver      // optional

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher over the given store. cache and archive may be
// nil; both are side paths that never block the session.
func NewWatcher(client *api.Client, store *Store, wsBase string, cache SnapshotCache, archive Archiver) *Watcher {
	return &Watcher{
		client:  client,
		store:   store,
		wsBase:  wsBase,
		cache:   cache,
		archive: archive,
	}
}

// Watch attaches to an analysis id and blocks until the session reaches a
// terminal state, the stream gives up, or ctx ends. Any previous watch is
// detached synchronously before this one begins.
func (w *Watcher) Watch(ctx context.Context, id string) error {
	w.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()
	defer close(done)
	defer cancel()

	if !w.store.Tracks(id) {
		w.store.StartAnalysis(id)
		if !w.seed(ctx, id) {
			return nil // seed failure already surfaced as a failed session
		}
	}

	// Nothing left to tail when the session is already terminal: load the
	// authoritative results and return.
	if w.store.Status().Terminal() {
		if w.store.Status() == api.StatusCompleted {
			w.backfillGraph(ctx, id)
			w.fetchAuthoritative(ctx, id)
			w.archiveSession(ctx, id)
		}
		return nil
	}

	// The stream has nothing left to say once the session is terminal; end it
	// so Watch can run the authoritative fetches and return.
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	adapter := stream.NewAdapter(w.wsBase, id)
	adapter.Subscribe(func(e stream.Event) {
		w.store.ApplyEvent(e)
		if w.store.Status().Terminal() {
			stopStream()
		}
	})

	err := adapter.Run(streamCtx)
	if errors.Is(err, stream.ErrRetriesExhausted) {
		// A transport failure after completion must not flip the dashboard.
		if !w.store.Status().Terminal() {
			w.store.SetFailed("Lost connection to the analysis service")
		}
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	if w.store.Status() == api.StatusCompleted {
		w.fetchAuthoritative(ctx, id)
		w.archiveSession(ctx, id)
	}
	return err
}

// Stop synchronously detaches the current subscription, if any.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// seed initializes the store from the cache or the service snapshot.
// Returns false when the session cannot be seeded; the failure is already
// reflected in the store.
func (w *Watcher) seed(ctx context.Context, id string) bool {
	if w.cache != nil {
		if result, ok := w.cache.Get(ctx, id); ok {
			w.store.SetResult(result)
			return true
		}
	}

	result, err := w.client.GetAnalysis(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, api.ErrNotFound):
			w.store.SetFailed("Repository not found or private")
		case errors.Is(err, api.ErrRateLimited):
			w.store.SetFailed("Rate limited by the analysis service, try again shortly")
		case ctx.Err() != nil:
			// Torn down mid-seed; leave the store as-is.
		default:
			w.store.SetFailed("Could not reach the analysis service")
		}
		return false
	}

	w.store.SetResult(result)
	if w.cache != nil {
		w.cache.Set(ctx, result)
	}
	return true
}

// fetchAuthoritative loads findings, fixes and chains after completion.
// Each fetch fails independently; a missing list degrades its panel only.
func (w *Watcher) fetchAuthoritative(ctx context.Context, id string) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		page, err := w.client.GetFindings(ctx, id, api.FindingsOptions{Limit: 200})
		if err != nil {
			log.Printf("watcher: findings fetch failed for %s: %v", id, err)
			return
		}
		w.store.SetFindings(page.Items)
	}()

	go func() {
		defer wg.Done()
		fixes, err := w.client.GetFixes(ctx, id)
		if err != nil {
			log.Printf("watcher: fixes fetch failed for %s: %v", id, err)
			return
		}
		w.store.SetFixes(fixes.Fixes, fixes.Summary)
	}()

	go func() {
		defer wg.Done()
		chains, err := w.client.GetChains(ctx, id)
		if err != nil {
			log.Printf("watcher: chains fetch failed for %s: %v", id, err)
			return
		}
		w.store.SetChains(chains)
	}()

	wg.Wait()
}

// backfillGraph loads the stored graph when attaching to an analysis whose
// stream already finished; nothing will be replayed over the socket.
func (w *Watcher) backfillGraph(ctx context.Context, id string) {
	resp, err := w.client.GetGraph(ctx, id, string(ViewVulnerabilities))
	if err != nil {
		log.Printf("watcher: graph backfill failed for %s: %v", id, err)
		return
	}
	// AddGraphNode/AddGraphEdge refuse writes on a terminal session, which a
	// backfilled one always is; load through the bulk seed path instead.
	w.store.SeedGraph(resp.Nodes, resp.Edges)
}

// archiveSession records the completed session once the authoritative lists
// have settled. Callers run it after fetchAuthoritative returns.
func (w *Watcher) archiveSession(ctx context.Context, id string) {
	if w.archive == nil && w.cache == nil {
		return
	}

	result := w.store.Result()
	if result == nil || result.Status != api.StatusCompleted {
		return
	}

	if w.archive != nil {
		fixes, summary := w.store.Fixes()
		err := w.archive.Save(ctx, *result, w.store.AllFindings(), api.FixesResponse{Fixes: fixes, Summary: summary}, w.store.Chains())
		if err != nil {
			log.Printf("watcher: archive failed for %s: %v", id, err)
		}
	}

	if w.cache != nil {
		w.cache.Set(ctx, *result)
	}
}
