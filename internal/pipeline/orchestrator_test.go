package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/docmill/docmill/internal/discover"
	"github.com/docmill/docmill/internal/enrich"
	"github.com/docmill/docmill/internal/layout"
)

func discoverItems(paths ...string) []discover.Item {
	items := make([]discover.Item, len(paths))
	for i, p := range paths {
		items[i] = discover.Item{SourcePath: p}
	}
	return items
}

func TestRun_FailureIsolation(t *testing.T) {
	ex := &fakeExtractor{errs: map[string]error{"/in/b.pdf": errors.New("malformed xref")}}
	w := newTestWorker(t, ex, &fakeEnricher{result: enrich.Unavailable()})
	o := New(w, 2, "", testLogger())

	sum := o.Run(context.Background(), discoverItems("/in/a.pdf", "/in/b.pdf", "/in/c.pdf"))

	if sum.Processed != 3 {
		t.Errorf("processed = %d, want 3", sum.Processed)
	}
	if sum.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", sum.Succeeded)
	}
	if len(sum.Failed) != 1 {
		t.Fatalf("failed = %v, want 1 entry", sum.Failed)
	}
	if f := sum.Failed[0]; f.SourcePath != "/in/b.pdf" || f.Stage != StageExtracting {
		t.Errorf("failure = %+v", f)
	}
	if !sum.AnyFailed() {
		t.Error("AnyFailed = false")
	}
	// Survivors made it to disk, marked as unenriched.
	for _, id := range []string{"a", "c"} {
		data, err := os.ReadFile(filepath.Join(w.OutputRoot, id, id+".json"))
		if err != nil {
			t.Errorf("missing record for %s: %v", id, err)
			continue
		}
		var rec struct {
			Provenance struct {
				EnrichmentUsed bool `json:"enrichment_used"`
			} `json:"provenance"`
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			t.Fatal(err)
		}
		if rec.Provenance.EnrichmentUsed {
			t.Errorf("%s: enrichment_used = true with the service down", id)
		}
	}
	// Enrichment was down for the whole run.
	if len(sum.NoEnrichment) != 2 {
		t.Errorf("no_enrichment = %v, want 2 entries", sum.NoEnrichment)
	}
}

// gateExtractor tracks how many extractions run at once.
type gateExtractor struct {
	mu      sync.Mutex
	active  int
	peak    int
	total   int
	stall   time.Duration
	cancel  context.CancelFunc
	cancelN int
}

func (g *gateExtractor) Extract(context.Context, string, string) (*layout.Tree, error) {
	g.mu.Lock()
	g.active++
	g.total++
	if g.active > g.peak {
		g.peak = g.active
	}
	if g.cancel != nil && g.total == g.cancelN {
		g.cancel()
	}
	g.mu.Unlock()

	if g.stall > 0 {
		time.Sleep(g.stall)
	}

	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	return validTree(), nil
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	ex := &gateExtractor{stall: 10 * time.Millisecond}
	w := newTestWorker(t, ex, nil)
	o := New(w, 2, "", testLogger())

	paths := make([]string, 8)
	for i := range paths {
		paths[i] = filepath.Join("/in", string(rune('a'+i))+".pdf")
	}
	sum := o.Run(context.Background(), discoverItems(paths...))

	if sum.Processed != 8 {
		t.Errorf("processed = %d, want 8", sum.Processed)
	}
	if ex.peak > 2 {
		t.Errorf("peak concurrent extractions = %d, want <= 2", ex.peak)
	}
}

func TestRun_CancelStopsNewItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	// Cancel fires inside the first extraction; the item in flight
	// finishes, nothing queued after it starts.
	ex := &gateExtractor{cancel: cancel, cancelN: 1}
	w := newTestWorker(t, ex, nil)
	o := New(w, 1, "", testLogger())

	sum := o.Run(ctx, discoverItems("/in/a.pdf", "/in/b.pdf", "/in/c.pdf"))

	if sum.Processed != 1 {
		t.Fatalf("processed = %d, want 1", sum.Processed)
	}
	if sum.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1: in-flight item must finish", sum.Succeeded)
	}
}

func TestRun_DocIDCollisionsDisambiguated(t *testing.T) {
	w := newTestWorker(t, &fakeExtractor{}, nil)
	o := New(w, 2, "", testLogger())

	sum := o.Run(context.Background(), discoverItems("/batch1/paper.pdf", "/batch2/paper.pdf"))

	if sum.Succeeded != 2 {
		t.Fatalf("succeeded = %d, want 2: %+v", sum.Succeeded, sum.Failed)
	}
	entries, err := os.ReadDir(w.OutputRoot)
	if err != nil {
		t.Fatal(err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) != 2 {
		t.Fatalf("output dirs = %v, want 2 distinct", dirs)
	}
	if dirs[0] == dirs[1] {
		t.Errorf("colliding ids share a folder: %v", dirs)
	}
}

func TestRun_EmptyBatch(t *testing.T) {
	w := newTestWorker(t, &fakeExtractor{}, nil)
	o := New(w, 4, "", testLogger())

	sum := o.Run(context.Background(), nil)
	if sum.Processed != 0 || sum.AnyFailed() {
		t.Errorf("summary = %+v, want empty success", sum)
	}
}
