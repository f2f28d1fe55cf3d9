package runfs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tfcview/internal/testutil"
	"tfcview/internal/types"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newProvider(t *testing.T) (*Provider, *testutil.FakeAPI, *fakeNow) {
	t.Helper()
	api := testutil.NewFakeAPI()
	api.Workspaces["ws-1"] = testutil.Workspace("ws-1", "acme", "network")
	api.ScriptRun(testutil.Run("run-1", types.RunStatusPlanning))
	clock := &fakeNow{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	p := NewProvider(api, Options{TTL: 10 * time.Second, Now: clock.Now, Location: time.UTC})
	return p, api, clock
}

func TestReadFileBuildsRunDocument(t *testing.T) {
	p, _, _ := newProvider(t)
	data, err := p.ReadFile(context.Background(), RunPath("run-1"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Run details") {
		t.Fatalf("unexpected content: %q", string(data))
	}
	stat, err := p.Stat(context.Background(), "/runs/run-1")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if stat.Type != TypeFile || stat.Size != len(data) {
		t.Fatalf("unexpected stat: %+v", stat)
	}
}

func TestDocumentCachedWithinTTL(t *testing.T) {
	p, api, clock := newProvider(t)
	ctx := context.Background()
	if _, err := p.ReadFile(ctx, "/runs/run-1"); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	clock.Advance(5 * time.Second)
	if _, err := p.Stat(ctx, "/runs/run-1"); err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := api.CallCount("GetRun"); got != 1 {
		t.Fatalf("expected cached document, GetRun calls=%d", got)
	}
	clock.Advance(6 * time.Second)
	stat, err := p.Stat(ctx, "/runs/run-1")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := api.CallCount("GetRun"); got != 2 {
		t.Fatalf("expected stale document to refill, GetRun calls=%d", got)
	}
	if !stat.MTime.Equal(clock.Now()) || stat.CTime.Equal(stat.MTime) {
		t.Fatalf("expected refreshed mtime and original ctime: %+v", stat)
	}
}

func TestConcurrentReadsBuildOnce(t *testing.T) {
	p, api, _ := newProvider(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.ReadFile(context.Background(), "/runs/run-1"); err != nil {
				t.Errorf("ReadFile: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := api.CallCount("GetRun"); got != 1 {
		t.Fatalf("expected one build, GetRun calls=%d", got)
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	p, api, _ := newProvider(t)
	ctx := context.Background()
	if _, err := p.ReadFile(ctx, "/runs/run-1"); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	p.Invalidate("run-1")
	if _, err := p.ReadFile(ctx, "/runs/run-1"); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := api.CallCount("GetRun"); got != 2 {
		t.Fatalf("expected rebuild, GetRun calls=%d", got)
	}
}

func TestMissingRunIsNotFound(t *testing.T) {
	p, _, _ := newProvider(t)
	if _, err := p.Stat(context.Background(), "/runs/run-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := p.ReadFile(context.Background(), "/plans/x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown dir, got %v", err)
	}
}

func TestFetchErrorIsNotCached(t *testing.T) {
	p, api, _ := newProvider(t)
	boom := errors.New("boom")
	api.FailNext("GetRun", boom)
	if _, err := p.ReadFile(context.Background(), "/runs/run-1"); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if _, err := p.ReadFile(context.Background(), "/runs/run-1"); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
}

func TestDirectories(t *testing.T) {
	p, _, _ := newProvider(t)
	for _, name := range []string{"/", "/runs", "runs/"} {
		stat, err := p.Stat(context.Background(), name)
		if err != nil || stat.Type != TypeDirectory {
			t.Fatalf("Stat(%q) = %+v, %v", name, stat, err)
		}
	}
	entries, err := p.ReadDir(context.Background(), "/runs")
	if err != nil || len(entries) != 0 {
		t.Fatalf("ReadDir = %v, %v", entries, err)
	}
}

func TestWritesAreRejected(t *testing.T) {
	p, _, _ := newProvider(t)
	ctx := context.Background()
	errs := []error{
		p.WriteFile(ctx, "/runs/run-1", []byte("x")),
		p.Delete(ctx, "/runs/run-1"),
		p.Rename(ctx, "/runs/run-1", "/runs/run-2"),
		p.CreateDirectory(ctx, "/runs/new"),
	}
	for i, err := range errs {
		if !errors.Is(err, ErrNoPermission) {
			t.Fatalf("operation %d: expected ErrNoPermission, got %v", i, err)
		}
	}
}
