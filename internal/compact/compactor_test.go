package compact

import (
	"context"
	"fmt"
	"testing"

	"github.com/rivermark/ironlake/internal/engine"
)

// fakeEngine is a minimal in-memory engine.Engine stand-in: PlanFiles
// reports whatever fileSets has queued for a location, and
// OverwriteRows/ExpireSnapshots record their calls rather than touching
// real storage.
type fakeEngine struct {
	fileSets        map[string][]engine.FileInfo
	overwriteCalls  int
	expireCalls     int
	expireReturn    int
	expireErr       error
	overwriteErr    error
	nextLocation    string
}

func (f *fakeEngine) QueryRows(ctx context.Context, loc, query string, args []interface{}) ([]engine.Row, error) {
	return []engine.Row{{"a": 1}}, nil
}

func (f *fakeEngine) AppendRows(ctx context.Context, loc string, cols []string, rows []engine.Row) (string, error) {
	return loc, nil
}

func (f *fakeEngine) OverwriteRows(ctx context.Context, loc string, cols []string, rows []engine.Row) (string, error) {
	f.overwriteCalls++
	if f.overwriteErr != nil {
		return "", f.overwriteErr
	}
	next := f.nextLocation
	if next == "" {
		next = loc
	}
	return next, nil
}

func (f *fakeEngine) DeleteRows(ctx context.Context, loc, predicate string, args []interface{}) (string, int, error) {
	return loc, 0, nil
}

func (f *fakeEngine) PlanFiles(ctx context.Context, loc string) ([]engine.FileInfo, error) {
	return f.fileSets[loc], nil
}

func (f *fakeEngine) ExpireSnapshots(ctx context.Context, loc string, cutoff int64) (int, error) {
	f.expireCalls++
	return f.expireReturn, f.expireErr
}

func (f *fakeEngine) CreateDataTable(ctx context.Context, loc string, cols []engine.ColumnDef) error {
	return nil
}

func (f *fakeEngine) DropDataTable(ctx context.Context, loc string) error { return nil }

func (f *fakeEngine) Close() error { return nil }

func smallFiles(n int, bytes int64) []engine.FileInfo {
	files := make([]engine.FileInfo, n)
	for i := range files {
		files[i] = engine.FileInfo{Path: fmt.Sprintf("f%d", i), Bytes: bytes, RowCount: 10}
	}
	return files
}

func TestNew_AppliesDefaults(t *testing.T) {
	c := New(&fakeEngine{}, Config{})
	if c.config.Concurrency != defaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", c.config.Concurrency, defaultConcurrency)
	}
	if c.config.MaxFilesPerCompaction != defaultMaxFilesPerRun {
		t.Errorf("MaxFilesPerCompaction = %d, want %d", c.config.MaxFilesPerCompaction, defaultMaxFilesPerRun)
	}
	if c.config.SmallFileThresholdMB != defaultSmallFileThresholdMB {
		t.Errorf("SmallFileThresholdMB = %d, want %d", c.config.SmallFileThresholdMB, defaultSmallFileThresholdMB)
	}
}

func TestClassify_NotEligibleBelowThreshold(t *testing.T) {
	fe := &fakeEngine{fileSets: map[string][]engine.FileInfo{
		"t1": smallFiles(minFilesToCompact-1, 1024),
	}}
	c := New(fe, Config{SmallFileThresholdMB: 1})

	plan, eligible, err := c.Classify(context.Background(), "t1", false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if eligible {
		t.Error("expected not eligible below minFilesToCompact")
	}
	if plan.SmallFiles != minFilesToCompact-1 {
		t.Errorf("SmallFiles = %d, want %d", plan.SmallFiles, minFilesToCompact-1)
	}
}

func TestClassify_EligibleAtThreshold(t *testing.T) {
	fe := &fakeEngine{fileSets: map[string][]engine.FileInfo{
		"t1": smallFiles(minFilesToCompact, 1024),
	}}
	c := New(fe, Config{SmallFileThresholdMB: 1})

	_, eligible, err := c.Classify(context.Background(), "t1", false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !eligible {
		t.Error("expected eligible at minFilesToCompact")
	}
}

func TestClassify_ForceBypassesGate(t *testing.T) {
	fe := &fakeEngine{fileSets: map[string][]engine.FileInfo{"t1": smallFiles(1, 1024)}}
	c := New(fe, Config{SmallFileThresholdMB: 1})

	_, eligible, err := c.Classify(context.Background(), "t1", true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !eligible {
		t.Error("expected force=true to bypass the small-file gate")
	}
}

func TestCompact_ReportsBeforeAfterStats(t *testing.T) {
	fe := &fakeEngine{
		fileSets: map[string][]engine.FileInfo{
			"t1": smallFiles(20, 1024),      // before: 20 small files
			"t1-v2": smallFiles(1, 100*1024*1024), // after: 1 big file
		},
		nextLocation: "t1-v2",
	}
	c := New(fe, Config{SmallFileThresholdMB: 1})

	result, err := c.Compact(context.Background(), "t1", []string{"a"}, false, 0)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if result.FilesBefore != 20 {
		t.Errorf("FilesBefore = %d, want 20", result.FilesBefore)
	}
	if result.FilesAfter != 1 {
		t.Errorf("FilesAfter = %d, want 1", result.FilesAfter)
	}
	if result.FilesRemoved != 19 {
		t.Errorf("FilesRemoved = %d, want 19", result.FilesRemoved)
	}
	if result.SmallFilesRemaining != 0 {
		t.Errorf("SmallFilesRemaining = %d, want 0", result.SmallFilesRemaining)
	}
	if result.NewLocation != "t1-v2" {
		t.Errorf("NewLocation = %q, want t1-v2", result.NewLocation)
	}
	if fe.expireCalls != 0 {
		t.Errorf("expireCalls = %d, want 0 (expireSnapshots=false)", fe.expireCalls)
	}
}

func TestCompact_ExpiresSnapshotsWhenRequested(t *testing.T) {
	fe := &fakeEngine{
		fileSets:     map[string][]engine.FileInfo{"t1": smallFiles(5, 1024)},
		expireReturn: 3,
	}
	c := New(fe, Config{SmallFileThresholdMB: 1})

	result, err := c.Compact(context.Background(), "t1", []string{"a"}, true, 168)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if result.SnapshotsExpired != 3 {
		t.Errorf("SnapshotsExpired = %d, want 3", result.SnapshotsExpired)
	}
	if fe.expireCalls != 1 {
		t.Errorf("expireCalls = %d, want 1", fe.expireCalls)
	}
}

func TestCompactBatch_RunsAllTablesConcurrently(t *testing.T) {
	fe := &fakeEngine{fileSets: map[string][]engine.FileInfo{
		"t1": smallFiles(3, 1024),
		"t2": smallFiles(4, 1024),
		"t3": smallFiles(5, 1024),
	}}
	c := New(fe, Config{Concurrency: 2, SmallFileThresholdMB: 1})

	results := c.CompactBatch(context.Background(), []Table{
		{Location: "t1", Columns: []string{"a"}},
		{Location: "t2", Columns: []string{"a"}},
		{Location: "t3", Columns: []string{"a"}},
	}, false, 0)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("location %s: unexpected error %v", r.Location, r.Err)
		}
	}
}

func TestCompactBatch_EmptyInput(t *testing.T) {
	c := New(&fakeEngine{}, Config{})
	if results := c.CompactBatch(context.Background(), nil, false, 0); results != nil {
		t.Errorf("expected nil results for empty input, got %v", results)
	}
}

func TestCompactBatch_CollectsPerTableErrors(t *testing.T) {
	fe := &fakeEngine{
		fileSets:     map[string][]engine.FileInfo{"bad": smallFiles(1, 1024)},
		overwriteErr: fmt.Errorf("boom"),
	}
	c := New(fe, Config{})

	results := c.CompactBatch(context.Background(), []Table{{Location: "bad", Columns: []string{"a"}}}, false, 0)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Err == nil {
		t.Error("expected an error on the failing table's result")
	}
}
