package jobgraph_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"iomanager/internal/frames"
	"iomanager/internal/jobgraph"
	"iomanager/internal/rows"
	"iomanager/internal/scripts"
	"iomanager/internal/services"
	"iomanager/internal/testsupport"
)

func newRenderer(t *testing.T) *scripts.Renderer {
	t.Helper()
	renderer, err := scripts.New()
	if err != nil {
		t.Fatalf("scripts.New: %v", err)
	}
	return renderer
}

func mainPlateRow(t *testing.T, ext string) rows.Row {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "A01_001_mp0_v001")
	testsupport.WriteSequence(t, dir, "A01_001_mp0_v001.", ext, testsupport.FrameSpan(1001, 1100)...)
	return rows.Row{
		ScanName:   "A01_001_mp0_v001",
		Sequence:   "A01",
		Shot:       "A01_001",
		PlateType:  rows.MainPlate,
		Tag:        "mp0",
		Version:    1,
		Kind:       rows.KindSequence,
		SourcePath: dir,
		OrgRange:   frames.Range{Start: 1001, End: 1100},
		StartFrame: 1001,
		EndFrame:   1100,
		Duration:   100,
		Confirmed:  true,
	}
}

func testTargets(t *testing.T, outputs ...string) jobgraph.Targets {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithOutputs(outputs...))
	targets := jobgraph.TargetsFromConfig(cfg)
	targets.ChunkSize = 40
	return targets
}

func kinds(g *jobgraph.Graph) []jobgraph.Kind {
	out := make([]jobgraph.Kind, 0, len(g.Jobs))
	for _, job := range g.Jobs {
		out = append(out, job.Kind)
	}
	return out
}

func TestBuildMainPlateWithCopyPath(t *testing.T) {
	repo := testsupport.NewFakeRepository()
	builder := jobgraph.NewBuilder(newRenderer(t), repo, nil)
	targets := testTargets(t, "plate", "jpg", "mov")
	row := mainPlateRow(t, ".exr")

	graph, err := builder.Build(context.Background(), row, targets, jobgraph.NewShotCache(repo))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	want := []jobgraph.Kind{
		jobgraph.KindScript,
		jobgraph.KindCopy, jobgraph.KindCopy,
		jobgraph.KindRenderSequence, jobgraph.KindRenderSequence, jobgraph.KindRenderSequence,
		jobgraph.KindRenderMovie,
		jobgraph.KindComp,
		jobgraph.KindUpload,
	}
	if !slices.Equal(kinds(graph), want) {
		t.Fatalf("unexpected job kinds %v", kinds(graph))
	}
	if err := graph.Validate(); err != nil {
		t.Fatalf("graph should be acyclic: %v", err)
	}

	script := graph.Jobs[0]
	if script.Name != "[A01_001_mp0_v001] - Make Render NK" || len(script.DependsOn) != 0 {
		t.Fatalf("unexpected script job %+v", script)
	}
	if _, err := os.Stat(script.Script); err != nil {
		t.Fatalf("render script not written: %v", err)
	}

	for _, idx := range graph.Indices(jobgraph.KindCopy, jobgraph.KindRenderSequence, jobgraph.KindRenderMovie) {
		if !slices.Equal(graph.Jobs[idx].DependsOn, []int{0}) {
			t.Fatalf("job %s should depend only on the script job, got %v", graph.Jobs[idx].Name, graph.Jobs[idx].DependsOn)
		}
	}

	jpg := graph.Jobs[3:6]
	wantRanges := []frames.Range{{Start: 1001, End: 1040}, {Start: 1041, End: 1080}, {Start: 1081, End: 1100}}
	for i, job := range jpg {
		if job.Range != wantRanges[i] {
			t.Fatalf("jpg chunk %d range %v, want %v", i, job.Range, wantRanges[i])
		}
		if job.ChunkSize != 10 || job.ConcurrentTasks != 4 {
			t.Fatalf("unexpected farm chunking on %s: %d/%d", job.Name, job.ChunkSize, job.ConcurrentTasks)
		}
		if job.PluginInfo["WriteNode"] != "WriteJPG" {
			t.Fatalf("unexpected write node %q", job.PluginInfo["WriteNode"])
		}
	}
	if jpg[0].Name != "[A01_001_mp0_v001] - JPG1" {
		t.Fatalf("unexpected chunk name %q", jpg[0].Name)
	}

	mov := graph.Jobs[6]
	if mov.ChunkSize != 100 || mov.Range != row.WorkingRange() || mov.ConcurrentTasks != 1 {
		t.Fatalf("unexpected movie job %+v", mov)
	}

	comp := graph.Jobs[7]
	if !slices.Equal(comp.DependsOn, []int{0, 1, 2}) {
		t.Fatalf("comp should depend on script and plate jobs, got %v", comp.DependsOn)
	}

	upload := graph.Jobs[8]
	if !slices.Equal(upload.DependsOn, []int{1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("upload should depend on every publish job, got %v", upload.DependsOn)
	}
	if !strings.HasSuffix(upload.Pool, "-sg") {
		t.Fatalf("upload pool %q should carry -sg suffix", upload.Pool)
	}

	if repo.ShotCalls != 1 || repo.TaskCalls != 2 {
		t.Fatalf("expected one shot lookup and plate+comp tasks, got %d/%d", repo.ShotCalls, repo.TaskCalls)
	}
	if fields := repo.Updates[graph.Shot.Shot.ID]; fields["sg_cut_in"] != 1001 {
		t.Fatalf("expected cut in published, got %v", fields)
	}
}

func TestBuildRendersPlateWhenReformatting(t *testing.T) {
	repo := testsupport.NewFakeRepository()
	builder := jobgraph.NewBuilder(newRenderer(t), nil, nil)
	targets := testTargets(t, "plate")
	targets.ReformatX = 1920
	targets.ReformatY = 1080
	row := mainPlateRow(t, ".exr")
	row.PlateType = rows.SubPlate
	row.Tag = "sp0"

	graph, err := builder.Build(context.Background(), row, targets, jobgraph.NewShotCache(repo))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []jobgraph.Kind{jobgraph.KindScript, jobgraph.KindRenderSequence, jobgraph.KindRenderSequence, jobgraph.KindRenderSequence, jobgraph.KindUpload}
	if !slices.Equal(kinds(graph), want) {
		t.Fatalf("unexpected job kinds %v", kinds(graph))
	}
	if graph.Jobs[1].Name != "[A01_001_sp0_v001] - PLATE1" {
		t.Fatalf("unexpected plate job name %q", graph.Jobs[1].Name)
	}
	if graph.Jobs[1].PluginInfo["WriteNode"] != "WritePLATE" {
		t.Fatalf("unexpected write node %q", graph.Jobs[1].PluginInfo["WriteNode"])
	}
}

func TestBuildRetimedRowNeverCopies(t *testing.T) {
	builder := jobgraph.NewBuilder(newRenderer(t), nil, nil)
	row := mainPlateRow(t, ".exr")
	row.EndFrame = 1049
	row.Duration = 49
	retime := 1049
	row.RetimeEndFrame = &retime

	graph, err := builder.Build(context.Background(), row, testTargets(t, "plate"), jobgraph.NewShotCache(nil))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(graph.Indices(jobgraph.KindCopy)) != 0 {
		t.Fatal("retimed rows must render the plate")
	}
	if len(graph.Indices(jobgraph.KindUpload)) != 0 {
		t.Fatal("upload requires a shot repository")
	}
}

func TestBuildSkipsExistingComp(t *testing.T) {
	builder := jobgraph.NewBuilder(newRenderer(t), nil, nil)
	builder.Exists = func(string) bool { return true }

	graph, err := builder.Build(context.Background(), mainPlateRow(t, ".exr"), testTargets(t, "jpg"), jobgraph.NewShotCache(testsupport.NewFakeRepository()))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(graph.Indices(jobgraph.KindComp)) != 0 {
		t.Fatal("comp job should be skipped when the comp script exists")
	}
}

func TestBuildReportsSequenceGap(t *testing.T) {
	repo := testsupport.NewFakeRepository()
	row := mainPlateRow(t, ".exr")
	if err := os.Remove(filepath.Join(row.SourcePath, "A01_001_mp0_v001.1050.exr")); err != nil {
		t.Fatalf("remove frame: %v", err)
	}
	builder := jobgraph.NewBuilder(newRenderer(t), repo, nil)
	_, err := builder.Build(context.Background(), row, testTargets(t, "plate"), jobgraph.NewShotCache(repo))
	if !errors.Is(err, services.ErrSequenceGap) {
		t.Fatalf("expected sequence gap, got %v", err)
	}
	if repo.ShotCalls != 0 {
		t.Fatal("gap must be detected before repository lookups")
	}
}

func TestShotCacheLooksUpOncePerShot(t *testing.T) {
	repo := testsupport.NewFakeRepository()
	repo.FailShots["A01_002"] = true
	cache := jobgraph.NewShotCache(repo)
	ctx := context.Background()

	for range 3 {
		if _, err := cache.Shot(ctx, "TEST", "A01", "A01_001"); err != nil {
			t.Fatalf("Shot returned error: %v", err)
		}
		if _, err := cache.Shot(ctx, "TEST", "A01", "A01_002"); !errors.Is(err, services.ErrRemoteLookup) {
			t.Fatalf("expected cached lookup failure, got %v", err)
		}
	}
	if repo.ShotCalls != 2 {
		t.Fatalf("expected 2 repository calls, got %d", repo.ShotCalls)
	}
}

func TestShotCacheRetriesTimedOutLookup(t *testing.T) {
	repo := testsupport.NewFakeRepository()
	repo.TimeoutShots["A01_001"] = 1
	cache := jobgraph.NewShotCache(repo)
	ctx := context.Background()

	if _, err := cache.Shot(ctx, "TEST", "A01", "A01_001"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timed out lookup, got %v", err)
	}
	shot, err := cache.Shot(ctx, "TEST", "A01", "A01_001")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if shot.Shot.IsZero() {
		t.Fatal("expected resolved shot")
	}
	if _, err := cache.Shot(ctx, "TEST", "A01", "A01_001"); err != nil {
		t.Fatalf("expected cached shot, got %v", err)
	}
	if repo.ShotCalls != 2 {
		t.Fatalf("expected 2 repository calls, got %d", repo.ShotCalls)
	}
}

func TestBuildRetakesEarlierPlateVersions(t *testing.T) {
	repo := testsupport.NewFakeRepository()
	builder := jobgraph.NewBuilder(newRenderer(t), repo, nil)
	builder.Versions = repo
	row := mainPlateRow(t, ".exr")
	row.Version = 3

	graph, err := builder.Build(context.Background(), row, testTargets(t, "jpg"), jobgraph.NewShotCache(repo))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if !slices.Equal(repo.Retakes, []string{"A01_001/plate/mp0"}) {
		t.Fatalf("unexpected retakes %v", repo.Retakes)
	}
	if got := repo.PlateVersions[graph.Shot.Shot.ID]; got != "mp0_v003" {
		t.Fatalf("expected current plate version mp0_v003, got %q", got)
	}
}

func TestBuildIgnoresPlateVersionFailures(t *testing.T) {
	repo := testsupport.NewFakeRepository()
	repo.FailUpdate = true
	builder := jobgraph.NewBuilder(newRenderer(t), repo, nil)
	builder.Versions = repo

	if _, err := builder.Build(context.Background(), mainPlateRow(t, ".exr"), testTargets(t, "jpg"), jobgraph.NewShotCache(repo)); err != nil {
		t.Fatalf("repository update failures should only warn, got %v", err)
	}
	if len(repo.PlateVersions) != 0 {
		t.Fatalf("unexpected plate versions %v", repo.PlateVersions)
	}
}

func TestCopyPairsRenumberFromWorkingStart(t *testing.T) {
	row := mainPlateRow(t, ".exr")
	row.StartFrame, row.EndFrame = 993, 1092
	row.FrameHandle = 8
	info := mustResolve(t, row.SourcePath)

	pairs := jobgraph.CopyPairs(info, row, "/plates/A01_001.%04d.exr")
	if len(pairs) != 100 {
		t.Fatalf("expected 100 pairs, got %d", len(pairs))
	}
	if pairs[0].Target != "/plates/A01_001.0993.exr" || !strings.HasSuffix(pairs[0].Source, ".1001.exr") {
		t.Fatalf("unexpected first pair %+v", pairs[0])
	}
	if pairs[99].Target != "/plates/A01_001.1092.exr" {
		t.Fatalf("unexpected last pair %+v", pairs[99])
	}
}
