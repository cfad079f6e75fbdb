package rows_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"iomanager/internal/frames"
	"iomanager/internal/media/ffprobe"
	"iomanager/internal/rows"
	"iomanager/internal/services"
	"iomanager/internal/testsupport"
)

func TestLoadSequenceFolders(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteSequence(t, filepath.Join(root, "A01_001_mp0_v001"), "A01_001_mp0_v001.", ".jpg", testsupport.FrameSpan(86400, 86499)...)
	testsupport.WriteSequence(t, filepath.Join(root, "A01_002_sp1_v003"), "plate.", ".jpg", testsupport.FrameSpan(1, 10)...)
	testsupport.WriteSequence(t, filepath.Join(root, "A01_003_mp0_v001"), "gap.", ".jpg", 1, 2, 4)
	if err := os.MkdirAll(filepath.Join(root, "_io"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	result, err := rows.Loader{StartFrame: 1001}.Load(context.Background(), root)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if result.Kind != rows.KindSequence {
		t.Fatalf("expected sequence kind, got %q", result.Kind)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if len(result.Skipped) != 1 || !errors.Is(result.Skipped[0].Err, services.ErrSequenceGap) {
		t.Fatalf("expected gap skip, got %+v", result.Skipped)
	}

	first := result.Rows[0]
	if first.Shot != "A01_001" || first.Sequence != "A01" || first.Tag != "mp0" || first.Version != 1 {
		t.Fatalf("unexpected identity: %+v", first)
	}
	if first.PlateType != rows.MainPlate || !first.Confirmed {
		t.Fatalf("unexpected plate type or confirmation: %+v", first)
	}
	if first.OrgRange != (frames.Range{Start: 86400, End: 86499}) {
		t.Fatalf("unexpected org range %v", first.OrgRange)
	}
	if first.StartFrame != 1001 || first.EndFrame != 1100 || first.Duration != 100 {
		t.Fatalf("expected re-anchored 1001-1100, got %d-%d (%d)", first.StartFrame, first.EndFrame, first.Duration)
	}
	if result.Rows[1].PlateType != rows.SubPlate || result.Rows[1].Version != 3 {
		t.Fatalf("unexpected second row: %+v", result.Rows[1])
	}
	if len(result.Thumbnails) != 2 {
		t.Fatalf("expected thumbnail tasks for both rows, got %d", len(result.Thumbnails))
	}
	wantThumb := filepath.Join(root, "A01_001_mp0_v001", "proxy_thumb", "A01_001_mp0_v001.jpg")
	if result.Thumbnails[0].Output != wantThumb || result.Thumbnails[0].Row != 0 {
		t.Fatalf("unexpected thumbnail task: %+v", result.Thumbnails[0])
	}
}

func fakeProbe(durations map[string]int) func(context.Context, string) (ffprobe.ClipInfo, error) {
	return func(_ context.Context, path string) (ffprobe.ClipInfo, error) {
		d, ok := durations[filepath.Base(path)]
		if !ok {
			return ffprobe.ClipInfo{}, errors.New("probe failed")
		}
		return ffprobe.ClipInfo{
			StartTimecode:  frames.MustTimecode("01:00:00:00"),
			HasTimecode:    true,
			DurationFrames: d,
			FPS:            24,
			Width:          1920,
			Height:         1080,
			ReelName:       "A001C001",
		}, nil
	}
}

func TestLoadMovies(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"B02_010_mp0_v002.mov", "B02_020_rp0_v001.MOV", "broken.mov", "notes.txt"} {
		testsupport.WriteFile(t, filepath.Join(root, name), 8)
	}

	loader := rows.Loader{
		StartFrame: 1001,
		Probe:      fakeProbe(map[string]int{"B02_010_mp0_v002.mov": 48, "B02_020_rp0_v001.MOV": 24}),
	}
	result, err := loader.Load(context.Background(), root)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if result.Kind != rows.KindMovie || len(result.Rows) != 2 || len(result.Skipped) != 1 {
		t.Fatalf("unexpected result: kind=%q rows=%d skipped=%d", result.Kind, len(result.Rows), len(result.Skipped))
	}
	row := result.Rows[0]
	if row.OrgRange != (frames.Range{Start: 1001, End: 1048}) {
		t.Fatalf("unexpected org range %v", row.OrgRange)
	}
	if row.Resolution != "1920*1080" || row.ClipName != "A001C001" {
		t.Fatalf("unexpected metadata: %+v", row)
	}
	if row.SourceTimecodeOut == nil || row.SourceTimecodeOut.String() != "01:00:01:23" {
		t.Fatalf("unexpected timecode out: %v", row.SourceTimecodeOut)
	}
	wantThumb := filepath.Join(root, "_io", "proxy_thumb", "B02_010_mp0_v002.jpg")
	if result.Thumbnails[0].Output != wantThumb {
		t.Fatalf("unexpected thumbnail path %q", result.Thumbnails[0].Output)
	}
}

func TestLoadEmptyRoot(t *testing.T) {
	_, err := rows.Loader{}.Load(context.Background(), t.TempDir())
	if !errors.Is(err, rows.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestLoadEdits(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "EP01_S010_0020_edit_v004.mov"), 8)

	loader := rows.Loader{
		Probe: fakeProbe(map[string]int{"EP01_S010_0020_edit_v004.mov": 100}),
		Now:   func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) },
	}
	result, err := loader.LoadEdits(context.Background(), root)
	if err != nil {
		t.Fatalf("LoadEdits returned error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	row := result.Rows[0]
	if !row.IsEdit() || row.EditDate != "260309" || row.Version != 4 || row.Shot != "EP01_S010_0020" {
		t.Fatalf("unexpected edit row: %+v", row)
	}
	if row.StartFrame != 1001 || row.EndFrame != 1100 {
		t.Fatalf("unexpected edit range %d-%d", row.StartFrame, row.EndFrame)
	}
	if row.SourceTimecodeIn != nil {
		t.Fatalf("edit rows carry no source timecode, got %v", row.SourceTimecodeIn)
	}
	if err := row.Validate(); err != nil {
		t.Fatalf("edit row should validate: %v", err)
	}
}

func TestReanchorFollowsHandle(t *testing.T) {
	end := 1100
	row := rows.Row{StartFrame: 1001, EndFrame: 1100, Duration: 100, FrameHandle: 8, RetimeEndFrame: &end}
	out := rows.Reanchor(row, 1001)
	if out.StartFrame != 993 || out.EndFrame != 1092 {
		t.Fatalf("expected 993-1092, got %d-%d", out.StartFrame, out.EndFrame)
	}
	if *out.RetimeEndFrame != 1092 || *row.RetimeEndFrame != 1100 {
		t.Fatalf("retime end not moved on copy only: out=%d in=%d", *out.RetimeEndFrame, *row.RetimeEndFrame)
	}
}

func TestValidate(t *testing.T) {
	row := rows.Row{
		ScanName: "A01_001_mp0_v001", Sequence: "A01", Shot: "A01_001", Tag: "mp0",
		PlateType: rows.MainPlate, Version: 1, StartFrame: 1001, EndFrame: 1100, Duration: 100,
	}
	if err := row.Validate(); err != nil {
		t.Fatalf("expected valid row, got %v", err)
	}
	if row.ConnectName() != "A01_001_mp0_v001" {
		t.Fatalf("unexpected connect name %q", row.ConnectName())
	}

	bad := row
	bad.Shot = ""
	bad.EndFrame = 900
	err := bad.Validate()
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "shot missing") || !strings.Contains(err.Error(), "after end frame") {
		t.Fatalf("expected both problems reported, got %v", err)
	}

	edit := row
	edit.PlateType = rows.EditPlate
	if err := edit.Validate(); err == nil || !strings.Contains(err.Error(), "edit date missing") {
		t.Fatalf("expected edit date error, got %v", err)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	speed := 1.25
	tc := frames.MustTimecode("10:00:00:00")
	manifest := rows.Manifest{
		Root: "/scans/day1",
		Kind: rows.KindSequence,
		Rows: []rows.Row{{
			ScanName: "A01_001_mp0_v001", Shot: "A01_001", Version: 1,
			OrgRange:   frames.Range{Start: 1, End: 100},
			StartFrame: 1001, EndFrame: 1080, Duration: 80,
			RetimeSpeed: &speed, SourceTimecodeIn: &tc,
		}},
	}
	path := rows.ManifestPath(t.TempDir())
	if err := rows.WriteManifest(path, manifest); err != nil {
		t.Fatalf("WriteManifest returned error: %v", err)
	}
	got, err := rows.ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest returned error: %v", err)
	}
	if len(got.Rows) != 1 || got.Root != "/scans/day1" {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	row := got.Rows[0]
	if row.RetimeSpeed == nil || *row.RetimeSpeed != 1.25 {
		t.Fatalf("retime speed lost: %v", row.RetimeSpeed)
	}
	if row.SourceTimecodeIn == nil || row.SourceTimecodeIn.String() != "10:00:00:00" {
		t.Fatalf("timecode lost: %v", row.SourceTimecodeIn)
	}
	if row.OrgRange.End != 100 {
		t.Fatalf("org range lost: %v", row.OrgRange)
	}
}

func TestReadManifestRejectsBrokenInvariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yaml")
	body := "version: 1\nrows:\n  - scan_name: X\n    start_frame: 1001\n    end_frame: 1010\n    duration: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := rows.ReadManifest(path); err == nil {
		t.Fatal("expected invariant error")
	}
}

func TestTimecodeSourceMovie(t *testing.T) {
	source := rows.TimecodeSource{Probe: fakeProbe(map[string]int{"clip.mov": 10})}
	tc, err := source.SourceStart(context.Background(), rows.Row{Kind: rows.KindMovie, SourcePath: "/scan/clip.mov"})
	if err != nil {
		t.Fatalf("SourceStart returned error: %v", err)
	}
	if tc.String() != "01:00:00:00" {
		t.Fatalf("unexpected timecode %s", tc)
	}

	_, err = source.SourceStart(context.Background(), rows.Row{Kind: rows.KindSequence, SourcePath: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for empty sequence dir")
	}
}
