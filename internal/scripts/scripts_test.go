package scripts_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iomanager/internal/frames"
	"iomanager/internal/scripts"
)

func newRenderer(t *testing.T) *scripts.Renderer {
	t.Helper()
	r, err := scripts.New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return r
}

func TestRenderWritesRenderScript(t *testing.T) {
	r := newRenderer(t)
	path := filepath.Join(t.TempDir(), "A01_001_mp0_v001", ".render_A01_001_mp0_v001.py")
	got, err := r.Render(scripts.KindRender, path, scripts.RenderData{
		ScriptPath:  strings.TrimSuffix(path, ".py") + ".nk",
		ConnectName: "A01_001_mp0_v001",
		Source:      "/scan/A01_001_mp0_v001/plate.%04d.exr 1-100",
		Range:       frames.Range{Start: 1001, End: 1100},
		OrgRange:    frames.Range{Start: 1, End: 100},
		FPS:         23.976,
		CropPreset:  "Original",
		MovieCodec:  "prores4444",
		Writes: []scripts.Write{
			{Node: "WriteJPG", Path: "/shots/jpg/A01_001_mp0_v001.%04d.jpg", FileType: "jpg"},
			{Node: "WriteMOV", Path: "/shots/A01_001_mp0_v001.mov", FileType: "mov"},
		},
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != path {
		t.Fatalf("unexpected path %q", got)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	text := string(content)
	for _, want := range []string{
		`source = "/scan/A01_001_mp0_v001/plate.%04d.exr 1-100"`,
		"first_frame = 1001",
		"fps = 23.976",
		`write['name'].setValue("WriteJPG")`,
		`write['mov64_codec'].setValue("prores4444")`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("render script missing %q:\n%s", want, text)
		}
	}
	if strings.Count(text, "nuke.createNode('Write')") != 2 {
		t.Fatalf("expected two write nodes:\n%s", text)
	}
}

func TestRenderQuotesPaths(t *testing.T) {
	r := newRenderer(t)
	path := filepath.Join(t.TempDir(), "upload.py")
	if _, err := r.Render(scripts.KindUpload, path, scripts.UploadData{
		Code:        "A01_001_mp0_v001",
		Description: `quote " and \ backslash`,
		Media:       "/shots/A01_001_mp0_v001.mov",
		Range:       frames.Range{Start: 1001, End: 1100},
		ShotID:      42,
	}); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if !strings.Contains(string(content), `description = "quote \" and \\ backslash"`) {
		t.Fatalf("description not escaped:\n%s", content)
	}
	if strings.Contains(string(content), "script_key = \"") {
		t.Fatal("script key must come from the farm environment")
	}
}

func TestRenderUnknownFieldFails(t *testing.T) {
	r := newRenderer(t)
	_, err := r.Render(scripts.KindComp, filepath.Join(t.TempDir(), "comp.py"), struct{ Shot string }{Shot: "A01_001"})
	if err == nil {
		t.Fatal("expected template error for incomplete data")
	}
}

func TestWriteCopyBatches(t *testing.T) {
	r := newRenderer(t)
	dir := t.TempDir()
	pairs := make([]scripts.CopyPair, 0, 120)
	for i := 0; i < 120; i++ {
		pairs = append(pairs, scripts.CopyPair{
			Source: fmt.Sprintf("/scan/plate.%04d.exr", i+1),
			Target: fmt.Sprintf("/shots/A01_001_mp0_v001.%04d.exr", 1001+i),
		})
	}
	paths, err := r.WriteCopyBatches(filepath.Join(dir, ".copy_to_A01_001_mp0_v001.py"), pairs, 50)
	if err != nil {
		t.Fatalf("WriteCopyBatches returned error: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(paths))
	}
	if filepath.Base(paths[2]) != ".copy_to_A01_001_mp0_v001_03.py" {
		t.Fatalf("unexpected batch name %q", paths[2])
	}
	last, err := os.ReadFile(paths[2])
	if err != nil {
		t.Fatalf("read batch: %v", err)
	}
	if got := strings.Count(string(last), "shutil.copy2("); got != 20 {
		t.Fatalf("expected 20 copies in last batch, got %d", got)
	}
	if !strings.Contains(string(last), "(120/120) plate.0120.exr -> A01_001_mp0_v001.1120.exr") {
		t.Fatalf("missing progress line:\n%s", last)
	}

	if _, err := r.WriteCopyBatches(filepath.Join(dir, "empty"), nil, 50); err == nil {
		t.Fatal("expected error for empty copy list")
	}
}

func TestPreviewWritesNothing(t *testing.T) {
	dir := t.TempDir()
	pairs := make([]scripts.CopyPair, 51)
	paths, err := scripts.Preview{}.WriteCopyBatches(filepath.Join(dir, ".copy_to_X.py"), pairs, 50)
	if err != nil {
		t.Fatalf("WriteCopyBatches returned error: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[1]) != ".copy_to_X_02.py" {
		t.Fatalf("unexpected paths %v", paths)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("preview wrote files: %v", entries)
	}
}
