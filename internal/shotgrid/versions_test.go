package shotgrid_test

import (
	"context"
	"slices"
	"strings"
	"testing"

	"iomanager/internal/shotgrid"
)

func seedVersion(site *fakeSite, id int, code, task, status string) {
	site.entities["Version"] = append(site.entities["Version"], map[string]any{
		"id":                                    id,
		"code":                                  code,
		"sg_status_list":                        status,
		"project.Project.name":                  "HERO",
		"entity":                                map[string]any{"type": "Shot", "id": 42},
		"entity.Shot.code":                      strings.SplitN(code, "_", 3)[0] + "_" + strings.SplitN(code, "_", 3)[1],
		"entity.Shot.sg_sequence.Sequence.code": "A01",
		"sg_task.Task.content":                  task,
	})
}

func TestNextVersion(t *testing.T) {
	site := newFakeSite()
	seedVersion(site, 1, "A01_001_mp0_v001", "plate", "po")
	seedVersion(site, 2, "A01_001_mp0_v003", "plate", "po")
	seedVersion(site, 3, "A01_001_mp1_v009", "plate", "po")
	seedVersion(site, 4, "A01_002_mp0_v007", "plate", "po")
	client := newClient(t, site, "secret")
	ctx := context.Background()

	next, err := client.NextVersion(ctx, "HERO", "A01", "A01_001", "mp0")
	if err != nil {
		t.Fatalf("NextVersion returned error: %v", err)
	}
	if next != 4 {
		t.Fatalf("expected version 4, got %d", next)
	}

	next, err = client.NextVersion(ctx, "HERO", "A01", "A01_001", "sp0")
	if err != nil {
		t.Fatalf("NextVersion returned error: %v", err)
	}
	if next != 1 {
		t.Fatalf("expected first version for unpublished plate, got %d", next)
	}
}

func TestNextVersionReadsDatedEditCodes(t *testing.T) {
	site := newFakeSite()
	seedVersion(site, 1, "A01_001_edit_v002_260309", "EDIT", "rev")
	client := newClient(t, site, "secret")

	next, err := client.NextVersion(context.Background(), "HERO", "A01", "A01_001", "edit")
	if err != nil {
		t.Fatalf("NextVersion returned error: %v", err)
	}
	if next != 3 {
		t.Fatalf("expected version 3, got %d", next)
	}
}

func TestShotLUT(t *testing.T) {
	site := newFakeSite()
	site.entities["Shot"] = []map[string]any{{
		"id":                        42,
		"code":                      "A01_001",
		"project.Project.name":      "HERO",
		"sg_sequence.Sequence.code": "A01",
		"sg_luts":                   " show_v2 ",
	}}
	client := newClient(t, site, "secret")
	ctx := context.Background()

	lut, err := client.ShotLUT(ctx, "HERO", "A01", "A01_001")
	if err != nil {
		t.Fatalf("ShotLUT returned error: %v", err)
	}
	if lut != "show_v2" {
		t.Fatalf("unexpected lut %q", lut)
	}

	lut, err = client.ShotLUT(ctx, "HERO", "A01", "A01_999")
	if err != nil || lut != "" {
		t.Fatalf("expected empty lut for unknown shot, got %q, %v", lut, err)
	}
}

func TestRetakeVersionsTouchesOnlyMatchingTaskAndType(t *testing.T) {
	site := newFakeSite()
	seedVersion(site, 1, "A01_001_mp0_v001", "plate", "po")
	seedVersion(site, 2, "A01_001_mp0_v002", "plate", "po")
	seedVersion(site, 3, "A01_001_mp1_v001", "plate", "po")
	seedVersion(site, 4, "A01_001_mp0_v001", "EDIT", "rev")
	client := newClient(t, site, "secret")

	if err := client.RetakeVersions(context.Background(), "HERO", "A01_001", "plate", "mp0"); err != nil {
		t.Fatalf("RetakeVersions returned error: %v", err)
	}
	if !slices.Equal(site.updates, []string{"Version/1", "Version/2"}) {
		t.Fatalf("unexpected updates %v", site.updates)
	}
	if site.written["Version/1"]["sg_status_list"] != shotgrid.RetakeStatus {
		t.Fatalf("unexpected update fields %v", site.written["Version/1"])
	}
}

func TestUpdatePlateVersionsOrdersList(t *testing.T) {
	site := newFakeSite()
	seedVersion(site, 1, "A01_001_mp0_v001", "plate", "po")
	seedVersion(site, 2, "A01_001_rp0_v001", "plate", "po")
	seedVersion(site, 3, "A01_001_mp1_v002", "plate", "po")
	seedVersion(site, 4, "A01_001_sp0_v001", "plate", "retake")
	seedVersion(site, 5, "A01_001_sp1_v004", "plate", "po")
	client := newClient(t, site, "secret")

	shot := shotgrid.Entity{Type: "Shot", ID: 42}
	if err := client.UpdatePlateVersions(context.Background(), shot, "A01_001", "mp0_v002"); err != nil {
		t.Fatalf("UpdatePlateVersions returned error: %v", err)
	}
	got := site.written["Shot/42"]["sg_plate_versions"]
	want := "rp0_v001\nmp1_v002\nmp0_v002\nmp0_v001\nsp1_v004"
	if got != want {
		t.Fatalf("unexpected plate versions:\n%v\nwant:\n%s", got, want)
	}
}

func TestSortPlateVersions(t *testing.T) {
	list := []string{"sp0_v001", "custom", "mp0_v001", "mp0_v010", "rp1_v001", "mp2_v001"}
	shotgrid.SortPlateVersions(list)
	want := []string{"rp1_v001", "mp2_v001", "mp0_v010", "mp0_v001", "sp0_v001", "custom"}
	if !slices.Equal(list, want) {
		t.Fatalf("unexpected order %v", list)
	}
}
