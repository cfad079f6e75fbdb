package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"iomanager/internal/config"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckReadable_Unconfigured(t *testing.T) {
	if CheckReadable("Scan root", "").Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckRemote(t *testing.T) {
	ok := CheckRemote(context.Background(), "Deadline", pingFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got %+v", ok)
	}
	slow := CheckRemote(context.Background(), "Deadline", pingFunc(func(context.Context) error { return context.DeadlineExceeded }))
	if slow.Passed || slow.Detail != "check timed out (Deadline unresponsive)" {
		t.Fatalf("unexpected timeout result %+v", slow)
	}
	bad := CheckRemote(context.Background(), "ShotGrid", pingFunc(func(context.Context) error { return errors.New("401 unauthorized") }))
	if bad.Passed || bad.Detail != "401 unauthorized" {
		t.Fatalf("unexpected failure result %+v", bad)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if RunAll(context.Background(), nil, Remotes{}) != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_SkipsUnconfiguredShotGrid(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ScanRoot = t.TempDir()
	cfg.Paths.SharedDrive = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.ShotGrid.SiteURL = ""

	called := false
	results := RunAll(context.Background(), &cfg, Remotes{
		Farm:     pingFunc(func(context.Context) error { return nil }),
		ShotGrid: pingFunc(func(context.Context) error { called = true; return nil }),
	})
	if called {
		t.Fatal("ShotGrid must not be pinged without a site url")
	}
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Scan root", "Shared drive", "State directory", "Deadline"} {
		if !names[want] {
			t.Fatalf("missing %q check in %+v", want, results)
		}
	}
}

func TestFailed(t *testing.T) {
	got := Failed([]Result{{Name: "a", Passed: true}, {Name: "b"}})
	if len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("unexpected failed set %+v", got)
	}
}
