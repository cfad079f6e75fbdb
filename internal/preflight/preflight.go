package preflight

import (
	"context"
	"strings"

	"iomanager/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Remotes are the network collaborators to probe. Nil entries are skipped.
type Remotes struct {
	Farm     Pinger
	ShotGrid Pinger
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, remotes Remotes) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckReadable("Scan root", cfg.Paths.ScanRoot))
	results = append(results, CheckDirectoryAccess("Shared drive", cfg.Paths.SharedDrive))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	for _, status := range CheckSystemDeps(cfg) {
		if status.Optional && !status.Available {
			continue
		}
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Path
		}
		results = append(results, result)
	}

	if remotes.Farm != nil {
		results = append(results, CheckRemote(ctx, "Deadline", remotes.Farm))
	}
	if remotes.ShotGrid != nil && strings.TrimSpace(cfg.ShotGrid.SiteURL) != "" {
		results = append(results, CheckRemote(ctx, "ShotGrid", remotes.ShotGrid))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
