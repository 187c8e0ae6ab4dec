package preflight

import (
	"context"
	"strings"

	"dubline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckObjectStore(ctx, cfg),
	}

	if strings.EqualFold(cfg.Workflow.Store, "redis") {
		results = append(results, CheckRedis(ctx, cfg.Redis))
	}

	// The openai provider shares the transcription key, which the
	// transcription stage exercises on first use.
	if !strings.EqualFold(cfg.Translation.Provider, "openai") {
		results = append(results, CheckLLM(ctx, "Translation LLM", cfg.Translation))
	}

	return results
}

// Failed returns only the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
