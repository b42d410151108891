package preflight

import (
	"context"
	"path/filepath"

	"m4bsplit/internal/config"
	"m4bsplit/internal/discovery"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every check relevant to splitting the books in workDir
// with the given config.
func RunAll(ctx context.Context, cfg *config.Config, workDir string) []Result {
	if cfg == nil {
		return nil
	}

	results := CheckTools(ctx, cfg)

	results = append(results, CheckDirectoryReadable("Input directory", workDir))

	outputRoot := cfg.Paths.OutputDir
	if outputRoot == "" {
		outputRoot = workDir
		results = append(results, CheckDirectoryAccess("Output directory", outputRoot))
	} else {
		results = append(results, CheckCreatableDirectory("Output directory", outputRoot))
	}

	var needed uint64
	if inputs, err := discovery.Discover(workDir, cfg.Split.InputExtension); err == nil {
		needed = EstimateInputBytes(inputs)
	}
	if dir := nearestExistingDir(outputRoot); dir != "" {
		results = append(results, CheckFreeSpace("Free space", dir, needed))
	}

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckCreatableDirectory("Log directory", cfg.Paths.LogDir))
	}
	if cfg.Journal.Enabled {
		results = append(results, CheckCreatableDirectory("Journal directory", filepath.Dir(cfg.Journal.Path)))
	}

	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
