package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Requirement defines an external binary m4bsplit relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// MediaRequirements lists the ffprobe/ffmpeg binaries a split needs.
func MediaRequirements(ffprobe, ffmpeg string) []Requirement {
	return []Requirement{
		{Name: "ffprobe", Command: ffprobe, Description: "Reads chapter metadata"},
		{Name: "ffmpeg", Command: ffmpeg, Description: "Cuts chapters with stream copy"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// versionTimeout bounds each -version call.
const versionTimeout = 5 * time.Second

// ReadVersions fills Version for every available status by running
// "<binary> -version" and keeping the first line. Failures leave Version
// empty and note the reason in Detail.
func ReadVersions(ctx context.Context, statuses []Status) []Status {
	for i := range statuses {
		if !statuses[i].Available {
			continue
		}
		version, err := firstVersionLine(ctx, statuses[i].Path)
		if err != nil {
			statuses[i].Detail = fmt.Sprintf("version check failed: %v", err)
			continue
		}
		statuses[i].Version = version
	}
	return statuses
}

func firstVersionLine(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-version").Output() //nolint:gosec
	if err != nil {
		return "", err
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", nil
}
