package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary dubline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// MediaRequirements lists the binaries audio extraction needs. Both are
// optional because ingest can fall back to a default duration.
func MediaRequirements(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: orDefault(ffmpeg, "ffmpeg"), Description: "Extracts audio from uploaded video", Optional: true},
		{Name: "FFprobe", Command: orDefault(ffprobe, "ffprobe"), Description: "Measures media duration", Optional: true},
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
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Command = resolved
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing returns a description of every unavailable requirement.
func Missing(statuses []Status) []string {
	var out []string
	for _, status := range statuses {
		if !status.Available {
			out = append(out, fmt.Sprintf("%s: %s", status.Name, status.Detail))
		}
	}
	return out
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
