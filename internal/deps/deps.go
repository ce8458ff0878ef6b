// Package deps checks that the external tools the ingest pipeline spawns
// are actually installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"kinotek/internal/config"
)

// Requirement defines an external binary kinotek relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status reports the availability of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Available   bool
	Detail      string
}

// Required lists the pipeline's tool requirements for a configuration.
func Required(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "MediaInfo", Command: cfg.Tools.Mediainfo, Description: "Probes uploaded sources"},
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "Thumbnails, subtitle conversion, and HLS transcode"},
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
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
