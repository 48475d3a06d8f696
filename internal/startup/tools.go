package startup

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"instantsaver/internal/logging"
)

// ToolStatus describes an external binary the service shells out to.
type ToolStatus struct {
	Present bool   `json:"present"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

const versionTimeout = 5 * time.Second

// CheckTool resolves name on PATH and runs it with versionArg, keeping the
// first line of output as the version.
func CheckTool(name, versionArg string) ToolStatus {
	path, err := exec.LookPath(name)
	if err != nil {
		return ToolStatus{Error: "not found in PATH"}
	}

	status := ToolStatus{Present: true, Path: path}

	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, versionArg).Output()
	if err != nil {
		status.Error = "version check failed: " + err.Error()
		return status
	}

	status.Version = firstLine(string(output))
	return status
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

func logToolStatus(name string, status ToolStatus) {
	if !status.Present {
		logging.Warn("  %s: %s", name, status.Error)
		return
	}
	logging.Debug("  %s path: %s", name, status.Path)
	if status.Error != "" {
		logging.Warn("  %s: %s", name, status.Error)
		return
	}
	logging.Info("  [OK] %s %s", name, status.Version)
}
