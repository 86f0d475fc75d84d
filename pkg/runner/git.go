package runner

import (
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// CurrentCommit returns the HEAD commit hash of the repository at dir, or
// "unknown" when dir is not a git checkout. Results are recorded against
// this hash for staleness detection.
func CurrentCommit(dir string) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		logrus.Warnf("could not determine git commit: %v", err)
		return "unknown"
	}

	return strings.TrimSpace(string(out))
}
