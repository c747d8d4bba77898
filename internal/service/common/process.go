//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	ps "github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process runs the same executable.
var ErrAlreadyRunning = errors.New("another instance is already running")

const (
	// linuxCommLen is how much of a process name /proc/<pid>/stat keeps.
	linuxCommLen = 15
	// darwinCommLen is the length of p_comm reported by sysctl.
	darwinCommLen = 16
)

// commLen returns how many bytes of a process name the process table keeps
// on goos, zero when names are reported in full.
func commLen(goos string) int {
	switch goos {
	case "linux":
		return linuxCommLen
	case "darwin":
		return darwinCommLen
	default:
		return 0
	}
}

// truncateName cuts name to limit bytes. A non-positive limit keeps it whole.
func truncateName(name string, limit int) string {
	if limit <= 0 || len(name) <= limit {
		return name
	}

	return name[:limit]
}

// EnsureSingleInstance fails when another process with this executable's
// name is running. The controller owns the GPIO pins and the alert state,
// so two of them on one board would fight over the indicators.
func EnsureSingleInstance() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("detect executable: %w", err)
	}

	return ensureSingle(filepath.Base(executable), os.Getpid(), commLen(runtime.GOOS), ps.Processes)
}

// ensureSingle scans the process table returned by list. Names are compared
// after cutting both to limit bytes, the way the table reports them.
func ensureSingle(name string, self, limit int, list func() ([]ps.Process, error)) error {
	want := truncateName(name, limit)

	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if truncateName(process.Executable(), limit) != want {
			continue
		}

		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, name, process.Pid())
	}

	return nil
}
