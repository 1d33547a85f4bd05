// Package process finds running Go processes through the gops process table.
package process

import (
	"github.com/google/gops/goprocess"
)

// Process is one running Go program.
type Process struct {
	PID          int
	PPID         int
	Exec         string
	Path         string
	BuildVersion string
	Agent        bool
}

// List returns every Go process visible to the current user.
func List() []Process {
	found := goprocess.FindAll()

	procs := make([]Process, 0, len(found))
	for _, p := range found {
		procs = append(procs, Process{
			PID:          p.PID,
			PPID:         p.PPID,
			Exec:         p.Exec,
			Path:         p.Path,
			BuildVersion: p.BuildVersion,
			Agent:        p.Agent,
		})
	}

	return procs
}

// Find returns the Go process with the given pid.
func Find(pid int) (Process, bool) {
	if pid <= 0 {
		return Process{}, false
	}

	for _, p := range List() {
		if p.PID == pid {
			return p, true
		}
	}

	return Process{}, false
}

// IsRunning reports whether pid is a live Go process.
func IsRunning(pid int) bool {
	_, ok := Find(pid)
	return ok
}
