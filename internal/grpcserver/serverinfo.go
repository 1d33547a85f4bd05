package grpcserver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inovacc/gitcove/internal/application"
	"github.com/inovacc/gitcove/internal/encoding"
	"github.com/inovacc/gitcove/internal/process"
)

// ErrNoServerInfo indicates no server info file exists
var ErrNoServerInfo = errors.New("no server info file")

// ServerInfo describes a running server
type ServerInfo struct {
	HTTPAddress string    `json:"http_address"`
	GRPCAddress string    `json:"grpc_address,omitempty"`
	Root        string    `json:"root"`
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
}

// InfoPath returns the location of server.json in the application directory.
func InfoPath() (string, error) {
	dir, err := application.GetApplicationDirectory()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "server.json"), nil
}

// ReadServerInfo reads the server info file at path.
func ReadServerInfo(path string) (*ServerInfo, error) {
	info, err := encoding.LoadJSON[ServerInfo](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read server info: %w", err)
	}

	if info == nil {
		return nil, ErrNoServerInfo
	}

	return info, nil
}

// WriteServerInfo records info for the current process at path.
func WriteServerInfo(path string, info ServerInfo) error {
	if info.PID == 0 {
		info.PID = os.Getpid()
	}

	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}

	return encoding.SaveJSON(path, info)
}

// RemoveServerInfo removes the server info file (called when server stops)
func RemoveServerInfo(path string) {
	_ = os.Remove(path)
}

// IsServerRunning returns the recorded server when its process is alive.
// A stale file is removed.
func IsServerRunning(path string) *ServerInfo {
	info, err := ReadServerInfo(path)
	if err != nil {
		return nil
	}

	if process.IsRunning(info.PID) {
		return info
	}

	RemoveServerInfo(path)

	return nil
}
