package application

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// AppName is the application name used for directories and identification
	AppName = "gitcove"

	// ServiceName is the name registered with the OS service manager
	ServiceName = "GitcoveServer"

	// ConfigFileName is the ini file looked up in the application directory
	ConfigFileName = "gitcove.ini"

	// SystemAuthorName and SystemAuthorEmail sign commits made by the server itself
	SystemAuthorName  = "gitcove"
	SystemAuthorEmail = "admin@gitcove.local"
)

var (
	once   sync.Once
	appDir string
	errDir error
)

// GetApplicationDirectory returns the gitcove configuration directory path.
// Linux: ~/.config/gitcove (via os.UserConfigDir)
// Windows: C:\Users\{username}\AppData\Local\gitcove (via os.UserCacheDir)
func GetApplicationDirectory() (string, error) {
	once.Do(lazyLoad)

	if errDir != nil {
		return "", errDir
	}

	return appDir, nil
}

// DefaultConfigPath returns the location of the ini file inside the application directory.
func DefaultConfigPath() (string, error) {
	dir, err := GetApplicationDirectory()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, ConfigFileName), nil
}

func lazyLoad() {
	var (
		baseDir string
		err     error
	)

	switch runtime.GOOS {
	case "windows":
		baseDir, err = os.UserCacheDir()
	default:
		baseDir, err = os.UserConfigDir()
	}

	if err != nil {
		errDir = fmt.Errorf("failed to get config directory: %w", err)
		return
	}

	appDir = filepath.Join(baseDir, AppName)
}
