package core

import (
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

type CoreSection struct {
	RepositoryFormatVersion int  `ini:"repositoryformatversion"`
	FileMode                bool `ini:"filemode"`
	Bare                    bool `ini:"bare"`
}

type GitConfig struct {
	Core CoreSection `ini:"core"`
}

func newGitConfig(path string) (*GitConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	var gitConfig GitConfig

	if err := cfg.Section("core").MapTo(&gitConfig.Core); err != nil {
		return nil, err
	}

	return &gitConfig, nil
}

// RepositoryLayout describes what looksLikeRepository found in a directory.
type RepositoryLayout int

const (
	LayoutNone RepositoryLayout = iota
	LayoutBare
	LayoutWorkingCopy
)

func (l RepositoryLayout) String() string {
	switch l {
	case LayoutBare:
		return "bare"
	case LayoutWorkingCopy:
		return "working copy"
	default:
		return "none"
	}
}

// looksLikeRepository reports whether dir holds Git data: HEAD and config at
// the root (bare) or a .git subdirectory (working copy).
func looksLikeRepository(dir string) RepositoryLayout {
	if isFile(filepath.Join(dir, "HEAD")) && isFile(filepath.Join(dir, "config")) {
		return LayoutBare
	}

	if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
		return LayoutWorkingCopy
	}

	return LayoutNone
}

// isBareConfig reads core.bare from a repository config file. A config that
// cannot be parsed counts as not bare.
func isBareConfig(dir string) bool {
	cfg, err := newGitConfig(filepath.Join(dir, "config"))
	if err != nil {
		return false
	}

	return cfg.Core.Bare
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
