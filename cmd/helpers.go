package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/inovacc/gitcove/internal/core"
	"github.com/inovacc/gitcove/internal/store"
)

// services bundles the managers a command needs over one open store.
type services struct {
	store       store.Store
	repos       *core.Manager
	users       *core.UserManager
	permissions *core.PermissionManager
}

func openServices() (*services, error) {
	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &services{
		store:       st,
		repos:       core.NewManager(st, cfg.Repositories.Root),
		users:       core.NewUserManager(st),
		permissions: core.NewPermissionManager(st),
	}, nil
}

func (s *services) Close() {
	_ = s.store.Close()
}

// withServices opens the store for the duration of fn.
func withServices(fn func(*services) error) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(svc)
}

// promptConfirm asks the user for confirmation and returns true if they confirm
// prompt should include the question (e.g., "Delete this file? [y/N]: ")
func promptConfirm(prompt string) bool {
	_, _ = fmt.Fprint(os.Stdout, prompt)

	var response string

	_, _ = fmt.Scanln(&response)

	return response == "y" || response == "Y"
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid repository id %q", arg)
	}

	return id, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}
