package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inovacc/gitcove/internal/application"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var (
	serviceStart     bool
	serviceStop      bool
	serviceInstall   bool
	serviceUninstall bool
	serviceStatus    bool
	serviceRun       bool
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage gitcove as a system service",
	Long: `Install, uninstall, start, stop, or check the status of the gitcove server as a
system service.

On Windows, this creates/manages a Windows Service.
On Linux/macOS, this creates/manages a systemd/launchd service.`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.Flags().BoolVar(&serviceStart, "start", false, "Start the gitcove service")
	serviceCmd.Flags().BoolVar(&serviceStop, "stop", false, "Stop the gitcove service")
	serviceCmd.Flags().BoolVar(&serviceInstall, "install", false, "Install gitcove as a system service")
	serviceCmd.Flags().BoolVar(&serviceUninstall, "uninstall", false, "Uninstall the gitcove system service")
	serviceCmd.Flags().BoolVar(&serviceStatus, "status", false, "Check the gitcove service status")
	serviceCmd.Flags().BoolVar(&serviceRun, "run", false, "Run under the service manager")
	_ = serviceCmd.Flags().MarkHidden("run")
}

// program implements service.Interface around serve.
type program struct {
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	// Start must not block
	go func() {
		p.done <- serve(ctx)
	}()

	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}

	p.cancel()

	select {
	case err := <-p.done:
		return err
	case <-time.After(35 * time.Second):
		return errors.New("timed out waiting for the server to stop")
	}
}

func newService() (service.Service, error) {
	args := []string{"service", "--run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	svcConfig := &service.Config{
		Name:        application.ServiceName,
		DisplayName: "gitcove Git Server",
		Description: "Serves Git repositories over Smart HTTP",
		Arguments:   args,
	}

	s, err := service.New(&program{}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return s, nil
}

func runService(_ *cobra.Command, _ []string) error {
	flagCount := 0

	for _, set := range []bool{serviceStart, serviceStop, serviceInstall, serviceUninstall, serviceStatus, serviceRun} {
		if set {
			flagCount++
		}
	}

	if flagCount == 0 {
		return fmt.Errorf("please specify one of: --start, --stop, --install, --uninstall, --status")
	}

	if flagCount > 1 {
		return fmt.Errorf("please specify only one operation at a time")
	}

	s, err := newService()
	if err != nil {
		return err
	}

	switch {
	case serviceRun:
		slog.Info("running under the service manager", "service", application.ServiceName)
		return s.Run()
	case serviceInstall:
		if err := s.Install(); err != nil {
			return fmt.Errorf("failed to install service: %w", err)
		}

		fmt.Println("✓ Service installed successfully!")
		fmt.Println("\nTo start the service, run:")
		fmt.Printf("  %s service --start\n", application.AppName)
	case serviceUninstall:
		_ = s.Stop()

		if err := s.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}

		fmt.Println("✓ Service uninstalled successfully!")
	case serviceStart:
		if err := s.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		fmt.Println("✓ Service started successfully!")
		fmt.Printf("\nServing repositories on port %d\n", cfg.Server.Port)
	case serviceStop:
		if err := s.Stop(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}

		fmt.Println("✓ Service stopped successfully!")
	case serviceStatus:
		return printServiceStatus(s)
	}

	return nil
}

func printServiceStatus(s service.Service) error {
	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("failed to get service status: %w", err)
	}

	fmt.Printf("Service Status: ")

	switch status {
	case service.StatusRunning:
		fmt.Println("Running ✓")
	case service.StatusStopped:
		fmt.Println("Stopped")
	default:
		fmt.Println("Unknown")
	}

	return nil
}
