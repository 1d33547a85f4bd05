package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/inovacc/gitcove/internal/grpcserver"
	"github.com/inovacc/gitcove/internal/process"
	"github.com/inovacc/gitcove/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var stopTimeout time.Duration

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Server management commands",
	Long:  `Manage the gitcove server. Use 'gitcove server start' to serve repositories.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Git HTTP server",
	Long: `Start the Git Smart HTTP server, the management API and the browser on the
configured port. When [server] grpc_port is set, a gRPC health service runs
alongside it. The server stops on Ctrl+C or SIGTERM.`,
	RunE: runServerStart,
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE:  runServerStop,
}

var serverRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the server in the background",
	RunE:  runServerRestart,
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	RunE:  runServerStatus,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverStartCmd, serverStopCmd, serverRestartCmd, serverStatusCmd)

	serverStopCmd.Flags().DurationVar(&stopTimeout, "timeout", 30*time.Second, "Timeout waiting for server to stop")
	serverRestartCmd.Flags().DurationVar(&stopTimeout, "timeout", 30*time.Second, "Timeout waiting for server to stop before restart")
}

func runServerStart(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx)
}

// serve runs the HTTP server, and the health server when configured, until
// ctx is cancelled.
func serve(ctx context.Context) error {
	infoPath, err := grpcserver.InfoPath()
	if err != nil {
		return err
	}

	if info := grpcserver.IsServerRunning(infoPath); info != nil {
		return fmt.Errorf("server already running (PID %d on %s)", info.PID, info.HTTPAddress)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := os.MkdirAll(svc.repos.Root(), 0o755); err != nil {
		return fmt.Errorf("failed to create repository root: %w", err)
	}

	httpServer, err := web.New(web.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Capabilities: cfg.Capabilities,
	}, svc.repos, svc.users)
	if err != nil {
		return err
	}

	if cfg.Server.Gops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: false}); err != nil {
			slog.Warn("failed to start gops agent", "error", err)
		} else {
			defer agent.Close()
		}
	}

	info := grpcserver.ServerInfo{
		HTTPAddress: net.JoinHostPort("localhost", strconv.Itoa(cfg.Server.Port)),
		Root:        svc.repos.Root(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gctx)
	})

	if cfg.Server.GRPCPort > 0 {
		grpcAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort))
		info.GRPCAddress = net.JoinHostPort("localhost", strconv.Itoa(cfg.Server.GRPCPort))

		health := grpcserver.NewServer(svc.repos)

		g.Go(func() error {
			return health.Serve(gctx, grpcAddr)
		})
	}

	if err := grpcserver.WriteServerInfo(infoPath, info); err != nil {
		slog.Warn("failed to write server info file", "error", err)
	}
	defer grpcserver.RemoveServerInfo(infoPath)

	err = g.Wait()

	slog.Info("server stopped")

	return err
}

func runServerStop(_ *cobra.Command, _ []string) error {
	infoPath, err := grpcserver.InfoPath()
	if err != nil {
		return err
	}

	info := grpcserver.IsServerRunning(infoPath)
	if info == nil {
		_, _ = fmt.Fprintln(os.Stdout, "Server is not running")
		return nil
	}

	_, _ = fmt.Fprintf(os.Stdout, "Stopping server (PID: %d)...\n", info.PID)

	if err := stopProcess(info.PID, stopTimeout); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(os.Stdout, "Server stopped successfully")

	return nil
}

func runServerRestart(cmd *cobra.Command, args []string) error {
	if err := runServerStop(cmd, args); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	startArgs := []string{"server", "start"}
	if configPath != "" {
		startArgs = append(startArgs, "--config", configPath)
	}

	if cmd.Flags().Changed("root") {
		startArgs = append(startArgs, "--root", cfg.Repositories.Root)
	}

	if cmd.Flags().Changed("port") {
		startArgs = append(startArgs, "--port", strconv.Itoa(cfg.Server.Port))
	}

	if cmd.Flags().Changed("store") {
		startArgs = append(startArgs, "--store", cfg.Storage.Backend)
	}

	child := exec.Command(exe, startArgs...)
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "Server started (PID: %d)\n", child.Process.Pid)

	return child.Process.Release()
}

func runServerStatus(_ *cobra.Command, _ []string) error {
	infoPath, err := grpcserver.InfoPath()
	if err != nil {
		return err
	}

	info := grpcserver.IsServerRunning(infoPath)
	if info == nil {
		_, _ = fmt.Fprintln(os.Stdout, "Server status: stopped")
		return nil
	}

	_, _ = fmt.Fprintln(os.Stdout, "Server status: running")
	_, _ = fmt.Fprintf(os.Stdout, "  HTTP:    %s\n", info.HTTPAddress)

	if info.GRPCAddress != "" {
		_, _ = fmt.Fprintf(os.Stdout, "  Health:  %s\n", info.GRPCAddress)
	}

	_, _ = fmt.Fprintf(os.Stdout, "  Root:    %s\n", info.Root)
	_, _ = fmt.Fprintf(os.Stdout, "  PID:     %d\n", info.PID)
	_, _ = fmt.Fprintf(os.Stdout, "  Started: %s\n", info.StartedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(os.Stdout, "  Uptime:  %s\n", time.Since(info.StartedAt).Round(time.Second))

	return nil
}

// stopProcess sends a termination signal and waits for the process to go away.
func stopProcess(pid int, timeout time.Duration) error {
	if err := terminateProcess(pid); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if !process.IsRunning(pid) {
			return nil
		}

		time.Sleep(100 * time.Millisecond)
	}

	return errors.New("server did not stop within " + timeout.String())
}

// terminateProcess sends a termination signal to the process with the given PID
func terminateProcess(pid int) error {
	if runtime.GOOS == "windows" {
		return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/F").Run()
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	return proc.Signal(syscall.SIGTERM)
}
