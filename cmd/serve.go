package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/focus/internal/api"
	"github.com/joescharf/focus/internal/daemon"
	webui "github.com/joescharf/focus/internal/ui"
)

var serveBackground bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring engine behind an HTTP API",
	Long: `Start the monitoring engine with an HTTP API for starting and stopping
sessions, recording feedback and streaming events (GET /api/v1/events).
Prometheus metrics are served at /metrics and a dashboard at /.

By default it listens on port 8787. Use --port to change it and
--background to detach.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8787, "port to listen on")
	serveCmd.Flags().BoolVarP(&serveBackground, "background", "b", false, "Detach and run in the background")
	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "focus-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "focus-serve.log")
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("focus serve already running (pid %d)", pid)
	}
	port := viper.GetInt("serve.port")

	if dryRun {
		ui.DryRunMsg("Would serve the API on port %d", port)
		return nil
	}
	if serveBackground {
		return serveSpawn(port)
	}
	return serveForeground(port, pf)
}

// serveSpawn re-executes focus serve detached, logging to serveLogPath.
func serveSpawn(port int) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, "serve", "--port", strconv.Itoa(port))
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	ui.Success("focus serve started in background (pid %d) on http://localhost:%d", child.Process.Pid, port)
	ui.Info("Logs: %s", logPath)
	return child.Process.Release()
}

func serveForeground(port int, pf *daemon.PIDFile) error {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}

	handler, err := serveHandler(a)
	if err != nil {
		_ = a.Close(context.Background())
		return err
	}

	// Cancelling baseCtx ends open event streams, which never go idle on their own.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.logger.Info().Int("port", port).Bool("analysis", a.analyzing).Msg("serving focus API")
	ui.Info("Serving focus at http://localhost:%d", port)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Sessions end first so their final entries still reach open streams.
	if err := a.Close(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("engine shutdown")
	}
	cancelBase()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("http shutdown")
	}
	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}

// serveHandler mounts the API and metrics next to the dashboard.
func serveHandler(a *app) (http.Handler, error) {
	dashboard, err := webui.Handler()
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	apiHandler := api.NewServer(a.sessions, a.store, a.hub, a.logger).Router()

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/metrics", apiHandler)
	mux.Handle("/", dashboard)
	return mux, nil
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("focus serve is not running")
		return nil
	}
	ui.Success("focus serve is running (pid %d) on port %d", pid, viper.GetInt("serve.port"))
	return nil
}

func serveStopRun() error {
	if dryRun {
		ui.DryRunMsg("Would stop focus serve")
		return nil
	}
	if err := pidFile().Stop(10 * time.Second); err != nil {
		return fmt.Errorf("focus serve: %w", err)
	}
	ui.Success("focus serve stopped")
	return nil
}
