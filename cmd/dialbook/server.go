package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/dialbook/internal/api"
	"github.com/kalambet/dialbook/internal/config"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dialbook HTTP API (foreground)",
	Long: `Run the dialbook HTTP API on 127.0.0.1.

With --mcp the phone book is also served as MCP tools over stdin/stdout,
and the process exits when the MCP client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(cmd.Context(), withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running dialbook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer(cmd)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dialbook status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "dialbook.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// newLogger builds the process logger from the log config.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] invalid log.level %q, using info\n", cfg.Level)
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runServer(parent context.Context, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "dialbook version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if newAPIClient(cfg).healthy(parent) {
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning(os.Stderr, "dialbook is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning(os.Stderr, "dialbook is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := openBook(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := api.NewMetrics(reg)
	unsubscribe := metrics.ObserveBook(h.book)
	defer unsubscribe()

	if cfg.Server.Token == "" {
		logger.Warn("no API token configured, phone routes are unauthenticated", "env", "DIALBOOK_SERVER_TOKEN")
	}

	topRouter := chi.NewRouter()
	topRouter.Use(middleware.RequestID)
	topRouter.Use(middleware.Recoverer)
	topRouter.Mount("/", api.NewAppHandler(api.AppDeps{
		Book:     h.book,
		Token:    cfg.Server.Token,
		Metrics:  metrics,
		Gatherer: reg,
	}))

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, cfg.Server.MaxConns)

	srv := &http.Server{
		Handler:           topRouter,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("dialbook listening", "addr", addr, "saved", h.book.Len())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Book:    h.book,
			Metrics: metrics,
			Version: version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			logger.Info("MCP server started (stdio transport)")
			err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			// Client went away; take the HTTP server down with it.
			stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError(cmd.ErrOrStderr(), "dialbook is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError(cmd.ErrOrStderr(), "could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError(cmd.ErrOrStderr(), "could not stop dialbook (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess(cmd.OutOrStdout(), "Sent stop signal to dialbook (PID %d)", pid)
	return nil
}

func showStatus(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()

	h, err := openCLIBook(cmd)
	if err != nil {
		// Still show partial status even if config or storage fails.
		printError(cmd.ErrOrStderr(), "%v", err)
		return nil
	}
	defer h.Close()

	client := newAPIClient(h.cfg)
	if client.healthy(cmd.Context()) {
		printStatus(w, "Server", "running on port %d", h.cfg.Server.Port)
		var phones []api.PhoneModel
		resp, err := client.get(cmd.Context(), "/phones")
		if err == nil && decodeJSON(resp, &phones) == nil {
			printStatus(w, "Served numbers", "%d", len(phones))
		}
	} else {
		printStatus(w, "Server", "stopped")
	}

	printStatus(w, "Saved numbers", "%d", h.book.Len())

	plan := h.book.Plan()
	printStatus(w, "Numbering plan", "+%s, %d national digits", plan.CountryCode, plan.NationalLength)

	slots, err := h.db.Slots()
	if err == nil {
		for _, s := range slots {
			if s.Key == h.cfg.Storage.SlotKey {
				printStatus(w, "Last write", "%s (%d bytes)", s.UpdatedAt.Local().Format(time.RFC3339), s.Size)
			}
		}
	}
	if versions, err := h.db.AppliedMigrations(); err == nil && len(versions) > 0 {
		printStatus(w, "Schema", "v%d", versions[len(versions)-1])
	}

	printStatus(w, "Data dir", "%s", h.cfg.Storage.DataDir)
	return nil
}
