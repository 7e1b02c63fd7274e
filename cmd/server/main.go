package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"blockscan.ai/internal/config"
	"blockscan.ai/internal/logging"
	"blockscan.ai/internal/persistence/snapshot"
	"blockscan.ai/internal/tables"
	"blockscan.ai/internal/transport/ws"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to scan.yaml (optional)")
		addr     = flag.String("addr", "", "http listen address (overrides config)")
		dataDir  = flag.String("data", "", "runtime data directory (overrides config)")
		snapPath = flag.String("snapshot", "", "path to snapshot to serve (default: latest in <data>/snapshots)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	snapDir := filepath.Join(cfg.DataDir, "snapshots")
	store, path, err := loadStore(strings.TrimSpace(*snapPath), snapDir)
	if err != nil {
		logger.Fatal("load snapshot", zap.Error(err))
	}
	logger.Info("serving snapshot", zap.String("path", path), zap.Int("blocks", store.Len()))

	srvWS := ws.NewServer(store, logger, cfg.Server.MaxQueue)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = rw.Write([]byte("ok\n"))
	})
	srvWS.Routes(mux)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// SIGHUP reloads the newest snapshot unless one was pinned with -snapshot.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				next, p, err := loadStore(strings.TrimSpace(*snapPath), snapDir)
				if err != nil {
					logger.Warn("reload snapshot", zap.Error(err))
					continue
				}
				srvWS.SetStore(next)
				logger.Info("snapshot reloaded", zap.String("path", p), zap.Int("blocks", next.Len()))
			}
		}
	}()

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", cfg.Server.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
}

// loadStore reads path, or the latest snapshot in dir when path is empty.
func loadStore(path, dir string) (*tables.Store, string, error) {
	if path == "" {
		p, err := snapshot.Latest(dir)
		if err != nil {
			return nil, "", err
		}
		if p == "" {
			return nil, "", fmt.Errorf("no snapshot in %s (run blockscan first)", dir)
		}
		path = p
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return nil, path, err
	}
	store, err := tables.NewStore(snap.ToTables())
	if err != nil {
		return nil, path, err
	}
	return store, path, nil
}
