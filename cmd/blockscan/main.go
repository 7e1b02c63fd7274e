package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"blockscan.ai/internal/catalogs"
	"blockscan.ai/internal/config"
	"blockscan.ai/internal/filter"
	"blockscan.ai/internal/logging"
	"blockscan.ai/internal/persistence/indexdb"
	persistlog "blockscan.ai/internal/persistence/log"
	"blockscan.ai/internal/scan"
	"blockscan.ai/internal/statehandlers"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "path to scan.yaml (optional)")
		configDir = flag.String("configs", "", "catalog directory (overrides config)")
		dataDir   = flag.String("data", "", "runtime data directory (overrides config)")
		expr      = flag.String("filter", "", "block filter expression (overrides config)")
		disableDB = flag.Bool("disable_db", false, "skip the sqlite index")
	)
	flag.Parse()
	if flag.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "unexpected arguments:", flag.Args())
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "configs":
			cfg.ConfigDir = *configDir
		case "data":
			cfg.DataDir = *dataDir
		case "filter":
			cfg.Filter = *expr
		case "disable_db":
			cfg.Index = !*disableDB
		}
	})

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("scan failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	reg, err := statehandlers.NewRegistryByName(logger, cfg.Handlers)
	if err != nil {
		return err
	}
	f, err := filter.Compile(cfg.Filter)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	cat, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded",
		zap.String("dir", cfg.ConfigDir),
		zap.Int("blocks", len(cat.Blocks)),
		zap.String("digest", cat.DefsDigest))

	sl := persistlog.NewScanLogger(cfg.DataDir)
	defer func() {
		if err := sl.Close(); err != nil {
			logger.Warn("close scan log", zap.Error(err))
		}
	}()

	var idx *indexdb.SQLiteIndex
	if cfg.Index {
		idx, err = indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "blocks.sqlite"))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
	}

	res, err := scan.Run(ctx, scan.Options{
		Catalog:     cat,
		Registry:    reg,
		Filter:      f,
		Logger:      logger,
		ScanLog:     sl,
		Index:       idx,
		SnapshotDir: filepath.Join(cfg.DataDir, "snapshots"),
		ArchiveDir:  cfg.DataDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("run=%s resolved=%d rejected=%d skipped=%d snapshot=%s\n",
		res.RunID, len(res.Tables), len(res.Rejected), len(res.Skipped), res.SnapshotPath)
	return nil
}
