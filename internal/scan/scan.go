// Package scan runs every catalog block through the state handler registry
// and persists the resolved tables.
package scan

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blockscan.ai/internal/catalogs"
	"blockscan.ai/internal/filter"
	"blockscan.ai/internal/persistence/archive"
	"blockscan.ai/internal/persistence/indexdb"
	persistlog "blockscan.ai/internal/persistence/log"
	"blockscan.ai/internal/persistence/snapshot"
	"blockscan.ai/internal/statehandlers"
	"blockscan.ai/internal/tables"
)

type Options struct {
	Catalog  *catalogs.BlockCatalog
	Registry *statehandlers.Registry
	Filter   *filter.Filter
	Logger   *zap.Logger

	// Optional sinks.
	ScanLog     *persistlog.ScanLogger
	Index       *indexdb.SQLiteIndex
	SnapshotDir string
	ArchiveDir  string

	Now func() time.Time
}

type Result struct {
	RunID        string
	Tables       []tables.Table
	Rejected     []indexdb.Rejection
	Skipped      []string
	SnapshotPath string
}

func Run(ctx context.Context, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = statehandlers.NewRegistry(log)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	res := Result{RunID: uuid.NewString()}
	log = log.With(zap.String("run_id", res.RunID))
	if opts.Catalog == nil {
		return res, nil
	}

	for _, def := range opts.Catalog.Blocks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		entry := persistlog.ScanEntry{
			RunID:  res.RunID,
			Time:   now().UTC().Format(time.RFC3339Nano),
			Block:  def.ID,
			States: len(def.States),
		}

		ok, err := opts.Filter.Match(def)
		if err != nil {
			return res, err
		}
		if !ok {
			res.Skipped = append(res.Skipped, def.ID)
			entry.Outcome = persistlog.OutcomeSkipped
			writeEntry(log, opts.ScanLog, entry)
			continue
		}

		var h statehandlers.Handler
		c, err := def.Container()
		if err == nil {
			h, err = reg.ResolveErr(def.ID, c)
		}
		if err != nil {
			res.Rejected = append(res.Rejected, indexdb.Rejection{Block: def.ID, Reason: err.Error()})
			entry.Outcome = persistlog.OutcomeRejected
			entry.Reason = err.Error()
			log.Info("block rejected", zap.String("block", def.ID), zap.Error(err))
			writeEntry(log, opts.ScanLog, entry)
			continue
		}

		res.Tables = append(res.Tables, tables.FromHandler(def.ID, h))
		entry.Outcome = persistlog.OutcomeResolved
		entry.Handler = h.Name()
		writeEntry(log, opts.ScanLog, entry)
	}

	if opts.SnapshotDir != "" {
		path := filepath.Join(opts.SnapshotDir, snapshot.FileName(now(), res.RunID))
		snap := snapshot.FromTables(res.RunID, opts.Catalog.DefsDigest, res.Tables)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			return res, err
		}
		res.SnapshotPath = path
		log.Info("snapshot written", zap.String("path", path), zap.Int("tables", len(res.Tables)))

		if opts.ArchiveDir != "" {
			dst, ok, err := archive.ArchiveCatalogSnapshot(opts.ArchiveDir, path, snap.Header)
			if err != nil {
				return res, err
			}
			if ok {
				log.Info("catalog archived", zap.String("path", dst), zap.String("digest", snap.Header.CatalogDigest))
			}
		}
	}

	if opts.Index != nil {
		if err := opts.Index.UpsertCatalog(ctx, "blocks_defs", opts.Catalog.DefsDigest, opts.Catalog.Raw); err != nil {
			return res, err
		}
		if err := opts.Index.RecordRun(ctx, res.RunID, opts.Catalog.DefsDigest, res.Tables, res.Rejected); err != nil {
			return res, err
		}
	}

	log.Info("scan complete",
		zap.Int("resolved", len(res.Tables)),
		zap.Int("rejected", len(res.Rejected)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// Scan log failures are logged, never returned.
func writeEntry(log *zap.Logger, l *persistlog.ScanLogger, e persistlog.ScanEntry) {
	if l == nil {
		return
	}
	if err := l.WriteEntry(e); err != nil {
		log.Warn("scan log write failed", zap.String("block", e.Block), zap.Error(err))
	}
}
