package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"blockscan.ai/internal/encoding"
	"blockscan.ai/internal/tables"
)

var ErrNotFound = errors.New("not found")

type SQLiteIndex struct {
	db *sql.DB
}

type Rejection struct {
	Block  string
	Reason string
}

// BlockRow is the indexed form of one resolved table.
type BlockRow struct {
	Block     string   `json:"block"`
	RunID     string   `json:"run_id"`
	Handler   string   `json:"handler"`
	Connected bool     `json:"connected"`
	Palette   []string `json:"palette"`
	SlotsRLE  string   `json:"slots_rle"`
	UpdatedAt string   `json:"updated_at"`
}

// Slots expands the RLE column back into per-slot fingerprints.
func (r BlockRow) Slots() ([]string, error) {
	ids, err := encoding.DecodeRLE(r.SlotsRLE)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		if int(id) >= len(r.Palette) {
			return nil, fmt.Errorf("%s: palette id %d out of range", r.Block, id)
		}
		out[i] = r.Palette[id]
	}
	return out, nil
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			catalog_digest TEXT NOT NULL,
			resolved INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			block TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			handler TEXT NOT NULL,
			connected INTEGER NOT NULL,
			palette_json TEXT NOT NULL,
			slots_rle TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_handler ON blocks(handler);`,
		`CREATE TABLE IF NOT EXISTS rejections (
			run_id TEXT NOT NULL,
			block TEXT NOT NULL,
			reason TEXT NOT NULL,
			PRIMARY KEY (run_id, block)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteIndex) UpsertCatalog(ctx context.Context, name, digest string, raw []byte) error {
	if name == "" || digest == "" || len(raw) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		name, digest, string(raw), now); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordRun stores one scan's tables and rejections in a single transaction.
// Blocks keep the table of the most recent run that resolved them.
func (s *SQLiteIndex) RecordRun(ctx context.Context, runID, catalogDigest string, ts []tables.Table, rejected []Rejection) error {
	if runID == "" {
		return fmt.Errorf("empty run id")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs(run_id,catalog_digest,resolved,rejected,recorded_at) VALUES(?,?,?,?,?)`,
		runID, catalogDigest, len(ts), len(rejected), now); err != nil {
		return err
	}

	insertBlock, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO blocks(block,run_id,handler,connected,palette_json,slots_rle,updated_at) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insertBlock.Close()
	for _, t := range ts {
		pal, ids := t.Palette()
		palJSON, err := json.Marshal(pal)
		if err != nil {
			return err
		}
		if _, err := insertBlock.ExecContext(ctx, t.Block, runID, t.Handler, boolInt(t.Connected), string(palJSON), encoding.EncodeRLE(ids), now); err != nil {
			return fmt.Errorf("%s: %w", t.Block, err)
		}
	}

	insertReject, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO rejections(run_id,block,reason) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer insertReject.Close()
	for _, r := range rejected {
		if _, err := insertReject.ExecContext(ctx, runID, r.Block, r.Reason); err != nil {
			return fmt.Errorf("%s: %w", r.Block, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) LookupBlock(ctx context.Context, block string) (BlockRow, error) {
	var (
		r         BlockRow
		connected int
		palJSON   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT block,run_id,handler,connected,palette_json,slots_rle,updated_at FROM blocks WHERE block = ?`, block,
	).Scan(&r.Block, &r.RunID, &r.Handler, &connected, &palJSON, &r.SlotsRLE, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrNotFound, block)
	}
	if err != nil {
		return r, err
	}
	r.Connected = connected != 0
	if err := json.Unmarshal([]byte(palJSON), &r.Palette); err != nil {
		return r, fmt.Errorf("%s: palette: %w", block, err)
	}
	return r, nil
}

func (s *SQLiteIndex) Rejections(ctx context.Context, runID string) ([]Rejection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT block,reason FROM rejections WHERE run_id = ? ORDER BY block`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rejection
	for rows.Next() {
		var r Rejection
		if err := rows.Scan(&r.Block, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRun returns the most recently recorded run id, or "" if none.
func (s *SQLiteIndex) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM runs ORDER BY recorded_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
