package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"blockscan.ai/internal/tables"
)

const (
	Version = 1
	Suffix  = ".snap.zst"
)

type Header struct {
	Version       int    `json:"version"`
	RunID         string `json:"run_id"`
	CatalogDigest string `json:"catalog_digest"`
	CreatedAt     string `json:"created_at"`
	Tables        int    `json:"tables"`
}

type SnapshotV1 struct {
	Header Header    `json:"header"`
	Tables []TableV1 `json:"tables"`
}

type TableV1 struct {
	Block     string              `json:"block"`
	Handler   string              `json:"handler"`
	Connected bool                `json:"connected"`
	Values    []string            `json:"values"`
	Maps      []map[string]string `json:"maps"`
}

func FromTables(runID, catalogDigest string, ts []tables.Table) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{
			Version:       Version,
			RunID:         runID,
			CatalogDigest: catalogDigest,
			CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
			Tables:        len(ts),
		},
		Tables: make([]TableV1, 0, len(ts)),
	}
	for _, t := range ts {
		snap.Tables = append(snap.Tables, TableV1{
			Block:     t.Block,
			Handler:   t.Handler,
			Connected: t.Connected,
			Values:    t.Values,
			Maps:      t.Maps,
		})
	}
	return snap
}

func (s SnapshotV1) ToTables() []tables.Table {
	out := make([]tables.Table, 0, len(s.Tables))
	for _, t := range s.Tables {
		out = append(out, tables.Table{
			Block:     t.Block,
			Handler:   t.Handler,
			Connected: t.Connected,
			Values:    t.Values,
			Maps:      t.Maps,
		})
	}
	return out
}

// FileName is sortable by creation time.
func FileName(now time.Time, runID string) string {
	id := runID
	if len(id) > 8 {
		id = id[:8]
	}
	return now.UTC().Format("20060102T150405.000000000Z") + "-" + id + Suffix
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for tools that only peek; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

// Latest returns the newest snapshot in dir, or "" if there is none.
func Latest(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Suffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
