package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"blockscan.ai/internal/tables"
)

func sampleTables() []tables.Table {
	vals := make([]string, 16)
	maps := make([]map[string]string, 16)
	for i := range vals {
		vals[i] = "color=white"
		maps[i] = map[string]string{"color": "white"}
	}
	vals[14] = "color=red"
	maps[14] = map[string]string{"color": "red"}
	return []tables.Table{{Block: "minecraft:wool", Handler: "MetadataState", Values: vals, Maps: maps}}
}

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(time.Unix(1700000000, 0), "0123456789abcdef"))

	snap := FromTables("0123456789abcdef", "deadbeef", sampleTables())
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.RunID != "0123456789abcdef" || h.Tables != 1 || h.Version != Version {
		t.Fatalf("header=%+v", h)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	ts := got.ToTables()
	if len(ts) != 1 || ts[0].Block != "minecraft:wool" || ts[0].Handler != "MetadataState" {
		t.Fatalf("tables=%+v", ts)
	}
	if ts[0].Values[14] != "color=red" || ts[0].Maps[14]["color"] != "red" {
		t.Fatalf("slot 14 = %q %v", ts[0].Values[14], ts[0].Maps[14])
	}
	if got.Header.CatalogDigest != "deadbeef" {
		t.Fatalf("digest=%q", got.Header.CatalogDigest)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if p, err := Latest(filepath.Join(dir, "missing")); err != nil || p != "" {
		t.Fatalf("missing dir: p=%q err=%v", p, err)
	}

	older := FileName(time.Unix(1700000000, 0), "aaaaaaaa")
	newer := FileName(time.Unix(1700000100, 0), "bbbbbbbb")
	for _, n := range []string{newer, older, "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p, err := Latest(dir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if filepath.Base(p) != newer {
		t.Fatalf("latest=%q want %q", filepath.Base(p), newer)
	}
}

func TestReadSnapshot_NotZstd(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad"+Suffix)
	if err := os.WriteFile(p, []byte("plain text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshot(p); err == nil {
		t.Fatalf("expected error")
	}
}
