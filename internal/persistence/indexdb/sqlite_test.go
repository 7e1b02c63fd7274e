package indexdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"blockscan.ai/internal/tables"
)

func woolTable() tables.Table {
	vals := make([]string, 16)
	maps := make([]map[string]string, 16)
	for i := range vals {
		vals[i] = "color=white"
		maps[i] = map[string]string{"color": "white"}
	}
	vals[1], maps[1] = "color=orange", map[string]string{"color": "orange"}
	return tables.Table{Block: "minecraft:wool", Handler: "MetadataState", Values: vals, Maps: maps}
}

func TestSQLiteIndex_RecordAndLookup(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "blocks.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	if err := idx.UpsertCatalog(ctx, "blocks_defs", "deadbeef", []byte(`[]`)); err != nil {
		t.Fatalf("UpsertCatalog: %v", err)
	}

	tab := woolTable()
	rej := []Rejection{{Block: "minecraft:cobblestone_wall", Reason: "conflict"}}
	if err := idx.RecordRun(ctx, "run-1", "deadbeef", []tables.Table{tab}, rej); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	row, err := idx.LookupBlock(ctx, "minecraft:wool")
	if err != nil {
		t.Fatalf("LookupBlock: %v", err)
	}
	if row.RunID != "run-1" || row.Handler != "MetadataState" || row.Connected {
		t.Fatalf("row=%+v", row)
	}
	if len(row.Palette) != 2 {
		t.Fatalf("palette=%v", row.Palette)
	}
	slots, err := row.Slots()
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	for i, v := range slots {
		if v != tab.Values[i] {
			t.Fatalf("slot %d: %q want %q", i, v, tab.Values[i])
		}
	}

	got, err := idx.Rejections(ctx, "run-1")
	if err != nil || len(got) != 1 || got[0].Block != "minecraft:cobblestone_wall" {
		t.Fatalf("rejections=%v err=%v", got, err)
	}
	latest, err := idx.LatestRun(ctx)
	if err != nil || latest != "run-1" {
		t.Fatalf("latest=%q err=%v", latest, err)
	}

	if _, err := idx.LookupBlock(ctx, "minecraft:stone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestSQLiteIndex_NewerRunReplacesBlock(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "blocks.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	tab := woolTable()
	if err := idx.RecordRun(ctx, "run-1", "d1", []tables.Table{tab}, nil); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := idx.RecordRun(ctx, "run-2", "d2", []tables.Table{tab}, nil); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	row, err := idx.LookupBlock(ctx, tab.Block)
	if err != nil || row.RunID != "run-2" {
		t.Fatalf("row=%+v err=%v", row, err)
	}
	if err := idx.RecordRun(ctx, "", "d3", nil, nil); err == nil {
		t.Fatalf("expected empty run id error")
	}
}
