package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"blockscan.ai/internal/persistence/indexdb"
	persistlog "blockscan.ai/internal/persistence/log"
	"blockscan.ai/internal/persistence/snapshot"
	"blockscan.ai/internal/tables"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "snapshot":
		snapshotCmd(os.Args[2:])
	case "db":
		dbCmd(os.Args[2:])
	case "log":
		logCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: inspect snapshot|db|log [flags]")
	os.Exit(2)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	path := fs.String("snapshot", "", "path to .snap.zst (default: latest)")
	block := fs.String("block", "", "print the slot grid of one block")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		latest, err := snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest:", err)
			os.Exit(1)
		}
		if latest == "" {
			fmt.Fprintln(os.Stderr, "no snapshots found")
			os.Exit(2)
		}
		p = latest
	}

	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if *block == "" {
		fmt.Printf("snapshot v%d run=%s digest=%s created=%s tables=%d\n",
			snap.Header.Version, snap.Header.RunID, snap.Header.CatalogDigest, snap.Header.CreatedAt, snap.Header.Tables)
		for _, t := range snap.ToTables() {
			pal, _ := t.Palette()
			fmt.Printf("%-40s %-28s slots=%-3d states=%d\n", t.Block, t.Handler, len(t.Values), len(pal))
		}
		return
	}

	store, err := tables.NewStore(snap.ToTables())
	if err != nil {
		fmt.Fprintln(os.Stderr, "tables:", err)
		os.Exit(1)
	}
	t, ok := store.Get(*block)
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown block", *block)
		os.Exit(1)
	}
	printGrid(os.Stdout, t)
}

// printGrid writes palette ids, one row per adjacency value and one column
// per metadata value, followed by the palette legend.
func printGrid(w io.Writer, t *tables.Table) {
	pal, ids := t.Palette()
	fmt.Fprintf(w, "%s (%s)\n", t.Block, t.Handler)
	fmt.Fprint(w, "adj\\meta")
	for m := 0; m < 16; m++ {
		fmt.Fprintf(w, " %3d", m)
	}
	fmt.Fprintln(w)
	rows := len(ids) / 16
	for a := 0; a < rows; a++ {
		fmt.Fprintf(w, "%8d", a)
		for m := 0; m < 16; m++ {
			fmt.Fprintf(w, " %3d", ids[a*16+m])
		}
		fmt.Fprintln(w)
	}
	for i, fp := range pal {
		if fp == "" {
			fp = "(empty)"
		}
		fmt.Fprintf(w, "%3d %s\n", i, fp)
	}
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/blocks.sqlite)")
	runID := fs.String("run", "", "run id for rejections (default: latest)")
	_ = fs.Parse(args)

	q := "rejections"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "blocks.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()
	ctx := context.Background()

	switch q {
	case "rejections":
		id := *runID
		if id == "" {
			if id, err = idx.LatestRun(ctx); err != nil {
				fmt.Fprintln(os.Stderr, "latest run:", err)
				os.Exit(1)
			}
			if id == "" {
				fmt.Fprintln(os.Stderr, "no runs recorded")
				os.Exit(2)
			}
		}
		rs, err := idx.Rejections(ctx, id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rs {
			printJSON(map[string]string{"run_id": id, "block": r.Block, "reason": r.Reason})
		}

	case "block":
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: inspect db block <id>")
			os.Exit(2)
		}
		row, err := idx.LookupBlock(ctx, fs.Arg(1))
		if err != nil {
			fmt.Fprintln(os.Stderr, "lookup:", err)
			os.Exit(1)
		}
		printJSON(row)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
}

func logCmd(args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	outcome := fs.String("outcome", "", "only print entries with this outcome")
	_ = fs.Parse(args)

	files, err := persistlog.ListFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, f := range files {
		entries, err := persistlog.ReadEntries(f)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if *outcome != "" && e.Outcome != *outcome {
				continue
			}
			printJSON(e)
		}
	}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
