package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"blockscan.ai/internal/persistence/snapshot"
)

type CatalogArchiveMeta struct {
	CatalogDigest string `json:"catalog_digest"`
	RunID         string `json:"run_id"`
	Snapshot      string `json:"snapshot"`
	Tables        int    `json:"tables"`
	CreatedAt     string `json:"created_at"`
}

// ArchiveCatalogSnapshot copies the first snapshot taken for a catalog digest into
// `dataDir/archives/catalog_<digest[:12]>/`. It returns (archivedPath, archived=true) only when
// a copy was made; later runs against the same digest leave the archive untouched.
func ArchiveCatalogSnapshot(dataDir, snapshotPath string, h snapshot.Header) (archivedPath string, archived bool, err error) {
	if h.CatalogDigest == "" {
		return "", false, nil
	}
	key := h.CatalogDigest
	if len(key) > 12 {
		key = key[:12]
	}
	archiveDir := filepath.Join(dataDir, "archives", fmt.Sprintf("catalog_%s", key))
	metaPath := filepath.Join(archiveDir, "meta.json")
	if _, err := os.Stat(metaPath); err == nil {
		return "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := CatalogArchiveMeta{
		CatalogDigest: h.CatalogDigest,
		RunID:         h.RunID,
		Snapshot:      filepath.Base(dst),
		Tables:        h.Tables,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	// meta.json marks the archive complete, so it is written last.
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// ReadMeta loads the meta.json of one archive directory.
func ReadMeta(archiveDir string) (CatalogArchiveMeta, error) {
	var m CatalogArchiveMeta
	b, err := os.ReadFile(filepath.Join(archiveDir, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
