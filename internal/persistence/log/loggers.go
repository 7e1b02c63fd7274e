package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	// A zstd stream cannot be appended to once closed, so a reopened hour
	// gets its own numbered file.
	path := w.pathForHour(hour, 0)
	for i := 1; fileExists(path); i++ {
		path = w.pathForHour(hour, i)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string, n int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.%02d.jsonl.zst", w.prefix, hour, n))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ScanEntry is one block outcome of a scan run.
type ScanEntry struct {
	RunID   string `json:"run_id"`
	Time    string `json:"time"`
	Block   string `json:"block"`
	Outcome string `json:"outcome"` // "resolved","rejected","skipped"
	Handler string `json:"handler,omitempty"`
	Reason  string `json:"reason,omitempty"`
	States  int    `json:"states,omitempty"`
}

const (
	OutcomeResolved = "resolved"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
)

// ScanLogger writes scan JSONL entries (compressed).
type ScanLogger struct{ w *JSONLZstdWriter }

func NewScanLogger(dataDir string) *ScanLogger {
	return &ScanLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "scans"), "scan")}
}

func (l *ScanLogger) WriteEntry(v ScanEntry) error { return l.w.Write(v) }
func (l *ScanLogger) Close() error                 { return l.w.Close() }

// ReadEntries decodes every entry of one scan log file.
func ReadEntries(path string) ([]ScanEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []ScanEntry
	for sc.Scan() {
		var e ScanEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFiles returns the scan log files under dataDir in chronological order.
func ListFiles(dataDir string) ([]string, error) {
	dir := filepath.Join(dataDir, "scans")
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "scan-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
