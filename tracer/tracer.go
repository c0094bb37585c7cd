// Package tracer writes each core's pipeline-stage trace to CSV,
// one file per core, following the pipeline_core<id>.csv naming
// convention.
package tracer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// CSVTraceWriter buffers per-core trace files under a run directory and
// guarantees they are flushed and closed even if the process exits before
// Close is called explicitly.
type CSVTraceWriter struct {
	dir string

	mu     sync.Mutex
	files  []*os.File
	closed bool
}

// New constructs a CSVTraceWriter rooted at dir. An empty dir gets a
// unique default, "riscvmc_trace_" followed by an xid, so concurrent runs
// never collide on the same path.
func New(dir string) *CSVTraceWriter {
	if dir == "" {
		dir = "riscvmc_trace_" + xid.New().String()
	}
	t := &CSVTraceWriter{dir: dir}
	atexit.Register(func() { t.Close() })
	return t
}

// Dir returns the resolved output directory.
func (t *CSVTraceWriter) Dir() string {
	return t.dir
}

// WriteCore writes coreID's complete trace: one row per instruction id
// (ascending), one column per cell of the longest row (headed Cycle1,
// Cycle2, ...), shorter rows padded with the empty string. Cells are
// written in the order given and are not aligned to simulated cycles;
// PipelinedCore.Trace supplies one cell per stage event, not one per cycle.
func (t *CSVTraceWriter) WriteCore(coreID int, ids []int, rows [][]string) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("tracer: creating %s: %w", t.dir, err)
	}

	path := filepath.Join(t.dir, fmt.Sprintf("pipeline_core%d.csv", coreID))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tracer: creating %s: %w", path, err)
	}

	t.mu.Lock()
	t.files = append(t.files, file)
	t.mu.Unlock()

	cycles := 0
	for _, row := range rows {
		if len(row) > cycles {
			cycles = len(row)
		}
	}

	w := csv.NewWriter(file)
	header := make([]string, 0, cycles+1)
	header = append(header, "InstrID")
	for c := 1; c <= cycles; c++ {
		header = append(header, fmt.Sprintf("Cycle%d", c))
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("tracer: writing header to %s: %w", path, err)
	}

	for i, id := range ids {
		record := make([]string, 0, cycles+1)
		record = append(record, strconv.Itoa(id))
		row := rows[i]
		for c := 0; c < cycles; c++ {
			if c < len(row) {
				record = append(record, row[c])
			} else {
				record = append(record, "")
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("tracer: writing row %d to %s: %w", id, path, err)
		}
	}

	w.Flush()
	return w.Error()
}

// Close flushes and closes every file this writer opened. Safe to call
// more than once; the atexit hook registered by New relies on that.
func (t *CSVTraceWriter) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, f := range t.files {
		_ = f.Close()
	}
}
