// Package run locates training-run directories: it allocates new indexed
// runs and addresses existing ones.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Latest addresses the run with the highest existing index.
const Latest = -1

const (
	dirPrefix         = "run-"
	checkpointDirName = "ckpt"
	logDirName        = "log"
	metaFileName      = "run.json"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Sentinel errors for run resolution.
var (
	// ErrNoRuns indicates the base directory holds no runs to resume.
	ErrNoRuns = errors.New("no runs found")

	// ErrRunNotFound indicates the requested run index does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoCheckpointArea indicates the run directory exists but has no
	// checkpoint area, so there is nothing to resume from.
	ErrNoCheckpointArea = errors.New("run has no checkpoint area")
)

// Run is one training run's filesystem location. A run is identified by a
// monotonic integer index and carries a checkpoint area and a log area.
type Run struct {
	// Index is the run's monotonic index, starting at 1.
	Index int
	// ID is the run's random identifier, recorded in run.json.
	ID string

	root string
}

// Root returns the run's root directory.
func (r *Run) Root() string { return r.root }

// CheckpointDir returns the run's checkpoint area.
func (r *Run) CheckpointDir() string { return filepath.Join(r.root, checkpointDirName) }

// LogDir returns the run's log area.
func (r *Run) LogDir() string { return filepath.Join(r.root, logDirName) }

// meta is the run.json record written at allocation time.
type meta struct {
	Index     int       `json:"index"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Allocate creates the next run under base: index = highest existing + 1,
// or 1 if base holds no runs yet. The run root, checkpoint area, and log
// area are created with 0755 permissions; creation is idempotent.
func Allocate(base string) (*Run, error) {
	if err := os.MkdirAll(base, dirPerm); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	highest, err := highestIndex(base)
	if err != nil {
		return nil, err
	}

	r := &Run{
		Index: highest + 1,
		ID:    uuid.NewString(),
		root:  filepath.Join(base, dirName(highest+1)),
	}

	for _, dir := range []string{r.root, r.CheckpointDir(), r.LogDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("create run directory %s: %w", dir, err)
		}
	}

	data, err := json.Marshal(meta{Index: r.Index, ID: r.ID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal run metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.root, metaFileName), data, filePerm); err != nil {
		return nil, fmt.Errorf("write run metadata: %w", err)
	}

	return r, nil
}

// Resolve addresses an existing run under base. index = Latest picks the
// highest existing index; a concrete index must exist. Resolve never
// creates or mutates directories, and it verifies that the run carries a
// checkpoint area.
func Resolve(base string, index int) (*Run, error) {
	if index == Latest {
		highest, err := highestIndex(base)
		if err != nil {
			return nil, err
		}
		if highest == 0 {
			return nil, fmt.Errorf("%w under %s", ErrNoRuns, base)
		}
		index = highest
	}

	root := filepath.Join(base, dirName(index))
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: index %d under %s", ErrRunNotFound, index, base)
	}

	r := &Run{Index: index, root: root}

	if info, err := os.Stat(r.CheckpointDir()); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: index %d", ErrNoCheckpointArea, index)
	}

	// run.json is advisory; a missing file leaves ID empty, a malformed one
	// is an error.
	data, err := os.ReadFile(filepath.Join(root, metaFileName))
	if err == nil {
		var m meta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse run metadata: %w", err)
		}
		r.ID = m.ID
	}

	return r, nil
}

// dirName formats a run index as a directory name, e.g. "run-0003".
func dirName(index int) string {
	return fmt.Sprintf("%s%04d", dirPrefix, index)
}

// highestIndex scans base for run directories and returns the highest
// index, or 0 if none exist.
func highestIndex(base string) (int, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read base directory: %w", err)
	}

	highest := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), dirPrefix))
		if err != nil || n <= 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}
