package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

const stateDirName = ".musicbrainz-exporter"

// EntityStatus is the last reported progress of one entity
type EntityStatus struct {
	State      State `json:"state"`
	RowsRead   int64 `json:"rows_read"`
	Accepted   int64 `json:"accepted"`
	Duplicates int64 `json:"duplicates"`
	Flushes    int   `json:"flushes"`
	Bytes      int64 `json:"bytes_written"`
}

// TaskInfo represents the current export run
type TaskInfo struct {
	PID        int                     `json:"pid"`
	StartTime  time.Time               `json:"start_time"`
	Entities   map[string]EntityStatus `json:"entities"`
	LastUpdate time.Time               `json:"last_update"`
}

// Summary renders one line per entity, sorted by name
func (t *TaskInfo) Summary() string {
	names := make([]string, 0, len(t.Entities))
	for name := range t.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		s := t.Entities[name]
		fmt.Fprintf(&b, "%-10s %-10s rows=%d written=%d duplicates=%d flushes=%d\n",
			name, s.State, s.RowsRead, s.Accepted, s.Duplicates, s.Flushes)
	}
	return b.String()
}

// GetPIDFilePath returns the path to the PID file
func GetPIDFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, stateDirName, "exporter.pid")
}

// GetTaskFilePath returns the path to the task info file
func GetTaskFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, stateDirName, "current_task.json")
}

// WritePIDFile writes the current process PID to a file
func WritePIDFile() error {
	pidPath := GetPIDFilePath()
	if err := os.MkdirAll(filepath.Dir(pidPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// RemovePIDFile removes the PID file
func RemovePIDFile() error {
	return os.Remove(GetPIDFilePath())
}

// ReadPIDFile reads the PID from file
func ReadPIDFile() (int, error) {
	data, err := os.ReadFile(GetPIDFilePath())
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// IsProcessRunning checks if a process with given PID is running
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks for existence without delivering anything
	return process.Signal(syscall.Signal(0)) == nil
}

// WriteTaskInfo writes current task information to file
func WriteTaskInfo(info *TaskInfo) error {
	taskPath := GetTaskFilePath()
	if err := os.MkdirAll(filepath.Dir(taskPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	info.LastUpdate = time.Now()

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task info: %w", err)
	}

	// Write then rename so `extract --status` never reads a partial file
	tmp := taskPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, taskPath)
}

// ReadTaskInfo reads current task information from file
func ReadTaskInfo() (*TaskInfo, error) {
	data, err := os.ReadFile(GetTaskFilePath())
	if err != nil {
		return nil, err
	}

	var info TaskInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task info: %w", err)
	}
	return &info, nil
}

// RemoveTaskFile removes the task info file
func RemoveTaskFile() error {
	return os.Remove(GetTaskFilePath())
}

// taskTracker folds progress snapshots from concurrent extractors into the
// task file. Writes are throttled except on state changes.
type taskTracker struct {
	mu        sync.Mutex
	info      *TaskInfo
	interval  time.Duration
	lastWrite time.Time
}

func newTaskTracker(names []string, interval time.Duration) *taskTracker {
	info := &TaskInfo{
		PID:       os.Getpid(),
		StartTime: time.Now(),
		Entities:  make(map[string]EntityStatus, len(names)),
	}
	for _, name := range names {
		info.Entities[name] = EntityStatus{State: StateInit}
	}
	return &taskTracker{info: info, interval: interval}
}

func (t *taskTracker) update(p Progress) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.info.Entities[p.Entity]
	t.info.Entities[p.Entity] = EntityStatus{
		State:      p.State,
		RowsRead:   p.RowsRead,
		Accepted:   p.Accepted,
		Duplicates: p.Duplicates,
		Flushes:    p.Flushes,
		Bytes:      p.BytesWritten,
	}

	if prev.State == p.State && time.Since(t.lastWrite) < t.interval {
		return nil
	}
	t.lastWrite = time.Now()
	return WriteTaskInfo(t.info)
}

func (t *taskTracker) snapshot() TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	copied := *t.info
	copied.Entities = make(map[string]EntityStatus, len(t.info.Entities))
	for k, v := range t.info.Entities {
		copied.Entities[k] = v
	}
	return copied
}
