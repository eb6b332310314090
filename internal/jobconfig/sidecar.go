package jobconfig

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/torvald-bar/bargo/internal/catalog"
)

// SidecarPath returns the hidden schedule-info file alongside a job file:
// a dotfile named after the job file, in the same directory.
func SidecarPath(jobPath string) string {
	dir := filepath.Dir(jobPath)
	return filepath.Join(dir, "."+filepath.Base(jobPath))
}

// ScheduleInfo is the parsed contents of a schedule-info sidecar: the
// overall last-executed timestamp plus a per-archive-type breakdown.
type ScheduleInfo struct {
	LastExecuted int64
	ByType map[catalog.ArchiveType]int64
}

// ReadSidecar parses a schedule-info file. A missing file is not an error;
// it returns a zero-valued ScheduleInfo.
func ReadSidecar(path string) (*ScheduleInfo, error) {
	info := &ScheduleInfo{ByType: map[catalog.ArchiveType]int64{}}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return nil, fmt.Errorf("io: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		if first {
			info.LastExecuted = ts
			first = false
			if len(fields) == 1 {
				continue
			}
		}
		if len(fields) < 2 {
			continue
		}
		at, ok := catalog.ParseArchiveType(fields[1])
		if !ok {
			continue // unknown archive type name: the line is skipped without a warning
		}
		info.ByType[at] = ts
		if ts > info.LastExecuted {
			info.LastExecuted = ts
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("io: %w", err)
	}
	return info, nil
}

// WriteSidecar writes the overall max timestamp on the first line and one
// "<timestamp> <archiveTypeName>" line per archive type ever executed.
func WriteSidecar(path string, info *ScheduleInfo) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", info.LastExecuted)
	for at, ts := range info.ByType {
		fmt.Fprintf(&b, "%d %s\n", ts, at.String())
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

// RecordExecution updates info with a completed run of archiveType at ts,
// keeping the overall last-executed timestamp monotonic.
func (info *ScheduleInfo) RecordExecution(archiveType catalog.ArchiveType, ts int64) {
	if info.ByType == nil {
		info.ByType = map[catalog.ArchiveType]int64{}
	}
	info.ByType[archiveType] = ts
	if ts > info.LastExecuted {
		info.LastExecuted = ts
	}
}
