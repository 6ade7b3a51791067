package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TruncateOldLogs truncates (not deletes) .log files in dir whose last
// modification is older than the cutoff. Truncation keeps file handles of
// any process still appending valid, which deleting would not. Returns how
// many files were truncated. A missing directory is not an error.
func TruncateOldLogs(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read log dir %s: %w", dir, err)
	}

	truncated := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) || info.Size() == 0 {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Truncate(path, 0); err != nil {
			return truncated, fmt.Errorf("truncate %s: %w", path, err)
		}
		truncated++
	}
	return truncated, nil
}
