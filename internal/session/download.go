package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactName builds `<prefix>-<mode>-<timestamp>.<ext>` with the ISO-8601
// timestamp's `:` and `.` replaced by `-`, keeping names filesystem-safe and
// lexically sortable.
func ArtifactName(prefix, mode string, at time.Time, ext string) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format(time.RFC3339))
	return fmt.Sprintf("%s-%s-%s.%s", prefix, mode, ts, ext)
}

// DirSink saves artifacts into a local download directory.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type discardSink struct{}

func (discardSink) Save(name string, _ []byte) (string, error) { return name, nil }

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
