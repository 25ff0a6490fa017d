package preflight

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile records a passed check inside the data directory.
const MarkerFile = ".preflight-passed"

// Marker is the content of MarkerFile.
type Marker struct {
	PassedAt time.Time `json:"passed_at"`
	Version  string    `json:"version"`
}

// NeedsCheck reports whether index should run the checks: the marker is
// missing, unreadable, or was written by a different tutor version.
func NeedsCheck(dataDir, version string) bool {
	m, err := ReadMarker(dataDir)
	return err != nil || m.Version != version
}

// ReadMarker loads the marker. A missing marker yields fs.ErrNotExist.
func ReadMarker(dataDir string) (*Marker, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse preflight marker: %w", err)
	}
	return &m, nil
}

// MarkPassed writes the marker, creating dataDir if needed.
func MarkPassed(dataDir, version string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	data, err := json.Marshal(Marker{PassedAt: time.Now().UTC(), Version: version})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), data, 0o644)
}

// ClearMarker removes the marker so the next index re-runs the checks.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}
