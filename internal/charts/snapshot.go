package charts

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Snapshotter saves raw chart pages for inspection when selectors stop matching.
//
// Saving is best effort: failures are logged and never interrupt extraction.
type Snapshotter struct {
	dir    string
	logger *log.Logger
}

// NewSnapshotter returns a Snapshotter writing to dir, or nil when dir is empty.
func NewSnapshotter(dir string, logger *log.Logger) *Snapshotter {
	if dir == "" {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Snapshotter{dir: dir, logger: logger}
}

// Path returns where the snapshot for doc is written.
func (s *Snapshotter) Path(doc Document) string {
	return filepath.Join(s.dir, string(doc.Source)+"_response.html")
}

// Save writes doc's body and returns the path, or "" when it could not be written.
func (s *Snapshotter) Save(doc Document) string {
	if s == nil {
		return ""
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("could not create snapshot directory", "dir", s.dir, "error", err)
		return ""
	}

	path := s.Path(doc)
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		s.logger.Warn("could not save chart snapshot", "path", path, "error", err)
		return ""
	}

	s.logger.Debug("saved chart snapshot", "path", path)
	return path
}
