package render

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Diagnostics captures failing page content for postmortem analysis. It is a
// side channel: capture failures are logged, never propagated.
type Diagnostics struct {
	Dir string
	log *zap.Logger
}

// NewDiagnostics returns a Diagnostics writer rooted at dir.
func NewDiagnostics(dir string, log *zap.Logger) *Diagnostics {
	return &Diagnostics{Dir: dir, log: log.Named("diagnostics")}
}

// CapturePage saves the page content under a name derived from the failure
// context and returns the snapshot path, or "" when nothing could be saved.
func (d *Diagnostics) CapturePage(context string, page *Page) string {
	if d == nil || page == nil || page.Content == "" {
		return ""
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		d.log.Warn("could not create diagnostics dir", zap.Error(err))
		return ""
	}

	safe := strings.NewReplacer("/", "_", ":", "", " ", "_").Replace(context)
	name := safe + "_" + time.Now().Format("20060102-150405") + ".html"
	path := filepath.Join(d.Dir, name)

	if err := os.WriteFile(path, []byte(page.Content), 0o644); err != nil {
		d.log.Warn("could not save page snapshot", zap.String("path", path), zap.Error(err))
		return ""
	}

	d.log.Info("saved failing page snapshot", zap.String("path", path), zap.String("url", page.URL))
	return path
}
