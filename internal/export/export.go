// Package export turns a rendered status page into a downloadable PNG or a
// self-contained HTML file.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SimulatorTestID marks the simulator element in rendered pages.
const SimulatorTestID = "whatsapp-simulator"

// SimulatorSelector is the CSS selector for the simulator element.
const SimulatorSelector = `[data-testid="` + SimulatorTestID + `"]`

var (
	ErrElementNotFound    = errors.New("simulator element not found")
	ErrCaptureUnavailable = errors.New("capture browser unavailable")
	ErrEncode             = errors.New("image encode failed")
)

// Filename is the download name for an export taken at t, e.g.
// whatsapp-status-2026-10-19-14-32-05.png, in local time.
func Filename(ext string, t time.Time) string {
	t = t.Local()
	return "whatsapp-status-" + t.Format("2006-01-02") + "-" + t.Format("15-04-05") + "." + ext
}

// Saver hands a finished export to its destination.
type Saver interface {
	Save(ctx context.Context, name, contentType string, data []byte) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, name, contentType string, data []byte) error

func (f SaverFunc) Save(ctx context.Context, name, contentType string, data []byte) error {
	return f(ctx, name, contentType, data)
}

// DirSaver writes exports into a directory.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(_ context.Context, name, _ string, data []byte) error {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filepath.Base(name)), data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
