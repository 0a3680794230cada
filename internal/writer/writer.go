// Package writer stores compiled representations in the output directory.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/roach88/quire/internal/pipeline"
)

// Identifier names the filesystem writer; pruners are registered under the
// same name.
const Identifier = "filesystem"

// Writer writes representation content below the root of a filesystem.
// Paths are absolute within the output, e.g. "/blog/index.html".
//
// Thread-safety: not safe for concurrent use.
type Writer struct {
	fs      billy.Filesystem
	written map[string]bool
	changed int
}

// New creates a writer rooted at fs.
func New(fs billy.Filesystem) *Writer {
	return &Writer{fs: fs, written: make(map[string]bool)}
}

// Identifier returns Identifier.
func (w *Writer) Identifier() string {
	return Identifier
}

// Filesystem returns the output filesystem.
func (w *Writer) Filesystem() billy.Filesystem {
	return w.fs
}

func clean(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("output path %q is not absolute", p)
	}
	rel := strings.TrimPrefix(path.Clean(p), "/")
	if rel == "" || rel == "." {
		return "", fmt.Errorf("output path %q names the output root", p)
	}
	return rel, nil
}

// Write stores rep's current content at p. Unchanged files are left alone
// so their modification times survive.
func (w *Writer) Write(rep *pipeline.ItemRep, p string) error {
	rel, err := clean(p)
	if err != nil {
		return err
	}
	data := rep.Content().Bytes()

	existing, err := util.ReadFile(w.fs, rel)
	switch {
	case err == nil && bytes.Equal(existing, data):
		w.written[rel] = true
		slog.Debug("output identical", "path", p, "rep", rep.Reference())
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read %s: %w", p, err)
	}

	if dir := path.Dir(rel); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(w.fs, rel, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	w.written[rel] = true
	w.changed++
	slog.Debug("output written", "path", p, "rep", rep.Reference(), "bytes", len(data))
	return nil
}

// Exists reports whether p is present in the output.
func (w *Writer) Exists(p string) bool {
	rel, err := clean(p)
	if err != nil {
		return false
	}
	_, err = w.fs.Stat(rel)
	return err == nil
}

// FullPath returns p joined to the output root.
func (w *Writer) FullPath(p string) string {
	rel, err := clean(p)
	if err != nil {
		return w.fs.Root()
	}
	return w.fs.Join(w.fs.Root(), rel)
}

// Written returns the paths written or confirmed this run, sorted and
// relative to the output root.
func (w *Writer) Written() []string {
	out := make([]string, 0, len(w.written))
	for p := range w.written {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Changed returns how many files Write actually modified.
func (w *Writer) Changed() int {
	return w.changed
}
