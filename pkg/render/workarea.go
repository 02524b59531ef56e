package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
)

// WorkArea is a private scratch directory for one render. It holds the
// source document, the compiler output and the converter output under
// fixed names. Callers must Release it on every path.
type WorkArea struct {
	dir          string
	files        config.Files
	intermediate string
}

// NewWorkArea creates a uniquely named directory under parent (the system
// temp dir when parent is empty).
func NewWorkArea(parent string, files config.Files, intermediate string) (*WorkArea, error) {
	for _, name := range []string{files.Source, files.Output, intermediate} {
		if err := errors.ValidateWorkFilename(name); err != nil {
			return nil, err
		}
	}

	dir, err := os.MkdirTemp(parent, "inktex-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create work area")
	}
	return &WorkArea{dir: dir, files: files, intermediate: intermediate}, nil
}

// Dir returns the directory path.
func (w *WorkArea) Dir() string { return w.dir }

// SourcePath returns the path of the LaTeX document.
func (w *WorkArea) SourcePath() string { return filepath.Join(w.dir, w.files.Source) }

// IntermediatePath returns the path of the compiler output.
func (w *WorkArea) IntermediatePath() string { return filepath.Join(w.dir, w.intermediate) }

// OutputPath returns the path of the converter output.
func (w *WorkArea) OutputPath() string { return filepath.Join(w.dir, w.files.Output) }

// WriteSource writes the assembled document.
func (w *WorkArea) WriteSource(document string) error {
	if err := os.WriteFile(w.SourcePath(), []byte(document), 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", w.files.Source)
	}
	return nil
}

// ReadOutput returns the converter output. A missing file means the
// converter reported success without producing anything.
func (w *WorkArea) ReadOutput() ([]byte, error) {
	data, err := os.ReadFile(w.OutputPath())
	if err != nil {
		return nil, errors.Malformed(err, "converter produced no %s", w.files.Output)
	}
	return data, nil
}

// Release removes the directory and everything in it.
func (w *WorkArea) Release() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove work area %s: %w", w.dir, err)
	}
	return nil
}
